// Package domain contains the core entities of the pipeline: the resource
// record with its state machine, its fingerprint, and dead-lettered jobs.
// It is independent of any specific infrastructure or delivery mechanism.
package domain
