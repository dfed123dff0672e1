// Package store defines interfaces for resource and dead-letter persistence.
// These interfaces abstract the underlying data storage mechanism from the
// pipeline, which only relies on the atomicity guarantees documented on each
// method.
package store
