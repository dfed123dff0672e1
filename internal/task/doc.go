// Package task runs the background pipeline. Work items are pulled from an
// in-process queue by a supervised worker set, handed to a handler per item
// type, and every outcome is written back to the resource record: completed,
// retried with backoff, dead-lettered, or failed. Unfinished records are
// recovered from the store on start and by a periodic monitor.
package task
