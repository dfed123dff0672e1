// Package notify emits terminal resource events at most once per job.
//
// A Guard marks a job as notified with an atomic set-if-absent that expires
// after a short TTL. The Notifier consults it before publishing, so a
// re-delivered job or two racing workers produce a single event. The guard
// is advisory: it never gates the state store write, and when it cannot be
// reached the event is published anyway.
package notify
