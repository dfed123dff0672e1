// Package events defines the notifications emitted when a resource reaches
// a terminal state, and an in-process emitter that fans them out to
// registered handlers.
//
// The primary components are:
// - ResourceEvent: a completed or failed transcript or summary
// - EventHandler: interface for components that consume events
// - EventEmitter: interface for components that publish events
package events
