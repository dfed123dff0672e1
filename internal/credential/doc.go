// Package credential manages the pool of external API credentials used by
// the work client.
//
// Callers Acquire a lease, make their call and Report the outcome. The call
// path can only take a credential out of rotation; the HealthChecker is the
// sole path back in. Invalid or forbidden credentials are retired and stay
// out until an operator calls Reset.
package credential
