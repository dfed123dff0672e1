// Package service holds the request-side use cases of vidscribe.
//
// ResourceService turns "give me the transcript (or summary) of this video
// in this language" into at most one durable record per fingerprint and at
// most one queued work item per record creation or restart. It reads
// through the completion cache and never blocks on the work itself; callers
// poll with Get until the record is terminal.
//
// Expected conditions are reported with the sentinels in errors.go.
// Unexpected store failures are wrapped in ServiceError so the API layer can
// map them to a 500 without leaking driver text.
package service
