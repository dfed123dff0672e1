// Package generation defines the boundary between the pipeline and the
// external language model that translates and summarizes transcripts.
//
// Implementations live under internal/platform (Gemini). Failures they
// return carry a credential.Class so the worker can decide between retrying
// and failing a job without inspecting error text.
package generation
