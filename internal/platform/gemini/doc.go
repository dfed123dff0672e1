// Package gemini implements generation.Client on top of Google's Gemini API
// (google.golang.org/genai).
//
// Every call borrows a credential from a credential.Pool and reports the
// outcome back to it. API failures are classified once, in Classify, into
// the closed credential.Class taxonomy; nothing downstream looks at error
// text. A rate-limited, quota-exhausted, invalid or forbidden credential
// causes the same request to be retried immediately with another credential,
// at most once per credential in the pool.
//
// Prompts are text/template files embedded from prompts/.
package gemini
