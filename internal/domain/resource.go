package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ResourceKind identifies what a resource record holds.
type ResourceKind string

// Possible resource kinds.
const (
	KindTranscript ResourceKind = "transcript"
	KindSummary    ResourceKind = "summary"
)

// Valid reports whether k is a known kind.
func (k ResourceKind) Valid() bool {
	return k == KindTranscript || k == KindSummary
}

// ResourceStatus represents the processing state of a resource. The string
// values are part of the wire format and must not change.
type ResourceStatus string

// Possible resource status values
const (
	StatusPending    ResourceStatus = "pending"
	StatusProcessing ResourceStatus = "processing"
	StatusCompleted  ResourceStatus = "completed"
	StatusError      ResourceStatus = "error"
)

// Valid reports whether s is a known status.
func (s ResourceStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusError:
		return true
	default:
		return false
	}
}

// Terminal reports whether s ends a processing run.
func (s ResourceStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

var languageRe = regexp.MustCompile(`^[a-z]{2,3}(-[A-Za-z0-9]{2,8})?$`)

// Fingerprint is the logical identity of a resource. At most one record
// exists per fingerprint.
type Fingerprint struct {
	Kind       ResourceKind `json:"kind"`
	ResourceID string       `json:"resource_id"`
	Language   string       `json:"language"`
}

// NewFingerprint builds a validated fingerprint. Language tags are
// normalized to a lowercase primary subtag.
func NewFingerprint(kind ResourceKind, resourceID, language string) (Fingerprint, error) {
	fp := Fingerprint{
		Kind:       kind,
		ResourceID: strings.TrimSpace(resourceID),
		Language:   normalizeLanguage(language),
	}
	if err := fp.Validate(); err != nil {
		return Fingerprint{}, err
	}
	return fp, nil
}

// Validate checks the fingerprint fields.
func (f Fingerprint) Validate() error {
	if !f.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, f.Kind)
	}
	if f.ResourceID == "" {
		return fmt.Errorf("%w: resource id is required", ErrValidation)
	}
	if !languageRe.MatchString(f.Language) {
		return fmt.Errorf("%w: language %q", ErrValidation, f.Language)
	}
	return nil
}

// WithKind returns the same video and language under another kind.
func (f Fingerprint) WithKind(kind ResourceKind) Fingerprint {
	f.Kind = kind
	return f
}

// String renders the fingerprint as kind:resourceId:language.
func (f Fingerprint) String() string {
	return string(f.Kind) + ":" + f.ResourceID + ":" + f.Language
}

func normalizeLanguage(lang string) string {
	lang = strings.TrimSpace(lang)
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		return strings.ToLower(lang[:i]) + "-" + lang[i+1:]
	}
	return strings.ToLower(lang)
}

// Resource is the durable state of one transcript or summary. Content is set
// only when completed and Error only when in error.
type Resource struct {
	ID         uuid.UUID      `json:"id"`
	Kind       ResourceKind   `json:"kind"`
	ResourceID string         `json:"resource_id"`
	Language   string         `json:"language"`
	Status     ResourceStatus `json:"status"`
	Content    string         `json:"content,omitempty"`
	Error      string         `json:"error,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// NewResource creates a pending resource for the fingerprint.
func NewResource(fp Fingerprint) (*Resource, error) {
	if err := fp.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &Resource{
		ID:         uuid.New(),
		Kind:       fp.Kind,
		ResourceID: fp.ResourceID,
		Language:   fp.Language,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Fingerprint returns the logical identity of the resource.
func (r *Resource) Fingerprint() Fingerprint {
	return Fingerprint{Kind: r.Kind, ResourceID: r.ResourceID, Language: r.Language}
}

// Validate checks if the Resource has valid data.
func (r *Resource) Validate() error {
	if r.ID == uuid.Nil {
		return ErrInvalidID
	}
	if err := r.Fingerprint().Validate(); err != nil {
		return err
	}
	if !r.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, r.Status)
	}
	if (r.Status == StatusCompleted) != (r.Content != "") {
		return fmt.Errorf("%w: content must be set exactly when completed", ErrValidation)
	}
	if (r.Status == StatusError) != (r.Error != "") {
		return fmt.Errorf("%w: error must be set exactly when in error", ErrValidation)
	}
	return nil
}

// MarkProcessing moves a pending record to processing. A record already
// processing is accepted so a re-delivered job can resume it.
func (r *Resource) MarkProcessing() error {
	if r.Status != StatusPending && r.Status != StatusProcessing {
		return r.transitionError(StatusProcessing)
	}
	r.set(StatusProcessing, "", "")
	return nil
}

// Requeue returns a processing record to pending while a retry waits.
func (r *Resource) Requeue() error {
	if r.Status != StatusProcessing {
		return r.transitionError(StatusPending)
	}
	r.set(StatusPending, "", "")
	return nil
}

// Complete stores the produced content. Completing an already completed
// record overwrites it, which keeps duplicate deliveries harmless.
func (r *Resource) Complete(content string) error {
	if content == "" {
		return ErrEmptyContent
	}
	switch r.Status {
	case StatusPending, StatusProcessing, StatusCompleted:
		r.set(StatusCompleted, content, "")
		return nil
	default:
		return r.transitionError(StatusCompleted)
	}
}

// Fail records a terminal failure with a human readable reason.
func (r *Resource) Fail(reason string) error {
	if reason == "" {
		return fmt.Errorf("%w: failure reason is required", ErrValidation)
	}
	if r.Status != StatusPending && r.Status != StatusProcessing {
		return r.transitionError(StatusError)
	}
	r.set(StatusError, "", reason)
	return nil
}

// Restart is the only way out of error and the only re-entrant edge.
func (r *Resource) Restart() error {
	if r.Status != StatusError {
		return r.transitionError(StatusPending)
	}
	r.set(StatusPending, "", "")
	return nil
}

func (r *Resource) set(status ResourceStatus, content, errMsg string) {
	r.Status = status
	r.Content = content
	r.Error = errMsg
	r.UpdatedAt = time.Now().UTC()
}

func (r *Resource) transitionError(to ResourceStatus) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, to)
}
