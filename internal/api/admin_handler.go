package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/phrazzld/vidscribe/internal/api/shared"
	"github.com/phrazzld/vidscribe/internal/credential"
	"github.com/phrazzld/vidscribe/internal/domain"
	"github.com/phrazzld/vidscribe/internal/platform/logger"
	"github.com/phrazzld/vidscribe/internal/task"
)

// CredentialPool is the operator view of the credential pool.
type CredentialPool interface {
	Snapshot() []credential.Health
	ActiveCount() int
	Reset(id string) error
}

// CredentialChecker probes a single credential.
type CredentialChecker interface {
	Check(ctx context.Context, id string) error
}

// WorkerController sends control messages to the worker supervisor.
type WorkerController interface {
	Control(ctx context.Context, msg task.ControlMessage) error
	Workers() int
}

// DeadLetterLister lists buried work items.
type DeadLetterLister interface {
	List(ctx context.Context, limit int) ([]*domain.DeadLetter, error)
}

// AdminDependencies groups the collaborators of AdminHandler.
type AdminDependencies struct {
	Pool        CredentialPool
	Checker     CredentialChecker
	Workers     WorkerController
	DeadLetters DeadLetterLister
}

// AdminHandler serves the operator endpoints under /api/admin.
type AdminHandler struct {
	deps   AdminDependencies
	logger *slog.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(deps AdminDependencies, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for AdminHandler")
	}
	return &AdminHandler{
		deps:   deps,
		logger: logger.With(slog.String("component", "admin_handler")),
	}
}

// ListCredentials handles GET /api/admin/credentials. Secrets never leave
// the pool; the snapshot carries only ids and hints.
func (h *AdminHandler) ListCredentials(w http.ResponseWriter, r *http.Request) {
	snapshot := h.deps.Pool.Snapshot()
	shared.RespondWithJSON(w, r, http.StatusOK, CredentialsResponse{
		Active:      h.deps.Pool.ActiveCount(),
		Total:       len(snapshot),
		Credentials: snapshot,
	})
}

// ResetCredential handles POST /api/admin/credentials/{credentialID}/reset.
// The credential is probed right away so a good key is usable without
// waiting for the next health tick.
func (h *AdminHandler) ResetCredential(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	id, err := getPathParam(r, ParamCredentialID)
	if err != nil {
		HandleAPIError(w, r, err, "", shared.WithElevatedLogLevel())
		return
	}
	if err := h.deps.Pool.Reset(id); err != nil {
		HandleAPIError(w, r, err, "Failed to reset credential", shared.WithElevatedLogLevel())
		return
	}
	if h.deps.Checker != nil {
		if err := h.deps.Checker.Check(r.Context(), id); err != nil {
			HandleAPIError(w, r, err, "Failed to probe credential", shared.WithElevatedLogLevel())
			return
		}
	}

	log.Info("credential reset", slog.String("credential_id", id))
	for _, c := range h.deps.Pool.Snapshot() {
		if c.ID == id {
			shared.RespondWithJSON(w, r, http.StatusOK, c)
			return
		}
	}
	HandleAPIError(w, r, credential.ErrUnknownCredential, "")
}

// RestartWorkers handles POST /api/admin/workers/restart. The body is
// optional; {"workers": n} also resizes the pool.
func (h *AdminHandler) RestartWorkers(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req WorkersRestartRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil && !errors.Is(err, shared.ErrEmptyBody) {
		HandleAPIError(w, r, errors.Join(domain.ErrValidation, err), "", shared.WithElevatedLogLevel())
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		HandleAPIError(w, r, err, "", shared.WithElevatedLogLevel())
		return
	}

	msg := task.ControlMessage{Kind: task.ControlRestartWorkers, Workers: req.Workers}
	if req.Workers > 0 {
		msg.Kind = task.ControlScaleWorkers
	}
	if err := h.deps.Workers.Control(r.Context(), msg); err != nil {
		HandleAPIError(w, r, err, "Failed to restart workers", shared.WithElevatedLogLevel())
		return
	}

	log.Info("worker restart requested",
		slog.String("kind", msg.Kind.String()),
		slog.Int("workers", msg.Workers))
	workers := msg.Workers
	if workers == 0 {
		workers = h.deps.Workers.Workers()
	}
	shared.RespondWithJSON(w, r, http.StatusAccepted, WorkersResponse{Workers: workers})
}

// ListDeadLetters handles GET /api/admin/dead-letters?limit=n.
func (h *AdminHandler) ListDeadLetters(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			shared.RespondWithError(w, r, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	letters, err := h.deps.DeadLetters.List(r.Context(), limit)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list dead letters")
		return
	}
	resp := make([]DeadLetterResponse, 0, len(letters))
	for _, dl := range letters {
		resp = append(resp, deadLetterToResponse(dl))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}
