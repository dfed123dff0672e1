package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/phrazzld/vidscribe/internal/api/shared"
	"github.com/phrazzld/vidscribe/internal/domain"
	"github.com/phrazzld/vidscribe/internal/platform/logger"
	"github.com/phrazzld/vidscribe/internal/service"
)

// ResourceHandler serves the transcript and summary endpoints.
type ResourceHandler struct {
	resources service.ResourceService
	logger    *slog.Logger
}

// NewResourceHandler creates a new ResourceHandler
func NewResourceHandler(resources service.ResourceService, logger *slog.Logger) *ResourceHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for ResourceHandler")
	}
	return &ResourceHandler{
		resources: resources,
		logger:    logger.With(slog.String("component", "resource_handler")),
	}
}

type requestFunc func(ctx context.Context, videoID, language string) (*domain.Resource, service.Outcome, error)

// RequestTranscript handles POST /api/videos/{videoID}/transcript.
func (h *ResourceHandler) RequestTranscript(w http.ResponseWriter, r *http.Request) {
	h.request(w, r, domain.KindTranscript, h.resources.RequestTranscript)
}

// RequestSummary handles POST /api/videos/{videoID}/summary.
func (h *ResourceHandler) RequestSummary(w http.ResponseWriter, r *http.Request) {
	h.request(w, r, domain.KindSummary, h.resources.RequestSummary)
}

func (h *ResourceHandler) request(w http.ResponseWriter, r *http.Request, kind domain.ResourceKind, fn requestFunc) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	videoID, err := getPathParam(r, ParamVideoID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	req, err := decodeResourceRequest(w, r)
	if err != nil {
		log.Debug("invalid resource request", slog.String("video_id", videoID), slog.String("error", err.Error()))
		HandleAPIError(w, r, err, "")
		return
	}

	res, outcome, err := fn(r.Context(), videoID, req.Language)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to request "+string(kind))
		return
	}

	log.Debug("resource requested",
		slog.String("record_id", res.ID.String()),
		slog.String("kind", string(kind)),
		slog.String("outcome", string(outcome)))
	shared.RespondWithJSON(w, r, outcomeStatus(outcome), resourceToResponse(res))
}

// GetTranscript handles GET /api/videos/{videoID}/transcript?language=xx.
func (h *ResourceHandler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	h.get(w, r, domain.KindTranscript)
}

// GetSummary handles GET /api/videos/{videoID}/summary?language=xx.
func (h *ResourceHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	h.get(w, r, domain.KindSummary)
}

func (h *ResourceHandler) get(w http.ResponseWriter, r *http.Request, kind domain.ResourceKind) {
	fp, err := queryFingerprint(r, kind)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	res, err := h.resources.Get(r.Context(), fp)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get "+string(kind))
		return
	}
	shared.RespondWithJSON(w, r, resourceStatusCode(res.Status), resourceToResponse(res))
}

// Restart handles POST /api/videos/{videoID}/{kind}/restart. Only records
// in error can be restarted; anything else is a 409.
func (h *ResourceHandler) Restart(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	kind, err := getPathKind(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	videoID, err := getPathParam(r, ParamVideoID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	req, err := decodeResourceRequest(w, r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	fp, err := domain.NewFingerprint(kind, videoID, req.Language)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	res, err := h.resources.Restart(r.Context(), fp)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to restart "+string(kind))
		return
	}

	log.Info("resource restarted",
		slog.String("record_id", res.ID.String()),
		slog.String("fingerprint", fp.String()))
	shared.RespondWithJSON(w, r, http.StatusAccepted, resourceToResponse(res))
}

// outcomeStatus maps a request outcome to its status code. A failed record
// is still a successful lookup, so it is a 200 carrying status "error".
func outcomeStatus(outcome service.Outcome) int {
	switch outcome {
	case service.OutcomeAccepted, service.OutcomeNotReady:
		return http.StatusAccepted
	default:
		return http.StatusOK
	}
}

func resourceStatusCode(status domain.ResourceStatus) int {
	if status.Terminal() {
		return http.StatusOK
	}
	return http.StatusAccepted
}
