package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/vidscribe/internal/api/shared"
	"github.com/phrazzld/vidscribe/internal/domain"
)

// Path parameter names shared by the router and the handlers.
const (
	ParamVideoID      = "videoID"
	ParamKind         = "kind"
	ParamCredentialID = "credentialID"
)

// getPathParam extracts a required, non-blank path parameter.
func getPathParam(r *http.Request, name string) (string, error) {
	value := strings.TrimSpace(chi.URLParam(r, name))
	if value == "" {
		return "", fmt.Errorf("%w: %s is required", domain.ErrValidation, name)
	}
	return value, nil
}

// getPathKind extracts the resource kind from the path.
func getPathKind(r *http.Request) (domain.ResourceKind, error) {
	raw, err := getPathParam(r, ParamKind)
	if err != nil {
		return "", err
	}
	kind := domain.ResourceKind(strings.ToLower(raw))
	if !kind.Valid() {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidKind, raw)
	}
	return kind, nil
}

// decodeResourceRequest reads and validates the language body.
func decodeResourceRequest(w http.ResponseWriter, r *http.Request) (ResourceRequest, error) {
	var req ResourceRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		return req, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	if err := shared.ValidateRequest(&req); err != nil {
		return req, err
	}
	return req, nil
}

// queryFingerprint builds the fingerprint of a GET request from the path
// and the language query parameter.
func queryFingerprint(r *http.Request, kind domain.ResourceKind) (domain.Fingerprint, error) {
	videoID, err := getPathParam(r, ParamVideoID)
	if err != nil {
		return domain.Fingerprint{}, err
	}
	language := r.URL.Query().Get("language")
	if language == "" {
		return domain.Fingerprint{}, fmt.Errorf("%w: language query parameter is required", domain.ErrValidation)
	}
	return domain.NewFingerprint(kind, videoID, language)
}
