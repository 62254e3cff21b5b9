package http

import (
	"errors"
	"net/http"

	"github.com/silaprtnw01/webtoon-be-normal-design/internal/auth/service"
	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/authsdk"
	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/httpx"
	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/slogx"
)

// writeServiceError maps a service error to its API error. Every refresh
// failure answers the same invalid_token body so a caller cannot tell a
// reused token from an expired one.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, httpx.ErrBadRequest):
		authsdk.ValidationError(err.Error()).WriteError(w)
	case errors.Is(err, service.ErrInvalidCredentials):
		authsdk.ErrInvalidCredentials.WriteError(w)
	case errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrReuseDetected),
		errors.Is(err, service.ErrExpired),
		errors.Is(err, service.ErrSessionNotFound):
		authsdk.ErrInvalidToken.WriteError(w)
	case errors.Is(err, service.ErrEmailTaken):
		authsdk.ErrEmailTaken.WriteError(w)
	case errors.Is(err, service.ErrSignupDisabled):
		authsdk.ErrSignupDisabled.WriteError(w)
	default:
		slogx.FromContext(r.Context()).Error("request failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
	}
}
