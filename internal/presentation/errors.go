package presentation

import (
	"context"
	"errors"
	"net/http"

	"github.com/RaikyD/blockroute-client/internal/domain"
	"github.com/RaikyD/blockroute-client/internal/logger"
	"github.com/RaikyD/blockroute-client/internal/presentation/helpers"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrConnection):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrRemote):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrInsufficientGeometry):
		return http.StatusUnprocessableEntity
	// the request's own deadline or cancellation, not a fault of ours
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "path", r.URL.Path, "err", err)
		helpers.HttpError(w, status, "internal error")
		return
	}
	logger.Warn("request rejected", "path", r.URL.Path, "status", status, "err", err)
	helpers.HttpError(w, status, err.Error())
}
