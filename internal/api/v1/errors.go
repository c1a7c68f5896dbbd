package v1

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/prime/internal/domain"
	"github.com/gosuda/prime/internal/server/middleware"
)

func currentUser(ctx context.Context) (domain.User, error) {
	u, ok := middleware.UserFromContext(ctx)
	if !ok {
		return domain.User{}, huma.Error401Unauthorized("missing caller identity")
	}
	return u, nil
}

// toHTTPError maps domain errors onto API status codes.
func toHTTPError(err error, msg string) error {
	switch {
	case errors.Is(err, domain.ErrPermissionDenied):
		return huma.Error403Forbidden("permission denied")
	case errors.Is(err, domain.ErrNotFound):
		return huma.Error404NotFound(msg + ": not found")
	case errors.Is(err, domain.ErrInvalidTransition):
		return huma.Error409Conflict(msg + ": invalid status transition")
	case errors.Is(err, domain.ErrConflict):
		return huma.Error409Conflict(msg + ": concurrent update")
	default:
		log.Error().Err(err).Msg(msg)
		return huma.Error500InternalServerError(msg)
	}
}
