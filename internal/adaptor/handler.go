package adaptor

import (
	"encoding/json"
	"errors"
	"net/http"

	"storefront-auth/internal/usecase"
	"storefront-auth/pkg/apperror"
	"storefront-auth/pkg/utils"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	Auth *AuthHandler
	User *UserHandler
}

func NewHandler(service *usecase.Service, log *zap.Logger) *Handler {
	return &Handler{
		Auth: NewAuthHandler(service.Auth, log),
		User: NewUserHandler(service.User, log),
	}
}

// decodeJSON reads the body into dst and writes a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return false
	}
	return true
}

// handleServiceError maps typed service errors onto the response envelope.
// Anything untyped is logged and reported as a bare 500.
func handleServiceError(log *zap.Logger, w http.ResponseWriter, err error, operation string) {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		log.Error("Failed to "+operation, zap.Error(err), zap.String("operation", operation))
		utils.ResponseInternalError(w)
		return
	}

	switch appErr.Kind {
	case apperror.KindInternal, apperror.KindUpstreamDelivery:
		log.Error("Failed to "+operation, zap.Error(err), zap.String("operation", operation))
	default:
		log.Warn(operation+" failed",
			zap.String("code", string(appErr.Kind)),
			zap.String("msg", appErr.Msg))
	}

	utils.ResponseAppError(w, appErr)
}
