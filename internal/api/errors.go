package api

import (
	"errors"
	"net/http"

	"github.com/siminyang/aboutxtime/internal/api/respond"
	"github.com/siminyang/aboutxtime/internal/delivery"
	"github.com/siminyang/aboutxtime/internal/model"
)

// writeServiceError maps domain errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var verr *delivery.ValidationError
	var uerr *delivery.UploadError
	switch {
	case errors.As(err, &verr):
		respond.WriteBadRequest(w, verr.Error())
	case errors.As(err, &uerr):
		respond.WriteError(w, http.StatusBadGateway, uerr.Error())
	case errors.Is(err, model.ErrValidation):
		respond.WriteBadRequest(w, err.Error())
	case errors.Is(err, model.ErrNotFound):
		respond.WriteNotFound(w, err.Error())
	case errors.Is(err, model.ErrCapsuleLocked), errors.Is(err, model.ErrConflict):
		respond.WriteConflict(w, err.Error())
	default:
		respond.WriteInternalError(w, err.Error())
	}
}
