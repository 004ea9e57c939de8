package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sadman-arif/consultpay/internal/model"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps domain errors onto HTTP codes. Everything unrecognized is a
// 500 with a generic body; internals never leak to the client.
func writeErr(w http.ResponseWriter, logger *slog.Logger, err error) {
	var (
		verr *model.ValidationError
		terr *model.StateTransitionError
		gerr *model.GatewayError
	)
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Error()})
	case errors.Is(err, model.ErrInvalidRange):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, model.ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
	case errors.Is(err, model.ErrUnauthorized), errors.Is(err, model.ErrNotOwner):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
	case errors.Is(err, model.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, model.ErrConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.As(err, &terr):
		writeJSON(w, http.StatusConflict, map[string]string{"error": terr.Error()})
	case errors.Is(err, model.ErrAlreadyPaid):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, model.ErrInsufficientFunds):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.As(err, &gerr):
		logger.Error("payment gateway error", "op", gerr.Op, "err", gerr.Err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "payment gateway unavailable"})
	default:
		logger.Error("internal error", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
