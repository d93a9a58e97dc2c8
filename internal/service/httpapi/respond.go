package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vladislavdragonenkov/edupay/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.WithError(err).Warn("encode response failed")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Error: message})
}

// writeDomainError переводит доменные ошибки в HTTP-статусы.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsNotFound(err):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrEmptyCart),
		errors.Is(err, domain.ErrUserRequired),
		errors.Is(err, domain.ErrItemCourseRequired),
		errors.Is(err, domain.ErrItemQtyInvalid):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrSessionNotPaid):
		// Подтверждение конфликтует с фактическим состоянием сессии у
		// провайдера: клиент повторит запрос после оплаты.
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidSignature):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrGatewayUnavailable):
		s.writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.log.WithError(err).Error("internal error")
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}
