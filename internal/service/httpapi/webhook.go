package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/vladislavdragonenkov/edupay/internal/domain"
)

type webhookResponse struct {
	Received bool `json:"received"`
	Handled  bool `json:"handled"`
}

// handlePaymentWebhook принимает асинхронные сигналы платёжного провайдера.
// Подпись проверяется до любых изменений состояния. Not-found отдаётся
// не-2xx статусом: провайдер повторит доставку, и сигнал, пришедший раньше
// записи заказа, в итоге будет обработан.
func (s *Server) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "read request body failed")
		return
	}

	_, handled, err := s.engine.ProcessSignal(payload, r.Header.Get(s.cfg.SignatureHeader))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidSignature), errors.Is(err, domain.ErrMalformedSignal):
			// Перманентно плохой payload: 4xx останавливает ретраи провайдера.
			s.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrOrderNotFound):
			s.writeError(w, http.StatusNotFound, err.Error())
		default:
			s.log.WithError(err).Error("webhook processing failed")
			s.writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	s.writeJSON(w, http.StatusOK, webhookResponse{Received: true, Handled: handled})
}
