package httpapi

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vladislavdragonenkov/edupay/internal/domain"
)

type orderItemResponse struct {
	ID         string `json:"id"`
	CourseID   string `json:"course_id"`
	Qty        int32  `json:"qty"`
	PriceMinor int64  `json:"price_minor"`
}

type orderResponse struct {
	ID            string              `json:"id"`
	Status        string              `json:"status"`
	Currency      string              `json:"currency"`
	AmountMinor   int64               `json:"amount_minor"`
	PaymentMethod string              `json:"payment_method,omitempty"`
	PaymentURL    string              `json:"payment_url,omitempty"`
	Items         []orderItemResponse `json:"items"`
	ExpiresAt     time.Time           `json:"expires_at"`
	PaidAt        *time.Time          `json:"paid_at,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

func toOrderResponse(order domain.Order) orderResponse {
	resp := orderResponse{
		ID:            order.ID,
		Status:        string(order.Status),
		Currency:      order.Currency,
		AmountMinor:   order.AmountMinor,
		PaymentMethod: order.PaymentMethod,
		PaymentURL:    order.PaymentURL,
		Items:         make([]orderItemResponse, 0, len(order.Items)),
		ExpiresAt:     order.ExpiresAt,
		PaidAt:        order.PaidAt,
		CreatedAt:     order.CreatedAt,
	}
	for _, item := range order.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ID:         item.ID,
			CourseID:   item.CourseID,
			Qty:        item.Qty,
			PriceMinor: item.PriceMinor,
		})
	}
	return resp
}

type createOrderRequest struct {
	Email string `json:"email,omitempty"`
}

type createDirectOrderRequest struct {
	CourseID string `json:"course_id"`
	Email    string `json:"email,omitempty"`
}

// handleCreateOrder оформляет заказ из корзины. Заголовок Idempotency-Key
// делает запрос безопасным для повторов: одинаковый ключ с одинаковым телом
// возвращает сохранённый ответ, с другим телом — 422.
func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "read request body failed")
		return
	}

	var req createOrderRequest
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	email := req.Email
	if email == "" {
		email = identity.Email
	}

	key := r.Header.Get("Idempotency-Key")
	if key == "" {
		order, err := s.checkout.CreateOrder(r.Context(), identity.UserID, email)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, toOrderResponse(order))
		return
	}

	requestHash := hashRequest(identity.UserID, body)
	record, err := s.idempotency.CreateProcessing(key, requestHash, time.Now().UTC().Add(s.cfg.IdempotencyTTL))
	switch {
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		s.writeDomainError(w, err)
		return
	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
		s.replayIdempotent(w, record, key)
		return
	case err != nil:
		s.writeDomainError(w, err)
		return
	}

	order, err := s.checkout.CreateOrder(r.Context(), identity.UserID, email)
	if err != nil {
		// Ключ помечается failed, чтобы повтор с тем же ключом не завис
		// в processing навсегда; клиент получает живую ошибку.
		if markErr := s.idempotency.MarkFailed(key, nil, 0); markErr != nil {
			s.log.WithError(markErr).WithField("idempotency_key", key).Warn("mark idempotency failed")
		}
		s.writeDomainError(w, err)
		return
	}

	response := toOrderResponse(order)
	encoded, err := json.Marshal(response)
	if err != nil {
		s.log.WithError(err).Warn("encode idempotent response failed")
	} else if markErr := s.idempotency.MarkDone(key, encoded, http.StatusCreated); markErr != nil {
		s.log.WithError(markErr).WithField("idempotency_key", key).Warn("mark idempotency done")
	}

	s.writeJSON(w, http.StatusCreated, response)
}

// replayIdempotent отвечает на повтор запроса с уже известным ключом.
func (s *Server) replayIdempotent(w http.ResponseWriter, record domain.IdempotencyRecord, key string) {
	switch record.Status {
	case domain.IdempotencyStatusDone:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(record.HTTPStatus)
		if _, err := w.Write(record.ResponseBody); err != nil {
			s.log.WithError(err).WithField("idempotency_key", key).Warn("replay idempotent response failed")
		}
	case domain.IdempotencyStatusFailed:
		s.writeError(w, http.StatusConflict, "previous request with this idempotency key failed, retry with a new key")
	default:
		s.writeError(w, http.StatusConflict, "request with this idempotency key is still being processed")
	}
}

func hashRequest(userID string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(userID))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func (s *Server) handleCreateDirectOrder(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	var req createDirectOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	email := req.Email
	if email == "" {
		email = identity.Email
	}

	order, err := s.checkout.CreateDirectOrder(r.Context(), identity.UserID, email, req.CourseID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	orders, err := s.orders.ListByUser(identity.UserID, 0)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	response := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		response = append(response, toOrderResponse(order))
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	order, err := s.loadOwnedOrder(chi.URLParam(r, "orderID"), identity)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, toOrderResponse(order))
}

type confirmOrderResponse struct {
	Order            orderResponse `json:"order"`
	AlreadyProcessed bool          `json:"already_processed"`
	GrantedCourseIDs []string      `json:"granted_course_ids,omitempty"`
}

// handleConfirmOrder — клиентская сверка после возврата со страницы оплаты.
func (s *Server) handleConfirmOrder(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	order, err := s.loadOwnedOrder(chi.URLParam(r, "orderID"), identity)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	result, err := s.engine.Confirm(r.Context(), domain.ByOrderID(order.ID))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, confirmOrderResponse{
		Order:            toOrderResponse(result.Order),
		AlreadyProcessed: result.AlreadyProcessed,
		GrantedCourseIDs: result.GrantedCourseIDs,
	})
}

// loadOwnedOrder возвращает заказ, только если он принадлежит пользователю.
// Чужой заказ неотличим от несуществующего.
func (s *Server) loadOwnedOrder(orderID string, identity Identity) (domain.Order, error) {
	order, err := s.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.UserID != identity.UserID && !identity.Admin {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order, nil
}

type adminGrantRequest struct {
	UserID   string `json:"user_id"`
	CourseID string `json:"course_id"`
	OrderID  string `json:"order_id,omitempty"`
}

type adminGrantResponse struct {
	Created bool `json:"created"`
}

// handleAdminGrant выдаёт доступ к курсу вне платёжного цикла.
func (s *Server) handleAdminGrant(w http.ResponseWriter, r *http.Request) {
	var req adminGrantRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := s.engine.Grant(req.UserID, req.CourseID, req.OrderID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	s.writeJSON(w, status, adminGrantResponse{Created: created})
}
