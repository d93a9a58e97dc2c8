package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/vladislavdragonenkov/edupay/internal/domain"
	"github.com/vladislavdragonenkov/edupay/internal/metrics"
	"github.com/vladislavdragonenkov/edupay/internal/service/checkout"
	"github.com/vladislavdragonenkov/edupay/internal/service/fulfillment"
	"github.com/vladislavdragonenkov/edupay/internal/service/gateway"
	"github.com/vladislavdragonenkov/edupay/internal/storage/memory"
)

type apiFixture struct {
	server *Server
	router chi.Router
	mock   *gateway.MockGateway
	store  *memory.Store
}

func newAPIFixture(t *testing.T, cfg Config) *apiFixture {
	t.Helper()

	store := memory.NewStore()
	orders := memory.NewOrderRepository(store)
	carts := memory.NewCartRepository(store)
	courses := memory.NewCourseRepository(store)
	customers := memory.NewCustomerRepository(store)
	enrollments := memory.NewEnrollmentRepository(store)
	outbox := memory.NewOutboxRepository(store)
	timeline := memory.NewTimelineRepository(store)
	idempotency := memory.NewIdempotencyRepository(store)
	mock := gateway.NewMockGateway()
	purchaseMetrics := metrics.NewPurchaseMetrics()

	checkoutSvc := checkout.NewService(
		orders, carts, courses, mock,
		gateway.NewCustomerDirectory(mock, customers, nil),
		outbox, timeline, purchaseMetrics, nil,
	)
	engine := fulfillment.NewEngine(
		memory.NewFulfillmentStore(store), orders, mock,
		outbox, timeline, purchaseMetrics, nil,
	)

	server := NewServer(cfg, checkoutSvc, engine, orders, carts, courses, enrollments, idempotency, nil)

	for _, course := range []domain.Course{
		{ID: "course-go", Title: "Go with Tests", PriceMinor: 3000, Currency: "USD", Published: true},
		{ID: "course-sql", Title: "Practical SQL", PriceMinor: 2000, Currency: "USD", Published: true},
		{ID: "course-draft", Title: "Draft", PriceMinor: 1000, Currency: "USD", Published: false},
	} {
		if err := courses.Save(course); err != nil {
			t.Fatalf("seed course %s: %v", course.ID, err)
		}
	}

	return &apiFixture{
		server: server,
		router: server.Router(),
		mock:   mock,
		store:  store,
	}
}

func (f *apiFixture) do(t *testing.T, method, path, userID string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode request body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
		req.Header.Set("X-User-Email", userID+"@edu.local")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	recorder := httptest.NewRecorder()
	f.router.ServeHTTP(recorder, req)
	return recorder
}

func decodeBody[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()

	var value T
	if err := json.Unmarshal(recorder.Body.Bytes(), &value); err != nil {
		t.Fatalf("decode response %q: %v", recorder.Body.String(), err)
	}
	return value
}

func TestServer_PurchaseFlow(t *testing.T) {
	f := newAPIFixture(t, Config{})

	for _, courseID := range []string{"course-go", "course-sql"} {
		rec := f.do(t, http.MethodPost, "/api/v1/cart/items", "user-1", addCartItemRequest{CourseID: courseID}, nil)
		if rec.Code != http.StatusCreated {
			t.Fatalf("add cart item %s: status %d: %s", courseID, rec.Code, rec.Body.String())
		}
	}

	rec := f.do(t, http.MethodGet, "/api/v1/cart", "user-1", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get cart: status %d", rec.Code)
	}
	if cart := decodeBody[[]cartItemResponse](t, rec); len(cart) != 2 {
		t.Fatalf("unexpected cart: %+v", cart)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/orders", "user-1", nil, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create order: status %d: %s", rec.Code, rec.Body.String())
	}
	order := decodeBody[orderResponse](t, rec)
	if order.Status != "pending" || order.AmountMinor != 5000 || len(order.Items) != 2 {
		t.Fatalf("unexpected order: %+v", order)
	}
	if order.PaymentURL == "" {
		t.Fatal("payment url must be present")
	}

	// Корзина очищена заказом.
	rec = f.do(t, http.MethodGet, "/api/v1/cart", "user-1", nil, nil)
	if cart := decodeBody[[]cartItemResponse](t, rec); len(cart) != 0 {
		t.Fatalf("cart must be empty after checkout: %+v", cart)
	}

	// Провайдер сигналит об оплате.
	signal := `{"type":"checkout.completed","session_id":"mock_cs_` + order.ID + `","amount_minor":5000}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment", strings.NewReader(signal))
	recorder := httptest.NewRecorder()
	f.router.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("webhook: status %d: %s", recorder.Code, recorder.Body.String())
	}
	if resp := decodeBody[webhookResponse](t, recorder); !resp.Handled {
		t.Fatalf("webhook must be handled: %+v", resp)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/orders/"+order.ID, "user-1", nil, nil)
	if got := decodeBody[orderResponse](t, rec); got.Status != "completed" || got.PaidAt == nil {
		t.Fatalf("order must be completed: %+v", got)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/enrollments", "user-1", nil, nil)
	if enrollments := decodeBody[[]enrollmentResponse](t, rec); len(enrollments) != 2 {
		t.Fatalf("expected 2 enrollments, got %+v", enrollments)
	}

	// Повторная доставка того же сигнала — штатный no-op.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment", strings.NewReader(signal))
	recorder = httptest.NewRecorder()
	f.router.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("repeated webhook: status %d", recorder.Code)
	}
}

func TestServer_WebhookMalformedPayload(t *testing.T) {
	f := newAPIFixture(t, Config{})

	// Нечитаемое тело не станет валидным от повторов: провайдер должен
	// получить 4xx и прекратить доставку, а не ретраить 500 вечно.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment", strings.NewReader("not-json{"))
	recorder := httptest.NewRecorder()
	f.router.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed payload, got %d: %s", recorder.Code, recorder.Body.String())
	}
}

func TestServer_CreateOrderIdempotency(t *testing.T) {
	f := newAPIFixture(t, Config{})

	rec := f.do(t, http.MethodPost, "/api/v1/cart/items", "user-2", addCartItemRequest{CourseID: "course-go"}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add cart item: status %d", rec.Code)
	}

	headers := map[string]string{"Idempotency-Key": "key-1"}
	rec = f.do(t, http.MethodPost, "/api/v1/orders", "user-2", nil, headers)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create order: status %d: %s", rec.Code, rec.Body.String())
	}
	first := decodeBody[orderResponse](t, rec)

	// Повтор с тем же ключом возвращает сохранённый ответ, заказ один.
	rec = f.do(t, http.MethodPost, "/api/v1/orders", "user-2", nil, headers)
	if rec.Code != http.StatusCreated {
		t.Fatalf("idempotent replay: status %d: %s", rec.Code, rec.Body.String())
	}
	if replay := decodeBody[orderResponse](t, rec); replay.ID != first.ID {
		t.Fatalf("replay must return the original order: %s != %s", replay.ID, first.ID)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/orders", "user-2", nil, nil)
	if orders := decodeBody[[]orderResponse](t, rec); len(orders) != 1 {
		t.Fatalf("exactly one order must exist, got %d", len(orders))
	}

	// Тот же ключ с другим телом — конфликт использования.
	rec = f.do(t, http.MethodPost, "/api/v1/orders", "user-2", createOrderRequest{Email: "other@edu.local"}, headers)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for hash mismatch, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestServer_CreateOrderEmptyCart(t *testing.T) {
	f := newAPIFixture(t, Config{})

	rec := f.do(t, http.MethodPost, "/api/v1/orders", "user-3", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty cart, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestServer_ConfirmOrder(t *testing.T) {
	f := newAPIFixture(t, Config{})

	rec := f.do(t, http.MethodPost, "/api/v1/orders/direct", "user-4", createDirectOrderRequest{CourseID: "course-go"}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create direct order: status %d: %s", rec.Code, rec.Body.String())
	}
	order := decodeBody[orderResponse](t, rec)

	f.mock.SessionPaid = false
	rec = f.do(t, http.MethodPost, "/api/v1/orders/"+order.ID+"/confirm", "user-4", nil, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for unpaid session, got %d", rec.Code)
	}

	f.mock.SessionPaid = true
	rec = f.do(t, http.MethodPost, "/api/v1/orders/"+order.ID+"/confirm", "user-4", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm: status %d: %s", rec.Code, rec.Body.String())
	}
	confirm := decodeBody[confirmOrderResponse](t, rec)
	if confirm.AlreadyProcessed || confirm.Order.Status != "completed" || len(confirm.GrantedCourseIDs) != 1 {
		t.Fatalf("unexpected confirm response: %+v", confirm)
	}

	// Чужой заказ неотличим от несуществующего.
	rec = f.do(t, http.MethodPost, "/api/v1/orders/"+order.ID+"/confirm", "user-other", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign order, got %d", rec.Code)
	}
}

func TestServer_CartValidation(t *testing.T) {
	f := newAPIFixture(t, Config{})

	rec := f.do(t, http.MethodPost, "/api/v1/cart/items", "user-5", addCartItemRequest{CourseID: "missing"}, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown course, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/cart/items", "user-5", addCartItemRequest{CourseID: "course-draft"}, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for unpublished course, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodDelete, "/api/v1/cart/items/course-go", "user-5", nil, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("remove absent cart item must be 204, got %d", rec.Code)
	}
}

func TestServer_AdminGrant(t *testing.T) {
	f := newAPIFixture(t, Config{})

	body := adminGrantRequest{UserID: "user-6", CourseID: "course-go"}

	rec := f.do(t, http.MethodPost, "/api/v1/admin/enrollments", "user-6", body, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without admin flag, got %d", rec.Code)
	}

	admin := map[string]string{"X-Admin": "true"}
	rec = f.do(t, http.MethodPost, "/api/v1/admin/enrollments", "admin-1", body, admin)
	if rec.Code != http.StatusCreated {
		t.Fatalf("admin grant: status %d: %s", rec.Code, rec.Body.String())
	}
	if resp := decodeBody[adminGrantResponse](t, rec); !resp.Created {
		t.Fatalf("first grant must create: %+v", resp)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/admin/enrollments", "admin-1", body, admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("repeat grant: status %d", rec.Code)
	}
	if resp := decodeBody[adminGrantResponse](t, rec); resp.Created {
		t.Fatalf("repeat grant must be a no-op: %+v", resp)
	}
}

func TestServer_AuthDevMode(t *testing.T) {
	f := newAPIFixture(t, Config{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	recorder := httptest.NewRecorder()
	f.router.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", recorder.Code)
	}
}

func TestServer_AuthJWT(t *testing.T) {
	const secret = "test-secret"
	f := newAPIFixture(t, Config{JWTSecret: secret})

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "user-7",
		"email": "u7@edu.local",
		"admin": false,
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	recorder := httptest.NewRecorder()
	f.router.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("jwt auth: status %d: %s", recorder.Code, recorder.Body.String())
	}

	// Заголовки dev-режима при включённом JWT не принимаются.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("X-User-ID", "user-7")
	recorder = httptest.NewRecorder()
	f.router.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for dev headers in jwt mode, got %d", recorder.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	recorder = httptest.NewRecorder()
	f.router.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for malformed token, got %d", recorder.Code)
	}
}

func TestServer_GetCourse(t *testing.T) {
	f := newAPIFixture(t, Config{})

	rec := f.do(t, http.MethodGet, "/api/v1/courses/course-go", "user-8", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get course: status %d", rec.Code)
	}
	if course := decodeBody[courseResponse](t, rec); course.PriceMinor != 3000 || !course.Published {
		t.Fatalf("unexpected course: %+v", course)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/courses/missing", "user-8", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
