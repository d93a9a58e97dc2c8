package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/edupay/internal/domain"
)

const liveRequestTimeout = 10 * time.Second

// LiveConfig — параметры подключения к платёжному провайдеру.
type LiveConfig struct {
	BaseURL string
	// APIKey авторизует исходящие запросы к API провайдера.
	APIKey string
	// WebhookSecret подписывает входящие сигналы. Пустое значение включает
	// режим пониженного доверия (Trust=TrustLow) для локальной разработки.
	WebhookSecret string
	// SuccessURL и CancelURL — адреса возврата покупателя после checkout.
	SuccessURL string
	CancelURL  string
}

// LiveGateway — адаптер реального платёжного провайдера с hosted checkout
// и асинхронными webhook-сигналами.
type LiveGateway struct {
	cfg    LiveConfig
	client *http.Client
	log    *logrus.Entry
}

// NewLiveGateway создаёт live-адаптер.
func NewLiveGateway(cfg LiveConfig, log *logrus.Entry) *LiveGateway {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &LiveGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: liveRequestTimeout},
		log:    log.WithField("component", "gateway.live"),
	}
}

// Name возвращает код адаптера.
func (g *LiveGateway) Name() string {
	return "live"
}

type checkoutSessionRequest struct {
	OrderID     string             `json:"order_id"`
	Customer    string             `json:"customer,omitempty"`
	Currency    string             `json:"currency"`
	AmountMinor int64              `json:"amount_minor"`
	SuccessURL  string             `json:"success_url"`
	CancelURL   string             `json:"cancel_url"`
	LineItems   []checkoutLineItem `json:"line_items"`
}

type checkoutLineItem struct {
	CourseID   string `json:"course_id"`
	Qty        int32  `json:"qty"`
	PriceMinor int64  `json:"price_minor"`
}

type checkoutSessionResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreateCheckoutSession создаёт hosted checkout у провайдера.
func (g *LiveGateway) CreateCheckoutSession(ctx context.Context, order domain.Order, externalCustomerID string) (domain.CheckoutSession, error) {
	req := checkoutSessionRequest{
		OrderID:     order.ID,
		Customer:    externalCustomerID,
		Currency:    order.Currency,
		AmountMinor: order.AmountMinor,
		SuccessURL:  g.cfg.SuccessURL,
		CancelURL:   g.cfg.CancelURL,
		LineItems:   make([]checkoutLineItem, 0, len(order.Items)),
	}
	for _, item := range order.Items {
		req.LineItems = append(req.LineItems, checkoutLineItem{
			CourseID:   item.CourseID,
			Qty:        item.Qty,
			PriceMinor: item.PriceMinor,
		})
	}

	var resp checkoutSessionResponse
	if err := g.post(ctx, "/v1/checkout/sessions", req, &resp); err != nil {
		return domain.CheckoutSession{}, err
	}
	if resp.ID == "" || resp.URL == "" {
		return domain.CheckoutSession{}, fmt.Errorf("provider returned incomplete session: %w", domain.ErrGatewayUnavailable)
	}

	return domain.CheckoutSession{SessionID: resp.ID, RedirectURL: resp.URL}, nil
}

type signalPayload struct {
	Type        string `json:"type"`
	SessionID   string `json:"session_id"`
	AmountMinor int64  `json:"amount_minor"`
	PayerEmail  string `json:"payer_email"`
}

// VerifySignal аутентифицирует webhook-payload по HMAC-SHA256 подписи.
// Проверка подписи идёт до парсинга тела: неподписанный мусор отбрасывается
// без каких-либо побочных эффектов.
func (g *LiveGateway) VerifySignal(payload []byte, signature string) (domain.GatewayEvent, error) {
	trust := domain.TrustLow
	if g.cfg.WebhookSecret != "" {
		mac := hmac.New(sha256.New, []byte(g.cfg.WebhookSecret))
		mac.Write(payload)
		expected := hex.EncodeToString(mac.Sum(nil))
		if !hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature))) {
			return domain.GatewayEvent{}, domain.ErrInvalidSignature
		}
		trust = domain.TrustVerified
	} else {
		g.log.Warn("webhook secret is not configured, accepting unsigned signal")
	}

	var body signalPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return domain.GatewayEvent{}, fmt.Errorf("decode gateway signal: %v: %w", err, domain.ErrMalformedSignal)
	}

	return domain.GatewayEvent{
		Type:        mapEventType(body.Type),
		SessionID:   body.SessionID,
		AmountMinor: body.AmountMinor,
		PayerEmail:  body.PayerEmail,
		Trust:       trust,
	}, nil
}

type sessionStatusResponse struct {
	Paid        bool   `json:"paid"`
	AmountMinor int64  `json:"amount_minor"`
	PayerEmail  string `json:"payer_email"`
}

// RetrieveSession запрашивает у провайдера состояние checkout-сессии.
func (g *LiveGateway) RetrieveSession(ctx context.Context, sessionID string) (domain.SessionStatus, error) {
	var resp sessionStatusResponse
	if err := g.get(ctx, "/v1/checkout/sessions/"+sessionID, &resp); err != nil {
		return domain.SessionStatus{}, err
	}

	return domain.SessionStatus{
		Paid:        resp.Paid,
		AmountMinor: resp.AmountMinor,
		PayerEmail:  resp.PayerEmail,
	}, nil
}

type createCustomerRequest struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
}

type createCustomerResponse struct {
	ID string `json:"id"`
}

// CreateCustomer регистрирует покупателя у провайдера.
func (g *LiveGateway) CreateCustomer(ctx context.Context, userID, email, displayName string) (string, error) {
	var resp createCustomerResponse
	err := g.post(ctx, "/v1/customers", createCustomerRequest{
		UserID: userID,
		Email:  email,
		Name:   displayName,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("provider returned empty customer id: %w", domain.ErrGatewayUnavailable)
	}

	return resp.ID, nil
}

func (g *LiveGateway) post(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return g.do(req, out)
}

func (g *LiveGateway) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}

	return g.do(req, out)
}

func (g *LiveGateway) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		g.log.WithError(err).Warn("gateway request failed")
		return fmt.Errorf("gateway request: %v: %w", err, domain.ErrGatewayUnavailable)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read gateway response: %v: %w", err, domain.ErrGatewayUnavailable)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrOrderNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		g.log.WithField("status", resp.StatusCode).Error("gateway rejected credentials")
		return fmt.Errorf("gateway auth failed (%d): %w", resp.StatusCode, domain.ErrGatewayUnavailable)
	case resp.StatusCode >= 400:
		return fmt.Errorf("gateway responded %d: %s: %w", resp.StatusCode, strings.TrimSpace(string(raw)), domain.ErrGatewayUnavailable)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode gateway response: %w", err)
		}
	}

	return nil
}

var _ domain.PaymentGateway = (*LiveGateway)(nil)
