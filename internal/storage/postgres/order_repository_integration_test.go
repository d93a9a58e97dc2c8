package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/edupay/internal/domain"
)

func TestOrderRepository_PostgresCreateFromCartGetList(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)
	carts := NewCartRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	seedCourses(t, store, now)

	mustAddCartItem(t, carts, "user-1", "course-go", now.Add(-2*time.Minute))
	mustAddCartItem(t, carts, "user-1", "course-sql", now.Add(-time.Minute))

	order1 := sampleOrder("order-1", "user-1", now.Add(-2*time.Minute))
	if err := repo.CreateFromCart(order1); err != nil {
		t.Fatalf("create order1: %v", err)
	}

	// Корзина очищается в той же транзакции, что и вставка заказа.
	left, err := carts.List("user-1")
	if err != nil {
		t.Fatalf("list cart after checkout: %v", err)
	}
	if len(left) != 0 {
		t.Fatalf("expected empty cart after checkout, got %d items", len(left))
	}

	got, err := repo.Get(order1.ID)
	if err != nil {
		t.Fatalf("get order1: %v", err)
	}
	if got.ID != order1.ID || got.UserID != order1.UserID || got.Status != domain.OrderStatusPending {
		t.Fatalf("unexpected order payload: %+v", got)
	}
	if len(got.Items) != len(order1.Items) {
		t.Fatalf("unexpected items count: got=%d want=%d", len(got.Items), len(order1.Items))
	}
	if got.AmountMinor != 5000 {
		t.Fatalf("unexpected amount: %d", got.AmountMinor)
	}

	bySession, err := repo.GetByRef(domain.BySessionID(order1.SessionID))
	if err != nil {
		t.Fatalf("get by session: %v", err)
	}
	if bySession.ID != order1.ID {
		t.Fatalf("session resolved to wrong order: %s", bySession.ID)
	}

	order2 := sampleOrder("order-2", "user-1", now.Add(-time.Minute))
	if err := repo.CreateFromCart(order2); err != nil {
		t.Fatalf("create order2: %v", err)
	}

	listed, err := repo.ListByUser("user-1", 1)
	if err != nil {
		t.Fatalf("list by user with limit: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != order2.ID {
		t.Fatalf("unexpected list result with limit: %+v", listed)
	}

	all, err := repo.ListByUser("user-1", 0)
	if err != nil {
		t.Fatalf("list by user without limit: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(all))
	}
}

func TestOrderRepository_PostgresNotFound(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)

	if _, err := repo.Get("missing-order"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
	if _, err := repo.GetByRef(domain.BySessionID("missing-session")); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound by session, got %v", err)
	}
	if _, err := repo.GetByRef(domain.OrderRef{}); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound for empty ref, got %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(&pgconn.PgError{Code: "23505"}) {
		t.Fatal("expected unique violation for code 23505")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "22001"}) {
		t.Fatal("unexpected unique violation for non-unique code")
	}
	if isUniqueViolation(errors.New("plain error")) {
		t.Fatal("plain error must not be unique violation")
	}
}

func seedCourses(t *testing.T, store *Store, now time.Time) {
	t.Helper()

	courses := NewCourseRepository(store)
	for _, course := range []domain.Course{
		{ID: "course-go", Title: "Go with Tests", PriceMinor: 3000, Currency: "USD", Published: true, CreatedAt: now},
		{ID: "course-sql", Title: "Practical SQL", PriceMinor: 2000, Currency: "USD", Published: true, CreatedAt: now},
		{ID: "course-draft", Title: "Draft", PriceMinor: 1000, Currency: "USD", Published: false, CreatedAt: now},
	} {
		if err := courses.Save(course); err != nil {
			t.Fatalf("seed course %s: %v", course.ID, err)
		}
	}
}

func mustAddCartItem(t *testing.T, carts domain.CartRepository, userID, courseID string, addedAt time.Time) {
	t.Helper()

	if err := carts.Add(domain.CartItem{UserID: userID, CourseID: courseID, Qty: 1, AddedAt: addedAt}); err != nil {
		t.Fatalf("add cart item %s: %v", courseID, err)
	}
}

func sampleOrder(id, userID string, createdAt time.Time) domain.Order {
	items := []domain.OrderItem{
		{
			ID:         id + "-item-1",
			CourseID:   "course-go",
			Qty:        1,
			PriceMinor: 3000,
			CreatedAt:  createdAt,
		},
		{
			ID:         id + "-item-2",
			CourseID:   "course-sql",
			Qty:        1,
			PriceMinor: 2000,
			CreatedAt:  createdAt,
		},
	}

	return domain.Order{
		ID:            id,
		UserID:        userID,
		Status:        domain.OrderStatusPending,
		Currency:      "USD",
		AmountMinor:   5000,
		PaymentMethod: "card",
		SessionID:     "cs_" + id,
		PaymentURL:    "https://pay.example/" + id,
		Items:         items,
		ExpiresAt:     createdAt.Add(domain.DefaultOrderTTL),
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
}
