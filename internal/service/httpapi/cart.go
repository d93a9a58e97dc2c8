package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vladislavdragonenkov/edupay/internal/domain"
)

type courseResponse struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	PriceMinor    int64  `json:"price_minor"`
	Currency      string `json:"currency"`
	Published     bool   `json:"published"`
	StudentsCount int64  `json:"students_count"`
}

func (s *Server) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	course, err := s.catalog.Get(chi.URLParam(r, "courseID"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, courseResponse{
		ID:            course.ID,
		Title:         course.Title,
		PriceMinor:    course.PriceMinor,
		Currency:      course.Currency,
		Published:     course.Published,
		StudentsCount: course.StudentsCount,
	})
}

type cartItemResponse struct {
	CourseID string    `json:"course_id"`
	Qty      int32     `json:"qty"`
	AddedAt  time.Time `json:"added_at"`
}

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	items, err := s.carts.List(identity.UserID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	response := make([]cartItemResponse, 0, len(items))
	for _, item := range items {
		response = append(response, cartItemResponse{
			CourseID: item.CourseID,
			Qty:      item.Qty,
			AddedAt:  item.AddedAt,
		})
	}
	s.writeJSON(w, http.StatusOK, response)
}

type addCartItemRequest struct {
	CourseID string `json:"course_id"`
	Qty      int32  `json:"qty,omitempty"`
}

func (s *Server) handleAddCartItem(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	var req addCartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Qty <= 0 {
		req.Qty = 1
	}

	// Курс проверяется в момент добавления; повторная проверка доступности
	// происходит при оформлении заказа.
	course, err := s.catalog.Get(req.CourseID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if !course.Published {
		s.writeError(w, http.StatusConflict, "course is not available for purchase")
		return
	}

	if err := s.carts.Add(domain.CartItem{
		UserID:   identity.UserID,
		CourseID: req.CourseID,
		Qty:      req.Qty,
	}); err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, cartItemResponse{
		CourseID: req.CourseID,
		Qty:      req.Qty,
		AddedAt:  time.Now().UTC(),
	})
}

func (s *Server) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	if err := s.carts.Remove(identity.UserID, chi.URLParam(r, "courseID")); err != nil {
		s.writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type enrollmentResponse struct {
	ID              string     `json:"id"`
	CourseID        string     `json:"course_id"`
	OrderID         string     `json:"order_id,omitempty"`
	Status          string     `json:"status"`
	ProgressPercent int32      `json:"progress_percent"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CertificateURL  string     `json:"certificate_url,omitempty"`
}

func (s *Server) handleListEnrollments(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	enrollments, err := s.enrollments.ListByUser(identity.UserID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	response := make([]enrollmentResponse, 0, len(enrollments))
	for _, enrollment := range enrollments {
		response = append(response, enrollmentResponse{
			ID:              enrollment.ID,
			CourseID:        enrollment.CourseID,
			OrderID:         enrollment.OrderID,
			Status:          string(enrollment.Status),
			ProgressPercent: enrollment.ProgressPercent,
			StartedAt:       enrollment.StartedAt,
			CompletedAt:     enrollment.CompletedAt,
			CertificateURL:  enrollment.CertificateURL,
		})
	}
	s.writeJSON(w, http.StatusOK, response)
}
