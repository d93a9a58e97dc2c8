package domain

import "time"

// EnrollmentStatus описывает состояние доступа пользователя к курсу.
type EnrollmentStatus string

const (
	// EnrollmentStatusActive — доступ выдан, курс в процессе прохождения.
	EnrollmentStatusActive EnrollmentStatus = "active"
	// EnrollmentStatusCompleted — курс пройден полностью.
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
)

// Enrollment — долговременное подтверждение доступа пользователя к курсу.
// Для каждой пары (UserID, CourseID) существует не более одной записи; это
// центральный инвариант системы, его охраняют и схема БД, и fulfillment engine.
type Enrollment struct {
	ID     string
	UserID string
	// CourseID — курс, к которому выдан доступ.
	CourseID string
	// OrderID пуст для доступов, выданных администратором вне платёжного цикла.
	OrderID         string
	Status          EnrollmentStatus
	ProgressPercent int32
	StartedAt       time.Time
	CompletedAt     *time.Time
	CertificateURL  string
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentStatusActive, EnrollmentStatusCompleted:
		return true
	default:
		return false
	}
}
