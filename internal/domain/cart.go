package domain

import "time"

// CartItem — позиция корзины пользователя. Создаётся при добавлении курса,
// удаляется при явном удалении либо целиком вычищается фабрикой заказов
// при оформлении покупки.
type CartItem struct {
	UserID   string
	CourseID string
	Qty      int32
	AddedAt  time.Time
}
