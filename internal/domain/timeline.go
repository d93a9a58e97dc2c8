package domain

import "time"

// TimelineEvent — запись аудита жизненного цикла заказа: order.created
// при оформлении, order.completed при исполнении. Reason фиксирует
// триггер перехода (webhook, confirm, admin).
type TimelineEvent struct {
	OrderID  string
	Type     string
	Reason   string
	Occurred time.Time
}
