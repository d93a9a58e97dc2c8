package domain

import "time"

// Course — запись каталога курсов. Каталог ведётся внешней подсистемой;
// ядро читает цену и признак доступности и инкрементирует счётчик студентов.
type Course struct {
	ID         string
	Title      string
	PriceMinor int64
	Currency   string
	// Published управляет доступностью для покупки. Неопубликованный курс
	// молча выпадает из корзины при оформлении заказа.
	Published bool
	// StudentsCount растёт ровно на единицу на каждого пользователя,
	// когда-либо получившего доступ к курсу.
	StudentsCount int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
