package domain

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// CreateFromCart атомарно, в одной транзакции: сохраняет заказ с позициями
	// и удаляет соответствующие строки корзины пользователя. Любая ошибка
	// откатывает всё целиком — корзина остаётся нетронутой, заказ не создаётся.
	CreateFromCart(order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound.
	Get(id string) (Order, error)
	// GetByRef резолвит заказ по его ID либо по ID checkout-сессии.
	GetByRef(ref OrderRef) (Order, error)
	// ListByUser возвращает заказы пользователя, новые первыми.
	ListByUser(userID string, limit int) ([]Order, error)
}

// FulfillmentResult — итог попытки исполнения заказа.
type FulfillmentResult struct {
	Order Order
	// AlreadyProcessed: заказ уже не был pending, побочных эффектов нет.
	// Это штатный идемпотентный исход, не ошибка.
	AlreadyProcessed bool
	// GrantedCourseIDs — курсы, по которым в этом вызове созданы enrollments.
	GrantedCourseIDs []string
}

// FulfillmentStore — транзакционное ядро исполнения заказа. Обе реализации
// (postgres, memory) обязаны сериализовать конкурирующие вызовы по одному
// заказу: ровно один наблюдает pending и выполняет мутации, остальные
// получают AlreadyProcessed.
type FulfillmentStore interface {
	// Complete в одной транзакции под эксклюзивной блокировкой строки заказа:
	// проверяет статус, переводит pending → completed, создаёт недостающие
	// enrollments с инкрементом счётчиков курсов и вычищает остатки корзины.
	Complete(ref OrderRef) (FulfillmentResult, error)
	// Grant выдаёт доступ вне платёжного цикла (административный override).
	// Возвращает created=false без каких-либо мутаций, если доступ уже есть.
	Grant(userID, courseID, orderID string) (created bool, err error)
}

// CartRepository описывает корзину пользователя.
type CartRepository interface {
	// List возвращает позиции корзины в порядке добавления.
	List(userID string) ([]CartItem, error)
	// Add добавляет курс в корзину либо обновляет количество (upsert).
	Add(item CartItem) error
	// Remove удаляет курс из корзины; отсутствие позиции не считается ошибкой.
	Remove(userID, courseID string) error
}

// CourseCatalog — читающий доступ ядра к каталогу курсов.
type CourseCatalog interface {
	// Get возвращает курс по идентификатору или ErrCourseNotFound.
	Get(id string) (Course, error)
	// PublishedByIDs возвращает только опубликованные курсы из запрошенных;
	// недоступные молча отфильтровываются.
	PublishedByIDs(ids []string) ([]Course, error)
}

// EnrollmentRepository — читающий доступ к выданным доступам.
type EnrollmentRepository interface {
	// GetByUserCourse возвращает запись или ErrEnrollmentNotFound.
	GetByUserCourse(userID, courseID string) (Enrollment, error)
	// ListByUser возвращает все доступы пользователя.
	ListByUser(userID string) ([]Enrollment, error)
}

// CustomerRepository хранит соответствие пользователь → внешний customer id.
type CustomerRepository interface {
	// Get возвращает запись или ErrCustomerNotFound.
	Get(userID string) (GatewayCustomer, error)
	// Save сохраняет соответствие. При гонке двух вызовов для одного
	// пользователя выживает первая запись, Save возвращает её без ошибки.
	Save(rec GatewayCustomer) (GatewayCustomer, error)
}
