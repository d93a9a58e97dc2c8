package domain

import "time"

// GatewayCustomer связывает пользователя с идентификатором клиента у платёжного
// провайдера. Создаётся лениво при первой попытке checkout и кэшируется, чтобы
// провайдера никогда не просили создать вторую идентичность для того же пользователя.
type GatewayCustomer struct {
	UserID             string
	ExternalCustomerID string
	CreatedAt          time.Time
}
