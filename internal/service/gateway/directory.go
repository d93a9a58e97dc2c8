package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/edupay/internal/domain"
)

// CustomerDirectory лениво сопоставляет пользователей платформы с
// покупателями у платёжного провайдера.
type CustomerDirectory struct {
	gateway   domain.PaymentGateway
	customers domain.CustomerRepository
	log       *logrus.Entry
}

// NewCustomerDirectory создаёт директорию покупателей.
func NewCustomerDirectory(gw domain.PaymentGateway, customers domain.CustomerRepository, log *logrus.Entry) *CustomerDirectory {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &CustomerDirectory{
		gateway:   gw,
		customers: customers,
		log:       log.WithField("component", "gateway.directory"),
	}
}

// EnsureCustomer возвращает внешний customer id пользователя, регистрируя
// его у провайдера при первом обращении. Гонку двух регистраций разрешает
// репозиторий: выигрывает первая запись, дубль у провайдера безвреден.
func (d *CustomerDirectory) EnsureCustomer(ctx context.Context, userID, email, displayName string) (string, error) {
	if userID == "" {
		return "", domain.ErrUserRequired
	}

	existing, err := d.customers.Get(userID)
	if err == nil {
		return existing.ExternalCustomerID, nil
	}
	if !errors.Is(err, domain.ErrCustomerNotFound) {
		return "", fmt.Errorf("lookup gateway customer: %w", err)
	}

	externalID, err := d.gateway.CreateCustomer(ctx, userID, email, displayName)
	if err != nil {
		return "", fmt.Errorf("create gateway customer: %w", err)
	}

	saved, err := d.customers.Save(domain.GatewayCustomer{
		UserID:             userID,
		ExternalCustomerID: externalID,
	})
	if err != nil {
		return "", fmt.Errorf("save gateway customer: %w", err)
	}

	if saved.ExternalCustomerID != externalID {
		d.log.WithFields(logrus.Fields{
			"user_id": userID,
			"kept":    saved.ExternalCustomerID,
			"orphan":  externalID,
		}).Warn("concurrent customer registration, keeping first record")
	}

	return saved.ExternalCustomerID, nil
}
