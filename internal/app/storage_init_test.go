package app

import (
	"context"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestInitRuntimeDependencies_Memory(t *testing.T) {
	logger := log.WithField("test", "storage")

	deps, err := initRuntimeDependencies(context.Background(), Config{StorageDriver: StorageDriverMemory}, logger)
	if err != nil {
		t.Fatalf("memory driver must not fail: %v", err)
	}

	if deps.orders == nil || deps.fulfillment == nil || deps.carts == nil ||
		deps.catalog == nil || deps.customers == nil || deps.enrollments == nil ||
		deps.outboxRepo == nil || deps.timelineRepo == nil || deps.idempotencyRepo == nil {
		t.Fatalf("all repositories must be initialized: %+v", deps)
	}

	if deps.pingStorage != nil {
		t.Error("memory driver must not expose a storage ping")
	}
	if deps.closeStorage != nil {
		t.Error("memory driver must not expose a storage close")
	}
}

func TestInitRuntimeDependencies_PostgresWithoutDSN(t *testing.T) {
	logger := log.WithField("test", "storage")

	_, err := initRuntimeDependencies(context.Background(), Config{StorageDriver: StorageDriverPostgres}, logger)
	if err == nil {
		t.Fatal("expected error for missing DSN")
	}
	if !strings.Contains(err.Error(), "DSN") {
		t.Fatalf("error must mention DSN: %v", err)
	}
}

func TestInitRuntimeDependencies_UnsupportedDriver(t *testing.T) {
	logger := log.WithField("test", "storage")

	_, err := initRuntimeDependencies(context.Background(), Config{StorageDriver: "cassandra"}, logger)
	if err == nil {
		t.Fatal("expected error for unsupported driver")
	}
	if !strings.Contains(err.Error(), "cassandra") {
		t.Fatalf("error must name the driver: %v", err)
	}
}

func TestInitPaymentGateway(t *testing.T) {
	logger := log.WithField("test", "gateway")

	gw, err := initPaymentGateway(Config{GatewayDriver: GatewayDriverMock}, logger)
	if err != nil || gw == nil {
		t.Fatalf("mock gateway: gw=%v err=%v", gw, err)
	}
	if gw.Name() != "mock" {
		t.Errorf("unexpected gateway name: %s", gw.Name())
	}

	// Пустой драйвер — mock по умолчанию.
	gw, err = initPaymentGateway(Config{}, logger)
	if err != nil || gw == nil {
		t.Fatalf("default gateway: gw=%v err=%v", gw, err)
	}

	if _, err := initPaymentGateway(Config{GatewayDriver: GatewayDriverLive}, logger); err == nil {
		t.Error("live driver without base URL must fail")
	}

	gw, err = initPaymentGateway(Config{
		GatewayDriver:  GatewayDriverLive,
		GatewayBaseURL: "https://pay.example.com",
	}, logger)
	if err != nil || gw == nil {
		t.Fatalf("live gateway: gw=%v err=%v", gw, err)
	}
	if gw.Name() != "live" {
		t.Errorf("unexpected gateway name: %s", gw.Name())
	}

	if _, err := initPaymentGateway(Config{GatewayDriver: "paypal"}, logger); err == nil {
		t.Error("unknown driver must fail")
	}
}
