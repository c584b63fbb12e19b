package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/vpn-storefront/internal/migrations"
)

// TestDataFactory содержит методы для создания тестовых данных
type TestDataFactory struct {
	storage *Storage
}

// NewTestDataFactory создает новую фабрику тестовых данных
func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreatePayment создает тестовый платёж
func (f *TestDataFactory) CreatePayment(t *testing.T, paymentID, username, status string) {
	_, err := f.storage.DB.Exec(`INSERT INTO payments (payment_id, username, amount, status, plan_name, plan_days)
		VALUES ($1, $2, 199.00, $3, 'Month', 30)`, paymentID, username, status)
	require.NoError(t, err)
}

// CreateLoginAttempt создает попытку входа в заданный момент
func (f *TestDataFactory) CreateLoginAttempt(t *testing.T, ip, loginType string, success bool, at time.Time) {
	_, err := f.storage.DB.Exec(`INSERT INTO login_attempts (ip_address, success, login_type, attempt_time)
		VALUES ($1, $2, $3, $4)`, ip, success, loginType, at)
	require.NoError(t, err)
}

// CreateUUID создает запись кеша UUID с явным created_at
func (f *TestDataFactory) CreateUUID(t *testing.T, username, uuid string, at time.Time) {
	_, err := f.storage.DB.Exec(`INSERT INTO user_uuids (username, uuid, created_at) VALUES ($1, $2, $3)`,
		username, uuid, at)
	require.NoError(t, err)
}

// TestVerification содержит общие функции для проверки результатов тестов
type TestVerification struct {
	storage *Storage
}

// NewTestVerification создает новый объект для проверки результатов
func NewTestVerification(storage *Storage) *TestVerification {
	return &TestVerification{storage: storage}
}

// VerifyPaymentStatus проверяет статус платежа
func (v *TestVerification) VerifyPaymentStatus(t *testing.T, paymentID, expected string) {
	var status string
	err := v.storage.DB.QueryRow("SELECT status FROM payments WHERE payment_id = $1", paymentID).Scan(&status)
	require.NoError(t, err)
	require.Equal(t, expected, status)
}

// CountRows возвращает число строк таблицы
func (v *TestVerification) CountRows(t *testing.T, table string) int {
	var count int
	err := v.storage.DB.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count)
	require.NoError(t, err)
	return count
}

// setupTestDatabase поднимает PostgreSQL в контейнере и применяет миграции
func setupTestDatabase(t *testing.T) (*Storage, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start container")

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	storage, err := New(connStr)
	require.NoError(t, err, "failed to create storage")

	migrationsPath, err := filepath.Abs("../../../migrations")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, migrationsPath), "failed to apply migrations")
	require.NoError(t, CheckDatabaseReady(ctx, storage))

	cleanup := func() {
		_ = storage.Close()
		_ = pgContainer.Terminate(ctx)
	}
	return storage, cleanup
}
