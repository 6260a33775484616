package recon

import (
	"context"
	"log/slog"
	"os"

	"github.com/starlynx/utility-ledger/internal/domain/payment"
	"github.com/starlynx/utility-ledger/internal/payment/billing"
	"github.com/starlynx/utility-ledger/internal/payment/provider"
	"github.com/stretchr/testify/mock"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type MockIntentRepository struct {
	mock.Mock
}

func (m *MockIntentRepository) Create(ctx context.Context, intent *payment.Intent) error {
	args := m.Called(ctx, intent)
	return args.Error(0)
}

func (m *MockIntentRepository) Update(ctx context.Context, intent *payment.Intent) error {
	args := m.Called(ctx, intent)
	return args.Error(0)
}

func (m *MockIntentRepository) GetByCorrelationID(ctx context.Context, correlationID string) (*payment.Intent, error) {
	args := m.Called(ctx, correlationID)
	if intent, ok := args.Get(0).(*payment.Intent); ok {
		return intent, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockIntentRepository) GetLatestBySubject(ctx context.Context, subject string) (*payment.Intent, error) {
	args := m.Called(ctx, subject)
	if intent, ok := args.Get(0).(*payment.Intent); ok {
		return intent, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockForwardingRepository struct {
	mock.Mock
}

func (m *MockForwardingRepository) Create(ctx context.Context, record *payment.ForwardingRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockForwardingRepository) Exists(ctx context.Context, transactionID string) (bool, error) {
	args := m.Called(ctx, transactionID)
	return args.Bool(0), args.Error(1)
}

type MockPushClient struct {
	mock.Mock
}

func (m *MockPushClient) Push(ctx context.Context, subject string, amount int64, accountReference string) (*provider.PushResult, error) {
	args := m.Called(ctx, subject, amount, accountReference)
	if result, ok := args.Get(0).(*provider.PushResult); ok {
		return result, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockBillingClient struct {
	mock.Mock
}

func (m *MockBillingClient) Post(ctx context.Context, p billing.Payment) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func newTestWriter(t interface{ Cleanup(func()) }) *SerialWriter {
	writer, err := NewSerialWriter(newTestLogger())
	if err != nil {
		panic(err)
	}
	t.Cleanup(writer.Shutdown)
	return writer
}
