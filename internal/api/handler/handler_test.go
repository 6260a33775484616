package handler

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	dmongo "github.com/starlynx/utility-ledger/internal/data/mongo"
	"github.com/starlynx/utility-ledger/internal/domain/account"
	"github.com/starlynx/utility-ledger/internal/domain/ledger"
	"github.com/starlynx/utility-ledger/internal/domain/payment"
	"github.com/starlynx/utility-ledger/internal/engine"
	"github.com/stretchr/testify/mock"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) CreateAccount(ctx context.Context, ownerRef, currency string, openingBalance int64) (*account.Account, error) {
	args := m.Called(ctx, ownerRef, currency, openingBalance)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockLedgerService) GetAccount(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockLedgerService) GetEntries(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*ledger.Entry, int64, error) {
	args := m.Called(ctx, accountID, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*ledger.Entry), args.Get(1).(int64), args.Error(2)
}

func (m *MockLedgerService) Deposit(ctx context.Context, accountID uuid.UUID, amount int64, currency, description string) (*engine.Result, error) {
	args := m.Called(ctx, accountID, amount, currency, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*engine.Result), args.Error(1)
}

func (m *MockLedgerService) Withdraw(ctx context.Context, accountID uuid.UUID, amount int64, currency, description string) (*engine.Result, error) {
	args := m.Called(ctx, accountID, amount, currency, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*engine.Result), args.Error(1)
}

func (m *MockLedgerService) Transfer(ctx context.Context, fromID, toID uuid.UUID, amount int64, currency, description string) (*engine.Result, error) {
	args := m.Called(ctx, fromID, toID, amount, currency, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*engine.Result), args.Error(1)
}

type MockInitiator struct {
	mock.Mock
}

func (m *MockInitiator) Initiate(ctx context.Context, subject string, amount int64, accountReference string) (*payment.Intent, error) {
	args := m.Called(ctx, subject, amount, accountReference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Intent), args.Error(1)
}

type MockProcessor struct {
	mock.Mock
}

func (m *MockProcessor) HandleCallback(ctx context.Context, raw []byte) error {
	args := m.Called(ctx, raw)
	return args.Error(0)
}

type MockAwaiter struct {
	mock.Mock
}

func (m *MockAwaiter) AwaitTerminal(ctx context.Context, correlationID, subject string, timeout, interval time.Duration) (*payment.Intent, error) {
	args := m.Called(ctx, correlationID, subject, timeout, interval)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Intent), args.Error(1)
}

type MockDeliveryArchive struct {
	mock.Mock
}

func (m *MockDeliveryArchive) Archive(ctx context.Context, record *dmongo.ArchivedCallback) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockDeliveryArchive) GetByCorrelationID(ctx context.Context, correlationID string) ([]*dmongo.ArchivedCallback, error) {
	args := m.Called(ctx, correlationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*dmongo.ArchivedCallback), args.Error(1)
}

type MockIntentReader struct {
	mock.Mock
}

func (m *MockIntentReader) Create(ctx context.Context, intent *payment.Intent) error {
	args := m.Called(ctx, intent)
	return args.Error(0)
}

func (m *MockIntentReader) Update(ctx context.Context, intent *payment.Intent) error {
	args := m.Called(ctx, intent)
	return args.Error(0)
}

func (m *MockIntentReader) GetByCorrelationID(ctx context.Context, correlationID string) (*payment.Intent, error) {
	args := m.Called(ctx, correlationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Intent), args.Error(1)
}

func (m *MockIntentReader) GetLatestBySubject(ctx context.Context, subject string) (*payment.Intent, error) {
	args := m.Called(ctx, subject)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Intent), args.Error(1)
}
