// Package engine implements the ledger engine: validated, transactional
// deposits, withdrawals and transfers against the account and ledger stores.
// Every operation runs in a single database transaction that locks the
// affected account rows, checks invariants, updates balances and appends the
// matching ledger entries, or rolls back leaving nothing changed.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/starlynx/utility-ledger/internal/domain/account"
	"github.com/starlynx/utility-ledger/internal/domain/ledger"
	"github.com/starlynx/utility-ledger/internal/platform/persistence"
)

// ErrSameAccount indicates a transfer whose source and destination match
var ErrSameAccount = errors.New("transfer accounts must be distinct")

// Result carries the outcome of a ledger operation: the entries created and
// the post-commit balance of every account touched.
type Result struct {
	Entries  []*ledger.Entry
	Balances map[uuid.UUID]int64
}

// Service executes ledger operations. Accounts are mutated only through this
// service; nothing else writes balances or entries.
type Service struct {
	txManager   persistence.TxManager
	accountRepo account.Repository
	ledgerRepo  ledger.Repository
	logger      *slog.Logger
}

// NewService creates a ledger engine service
func NewService(
	txManager persistence.TxManager,
	accountRepo account.Repository,
	ledgerRepo ledger.Repository,
	logger *slog.Logger,
) *Service {
	return &Service{
		txManager:   txManager,
		accountRepo: accountRepo,
		ledgerRepo:  ledgerRepo,
		logger:      logger,
	}
}

// Deposit credits an account and appends a DEPOSIT entry
func (s *Service) Deposit(ctx context.Context, accountID uuid.UUID, amount int64, currency, description string) (*Result, error) {
	if amount <= 0 {
		return nil, account.ErrInvalidAmount
	}

	var result *Result
	err := s.txManager.ExecuteTx(ctx, func(tx pgx.Tx) error {
		accountRepoTx := s.accountRepo.WithTx(tx)

		acc, err := accountRepoTx.LockForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		if err := acc.CheckCurrency(currency); err != nil {
			return err
		}
		if err := acc.Credit(amount); err != nil {
			return err
		}
		if err := accountRepoTx.Update(ctx, acc); err != nil {
			return err
		}

		entry := &ledger.Entry{
			ID:          uuid.New(),
			Type:        ledger.EntryTypeDeposit,
			AccountID:   acc.ID,
			Amount:      amount,
			Currency:    currency,
			Description: description,
			CreatedAt:   time.Now(),
		}
		if err := s.ledgerRepo.WithTx(tx).Create(ctx, entry); err != nil {
			return err
		}

		result = &Result{
			Entries:  []*ledger.Entry{entry},
			Balances: map[uuid.UUID]int64{acc.ID: acc.Balance},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Deposit committed", "account_id", accountID.String(), "amount", amount)
	return result, nil
}

// Withdraw debits an account and appends a WITHDRAWAL entry. The sufficiency
// check happens after the row lock is held: an unlocked pre-read could be
// invalidated by a concurrent debit.
func (s *Service) Withdraw(ctx context.Context, accountID uuid.UUID, amount int64, currency, description string) (*Result, error) {
	if amount <= 0 {
		return nil, account.ErrInvalidAmount
	}

	var result *Result
	err := s.txManager.ExecuteTx(ctx, func(tx pgx.Tx) error {
		accountRepoTx := s.accountRepo.WithTx(tx)

		acc, err := accountRepoTx.LockForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		if err := acc.CheckCurrency(currency); err != nil {
			return err
		}
		if err := acc.Debit(amount); err != nil {
			return err
		}
		if err := accountRepoTx.Update(ctx, acc); err != nil {
			return err
		}

		entry := &ledger.Entry{
			ID:          uuid.New(),
			Type:        ledger.EntryTypeWithdrawal,
			AccountID:   acc.ID,
			Amount:      amount,
			Currency:    currency,
			Description: description,
			CreatedAt:   time.Now(),
		}
		if err := s.ledgerRepo.WithTx(tx).Create(ctx, entry); err != nil {
			return err
		}

		result = &Result{
			Entries:  []*ledger.Entry{entry},
			Balances: map[uuid.UUID]int64{acc.ID: acc.Balance},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Withdrawal committed", "account_id", accountID.String(), "amount", amount)
	return result, nil
}

// Transfer moves amount between two distinct accounts, producing a
// TRANSFER_DEBIT on the source and a TRANSFER_CREDIT on the destination that
// reference each other as counterparty. Both rows are locked in ascending
// account id order regardless of argument order; that global ordering is the
// deadlock-avoidance mechanism for every multi-account operation.
func (s *Service) Transfer(ctx context.Context, fromID, toID uuid.UUID, amount int64, currency, description string) (*Result, error) {
	if amount <= 0 {
		return nil, account.ErrInvalidAmount
	}
	if fromID == toID {
		return nil, ErrSameAccount
	}

	var result *Result
	err := s.txManager.ExecuteTx(ctx, func(tx pgx.Tx) error {
		accountRepoTx := s.accountRepo.WithTx(tx)

		firstID, secondID := fromID, toID
		if bytes.Compare(secondID[:], firstID[:]) < 0 {
			firstID, secondID = secondID, firstID
		}

		first, err := accountRepoTx.LockForUpdate(ctx, firstID)
		if err != nil {
			return err
		}
		second, err := accountRepoTx.LockForUpdate(ctx, secondID)
		if err != nil {
			return err
		}

		from, to := first, second
		if from.ID != fromID {
			from, to = second, first
		}

		if err := from.CheckCurrency(currency); err != nil {
			return err
		}
		if err := to.CheckCurrency(currency); err != nil {
			return err
		}
		if err := from.Debit(amount); err != nil {
			return err
		}
		if err := to.Credit(amount); err != nil {
			return err
		}
		if err := accountRepoTx.Update(ctx, from); err != nil {
			return err
		}
		if err := accountRepoTx.Update(ctx, to); err != nil {
			return err
		}

		transferID := uuid.New()
		now := time.Now()
		debit := &ledger.Entry{
			ID:                    uuid.New(),
			Type:                  ledger.EntryTypeTransferDebit,
			AccountID:             from.ID,
			CounterpartyAccountID: &to.ID,
			TransferID:            &transferID,
			Amount:                amount,
			Currency:              currency,
			Description:           description,
			CreatedAt:             now,
		}
		credit := &ledger.Entry{
			ID:                    uuid.New(),
			Type:                  ledger.EntryTypeTransferCredit,
			AccountID:             to.ID,
			CounterpartyAccountID: &from.ID,
			TransferID:            &transferID,
			Amount:                amount,
			Currency:              currency,
			Description:           description,
			CreatedAt:             now,
		}

		ledgerRepoTx := s.ledgerRepo.WithTx(tx)
		if err := ledgerRepoTx.Create(ctx, debit); err != nil {
			return err
		}
		if err := ledgerRepoTx.Create(ctx, credit); err != nil {
			return err
		}

		result = &Result{
			Entries: []*ledger.Entry{debit, credit},
			Balances: map[uuid.UUID]int64{
				from.ID: from.Balance,
				to.ID:   to.Balance,
			},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Transfer committed",
		"from_account_id", fromID.String(),
		"to_account_id", toID.String(),
		"amount", amount,
	)
	return result, nil
}

// CreateAccount onboards a new account
func (s *Service) CreateAccount(ctx context.Context, ownerRef, currency string, openingBalance int64) (*account.Account, error) {
	acc, err := account.NewAccount(ownerRef, currency, openingBalance)
	if err != nil {
		return nil, err
	}

	if err := s.accountRepo.Create(ctx, acc); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.logger.Info("Account created", "account_id", acc.ID.String(), "owner_ref", ownerRef)
	return acc, nil
}

// GetAccount looks up an account by id
func (s *Service) GetAccount(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	return s.accountRepo.GetByID(ctx, id)
}

// GetEntries returns an account's ledger history with the total entry count
func (s *Service) GetEntries(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*ledger.Entry, int64, error) {
	if _, err := s.accountRepo.GetByID(ctx, accountID); err != nil {
		return nil, 0, err
	}

	entries, err := s.ledgerRepo.GetByAccountID(ctx, accountID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.ledgerRepo.CountByAccountID(ctx, accountID)
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}
