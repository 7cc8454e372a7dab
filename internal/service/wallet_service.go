package service

import (
	"context"
	"errors"

	"github.com/shinyyama/lynxx-backend/internal/model"
	"github.com/shinyyama/lynxx-backend/internal/repository"
	"gorm.io/gorm"
)

type WalletService interface {
	GetBalance(ctx context.Context, uid string) (*model.Wallet, error)
	AtomicDebit(ctx context.Context, uid string, credits int64) error
	Credit(ctx context.Context, uid string, cents int64) error
	Grant(ctx context.Context, uid string, credits int64) (*model.Wallet, error)
	ListTransactions(ctx context.Context, uid string, limit int) ([]model.WalletTransaction, error)
}

type walletService struct {
	db   *gorm.DB
	repo repository.WalletRepository
}

func NewWalletService(db *gorm.DB, repo repository.WalletRepository) WalletService {
	return &walletService{db: db, repo: repo}
}

func (s *walletService) GetBalance(ctx context.Context, uid string) (*model.Wallet, error) {
	if uid == "" {
		return nil, ErrUnauthorized
	}
	return s.repo.Get(ctx, uid)
}

func (s *walletService) AtomicDebit(ctx context.Context, uid string, credits int64) error {
	if credits <= 0 {
		return ErrInvalidAmount
	}
	if err := s.repo.Debit(ctx, uid, credits); err != nil {
		if errors.Is(err, repository.ErrInsufficientFunds) {
			return ErrInsufficientCredits
		}
		return err
	}
	return nil
}

// Credit adds cash earnings in cents.
func (s *walletService) Credit(ctx context.Context, uid string, cents int64) error {
	if cents <= 0 {
		return nil
	}
	return s.repo.AddEarnings(ctx, uid, cents)
}

// Grant adds spendable credits and records a grant ledger row in one transaction.
func (s *walletService) Grant(ctx context.Context, uid string, credits int64) (*model.Wallet, error) {
	if uid == "" {
		return nil, ErrUnauthorized
	}
	if credits <= 0 {
		return nil, ErrInvalidAmount
	}
	if s.db == nil {
		return nil, repository.ErrDBNotReady
	}
	var w *model.Wallet
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.AddCredits(ctx, uid, credits); err != nil {
			return err
		}
		if err := repo.AppendTransactions(ctx, &model.WalletTransaction{UID: uid, Kind: model.TxKindGrant, Credits: credits}); err != nil {
			return err
		}
		var err error
		w, err = repo.Get(ctx, uid)
		return err
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (s *walletService) ListTransactions(ctx context.Context, uid string, limit int) ([]model.WalletTransaction, error) {
	if uid == "" {
		return nil, ErrUnauthorized
	}
	return s.repo.ListTransactions(ctx, uid, limit)
}
