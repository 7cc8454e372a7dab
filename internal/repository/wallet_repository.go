package repository

import (
	"context"

	"github.com/shinyyama/lynxx-backend/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WalletRepository interface {
	Get(ctx context.Context, uid string) (*model.Wallet, error)
	Debit(ctx context.Context, uid string, credits int64) error
	AddCredits(ctx context.Context, uid string, credits int64) error
	AddEarnings(ctx context.Context, uid string, cents int64) error
	AppendTransactions(ctx context.Context, txs ...*model.WalletTransaction) error
	ListTransactions(ctx context.Context, uid string, limit int) ([]model.WalletTransaction, error)
	WithTx(tx *gorm.DB) WalletRepository
	SetDB(db *gorm.DB)
}

type walletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) WalletRepository {
	return &walletRepository{db: db}
}

func (r *walletRepository) SetDB(db *gorm.DB) {
	r.db = db
}

func (r *walletRepository) WithTx(tx *gorm.DB) WalletRepository {
	return &walletRepository{db: tx}
}

func (r *walletRepository) Get(ctx context.Context, uid string) (*model.Wallet, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var w model.Wallet
	if err := r.db.WithContext(ctx).Where("uid = ?", uid).FirstOrCreate(&w, &model.Wallet{UID: uid}).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// Debit is a single conditional decrement: it never lets the balance go negative and
// concurrent debits cannot both pass against the same credits.
func (r *walletRepository) Debit(ctx context.Context, uid string, credits int64) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	if credits <= 0 {
		return nil
	}
	res := r.db.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("uid = ? AND credit_balance >= ?", uid, credits).
		Update("credit_balance", gorm.Expr("credit_balance - ?", credits))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientFunds
	}
	return nil
}

func (r *walletRepository) AddCredits(ctx context.Context, uid string, credits int64) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	if credits <= 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "uid"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"credit_balance": gorm.Expr("credit_balance + ?", credits)}),
	}).Create(&model.Wallet{UID: uid, CreditBalance: credits}).Error
}

func (r *walletRepository) AddEarnings(ctx context.Context, uid string, cents int64) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	if cents <= 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "uid"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"available_earnings_cents": gorm.Expr("available_earnings_cents + ?", cents)}),
	}).Create(&model.Wallet{UID: uid, AvailableEarningsCents: cents}).Error
}

func (r *walletRepository) AppendTransactions(ctx context.Context, txs ...*model.WalletTransaction) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	if len(txs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(txs).Error
}

func (r *walletRepository) ListTransactions(ctx context.Context, uid string, limit int) ([]model.WalletTransaction, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var list []model.WalletTransaction
	if err := r.db.WithContext(ctx).
		Where("uid = ?", uid).
		Order("id DESC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
