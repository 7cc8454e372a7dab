package model

import "time"

// Wallet stores a seeker's spendable credits and an earner's accrued cash (cents).
type Wallet struct {
	UID                    string    `gorm:"column:uid;primaryKey;size:128"`
	CreditBalance          int64     `gorm:"column:credit_balance;not null;default:0"`
	AvailableEarningsCents int64     `gorm:"column:available_earnings_cents;not null;default:0"`
	UpdatedAt              time.Time `gorm:"autoUpdateTime"`
	CreatedAt              time.Time `gorm:"autoCreateTime"`
}

func (Wallet) TableName() string {
	return "wallets"
}

type WalletTransactionKind string

const (
	TxKindMessageDebit   WalletTransactionKind = "message_debit"
	TxKindMessageEarning WalletTransactionKind = "message_earning"
	TxKindGrant          WalletTransactionKind = "grant"
)

// WalletTransaction is an append-only ledger row; positive = credit, negative = debit.
type WalletTransaction struct {
	ID             uint64                `gorm:"primaryKey;autoIncrement"`
	UID            string                `gorm:"column:uid;size:128;not null;index"`
	Kind           WalletTransactionKind `gorm:"column:kind;size:32;not null;index"`
	Credits        int64                 `gorm:"column:credits;not null;default:0"`
	AmountCents    int64                 `gorm:"column:amount_cents;not null;default:0"`
	MessageID      *uint64               `gorm:"column:message_id;index"`
	ConversationID *uint64               `gorm:"column:conversation_id;index"`
	CreatedAt      time.Time             `gorm:"autoCreateTime"`
}

func (WalletTransaction) TableName() string {
	return "wallet_transactions"
}
