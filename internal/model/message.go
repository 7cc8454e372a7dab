package model

import "time"

type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
)

func (t MessageType) Valid() bool {
	return t == MessageTypeText || t == MessageTypeImage
}

// Message is immutable after insert except for the single read_at transition.
// Billing fields are frozen at send time.
type Message struct {
	ID                uint64      `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID    uint64      `gorm:"column:conversation_id;not null;index" json:"conversationId"`
	SenderUID         string      `gorm:"column:sender_uid;size:128;not null;index" json:"senderUid"`
	RecipientUID      string      `gorm:"column:recipient_uid;size:128;not null;index:idx_messages_recipient_read" json:"recipientUid"`
	Content           string      `gorm:"column:content;type:text;not null" json:"content"`
	MessageType       MessageType `gorm:"column:message_type;size:16;not null" json:"messageType"`
	CreditsCost       int64       `gorm:"column:credits_cost;not null;default:0" json:"creditsCost"`
	EarnerAmountCents int64       `gorm:"column:earner_amount_cents;not null;default:0" json:"earnerAmountCents"`
	PlatformFeeCents  int64       `gorm:"column:platform_fee_cents;not null;default:0" json:"platformFeeCents"`
	ReadAt            *time.Time  `gorm:"column:read_at;index:idx_messages_recipient_read" json:"readAt,omitempty"`
	CreatedAt         time.Time   `gorm:"autoCreateTime" json:"createdAt"`
}

func (Message) TableName() string {
	return "messages"
}
