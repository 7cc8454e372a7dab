package model

import "time"

// Conversation is the single thread between one seeker and one earner. A user has
// exactly one role, so the (seeker, earner) unique index also covers the unordered pair.
type Conversation struct {
	ID                uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SeekerUID         string     `gorm:"column:seeker_uid;size:128;not null;uniqueIndex:uniq_conversation_pair" json:"seekerUid"`
	EarnerUID         string     `gorm:"column:earner_uid;size:128;not null;uniqueIndex:uniq_conversation_pair;index" json:"earnerUid"`
	PayerUID          string     `gorm:"column:payer_uid;size:128;not null" json:"payerUid"`
	TotalMessages     int64      `gorm:"column:total_messages;not null;default:0" json:"totalMessages"`
	TotalCreditsSpent int64      `gorm:"column:total_credits_spent;not null;default:0" json:"totalCreditsSpent"`
	LastMessageAt     *time.Time `gorm:"column:last_message_at;index" json:"lastMessageAt,omitempty"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Conversation) TableName() string {
	return "conversations"
}

func (c *Conversation) HasParticipant(uid string) bool {
	return uid != "" && (c.SeekerUID == uid || c.EarnerUID == uid)
}

// Other returns the participant that is not uid.
func (c *Conversation) Other(uid string) string {
	if c.SeekerUID == uid {
		return c.EarnerUID
	}
	return c.SeekerUID
}
