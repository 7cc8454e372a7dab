// Package pricing prices messages and splits their cash value between the earner
// and the platform.
package pricing

import (
	"fmt"

	"github.com/shinyyama/lynxx-backend/internal/config"
	"github.com/shinyyama/lynxx-backend/internal/model"
)

// Quote is the frozen billing of a single message.
type Quote struct {
	Credits          int64
	EarnerCents      int64
	PlatformFeeCents int64
}

func (q Quote) Free() bool {
	return q.Credits == 0
}

type Policy interface {
	Quote(senderRole model.Role, msgType model.MessageType) (Quote, error)
}

type FixedRate struct {
	rates               map[model.MessageType]int64
	creditValueCents    int64
	creatorSharePercent int64
}

func NewFixedRate(cfg config.Pricing) *FixedRate {
	return &FixedRate{
		rates: map[model.MessageType]int64{
			model.MessageTypeText:  cfg.TextCredits,
			model.MessageTypeImage: cfg.ImageCredits,
		},
		creditValueCents:    cfg.CreditValueCents,
		creatorSharePercent: cfg.CreatorSharePercent,
	}
}

// Quote charges seekers the per-type rate. Earners are never billed.
func (p *FixedRate) Quote(senderRole model.Role, msgType model.MessageType) (Quote, error) {
	credits, ok := p.rates[msgType]
	if !ok {
		return Quote{}, fmt.Errorf("unknown message type %q", msgType)
	}
	switch senderRole {
	case model.RoleEarner:
		return Quote{}, nil
	case model.RoleSeeker:
	default:
		return Quote{}, fmt.Errorf("unknown sender role %q", senderRole)
	}
	value := credits * p.creditValueCents
	earner := value * p.creatorSharePercent / 100
	return Quote{
		Credits:          credits,
		EarnerCents:      earner,
		PlatformFeeCents: value - earner,
	}, nil
}
