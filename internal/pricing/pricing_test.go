package pricing

import (
	"testing"

	"github.com/shinyyama/lynxx-backend/internal/config"
	"github.com/shinyyama/lynxx-backend/internal/model"
)

func TestFixedRateQuote(t *testing.T) {
	p := NewFixedRate(config.Pricing{TextCredits: 5, ImageCredits: 10, CreditValueCents: 10, CreatorSharePercent: 70})
	tests := []struct {
		name    string
		role    model.Role
		typ     model.MessageType
		want    Quote
		wantErr bool
	}{
		{"seeker text", model.RoleSeeker, model.MessageTypeText, Quote{Credits: 5, EarnerCents: 35, PlatformFeeCents: 15}, false},
		{"seeker image", model.RoleSeeker, model.MessageTypeImage, Quote{Credits: 10, EarnerCents: 70, PlatformFeeCents: 30}, false},
		{"earner text is free", model.RoleEarner, model.MessageTypeText, Quote{}, false},
		{"earner image is free", model.RoleEarner, model.MessageTypeImage, Quote{}, false},
		{"unknown type", model.RoleSeeker, model.MessageType("video"), Quote{}, true},
		{"unknown role", model.Role("admin"), model.MessageTypeText, Quote{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Quote(tt.role, tt.typ)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err=%v wantErr=%v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("got=%+v want=%+v", got, tt.want)
			}
		})
	}
}

func TestFixedRateRoundsEarnerShareDown(t *testing.T) {
	p := NewFixedRate(config.Pricing{TextCredits: 1, ImageCredits: 1, CreditValueCents: 1, CreatorSharePercent: 70})
	q, err := p.Quote(model.RoleSeeker, model.MessageTypeText)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if q.EarnerCents != 0 || q.PlatformFeeCents != 1 {
		t.Fatalf("got=%+v", q)
	}
	if q.EarnerCents+q.PlatformFeeCents != q.Credits*1 {
		t.Fatalf("split does not add up: %+v", q)
	}
}
