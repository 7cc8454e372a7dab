package config

import (
	"os"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DB_USER", "lynxx")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_NAME", "lynxx")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" || cfg.DBPort != "3306" {
		t.Fatalf("unexpected defaults port=%s dbPort=%s", cfg.Port, cfg.DBPort)
	}
	if cfg.SendTimeout != 10*time.Second {
		t.Fatalf("send timeout=%v", cfg.SendTimeout)
	}
	want := Pricing{TextCredits: 5, ImageCredits: 10, CreditValueCents: 10, CreatorSharePercent: 70}
	if cfg.Pricing != want {
		t.Fatalf("pricing=%+v want=%+v", cfg.Pricing, want)
	}
}

func TestLoadPricingOverride(t *testing.T) {
	setRequired(t)
	t.Setenv("PRICING_TEXT_CREDITS", "3")
	t.Setenv("PRICING_CREATOR_SHARE_PERCENT", "60")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Pricing.TextCredits != 3 || cfg.Pricing.CreatorSharePercent != 60 {
		t.Fatalf("pricing=%+v", cfg.Pricing)
	}
}

func TestLoadRejectsBadShare(t *testing.T) {
	setRequired(t)
	t.Setenv("PRICING_CREATOR_SHARE_PERCENT", "120")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for share above 100")
	}
}

func TestLoadMissingRequired(t *testing.T) {
	for _, k := range []string{"DB_USER", "DB_PASSWORD", "DB_HOST", "DB_NAME"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	if _, err := Load(); err == nil {
		t.Fatal("expected error without db settings")
	}
}
