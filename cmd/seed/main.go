package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/shinyyama/lynxx-backend/internal/config"
	"github.com/shinyyama/lynxx-backend/internal/db"
	"github.com/shinyyama/lynxx-backend/internal/logging"
	"github.com/shinyyama/lynxx-backend/internal/model"
	"github.com/shinyyama/lynxx-backend/internal/repository"
	"github.com/shinyyama/lynxx-backend/internal/service"
)

type seedUser struct {
	UID         string
	Role        model.Role
	DisplayName string
	Credits     int64
}

func main() {
	_ = godotenv.Load()
	logging.Setup(os.Getenv("LOG_LEVEL"), true)
	if err := run(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("seed failed")
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	gdb, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	if err := db.Migrate(gdb); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	profiles := service.NewProfileService(repository.NewProfileRepository(gdb))
	wallets := service.NewWalletService(gdb, repository.NewWalletRepository(gdb))

	for _, u := range buildSeedUsers(seedCredits()) {
		if _, err := profiles.Create(ctx, u.UID, u.Role, u.DisplayName, nil); err != nil {
			if errors.Is(err, service.ErrProfileExists) {
				log.Warn().Str("uid", u.UID).Msg("profile exists with another role; leaving it")
				continue
			}
			return fmt.Errorf("create profile %s: %w", u.UID, err)
		}
		cur, err := wallets.GetBalance(ctx, u.UID)
		if err != nil {
			return fmt.Errorf("wallet %s: %w", u.UID, err)
		}
		// top up to the target so re-running the seed stays idempotent
		if topUp := u.Credits - cur.CreditBalance; topUp > 0 {
			w, err := wallets.Grant(ctx, u.UID, topUp)
			if err != nil {
				return fmt.Errorf("grant %s: %w", u.UID, err)
			}
			log.Info().Str("uid", u.UID).Int64("balance", w.CreditBalance).Msg("granted credits")
		}
		log.Info().Str("uid", u.UID).Str("role", string(u.Role)).Msg("seeded user")
	}
	return nil
}

// seedCredits reads SEED_CREDITS; defaults to 100.
func seedCredits() int64 {
	if v := os.Getenv("SEED_CREDITS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			return n
		}
	}
	return 100
}

func buildSeedUsers(credits int64) []seedUser {
	return []seedUser{
		{UID: "demo-seeker-1", Role: model.RoleSeeker, DisplayName: "Demo Seeker", Credits: credits},
		{UID: "demo-seeker-2", Role: model.RoleSeeker, DisplayName: "Low Balance Seeker", Credits: 5},
		{UID: "demo-earner-1", Role: model.RoleEarner, DisplayName: "Demo Earner"},
		{UID: "demo-earner-2", Role: model.RoleEarner, DisplayName: "Second Earner"},
	}
}
