// Command initdb applies the database schema and optionally seeds the first
// admin account, so a fresh deployment can log in at all.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/orderdesk/orderdesk/internal/auth"
	"github.com/orderdesk/orderdesk/internal/config"
	"github.com/orderdesk/orderdesk/internal/domain"
	"github.com/orderdesk/orderdesk/internal/postgres"
)

func main() {
	adminUser := flag.String("admin-user", "", "seed an admin account with this username")
	adminPass := flag.String("admin-pass", "", "password for the seeded admin account")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("apply schema")
	}
	log.Info().Msg("schema applied")

	if *adminUser == "" {
		return
	}
	if *adminPass == "" {
		log.Fatal().Msg("-admin-pass is required with -admin-user")
	}
	svc := auth.NewService(postgres.NewUsers(db), cfg.JWTSecret, log)
	if _, err := svc.Register(ctx, *adminUser, *adminPass, domain.RoleAdmin); err != nil {
		if errors.Is(err, domain.ErrDuplicateUsername) {
			log.Info().Str("username", *adminUser).Msg("admin already exists")
			return
		}
		log.Fatal().Err(err).Msg("seed admin")
	}
	log.Info().Str("username", *adminUser).Msg("admin seeded")
}
