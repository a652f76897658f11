// Package bootstrap builds the infrastructure shared by the commands from
// configuration.
package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/yousefihsm/natours/internal/platform/mailer"
	"github.com/yousefihsm/natours/internal/repo"
	"github.com/yousefihsm/natours/internal/repo/mongostore"
	"github.com/yousefihsm/natours/internal/repo/postgres"
	"github.com/yousefihsm/natours/pkg/config"
	"github.com/yousefihsm/natours/pkg/database"
	"github.com/yousefihsm/natours/pkg/logger"
)

// OpenStore connects the store named by DB_DRIVER. Postgres migrations run
// first when enabled.
func OpenStore(ctx context.Context, cfg *config.Config) (*repo.Store, error) {
	switch cfg.Database.Driver {
	case "postgres", "":
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.Database.RunMigrations {
			if err := database.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, err
			}
		}
		logger.Info("Connected to Postgres")
		return postgres.NewStore(pool), nil

	case "mongo", "mongodb":
		s, err := mongostore.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, err
		}
		logger.Info("Connected to MongoDB", "database", cfg.Mongo.Database)
		return s.Repos(), nil

	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.Database.Driver)
	}
}

// NewSender picks the mail transport: the log writer in dev mode, MailerSend
// when an API key is set, SMTP otherwise.
func NewSender(cfg config.EmailConfig) mailer.Sender {
	switch {
	case cfg.DevMode:
		return mailer.NewDevSender(os.Stdout)
	case cfg.MailerSendKey != "":
		return mailer.NewMailerSend(cfg.MailerSendKey, cfg.FromName, cfg.SMTPFrom)
	default:
		return mailer.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPUseTLS)
	}
}
