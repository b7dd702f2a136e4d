package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tshoemake/portfolio/internal/config"
	"github.com/tshoemake/portfolio/internal/contact"
	"github.com/tshoemake/portfolio/internal/content"
	"github.com/tshoemake/portfolio/internal/inbox"
	applog "github.com/tshoemake/portfolio/internal/log"
	"github.com/tshoemake/portfolio/internal/notify"
	"github.com/tshoemake/portfolio/internal/server"
	"github.com/tshoemake/portfolio/internal/store"
	"github.com/tshoemake/portfolio/internal/turnstile"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := applog.Init(applog.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
		defer applog.Close()

		db, err := store.Open(cfg.DB.Path)
		if err != nil {
			return err
		}
		defer db.Close()

		site, err := content.Load()
		if err != nil {
			return err
		}

		verifier, err := newVerifier(cfg)
		if err != nil {
			return err
		}

		var notifier inbox.Notifier
		if cfg.SMTPEnabled() {
			notifier = notify.NewMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Pass, cfg.SMTP.To)
		} else {
			logger.Warn("SMTP not configured; submissions are stored but not mailed")
		}
		svc := inbox.New(db, verifier, notifier, applog.WithComponent("inbox"))

		var deliverer contact.Deliverer
		if cfg.Form.Endpoint != "" {
			deliverer = contact.NewHTTPDeliverer(cfg.Form.Endpoint, cfg.Form.Timeout)
			logger.Info("contact dialog posts to external endpoint", slog.String("endpoint", cfg.Form.Endpoint))
		}

		srv, err := server.New(server.Deps{
			Config:    cfg,
			DB:        db,
			Site:      site,
			Inbox:     svc,
			Log:       applog.WithComponent("server"),
			Deliverer: deliverer,
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return srv.Run(ctx)
	},
}

// newVerifier returns the Turnstile client when verification is on. The
// form only sends a token when verification is required, so a secret alone
// must not turn checking on. The public test site key pairs with the
// always-passing test secret.
func newVerifier(cfg *config.Config) (inbox.Verifier, error) {
	t := cfg.Turnstile
	switch {
	case !t.Required:
		if t.SecretKey != "" {
			applog.L().Warn("turnstile.secret_key is set but turnstile.required is off; tokens are not checked")
		}
		return nil, nil
	case t.SecretKey != "":
		return turnstile.New(t.SecretKey, t.VerifyURL), nil
	case t.SiteKey == config.TestSiteKey:
		applog.L().Warn("turnstile uses the public test keys; every token passes")
		return turnstile.New(config.TestSecretKey, t.VerifyURL), nil
	default:
		return nil, fmt.Errorf("turnstile.secret_key is required when turnstile.required is set")
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
