package command

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/marcodd23/go-micro-dbfunc/internal/api"
	"github.com/marcodd23/go-micro-dbfunc/pkg/audit/pubsub"
	"github.com/marcodd23/go-micro-dbfunc/pkg/ledger"
	"github.com/marcodd23/go-micro-dbfunc/pkg/repository"
	"github.com/marcodd23/go-micro-dbfunc/pkg/serverx/fibersrv"
	"github.com/marcodd23/go-micro-dbfunc/pkg/shutdown"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

const apiPrefix = "/api"

func serve(cmd *cobra.Command, _ []string) error {
	rootCtx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	provider := newProvider(rootCtx, cfg.Database)

	opts := []repository.Option{repository.WithLedger(ledger.New())}
	hooks := []shutdown.Hook{}

	if auditCfg := cfg.GetAuditConfig(); auditCfg != nil && auditCfg.Enabled {
		publisher, err := pubsub.NewPubSubAuditPublisherFactory(rootCtx, auditCfg.ProjectId, auditCfg.Topic)
		if err != nil {
			provider.Close(rootCtx, true)
			return err
		}

		opts = append(opts, repository.WithAuditPublisher(publisher))
		hooks = append(hooks, shutdown.Hook{
			Name:    "audit publisher",
			Cleanup: func(context.Context) error { return publisher.Close() },
		})
	}

	repo := repository.New(provider, opts...)

	server := fibersrv.NewFiberServer(cfg)
	server.Setup(rootCtx, func(app *fiber.App) {
		api.Register(app.Group(apiPrefix), repo)
	})
	server.RunAsync()

	// The server stops first so that no call is in flight when the pool drains.
	hooks = append([]shutdown.Hook{
		{Name: "http server", Cleanup: func(ctx context.Context) error {
			server.Shutdown(ctx)
			return nil
		}},
		{Name: "connection pool", Cleanup: func(ctx context.Context) error {
			provider.Close(ctx, false)
			return nil
		}},
	}, hooks...)

	return shutdown.WaitForShutdown(rootCtx, shutdownTimeout, hooks...)
}
