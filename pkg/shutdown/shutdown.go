package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marcodd23/go-micro-dbfunc/pkg/logx"
	"github.com/pkg/errors"
)

// Hook - named cleanup step run at shutdown.
type Hook struct {
	Name    string
	Cleanup func(ctx context.Context) error
}

// WaitForShutdown waits for OS signals (SIGINT, SIGTERM) or for rootCtx to be done, then runs the hooks
// in order within a context bounded by timeout.
//
// Usage:
//
//	shutdown.WaitForShutdown(ctx, 5*time.Second,
//	    shutdown.Hook{Name: "http server", Cleanup: srv.Shutdown},
//	    shutdown.Hook{Name: "connection pool", Cleanup: closePool},
//	)
func WaitForShutdown(rootCtx context.Context, timeout time.Duration, hooks ...Hook) error {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	select {
	case sig := <-signals:
		logx.GetLogger().LogDebug(rootCtx, fmt.Sprintf("Interrupt signal captured: %s", sig.String()))
	case <-rootCtx.Done():
		logx.GetLogger().LogDebug(rootCtx, "Root context done")
	}

	// the cleanup context must outlive a cancelled root context
	timeoutCtx, cancel := context.WithTimeout(context.WithoutCancel(rootCtx), timeout)
	defer cancel()

	return CleanUp(timeoutCtx, hooks...)
}

// CleanUp runs the hooks in order and logs the result.
// A failing hook does not stop the following ones; the first error is returned.
// When ctx is done before the hooks complete CleanUp returns the context error.
func CleanUp(ctx context.Context, hooks ...Hook) error {
	logx.GetLogger().LogInfo(ctx, "Cleaning up all resources ....")

	done := make(chan error, 1)

	go func() {
		var firstErr error

		for _, hook := range hooks {
			if hook.Cleanup == nil {
				continue
			}

			if err := hook.Cleanup(ctx); err != nil {
				logx.GetLogger().LogError(ctx, fmt.Sprintf("Error cleaning up %s", hook.Name), err)

				if firstErr == nil {
					firstErr = errors.Wrapf(err, "cleanup %s", hook.Name)
				}

				continue
			}

			logx.GetLogger().LogDebug(ctx, fmt.Sprintf("Cleaned up %s", hook.Name))
		}

		done <- firstErr
	}()

	select {
	case <-ctx.Done():
		logx.GetLogger().LogError(ctx, "Deadline exceeded during context cancellation", ctx.Err())
		return ctx.Err()
	case err := <-done:
		if err == nil {
			logx.GetLogger().LogInfo(ctx, "All resources cleaned up")
		}

		return err
	}
}
