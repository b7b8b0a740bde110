package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marcodd23/go-subatomic/pkg/logx"
)

// WaitForShutdown waits for SIGINT, SIGTERM or the cancellation of rootCtx, then runs the cleanup callback
// within a context bounded by timeout.
//
// Usage:
//
//	err := shutdown.WaitForShutdown(context.Background(), 5*time.Second, func(timeoutCtx context.Context) error {
//	    return pgxdb.Shutdown(timeoutCtx, conns)
//	})
func WaitForShutdown(rootCtx context.Context, timeout time.Duration, cleanupCallback func(timeoutCtx context.Context) error) error {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	select {
	case signalCaptured := <-signals:
		logx.GetLogger().LogDebug(rootCtx, fmt.Sprintf("Interrupt signal captured: %s", signalCaptured.String()))
	case <-rootCtx.Done():
		logx.GetLogger().LogDebug(rootCtx, "Root context done")
	}

	// the root context may already be cancelled, cleanup still gets its own deadline
	timeoutCtx, cancel := context.WithTimeout(context.WithoutCancel(rootCtx), timeout)
	defer cancel()

	return cleanUp(timeoutCtx, cleanupCallback)
}

// cleanUp executes the provided cleanup callback function and logs the result.
// It waits for either the cleanup to complete or the context to be cancelled.
func cleanUp(timeoutCtx context.Context, cleanupCallback func(timeoutCtx context.Context) error) error {
	logx.GetLogger().LogInfo(timeoutCtx, "Cleaning up all resources ....")

	ch := make(chan error, 1)

	go func() {
		defer close(ch)
		if cleanupCallback != nil {
			ch <- cleanupCallback(timeoutCtx)
		}
	}()

	select {
	case <-timeoutCtx.Done():
		logx.GetLogger().LogError(timeoutCtx, "Deadline exceeded during context cancellation", timeoutCtx.Err())
		return timeoutCtx.Err()
	case err := <-ch:
		if err != nil {
			logx.GetLogger().LogError(timeoutCtx, "Error cleaning up resources", err)
			return err
		}
		logx.GetLogger().LogInfo(timeoutCtx, "All resources cleaned up")

		return nil
	}
}
