package util

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/argus-mc/argus/pkg/log"
)

// WaitForInterrupt blocks until SIGINT or SIGTERM is received.
func WaitForInterrupt() {
	waitForInterruptContext(context.Background())
}

// waitForInterruptContext lets tests cancel the parent context instead of
// delivering a real signal.
func waitForInterruptContext(parent context.Context) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	log.Info(log.Application, "Received interrupt; shutting down")
}
