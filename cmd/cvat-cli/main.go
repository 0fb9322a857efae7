package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/kelsos/cvat-cli/internal/logger"
	"github.com/kelsos/cvat-cli/internal/utils"
)

func main() {
	utils.LoadEnvironment()
	logger.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		logger.Error("%v", err)
		logger.Close()
		os.Exit(1)
	}
	logger.Close()
}
