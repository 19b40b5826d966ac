package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cortexfed/cortex/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Keep a MetaCortex's shard registry synced to its manifest",
	Long: `serve loads the shard manifest and then watches it for changes,
reconciling the MetaCortex's registry (adding and removing shards) on
every write until interrupted.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fmt.Fprintln(os.Stderr, accentStyle.Render(fmt.Sprintf("cortexctl: watching %s, %d shard(s) loaded", configPath, len(mc.GetCortexNames()))))

	stop := make(chan struct{})
	errCh := make(chan error, 1)
	go func() { errCh <- config.Watch(configPath, mc, stop) }()

	select {
	case <-ctx.Done():
		close(stop)
		<-errCh
		fmt.Fprintln(os.Stderr, mutedStyle.Render("cortexctl: shutting down"))
		mc.Fini()
		return nil
	case err := <-errCh:
		return err
	}
}
