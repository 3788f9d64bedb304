// Command cargotchi runs the e-paper label: it brings up the provisioning
// access point, shows the join screen and serves the configuration page.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leejongyoung/Cargotchi/internal/config"
	"github.com/leejongyoung/Cargotchi/internal/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:           "cargotchi",
		Short:         "E-paper label with a Wi-Fi provisioning page",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", os.Getenv("CARGOTCHI_CONFIG"), "path to YAML settings file")

	load := func() (config.Settings, error) {
		s, err := config.Load(cfgPath)
		if err != nil {
			return config.Settings{}, err
		}
		log.Configure(log.Config{Level: s.LogLevel})
		return s, nil
	}

	root.AddCommand(
		newServeCmd(load),
		newRenderCmd(load),
		newConfigCmd(load),
	)
	return root
}

// settingsLoader returns the effective settings and configures logging.
type settingsLoader func() (config.Settings, error)
