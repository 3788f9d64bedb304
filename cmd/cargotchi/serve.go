package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"rsc.io/qr"

	"github.com/leejongyoung/Cargotchi/internal/ap"
	"github.com/leejongyoung/Cargotchi/internal/bitmap"
	"github.com/leejongyoung/Cargotchi/internal/bootscreen"
	"github.com/leejongyoung/Cargotchi/internal/config"
	"github.com/leejongyoung/Cargotchi/internal/log"
	"github.com/leejongyoung/Cargotchi/internal/qroverlay"
	"github.com/leejongyoung/Cargotchi/internal/server"
	"github.com/leejongyoung/Cargotchi/internal/wire"
)

func newServeCmd(load settingsLoader) *cobra.Command {
	var (
		metricsAddr string
		noPanel     bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the access point and the provisioning server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("metrics-addr") {
				s.MetricsAddr = metricsAddr
			}
			return serve(cmd.Context(), s, noPanel)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address for the Prometheus /metrics listener (empty disables)")
	cmd.Flags().BoolVar(&noPanel, "no-panel", false, "log frames instead of driving the e-paper panel")
	return cmd
}

func serve(ctx context.Context, s config.Settings, noPanel bool) error {
	logger := log.WithComponent("serve")

	p, closePanel, err := openPanel(s.Panel, noPanel, log.WithComponent("panel"))
	if err != nil {
		return err
	}
	defer closePanel()

	creds, err := ap.NewCredentials(s.AP.SSIDPrefix, s.AP.Password)
	if err != nil {
		return err
	}
	addr, err := ap.Static{Addr: s.AP.Addr, Log: log.WithComponent("ap")}.Start(ctx, creds)
	if err != nil {
		return fmt.Errorf("start access point: %w", err)
	}
	logger.Info().Str("ssid", creds.SSID).Str("url", "http://"+addr).Msg("join the access point and open the url")

	overlay := qroverlay.New(qroverlay.QREncoder{Level: qr.L}, log.WithComponent("qroverlay"))
	screen := bootscreen.Screen{Creds: creds, Addr: addr, QRBox: s.Panel.QRBox}
	if err := bootscreen.Show(p, screen, overlay); err != nil {
		logger.Warn().Err(err).Msg("boot screen not shown")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := server.NewMetrics(reg)
	if s.MetricsAddr != "" {
		stopMetrics := serveMetrics(s.MetricsAddr, reg, log.WithComponent("metrics"))
		defer stopMetrics()
	}

	srv, err := server.New(server.Options{
		Limits:       wire.Limits{MaxHeaderBytes: s.MaxHeaderBytes, MaxBodyBytes: s.MaxBodyBytes},
		ReadTimeout:  s.ReadTimeout,
		Geometry:     bitmap.Geometry{Width: s.Panel.Width, Height: s.Panel.Height},
		SourceHeight: s.Panel.SourceHeight,
		Panel:        p,
		Store:        config.NewStore(s.StorePath, log.WithComponent("store")),
		Metrics:      metrics,
		Logger:       log.WithComponent("server"),
	})
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", s.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.Listen, err)
	}
	return srv.Serve(ctx, ln)
}

// serveMetrics exposes reg on addr until the returned stop is called.
func serveMetrics(addr string, reg *prometheus.Registry, logger zerolog.Logger) (stop func()) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	hs := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", addr).Msg("metrics listening")
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics listener failed")
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = hs.Shutdown(ctx)
	}
}
