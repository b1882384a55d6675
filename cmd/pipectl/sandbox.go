package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"voxelpipes.ai/internal/persistence/log"
	"voxelpipes.ai/internal/persistence/nodestore"
	"voxelpipes.ai/internal/sim/pipes/host"
	"voxelpipes.ai/internal/transport/observer"
)

var (
	serveAddr    string
	serveLayout  string
	serveDataDir string
	servePersist bool
)

var sandboxCmd = &cobra.Command{
	Use:   "sandbox",
	Short: "Run in-memory pipe networks",
}

var sandboxServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Tick a sandbox network and stream packet visuals to observers",
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := loadLayout(serveLayout)
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()
		return serveSandbox(ctx, l)
	},
}

func init() {
	sandboxServeCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:8090", "HTTP listen address")
	sandboxServeCmd.Flags().StringVar(&serveLayout, "layout", "", "Layout YAML (built-in demo when empty)")
	sandboxServeCmd.Flags().StringVar(&serveDataDir, "data", "./data", "Directory for delivery logs")
	sandboxServeCmd.Flags().BoolVar(&servePersist, "persist", false, "Load and journal pipe nodes through the configured store")
	sandboxCmd.AddCommand(sandboxServeCmd)
}

func serveSandbox(ctx context.Context, l layout) error {
	deliveries := log.NewDeliveryLogger(serveDataDir)
	defer deliveries.Close()

	var store host.NodeStore
	if servePersist {
		s, err := nodestore.Open(cfg.Store)
		if err != nil {
			return err
		}
		defer s.Close()
		store = s
	}

	hub := observer.NewHub(observer.WithHubLogger(logrus.StandardLogger()))
	nw, err := buildNetwork(ctx, l, cfg, networkDeps{Visual: hub, Recorder: deliveries, Store: store})
	if err != nil {
		return err
	}

	obs := observer.NewServer(hub, cfg.WorldID, cfg.SegmentTicks, logrus.StandardLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("/observer/bootstrap", obs.BootstrapHandler())
	mux.HandleFunc("/ws", obs.WSHandler())
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	srv := &http.Server{
		Addr:              serveAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	pipes := nw.graph.Len()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ticker := time.NewTicker(time.Duration(cfg.TickDurationMs) * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				hub.SetTick(nw.tick + 1)
				nw.step()
			}
		}
	})
	g.Go(func() error {
		logrus.WithFields(logrus.Fields{"addr": serveAddr, "pipes": pipes}).Info("sandbox listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		return srv.Shutdown(ctx2)
	})

	err = g.Wait()
	if store != nil {
		if ferr := nodestore.Flush(context.Background(), store); ferr != nil {
			logrus.WithError(ferr).Warn("flush node store")
		}
	}
	logrus.WithField("tick", nw.tick).Info("sandbox stopped")
	return err
}
