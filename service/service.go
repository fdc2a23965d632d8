// Package service hosts the sidecar HTTP endpoints of the analyzer:
// a healthz liveness probe and the prometheus metrics exporter. Both run
// for the whole process lifetime, independent of the analysis loop.
package service

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/ethereum/go-ethereum/log"

	"github.com/flakewatch/flakewatch/metrics"
)

const (
	HealthzHost = "0.0.0.0"
	HealthzPort = "8080"

	MetricsHost = "0.0.0.0"
	MetricsPort = "7300"
)

type Service struct {
	Healthz *HealthzServer
	Metrics *MetricsServer
}

func New(version string) *Service {
	return &Service{
		Healthz: &HealthzServer{version: version},
		Metrics: &MetricsServer{},
	}
}

func (s *Service) Start(ctx context.Context) {
	go s.serve(ctx, "healthz", net.JoinHostPort(HealthzHost, HealthzPort), s.Healthz.Start)
	go s.serve(ctx, "metrics", net.JoinHostPort(MetricsHost, MetricsPort), s.Metrics.Start)
}

func (s *Service) serve(ctx context.Context, name, addr string, start func(context.Context, string) error) {
	log.Info("Starting server", "server", name, "addr", addr)
	if err := start(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("Server failed", "server", name, "err", err)
		metrics.RecordErrorDetails("error starting "+name+" server", err)
	}
}

func (s *Service) Shutdown() {
	log.Info("Shutting down servers")
	_ = s.Healthz.Shutdown()
	_ = s.Metrics.Shutdown()
}
