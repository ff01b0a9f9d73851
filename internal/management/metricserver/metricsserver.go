/*
Copyright The Postgres User Controller Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package metricserver contains the web server powering metrics
package metricserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kubesql/postgres-user-controller/pkg/management/log"
	"github.com/kubesql/postgres-user-controller/pkg/management/url"
)

// MetricsServer is the HTTP server exposing the metrics and the health
// endpoint of the controller
type MetricsServer struct {
	server   *http.Server
	registry *prometheus.Registry
	exporter *Exporter
}

// New creates a metrics server listening on the given port, with the
// reconciliation exporter and the Go collector already registered
func New(port int) (*MetricsServer, error) {
	registry := prometheus.NewRegistry()
	exporter := NewExporter()
	if err := registry.Register(exporter); err != nil {
		return nil, fmt.Errorf("while registering the reconciliation exporter: %w", err)
	}
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("while registering the Go exporter: %w", err)
	}

	serveMux := http.NewServeMux()
	serveMux.Handle(url.PathMetrics, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	serveMux.HandleFunc(url.PathHealth, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, "OK")
	})

	return &MetricsServer{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           serveMux,
			ReadHeaderTimeout: 3 * time.Second,
		},
		registry: registry,
		exporter: exporter,
	}, nil
}

// GetExporter returns the exporter whose metrics this server exposes
func (ms *MetricsServer) GetExporter() *Exporter {
	return ms.exporter
}

// Start serves the metrics endpoints until the context is canceled,
// then shuts the web server down gracefully
func (ms *MetricsServer) Start(ctx context.Context) error {
	contextLog := log.FromContext(ctx).WithName("metrics_server")
	contextLog.Info("starting the metrics server", "address", ms.server.Addr)

	go func() {
		<-ctx.Done()
		if err := ms.server.Shutdown(context.Background()); err != nil {
			contextLog.Error(err, "while shutting down the metrics server")
		}
	}()

	err := ms.server.ListenAndServe()

	// The server has been shut down
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}
