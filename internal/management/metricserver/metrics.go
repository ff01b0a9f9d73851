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

package metricserver

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusNamespace is the namespace to be used for all the metrics
// exposed by the controller
const PrometheusNamespace = "postgres"

// Exporter exports the metrics describing the user reconciliation activity
type Exporter struct {
	Metrics *Metrics
}

// Metrics are the accumulators updated by the reconciliation loop and
// exposed on the metrics endpoint
type Metrics struct {
	ReconciliationsTotal        prometheus.Counter
	LastReconciliationTimestamp prometheus.Gauge
	DriftTotal                  prometheus.Counter
	UsersManaged                prometheus.Gauge
	RolesManaged                prometheus.Gauge
	ErrorsTotal                 prometheus.Counter
	LastErrorTimestamp          prometheus.Gauge
}

// NewExporter creates an exporter with a fresh set of metrics
func NewExporter() *Exporter {
	return &Exporter{
		Metrics: newMetrics(),
	}
}

// newMetrics returns the reconciliation metrics
func newMetrics() *Metrics {
	subsystem := "controller"
	return &Metrics{
		ReconciliationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: PrometheusNamespace,
			Subsystem: subsystem,
			Name:      "reconciliations_total",
			Help:      "Number of reconciliation cycles run to completion.",
		}),
		LastReconciliationTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: PrometheusNamespace,
			Subsystem: subsystem,
			Name:      "last_reconciliation_timestamp",
			Help:      "Unix timestamp of the end of the last completed reconciliation cycle.",
		}),
		DriftTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: PrometheusNamespace,
			Subsystem: subsystem,
			Name:      "drift_total",
			Help:      "Total number of differences detected between the desired and the live user set.",
		}),
		UsersManaged: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: PrometheusNamespace,
			Subsystem: subsystem,
			Name:      "users_managed",
			Help:      "Number of users in the desired specification at the last cycle.",
		}),
		RolesManaged: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: PrometheusNamespace,
			Subsystem: subsystem,
			Name:      "roles_managed",
			Help:      "Number of group roles present in the database at the last cycle.",
		}),
		ErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: PrometheusNamespace,
			Subsystem: subsystem,
			Name:      "errors_total",
			Help:      "Total number of errors observed while reconciling users.",
		}),
		LastErrorTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: PrometheusNamespace,
			Subsystem: subsystem,
			Name:      "last_error_timestamp",
			Help:      "Unix timestamp of the end of the last cycle that observed an error.",
		}),
	}
}

// Describe implements prometheus.Collector, defining the Metrics we return.
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.Metrics.ReconciliationsTotal.Desc()
	ch <- e.Metrics.LastReconciliationTimestamp.Desc()
	ch <- e.Metrics.DriftTotal.Desc()
	ch <- e.Metrics.UsersManaged.Desc()
	ch <- e.Metrics.RolesManaged.Desc()
	ch <- e.Metrics.ErrorsTotal.Desc()
	ch <- e.Metrics.LastErrorTimestamp.Desc()
}

// Collect implements prometheus.Collector, collecting the Metrics values to
// export.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	ch <- e.Metrics.ReconciliationsTotal
	ch <- e.Metrics.LastReconciliationTimestamp
	ch <- e.Metrics.DriftTotal
	ch <- e.Metrics.UsersManaged
	ch <- e.Metrics.RolesManaged
	ch <- e.Metrics.ErrorsTotal
	ch <- e.Metrics.LastErrorTimestamp
}
