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
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kubesql/postgres-user-controller/pkg/management/url"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("MetricsServer", func() {
	Describe("New", func() {
		It("should register exporters and collectors successfully", func() {
			metricsServer, err := New(0)
			Expect(err).NotTo(HaveOccurred())

			mfs, err := metricsServer.registry.Gather()
			Expect(err).NotTo(HaveOccurred())
			Expect(mfs).NotTo(BeEmpty())

			exporter := metricsServer.GetExporter()
			Expect(exporter.Metrics.ReconciliationsTotal).NotTo(BeNil())
			Expect(exporter.Metrics.LastReconciliationTimestamp).NotTo(BeNil())
			Expect(exporter.Metrics.DriftTotal).NotTo(BeNil())
			Expect(exporter.Metrics.UsersManaged).NotTo(BeNil())
			Expect(exporter.Metrics.RolesManaged).NotTo(BeNil())
			Expect(exporter.Metrics.ErrorsTotal).NotTo(BeNil())
			Expect(exporter.Metrics.LastErrorTimestamp).NotTo(BeNil())
		})
	})

	Describe("HTTP endpoints", func() {
		var metricsServer *MetricsServer
		var testServer *httptest.Server

		BeforeEach(func() {
			var err error
			metricsServer, err = New(0)
			Expect(err).NotTo(HaveOccurred())
			testServer = httptest.NewServer(metricsServer.server.Handler)
			DeferCleanup(testServer.Close)
		})

		It("serves the exposition", func() {
			metricsServer.GetExporter().Metrics.ReconciliationsTotal.Inc()

			response, err := http.Get(testServer.URL + url.PathMetrics)
			Expect(err).NotTo(HaveOccurred())
			defer func() {
				_ = response.Body.Close()
			}()
			Expect(response.StatusCode).To(Equal(http.StatusOK))

			body, err := io.ReadAll(response.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("postgres_controller_reconciliations_total 1"))
		})

		It("answers the health probe", func() {
			response, err := http.Get(testServer.URL + url.PathHealth)
			Expect(err).NotTo(HaveOccurred())
			defer func() {
				_ = response.Body.Close()
			}()
			Expect(response.StatusCode).To(Equal(http.StatusOK))

			body, err := io.ReadAll(response.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(Equal("OK"))
		})
	})

	Describe("Exporter", func() {
		It("exposes every metric under the controller namespace", func() {
			exporter := NewExporter()
			for _, name := range []string{
				"postgres_controller_reconciliations_total",
				"postgres_controller_last_reconciliation_timestamp",
				"postgres_controller_drift_total",
				"postgres_controller_users_managed",
				"postgres_controller_roles_managed",
				"postgres_controller_errors_total",
				"postgres_controller_last_error_timestamp",
			} {
				Expect(testutil.CollectAndCount(exporter, name)).To(Equal(1), name)
			}
		})

		It("accumulates the values written by the reconciliation loop", func() {
			exporter := NewExporter()

			exporter.Metrics.ReconciliationsTotal.Inc()
			exporter.Metrics.ReconciliationsTotal.Inc()
			exporter.Metrics.DriftTotal.Add(3)
			exporter.Metrics.UsersManaged.Set(5)
			exporter.Metrics.ErrorsTotal.Add(1)

			Expect(testutil.ToFloat64(exporter.Metrics.ReconciliationsTotal)).To(BeEquivalentTo(2))
			Expect(testutil.ToFloat64(exporter.Metrics.DriftTotal)).To(BeEquivalentTo(3))
			Expect(testutil.ToFloat64(exporter.Metrics.UsersManaged)).To(BeEquivalentTo(5))
			Expect(testutil.ToFloat64(exporter.Metrics.ErrorsTotal)).To(BeEquivalentTo(1))
		})
	})
})
