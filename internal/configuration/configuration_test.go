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

package configuration

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Controller configuration", func() {
	// the suite must not be fooled by variables set in the outer environment
	clearEnvironment := func() {
		for _, variable := range []string{
			"NAMESPACE", "CONFIGMAP_NAME",
			"DB_HOST", "DB_PORT", "DB_NAME", "DB_USER", "DB_PASS",
			"SYNC_INTERVAL", "STATE_FILE", "DRY_RUN",
			"MAX_RETRIES", "RETRY_BACKOFF_BASE",
			"DB_POOL_MIN_CONN", "DB_POOL_MAX_CONN", "METRICS_PORT",
		} {
			GinkgoT().Setenv(variable, "")
		}
	}

	It("resolves every default", func() {
		clearEnvironment()
		config := &Data{}
		config.readConfigMap(nil)

		Expect(config.Namespace).To(Equal("postgres"))
		Expect(config.ConfigMapName).To(Equal("postgres-users-config"))
		Expect(config.DBHost).To(Equal("acid-minimal-cluster.default.svc.cluster.local"))
		Expect(config.DBPort).To(Equal(5432))
		Expect(config.DBName).To(Equal("postgres"))
		Expect(config.DBUser).To(Equal("postgres"))
		Expect(config.SyncInterval).To(Equal(30))
		Expect(config.StateFile).To(Equal("/tmp/users_state.json"))
		Expect(config.DryRun).To(BeFalse())
		Expect(config.MaxRetries).To(Equal(5))
		Expect(config.RetryBackoffBase).To(Equal(2.0))
		Expect(config.PoolMinConnections).To(Equal(1))
		Expect(config.PoolMaxConnections).To(Equal(5))
		Expect(config.MetricsPort).To(Equal(9187))
	})

	It("honors the environment overrides", func() {
		clearEnvironment()
		GinkgoT().Setenv("NAMESPACE", "databases")
		GinkgoT().Setenv("DB_PORT", "5433")
		GinkgoT().Setenv("DRY_RUN", "true")
		GinkgoT().Setenv("RETRY_BACKOFF_BASE", "1.5")

		config := &Data{}
		config.readConfigMap(nil)

		Expect(config.Namespace).To(Equal("databases"))
		Expect(config.DBPort).To(Equal(5433))
		Expect(config.DryRun).To(BeTrue())
		Expect(config.RetryBackoffBase).To(Equal(1.5))
	})

	It("builds the base connection string with the connect timeout", func() {
		clearEnvironment()
		config := &Data{}
		config.readConfigMap(map[string]string{
			"DB_HOST": "db.example.com",
			"DB_PORT": "5432",
			"DB_USER": "admin",
			"DB_PASS": "secret",
		})

		Expect(config.BaseConnectionString()).To(Equal(
			"host=db.example.com port=5432 user=admin password=secret connect_timeout=10"))
	})

	It("derives the synchronization period", func() {
		config := &Data{SyncInterval: 45}
		Expect(config.SyncPeriod()).To(Equal(45 * time.Second))
	})

	It("derives the retry backoff from retries and base", func() {
		config := &Data{MaxRetries: 3, RetryBackoffBase: 2.0}
		backoff := config.RetryBackoff()

		Expect(backoff.Steps).To(Equal(3))
		Expect(backoff.Duration).To(Equal(2 * time.Second))
		Expect(backoff.Factor).To(Equal(2.0))
	})
})
