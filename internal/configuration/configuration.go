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

// Package configuration contains the configuration of the controller,
// read from the environment once at startup and passed explicitly to
// every component
package configuration

import (
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/kubesql/postgres-user-controller/pkg/configparser"
	"github.com/kubesql/postgres-user-controller/pkg/management/url"
)

// Data is the struct containing the configuration of the controller.
// Usually the controller code will use the instance created by
// NewConfiguration
type Data struct {
	// Namespace is the namespace holding the users ConfigMap and the
	// password Secrets
	Namespace string `json:"namespace" env:"NAMESPACE"`

	// ConfigMapName is the name of the ConfigMap carrying the desired
	// users document
	ConfigMapName string `json:"configMapName" env:"CONFIGMAP_NAME"`

	// DBHost is the host name of the PostgreSQL endpoint
	DBHost string `json:"dbHost" env:"DB_HOST"`

	// DBPort is the port of the PostgreSQL endpoint
	DBPort int `json:"dbPort" env:"DB_PORT"`

	// DBName is the maintenance database receiving the controller
	// connections, and the default database of the CONNECT grants
	DBName string `json:"dbName" env:"DB_NAME"`

	// DBUser is the privileged role used by the controller
	DBUser string `json:"dbUser" env:"DB_USER"`

	// DBPassword is the password of DBUser. Never serialized nor logged
	DBPassword string `json:"-" env:"DB_PASS"`

	// SyncInterval is the pause, in seconds, between the end of a
	// reconciliation cycle and the beginning of the next one
	SyncInterval int `json:"syncInterval" env:"SYNC_INTERVAL"`

	// StateFile is the path of the last-applied state file
	StateFile string `json:"stateFile" env:"STATE_FILE"`

	// DryRun, when true, logs every intended mutation without issuing
	// SQL nor writing the state file
	DryRun bool `json:"dryRun" env:"DRY_RUN"`

	// MaxRetries bounds the attempts of the retried operations
	MaxRetries int `json:"maxRetries" env:"MAX_RETRIES"`

	// RetryBackoffBase is the base of the exponential retry backoff,
	// in seconds
	RetryBackoffBase float64 `json:"retryBackoffBase" env:"RETRY_BACKOFF_BASE"`

	// PoolMinConnections is the number of idle connections kept ready
	// by the connection pool
	PoolMinConnections int `json:"poolMinConnections" env:"DB_POOL_MIN_CONN"`

	// PoolMaxConnections is the maximum number of connections opened
	// by the connection pool
	PoolMaxConnections int `json:"poolMaxConnections" env:"DB_POOL_MAX_CONN"`

	// MetricsPort is the port of the metrics HTTP endpoint
	MetricsPort int `json:"metricsPort" env:"METRICS_PORT"`
}

// connectTimeoutSeconds is applied to every PostgreSQL connection attempt
const connectTimeoutSeconds = 10

func newDefaultConfig() *Data {
	return &Data{
		Namespace:          "postgres",
		ConfigMapName:      "postgres-users-config",
		DBHost:             "acid-minimal-cluster.default.svc.cluster.local",
		DBPort:             5432,
		DBName:             "postgres",
		DBUser:             "postgres",
		DBPassword:         "postgres",
		SyncInterval:       30,
		StateFile:          "/tmp/users_state.json",
		DryRun:             false,
		MaxRetries:         5,
		RetryBackoffBase:   2.0,
		PoolMinConnections: 1,
		PoolMaxConnections: 5,
		MetricsPort:        url.MetricsPort,
	}
}

// NewConfiguration creates a new controller configuration taking the
// defaults and overriding them from the environment
func NewConfiguration() *Data {
	configuration := newDefaultConfig()
	configuration.readConfigMap(nil)
	return configuration
}

// readConfigMap reads the configuration from the environment and the
// passed-in data map
func (config *Data) readConfigMap(data map[string]string) {
	configparser.ReadConfigMap(config, newDefaultConfig(), data)
}

// BaseConnectionString is the keyword/value connection string pointing
// to the configured PostgreSQL endpoint, without the dbname parameter
func (config *Data) BaseConnectionString() string {
	return fmt.Sprintf("host=%v port=%v user=%v password=%v connect_timeout=%v",
		config.DBHost,
		config.DBPort,
		config.DBUser,
		config.DBPassword,
		connectTimeoutSeconds,
	)
}

// SyncPeriod is the pause between two reconciliation cycles
func (config *Data) SyncPeriod() time.Duration {
	return time.Duration(config.SyncInterval) * time.Second
}

// RetryBackoff builds the bounded exponential backoff applied to the
// retried operations. The first pause lasts RetryBackoffBase seconds
// and every following one is multiplied by the same base
func (config *Data) RetryBackoff() wait.Backoff {
	return wait.Backoff{
		Steps:    config.MaxRetries,
		Duration: time.Duration(config.RetryBackoffBase * float64(time.Second)),
		Factor:   config.RetryBackoffBase,
		Jitter:   0.1,
	}
}
