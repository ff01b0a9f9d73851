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

// Package controller implements the "controller" subcommand, running
// the user reconciliation loop against the configured PostgreSQL server
package controller

import (
	"context"
	"database/sql"

	"github.com/spf13/cobra"
	"k8s.io/client-go/util/retry"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/kubesql/postgres-user-controller/internal/configuration"
	"github.com/kubesql/postgres-user-controller/internal/management/controller/usersync"
	"github.com/kubesql/postgres-user-controller/internal/management/metricserver"
	"github.com/kubesql/postgres-user-controller/internal/management/specsource"
	"github.com/kubesql/postgres-user-controller/internal/management/state"
	"github.com/kubesql/postgres-user-controller/pkg/management"
	"github.com/kubesql/postgres-user-controller/pkg/management/log"
	"github.com/kubesql/postgres-user-controller/pkg/management/postgres/pool"
	"github.com/kubesql/postgres-user-controller/pkg/versions"
)

var setupLog = log.WithName("setup")

// NewCmd creates the "controller" subcommand
func NewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "controller [flags]",
		Short:         "Run the user reconciliation loop",
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runSubCommand()
		},
	}

	return cmd
}

// runSubCommand wires the collaborators together and runs the
// reconciliation loop until a termination signal arrives
func runSubCommand() error {
	ctx := ctrl.SetupSignalHandler()
	config := configuration.NewConfiguration()

	setupLog.Info("Starting the PostgreSQL user controller",
		"version", versions.Version,
		"build", versions.Info,
		"namespace", config.Namespace,
		"configMapName", config.ConfigMapName,
		"syncInterval", config.SyncInterval,
		"dryRun", config.DryRun)

	cli, err := management.NewControllerRuntimeClient()
	if err != nil {
		setupLog.Error(err, "unable to create the Kubernetes client")
		return err
	}

	connectionPool := pool.NewConnectionPool(
		config.BaseConnectionString(),
		config.PoolMinConnections,
		config.PoolMaxConnections)
	defer connectionPool.ShutdownConnections()

	db, err := connectToDatabase(ctx, connectionPool, config)
	if err != nil {
		setupLog.Error(err, "unable to reach the PostgreSQL server",
			"host", config.DBHost,
			"port", config.DBPort,
			"dbname", config.DBName)
		return err
	}

	metricsServer, err := metricserver.New(config.MetricsPort)
	if err != nil {
		setupLog.Error(err, "unable to set up the metrics server")
		return err
	}
	go func() {
		if err := metricsServer.Start(ctx); err != nil {
			setupLog.Error(err, "error while serving metrics")
		}
	}()

	synchronizer := usersync.NewUserSynchronizer(
		config,
		usersync.NewPostgresUserManager(db, config),
		specsource.NewConfigMapSource(cli, config),
		specsource.NewSecretSource(cli, config),
		state.NewStore(config),
		metricsServer.GetExporter().Metrics,
	)

	return synchronizer.Start(ctx)
}

// connectToDatabase opens the handle for the maintenance database and
// waits for the server to answer a ping, within the configured retry
// budget. database/sql creates connections lazily, so only the ping
// proves the server is actually reachable
func connectToDatabase(
	ctx context.Context,
	connectionPool *pool.ConnectionPool,
	config *configuration.Data,
) (*sql.DB, error) {
	db, err := connectionPool.Connection(config.DBName)
	if err != nil {
		return nil, err
	}

	err = retry.OnError(config.RetryBackoff(), func(error) bool { return true }, func() error {
		if err := db.PingContext(ctx); err != nil {
			setupLog.Info("PostgreSQL server not answering yet, retrying",
				"err", err.Error())
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return db, nil
}
