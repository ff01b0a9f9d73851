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

/*
The manager command is the main entrypoint of the PostgreSQL user
controller.
*/
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/kubesql/postgres-user-controller/internal/cmd/manager/controller"
	"github.com/kubesql/postgres-user-controller/internal/cmd/manager/secret"
	"github.com/kubesql/postgres-user-controller/internal/cmd/manager/version"
	"github.com/kubesql/postgres-user-controller/pkg/management/log"

	_ "k8s.io/client-go/plugin/pkg/client/auth"
)

func main() {
	logFlags := &log.Flags{}

	cmd := &cobra.Command{
		Use:          "manager [cmd]",
		SilenceUsage: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			logFlags.ConfigureLogging()
		},
	}

	logFlags.AddFlags(cmd.PersistentFlags())

	cmd.AddCommand(controller.NewCmd())
	cmd.AddCommand(secret.NewCmd())
	cmd.AddCommand(version.NewCmd())

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
