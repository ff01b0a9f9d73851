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

// Package secret implements the "secret" subcommand, managing the
// per-user password Secrets the controller reads
package secret

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-password/password"
	"github.com/spf13/cobra"
	corev1 "k8s.io/api/core/v1"
	apierrs "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/kubesql/postgres-user-controller/internal/configuration"
	"github.com/kubesql/postgres-user-controller/internal/management/controller/usersync"
	"github.com/kubesql/postgres-user-controller/internal/management/specsource"
	"github.com/kubesql/postgres-user-controller/pkg/management"
)

// NewCmd creates the "secret" subcommand
func NewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Password secret management subfeatures",
	}

	cmd.AddCommand(newGenerateCmd())

	return cmd
}

func newGenerateCmd() *cobra.Command {
	var userPassword string
	var force bool

	cmd := &cobra.Command{
		Use:           "generate [username]",
		Short:         "Create the password secret of a database user",
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return generateSecret(cmd.Context(), args[0], userPassword, force)
		},
	}

	cmd.Flags().StringVar(&userPassword, "password", "",
		"The password to publish. A random one is generated when empty")
	cmd.Flags().BoolVar(&force, "force", false,
		"Overwrite the password secret when it already exists")

	return cmd
}

func generateSecret(ctx context.Context, username, userPassword string, force bool) error {
	if !usersync.IsValidUsername(username) {
		return fmt.Errorf("invalid username %q", username)
	}
	if usersync.ReservedRoles[username] {
		return fmt.Errorf("username %q is a reserved role", username)
	}

	config := configuration.NewConfiguration()

	cli, err := management.NewControllerRuntimeClient()
	if err != nil {
		return err
	}

	if userPassword == "" {
		userPassword, err = password.Generate(32, 8, 4, false, true)
		if err != nil {
			return err
		}
	}

	secretName := specsource.SecretNameForUser(username)
	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:      secretName,
			Namespace: config.Namespace,
		},
		Type: corev1.SecretTypeOpaque,
		StringData: map[string]string{
			specsource.PasswordSecretKey: userPassword,
		},
	}

	err = cli.Create(ctx, secret)
	switch {
	case err == nil:
		fmt.Printf("secret %v/%v created\n", config.Namespace, secretName)
		return nil

	case apierrs.IsAlreadyExists(err) && force:
		var existing corev1.Secret
		if err := cli.Get(ctx, client.ObjectKey{
			Namespace: config.Namespace,
			Name:      secretName,
		}, &existing); err != nil {
			return err
		}
		existing.StringData = map[string]string{
			specsource.PasswordSecretKey: userPassword,
		}
		if err := cli.Update(ctx, &existing); err != nil {
			return err
		}
		fmt.Printf("secret %v/%v updated\n", config.Namespace, secretName)
		return nil

	case apierrs.IsAlreadyExists(err):
		return fmt.Errorf("secret %v/%v already exists, use --force to overwrite it",
			config.Namespace, secretName)

	default:
		return err
	}
}
