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

package specsource

import (
	"context"
	"fmt"
	"strings"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/util/retry"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/kubesql/postgres-user-controller/internal/configuration"
	"github.com/kubesql/postgres-user-controller/pkg/management/log"
)

// PasswordSecretKey is the Secret key holding the password of a user
const PasswordSecretKey = "password"

// SecretSource resolves user passwords from per-user Secrets
type SecretSource struct {
	cli    client.Client
	config *configuration.Data
}

// NewSecretSource creates a SecretSource reading from the configured
// namespace
func NewSecretSource(cli client.Client, config *configuration.Data) *SecretSource {
	return &SecretSource{
		cli:    cli,
		config: config,
	}
}

// SecretNameForUser derives the name of the Secret publishing the password
// of a user. Underscores are valid in a PostgreSQL identifier but not in a
// Kubernetes object name, so they map to dashes
func SecretNameForUser(username string) string {
	return fmt.Sprintf("user-%s-secret", strings.ReplaceAll(username, "_", "-"))
}

// PasswordFor returns the password published for a user, or the empty
// string when the Secret does not exist or carries no password field.
// Transient API errors are retried with the configured backoff
func (source *SecretSource) PasswordFor(ctx context.Context, username string) (string, error) {
	contextLog := log.FromContext(ctx).WithName("secret_source")
	secretName := SecretNameForUser(username)

	var secret corev1.Secret
	err := retry.OnError(source.config.RetryBackoff(),
		func(err error) bool { return !apierrors.IsNotFound(err) },
		func() error {
			return source.cli.Get(ctx, types.NamespacedName{
				Namespace: source.config.Namespace,
				Name:      secretName,
			}, &secret)
		})
	if apierrors.IsNotFound(err) {
		contextLog.Warning("password secret not found",
			"secret", secretName, "user", username)
		return "", nil
	}
	if err != nil {
		return "", err
	}

	password, found := secret.Data[PasswordSecretKey]
	if !found || len(password) == 0 {
		contextLog.Warning("password secret carries no password field",
			"secret", secretName, "user", username)
		return "", nil
	}

	return string(password), nil
}
