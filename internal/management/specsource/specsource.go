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

// Package specsource reads the declared user specification and the user
// credentials from the cluster: the specification is a YAML document
// published in a ConfigMap, the credentials live in one Secret per user
package specsource

import (
	"context"
	"strings"

	"github.com/thoas/go-funk"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/util/retry"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/yaml"

	"github.com/kubesql/postgres-user-controller/internal/configuration"
	"github.com/kubesql/postgres-user-controller/internal/management/controller/usersync"
	"github.com/kubesql/postgres-user-controller/pkg/management/log"
)

// usersDataKey is the ConfigMap key holding the user specification document
const usersDataKey = "users.yaml"

// usersDocument is the layout of the published specification
type usersDocument struct {
	Users []usersync.UserRecord `json:"users"`
}

// ConfigMapSource reads the declared users from a ConfigMap
type ConfigMapSource struct {
	cli    client.Client
	config *configuration.Data
}

// NewConfigMapSource creates a ConfigMapSource reading the configured
// ConfigMap
func NewConfigMapSource(cli client.Client, config *configuration.Data) *ConfigMapSource {
	return &ConfigMapSource{
		cli:    cli,
		config: config,
	}
}

// FetchDesired returns the declared users, or nil when the ConfigMap does
// not exist. Transient API errors are retried with the configured backoff,
// a missing ConfigMap is not
func (source *ConfigMapSource) FetchDesired(ctx context.Context) (usersync.Spec, error) {
	contextLog := log.FromContext(ctx).WithName("spec_source")

	var configMap corev1.ConfigMap
	err := retry.OnError(source.config.RetryBackoff(),
		func(err error) bool { return !apierrors.IsNotFound(err) },
		func() error {
			return source.cli.Get(ctx, types.NamespacedName{
				Namespace: source.config.Namespace,
				Name:      source.config.ConfigMapName,
			}, &configMap)
		})
	if apierrors.IsNotFound(err) {
		contextLog.Warning("user spec ConfigMap not found",
			"namespace", source.config.Namespace, "name", source.config.ConfigMapName)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return source.parseUsers(ctx, configMap.Data[usersDataKey]), nil
}

// parseUsers decodes the specification document into a Spec, dropping the
// entries the controller must not manage. An unparsable or empty document
// is treated as an empty Spec for this cycle
func (source *ConfigMapSource) parseUsers(ctx context.Context, content string) usersync.Spec {
	contextLog := log.FromContext(ctx).WithName("spec_source")

	spec := usersync.Spec{}
	if strings.TrimSpace(content) == "" {
		contextLog.Warning("empty user specification document, no users to manage")
		return spec
	}

	var document usersDocument
	if err := yaml.Unmarshal([]byte(content), &document); err != nil {
		contextLog.Error(err, "unparsable user specification document, treating it as empty")
		return spec
	}

	seen := make([]string, 0, len(document.Users))
	for _, record := range document.Users {
		if !usersync.IsValidUsername(record.Username) {
			contextLog.Warning("skipping user with an invalid username",
				"username", record.Username)
			continue
		}
		if usersync.ReservedRoles[record.Username] {
			contextLog.Warning("skipping reserved username declared in the specification",
				"username", record.Username)
			continue
		}
		if funk.ContainsString(seen, record.Username) {
			contextLog.Warning("duplicate user record, the last one wins",
				"username", record.Username)
		}
		seen = append(seen, record.Username)

		record.Roles = source.filterReservedRoles(ctx, record)
		if record.Database == "" {
			record.Database = source.config.DBName
		}
		spec[record.Username] = record
	}

	return spec
}

// filterReservedRoles drops the reserved roles declared for a user, with a
// log line per dropped role so the operator can fix the document
func (source *ConfigMapSource) filterReservedRoles(ctx context.Context, record usersync.UserRecord) []string {
	contextLog := log.FromContext(ctx).WithName("spec_source")

	roles := make([]string, 0, len(record.Roles))
	for _, role := range record.Roles {
		if usersync.ReservedRoles[role] {
			contextLog.Warning("skipping reserved role declared for a user",
				"username", record.Username, "role", role)
			continue
		}
		roles = append(roles, role)
	}
	return roles
}
