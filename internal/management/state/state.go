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

// Package state persists the user specification applied by the last
// successful reconciliation cycle, so that the following cycles can tell
// the users this controller owns apart from pre-existing ones
package state

import (
	"context"
	"encoding/json"

	"github.com/kubesql/postgres-user-controller/internal/configuration"
	"github.com/kubesql/postgres-user-controller/internal/management/controller/usersync"
	"github.com/kubesql/postgres-user-controller/pkg/fileutils"
	"github.com/kubesql/postgres-user-controller/pkg/management/log"
)

// Store keeps the last applied specification in a JSON file on the
// local disk
type Store struct {
	path string
}

// NewStore creates a Store backed by the configured state file
func NewStore(config *configuration.Data) *Store {
	return &Store{path: config.StateFile}
}

// Load reads the last applied specification. A missing or unreadable file
// yields an empty specification, leaving every live user unowned
func (store *Store) Load(ctx context.Context) (usersync.Spec, error) {
	contextLog := log.FromContext(ctx).WithName("state_store")

	exists, err := fileutils.FileExists(store.path)
	if err != nil {
		return nil, err
	}
	if !exists {
		contextLog.Info("no previous state file found, starting fresh", "path", store.path)
		return usersync.Spec{}, nil
	}

	contents, err := fileutils.ReadFile(store.path)
	if err != nil {
		return nil, err
	}

	var spec usersync.Spec
	if err := json.Unmarshal(contents, &spec); err != nil {
		contextLog.Error(err, "unreadable state file, starting fresh", "path", store.path)
		return usersync.Spec{}, nil
	}
	if spec == nil {
		spec = usersync.Spec{}
	}

	return spec, nil
}

// Save replaces the state file with the specification that has just been
// applied. The write goes through a sibling temporary file and a rename,
// so a crash cannot leave a partially written file behind
func (store *Store) Save(ctx context.Context, spec usersync.Spec) error {
	contextLog := log.FromContext(ctx).WithName("state_store")

	if err := fileutils.EnsureParentDirectoryExist(store.path); err != nil {
		return err
	}

	contents, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return err
	}
	if err := fileutils.WriteFileAtomic(store.path, contents, 0o600); err != nil {
		return err
	}

	contextLog.Debug("state saved", "path", store.path, "users", len(spec))
	return nil
}
