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

// Package usersync contains the engine keeping the PostgreSQL users and
// group roles aligned with the declared specification
package usersync

import (
	"context"
	"regexp"
	"slices"

	"github.com/kubesql/postgres-user-controller/pkg/stringset"
)

// UserRecord represents one declared user: the login role to keep in the
// database, the database it may connect to, the group roles it belongs to,
// and any extra schema grants
type UserRecord struct {
	Username   string              `json:"username"`
	Database   string              `json:"database,omitempty"`
	Roles      []string            `json:"roles,omitempty"`
	Privileges map[string][]string `json:"privileges,omitempty"`
}

// NormalizedRoles returns the group roles of the record as a sorted list
// with duplicates removed. Reserved roles are dropped here, so no grant or
// revoke derived from a record can ever name one
func (record UserRecord) NormalizedRoles() []string {
	roles := stringset.New()
	for _, role := range record.Roles {
		if ReservedRoles[role] {
			continue
		}
		roles.Put(role)
	}
	return roles.ToSortedList()
}

// Equals checks whether two records declare the same user, ignoring the
// ordering of roles and privilege keywords
func (record UserRecord) Equals(other UserRecord) bool {
	if record.Username != other.Username || record.Database != other.Database {
		return false
	}
	if !slices.Equal(record.NormalizedRoles(), other.NormalizedRoles()) {
		return false
	}
	if len(record.Privileges) != len(other.Privileges) {
		return false
	}
	for object, keywords := range record.Privileges {
		otherKeywords, found := other.Privileges[object]
		if !found {
			return false
		}
		if !slices.Equal(stringset.From(keywords).ToSortedList(),
			stringset.From(otherKeywords).ToSortedList()) {
			return false
		}
	}
	return true
}

// Spec is the desired set of users, keyed by username
type Spec map[string]UserRecord

// Names returns the usernames of the spec as a sorted list
func (spec Spec) Names() []string {
	return stringset.FromKeys(spec).ToSortedList()
}

// ReservedRoles is the set of roles the controller must never touch,
// no matter what the declared specification says
var ReservedRoles = map[string]bool{
	"postgres":                  true,
	"pg_monitor":                true,
	"pg_read_all_settings":      true,
	"pg_read_all_stats":         true,
	"pg_stat_scan_tables":       true,
	"pg_read_server_files":      true,
	"pg_write_server_files":     true,
	"pg_execute_server_program": true,
	"pg_signal_backend":         true,
	"rds_superuser":             true,
}

var usernameRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// IsValidUsername checks that a username is a plain PostgreSQL identifier
func IsValidUsername(name string) bool {
	return usernameRegexp.MatchString(name)
}

// DatabaseManager abstracts the functionality of reconciling the users
// and the group roles living in a database
type DatabaseManager interface {
	// ListUsers returns the login roles of the database, minus the reserved ones
	ListUsers(ctx context.Context) (*stringset.Data, error)
	// ListGroups returns the roles of the database without the login
	// capability, minus the reserved ones
	ListGroups(ctx context.Context) (*stringset.Data, error)
	// UserRoles returns the group roles granted directly to a user
	UserRoles(ctx context.Context, username string) ([]string, error)
	// CreateGroup creates a group role without the login capability
	CreateGroup(ctx context.Context, name string) error
	// DropGroup drops a group role if it exists
	DropGroup(ctx context.Context, name string) error
	// CreateUser provisions a user with its password, connection grant,
	// role memberships and schema grants inside one transaction
	CreateUser(ctx context.Context, record UserRecord, password string) error
	// UpdateUserRoles aligns the role memberships of a user from the
	// current set to the desired one inside one transaction
	UpdateUserRoles(ctx context.Context, username string, current, desired []string) error
	// DropUser drops a user after reassigning and dropping everything
	// it owns, inside one transaction
	DropUser(ctx context.Context, username string) error
}

// SpecFetcher provides the desired user specification
type SpecFetcher interface {
	// FetchDesired returns the declared users. It returns nil with no
	// error when the specification document does not exist
	FetchDesired(ctx context.Context) (Spec, error)
}

// PasswordResolver resolves the credentials of the declared users
type PasswordResolver interface {
	// PasswordFor returns the password published for a user. It returns
	// the empty string with no error when no credential is published
	PasswordFor(ctx context.Context, username string) (string, error)
}

// StateStore persists the applied specification between cycles
type StateStore interface {
	// Load returns the specification applied by the last successful
	// cycle, or an empty one when nothing usable is on disk
	Load(ctx context.Context) (Spec, error)
	// Save persists the specification that has just been applied
	Save(ctx context.Context, spec Spec) error
}
