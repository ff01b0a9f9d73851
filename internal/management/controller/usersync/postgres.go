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

package usersync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/kubesql/postgres-user-controller/internal/configuration"
	"github.com/kubesql/postgres-user-controller/pkg/management/log"
	"github.com/kubesql/postgres-user-controller/pkg/stringset"
)

const (
	listUsersStmt = `SELECT rolname FROM pg_catalog.pg_roles WHERE rolcanlogin AND rolname not like 'pg\_%'`

	listGroupsStmt = `SELECT rolname FROM pg_catalog.pg_roles WHERE NOT rolcanlogin AND rolname not like 'pg\_%'`

	userRolesStmt = `SELECT mem.inroles
	FROM pg_catalog.pg_authid as auth
	LEFT JOIN (
		SELECT pg_catalog.array_agg(pg_catalog.pg_get_userbyid(roleid)) as inroles, member
		FROM pg_catalog.pg_auth_members GROUP BY member
	) mem ON member = oid
	WHERE rolname = $1`
)

// allowedSchemaPrivileges are the privilege keywords accepted in the
// privileges stanza. Keywords are emitted into SQL unquoted, so anything
// outside this list is rejected before any statement is built
var allowedSchemaPrivileges = map[string]bool{
	"USAGE":  true,
	"CREATE": true,
	"ALL":    true,
}

var errUnsupportedPrivilege = errors.New("unsupported privilege keyword")

// PostgresUserManager is a DatabaseManager over a pooled superuser
// connection to the database instance
type PostgresUserManager struct {
	db              *sql.DB
	defaultDatabase string
	adminUser       string
	dryRun          bool
}

// NewPostgresUserManager returns an implementation of DatabaseManager for
// postgres
func NewPostgresUserManager(db *sql.DB, config *configuration.Data) *PostgresUserManager {
	return &PostgresUserManager{
		db:              db,
		defaultDatabase: config.DBName,
		adminUser:       config.DBUser,
		dryRun:          config.DryRun,
	}
}

// ListUsers returns the login roles of the database, minus the reserved ones
func (mgr *PostgresUserManager) ListUsers(ctx context.Context) (*stringset.Data, error) {
	return mgr.listRoleNames(ctx, listUsersStmt)
}

// ListGroups returns the roles of the database without the login capability,
// minus the reserved ones
func (mgr *PostgresUserManager) ListGroups(ctx context.Context) (*stringset.Data, error) {
	return mgr.listRoleNames(ctx, listGroupsStmt)
}

func (mgr *PostgresUserManager) listRoleNames(ctx context.Context, query string) (*stringset.Data, error) {
	rows, err := mgr.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	names := stringset.New()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		if ReservedRoles[name] {
			continue
		}
		names.Put(name)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return names, nil
}

// UserRoles returns the group roles granted directly to a user. Memberships
// in reserved roles are never touched by the controller and are kept out of
// the result
func (mgr *PostgresUserManager) UserRoles(ctx context.Context, username string) ([]string, error) {
	var parentRoles pq.StringArray
	if err := mgr.db.QueryRowContext(ctx, userRolesStmt, username).Scan(&parentRoles); err != nil {
		return nil, err
	}

	roles := make([]string, 0, len(parentRoles))
	for _, role := range parentRoles {
		if ReservedRoles[role] {
			continue
		}
		roles = append(roles, role)
	}

	return roles, nil
}

// CreateGroup creates a group role without the login capability
func (mgr *PostgresUserManager) CreateGroup(ctx context.Context, name string) error {
	query := fmt.Sprintf("CREATE ROLE %s NOLOGIN", pgx.Identifier{name}.Sanitize())
	return mgr.execAutocommit(ctx, query)
}

// DropGroup drops a group role if it exists
func (mgr *PostgresUserManager) DropGroup(ctx context.Context, name string) error {
	query := fmt.Sprintf("DROP ROLE IF EXISTS %s", pgx.Identifier{name}.Sanitize())
	return mgr.execAutocommit(ctx, query)
}

// CreateUser provisions a user inside one transaction: the login role with
// its password, the connection grant on its database, its role memberships,
// and its schema grants. A failure in any statement rolls back all of them
func (mgr *PostgresUserManager) CreateUser(ctx context.Context, record UserRecord, password string) error {
	sanitizedUser := pgx.Identifier{record.Username}.Sanitize()
	database := record.Database
	if database == "" {
		database = mgr.defaultDatabase
	}

	statements := []string{
		fmt.Sprintf("CREATE USER %s WITH PASSWORD %s", sanitizedUser, pq.QuoteLiteral(password)),
		fmt.Sprintf("GRANT CONNECT ON DATABASE %s TO %s",
			pgx.Identifier{database}.Sanitize(), sanitizedUser),
	}
	loggable := []string{
		fmt.Sprintf("CREATE USER %s WITH PASSWORD [redacted]", sanitizedUser),
		statements[1],
	}

	for _, role := range record.NormalizedRoles() {
		grant := fmt.Sprintf("GRANT %s TO %s", pgx.Identifier{role}.Sanitize(), sanitizedUser)
		statements = append(statements, grant)
		loggable = append(loggable, grant)
	}

	grants, err := schemaGrantStatements(record)
	if err != nil {
		return err
	}
	statements = append(statements, grants...)
	loggable = append(loggable, grants...)

	return mgr.execInTransaction(ctx, statements, loggable)
}

// UpdateUserRoles aligns the role memberships of a user from the current
// set to the desired one, revoking before granting, inside one transaction
func (mgr *PostgresUserManager) UpdateUserRoles(ctx context.Context, username string, current, desired []string) error {
	rolesToRevoke := getRolesToRevoke(current, desired)
	rolesToGrant := getRolesToGrant(current, desired)
	if len(rolesToRevoke) == 0 && len(rolesToGrant) == 0 {
		return nil
	}

	sanitizedUser := pgx.Identifier{username}.Sanitize()
	statements := make([]string, 0, len(rolesToRevoke)+len(rolesToGrant))
	for _, role := range rolesToRevoke {
		statements = append(statements,
			fmt.Sprintf("REVOKE %s FROM %s", pgx.Identifier{role}.Sanitize(), sanitizedUser))
	}
	for _, role := range rolesToGrant {
		statements = append(statements,
			fmt.Sprintf("GRANT %s TO %s", pgx.Identifier{role}.Sanitize(), sanitizedUser))
	}

	return mgr.execInTransaction(ctx, statements, statements)
}

// DropUser drops a user inside one transaction. Everything the user owns
// is reassigned to the admin user before the drop, so the sequence must
// keep its order
func (mgr *PostgresUserManager) DropUser(ctx context.Context, username string) error {
	sanitizedUser := pgx.Identifier{username}.Sanitize()
	statements := []string{
		fmt.Sprintf("REVOKE ALL PRIVILEGES ON DATABASE %s FROM %s",
			pgx.Identifier{mgr.defaultDatabase}.Sanitize(), sanitizedUser),
		fmt.Sprintf("REASSIGN OWNED BY %s TO %s",
			sanitizedUser, pgx.Identifier{mgr.adminUser}.Sanitize()),
		fmt.Sprintf("DROP OWNED BY %s", sanitizedUser),
		fmt.Sprintf("DROP USER IF EXISTS %s", sanitizedUser),
	}

	return mgr.execInTransaction(ctx, statements, statements)
}

// schemaGrantStatements builds the GRANT statements for the privileges
// stanza of a record, walking the objects in a stable order
func schemaGrantStatements(record UserRecord) ([]string, error) {
	objects := make([]string, 0, len(record.Privileges))
	for object := range record.Privileges {
		objects = append(objects, object)
	}
	sort.Strings(objects)

	statements := make([]string, 0, len(objects))
	for _, object := range objects {
		keywords := stringset.New()
		for _, keyword := range record.Privileges[object] {
			upper := strings.ToUpper(strings.TrimSpace(keyword))
			if !allowedSchemaPrivileges[upper] {
				return nil, fmt.Errorf("%w %q on schema %q for user %q",
					errUnsupportedPrivilege, keyword, object, record.Username)
			}
			keywords.Put(upper)
		}
		statements = append(statements, fmt.Sprintf("GRANT %s ON SCHEMA %s TO %s",
			strings.Join(keywords.ToSortedList(), ", "),
			pgx.Identifier{object}.Sanitize(),
			pgx.Identifier{record.Username}.Sanitize()))
	}

	return statements, nil
}

// execAutocommit runs one statement outside of any explicit transaction.
// In dry-run mode the statement is logged and not executed
func (mgr *PostgresUserManager) execAutocommit(ctx context.Context, query string) error {
	contextLog := log.FromContext(ctx).WithName("user_db")
	if mgr.dryRun {
		contextLog.Info("dry-run: skipping statement", "query", query)
		return nil
	}

	contextLog.Debug("executing", "query", query)
	_, err := mgr.db.ExecContext(ctx, query)
	return err
}

// execInTransaction runs the statements in order inside one transaction,
// rolling all of them back if any fails. loggable carries the same
// statements with any password literal redacted. In dry-run mode the
// statements are logged and not executed
func (mgr *PostgresUserManager) execInTransaction(ctx context.Context, statements, loggable []string) (err error) {
	contextLog := log.FromContext(ctx).WithName("user_db")
	if mgr.dryRun {
		for _, query := range loggable {
			contextLog.Info("dry-run: skipping statement", "query", query)
		}
		return nil
	}

	tx, err := mgr.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				contextLog.Error(rollbackErr, "rolling back transaction")
			}
		}
	}()

	for i, query := range statements {
		contextLog.Debug("executing", "query", loggable[i])
		if _, err = tx.ExecContext(ctx, query); err != nil {
			return err
		}
	}

	return tx.Commit()
}
