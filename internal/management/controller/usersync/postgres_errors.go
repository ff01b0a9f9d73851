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
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// UserError is an expectable error while reconciling one user or group.
// The cycle answers it by skipping to the next item
type UserError struct {
	Username string
	Action   string
	Cause    string
}

// Error satisfies the error interface
func (e UserError) Error() string {
	return fmt.Sprintf("%s of %q failed: %s", e.Action, e.Username, e.Cause)
}

// transientErrorClasses are the PostgreSQL error classes that point at the
// connection or the server being unhealthy rather than at the statement
// being wrong: connection exceptions, insufficient resources, operator
// intervention, system errors
var transientErrorClasses = map[string]bool{
	"08": true,
	"53": true,
	"57": true,
	"58": true,
}

// isTransientError reports whether the error should abort the cycle and be
// retried on the next tick instead of being attributed to the current item
func isTransientError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return transientErrorClasses[string(pq.ErrorCode(pgErr.Code).Class())]
	}
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// getUserError matches an error to one of the expectable UserError's.
// If it does not match, it will simply pass the original error along
//
// For PostgreSQL codes see https://www.postgresql.org/docs/current/errcodes-appendix.html
func getUserError(err error, username string, action syncAction) (bool, error) {
	if errors.Is(err, errUnsupportedPrivilege) {
		return true, UserError{
			Action:   string(action),
			Username: username,
			Cause:    err.Error(),
		}
	}
	if isTransientError(err) {
		return false, err
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false, err
	}

	cause := pgErr.Message
	if pgErr.Detail != "" {
		cause = fmt.Sprintf("%s: %s", cause, pgErr.Detail)
	}
	if name := pq.ErrorCode(pgErr.Code).Name(); name != "" {
		cause = fmt.Sprintf("%s (%s)", cause, name)
	}

	return true, UserError{
		Action:   string(action),
		Username: username,
		Cause:    cause,
	}
}
