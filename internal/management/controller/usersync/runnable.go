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
	"fmt"
	"time"

	"github.com/kubesql/postgres-user-controller/internal/configuration"
	"github.com/kubesql/postgres-user-controller/internal/management/metricserver"
	"github.com/kubesql/postgres-user-controller/pkg/management/log"
	"github.com/kubesql/postgres-user-controller/pkg/stringset"
)

// syncAction encodes the action necessary for a user, i.e. ignore, or CRUD
type syncAction string

// possible user actions
const (
	userIsReconciled syncAction = "RECONCILED"
	userCreate       syncAction = "CREATE"
	userDelete       syncAction = "DELETE"
	userUpdate       syncAction = "UPDATE"
	userIgnore       syncAction = "IGNORE"
	userIsReserved   syncAction = "RESERVED"
	groupCreate      syncAction = "CREATE_GROUP"
)

// cycleStats accumulates the outcome of one reconciliation cycle.
// RolesDeleted stays at zero: group roles are never garbage collected,
// their deletion is operator-initiated only
type cycleStats struct {
	UsersCreated int
	UsersUpdated int
	UsersDeleted int
	RolesCreated int
	RolesDeleted int
	Drift        int
	Errors       int
	UsersManaged int
	RolesManaged int
	StartedAt    time.Time
	FinishedAt   time.Time
}

// A UserSynchronizer is the runnable that makes sure the users in the
// PostgreSQL database are in sync with the declared spec
type UserSynchronizer struct {
	config  *configuration.Data
	manager DatabaseManager
	specs   SpecFetcher
	secrets PasswordResolver
	state   StateStore
	metrics *metricserver.Metrics
}

// NewUserSynchronizer creates a new UserSynchronizer
func NewUserSynchronizer(
	config *configuration.Data,
	manager DatabaseManager,
	specs SpecFetcher,
	secrets PasswordResolver,
	state StateStore,
	metrics *metricserver.Metrics,
) *UserSynchronizer {
	return &UserSynchronizer{
		config:  config,
		manager: manager,
		specs:   specs,
		secrets: secrets,
		state:   state,
		metrics: metrics,
	}
}

// Start runs the reconciliation loop until the context is canceled. The
// sleep interval is measured from the end of one cycle to the start of the
// next one, so cycles never overlap
func (sr *UserSynchronizer) Start(ctx context.Context) error {
	contextLog := log.FromContext(ctx).WithName("user_synchronizer")
	contextLog.Info("setting up UserSynchronizer loop",
		"syncInterval", sr.config.SyncInterval,
		"dryRun", sr.config.DryRun)

	defer func() {
		contextLog.Info("Terminated UserSynchronizer loop")
	}()

	for {
		if err := sr.reconcile(ctx); err != nil {
			contextLog.Error(err, "synchronizing users")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(sr.config.SyncPeriod()):
		}
	}
}

// reconcile runs one cycle and records its outcome in the metrics,
// whichever way it ends
func (sr *UserSynchronizer) reconcile(ctx context.Context) (err error) {
	contextLog := log.FromContext(ctx).WithName("user_synchronizer")
	contextLog.Debug("reconciling declared users")

	stats := cycleStats{StartedAt: time.Now()}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recovered from a panic: %s", r)
		}
		stats.FinishedAt = time.Now()
		sr.exportStats(&stats, err)
		if err == nil {
			contextLog.Info("reconciliation complete",
				"usersCreated", stats.UsersCreated,
				"usersUpdated", stats.UsersUpdated,
				"usersDeleted", stats.UsersDeleted,
				"rolesCreated", stats.RolesCreated,
				"rolesDeleted", stats.RolesDeleted,
				"drift", stats.Drift,
				"errors", stats.Errors,
				"elapsed", stats.FinishedAt.Sub(stats.StartedAt).String())
		}
	}()

	return sr.synchronizeUsers(ctx, &stats)
}

// exportStats records the outcome of a cycle on the metrics. A cycle-level
// failure counts as one more error and leaves the completion counters and
// the gauges alone
func (sr *UserSynchronizer) exportStats(stats *cycleStats, cycleErr error) {
	errorCount := stats.Errors
	if cycleErr != nil {
		errorCount++
	}

	if cycleErr == nil {
		sr.metrics.ReconciliationsTotal.Inc()
		sr.metrics.LastReconciliationTimestamp.Set(float64(stats.FinishedAt.Unix()))
		sr.metrics.DriftTotal.Add(float64(stats.Drift))
		sr.metrics.UsersManaged.Set(float64(stats.UsersManaged))
		sr.metrics.RolesManaged.Set(float64(stats.RolesManaged))
	}
	if errorCount > 0 {
		sr.metrics.ErrorsTotal.Add(float64(errorCount))
		sr.metrics.LastErrorTimestamp.Set(float64(stats.FinishedAt.Unix()))
	}
}

// synchronizeUsers aligns the users in the database to the declared spec.
// Item-level failures are counted and skipped; failures that compromise the
// whole cycle abort it, leaving the persisted state untouched
func (sr *UserSynchronizer) synchronizeUsers(ctx context.Context, stats *cycleStats) error {
	contextLog := log.FromContext(ctx).WithName("user_synchronizer")

	desired, err := sr.specs.FetchDesired(ctx)
	if err != nil {
		return fmt.Errorf("while fetching the declared users: %w", err)
	}
	if desired == nil {
		return fmt.Errorf("user spec %s/%s not found, nothing to reconcile",
			sr.config.Namespace, sr.config.ConfigMapName)
	}
	stats.UsersManaged = len(desired)

	lastApplied, err := sr.state.Load(ctx)
	if err != nil {
		contextLog.Error(err, "while loading the applied state, treating every live user as unowned")
		stats.Errors++
		lastApplied = Spec{}
	}

	liveUsers, err := sr.manager.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("while listing the database users: %w", err)
	}
	liveGroups, err := sr.manager.ListGroups(ctx)
	if err != nil {
		return fmt.Errorf("while listing the database group roles: %w", err)
	}

	if err := sr.reconcileGroups(ctx, desired, liveGroups, stats); err != nil {
		return err
	}

	usersByAction := evaluateNextUserActions(ctx, desired, lastApplied, liveUsers)
	stats.Drift = usersByAction.computeDrift()

	if err := sr.applyUserActions(ctx, usersByAction, stats); err != nil {
		return err
	}

	sr.persistState(ctx, desired, stats)

	// the gauge reports the group roles still present after the mutations
	// of this cycle
	refreshedGroups, refreshErr := sr.manager.ListGroups(ctx)
	if refreshErr != nil {
		contextLog.Error(refreshErr, "while refreshing the group roles gauge")
		stats.Errors++
		refreshedGroups = liveGroups
	}
	stats.RolesManaged = refreshedGroups.Len()

	return nil
}

// reconcileGroups creates every group role referenced by the spec that the
// database does not have yet. Newly created groups are added to liveGroups
// so that the rest of the cycle sees them
func (sr *UserSynchronizer) reconcileGroups(
	ctx context.Context,
	desired Spec,
	liveGroups *stringset.Data,
	stats *cycleStats,
) error {
	contextLog := log.FromContext(ctx).WithName("user_synchronizer")

	for _, group := range neededGroups(desired) {
		if liveGroups.Has(group) {
			continue
		}
		contextLog.Debug("creating group role", "role", group)
		if err := sr.manager.CreateGroup(ctx, group); err != nil {
			isExpectable, cause := getUserError(err, group, groupCreate)
			if !isExpectable {
				return fmt.Errorf("while creating group role %s: %w", group, cause)
			}
			contextLog.Error(cause, "unable to create group role", "role", group)
			stats.Errors++
			continue
		}
		stats.RolesCreated++
		liveGroups.Put(group)
	}

	return nil
}

// applyUserActions applies the computed actions in the order that makes a
// cycle converge: deletions first, then creations, then membership updates
//
// NOTE: applyUserActions will carry on after an expectable error, i.e. an
// error due to an invalid request for postgres. This is so that other
// actions will not be blocked by a single user. It will, however, error out
// on unexpected errors.
func (sr *UserSynchronizer) applyUserActions(
	ctx context.Context,
	usersByAction usersByAction,
	stats *cycleStats,
) error {
	contextLog := log.FromContext(ctx).WithName("user_synchronizer")
	contextLog.Debug("applying user actions")

	handleUserError := func(errToEvaluate error, username string, action syncAction) error {
		// log expectable PostgreSQL errors and keep going, stop on the others
		isExpectable, err := getUserError(errToEvaluate, username, action)
		if !isExpectable {
			return err
		}
		contextLog.Error(err, "while performing "+string(action), "user", username)
		stats.Errors++
		return nil
	}

	for _, record := range usersByAction[userDelete] {
		contextLog.Debug("dropping user", "user", record.Username)
		if err := sr.manager.DropUser(ctx, record.Username); err != nil {
			if err := handleUserError(err, record.Username, userDelete); err != nil {
				return fmt.Errorf("while dropping user %s: %w", record.Username, err)
			}
			continue
		}
		stats.UsersDeleted++
	}

	for _, record := range usersByAction[userCreate] {
		password, err := sr.secrets.PasswordFor(ctx, record.Username)
		if err != nil {
			contextLog.Error(err, "while reading the password secret", "user", record.Username)
			stats.Errors++
			continue
		}
		if password == "" {
			contextLog.Warning("no password secret published for user, skipping creation",
				"user", record.Username)
			stats.Errors++
			continue
		}
		contextLog.Debug("creating user", "user", record.Username)
		if err := sr.manager.CreateUser(ctx, record, password); err != nil {
			if err := handleUserError(err, record.Username, userCreate); err != nil {
				return fmt.Errorf("while creating user %s: %w", record.Username, err)
			}
			continue
		}
		stats.UsersCreated++
	}

	for _, record := range usersByAction[userUpdate] {
		updated, err := sr.updateUserMembership(ctx, record)
		if err != nil {
			if err := handleUserError(err, record.Username, userUpdate); err != nil {
				return fmt.Errorf("while updating user %s: %w", record.Username, err)
			}
			continue
		}
		if updated {
			stats.UsersUpdated++
		}
	}

	return nil
}

// updateUserMembership aligns the memberships of a user with the declared
// ones. The diff is taken against the memberships the database reports,
// not against the last applied state
func (sr *UserSynchronizer) updateUserMembership(ctx context.Context, record UserRecord) (bool, error) {
	contextLog := log.FromContext(ctx).WithName("user_synchronizer")

	currentRoles, err := sr.manager.UserRoles(ctx, record.Username)
	if err != nil {
		return false, err
	}
	desiredRoles := record.NormalizedRoles()
	if stringset.From(currentRoles).Eq(stringset.From(desiredRoles)) {
		return false, nil
	}

	contextLog.Debug("updating user memberships", "user", record.Username,
		"currentRoles", currentRoles, "desiredRoles", desiredRoles)
	if err := sr.manager.UpdateUserRoles(ctx, record.Username, currentRoles, desiredRoles); err != nil {
		return false, err
	}

	return true, nil
}

// persistState saves the spec that has just been applied. In dry-run mode
// nothing is written
func (sr *UserSynchronizer) persistState(ctx context.Context, desired Spec, stats *cycleStats) {
	contextLog := log.FromContext(ctx).WithName("user_synchronizer")

	if sr.config.DryRun {
		contextLog.Info("dry-run: skipping state persistence")
		return
	}
	if err := sr.state.Save(ctx, desired); err != nil {
		contextLog.Error(err, "while persisting the applied state", "stateFile", sr.config.StateFile)
		stats.Errors++
	}
}
