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
	"slices"

	"github.com/kubesql/postgres-user-controller/pkg/management/log"
	"github.com/kubesql/postgres-user-controller/pkg/stringset"
)

type usersByAction map[syncAction][]UserRecord

// computeDrift counts the observable differences between the desired and
// the live user set: pending creations plus pending owned deletions
func (u usersByAction) computeDrift() int {
	return len(u[userCreate]) + len(u[userDelete])
}

// evaluateNextUserActions evaluates the action needed for each user in the
// DB and/or the spec. It has no side effects
func evaluateNextUserActions(
	ctx context.Context,
	desired Spec,
	lastApplied Spec,
	liveUsers *stringset.Data,
) usersByAction {
	contextLog := log.FromContext(ctx).WithName("user_synchronizer")
	contextLog.Debug("evaluating user actions")

	usersByAction := make(usersByAction)
	// 1. find the next actions for the users in the DB
	for _, username := range liveUsers.ToSortedList() {
		record, isInSpec := desired[username]
		lastRecord, wasApplied := lastApplied[username]
		switch {
		case ReservedRoles[username]:
			usersByAction[userIsReserved] = append(usersByAction[userIsReserved], UserRecord{Username: username})
		case isInSpec && wasApplied && rolesChanged(lastRecord, record):
			usersByAction[userUpdate] = append(usersByAction[userUpdate], record)
		case isInSpec:
			usersByAction[userIsReconciled] = append(usersByAction[userIsReconciled], record)
		case wasApplied:
			usersByAction[userDelete] = append(usersByAction[userDelete], UserRecord{Username: username})
		default:
			// a live user this controller never applied is not ours to delete
			usersByAction[userIgnore] = append(usersByAction[userIgnore], UserRecord{Username: username})
		}
	}

	// 2. users in the spec missing from the DB need to be created
	for _, username := range desired.Names() {
		if liveUsers.Has(username) {
			continue // covered by the previous loop
		}
		if ReservedRoles[username] {
			usersByAction[userIsReserved] = append(usersByAction[userIsReserved], UserRecord{Username: username})
			continue
		}
		usersByAction[userCreate] = append(usersByAction[userCreate], desired[username])
	}

	return usersByAction
}

// rolesChanged checks whether the declared role set of a user moved away
// from what the last cycle applied
func rolesChanged(lastApplied, desired UserRecord) bool {
	return !slices.Equal(lastApplied.NormalizedRoles(), desired.NormalizedRoles())
}

// neededGroups collects every group role referenced by the spec, sorted,
// skipping the reserved ones
func neededGroups(desired Spec) []string {
	groups := stringset.New()
	for _, record := range desired {
		for _, role := range record.Roles {
			if ReservedRoles[role] {
				continue
			}
			groups.Put(role)
		}
	}
	return groups.ToSortedList()
}

// getRolesToGrant computes the group roles that need granting to move the
// current membership of a user to the desired one
func getRolesToGrant(currentMembership, desiredRoles []string) []string {
	return stringset.From(desiredRoles).
		Difference(stringset.From(currentMembership)).
		ToSortedList()
}

// getRolesToRevoke computes the group roles that need revoking to move the
// current membership of a user to the desired one
func getRolesToRevoke(currentMembership, desiredRoles []string) []string {
	return stringset.From(currentMembership).
		Difference(stringset.From(desiredRoles)).
		ToSortedList()
}
