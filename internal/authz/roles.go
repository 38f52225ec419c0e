// Copyright 2026 The Congregreat Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package authz

// -----------------------------------------------------------------------------
// Built-in Roles
// The system admin role is seeded by the bootstrap command.
// -----------------------------------------------------------------------------

// SystemAdminPermissions grants every action on every entity. Holders of the
// system admin role bypass grant checks anyway; the explicit set keeps the
// stored role readable and valid.
func SystemAdminPermissions() PermissionSet {
	grants := make([]Grant, 0, len(Entities))
	for _, e := range Entities {
		actions := make([]Action, len(Actions))
		copy(actions, Actions)
		grants = append(grants, Grant{Entity: e, Actions: actions})
	}
	return PermissionSet{Entities: grants}
}

// SystemActorID is recorded as created_by / updated_by for rows written by
// the bootstrap command.
const SystemActorID = "system"
