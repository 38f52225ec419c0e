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

import "fmt"

// PermissionError describes the first violation found in a permission set.
// Its message is safe to return to API clients.
type PermissionError struct {
	msg string
}

func (e *PermissionError) Error() string { return e.msg }

// Is lets errors.Is match ErrInvalidPermission.
func (e *PermissionError) Is(target error) bool {
	return target == ErrInvalidPermission
}

func invalidPermissions(format string, args ...any) error {
	return &PermissionError{msg: fmt.Sprintf("The permissions are invalid since "+format, args...)}
}

// ValidatePermissions checks an authored permission set and reports the
// first violation.
func ValidatePermissions(p PermissionSet) error {
	if len(p.Entities) == 0 {
		return invalidPermissions("they do not contain any entities.")
	}

	for _, g := range p.Entities {
		if !g.Entity.Valid() {
			return invalidPermissions("it includes an invalid entity: %s", g.Entity)
		}
		if len(g.Actions) == 0 {
			return invalidPermissions("there are no actions on the entity: %s", g.Entity)
		}
		for _, a := range g.Actions {
			if !a.Valid() {
				return invalidPermissions("%s has an invalid action: %s", g.Entity, a)
			}
		}
	}

	return nil
}
