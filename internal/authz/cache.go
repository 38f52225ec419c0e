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

import (
	"context"
	"slices"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// CachedRoleStore caches active roles by id in front of another RoleStore.
// Only roles returned by the underlying store are cached, so unknown or
// deleted ids always reach it.
type CachedRoleStore struct {
	next  RoleStore
	cache *lru.LRU[string, *Role]
	group singleflight.Group
}

// NewCachedRoleStore wraps next with an LRU of size entries that expire
// after ttl.
func NewCachedRoleStore(next RoleStore, size int, ttl time.Duration) *CachedRoleStore {
	return &CachedRoleStore{
		next:  next,
		cache: lru.NewLRU[string, *Role](size, nil, ttl),
	}
}

// FindActiveByIDs implements RoleStore.
func (c *CachedRoleStore) FindActiveByIDs(ctx context.Context, ids []string) ([]*Role, error) {
	roles := make([]*Role, 0, len(ids))
	var missing []string
	for _, id := range ids {
		if role, ok := c.cache.Get(id); ok {
			roles = append(roles, role)
			continue
		}
		missing = append(missing, id)
	}

	if len(missing) == 0 {
		return roles, nil
	}

	key := slices.Clone(missing)
	slices.Sort(key)
	v, err, _ := c.group.Do(strings.Join(slices.Compact(key), ","), func() (any, error) {
		return c.next.FindActiveByIDs(ctx, missing)
	})
	if err != nil {
		return nil, err
	}

	for _, role := range v.([]*Role) {
		if role == nil || !role.Active() {
			continue
		}
		c.cache.Add(role.ID, role)
		roles = append(roles, role)
	}
	return roles, nil
}

// Invalidate drops a cached role.
func (c *CachedRoleStore) Invalidate(id string) {
	c.cache.Remove(id)
}

// Len returns the number of cached roles.
func (c *CachedRoleStore) Len() int {
	return c.cache.Len()
}
