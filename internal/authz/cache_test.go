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

package authz_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jwbwvf/congregreat-server/internal/authz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachedRoleStore_HitsAndMisses(t *testing.T) {
	repo := NewMockRoleRepository(
		role("r-a", "member", grant(authz.EntityAttendance, authz.ActionCreate)),
		role("r-b", "secretary", grant(authz.EntityEvent, authz.ActionCreate)),
	)
	c := authz.NewCachedRoleStore(repo, 16, time.Minute)
	ctx := context.Background()

	roles, err := c.FindActiveByIDs(ctx, []string{"r-a"})
	require.NoError(t, err)
	assert.Len(t, roles, 1)
	assert.Equal(t, 1, repo.lookupCount())

	roles, err = c.FindActiveByIDs(ctx, []string{"r-a"})
	require.NoError(t, err)
	assert.Len(t, roles, 1)
	assert.Equal(t, 1, repo.lookupCount(), "cached role must not hit the store")

	roles, err = c.FindActiveByIDs(ctx, []string{"r-a", "r-b"})
	require.NoError(t, err)
	assert.Len(t, roles, 2)
	assert.Equal(t, 2, repo.lookupCount())
	assert.Equal(t, []string{"r-b"}, repo.lookups[1], "only misses are fetched")
	assert.Equal(t, 2, c.Len())
}

func TestCachedRoleStore_Invalidate(t *testing.T) {
	repo := NewMockRoleRepository(role("r-a", "member", grant(authz.EntityAttendance, authz.ActionCreate)))
	c := authz.NewCachedRoleStore(repo, 16, time.Minute)
	ctx := context.Background()

	_, err := c.FindActiveByIDs(ctx, []string{"r-a"})
	require.NoError(t, err)

	require.NoError(t, repo.SoftDelete(ctx, "r-a", "u-admin"))
	c.Invalidate("r-a")

	roles, err := c.FindActiveByIDs(ctx, []string{"r-a"})
	require.NoError(t, err)
	assert.Empty(t, roles)
	assert.Equal(t, 0, c.Len())
}

func TestCachedRoleStore_Expiry(t *testing.T) {
	repo := NewMockRoleRepository(role("r-a", "member", grant(authz.EntityAttendance, authz.ActionCreate)))
	c := authz.NewCachedRoleStore(repo, 16, 20*time.Millisecond)
	ctx := context.Background()

	_, err := c.FindActiveByIDs(ctx, []string{"r-a"})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, err := c.FindActiveByIDs(ctx, []string{"r-a"})
		return err == nil && repo.lookupCount() >= 2
	}, time.Second, 10*time.Millisecond)
}

func TestCachedRoleStore_StoreError(t *testing.T) {
	repo := NewMockRoleRepository()
	repo.err = errors.New("boom")
	c := authz.NewCachedRoleStore(repo, 16, time.Minute)

	_, err := c.FindActiveByIDs(context.Background(), []string{"r-a"})

	assert.EqualError(t, err, "boom")
}

func TestCachedRoleStore_WithResolver(t *testing.T) {
	repo := NewMockRoleRepository(
		role("r-a", "member", grant(authz.EntityAttendance, authz.ActionCreate)),
		role("r-b", "secretary", grant(authz.EntityEvent, authz.ActionCreate)),
	)
	r := authz.NewResolver(authz.NewCachedRoleStore(repo, 16, time.Minute))

	// Warm r-b only, so the cache returns it ahead of r-a.
	_, err := r.Resolve(context.Background(), []string{"r-b"})
	require.NoError(t, err)

	p, err := r.Resolve(context.Background(), []string{"r-a", "r-b"})
	require.NoError(t, err)
	require.Len(t, p.Permissions.Entities, 2)
	assert.Equal(t, authz.EntityAttendance, p.Permissions.Entities[0].Entity)
	assert.Equal(t, authz.EntityEvent, p.Permissions.Entities[1].Entity)
}
