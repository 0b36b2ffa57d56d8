package permissions

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polystore/polystore-console/internal/shared"
)

type mockCatalog struct {
	groups    []Group
	listCalls int
	listError error
}

func (m *mockCatalog) ListGroups(ctx context.Context) ([]Group, error) {
	m.listCalls++
	if m.listError != nil {
		return nil, m.listError
	}
	return append([]Group(nil), m.groups...), nil
}

func testCache(t *testing.T) *redis.Client {
	t.Helper()
	srv, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	return redis.NewClient(&redis.Options{Addr: srv.Addr()})
}

func TestListGroupsOrdersByGroupName(t *testing.T) {
	catalog := &mockCatalog{groups: []Group{
		{ID: "sec", Name: "Security", Permissions: []Permission{{ID: "sec.read", Name: "View security"}}},
		{ID: "doc", Name: "documents", Permissions: []Permission{{ID: "doc.read", Name: "View documents"}}},
		{ID: "bkp", Name: "Backups", Permissions: []Permission{{ID: "bkp.run", Name: "Run backups"}}},
	}}
	service := NewService(catalog, nil, time.Minute, nil)

	groups, err := service.ListGroups(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 3)
	assert.Equal(t, "Backups", groups[0].Name)
	assert.Equal(t, "documents", groups[1].Name)
	assert.Equal(t, "Security", groups[2].Name)
}

func TestListGroupsServesSecondReadFromCache(t *testing.T) {
	catalog := &mockCatalog{groups: []Group{
		{ID: "doc", Name: "Documents", Permissions: []Permission{{ID: "doc.read", Name: "View documents"}}},
	}}
	service := NewService(catalog, testCache(t), time.Minute, nil)

	first, err := service.ListGroups(context.Background())
	require.NoError(t, err)
	second, err := service.ListGroups(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, catalog.listCalls)
}

func TestInvalidateForcesCatalogRefetch(t *testing.T) {
	catalog := &mockCatalog{groups: []Group{{ID: "doc", Name: "Documents"}}}
	service := NewService(catalog, testCache(t), time.Minute, nil)

	_, err := service.ListGroups(context.Background())
	require.NoError(t, err)

	service.Invalidate(context.Background())

	_, err = service.ListGroups(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, catalog.listCalls)
}

func TestListGroupsWrapsCatalogFailure(t *testing.T) {
	catalog := &mockCatalog{listError: fmt.Errorf("backend down")}
	service := NewService(catalog, nil, time.Minute, nil)

	_, err := service.ListGroups(context.Background())
	require.ErrorIs(t, err, shared.ErrUnavailable)
}

func TestListGroupsSkipsCacheWhenRedisUnavailable(t *testing.T) {
	catalog := &mockCatalog{groups: []Group{{ID: "doc", Name: "Documents"}}}
	dead := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	service := NewService(catalog, dead, time.Minute, nil)

	groups, err := service.ListGroups(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 1)

	_, err = service.ListGroups(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, catalog.listCalls)
}
