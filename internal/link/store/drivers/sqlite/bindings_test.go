package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/minelink/internal/link/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "link.db")
	s, err := NewStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	return s
}

func saveParams(principal uuid.UUID, externalID string) store.SaveParams {
	return store.SaveParams{
		PrincipalID:     principal,
		DisplayName:     "Steve",
		ExternalID:      externalID,
		AccessToken:     "at",
		RefreshToken:    "rt",
		ExpiresIn:       3600,
		ProfileSnapshot: []byte(`{"id":"` + externalID + `"}`),
	}
}

func TestSaveAndGet(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	principal := uuid.New()

	require.NoError(t, s.Bindings().Save(ctx, saveParams(principal, "ext-1")))

	b, err := s.Bindings().Get(ctx, principal)
	require.NoError(t, err)
	require.Equal(t, principal, b.PrincipalID)
	require.Equal(t, "Steve", b.DisplayName)
	require.Equal(t, "ext-1", b.ExternalID)
	require.Equal(t, "at", b.AccessToken)
	require.Equal(t, "rt", b.RefreshToken)
	require.NotNil(t, b.TokenExpiresAt)
	require.JSONEq(t, `{"id":"ext-1"}`, string(b.ProfileSnapshot))
	require.NotEmpty(t, b.ID)
	require.False(t, b.CreatedAt.IsZero())

	byExt, err := s.Bindings().GetByExternalID(ctx, "ext-1")
	require.NoError(t, err)
	require.Equal(t, b.ID, byExt.ID)
}

func TestGetNotFound(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Bindings().Get(ctx, uuid.New())
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.Bindings().GetByExternalID(ctx, "ghost")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSaveUpsertsByPrincipal(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	principal := uuid.New()

	require.NoError(t, s.Bindings().Save(ctx, saveParams(principal, "ext-1")))
	first, err := s.Bindings().Get(ctx, principal)
	require.NoError(t, err)

	p := saveParams(principal, "ext-2")
	p.DisplayName = "Steve2"
	p.AccessToken = "at2"
	require.NoError(t, s.Bindings().Save(ctx, p))

	second, err := s.Bindings().Get(ctx, principal)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID, "re-bind keeps the row id")
	require.Equal(t, first.CreatedAt, second.CreatedAt, "re-bind keeps created_at")
	require.Equal(t, "ext-2", second.ExternalID)
	require.Equal(t, "Steve2", second.DisplayName)
	require.Equal(t, "at2", second.AccessToken)

	count, err := s.Bindings().Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestSaveConflictOnExternalID(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Bindings().Save(ctx, saveParams(uuid.New(), "shared-ext")))

	err := s.Bindings().Save(ctx, saveParams(uuid.New(), "shared-ext"))
	require.ErrorIs(t, err, store.ErrConflict)
}

func TestSaveRejectsInvalidSnapshot(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	p := saveParams(uuid.New(), "ext-1")
	p.ProfileSnapshot = []byte("not json")
	err := s.Bindings().Save(context.Background(), p)
	require.ErrorIs(t, err, store.ErrInvalidProfile)
}

func TestSaveNeverExpiringToken(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	principal := uuid.New()

	p := saveParams(principal, "ext-1")
	p.ExpiresIn = 0
	require.NoError(t, s.Bindings().Save(ctx, p))

	b, err := s.Bindings().Get(ctx, principal)
	require.NoError(t, err)
	require.Nil(t, b.TokenExpiresAt)
	require.False(t, b.TokenExpired(b.CreatedAt.Add(24*time.Hour)))
}

func TestIsBoundChecks(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	principal := uuid.New()

	bound, err := s.Bindings().IsPrincipalBound(ctx, principal)
	require.NoError(t, err)
	require.False(t, bound)

	require.NoError(t, s.Bindings().Save(ctx, saveParams(principal, "ext-1")))

	bound, err = s.Bindings().IsPrincipalBound(ctx, principal)
	require.NoError(t, err)
	require.True(t, bound)

	bound, err = s.Bindings().IsExternalIDBound(ctx, "ext-1")
	require.NoError(t, err)
	require.True(t, bound)

	bound, err = s.Bindings().IsExternalIDBound(ctx, "ext-2")
	require.NoError(t, err)
	require.False(t, bound)
}

func TestDelete(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	principal := uuid.New()

	require.NoError(t, s.Bindings().Save(ctx, saveParams(principal, "ext-1")))

	removed, err := s.Bindings().Delete(ctx, principal)
	require.NoError(t, err)
	require.True(t, removed)

	_, err = s.Bindings().Get(ctx, principal)
	require.ErrorIs(t, err, store.ErrNotFound)

	removed, err = s.Bindings().Delete(ctx, principal)
	require.NoError(t, err)
	require.False(t, removed, "double delete reports no row")
}

func TestListPagination(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	for i := range 5 {
		require.NoError(t, s.Bindings().Save(ctx, saveParams(uuid.New(), fmt.Sprintf("ext-%d", i))))
	}

	page1, err := s.Bindings().List(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	// Newest first: the last insert leads.
	require.Equal(t, "ext-4", page1[0].ExternalID)
	require.Equal(t, "ext-3", page1[1].ExternalID)

	page2, err := s.Bindings().List(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page2, 2)
	require.Equal(t, "ext-2", page2[0].ExternalID)

	page3, err := s.Bindings().List(ctx, 3, 2)
	require.NoError(t, err)
	require.Len(t, page3, 1)

	empty, err := s.Bindings().List(ctx, 4, 2)
	require.NoError(t, err)
	require.Empty(t, empty)

	count, err := s.Bindings().Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 5, count)
}

func TestListClampsBadInput(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Bindings().Save(ctx, saveParams(uuid.New(), "ext-1")))

	rows, err := s.Bindings().List(ctx, 0, -5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestUpdateTokens(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	principal := uuid.New()

	require.NoError(t, s.Bindings().Save(ctx, saveParams(principal, "ext-1")))

	updated, err := s.Bindings().UpdateTokens(ctx, principal, "new-at", "new-rt", 60)
	require.NoError(t, err)
	require.True(t, updated)

	b, err := s.Bindings().Get(ctx, principal)
	require.NoError(t, err)
	require.Equal(t, "new-at", b.AccessToken)
	require.Equal(t, "new-rt", b.RefreshToken)
	require.NotNil(t, b.TokenExpiresAt)

	updated, err = s.Bindings().UpdateTokens(ctx, uuid.New(), "a", "r", 60)
	require.NoError(t, err)
	require.False(t, updated, "unknown principal reports no row")
}

func TestUpdateDisplayName(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	principal := uuid.New()

	require.NoError(t, s.Bindings().Save(ctx, saveParams(principal, "ext-1")))

	updated, err := s.Bindings().UpdateDisplayName(ctx, principal, "Herobrine")
	require.NoError(t, err)
	require.True(t, updated)

	b, err := s.Bindings().Get(ctx, principal)
	require.NoError(t, err)
	require.Equal(t, "Herobrine", b.DisplayName)

	updated, err = s.Bindings().UpdateDisplayName(ctx, uuid.New(), "x")
	require.NoError(t, err)
	require.False(t, updated)
}
