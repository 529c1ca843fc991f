package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteContactStore_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteContactStore("")
	require.NoError(t, err)
	defer s.Close()

	// Given: a saved contact set
	contacts := scenarioContacts()
	require.NoError(t, s.SaveUser(ctx, "u1", contacts, 3))

	// When: loading it back
	got, version, err := s.LoadUser(ctx, "u1")

	// Then: contacts and version round-trip, ordered by id
	require.NoError(t, err)
	assert.Equal(t, uint64(3), version)
	assert.Equal(t, contacts, got)
}

func TestSQLiteContactStore_SaveReplacesPreviousSet(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteContactStore("")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SaveUser(ctx, "u1", scenarioContacts(), 1))
	require.NoError(t, s.SaveUser(ctx, "u1", scenarioContacts()[:1], 2))

	got, version, err := s.LoadUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), version)
	require.Len(t, got, 1)
	assert.Equal(t, "c1", got[0].ID)
}

func TestSQLiteContactStore_UnknownUser(t *testing.T) {
	s, err := NewSQLiteContactStore("")
	require.NoError(t, err)
	defer s.Close()

	got, version, err := s.LoadUser(context.Background(), "ghost")

	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Zero(t, version)
}

func TestSQLiteContactStore_EmptySetKeepsVersion(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteContactStore("")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SaveUser(ctx, "u1", nil, 5))

	got, version, err := s.LoadUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, uint64(5), version)

	users, err := s.Users(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, users)
}

func TestSQLiteContactStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "contacts.db")

	s, err := NewSQLiteContactStore(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveUser(ctx, "b", scenarioContacts()[:2], 1))
	require.NoError(t, s.SaveUser(ctx, "a", scenarioContacts()[2:], 4))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteContactStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	users, err := reopened.Users(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, users)

	got, version, err := reopened.LoadUser(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, uint64(4), version)
	assert.Len(t, got, 2)
}

func TestSQLiteContactStore_ClosedStoreErrors(t *testing.T) {
	s, err := NewSQLiteContactStore("")
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, _, err = s.LoadUser(context.Background(), "u")
	assert.Error(t, err)
}

func TestSQLiteContactStore_Stats(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteContactStore("")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SaveUser(ctx, "zed", scenarioContacts()[:1], 4))
	require.NoError(t, s.SaveUser(ctx, "amy", scenarioContacts(), 2))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "amy", stats[0].User)
	assert.Equal(t, len(scenarioContacts()), stats[0].Contacts)
	assert.Equal(t, uint64(2), stats[0].Version)
	assert.False(t, stats[0].UpdatedAt.IsZero())
	assert.Equal(t, "zed", stats[1].User)
	assert.Equal(t, 1, stats[1].Contacts)
	assert.Empty(t, s.Path())
}
