package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/credvault/internal/domain/model"
)

func TestCredentialRepo_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	cred := newTestCredential("c1", model.KindHosting, "root")
	require.NoError(t, repo.Create(ctx, cred))

	got, err := repo.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, model.ScopeProject, got.ScopeType)
	assert.Equal(t, "P1", got.ScopeID)
	assert.Equal(t, model.KindHosting, got.Kind)
	assert.Equal(t, "root", got.Username)
	assert.Equal(t, cred.SecretCiphertext, got.SecretCiphertext)
	assert.Equal(t, "https://panel.example.com", got.URL)
	assert.Equal(t, "primary account", got.Notes)
	assert.True(t, got.LastRotatedAt.Equal(fixtureTime))
	assert.True(t, got.CreatedAt.Equal(fixtureTime))
	assert.Equal(t, 1, got.Version)
	assert.False(t, got.IsArchived)
	assert.Equal(t, "admin-1", got.CreatedBy)
	assert.Empty(t, got.UpdatedBy)
	assert.Nil(t, got.UpdatedAt)
}

func TestCredentialRepo_GetMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)

	got, err := repo.GetByID(context.Background(), "nope")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestCredentialRepo_CreateDuplicate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newTestCredential("c1", model.KindHosting, "root")))
	err := repo.Create(ctx, newTestCredential("c1", model.KindEmail, "other"))
	assert.ErrorIs(t, err, model.ErrConflict)
}

func TestCredentialRepo_CreateRejectsEmptyCiphertext(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)

	cred := newTestCredential("c1", model.KindHosting, "root")
	cred.SecretCiphertext = nil

	err := repo.Create(context.Background(), cred)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestCredentialRepo_ListByScope_OrderAndFilter(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	fixtures := []model.Credential{
		newTestCredential("c1", model.KindRegistrar, "zed"),
		newTestCredential("c2", model.KindHosting, "bob"),
		newTestCredential("c3", model.KindHosting, "Alice"),
		newTestCredential("c4", model.KindHosting, "alice"),
		newTestCredential("c5", model.KindCDN, ""),
	}
	archived := newTestCredential("c6", model.KindAdminApp, "old")
	archived.IsArchived = true
	fixtures = append(fixtures, archived)

	otherScope := newTestCredential("c7", model.KindAdminApp, "elsewhere")
	otherScope.ScopeID = "P2"
	fixtures = append(fixtures, otherScope)

	clientScope := newTestCredential("c8", model.KindAdminApp, "client")
	clientScope.ScopeType = model.ScopeClient
	fixtures = append(fixtures, clientScope)

	for _, c := range fixtures {
		require.NoError(t, repo.Create(ctx, c))
	}

	metas, err := repo.ListByScope(ctx, model.ScopeProject, "P1", false)
	require.NoError(t, err)

	ids := make([]string, 0, len(metas))
	for _, m := range metas {
		ids = append(ids, m.ID)
	}
	// Byte-wise ordering: "CDN" < "Hosting" < "Registrar"; "Alice" < "alice" < "bob".
	assert.Equal(t, []string{"c5", "c3", "c4", "c2", "c1"}, ids)

	withArchived, err := repo.ListByScope(ctx, model.ScopeProject, "P1", true)
	require.NoError(t, err)
	require.Len(t, withArchived, 6)
	assert.Equal(t, "c6", withArchived[0].ID, "AdminApp sorts first")
	assert.True(t, withArchived[0].IsArchived)

	clients, err := repo.ListByScope(ctx, model.ScopeClient, "P1", false)
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, "c8", clients[0].ID)
}

func TestCredentialRepo_ListByScope_Empty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)

	metas, err := repo.ListByScope(context.Background(), model.ScopeProject, "none", false)
	require.NoError(t, err)
	assert.NotNil(t, metas)
	assert.Empty(t, metas)
}

func TestCredentialRepo_ListByScope_UpdatedAtFallback(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newTestCredential("c1", model.KindHosting, "root")))

	metas, err := repo.ListByScope(ctx, model.ScopeProject, "P1", false)
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.True(t, metas[0].UpdatedAt.Equal(fixtureTime))

	later := fixtureTime.Add(time.Hour)
	require.NoError(t, repo.Update(ctx, "c1", func(c *model.Credential) error {
		c.UpdatedAt = &later
		c.UpdatedBy = "director-1"
		return nil
	}))

	metas, err = repo.ListByScope(ctx, model.ScopeProject, "P1", false)
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.True(t, metas[0].UpdatedAt.Equal(later))
}

func TestCredentialRepo_Update(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newTestCredential("c1", model.KindHosting, "root")))

	rotated := fixtureTime.Add(2 * time.Hour)
	newBlob := make([]byte, 50)
	err := repo.Update(ctx, "c1", func(c *model.Credential) error {
		assert.Equal(t, 1, c.Version)
		c.Username = "admin"
		c.SecretCiphertext = newBlob
		c.LastRotatedAt = rotated
		c.IsArchived = true
		c.UpdatedBy = "director-1"
		c.UpdatedAt = &rotated
		return nil
	})
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "admin", got.Username)
	assert.Equal(t, newBlob, got.SecretCiphertext)
	assert.True(t, got.LastRotatedAt.Equal(rotated))
	assert.True(t, got.IsArchived)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, "director-1", got.UpdatedBy)
	require.NotNil(t, got.UpdatedAt)
	assert.True(t, got.UpdatedAt.Equal(rotated))
	// Immutable columns are never rewritten.
	assert.Equal(t, "P1", got.ScopeID)
	assert.Equal(t, "admin-1", got.CreatedBy)
}

func TestCredentialRepo_UpdateMutatorErrorRollsBack(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newTestCredential("c1", model.KindHosting, "root")))

	sentinel := errors.New("stop")
	err := repo.Update(ctx, "c1", func(c *model.Credential) error {
		c.Username = "changed"
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	got, err := repo.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "root", got.Username)
	assert.Equal(t, 1, got.Version)
}

func TestCredentialRepo_UpdateMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)

	called := false
	err := repo.Update(context.Background(), "nope", func(*model.Credential) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.False(t, called)
}
