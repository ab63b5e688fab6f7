package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/moviecatalog/internal/model"
	"github.com/user/moviecatalog/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

func TestCatalogService_UsernamesCacheInvalidation(t *testing.T) {
	repos := setupRepos(t)
	auth := NewAuthService(repos.User, repos.Session, bcrypt.MinCost, time.Minute)
	catalog := NewCatalogService(repos, time.Minute)
	ctx := context.Background()

	alice, err := auth.Register(ctx, "alice", "pw1", "")
	require.NoError(t, err)

	names, err := catalog.UsernamesByID(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[uint]string{alice.ID: "alice"}, names)

	bob, err := auth.Register(ctx, "bob", "pw2", "")
	require.NoError(t, err)

	// 未失效前读到的是缓存
	names, err = catalog.UsernamesByID(ctx)
	require.NoError(t, err)
	assert.Len(t, names, 1)

	catalog.Invalidate(model.ResourceUsers)
	names, err = catalog.UsernamesByID(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[uint]string{alice.ID: "alice", bob.ID: "bob"}, names)
}

func TestCatalogService_CategoriesCache(t *testing.T) {
	repos := setupRepos(t)
	catalog := NewCatalogService(repos, time.Minute)
	ctx := context.Background()

	rows, err := catalog.Read(ctx, model.ResourceCategories, nil)
	require.NoError(t, err)
	assert.Len(t, rows.([]model.Category), len(model.DefaultCategories))

	_, err = catalog.Insert(ctx, model.ResourceCategories, map[string]any{"name": "Cult classics"}, 0)
	require.NoError(t, err)

	rows, err = catalog.Read(ctx, model.ResourceCategories, nil)
	require.NoError(t, err)
	assert.Len(t, rows.([]model.Category), len(model.DefaultCategories)+1)

	rows, err = catalog.Read(ctx, model.ResourceCategories, map[string]any{"name": "Cult classics"})
	require.NoError(t, err)
	assert.Len(t, rows.([]model.Category), 1)
}

func TestCatalogService_InsertFilmDefaultsAuthor(t *testing.T) {
	repos := setupRepos(t)
	catalog := NewCatalogService(repos, time.Minute)
	ctx := context.Background()
	alice, err := repos.User.Create(ctx, "alice", "x", "")
	require.NoError(t, err)

	row, err := catalog.Insert(ctx, model.ResourceFilms, map[string]any{"name": "Dune", "rating": 9}, alice.ID)
	require.NoError(t, err)
	film := row.(*model.Film)
	require.NotNil(t, film.AuthorID)
	assert.Equal(t, alice.ID, *film.AuthorID)

	row, err = catalog.Insert(ctx, model.ResourceFilms, map[string]any{"name": "Arrival", "rating": 8, "author_id": nil}, alice.ID)
	require.NoError(t, err)
	assert.Nil(t, row.(*model.Film).AuthorID)
}

func TestCatalogService_WatchedStatus(t *testing.T) {
	repos := setupRepos(t)
	catalog := NewCatalogService(repos, time.Minute)
	ctx := context.Background()
	alice, err := repos.User.Create(ctx, "alice", "x", "")
	require.NoError(t, err)
	row, err := catalog.Insert(ctx, model.ResourceFilms, map[string]any{"name": "Dune", "rating": 9}, alice.ID)
	require.NoError(t, err)
	film := row.(*model.Film)

	require.NoError(t, catalog.UpsertWatchedStatus(ctx, alice.ID, film.ID, true))
	require.NoError(t, catalog.UpsertWatchedStatus(ctx, alice.ID, film.ID, true))

	watched, err := catalog.WatchedByUser(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, watched, 1)
	assert.Equal(t, film.ID, watched[0].FilmID)

	_, err = catalog.Delete(ctx, model.ResourceFilms, repository.Condition{Column: "id", Value: float64(film.ID)})
	require.NoError(t, err)

	watched, err = catalog.WatchedByUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, watched)
}

func TestCleanupService_RunOnce(t *testing.T) {
	repos := setupRepos(t)
	ctx := context.Background()

	assert.EqualValues(t, 0, NewCleanupService(repos).RunOnce(ctx))
}
