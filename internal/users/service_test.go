package users

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ministeam/ministeam-api/pkg/config"
	"github.com/ministeam/ministeam-api/pkg/db/dbtest"
	"github.com/ministeam/ministeam-api/pkg/enums"
	pkgerrors "github.com/ministeam/ministeam-api/pkg/errors"
	"github.com/ministeam/ministeam-api/pkg/pagination"
	"github.com/ministeam/ministeam-api/pkg/security"
)

var testPasswordCfg = config.PasswordConfig{
	ArgonMemoryKB:    64,
	ArgonTime:        1,
	ArgonParallelism: 1,
	ArgonSaltLen:     16,
	ArgonKeyLen:      32,
}

func newTestService(t *testing.T) (Service, *Repository) {
	t.Helper()
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc, err := NewService(ServiceParams{Repo: repo, PasswordConfig: testPasswordCfg})
	require.NoError(t, err)
	return svc, repo
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func TestUpdateSelf(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	conn := repo.db
	alice := dbtest.SeedUser(t, conn, "alice")

	updated, err := svc.Update(ctx, alice.ID, enums.UserRoleCustomer, alice.ID, UpdateUserRequest{
		Country:  strPtr("Chile"),
		Password: strPtr("new-secret"),
		IsActive: boolPtr(false),
	})
	require.NoError(t, err)
	require.Equal(t, "Chile", *updated.Country)
	require.True(t, updated.IsActive, "customers cannot change their own active flag")

	stored, err := repo.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	ok, err := security.VerifyPassword("new-secret", stored.PasswordHash)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestUpdateRejectsOtherUsersForCustomers(t *testing.T) {
	svc, repo := newTestService(t)
	alice := dbtest.SeedUser(t, repo.db, "alice")
	bob := dbtest.SeedUser(t, repo.db, "bob")

	_, err := svc.Update(context.Background(), alice.ID, enums.UserRoleCustomer, bob.ID, UpdateUserRequest{Country: strPtr("AR")})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestUpdateDuplicateIdentity(t *testing.T) {
	svc, repo := newTestService(t)
	alice := dbtest.SeedUser(t, repo.db, "alice")
	dbtest.SeedUser(t, repo.db, "bob")

	_, err := svc.Update(context.Background(), alice.ID, enums.UserRoleCustomer, alice.ID, UpdateUserRequest{Username: strPtr("bob")})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	_, err = svc.Update(context.Background(), alice.ID, enums.UserRoleCustomer, alice.ID, UpdateUserRequest{Email: strPtr("BOB@example.com")})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestUpdateShortPassword(t *testing.T) {
	svc, repo := newTestService(t)
	alice := dbtest.SeedUser(t, repo.db, "alice")

	_, err := svc.Update(context.Background(), alice.ID, enums.UserRoleCustomer, alice.ID, UpdateUserRequest{Password: strPtr("123")})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestAdminDeactivatesAndDeletes(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	admin := dbtest.SeedUser(t, repo.db, "root")
	alice := dbtest.SeedUser(t, repo.db, "alice")

	updated, err := svc.Update(ctx, admin.ID, enums.UserRoleAdmin, alice.ID, UpdateUserRequest{IsActive: boolPtr(false)})
	require.NoError(t, err)
	require.False(t, updated.IsActive)

	require.True(t, pkgerrors.IsCode(svc.Delete(ctx, alice.ID), pkgerrors.CodeNotFound), "already inactive")

	bob := dbtest.SeedUser(t, repo.db, "bob")
	require.NoError(t, svc.Delete(ctx, bob.ID))
	got, err := svc.Get(ctx, bob.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive)

	_, err = svc.Get(ctx, uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestListAndStats(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	for _, name := range []string{"alice", "alina", "bob"} {
		dbtest.SeedUser(t, repo.db, name)
	}
	require.NoError(t, repo.db.Exec("UPDATE users SET role = ? WHERE username = ?", enums.UserRoleAdmin, "bob").Error)
	require.NoError(t, svc.Delete(ctx, mustFind(t, repo, "alina@example.com")))

	page, err := svc.List(ctx, ListParams{Search: "ALI", Page: pagination.Params{Page: 1, Limit: 1}})
	require.NoError(t, err)
	require.Len(t, page.Users, 1)
	require.Equal(t, int64(2), page.Pagination.Total)
	require.Equal(t, 2, page.Pagination.TotalPages)

	active, err := svc.List(ctx, ListParams{Active: boolPtr(true)})
	require.NoError(t, err)
	require.Equal(t, int64(2), active.Pagination.Total)
	require.Equal(t, defaultListLimit, active.Pagination.Limit)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(3), stats.Total)
	require.Equal(t, int64(2), stats.Active)
	require.Equal(t, int64(1), stats.Inactive)
	require.Equal(t, int64(1), stats.ByRole[enums.UserRoleAdmin])
	require.Equal(t, int64(2), stats.ByRole[enums.UserRoleCustomer])
}

func mustFind(t *testing.T, repo *Repository, email string) uuid.UUID {
	t.Helper()
	user, err := repo.FindByEmail(context.Background(), email)
	require.NoError(t, err)
	return user.ID
}
