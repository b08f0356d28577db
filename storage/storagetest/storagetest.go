// Package storagetest holds the conformance suite every storage.Store
// implementation runs from its own tests.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/giantswarm/oauth2-core/internal/testutil"
	"github.com/giantswarm/oauth2-core/model"
	"github.com/giantswarm/oauth2-core/oautherr"
	"github.com/giantswarm/oauth2-core/storage"
)

// Factory returns an empty store. now is the clock the suite drives; stores
// that expire records on their own should use it.
type Factory func(t *testing.T, now func() time.Time) storage.Store

// Run exercises newStore directly and through a storage.Service.
func Run(t *testing.T, newStore Factory) {
	t.Run("Clients", func(t *testing.T) { testClients(t, newStore) })
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore) })
	t.Run("Tokens", func(t *testing.T) { testTokens(t, newStore) })
	t.Run("AuthorizationCodes", func(t *testing.T) { testAuthorizationCodes(t, newStore) })
	t.Run("Service", func(t *testing.T) { testService(t, newStore) })
}

func newService(t *testing.T, newStore Factory) (*storage.Service, *testutil.MockTime) {
	t.Helper()
	clock := testutil.NewMockTime(testutil.Epoch)
	svc, err := storage.NewService(storage.Options{
		Store:      newStore(t, clock.Now),
		BcryptCost: bcrypt.MinCost,
		Now:        clock.Now,
	})
	require.NoError(t, err)
	return svc, clock
}

func testClients(t *testing.T, newStore Factory) {
	ctx := context.Background()
	store := newStore(t, testutil.NewMockTime(testutil.Epoch).Now)

	client := &storage.Client{
		ID:                  "client-1",
		SecretHash:          "hash",
		Grants:              []string{"password", "refresh_token"},
		RedirectURIs:        []string{"https://a.example.com/cb", "https://b.example.com/cb"},
		Scope:               "read write",
		AccessTokenLifetime: 10 * time.Minute,
		CreatedAt:           testutil.Epoch,
	}
	require.NoError(t, store.CreateClient(ctx, client))
	assert.ErrorIs(t, store.CreateClient(ctx, client), storage.ErrAlreadyExists)

	got, err := store.Client(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, client.ID, got.ID)
	assert.Equal(t, client.SecretHash, got.SecretHash)
	assert.Equal(t, client.Grants, got.Grants)
	assert.Equal(t, client.RedirectURIs, got.RedirectURIs)
	assert.Equal(t, client.Scope, got.Scope)
	assert.Equal(t, client.AccessTokenLifetime, got.AccessTokenLifetime)
	assert.True(t, client.CreatedAt.Equal(got.CreatedAt))

	_, err = store.Client(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testUsers(t *testing.T, newStore Factory) {
	ctx := context.Background()
	store := newStore(t, testutil.NewMockTime(testutil.Epoch).Now)

	user := &storage.User{
		ID:           storage.NewID(testutil.Epoch),
		Username:     "alice",
		PasswordHash: "hash",
		Claims:       map[string]any{"email": "alice@example.com"},
		CreatedAt:    testutil.Epoch,
	}
	require.NoError(t, store.CreateUser(ctx, user))
	assert.ErrorIs(t, store.CreateUser(ctx, user), storage.ErrAlreadyExists)

	got, err := store.UserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, user.PasswordHash, got.PasswordHash)
	assert.Equal(t, "alice@example.com", got.Claims["email"])

	_, err = store.UserByUsername(ctx, "bob")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testTokens(t *testing.T, newStore Factory) {
	ctx := context.Background()
	store := newStore(t, testutil.NewMockTime(testutil.Epoch).Now)

	token := &storage.Token{
		AccessToken:           "access-1",
		AccessTokenExpiresAt:  testutil.Epoch.Add(time.Hour),
		RefreshToken:          "refresh-1",
		RefreshTokenExpiresAt: testutil.Epoch.Add(24 * time.Hour),
		Scope:                 "read",
		ClientID:              "client-1",
		UserID:                "user-1",
		Username:              "alice",
		CreatedAt:             testutil.Epoch,
	}
	require.NoError(t, store.SaveToken(ctx, token))

	byAccess, err := store.TokenByAccessToken(ctx, "access-1")
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", byAccess.RefreshToken)
	assert.Equal(t, "read", byAccess.Scope)
	assert.Equal(t, "alice", byAccess.Username)
	assert.True(t, token.AccessTokenExpiresAt.Equal(byAccess.AccessTokenExpiresAt))

	byRefresh, err := store.TokenByRefreshToken(ctx, "refresh-1")
	require.NoError(t, err)
	assert.Equal(t, "access-1", byRefresh.AccessToken)
	assert.True(t, token.RefreshTokenExpiresAt.Equal(byRefresh.RefreshTokenExpiresAt))

	deleted, err := store.DeleteRefreshToken(ctx, "refresh-1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.DeleteRefreshToken(ctx, "refresh-1")
	require.NoError(t, err)
	assert.False(t, deleted, "second delete must report nothing removed")

	_, err = store.TokenByRefreshToken(ctx, "refresh-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	stillValid, err := store.TokenByAccessToken(ctx, "access-1")
	require.NoError(t, err, "revoking a refresh token keeps its access token")
	assert.Empty(t, stillValid.RefreshToken)

	_, err = store.TokenByAccessToken(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	forever := &storage.Token{
		AccessToken:          "access-2",
		AccessTokenExpiresAt: testutil.Epoch.Add(time.Hour),
		RefreshToken:         "refresh-2",
		ClientID:             "client-1",
		UserID:               "user-1",
	}
	require.NoError(t, store.SaveToken(ctx, forever))
	got, err := store.TokenByRefreshToken(ctx, "refresh-2")
	require.NoError(t, err)
	assert.True(t, got.RefreshTokenExpiresAt.IsZero(), "refresh tokens without expiry round-trip as zero")
}

func testAuthorizationCodes(t *testing.T, newStore Factory) {
	ctx := context.Background()
	store := newStore(t, testutil.NewMockTime(testutil.Epoch).Now)

	code := &storage.AuthorizationCode{
		Code:        "code-1",
		ExpiresAt:   testutil.Epoch.Add(5 * time.Minute),
		RedirectURI: testutil.TestRedirectURI,
		Scope:       "read",
		ClientID:    "client-1",
		UserID:      "user-1",
		Username:    "alice",
		CreatedAt:   testutil.Epoch,
	}
	require.NoError(t, store.SaveAuthorizationCode(ctx, code))

	got, err := store.AuthorizationCode(ctx, "code-1")
	require.NoError(t, err)
	assert.Equal(t, code.RedirectURI, got.RedirectURI)
	assert.Equal(t, code.Scope, got.Scope)
	assert.Equal(t, code.UserID, got.UserID)
	assert.True(t, code.ExpiresAt.Equal(got.ExpiresAt))

	deleted, err := store.DeleteAuthorizationCode(ctx, "code-1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.DeleteAuthorizationCode(ctx, "code-1")
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = store.AuthorizationCode(ctx, "code-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testService(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("client secrets", func(t *testing.T) {
		svc, _ := newService(t, newStore)
		_, err := svc.RegisterClient(ctx, storage.ClientSpec{
			ID:     "confidential",
			Secret: "s3cret",
			Grants: []string{"client_credentials"},
			Scope:  "read",
		})
		require.NoError(t, err)

		client, err := svc.GetClient(ctx, "confidential", "s3cret")
		require.NoError(t, err)
		require.NotNil(t, client)
		assert.Equal(t, []string{"client_credentials"}, client.Grants)
		assert.Empty(t, client.Secret, "secrets never leave the store")

		client, err = svc.GetClient(ctx, "confidential", "wrong")
		require.NoError(t, err)
		assert.Nil(t, client)

		client, err = svc.GetClient(ctx, "unknown", "s3cret")
		require.NoError(t, err)
		assert.Nil(t, client)

		generated, err := svc.RegisterClient(ctx, storage.ClientSpec{Grants: []string{"password"}})
		require.NoError(t, err)
		assert.True(t, storage.IsID(generated.ID), "generated client IDs are ULIDs")
	})

	t.Run("user passwords", func(t *testing.T) {
		svc, _ := newService(t, newStore)
		registered, err := svc.RegisterUser(ctx, testutil.TestUsername, testutil.TestPassword, nil)
		require.NoError(t, err)

		user, err := svc.GetUser(ctx, testutil.TestUsername, testutil.TestPassword)
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, registered.ID, user.ID)

		user, err = svc.GetUser(ctx, testutil.TestUsername, "wrong")
		require.NoError(t, err)
		assert.Nil(t, user)

		user, err = svc.GetUser(ctx, "nobody", testutil.TestPassword)
		require.NoError(t, err)
		assert.Nil(t, user)
	})

	t.Run("token round trip", func(t *testing.T) {
		svc, _ := newService(t, newStore)
		client, err := svc.RegisterClient(ctx, storage.ClientSpec{
			ID:     testutil.TestClientID,
			Secret: testutil.TestClientSecret,
			Grants: []string{"password", "refresh_token"},
		})
		require.NoError(t, err)
		user := testutil.GenerateTestUser()

		saved, err := svc.SaveToken(ctx, &model.Token{
			AccessToken:           "access-1",
			AccessTokenExpiresAt:  testutil.Epoch.Add(time.Hour),
			RefreshToken:          "refresh-1",
			RefreshTokenExpiresAt: testutil.Epoch.Add(24 * time.Hour),
			Scope:                 "read",
		}, client, user)
		require.NoError(t, err)
		assert.Equal(t, client, saved.Client)
		assert.Equal(t, user, saved.User)

		access, err := svc.GetAccessToken(ctx, "access-1")
		require.NoError(t, err)
		require.NotNil(t, access)
		assert.Equal(t, testutil.TestClientID, access.Client.ID)
		assert.Equal(t, testutil.TestUserID, access.User.ID)

		refresh, err := svc.GetRefreshToken(ctx, "refresh-1")
		require.NoError(t, err)
		require.NotNil(t, refresh)

		revoked, err := svc.RevokeToken(ctx, refresh)
		require.NoError(t, err)
		assert.True(t, revoked)

		refresh, err = svc.GetRefreshToken(ctx, "refresh-1")
		require.NoError(t, err)
		assert.Nil(t, refresh)

		missing, err := svc.GetAccessToken(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("authorization code round trip", func(t *testing.T) {
		svc, _ := newService(t, newStore)
		client, err := svc.RegisterClient(ctx, storage.ClientSpec{
			ID:           testutil.TestClientID,
			Grants:       []string{"authorization_code"},
			RedirectURIs: []string{testutil.TestRedirectURI},
		})
		require.NoError(t, err)

		_, err = svc.SaveAuthorizationCode(ctx, &model.AuthorizationCode{
			Code:        "code-1",
			ExpiresAt:   testutil.Epoch.Add(5 * time.Minute),
			RedirectURI: testutil.TestRedirectURI,
			Scope:       "read",
		}, client, testutil.GenerateTestUser())
		require.NoError(t, err)

		code, err := svc.GetAuthorizationCode(ctx, "code-1")
		require.NoError(t, err)
		require.NotNil(t, code)
		assert.Equal(t, testutil.TestRedirectURI, code.RedirectURI)
		assert.Equal(t, testutil.TestUserID, code.User.ID)

		revoked, err := svc.RevokeAuthorizationCode(ctx, code)
		require.NoError(t, err)
		assert.True(t, revoked)

		revoked, err = svc.RevokeAuthorizationCode(ctx, code)
		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("scopes", func(t *testing.T) {
		svc, _ := newService(t, newStore)
		client := &model.Client{ID: "c", Scope: "read write"}

		granted, ok, err := svc.ValidateScope(ctx, nil, client, "read")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "read", granted)

		granted, ok, err = svc.ValidateScope(ctx, nil, client, "")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "read write", granted)

		_, ok, err = svc.ValidateScope(ctx, nil, client, "admin")
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = svc.VerifyScope(ctx, &model.Token{Scope: "read write"}, "write")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("no external identity", func(t *testing.T) {
		svc, _ := newService(t, newStore)
		_, err := svc.ExchangeAccessTokenByCode(ctx, "github", "code", "")
		assert.True(t, oautherr.Is(err, oautherr.KindInvalidRequest))
	})
}
