package auth_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/fastship/shipper-agent/internal/api"
	"github.com/fastship/shipper-agent/internal/auth"
	"github.com/fastship/shipper-agent/internal/entities"
	"github.com/fastship/shipper-agent/internal/storage"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryKV struct {
	data map[string][]byte
}

func newMemoryKV() *memoryKV {
	return &memoryKV{data: make(map[string][]byte)}
}

func (m *memoryKV) Get(_ context.Context, key string) ([]byte, error) {
	value, ok := m.data[key]
	if !ok {
		return nil, storage.ErrKeyNotFound
	}
	return value, nil
}

func (m *memoryKV) Set(_ context.Context, key string, value []byte) error {
	m.data[key] = value
	return nil
}

func (m *memoryKV) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *memoryKV) Close() error { return nil }

type fakeAPI struct {
	loginCreds   api.Credentials
	loginErr     error
	refreshToken string
	refreshErr   error
	refreshCalls int
	user         entities.User
	userErr      error
}

func (f *fakeAPI) Login(context.Context, api.LoginRequest) (api.Credentials, error) {
	return f.loginCreds, f.loginErr
}

func (f *fakeAPI) Register(context.Context, api.RegisterRequest) (api.Credentials, error) {
	return f.loginCreds, f.loginErr
}

func (f *fakeAPI) Refresh(context.Context) (string, error) {
	f.refreshCalls++
	return f.refreshToken, f.refreshErr
}

func (f *fakeAPI) Validate(context.Context) error { return nil }

func (f *fakeAPI) CurrentUser(context.Context) (entities.User, error) {
	return f.user, f.userErr
}

func signedToken(t *testing.T, expiresIn time.Duration) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func newAuthenticator(client *fakeAPI, store storage.KV) (*auth.Authenticator, *api.Session) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	session := api.NewSession("")
	return auth.New(logger, client, session, store), session
}

func TestAuthenticator_Login(t *testing.T) {
	store := newMemoryKV()
	client := &fakeAPI{loginCreds: api.Credentials{
		Token: signedToken(t, time.Hour),
		User:  entities.User{ID: "u1", Email: "shipper@example.com", Language: "vi"},
	}}
	a, session := newAuthenticator(client, store)

	user, err := a.Login(context.Background(), "shipper@example.com", "secret")

	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, client.loginCreds.Token, session.Token())

	stored, err := store.Get(context.Background(), storage.KeyToken)
	require.NoError(t, err)
	assert.Equal(t, client.loginCreds.Token, string(stored))

	lang, err := store.Get(context.Background(), storage.KeyLanguage)
	require.NoError(t, err)
	assert.Equal(t, "vi", string(lang))
}

func TestAuthenticator_Restore(t *testing.T) {
	t.Run("no stored token", func(t *testing.T) {
		a, _ := newAuthenticator(&fakeAPI{}, newMemoryKV())
		err := a.Restore(context.Background())
		assert.ErrorIs(t, err, entities.ErrNotAuthenticated)
	})

	t.Run("fresh token needs no refresh", func(t *testing.T) {
		store := newMemoryKV()
		token := signedToken(t, time.Hour)
		store.data[storage.KeyToken] = []byte(token)
		client := &fakeAPI{}
		a, session := newAuthenticator(client, store)

		require.NoError(t, a.Restore(context.Background()))
		assert.Equal(t, token, session.Token())
		assert.Equal(t, 0, client.refreshCalls)
	})

	t.Run("expiring token is refreshed and persisted", func(t *testing.T) {
		store := newMemoryKV()
		store.data[storage.KeyToken] = []byte(signedToken(t, 30*time.Second))
		fresh := signedToken(t, time.Hour)
		client := &fakeAPI{refreshToken: fresh}
		a, session := newAuthenticator(client, store)

		require.NoError(t, a.Restore(context.Background()))
		assert.Equal(t, fresh, session.Token())
		assert.Equal(t, fresh, string(store.data[storage.KeyToken]))
	})

	t.Run("server rejects stale token", func(t *testing.T) {
		store := newMemoryKV()
		store.data[storage.KeyToken] = []byte(signedToken(t, -time.Minute))
		client := &fakeAPI{refreshErr: &api.Error{Kind: api.KindServer, Message: "token revoked", HTTPStatus: 401}}
		a, session := newAuthenticator(client, store)

		err := a.Restore(context.Background())
		assert.ErrorIs(t, err, entities.ErrNotAuthenticated)
		assert.Empty(t, session.Token())
	})

	t.Run("network failure keeps stored session", func(t *testing.T) {
		store := newMemoryKV()
		token := signedToken(t, -time.Minute)
		store.data[storage.KeyToken] = []byte(token)
		client := &fakeAPI{refreshErr: &api.Error{Kind: api.KindNetwork, Message: "network error"}}
		a, session := newAuthenticator(client, store)

		require.NoError(t, a.Restore(context.Background()))
		assert.Equal(t, token, session.Token())
	})
}

func TestAuthenticator_CurrentUser_FallsBackToStored(t *testing.T) {
	store := newMemoryKV()
	store.data[storage.KeyUser] = []byte(`{"ID":"u1","Email":"shipper@example.com"}`)
	client := &fakeAPI{userErr: &api.Error{Kind: api.KindNetwork, Message: "network error"}}
	a, _ := newAuthenticator(client, store)

	user, err := a.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
}

func TestAuthenticator_Logout(t *testing.T) {
	store := newMemoryKV()
	client := &fakeAPI{loginCreds: api.Credentials{Token: signedToken(t, time.Hour)}}
	a, session := newAuthenticator(client, store)

	_, err := a.Login(context.Background(), "shipper@example.com", "secret")
	require.NoError(t, err)

	a.Logout(context.Background())

	assert.Empty(t, session.Token())
	_, err = store.Get(context.Background(), storage.KeyToken)
	assert.ErrorIs(t, err, storage.ErrKeyNotFound)
}
