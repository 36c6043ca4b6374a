package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fastship/shipper-agent/internal/api"
	"github.com/fastship/shipper-agent/internal/entities"
	"github.com/fastship/shipper-agent/internal/storage"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Токен обновляется заранее, когда до истечения остаётся меньше этого
// запаса.
const refreshLeeway = 2 * time.Minute

type Client interface {
	Login(ctx context.Context, req api.LoginRequest) (api.Credentials, error)
	Register(ctx context.Context, req api.RegisterRequest) (api.Credentials, error)
	Refresh(ctx context.Context) (string, error)
	Validate(ctx context.Context) error
	CurrentUser(ctx context.Context) (entities.User, error)
}

// Authenticator — единственный писатель сессионного токена. Клиент API
// читает токен через общий api.Session, сюда он попадает после
// входа, восстановления или обновления.
type Authenticator struct {
	logger  *slog.Logger
	client  Client
	session *api.Session
	store   storage.KV
}

func New(logger *slog.Logger, client Client, session *api.Session, store storage.KV) *Authenticator {
	return &Authenticator{
		logger:  logger.With(slog.String("component", "auth")),
		client:  client,
		session: session,
		store:   store,
	}
}

func (a *Authenticator) Login(ctx context.Context, email, password string) (entities.User, error) {
	req := api.LoginRequest{
		Email:    email,
		Password: password,
		DeviceID: a.deviceID(ctx),
	}
	creds, err := a.client.Login(ctx, req)
	if err != nil {
		return entities.User{}, err
	}
	a.storeCredentials(ctx, creds)
	return creds.User, nil
}

func (a *Authenticator) Register(ctx context.Context, req api.RegisterRequest) (entities.User, error) {
	req.DeviceID = a.deviceID(ctx)
	creds, err := a.client.Register(ctx, req)
	if err != nil {
		return entities.User{}, err
	}
	a.storeCredentials(ctx, creds)
	return creds.User, nil
}

// Restore поднимает сессию из локального хранилища при старте. Если
// токена нет или сервер его больше не принимает, возвращается
// entities.ErrNotAuthenticated.
func (a *Authenticator) Restore(ctx context.Context) error {
	token, err := a.store.Get(ctx, storage.KeyToken)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return entities.ErrNotAuthenticated
	}
	if err != nil {
		return fmt.Errorf("failed to read stored token: %w", err)
	}

	a.session.SetToken(string(token))

	if err := a.Refresh(ctx); err != nil {
		if api.IsKind(err, api.KindServer) {
			a.session.Clear()
			return entities.ErrNotAuthenticated
		}
		// Сетевая ошибка не повод выкидывать сохранённую сессию.
		a.logger.Warn("session refresh failed, keeping stored token", slog.Any("error", err))
	}
	return nil
}

// Refresh обновляет токен, если срок его действия подходит к концу.
// Свежий токен не трогается, чтобы не дёргать бекенд на каждый цикл
// загрузки списка.
func (a *Authenticator) Refresh(ctx context.Context) error {
	token := a.session.Token()
	if token == "" {
		return entities.ErrNotAuthenticated
	}

	if expiry, ok := tokenExpiry(token); ok && time.Until(expiry) > refreshLeeway {
		return nil
	}

	fresh, err := a.client.Refresh(ctx)
	if err != nil {
		return err
	}

	a.session.SetToken(fresh)
	if err := a.store.Set(ctx, storage.KeyToken, []byte(fresh)); err != nil {
		a.logger.Error("failed to persist refreshed token", slog.Any("error", err))
	}
	return nil
}

func (a *Authenticator) Logout(ctx context.Context) {
	a.session.Clear()
	for _, key := range []string{storage.KeyToken, storage.KeyUser} {
		if err := a.store.Delete(ctx, key); err != nil {
			a.logger.Error("failed to clear stored session", slog.String("key", key), slog.Any("error", err))
		}
	}
}

// CurrentUser отдаёт профиль с бекенда, при недоступности — последнюю
// сохранённую копию.
func (a *Authenticator) CurrentUser(ctx context.Context) (entities.User, error) {
	user, err := a.client.CurrentUser(ctx)
	if err == nil {
		a.storeUser(ctx, user)
		return user, nil
	}

	data, storeErr := a.store.Get(ctx, storage.KeyUser)
	if storeErr != nil {
		return entities.User{}, err
	}
	var stored entities.User
	if unmarshalErr := json.Unmarshal(data, &stored); unmarshalErr != nil {
		return entities.User{}, err
	}
	return stored, nil
}

func (a *Authenticator) storeCredentials(ctx context.Context, creds api.Credentials) {
	a.session.SetToken(creds.Token)
	if err := a.store.Set(ctx, storage.KeyToken, []byte(creds.Token)); err != nil {
		a.logger.Error("failed to persist token", slog.Any("error", err))
	}
	a.storeUser(ctx, creds.User)
}

func (a *Authenticator) storeUser(ctx context.Context, user entities.User) {
	data, err := json.Marshal(user)
	if err != nil {
		return
	}
	if err := a.store.Set(ctx, storage.KeyUser, data); err != nil {
		a.logger.Error("failed to persist user", slog.Any("error", err))
	}
	if user.Language != "" {
		if err := a.store.Set(ctx, storage.KeyLanguage, []byte(user.Language)); err != nil {
			a.logger.Error("failed to persist language", slog.Any("error", err))
		}
	}
}

// deviceID возвращает постоянный идентификатор установки, создавая его
// при первом обращении.
func (a *Authenticator) deviceID(ctx context.Context) string {
	if data, err := a.store.Get(ctx, storage.KeyDeviceID); err == nil {
		return string(data)
	}

	id := uuid.NewString()
	if err := a.store.Set(ctx, storage.KeyDeviceID, []byte(id)); err != nil {
		a.logger.Error("failed to persist device id", slog.Any("error", err))
	}
	return id
}

// tokenExpiry достаёт exp из JWT без проверки подписи: подпись проверяет
// сервер, клиенту срок нужен только для планирования refresh.
func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
