package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/fastship/shipper-agent/internal/entities"
)

type Credentials struct {
	Token string
	User  entities.User
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	DeviceID string `json:"device_id,omitempty"`
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required"`
	Phone    string `json:"phone,omitempty"`
	DeviceID string `json:"device_id,omitempty"`
}

func (c *Client) Login(ctx context.Context, req LoginRequest) (Credentials, error) {
	return c.authenticate(ctx, "/auth/login", req)
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (Credentials, error) {
	return c.authenticate(ctx, "/auth/register", req)
}

// Refresh обменивает текущий токен на новый. Записью нового токена в
// сессию занимается вызывающий слой аутентификации.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	data, err := c.do(ctx, http.MethodPost, "/auth/refresh", nil, nil)
	if err != nil {
		return "", err
	}
	token := decodeToken(data)
	if token == "" {
		return "", shapeError("unrecognized refresh response")
	}
	return token, nil
}

func (c *Client) Validate(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/auth/validate", nil, nil)
	return err
}

func (c *Client) CurrentUser(ctx context.Context) (entities.User, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/users/me", nil, nil)
	if err != nil {
		return entities.User{}, err
	}
	return decodeUser(data)
}

func (c *Client) authenticate(ctx context.Context, path string, req any) (Credentials, error) {
	data, err := c.do(ctx, http.MethodPost, path, nil, req)
	if err != nil {
		return Credentials{}, err
	}

	token := decodeToken(data)
	if token == "" {
		return Credentials{}, shapeError("unrecognized auth response")
	}

	creds := Credentials{Token: token}
	if user, err := decodeUser(data); err == nil {
		creds.User = user
	}
	return creds, nil
}

// Токен приходит как token либо access_token, на верхнем уровне или
// внутри data.
func decodeToken(data []byte) string {
	var payload struct {
		Token       string `json:"token"`
		AccessToken string `json:"access_token"`
		Data        *struct {
			Token       string `json:"token"`
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return ""
	}
	for _, token := range []string{payload.Token, payload.AccessToken} {
		if token != "" {
			return token
		}
	}
	if payload.Data != nil {
		if payload.Data.Token != "" {
			return payload.Data.Token
		}
		return payload.Data.AccessToken
	}
	return ""
}

type wireUser struct {
	ID       string `json:"_id"`
	AltID    string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
	Language string `json:"language"`
}

func (u wireUser) toEntity() entities.User {
	id := u.ID
	if id == "" {
		id = u.AltID
	}
	return entities.User{
		ID:       id,
		Email:    u.Email,
		Name:     u.Name,
		Phone:    u.Phone,
		Role:     u.Role,
		Language: u.Language,
	}
}

func decodeUser(data []byte) (entities.User, error) {
	var envelope struct {
		User *wireUser `json:"user"`
		Data *wireUser `json:"data"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil {
		if envelope.User != nil {
			return envelope.User.toEntity(), nil
		}
		if envelope.Data != nil {
			return envelope.Data.toEntity(), nil
		}
	}

	var bare wireUser
	if err := json.Unmarshal(data, &bare); err == nil {
		user := bare.toEntity()
		if user.ID != "" || user.Email != "" {
			return user, nil
		}
	}
	return entities.User{}, shapeError("unrecognized user response")
}
