package storage

import (
	"context"
	"errors"
)

// Ключи локального хранилища. Каждый ключ хранит один JSON-снимок,
// новая запись полностью перезаписывает предыдущую.
const (
	KeyOrderCache = "shipper_orders_cache"
	KeyToken      = "session_token"
	KeyUser       = "current_user"
	KeyLanguage   = "ui_language"
	KeyDeviceID   = "device_id"
)

var ErrKeyNotFound = errors.New("key not found")

// KV — абстракция над платформенным хранилищем устройства.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}
