package storage

import "log/slog"

// Open открывает основное sqlite-хранилище, а при неудаче откатывается
// на файловое рядом с ним.
func Open(logger *slog.Logger, path string) (KV, error) {
	store, err := NewSQLiteStore(path)
	if err == nil {
		return store, nil
	}
	logger.Warn("sqlite storage unavailable, falling back to files",
		slog.String("path", path), slog.Any("error", err))

	return NewFileStore(path + ".d")
}
