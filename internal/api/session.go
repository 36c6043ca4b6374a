package api

import "sync"

// Session держит bearer-токен, общий для всех запросов клиента.
// Пишет его только слой аутентификации, побеждает последняя запись.
// Запрос, уже ушедший со старым токеном, не переотправляется.
type Session struct {
	mu    sync.RWMutex
	token string
}

func NewSession(token string) *Session {
	return &Session{token: token}
}

func (s *Session) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) Clear() {
	s.SetToken("")
}
