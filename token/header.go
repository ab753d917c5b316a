package token

import "sync"

const bearerPrefix = "Bearer "

// Header is the default Authorization header applied to outbound requests.
// It is a read-only mirror of the durable token, never its source of truth.
type Header struct {
	mu    sync.RWMutex
	token string
}

// NewHeader returns an empty header mirror.
func NewHeader() *Header {
	return &Header{}
}

func (h *Header) set(token string) {
	h.mu.Lock()
	h.token = token
	h.mu.Unlock()
}

func (h *Header) clear() {
	h.mu.Lock()
	h.token = ""
	h.mu.Unlock()
}

// Value returns the header value ("Bearer <token>") and whether one is set.
func (h *Header) Value() (string, bool) {
	if h == nil {
		return "", false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.token == "" {
		return "", false
	}
	return bearerPrefix + h.token, true
}

// Token returns the mirrored token.
func (h *Header) Token() string {
	if h == nil {
		return ""
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}
