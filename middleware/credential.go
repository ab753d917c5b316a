package middleware

import (
	"context"
	"sync"
)

// GenerationSource is implemented by token sources that count credential
// changes.
type GenerationSource interface {
	Generation() uint64
}

// Credential records what [Bearer] attached to one request.
type Credential struct {
	// Generation is the token source generation read before the token.
	Generation uint64
	// Attached reports whether an Authorization header was added.
	Attached bool
}

type credentialKey struct{}

type credentialSlot struct {
	mu   sync.Mutex
	cred Credential
	set  bool
}

// WithCredentialSlot returns a context in which [Bearer] records the
// credential it attaches. Read it back with [SentCredential].
func WithCredentialSlot(ctx context.Context) context.Context {
	return context.WithValue(ctx, credentialKey{}, &credentialSlot{})
}

// SentCredential returns the credential recorded for a request made with ctx.
// ok is false when no slot exists or the token source has no generation.
func SentCredential(ctx context.Context) (Credential, bool) {
	slot, _ := ctx.Value(credentialKey{}).(*credentialSlot)
	if slot == nil {
		return Credential{}, false
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	return slot.cred, slot.set
}

func recordCredential(ctx context.Context, cred Credential) {
	slot, _ := ctx.Value(credentialKey{}).(*credentialSlot)
	if slot == nil {
		return
	}
	slot.mu.Lock()
	slot.cred = cred
	slot.set = true
	slot.mu.Unlock()
}
