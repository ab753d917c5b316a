package storage

import (
	"fmt"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// Embedded is a [Redis] store running on an in-process miniredis server.
// Contents live only as long as the process; use it for demos and dry runs.
type Embedded struct {
	*Redis
	server *miniredis.Miniredis
	client *redis.Client
}

// NewEmbedded starts an in-process Redis and returns a store bound to it.
func NewEmbedded(prefix string) (*Embedded, error) {
	mr, err := miniredis.Run()
	if err != nil {
		return nil, fmt.Errorf("%w: start embedded redis: %v", ErrUnavailable, err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return &Embedded{
		Redis:  NewRedis(client, prefix),
		server: mr,
		client: client,
	}, nil
}

// Addr returns the embedded server address.
func (e *Embedded) Addr() string {
	return e.server.Addr()
}

// Close stops the embedded server and releases the client.
func (e *Embedded) Close() {
	if e == nil {
		return
	}
	_ = e.client.Close()
	e.server.Close()
}
