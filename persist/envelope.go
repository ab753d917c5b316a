package persist

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// Meta is the version tag stored beside every slice.
type Meta struct {
	Version int    `json:"version"`
	Key     string `json:"key"`
}

// Envelope is the durable form of one slice.
type Envelope struct {
	Persist Meta                       `json:"_persist"`
	State   map[string]json.RawMessage `json:"state"`
}

// Root is written under persist:root after rehydration.
type Root struct {
	Slices       []string  `json:"slices"`
	RehydratedAt time.Time `json:"rehydratedAt"`
}

func encodeEnvelope(key string, version int, fields map[string]json.RawMessage, whitelist []string) (string, error) {
	env := Envelope{
		Persist: Meta{Version: version, Key: key},
		State:   filter(fields, whitelist),
	}
	data, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", key, err)
	}
	return string(data), nil
}

func decodeEnvelope(raw string) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return Envelope{}, err
	}
	if env.State == nil {
		return Envelope{}, fmt.Errorf("envelope has no state")
	}
	return env, nil
}

// filter keeps only whitelisted fields.
func filter(fields map[string]json.RawMessage, whitelist []string) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(whitelist))
	for k, v := range fields {
		if slices.Contains(whitelist, k) {
			out[k] = v
		}
	}
	return out
}
