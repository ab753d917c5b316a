package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
)

// Kind classifies a failed call.
type Kind uint8

const (
	// KindUnknown is the zero Kind.
	KindUnknown Kind = iota
	// KindUnauthorized is a 401 or an application-level unauthorized code.
	KindUnauthorized
	// KindForbidden is a 403.
	KindForbidden
	// KindServer is any 5xx.
	KindServer
	// KindClient is any other 4xx.
	KindClient
	// KindNetwork means no response was received.
	KindNetwork
	// KindCanceled means the caller's context ended first.
	KindCanceled
	// KindDecode means a 2xx body could not be decoded.
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindServer:
		return "server"
	case KindClient:
		return "client"
	case KindNetwork:
		return "network"
	case KindCanceled:
		return "canceled"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

var (
	// ErrUnauthorized matches errors of KindUnauthorized.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden matches errors of KindForbidden.
	ErrForbidden = errors.New("forbidden")
	// ErrServer matches errors of KindServer.
	ErrServer = errors.New("server error")
	// ErrClient matches errors of KindClient.
	ErrClient = errors.New("request rejected")
	// ErrNetwork matches errors of KindNetwork.
	ErrNetwork = errors.New("network error")
	// ErrCanceled matches errors of KindCanceled.
	ErrCanceled = errors.New("request canceled")
	// ErrDecode matches errors of KindDecode.
	ErrDecode = errors.New("response decode failed")
)

// NetworkMessage is the user-facing message for transport failures.
const NetworkMessage = "Network error. Please check your connection."

// Error is the normalized failure returned by every [Client] call.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Code    string
	Errors  map[string][]string
	Err     error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("api %s (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("api %s: %s", e.Kind, e.Message)
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if s := kindSentinel(e.Kind); s != nil {
		out = append(out, s)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// FieldErrors returns the sorted field names carrying validation messages.
func (e *Error) FieldErrors() []string {
	fields := make([]string, 0, len(e.Errors))
	for f := range e.Errors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

func kindSentinel(k Kind) error {
	switch k {
	case KindUnauthorized:
		return ErrUnauthorized
	case KindForbidden:
		return ErrForbidden
	case KindServer:
		return ErrServer
	case KindClient:
		return ErrClient
	case KindNetwork:
		return ErrNetwork
	case KindCanceled:
		return ErrCanceled
	case KindDecode:
		return ErrDecode
	default:
		return nil
	}
}

// KindOf returns the Kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

type errorBody struct {
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Errors  json.RawMessage `json:"errors"`
}

func classifyStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusForbidden:
		return KindForbidden
	case status >= 500:
		return KindServer
	case status >= 400:
		return KindClient
	default:
		return KindUnknown
	}
}

// normalizeFieldErrors accepts {"f":["a","b"]}, {"f":"a"} and
// [{"field":"f","message":"a"}].
func normalizeFieldErrors(raw json.RawMessage) map[string][]string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var asMap map[string]json.RawMessage
	if err := json.Unmarshal(raw, &asMap); err == nil {
		out := make(map[string][]string, len(asMap))
		for field, v := range asMap {
			var list []string
			if err := json.Unmarshal(v, &list); err == nil {
				out[field] = list
				continue
			}
			var single string
			if err := json.Unmarshal(v, &single); err == nil {
				out[field] = []string{single}
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	}

	var asList []struct {
		Field   string `json:"field"`
		Path    string `json:"path"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &asList); err == nil {
		out := map[string][]string{}
		for _, item := range asList {
			field := item.Field
			if field == "" {
				field = item.Path
			}
			if field == "" {
				field = "_"
			}
			out[field] = append(out[field], item.Message)
		}
		if len(out) == 0 {
			return nil
		}
		return out
	}
	return nil
}
