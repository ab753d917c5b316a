package middleware

import (
	"context"
	"net/http"
	"strings"
)

// TokenSource reads the durable bearer token.
type TokenSource interface {
	Token(ctx context.Context) (string, bool, error)
}

// HeaderSource exposes the in-memory default Authorization header.
type HeaderSource interface {
	Value() (string, bool)
}

// Bearer returns an interceptor that attaches "Authorization: Bearer <token>".
//
// The token is read from tokens on every request so concurrent login/logout
// is observed immediately. If reading fails, the fallback header mirror is
// used. Requests that already carry Authorization are left alone.
//
// When tokens implements [GenerationSource] and the request context has a
// credential slot, the generation the request was sent under is recorded.
func Bearer(tokens TokenSource, fallback HeaderSource) Interceptor {
	gens, _ := tokens.(GenerationSource)
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			if r.Header.Get("Authorization") != "" {
				return next.RoundTrip(r)
			}

			var gen uint64
			if gens != nil {
				gen = gens.Generation()
			}
			value, ok := authorizationValue(r.Context(), tokens, fallback)
			if gens != nil {
				recordCredential(r.Context(), Credential{Generation: gen, Attached: ok})
			}
			if !ok {
				return next.RoundTrip(r)
			}

			out := r.Clone(r.Context())
			out.Header.Set("Authorization", value)
			return next.RoundTrip(out)
		})
	}
}

func authorizationValue(ctx context.Context, tokens TokenSource, fallback HeaderSource) (string, bool) {
	if tokens != nil {
		tok, ok, err := tokens.Token(ctx)
		if err == nil {
			if !ok {
				return "", false
			}
			return "Bearer " + tok, true
		}
	}
	if fallback != nil {
		return fallback.Value()
	}
	return "", false
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
