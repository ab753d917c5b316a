package mockapi

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/redseamarket/adminkit/middleware"
	"github.com/redseamarket/adminkit/query"
	"github.com/redseamarket/adminkit/state"
)

// Demo account served by [NewDemo].
const (
	DemoEmail    = "mike1218@gmail.com"
	DemoPassword = "Hesoyam1218@"
)

// Permission required by the product list.
const PermProductsRead = "products:read"

// Options configures a [Server].
type Options struct {
	// Redis stores revoked token IDs. Required.
	Redis     redis.UniversalClient
	KeyPrefix string
	// SigningKey defaults to 32 random bytes.
	SigningKey []byte
	Issuer     string
	TokenTTL   time.Duration
	Logger     *slog.Logger
	Now        func() time.Time
}

type account struct {
	user *state.User
	hash string
}

// Server is the mock marketplace API.
type Server struct {
	signer  *signer
	revoked *revocations
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.RWMutex
	accounts map[string]*account
	products []state.Product

	requests     atomic.Int64
	unauthorized atomic.Int64
}

// New creates an empty server.
func New(opts Options) (*Server, error) {
	if opts.Redis == nil {
		return nil, errors.New("mockapi: redis client required")
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "rsm-mock"
	}
	if opts.Issuer == "" {
		opts.Issuer = "rsm-mock"
	}
	if opts.TokenTTL == 0 {
		opts.TokenTTL = time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	key := opts.SigningKey
	if key == nil {
		var err error
		if key, err = randomKey(); err != nil {
			return nil, err
		}
	}

	sig, err := newSigner(key, opts.Issuer, opts.TokenTTL, opts.Now)
	if err != nil {
		return nil, err
	}
	return &Server{
		signer:   sig,
		revoked:  &revocations{redis: opts.Redis, prefix: opts.KeyPrefix},
		logger:   opts.Logger,
		now:      opts.Now,
		accounts: make(map[string]*account),
	}, nil
}

// NewDemo creates a server seeded with the demo super admin and a small
// catalogue.
func NewDemo(opts Options) (*Server, error) {
	s, err := New(opts)
	if err != nil {
		return nil, err
	}
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	err = s.AddAccount(&state.User{
		ID:         "u-1218",
		FirstName:  "Mike",
		LastName:   "Adel",
		Email:      DemoEmail,
		Phone:      "+201000001218",
		IsVerified: true,
		CreatedAt:  created,
		UpdatedAt:  created,
		Role: &state.Role{
			ID:          "r-super",
			Name:        "Super Admin",
			Type:        "admin",
			Permissions: state.NewPermissionSet(PermProductsRead, "products:write", "orders:read", "users:read", "users:write"),
		},
	}, DemoPassword)
	if err != nil {
		return nil, err
	}
	s.AddProducts(
		state.Product{ID: "p-100", Name: "Arabica Coffee Beans", Price: 18.5, Stock: 120, Status: "active", Category: "grocery"},
		state.Product{ID: "p-101", Name: "Hibiscus Tea", Price: 6.25, Stock: 0, Status: "out_of_stock", Category: "grocery"},
		state.Product{ID: "p-102", Name: "Copper Coffee Pot", Price: 32, Stock: 14, Status: "active", Category: "kitchen"},
		state.Product{ID: "p-103", Name: "Date Syrup", Price: 9.9, Stock: 40, Status: "draft", Category: "grocery"},
		state.Product{ID: "p-104", Name: "Palm Leaf Basket", Price: 21, Stock: 8, Status: "active", Category: "home"},
	)
	return s, nil
}

// AddAccount registers user with password.
func (s *Server) AddAccount(user *state.User, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	s.mu.Lock()
	s.accounts[strings.ToLower(user.Email)] = &account{user: user.Clone(), hash: hash}
	s.mu.Unlock()
	return nil
}

// AddProducts appends catalogue items.
func (s *Server) AddProducts(items ...state.Product) {
	s.mu.Lock()
	s.products = append(s.products, items...)
	s.mu.Unlock()
}

// ExpireAll rotates the signing key, so every issued token now fails with
// TOKEN_EXPIRED.
func (s *Server) ExpireAll() error {
	key, err := randomKey()
	if err != nil {
		return err
	}
	s.signer.rotate(key)
	return nil
}

// Requests counts handled requests.
func (s *Server) Requests() int64 { return s.requests.Load() }

// Unauthorized counts 401 answers.
func (s *Server) Unauthorized() int64 { return s.unauthorized.Load() }

// Handler returns the routes, mounted under /api.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.Handle("POST /api/auth/logout", s.authed(s.logout))
	mux.Handle("GET /api/auth/me", s.authed(s.me))
	mux.Handle("PUT /api/auth/profile", s.authed(s.updateProfile))
	mux.Handle("GET /api/products", s.authed(s.listProducts))
	return s.logRequests(mux)
}

type principal struct {
	account *account
	claims  *Claims
}

func (s *Server) authed(next func(http.ResponseWriter, *http.Request, principal)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := middleware.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			s.deny(w, "UNAUTHORIZED", "Authentication required")
			return
		}
		claims, err := s.signer.parse(raw)
		if err != nil {
			// Tokens signed with a rotated key count as expired.
			s.deny(w, "TOKEN_EXPIRED", "Token expired")
			return
		}
		revoked, err := s.revoked.revoked(r.Context(), claims.ID)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Session store unavailable", nil)
			return
		}
		if revoked {
			s.deny(w, "INVALID_TOKEN", "Token revoked")
			return
		}

		s.mu.RLock()
		acct := s.findByID(claims.Subject)
		s.mu.RUnlock()
		if acct == nil {
			s.deny(w, "INVALID_TOKEN", "Unknown account")
			return
		}
		next(w, r, principal{account: acct, claims: claims})
	})
}

func (s *Server) findByID(id string) *account {
	for _, a := range s.accounts {
		if a.user.ID == id {
			return a
		}
	}
	return nil
}

func (s *Server) deny(w http.ResponseWriter, code, message string) {
	s.unauthorized.Add(1)
	writeError(w, http.StatusUnauthorized, code, message, nil)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Malformed request body", nil)
		return
	}
	fields := map[string][]string{}
	if strings.TrimSpace(body.Email) == "" {
		fields["email"] = append(fields["email"], "Email is required")
	}
	if body.Password == "" {
		fields["password"] = append(fields["password"], "Password is required")
	}
	if len(fields) > 0 {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", fields)
		return
	}

	s.mu.RLock()
	acct := s.accounts[strings.ToLower(strings.TrimSpace(body.Email))]
	s.mu.RUnlock()
	if acct == nil {
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
		return
	}
	ok, err := VerifyPassword(body.Password, acct.hash)
	if err != nil || !ok {
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
		return
	}

	role := ""
	if acct.user.Role != nil {
		role = acct.user.Role.Type
	}
	token, _, err := s.signer.issue(acct.user.ID, role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Could not issue token", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"token":        token,
			"refreshToken": uuid.NewString(),
			"user":         acct.user,
		},
	})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request, p principal) {
	if err := s.revoked.revoke(r.Context(), p.claims.ID, p.claims.ExpiresAt.Time, s.now()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Session store unavailable", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) me(w http.ResponseWriter, _ *http.Request, p principal) {
	s.mu.RLock()
	user := p.account.user.Clone()
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, map[string]any{"data": user})
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request, p principal) {
	var patch state.ProfilePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Malformed request body", nil)
		return
	}
	if patch.Email != nil && !strings.Contains(*patch.Email, "@") {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Validation failed",
			map[string][]string{"email": {"Email is invalid"}})
		return
	}

	s.mu.Lock()
	p.account.user = p.account.user.WithProfile(patch, s.now())
	user := p.account.user.Clone()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"data": user})
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request, p principal) {
	if !p.account.user.Can(PermProductsRead) {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Missing permission "+PermProductsRead, nil)
		return
	}
	q := r.URL.Query()
	page := atoiDefault(q.Get(query.ParamPage), 1)
	limit := atoiDefault(q.Get(query.ParamLimit), 10)
	if page < 1 || limit < 1 {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "page and limit must be positive", nil)
		return
	}
	var filters map[string]string
	if raw := q.Get(query.ParamFilter); raw != "" {
		if err := json.Unmarshal([]byte(raw), &filters); err != nil {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", "filter must be a JSON object of strings", nil)
			return
		}
	}
	search := strings.ToLower(q.Get(query.ParamSearch))

	s.mu.RLock()
	matched := slices.DeleteFunc(slices.Clone(s.products), func(item state.Product) bool {
		if search != "" && !strings.Contains(strings.ToLower(item.Name), search) {
			return true
		}
		if v, ok := filters["status"]; ok && item.Status != v {
			return true
		}
		if v, ok := filters["category"]; ok && item.Category != v {
			return true
		}
		return false
	})
	s.mu.RUnlock()
	if matched == nil {
		matched = []state.Product{}
	}

	total := len(matched)
	start := min((page-1)*limit, total)
	end := min(start+limit, total)
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  matched[start:end],
		"total": total,
		"meta":  map[string]int{"page": page, "limit": limit, "total": total},
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := s.now()
		next.ServeHTTP(rec, r)
		s.logger.LogAttrs(context.Background(), slog.LevelInfo, "request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.String("request_id", r.Header.Get("X-Request-ID")),
			slog.Duration("elapsed", s.now().Sub(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string, fields map[string][]string) {
	body := map[string]any{"message": message, "code": code}
	if len(fields) > 0 {
		body["errors"] = fields
	}
	writeJSON(w, status, body)
}

func atoiDefault(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return n
}

func randomKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("signing key: %w", err)
	}
	return key, nil
}
