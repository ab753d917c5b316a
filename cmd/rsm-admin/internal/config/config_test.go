package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/redseamarket/adminkit/storage"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".rsm-admin.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	s, err := Load(writeConfig(t, "log:\n  level: info\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Storage.Driver != DriverFile || s.Routes.SignIn != "/login" || s.API.Timeout != 15*time.Second {
		t.Fatalf("unexpected defaults %+v", s)
	}
	if s.Demo.Email != "mike1218@gmail.com" {
		t.Fatalf("unexpected demo email %q", s.Demo.Email)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: https://admin.redsea.example/api
  timeout: 5s
storage:
  driver: embedded
persist:
  debounce: 50ms
routes:
  rules:
    - prefix: /users
      permission: users:read
`)
	t.Setenv("RSM_API_VERBOSE_LOGGING", "true")
	t.Setenv("RSM_ROUTES_LANDING", "/orders")

	s, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.API.BaseURL != "https://admin.redsea.example/api" || s.API.Timeout != 5*time.Second {
		t.Fatalf("file values not applied: %+v", s.API)
	}
	if !s.API.VerboseLogging || s.Routes.Landing != "/orders" {
		t.Fatalf("env values not applied: api=%+v routes=%+v", s.API, s.Routes)
	}
	if len(s.Routes.Rules) != 1 || s.Routes.Rules[0].Permission != "users:read" {
		t.Fatalf("rules not decoded: %+v", s.Routes.Rules)
	}

	cfg := s.ClientConfig()
	if cfg.Persist.Debounce != 50*time.Millisecond || cfg.Routes.Landing != "/orders" {
		t.Fatalf("client config not mapped: %+v", cfg)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	for name, body := range map[string]string{
		"driver":    "storage:\n  driver: s3\n",
		"log level": "log:\n  level: loud\n",
		"base url":  "api:\n  base_url: localhost\n",
		"routes":    "routes:\n  landing: /login\n",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestOpenStorageDrivers(t *testing.T) {
	ctx := context.Background()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	defer mr.Close()

	for _, s := range []Settings{
		{Storage: StorageSettings{Driver: DriverRedis, RedisAddr: mr.Addr(), Prefix: "rsm"}},
		{Storage: StorageSettings{Driver: DriverEmbedded, Prefix: "rsm"}},
		{Storage: StorageSettings{Driver: DriverFile, FilePath: filepath.Join(t.TempDir(), "s.json")}},
	} {
		store, closeFn, err := s.OpenStorage(ctx)
		if err != nil {
			t.Fatalf("%s: open: %v", s.Storage.Driver, err)
		}
		if err := store.Set(ctx, storage.KeyAuthToken, "abc"); err != nil {
			t.Fatalf("%s: set: %v", s.Storage.Driver, err)
		}
		if v, ok, err := store.Get(ctx, storage.KeyAuthToken); err != nil || !ok || v != "abc" {
			t.Fatalf("%s: get v=%q ok=%v err=%v", s.Storage.Driver, v, ok, err)
		}
		closeFn()
	}
	if got, _ := mr.Get("rsm:authToken"); got != "abc" {
		t.Fatalf("expected redis driver to write prefixed key, got %q", got)
	}
}
