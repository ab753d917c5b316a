package persist

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/redseamarket/adminkit/state"
	"github.com/redseamarket/adminkit/storage"
)

type persistHarness struct {
	mr      *miniredis.Miniredis
	storage *storage.Redis
	store   *state.Store
	p       *Persistor
}

func newPersistTest(t *testing.T, mr *miniredis.Miniredis, cfg Config) *persistHarness {
	t.Helper()
	if mr == nil {
		var err error
		mr, err = miniredis.Run()
		if err != nil {
			t.Fatalf("miniredis start: %v", err)
		}
		t.Cleanup(mr.Close)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	st := storage.NewRedis(rdb, "")
	store := state.NewStore()
	p := New(st, cfg, store.AuthSlice(), store.UISlice(), store.ProductsSlice())
	store.Subscribe(func(ev state.Event) { p.MarkDirty(ev.Slice) })
	return &persistHarness{mr: mr, storage: st, store: store, p: p}
}

func sampleUser() *state.User {
	return &state.User{
		ID:        "u-9",
		FirstName: "Mike",
		Email:     "mike1218@gmail.com",
		Role:      &state.Role{ID: "r", Name: "Admin", Permissions: state.NewPermissionSet("products:write")},
	}
}

func TestReloadKeepsOnlyWhitelistedFields(t *testing.T) {
	ctx := context.Background()
	h := newPersistTest(t, nil, Config{Debounce: time.Hour})
	if err := h.p.Rehydrate(ctx); err != nil {
		t.Fatalf("rehydrate: %v", err)
	}

	h.store.LoginSuccess(sampleUser())
	h.store.SetTheme(state.ThemeDark)
	h.store.SetSidebar(false)
	h.store.Notify(state.NotifyInfo, "hello", "")
	h.store.SetLoading("products", true)
	h.store.SetModal("confirm-delete", true)
	h.store.SetPageSize(50)
	if err := h.p.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	raw, _ := h.mr.Get(storage.KeyPersistUI)
	if strings.Contains(raw, "notifications") || strings.Contains(raw, "modals") || strings.Contains(raw, "loading") {
		t.Fatalf("ephemeral ui field persisted: %s", raw)
	}
	raw, _ = h.mr.Get(storage.KeyPersistAuth)
	if strings.Contains(raw, "isLoading") {
		t.Fatalf("isLoading persisted: %s", raw)
	}

	reloaded := newPersistTest(t, h.mr, Config{})
	if err := reloaded.p.Rehydrate(ctx); err != nil {
		t.Fatalf("rehydrate: %v", err)
	}
	auth := reloaded.store.Auth()
	if !auth.IsAuthenticated || auth.User == nil || auth.User.ID != "u-9" {
		t.Fatalf("auth not restored: %+v", auth)
	}
	ui := reloaded.store.UI()
	if ui.Theme != state.ThemeDark || ui.SidebarOpen {
		t.Fatalf("preferences not restored: %+v", ui)
	}
	if len(ui.Notifications) != 0 || len(ui.Loading) != 0 || len(ui.Modals) != 0 {
		t.Fatalf("ephemeral fields survived reload: %+v", ui)
	}
	if reloaded.store.Products().PageSize != 50 {
		t.Fatalf("page size not restored: %+v", reloaded.store.Products())
	}
	if !reloaded.mr.Exists(storage.KeyPersistRoot) {
		t.Fatal("expected root meta")
	}
}

func TestDebouncedWrite(t *testing.T) {
	h := newPersistTest(t, nil, Config{Debounce: 5 * time.Millisecond})
	if err := h.p.Rehydrate(context.Background()); err != nil {
		t.Fatalf("rehydrate: %v", err)
	}
	h.store.SetTheme(state.ThemeDark)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if raw, err := h.mr.Get(storage.KeyPersistUI); err == nil && strings.Contains(raw, state.ThemeDark) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("debounced write never landed")
}

func TestChangesWhilePausedAreDropped(t *testing.T) {
	ctx := context.Background()
	h := newPersistTest(t, nil, Config{Debounce: time.Hour})
	if err := h.p.Rehydrate(ctx); err != nil {
		t.Fatalf("rehydrate: %v", err)
	}

	h.p.Pause()
	h.store.SetTheme(state.ThemeDark)
	if err := h.p.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	h.p.Resume()
	if err := h.p.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if h.mr.Exists(storage.KeyPersistUI) {
		t.Fatal("change made while paused must not be written")
	}

	h.store.SetTheme(state.ThemeLight)
	if err := h.p.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if !h.mr.Exists(storage.KeyPersistUI) {
		t.Fatal("expected write after resume")
	}
}

func TestPauseWaitsForInFlightWrite(t *testing.T) {
	h := newPersistTest(t, nil, Config{Debounce: time.Hour})
	if err := h.p.Rehydrate(context.Background()); err != nil {
		t.Fatalf("rehydrate: %v", err)
	}

	h.p.writeMu.Lock()
	var wg sync.WaitGroup
	done := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.p.Pause()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("pause returned while a write was in flight")
	case <-time.After(20 * time.Millisecond):
	}
	h.p.writeMu.Unlock()
	wg.Wait()
	if !h.p.Paused() {
		t.Fatal("expected paused")
	}
}

func TestCorruptAndOutdatedBlobsAreDiscarded(t *testing.T) {
	ctx := context.Background()
	var mu sync.Mutex
	discarded := map[string]string{}
	h := newPersistTest(t, nil, Config{OnDiscard: func(slice, reason string) {
		mu.Lock()
		discarded[slice] = reason
		mu.Unlock()
	}})
	_ = h.mr.Set(storage.KeyPersistAuth, "{not json")
	_ = h.mr.Set(storage.KeyPersistUI, `{"_persist":{"version":0,"key":"persist:ui"},"state":{"theme":"dark"}}`)

	if err := h.p.Rehydrate(ctx); err != nil {
		t.Fatalf("rehydrate must not fail on bad blobs: %v", err)
	}
	if h.store.Auth().IsAuthenticated {
		t.Fatal("corrupt auth blob must leave the slice logged out")
	}
	if h.store.UI().Theme != state.ThemeLight {
		t.Fatal("outdated ui blob must be discarded")
	}
	if discarded[state.SliceAuth] != "corrupt" || discarded[state.SliceUI] != "version" {
		t.Fatalf("unexpected discards %v", discarded)
	}
}

func TestMigrationUpgradesOldBlob(t *testing.T) {
	migrations := map[string]MigrateFunc{
		state.SliceUI: func(from int, fields map[string]json.RawMessage) (map[string]json.RawMessage, error) {
			if from != 0 {
				return nil, errors.New("unsupported")
			}
			out := map[string]json.RawMessage{"theme": fields["colorScheme"]}
			return out, nil
		},
	}
	h := newPersistTest(t, nil, Config{Migrations: migrations})
	_ = h.mr.Set(storage.KeyPersistUI, `{"_persist":{"version":0,"key":"persist:ui"},"state":{"colorScheme":"dark"}}`)

	if err := h.p.Rehydrate(context.Background()); err != nil {
		t.Fatalf("rehydrate: %v", err)
	}
	if h.store.UI().Theme != state.ThemeDark {
		t.Fatalf("expected migrated theme, got %+v", h.store.UI())
	}
}

func TestOldBlobWithUnwantedFieldsIsFiltered(t *testing.T) {
	h := newPersistTest(t, nil, Config{})
	_ = h.mr.Set(storage.KeyPersistUI, `{"_persist":{"version":1,"key":"persist:ui"},"state":{"theme":"dark","modals":{"x":true},"notifications":[{"id":"n"}]}}`)

	if err := h.p.Rehydrate(context.Background()); err != nil {
		t.Fatalf("rehydrate: %v", err)
	}
	ui := h.store.UI()
	if ui.Theme != state.ThemeDark || len(ui.Modals) != 0 || len(ui.Notifications) != 0 {
		t.Fatalf("unexpected ui %+v", ui)
	}
}

func TestClearSlicesOnlyTouchesNamedSlices(t *testing.T) {
	ctx := context.Background()
	h := newPersistTest(t, nil, Config{Debounce: time.Hour})
	if err := h.p.Rehydrate(ctx); err != nil {
		t.Fatalf("rehydrate: %v", err)
	}
	h.store.LoginSuccess(sampleUser())
	h.store.SetTheme(state.ThemeDark)
	if err := h.p.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if err := h.p.ClearSlices(ctx, state.SliceAuth); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if h.mr.Exists(storage.KeyPersistAuth) {
		t.Fatal("auth blob should be removed")
	}
	if !h.mr.Exists(storage.KeyPersistUI) {
		t.Fatal("ui blob must survive")
	}
	if h.store.Auth().IsAuthenticated || h.store.UI().Theme != state.ThemeDark {
		t.Fatalf("unexpected state after clear: %+v %+v", h.store.Auth(), h.store.UI())
	}
	if h.p.Paused() {
		t.Fatal("clear must resume writes")
	}
	if err := h.p.ClearSlices(ctx, "orders"); !errors.Is(err, ErrUnknownSlice) {
		t.Fatalf("expected ErrUnknownSlice, got %v", err)
	}
}

func TestClearSlicesDropsPendingWrite(t *testing.T) {
	ctx := context.Background()
	h := newPersistTest(t, nil, Config{Debounce: 20 * time.Millisecond})
	if err := h.p.Rehydrate(ctx); err != nil {
		t.Fatalf("rehydrate: %v", err)
	}
	h.store.LoginSuccess(sampleUser())

	if err := h.p.ClearSlices(ctx, state.SliceAuth); err != nil {
		t.Fatalf("clear: %v", err)
	}
	time.Sleep(80 * time.Millisecond)

	if raw, err := h.mr.Get(storage.KeyPersistAuth); err == nil && strings.Contains(raw, `"isAuthenticated":true`) {
		t.Fatalf("pending write resurrected the cleared session: %s", raw)
	}
	if h.store.Auth().IsAuthenticated {
		t.Fatal("auth slice should be reset")
	}

	// Changes made after the clear are still persisted.
	h.store.SetTheme(state.ThemeDark)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if raw, err := h.mr.Get(storage.KeyPersistUI); err == nil && strings.Contains(raw, state.ThemeDark) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("writes did not resume after clear")
}

func TestPurgeResetsEverything(t *testing.T) {
	ctx := context.Background()
	h := newPersistTest(t, nil, Config{Debounce: time.Hour})
	if err := h.p.Rehydrate(ctx); err != nil {
		t.Fatalf("rehydrate: %v", err)
	}
	h.store.LoginSuccess(sampleUser())
	h.store.SetTheme(state.ThemeDark)
	h.store.SetViewMode(state.ViewGrid)
	if err := h.p.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if err := h.p.Purge(ctx); err != nil {
		t.Fatalf("purge: %v", err)
	}
	for _, key := range append(h.p.Keys(), storage.KeyPersistRoot) {
		if h.mr.Exists(key) {
			t.Fatalf("key %s survived purge", key)
		}
	}
	if err := h.p.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if h.mr.Exists(storage.KeyPersistUI) {
		t.Fatal("purge reset must not be written back")
	}

	reloaded := newPersistTest(t, h.mr, Config{})
	if err := reloaded.p.Rehydrate(ctx); err != nil {
		t.Fatalf("rehydrate: %v", err)
	}
	if reloaded.store.Auth().IsAuthenticated || reloaded.store.UI().Theme != state.ThemeLight || reloaded.store.Products().ViewMode != state.ViewTable {
		t.Fatal("expected initial state after purge and reload")
	}
}

func TestStorageFailureIsWrapped(t *testing.T) {
	ctx := context.Background()
	h := newPersistTest(t, nil, Config{Debounce: time.Hour})
	if err := h.p.Rehydrate(ctx); err != nil {
		t.Fatalf("rehydrate: %v", err)
	}
	h.store.SetTheme(state.ThemeDark)
	h.mr.Close()

	err := h.p.Flush(ctx)
	if !errors.Is(err, ErrStorage) || !errors.Is(err, storage.ErrUnavailable) {
		t.Fatalf("expected wrapped storage error, got %v", err)
	}
	if err := h.p.Purge(ctx); !errors.Is(err, ErrStorage) {
		t.Fatalf("expected purge error, got %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	h := newPersistTest(t, nil, Config{})
	if got := h.p.HealthCheck(); got.IsBootstrapped || got.IsRehydrated {
		t.Fatalf("unexpected initial health %+v", got)
	}
	if err := h.p.Rehydrate(context.Background()); err != nil {
		t.Fatalf("rehydrate: %v", err)
	}
	if got := h.p.HealthCheck(); !got.IsBootstrapped || !got.IsRehydrated {
		t.Fatalf("unexpected health %+v", got)
	}
}
