package invalidate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/redseamarket/adminkit/storage"
)

type recordingNavigator struct {
	mu       sync.Mutex
	replaced []string
	hard     []string
}

func (n *recordingNavigator) Replace(path string) {
	n.mu.Lock()
	n.replaced = append(n.replaced, path)
	n.mu.Unlock()
}

func (n *recordingNavigator) HardRedirect(path string) {
	n.mu.Lock()
	n.hard = append(n.hard, path)
	n.mu.Unlock()
}

func (n *recordingNavigator) counts() (int, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.replaced), len(n.hard)
}

type fakeHeader struct{ cleared atomic.Int64 }

func (h *fakeHeader) ClearHeader() { h.cleared.Add(1) }

type fakeSession struct{ logouts atomic.Int64 }

func (s *fakeSession) Logout() { s.logouts.Add(1) }

type fakeSlices struct {
	names []string
	err   error
}

func (s *fakeSlices) ClearSlices(_ context.Context, names ...string) error {
	s.names = names
	return s.err
}

type invalidateHarness struct {
	mr      *miniredis.Miniredis
	nav     *recordingNavigator
	header  *fakeHeader
	session *fakeSession
	slices  *fakeSlices
	notes   atomic.Int64
	inv     *Invalidator
}

func newInvalidateTest(t *testing.T, notifier Notifier) *invalidateHarness {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	h := &invalidateHarness{
		mr:      mr,
		nav:     &recordingNavigator{},
		header:  &fakeHeader{},
		session: &fakeSession{},
		slices:  &fakeSlices{},
	}
	if notifier == nil {
		notifier = NotifierFunc(func(context.Context) error {
			h.notes.Add(1)
			return nil
		})
	}
	h.inv, err = New(Options{
		Storage:    storage.NewRedis(rdb, ""),
		Header:     h.header,
		Slices:     h.slices,
		SliceNames: []string{"auth"},
		Session:    h.session,
		Notifier:   notifier,
		Navigator:  h.nav,
		SignInPath: "/login",
	})
	if err != nil {
		t.Fatalf("new invalidator: %v", err)
	}
	for _, k := range []string{storage.KeyAuthToken, storage.KeyRefreshToken, storage.KeyPersistAuth, storage.KeyPersistRoot, storage.KeyPersistUI} {
		_ = mr.Set(k, "x")
	}
	return h
}

func TestInvalidateClearsEverythingAndReplaces(t *testing.T) {
	h := newInvalidateTest(t, nil)
	var outcome Outcome
	h.inv.opts.OnOutcome = func(o Outcome) { outcome = o }

	if err := h.inv.Invalidate(context.Background(), true); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	for _, k := range storage.SessionKeys {
		if h.mr.Exists(k) {
			t.Fatalf("session key %s survived", k)
		}
	}
	if !h.mr.Exists(storage.KeyPersistUI) {
		t.Fatal("ui preferences must survive invalidation")
	}
	if h.header.cleared.Load() != 1 || h.session.logouts.Load() != 1 || h.notes.Load() != 1 {
		t.Fatalf("unexpected side effects header=%d logout=%d notes=%d",
			h.header.cleared.Load(), h.session.logouts.Load(), h.notes.Load())
	}
	if len(h.slices.names) != 1 || h.slices.names[0] != "auth" {
		t.Fatalf("unexpected slices cleared %v", h.slices.names)
	}
	if r, hard := h.nav.counts(); r != 1 || hard != 0 {
		t.Fatalf("expected one replace, got replace=%d hard=%d", r, hard)
	}
	if h.inv.State() != Invalidated || !outcome.Notified || outcome.HardRedirect {
		t.Fatalf("unexpected state %v outcome %+v", h.inv.State(), outcome)
	}
}

func TestConcurrentInvalidationNavigatesOnce(t *testing.T) {
	for _, n := range []int{1, 2, 16, 64} {
		h := newInvalidateTest(t, nil)
		var wg sync.WaitGroup
		start := make(chan struct{})
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_ = h.inv.Invalidate(context.Background(), true)
			}()
		}
		close(start)
		wg.Wait()

		if r, hard := h.nav.counts(); r != 1 || hard != 0 {
			t.Fatalf("n=%d: expected one navigation, got replace=%d hard=%d", n, r, hard)
		}
		if h.notes.Load() != 1 {
			t.Fatalf("n=%d: expected one notification, got %d", n, h.notes.Load())
		}
		for _, k := range storage.SessionKeys {
			if h.mr.Exists(k) {
				t.Fatalf("n=%d: session key %s survived", n, k)
			}
		}
	}
}

func TestLateCallIsNoop(t *testing.T) {
	h := newInvalidateTest(t, nil)
	ctx := context.Background()
	_ = h.inv.Invalidate(ctx, true)
	_ = h.mr.Set(storage.KeyAuthToken, "fresh")

	if err := h.inv.Invalidate(ctx, true); err != nil {
		t.Fatalf("late call: %v", err)
	}
	if !h.mr.Exists(storage.KeyAuthToken) {
		t.Fatal("late call must not touch storage")
	}

	h.inv.Reset()
	if h.inv.State() != Active {
		t.Fatal("reset should return to active")
	}
	_ = h.inv.Invalidate(ctx, false)
	if r, _ := h.nav.counts(); r != 2 {
		t.Fatalf("expected second run after reset, got %d navigations", r)
	}
	if h.notes.Load() != 1 {
		t.Fatal("notify=false must not notify")
	}
}

func TestResetDuringRunKeepsNewSession(t *testing.T) {
	var inv *Invalidator
	h := newInvalidateTest(t, NotifierFunc(func(context.Context) error {
		inv.Reset()
		return nil
	}))
	inv = h.inv

	if err := h.inv.Invalidate(context.Background(), true); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if h.inv.State() != Active {
		t.Fatalf("run finishing after reset must leave Active, got %v", h.inv.State())
	}
	if r, hard := h.nav.counts(); r != 0 || hard != 0 {
		t.Fatalf("superseded run must not navigate, got replace=%d hard=%d", r, hard)
	}

	_ = h.mr.Set(storage.KeyAuthToken, "fresh")
	if err := h.inv.Invalidate(context.Background(), false); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if h.inv.State() != Invalidated || h.mr.Exists(storage.KeyAuthToken) {
		t.Fatal("a run in the new epoch must still tear down")
	}
}

func TestNotifierFailureStillClearsCredentials(t *testing.T) {
	for name, notifier := range map[string]Notifier{
		"error": NotifierFunc(func(context.Context) error { return errors.New("toast queue full") }),
		"panic": NotifierFunc(func(context.Context) error { panic("boom") }),
	} {
		h := newInvalidateTest(t, notifier)
		err := h.inv.Invalidate(context.Background(), true)
		if err == nil {
			t.Fatalf("%s: expected notifier error", name)
		}
		if h.mr.Exists(storage.KeyAuthToken) || h.session.logouts.Load() != 1 || h.header.cleared.Load() != 1 {
			t.Fatalf("%s: credentials not cleared", name)
		}
		if r, hard := h.nav.counts(); r != 0 || hard != 1 {
			t.Fatalf("%s: expected hard redirect only, got replace=%d hard=%d", name, r, hard)
		}
	}
}

func TestStorageFailureFallsBackToHardRedirect(t *testing.T) {
	h := newInvalidateTest(t, nil)
	h.mr.Close()

	err := h.inv.Invalidate(context.Background(), true)
	if !errors.Is(err, storage.ErrUnavailable) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if h.session.logouts.Load() != 1 || h.header.cleared.Load() != 1 {
		t.Fatal("remaining steps must still run")
	}
	if r, hard := h.nav.counts(); r != 0 || hard != 1 {
		t.Fatalf("expected hard redirect, got replace=%d hard=%d", r, hard)
	}
}

func TestNewValidatesOptions(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatal("expected error without storage")
	}
}
