package state

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func testUser() *User {
	return &User{
		ID:        "u-1",
		FirstName: "Amina",
		LastName:  "Saleh",
		Email:     "amina@redsea.test",
		Role: &Role{
			ID:          "r-1",
			Name:        "Admin",
			Type:        "admin",
			Permissions: NewPermissionSet("products:write", "orders:read"),
		},
	}
}

func TestPermissionSetJSONIsSorted(t *testing.T) {
	set := NewPermissionSet("users:read", "banners:write", "users:read", "")
	data, err := json.Marshal(set)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `["banners:write","users:read"]` {
		t.Fatalf("unexpected json %s", data)
	}

	var back PermissionSet
	if err := json.Unmarshal([]byte(`["b","a","b"]`), &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(back) != 2 || !back.HasAll("a", "b") || back.HasAny("c") {
		t.Fatalf("unexpected set %v", back)
	}
}

func TestLoginLifecycle(t *testing.T) {
	s := NewStore()
	s.LoginStart()
	if !s.Auth().IsLoading {
		t.Fatal("expected loading")
	}
	s.LoginFailure("bad credentials")
	a := s.Auth()
	if a.IsAuthenticated || a.IsLoading || a.Error != "bad credentials" {
		t.Fatalf("unexpected failure state %+v", a)
	}

	s.LoginSuccess(testUser())
	a = s.Auth()
	if !a.IsAuthenticated || a.User == nil || a.Error != "" {
		t.Fatalf("unexpected success state %+v", a)
	}
	if !a.User.Can("products:write") {
		t.Fatal("expected permission")
	}

	s.Logout()
	if s.Session().IsAuthenticated || s.Session().User != nil {
		t.Fatal("expected logged out")
	}
}

func TestUpdateProfileBuildsNewValue(t *testing.T) {
	s := NewStore()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	s.LoginSuccess(testUser())

	before := s.Auth().User
	name := "Noura"
	s.UpdateProfile(ProfilePatch{FirstName: &name})
	after := s.Auth().User

	if before == after {
		t.Fatal("expected a new user value")
	}
	if before.FirstName != "Amina" {
		t.Fatalf("previous value mutated: %q", before.FirstName)
	}
	if after.FirstName != "Noura" || after.LastName != "Saleh" || !after.UpdatedAt.Equal(fixed) {
		t.Fatalf("unexpected patched user %+v", after)
	}
}

func TestNotificationsNewestFirst(t *testing.T) {
	s := NewStore()
	first := s.Notify(NotifyInfo, "one", "")
	second := s.Notify(NotifyWarning, "two", "")
	if first.ID == second.ID || first.ID == "" {
		t.Fatal("expected distinct ids")
	}

	ns := s.UI().Notifications
	if len(ns) != 2 || ns[0].ID != second.ID {
		t.Fatalf("expected newest first, got %+v", ns)
	}

	s.MarkRead(first.ID)
	if !s.UI().Notifications[1].Read {
		t.Fatal("expected read flag")
	}
	s.Dismiss(second.ID)
	if n := s.UI().Notifications; len(n) != 1 || n[0].ID != first.ID {
		t.Fatalf("unexpected after dismiss %+v", n)
	}
	s.ClearNotifications()
	if len(s.UI().Notifications) != 0 {
		t.Fatal("expected empty")
	}
}

func TestSubscribeReportsSessionTransitions(t *testing.T) {
	s := NewStore()
	var mu sync.Mutex
	var changes []string
	unsubscribe := s.Subscribe(func(ev Event) {
		if ev.SessionChanged() {
			mu.Lock()
			changes = append(changes, ev.Action)
			mu.Unlock()
		}
	})

	s.SetTheme(ThemeDark)
	s.LoginSuccess(testUser())
	s.UpdateProfile(ProfilePatch{})
	s.Logout()
	unsubscribe()
	s.LoginSuccess(testUser())

	mu.Lock()
	defer mu.Unlock()
	if len(changes) != 2 || changes[0] != ActionLoginSuccess || changes[1] != ActionLogout {
		t.Fatalf("unexpected transitions %v", changes)
	}
}

func TestListenerMayReadStore(t *testing.T) {
	s := NewStore()
	var seen bool
	s.Subscribe(func(ev Event) {
		seen = s.Auth().IsAuthenticated
	})
	s.LoginSuccess(testUser())
	if !seen {
		t.Fatal("listener should observe the applied state")
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	s := NewStore()
	s.LoginSuccess(testUser())
	s.SetTheme(ThemeDark)
	s.SetModal("confirm", true)

	auth, err := s.AuthSlice().Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	ui, err := s.UISlice().Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	fresh := NewStore()
	if err := fresh.AuthSlice().Restore(auth); err != nil {
		t.Fatalf("restore auth: %v", err)
	}
	if err := fresh.UISlice().Restore(map[string]json.RawMessage{"theme": ui["theme"]}); err != nil {
		t.Fatalf("restore ui: %v", err)
	}

	a := fresh.Auth()
	if !a.IsAuthenticated || a.User.ID != "u-1" || !a.User.Role.Permissions.Has("orders:read") {
		t.Fatalf("unexpected restored auth %+v", a)
	}
	u := fresh.UI()
	if u.Theme != ThemeDark || !u.SidebarOpen || len(u.Modals) != 0 {
		t.Fatalf("unexpected restored ui %+v", u)
	}
}

func TestRestoreIgnoresUnknownFields(t *testing.T) {
	s := NewStore()
	err := s.ProductsSlice().Restore(map[string]json.RawMessage{
		"pageSize": json.RawMessage(`25`),
		"legacy":   json.RawMessage(`"x"`),
	})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	p := s.Products()
	if p.PageSize != 25 || p.ViewMode != ViewTable {
		t.Fatalf("unexpected products %+v", p)
	}
}

func TestResetReturnsToInitial(t *testing.T) {
	s := NewStore()
	s.SetPageSize(50)
	s.SetViewMode(ViewGrid)
	s.ProductsSlice().Reset()
	p := s.Products()
	if p.PageSize != 10 || p.ViewMode != ViewTable {
		t.Fatalf("unexpected reset state %+v", p)
	}
}
