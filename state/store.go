package state

import (
	"maps"
	"slices"
	"sync"
	"time"
)

// Slice names.
const (
	SliceAuth     = "auth"
	SliceUI       = "ui"
	SliceProducts = "products"
)

// Action names carried by [Event].
const (
	ActionLoginStart     = "auth/loginStart"
	ActionLoginSuccess   = "auth/loginSuccess"
	ActionLoginFailure   = "auth/loginFailure"
	ActionUpdateProfile  = "auth/updateProfile"
	ActionLogout         = "auth/logout"
	ActionSetTheme       = "ui/setTheme"
	ActionToggleSidebar  = "ui/toggleSidebar"
	ActionNotify         = "ui/addNotification"
	ActionDismiss        = "ui/removeNotification"
	ActionMarkRead       = "ui/markNotificationRead"
	ActionClearNotices   = "ui/clearNotifications"
	ActionSetLoading     = "ui/setLoading"
	ActionSetModal       = "ui/setModal"
	ActionSetFilters     = "products/setFilters"
	ActionSetPageSize    = "products/setPageSize"
	ActionSetViewMode    = "products/setViewMode"
	ActionProductsStart  = "products/fetchStart"
	ActionProductsLoaded = "products/fetchSuccess"
	ActionProductsFailed = "products/fetchFailure"
	ActionRehydrate      = "persist/rehydrate"
	ActionReset          = "persist/reset"
)

// Themes.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// View modes for the product list.
const (
	ViewTable = "table"
	ViewGrid  = "grid"
)

// AuthState is the auth slice.
type AuthState struct {
	User            *User  `json:"user"`
	IsAuthenticated bool   `json:"isAuthenticated"`
	IsLoading       bool   `json:"isLoading"`
	Error           string `json:"error"`
}

// UIState is the ui slice.
type UIState struct {
	Theme         string          `json:"theme"`
	SidebarOpen   bool            `json:"sidebarOpen"`
	Notifications []Notification  `json:"notifications"`
	Loading       map[string]bool `json:"loading"`
	Modals        map[string]bool `json:"modals"`
}

// Product is one catalogue row.
type Product struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Stock    int     `json:"stock"`
	Status   string  `json:"status"`
	Category string  `json:"category,omitempty"`
}

// ProductsState is the products slice.
type ProductsState struct {
	Filters   map[string]any `json:"filters"`
	PageSize  int            `json:"pageSize"`
	ViewMode  string         `json:"viewMode"`
	Items     []Product      `json:"items"`
	Total     int            `json:"total"`
	IsLoading bool           `json:"isLoading"`
	Error     string         `json:"error"`
}

// Event announces one applied action. PrevAuth and Auth let subscribers
// detect session transitions without re-reading the store.
type Event struct {
	Action   string
	Slice    string
	PrevAuth AuthState
	Auth     AuthState
}

// SessionChanged reports whether the authenticated flag or the user identity
// moved.
func (e Event) SessionChanged() bool {
	if e.PrevAuth.IsAuthenticated != e.Auth.IsAuthenticated {
		return true
	}
	return userID(e.PrevAuth.User) != userID(e.Auth.User)
}

func userID(u *User) string {
	if u == nil {
		return ""
	}
	return u.ID
}

// Listener receives events synchronously after the store lock is released.
type Listener func(Event)

// Store is the in-memory state container. Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	auth     AuthState
	ui       UIState
	products ProductsState

	listenerMu sync.RWMutex
	listeners  map[uint64]Listener
	nextID     uint64

	now func() time.Time
}

// NewStore returns a store holding initial state.
func NewStore() *Store {
	return &Store{
		auth:      initialAuth(),
		ui:        initialUI(),
		products:  initialProducts(),
		listeners: make(map[uint64]Listener),
		now:       time.Now,
	}
}

func initialAuth() AuthState { return AuthState{} }

func initialUI() UIState {
	return UIState{
		Theme:       ThemeLight,
		SidebarOpen: true,
		Loading:     map[string]bool{},
		Modals:      map[string]bool{},
	}
}

func initialProducts() ProductsState {
	return ProductsState{
		Filters:  map[string]any{},
		PageSize: 10,
		ViewMode: ViewTable,
	}
}

// Subscribe registers l and returns a function that removes it.
func (s *Store) Subscribe(l Listener) func() {
	s.listenerMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.listenerMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenerMu.Lock()
			delete(s.listeners, id)
			s.listenerMu.Unlock()
		})
	}
}

func (s *Store) emit(ev Event) {
	s.listenerMu.RLock()
	ids := slices.Sorted(maps.Keys(s.listeners))
	ls := make([]Listener, 0, len(ids))
	for _, id := range ids {
		ls = append(ls, s.listeners[id])
	}
	s.listenerMu.RUnlock()

	for _, l := range ls {
		l(ev)
	}
}

// updateAuth applies fn under the lock and emits the transition.
func (s *Store) updateAuth(action string, fn func(*AuthState)) {
	s.mu.Lock()
	prev := s.auth
	next := prev
	fn(&next)
	s.auth = next
	s.mu.Unlock()

	s.emit(Event{Action: action, Slice: SliceAuth, PrevAuth: prev, Auth: next})
}

func (s *Store) updateUI(action string, fn func(*UIState)) {
	s.mu.Lock()
	next := cloneUI(s.ui)
	fn(&next)
	s.ui = next
	auth := s.auth
	s.mu.Unlock()

	s.emit(Event{Action: action, Slice: SliceUI, PrevAuth: auth, Auth: auth})
}

func (s *Store) updateProducts(action string, fn func(*ProductsState)) {
	s.mu.Lock()
	next := cloneProducts(s.products)
	fn(&next)
	s.products = next
	auth := s.auth
	s.mu.Unlock()

	s.emit(Event{Action: action, Slice: SliceProducts, PrevAuth: auth, Auth: auth})
}

// Auth returns a copy of the auth slice.
func (s *Store) Auth() AuthState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.auth
}

// Session returns the read view of the current identity.
func (s *Store) Session() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Session{User: s.auth.User, IsAuthenticated: s.auth.IsAuthenticated}
}

// UI returns a copy of the ui slice.
func (s *Store) UI() UIState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneUI(s.ui)
}

// Products returns a copy of the products slice.
func (s *Store) Products() ProductsState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneProducts(s.products)
}

// LoginStart marks a login attempt in flight.
func (s *Store) LoginStart() {
	s.updateAuth(ActionLoginStart, func(a *AuthState) {
		a.IsLoading = true
		a.Error = ""
	})
}

// LoginSuccess installs the authenticated user.
func (s *Store) LoginSuccess(user *User) {
	u := user.Clone()
	s.updateAuth(ActionLoginSuccess, func(a *AuthState) {
		*a = AuthState{User: u, IsAuthenticated: u != nil}
	})
}

// LoginFailure records a failed attempt and leaves the session logged out.
func (s *Store) LoginFailure(message string) {
	s.updateAuth(ActionLoginFailure, func(a *AuthState) {
		*a = AuthState{Error: message}
	})
}

// UpdateProfile replaces the user with a patched copy. It is a no-op when no
// user is present.
func (s *Store) UpdateProfile(patch ProfilePatch) {
	now := s.now()
	s.updateAuth(ActionUpdateProfile, func(a *AuthState) {
		if a.User == nil {
			return
		}
		a.User = a.User.WithProfile(patch, now)
	})
}

// ReplaceUser swaps the user for a server-provided copy, keeping the session
// authenticated.
func (s *Store) ReplaceUser(user *User) {
	u := user.Clone()
	s.updateAuth(ActionUpdateProfile, func(a *AuthState) {
		if a.User == nil || u == nil {
			return
		}
		a.User = u
	})
}

// Logout resets the auth slice to logged out.
func (s *Store) Logout() {
	s.updateAuth(ActionLogout, func(a *AuthState) {
		*a = initialAuth()
	})
}

// SetTheme sets the colour theme; unknown values fall back to light.
func (s *Store) SetTheme(theme string) {
	if theme != ThemeDark {
		theme = ThemeLight
	}
	s.updateUI(ActionSetTheme, func(u *UIState) { u.Theme = theme })
}

// ToggleSidebar flips the sidebar flag.
func (s *Store) ToggleSidebar() {
	s.updateUI(ActionToggleSidebar, func(u *UIState) { u.SidebarOpen = !u.SidebarOpen })
}

// SetSidebar sets the sidebar flag.
func (s *Store) SetSidebar(open bool) {
	s.updateUI(ActionToggleSidebar, func(u *UIState) { u.SidebarOpen = open })
}

// Notify prepends a notification and returns it.
func (s *Store) Notify(kind NotificationKind, title, message string) Notification {
	n := Notification{
		ID:        newNotificationID(),
		Kind:      kind,
		Title:     title,
		Message:   message,
		CreatedAt: s.now(),
	}
	s.updateUI(ActionNotify, func(u *UIState) {
		u.Notifications = append([]Notification{n}, u.Notifications...)
	})
	return n
}

// Dismiss removes the notification with id.
func (s *Store) Dismiss(id string) {
	s.updateUI(ActionDismiss, func(u *UIState) {
		u.Notifications = slices.DeleteFunc(u.Notifications, func(n Notification) bool {
			return n.ID == id
		})
	})
}

// MarkRead flags the notification with id as read.
func (s *Store) MarkRead(id string) {
	s.updateUI(ActionMarkRead, func(u *UIState) {
		for i := range u.Notifications {
			if u.Notifications[i].ID == id {
				u.Notifications[i].Read = true
			}
		}
	})
}

// ClearNotifications removes every notification.
func (s *Store) ClearNotifications() {
	s.updateUI(ActionClearNotices, func(u *UIState) { u.Notifications = nil })
}

// SetLoading sets or clears a named loading flag.
func (s *Store) SetLoading(key string, on bool) {
	s.updateUI(ActionSetLoading, func(u *UIState) {
		if on {
			u.Loading[key] = true
		} else {
			delete(u.Loading, key)
		}
	})
}

// SetModal opens or closes a named modal.
func (s *Store) SetModal(name string, open bool) {
	s.updateUI(ActionSetModal, func(u *UIState) {
		if open {
			u.Modals[name] = true
		} else {
			delete(u.Modals, name)
		}
	})
}

// SetProductFilters replaces the product list filters.
func (s *Store) SetProductFilters(filters map[string]any) {
	f := maps.Clone(filters)
	if f == nil {
		f = map[string]any{}
	}
	s.updateProducts(ActionSetFilters, func(p *ProductsState) { p.Filters = f })
}

// SetPageSize sets the product page size. Non-positive sizes are ignored.
func (s *Store) SetPageSize(n int) {
	if n <= 0 {
		return
	}
	s.updateProducts(ActionSetPageSize, func(p *ProductsState) { p.PageSize = n })
}

// SetViewMode switches between table and grid; unknown values fall back to
// table.
func (s *Store) SetViewMode(mode string) {
	if mode != ViewGrid {
		mode = ViewTable
	}
	s.updateProducts(ActionSetViewMode, func(p *ProductsState) { p.ViewMode = mode })
}

// ProductsLoading marks a product fetch in flight.
func (s *Store) ProductsLoading() {
	s.updateProducts(ActionProductsStart, func(p *ProductsState) {
		p.IsLoading = true
		p.Error = ""
	})
}

// ProductsLoaded stores one fetched page.
func (s *Store) ProductsLoaded(items []Product, total int) {
	rows := slices.Clone(items)
	s.updateProducts(ActionProductsLoaded, func(p *ProductsState) {
		p.Items = rows
		p.Total = total
		p.IsLoading = false
		p.Error = ""
	})
}

// ProductsFailed records a failed fetch.
func (s *Store) ProductsFailed(message string) {
	s.updateProducts(ActionProductsFailed, func(p *ProductsState) {
		p.IsLoading = false
		p.Error = message
	})
}

func cloneUI(u UIState) UIState {
	u.Notifications = slices.Clone(u.Notifications)
	u.Loading = maps.Clone(u.Loading)
	if u.Loading == nil {
		u.Loading = map[string]bool{}
	}
	u.Modals = maps.Clone(u.Modals)
	if u.Modals == nil {
		u.Modals = map[string]bool{}
	}
	return u
}

func cloneProducts(p ProductsState) ProductsState {
	p.Filters = maps.Clone(p.Filters)
	if p.Filters == nil {
		p.Filters = map[string]any{}
	}
	p.Items = slices.Clone(p.Items)
	return p
}
