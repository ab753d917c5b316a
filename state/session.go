package state

import (
	"encoding/json"
	"sort"
	"time"
)

// PermissionSet is an unordered set of permission strings. Its JSON form is a
// sorted array.
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from perms, ignoring empty strings.
func NewPermissionSet(perms ...string) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		if p != "" {
			set[p] = struct{}{}
		}
	}
	return set
}

// Has reports whether perm is in the set.
func (s PermissionSet) Has(perm string) bool {
	_, ok := s[perm]
	return ok
}

// HasAny reports whether at least one of perms is in the set.
func (s PermissionSet) HasAny(perms ...string) bool {
	for _, p := range perms {
		if s.Has(p) {
			return true
		}
	}
	return false
}

// HasAll reports whether every one of perms is in the set.
func (s PermissionSet) HasAll(perms ...string) bool {
	for _, p := range perms {
		if !s.Has(p) {
			return false
		}
	}
	return true
}

// Sorted returns the permissions in lexical order.
func (s PermissionSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON encodes the set as a sorted string array.
func (s PermissionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes a string array; duplicates collapse.
func (s *PermissionSet) UnmarshalJSON(data []byte) error {
	var perms []string
	if err := json.Unmarshal(data, &perms); err != nil {
		return err
	}
	*s = NewPermissionSet(perms...)
	return nil
}

func (s PermissionSet) clone() PermissionSet {
	if s == nil {
		return nil
	}
	out := make(PermissionSet, len(s))
	for p := range s {
		out[p] = struct{}{}
	}
	return out
}

// Role is the authorization envelope attached to a user.
type Role struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Type        string        `json:"type"`
	Permissions PermissionSet `json:"permissions"`
}

// User is the authenticated identity. Values are treated as immutable; use
// [User.WithProfile] to derive an updated copy.
type User struct {
	ID         string     `json:"id"`
	FirstName  string     `json:"firstName"`
	LastName   string     `json:"lastName"`
	Email      string     `json:"email"`
	Phone      string     `json:"phone,omitempty"`
	IsVerified bool       `json:"isVerified"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	DeletedAt  *time.Time `json:"deletedAt,omitempty"`
	Role       *Role      `json:"role,omitempty"`
}

// FullName joins the name fields.
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}

// Can reports whether the user's role grants perm.
func (u *User) Can(perm string) bool {
	if u == nil || u.Role == nil {
		return false
	}
	return u.Role.Permissions.Has(perm)
}

// ProfilePatch lists the profile fields a user may change. Nil fields are
// left untouched.
type ProfilePatch struct {
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	Email     *string `json:"email,omitempty"`
	Phone     *string `json:"phone,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p ProfilePatch) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Email == nil && p.Phone == nil
}

// WithProfile returns a new User with patch applied. The receiver is not
// modified.
func (u *User) WithProfile(patch ProfilePatch, now time.Time) *User {
	next := u.Clone()
	if patch.FirstName != nil {
		next.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		next.LastName = *patch.LastName
	}
	if patch.Email != nil {
		next.Email = *patch.Email
	}
	if patch.Phone != nil {
		next.Phone = *patch.Phone
	}
	if !patch.Empty() {
		next.UpdatedAt = now
	}
	return next
}

// Clone deep-copies the user.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	next := *u
	if u.DeletedAt != nil {
		t := *u.DeletedAt
		next.DeletedAt = &t
	}
	if u.Role != nil {
		r := *u.Role
		r.Permissions = u.Role.Permissions.clone()
		next.Role = &r
	}
	return &next
}

// Session is the read view of the authenticated identity handed to callers.
// The token itself never lives here.
type Session struct {
	User            *User
	IsAuthenticated bool
}

// UserID returns the user's ID or "".
func (s Session) UserID() string {
	if s.User == nil {
		return ""
	}
	return s.User.ID
}
