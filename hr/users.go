package hr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/warp/hrstore/generic"
)

// ErrInvalidCredentials is returned by Authenticate for an unknown user,
// an inactive account or a wrong password alike.
var ErrInvalidCredentials = errors.New("invalid username or password")

// User is an application login.
type User struct {
	ID           UserID     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"password_hash"`
	Role         Role       `json:"role"`
	IsActive     bool       `json:"is_active"`
	LastLogin    *time.Time `json:"last_login"`
	generic.Stamps
}

func (u User) Key() UserID     { return u.ID }
func (u *User) SetKey(k UserID) { u.ID = k }

// Clone returns a copy that shares no pointers with u.
func (u User) Clone() User {
	u.LastLogin = clonePtr(u.LastLogin)
	return u
}

var _ generic.Record[UserID] = (*User)(nil)

func validateUser(u User) error {
	switch {
	case strings.TrimSpace(u.Username) == "":
		return generic.Invalid("username is required")
	case !strings.Contains(u.Email, "@"):
		return generic.Invalid("email %q is not an address", u.Email)
	case !u.Role.Valid():
		return generic.Invalid("unknown role %q", u.Role)
	}
	return nil
}

// UserFilter selects users. Zero fields do not filter.
type UserFilter struct {
	Role   Role
	Active *bool
	Search string // username or email
}

func (f UserFilter) filters() []generic.Filter[User] {
	var out []generic.Filter[User]
	if f.Role != "" {
		out = append(out, generic.Equal(func(u User) Role { return u.Role }, f.Role))
	}
	if f.Active != nil {
		out = append(out, generic.Equal(func(u User) bool { return u.IsActive }, *f.Active))
	}
	return append(out, generic.Search(f.Search,
		func(u User) string { return u.Username },
		func(u User) string { return u.Email },
	))
}

// UserPatch holds the fields to change; nil fields are left alone.
// Passwords change through SetPassword.
type UserPatch struct {
	Username *string
	Email    *string
	Role     *Role
	IsActive *bool
}

func (p UserPatch) apply(u *User) {
	set(&u.Username, p.Username)
	set(&u.Email, p.Email)
	set(&u.Role, p.Role)
	set(&u.IsActive, p.IsActive)
}

// Users is the users collection. Email and username are unique, ignoring case.
type Users struct {
	*generic.Repository[User, UserID, *User]
	now func() time.Time
}

func newUsers(s *generic.Store) *Users {
	return &Users{
		Repository: generic.NewRepository[User, UserID](s, CollectionUsers,
			generic.WithValidator(validateUser),
			generic.WithUnique("email", func(u User) string { return generic.Fold(u.Email) }),
			generic.WithUnique("username", func(u User) string { return generic.Fold(u.Username) }),
		),
		now: s.Now,
	}
}

// All returns users matching f, most recently created first.
func (r *Users) All(ctx context.Context, f UserFilter) ([]User, error) {
	return r.List(ctx, f.filters()...)
}

// Patch merges p onto user id.
func (r *Users) Patch(ctx context.Context, id UserID, p UserPatch) (User, bool, error) {
	return r.Update(ctx, id, func(u *User) error {
		p.apply(u)
		return nil
	})
}

// ByEmail looks a user up by email, ignoring case.
func (r *Users) ByEmail(ctx context.Context, email string) (User, bool, error) {
	want := generic.Fold(strings.TrimSpace(email))
	return r.Find(ctx, func(u User) bool { return generic.Fold(u.Email) == want })
}

// ByUsername looks a user up by username, ignoring case.
func (r *Users) ByUsername(ctx context.Context, username string) (User, bool, error) {
	want := generic.Fold(strings.TrimSpace(username))
	return r.Find(ctx, func(u User) bool { return generic.Fold(u.Username) == want })
}

// SetPassword stores a bcrypt hash of password for user id.
func (r *Users) SetPassword(ctx context.Context, id UserID, password string) (bool, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return false, err
	}
	_, ok, err := r.Update(ctx, id, func(u *User) error {
		u.PasswordHash = hash
		return nil
	})
	return ok, err
}

// Authenticate checks password for the user with the given username (or
// email) and records the login time. Any mismatch is ErrInvalidCredentials.
func (r *Users) Authenticate(ctx context.Context, login, password string) (User, error) {
	lookup := r.ByUsername
	if strings.Contains(login, "@") {
		lookup = r.ByEmail
	}
	u, ok, err := lookup(ctx, login)
	if err != nil {
		return User{}, err
	}
	if !ok || !u.IsActive || u.PasswordHash == "" {
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}

	at := r.now().UTC()
	u, ok, err = r.Update(ctx, u.ID, func(u *User) error {
		u.LastLogin = &at
		return nil
	})
	if err != nil {
		return User{}, err
	}
	if !ok {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

// HashPassword returns the bcrypt hash stored in password_hash.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", generic.Invalid("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
