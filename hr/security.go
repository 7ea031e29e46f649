package hr

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/warp/hrstore/generic"
)

// =============================================================================
// TWO-FACTOR METHODS
// =============================================================================

// TwoFactorMethod is a second factor registered for a user.
type TwoFactorMethod struct {
	ID          TwoFactorMethodID `json:"id"`
	UserID      UserID            `json:"user_id"`
	MethodType  MethodType        `json:"method_type"`
	IsEnabled   bool              `json:"is_enabled"`
	IsPrimary   bool              `json:"is_primary"`
	Secret      string            `json:"secret"`
	PhoneNumber string            `json:"phone_number"`
	LastUsedAt  *time.Time        `json:"last_used_at"`
	generic.Stamps
}

func (m TwoFactorMethod) Key() TwoFactorMethodID     { return m.ID }
func (m *TwoFactorMethod) SetKey(k TwoFactorMethodID) { m.ID = k }

func (m TwoFactorMethod) Clone() TwoFactorMethod {
	m.LastUsedAt = clonePtr(m.LastUsedAt)
	return m
}

var _ generic.Record[TwoFactorMethodID] = (*TwoFactorMethod)(nil)

func validateTwoFactor(m TwoFactorMethod) error {
	switch {
	case m.UserID <= 0:
		return generic.Invalid("user_id is required")
	case !m.MethodType.Valid():
		return generic.Invalid("unknown method type %q", m.MethodType)
	case m.MethodType == MethodSMS && strings.TrimSpace(m.PhoneNumber) == "":
		return generic.Invalid("sms method needs a phone_number")
	}
	return nil
}

// TwoFactorMethods is the two_factor_methods collection.
type TwoFactorMethods struct {
	*generic.Repository[TwoFactorMethod, TwoFactorMethodID, *TwoFactorMethod]
}

func newTwoFactorMethods(s *generic.Store) *TwoFactorMethods {
	return &TwoFactorMethods{generic.NewRepository[TwoFactorMethod, TwoFactorMethodID](s, CollectionTwoFactorMethods,
		generic.WithValidator(validateTwoFactor),
	)}
}

// ForUser returns the user's methods, most recently added first.
func (r *TwoFactorMethods) ForUser(ctx context.Context, user UserID) ([]TwoFactorMethod, error) {
	return r.List(ctx, generic.Equal(func(m TwoFactorMethod) UserID { return m.UserID }, user))
}

// =============================================================================
// BACKUP CODES
// =============================================================================

// BackupCode is a single-use recovery code. Only its bcrypt hash is stored.
type BackupCode struct {
	ID       BackupCodeID `json:"id"`
	UserID   UserID       `json:"user_id"`
	CodeHash string       `json:"code_hash"`
	IsUsed   bool         `json:"is_used"`
	UsedAt   *time.Time   `json:"used_at"`
	generic.Stamps
}

func (c BackupCode) Key() BackupCodeID     { return c.ID }
func (c *BackupCode) SetKey(k BackupCodeID) { c.ID = k }

func (c BackupCode) Clone() BackupCode {
	c.UsedAt = clonePtr(c.UsedAt)
	return c
}

var _ generic.Record[BackupCodeID] = (*BackupCode)(nil)

func validateBackupCode(c BackupCode) error {
	switch {
	case c.UserID <= 0:
		return generic.Invalid("user_id is required")
	case c.CodeHash == "":
		return generic.Invalid("code_hash is required")
	}
	return nil
}

// BackupCodes is the backup_codes collection.
type BackupCodes struct {
	*generic.Repository[BackupCode, BackupCodeID, *BackupCode]
	now func() time.Time
}

func newBackupCodes(s *generic.Store) *BackupCodes {
	return &BackupCodes{
		Repository: generic.NewRepository[BackupCode, BackupCodeID](s, CollectionBackupCodes,
			generic.WithValidator(validateBackupCode),
		),
		now: s.Now,
	}
}

// codeAlphabet leaves out 0/O and 1/I.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Generate replaces the user's unused codes with n fresh ones in a single
// save and returns them in clear text. This is the only time the clear
// codes exist. On failure the old codes stay valid.
func (r *BackupCodes) Generate(ctx context.Context, user UserID, n int) ([]string, error) {
	if n <= 0 {
		return nil, generic.Invalid("code count must be positive")
	}
	codes := make([]string, n)
	recs := make([]BackupCode, n)
	for i := range codes {
		code, err := newBackupCode()
		if err != nil {
			return nil, err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash backup code: %w", err)
		}
		codes[i] = code
		recs[i] = BackupCode{UserID: user, CodeHash: string(hash)}
	}

	if _, _, err := r.Replace(ctx, recs, r.unused(user)); err != nil {
		return nil, err
	}
	return codes, nil
}

// Redeem marks the matching unused code as used. It returns false when no
// unused code of the user matches.
func (r *BackupCodes) Redeem(ctx context.Context, user UserID, code string) (bool, error) {
	candidates, err := r.List(ctx, r.unused(user))
	if err != nil {
		return false, err
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, c := range candidates {
		if bcrypt.CompareHashAndPassword([]byte(c.CodeHash), []byte(code)) != nil {
			continue
		}
		at := r.now().UTC()
		_, ok, err := r.Update(ctx, c.ID, func(c *BackupCode) error {
			if c.IsUsed {
				return generic.Invalid("backup code %d already used", c.ID)
			}
			c.IsUsed = true
			c.UsedAt = &at
			return nil
		})
		return ok, err
	}
	return false, nil
}

// Remaining counts the user's unused codes.
func (r *BackupCodes) Remaining(ctx context.Context, user UserID) (int, error) {
	return r.Count(ctx, r.unused(user))
}

func (r *BackupCodes) unused(user UserID) generic.Filter[BackupCode] {
	return func(c BackupCode) bool { return c.UserID == user && !c.IsUsed }
}

// newBackupCode returns a code like "K7XQ2-MP4RD".
func newBackupCode() (string, error) {
	buf := make([]byte, 10)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate backup code: %w", err)
	}
	var b strings.Builder
	for i, v := range buf {
		if i == 5 {
			b.WriteByte('-')
		}
		b.WriteByte(codeAlphabet[int(v)%len(codeAlphabet)])
	}
	return b.String(), nil
}

// =============================================================================
// TRUSTED DEVICES
// =============================================================================

// TrustedDevice lets a user skip the second factor on a known device until
// ExpiresAt.
type TrustedDevice struct {
	ID          TrustedDeviceID `json:"id"`
	UserID      UserID          `json:"user_id"`
	DeviceName  string          `json:"device_name"`
	Fingerprint string          `json:"fingerprint"`
	IPAddress   string          `json:"ip_address"`
	UserAgent   string          `json:"user_agent"`
	LastUsedAt  *time.Time      `json:"last_used_at"`
	ExpiresAt   time.Time       `json:"expires_at"`
	generic.Stamps
}

func (d TrustedDevice) Key() TrustedDeviceID     { return d.ID }
func (d *TrustedDevice) SetKey(k TrustedDeviceID) { d.ID = k }

func (d TrustedDevice) Clone() TrustedDevice {
	d.LastUsedAt = clonePtr(d.LastUsedAt)
	return d
}

var _ generic.Record[TrustedDeviceID] = (*TrustedDevice)(nil)

func validateTrustedDevice(d TrustedDevice) error {
	switch {
	case d.UserID <= 0:
		return generic.Invalid("user_id is required")
	case strings.TrimSpace(d.Fingerprint) == "":
		return generic.Invalid("fingerprint is required")
	case d.ExpiresAt.IsZero():
		return generic.Invalid("expires_at is required")
	}
	return nil
}

// TrustedDevices is the trusted_devices collection.
type TrustedDevices struct {
	*generic.Repository[TrustedDevice, TrustedDeviceID, *TrustedDevice]
}

func newTrustedDevices(s *generic.Store) *TrustedDevices {
	return &TrustedDevices{generic.NewRepository[TrustedDevice, TrustedDeviceID](s, CollectionTrustedDevices,
		generic.WithValidator(validateTrustedDevice),
	)}
}

// ForUser returns the user's devices, most recently added first.
func (r *TrustedDevices) ForUser(ctx context.Context, user UserID) ([]TrustedDevice, error) {
	return r.List(ctx, generic.Equal(func(d TrustedDevice) UserID { return d.UserID }, user))
}

// IsTrusted reports whether the user has an unexpired device with fingerprint.
func (r *TrustedDevices) IsTrusted(ctx context.Context, user UserID, fingerprint string, now time.Time) (bool, error) {
	n, err := r.Count(ctx, func(d TrustedDevice) bool {
		return d.UserID == user && d.Fingerprint == fingerprint && d.ExpiresAt.After(now)
	})
	return n > 0, err
}

// Revoke removes a device. False means there was no such device.
func (r *TrustedDevices) Revoke(ctx context.Context, id TrustedDeviceID) (bool, error) {
	return r.Delete(ctx, id)
}

// PruneExpired removes every device that expired at or before now, in one save.
func (r *TrustedDevices) PruneExpired(ctx context.Context, now time.Time) (int, error) {
	return r.DeleteWhere(ctx, func(d TrustedDevice) bool { return !d.ExpiresAt.After(now) })
}
