package user

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"
)

var (
	nowFunc     = time.Now // mockable
	randIntFunc = rand.Int // mockable

	// errors; never surfaced verbatim to callers (see Service.ResetPassword)
	errInvalidCode = errors.New("invalid reset code")
	errCodeExpired = errors.New("reset code expired")
	errNoCode      = errors.New("no reset code set")
)

const resetCodeLen = 6

// makeResetCode generates a 6-digit numeric one-time code. Leading zeros are kept.
func makeResetCode() (string, error) {
	max := big.NewInt(1_000_000)
	n, err := randIntFunc(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n), nil
}

// hashResetCode hashes a code for storage. This is a plain one-way content hash,
// deliberately not the (slow, salted) password hasher: codes are 6 digits and
// short-lived, and the stored hash must be comparable without the plaintext salt.
func hashResetCode(code string) []byte {
	sum := sha256.Sum256([]byte(code))
	return sum[:]
}

// SetResetCode stores the hash of a one-time code on the user with the given validity window.
func (u *User) SetResetCode(code string, timeout time.Duration) {
	u.ResetCodeHash = hashResetCode(code)
	u.ResetCodeExp = nowFunc().Add(timeout).UTC()
}

// ClearResetCode removes any stored one-time code; called once a reset succeeds.
func (u *User) ClearResetCode() {
	u.ResetCodeHash = nil
	u.ResetCodeExp = time.Time{}
}

// CheckResetCode verifies a presented code against the stored hash and expiry.
// It is side-effect free; the code is only consumed by Service.ResetPassword.
func (u *User) CheckResetCode(code string) error {
	if len(u.ResetCodeHash) == 0 {
		return errNoCode
	}
	if subtle.ConstantTimeCompare(hashResetCode(code), u.ResetCodeHash) == 0 {
		return errInvalidCode
	}
	if nowFunc().After(u.ResetCodeExp) {
		return errCodeExpired
	}
	return nil
}
