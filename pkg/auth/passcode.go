package auth

import (
	"crypto/subtle"
	"errors"
)

var (
	ErrPasscodeNotSet  = errors.New("transaction passcode not configured")
	ErrInvalidPasscode = errors.New("invalid passcode")
)

// PasscodeGate verifies the shared transaction passcode that must accompany
// every payment and top-up. It is a second factor on mutations that move
// money, separate from the session token.
type PasscodeGate struct {
	code string
}

// NewPasscodeGate creates a gate for the configured passcode. An empty code
// means the gate is unconfigured and rejects everything.
func NewPasscodeGate(code string) *PasscodeGate {
	return &PasscodeGate{code: code}
}

// Verify checks a supplied passcode in constant time.
func (g *PasscodeGate) Verify(provided string) error {
	if g.code == "" {
		return ErrPasscodeNotSet
	}
	if provided == "" || subtle.ConstantTimeCompare([]byte(g.code), []byte(provided)) != 1 {
		return ErrInvalidPasscode
	}
	return nil
}
