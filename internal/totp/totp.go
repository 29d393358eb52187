// Package totp implements HMAC-based (RFC 4226) and time-based (RFC 6238)
// one-time passwords.
//
// The engine is pure: codes depend only on the key, the point in time and the
// Params passed in, so callers and tests can use non-default parameters
// without touching shared state.
package totp

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"strings"
	"time"
)

// Algorithm selects the HMAC hash function.
type Algorithm int

const (
	// SHA1 is the interoperable default used by authenticator apps.
	SHA1 Algorithm = iota
	// SHA256 is HMAC-SHA-256.
	SHA256
	// SHA512 is HMAC-SHA-512.
	SHA512
)

const (
	// DefaultStep is the length of a TOTP window in seconds.
	DefaultStep = 30
	// DefaultDigits is the length of a generated code.
	DefaultDigits = 6
	// MinDigits and MaxDigits bound the supported code length.
	MinDigits = 4
	MaxDigits = 10
)

var (
	// ErrEmptyKey is returned when the shared key has no bytes.
	ErrEmptyKey = errors.New("empty key")
	// ErrInvalidTimestamp is returned for points in time before the epoch.
	ErrInvalidTimestamp = errors.New("timestamp before epoch")
	// ErrInvalidParams is returned for an unusable step, digit count or algorithm.
	ErrInvalidParams = errors.New("invalid totp parameters")
)

// String returns the RFC 6238 name of the algorithm.
func (a Algorithm) String() string {
	switch a {
	case SHA1:
		return "SHA1"
	case SHA256:
		return "SHA256"
	case SHA512:
		return "SHA512"
	default:
		return fmt.Sprintf("Algorithm(%d)", int(a))
	}
}

func (a Algorithm) hash() (func() hash.Hash, bool) {
	switch a {
	case SHA1:
		return sha1.New, true
	case SHA256:
		return sha256.New, true
	case SHA512:
		return sha512.New, true
	default:
		return nil, false
	}
}

// ParseAlgorithm maps a name such as "sha1" or "SHA-256" to an Algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(name)), "-", "") {
	case "SHA1":
		return SHA1, nil
	case "SHA256":
		return SHA256, nil
	case "SHA512":
		return SHA512, nil
	default:
		return 0, fmt.Errorf("%w: unknown algorithm %q", ErrInvalidParams, name)
	}
}

// Params configures code generation.
type Params struct {
	// Step is the window length in seconds.
	Step uint64
	// Digits is the number of decimal digits in a code.
	Digits int
	// Algorithm is the HMAC hash function.
	Algorithm Algorithm
	// Epoch is T0, the Unix time counting starts from.
	Epoch int64
}

// DefaultParams returns the parameters every common authenticator uses:
// 30 second windows, 6 digits, HMAC-SHA1 and the Unix epoch.
func DefaultParams() Params {
	return Params{
		Step:      DefaultStep,
		Digits:    DefaultDigits,
		Algorithm: SHA1,
	}
}

// Validate reports whether p can be used to compute codes.
func (p Params) Validate() error {
	if p.Step == 0 {
		return fmt.Errorf("%w: step must be positive", ErrInvalidParams)
	}
	if p.Digits < MinDigits || p.Digits > MaxDigits {
		return fmt.Errorf("%w: digits must be between %d and %d, got %d", ErrInvalidParams, MinDigits, MaxDigits, p.Digits)
	}
	if _, ok := p.Algorithm.hash(); !ok {
		return fmt.Errorf("%w: unsupported algorithm %s", ErrInvalidParams, p.Algorithm)
	}
	return nil
}

// HOTP computes the RFC 4226 code for key at counter.
func HOTP(key []byte, counter uint64, digits int, alg Algorithm) (string, error) {
	if len(key) == 0 {
		return "", ErrEmptyKey
	}
	if digits < MinDigits || digits > MaxDigits {
		return "", fmt.Errorf("%w: digits must be between %d and %d, got %d", ErrInvalidParams, MinDigits, MaxDigits, digits)
	}
	newHash, ok := alg.hash()
	if !ok {
		return "", fmt.Errorf("%w: unsupported algorithm %s", ErrInvalidParams, alg)
	}

	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(newHash, key)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	// Dynamic truncation: the low nibble of the last byte picks a 4 byte window.
	offset := sum[len(sum)-1] & 0x0f
	value := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	code := uint64(value) % pow10(digits)
	return fmt.Sprintf("%0*d", digits, code), nil
}

// ComputeCode computes the RFC 6238 code for key at timestamp (Unix seconds).
func ComputeCode(key []byte, timestamp int64, p Params) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	if len(key) == 0 {
		return "", ErrEmptyKey
	}
	if timestamp < p.Epoch {
		return "", fmt.Errorf("%w: %d < %d", ErrInvalidTimestamp, timestamp, p.Epoch)
	}
	counter := uint64(timestamp-p.Epoch) / p.Step
	return HOTP(key, counter, p.Digits, p.Algorithm)
}

// Code decodes a stored Base32 secret and computes its code at the given time.
func Code(secret string, at time.Time, p Params) (string, error) {
	key, err := DecodeSecret(secret)
	if err != nil {
		return "", err
	}
	return ComputeCode(key, at.Unix(), p)
}

// Remaining returns how long the code for the window containing at stays valid.
func Remaining(at time.Time, p Params) time.Duration {
	if p.Step == 0 {
		return 0
	}
	step := int64(p.Step)
	elapsed := (at.Unix() - p.Epoch) % step
	if elapsed < 0 {
		elapsed += step
	}
	return time.Duration(step-elapsed) * time.Second
}

func pow10(n int) uint64 {
	v := uint64(1)
	for range n {
		v *= 10
	}
	return v
}
