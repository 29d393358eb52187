package totp

import (
	"encoding/base32"
	"errors"
	"fmt"
	"strings"

	"github.com/pquerna/otp"
)

const otpauthScheme = "otpauth://"

var (
	// ErrDecode is returned when a secret is not valid Base32 or decodes to nothing.
	ErrDecode = errors.New("secret is not valid base32")
	// ErrUnsupportedURI is returned for provisioning URIs this tool cannot use.
	ErrUnsupportedURI = errors.New("unsupported provisioning uri")
)

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// NormalizeSecret returns the canonical stored form of a Base32 secret:
// whitespace removed, uppercase, no padding. The result is validated.
func NormalizeSecret(raw string) (string, error) {
	s := strings.ToUpper(strings.Join(strings.Fields(raw), ""))
	s = strings.TrimRight(s, "=")
	if _, err := decode(s); err != nil {
		return "", err
	}
	return s, nil
}

// DecodeSecret decodes a Base32 secret to the raw shared key. Input is
// case-insensitive and padding is optional.
func DecodeSecret(secret string) ([]byte, error) {
	s := strings.TrimRight(strings.ToUpper(secret), "=")
	return decode(s)
}

func decode(s string) ([]byte, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrDecode)
	}
	key, err := b32.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("%w: empty key", ErrDecode)
	}
	return key, nil
}

// Provisioned is a secret read from user input, either a bare Base32 string
// or an otpauth:// provisioning URI.
type Provisioned struct {
	// Secret is the normalized Base32 secret.
	Secret string
	// AccountName is the account from the URI, empty for bare secrets.
	AccountName string
	// Issuer is the issuer from the URI, empty for bare secrets.
	Issuer string
	// FromURI reports whether Params came from a provisioning URI.
	FromURI bool
	// Params are the generation parameters the URI asks for.
	Params Params
}

// ParseSecret accepts a Base32 secret or an otpauth://totp/ URI.
func ParseSecret(raw string) (Provisioned, error) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(strings.ToLower(trimmed), otpauthScheme) {
		s, err := NormalizeSecret(trimmed)
		if err != nil {
			return Provisioned{}, err
		}
		return Provisioned{Secret: s, Params: DefaultParams()}, nil
	}

	key, err := otp.NewKeyFromURL(trimmed)
	if err != nil {
		return Provisioned{}, fmt.Errorf("%w: %v", ErrUnsupportedURI, err)
	}
	if key.Type() != "totp" {
		return Provisioned{}, fmt.Errorf("%w: type %q", ErrUnsupportedURI, key.Type())
	}

	alg, err := fromOTPAlgorithm(key.Algorithm())
	if err != nil {
		return Provisioned{}, err
	}

	s, err := NormalizeSecret(key.Secret())
	if err != nil {
		return Provisioned{}, err
	}

	return Provisioned{
		Secret:      s,
		AccountName: key.AccountName(),
		Issuer:      key.Issuer(),
		FromURI:     true,
		Params: Params{
			Step:      key.Period(),
			Digits:    key.Digits().Length(),
			Algorithm: alg,
		},
	}, nil
}

func fromOTPAlgorithm(a otp.Algorithm) (Algorithm, error) {
	switch a {
	case otp.AlgorithmSHA1:
		return SHA1, nil
	case otp.AlgorithmSHA256:
		return SHA256, nil
	case otp.AlgorithmSHA512:
		return SHA512, nil
	default:
		return 0, fmt.Errorf("%w: algorithm %s", ErrUnsupportedURI, a)
	}
}
