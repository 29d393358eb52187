package totp

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"testing"
	"time"

	"github.com/pquerna/otp"
	pqtotp "github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	rfcKeySHA1   = []byte("12345678901234567890")
	rfcKeySHA256 = []byte("12345678901234567890123456789012")
	rfcKeySHA512 = []byte("1234567890123456789012345678901234567890123456789012345678901234")
)

func TestHOTP_RFC4226Vectors(t *testing.T) {
	want := []string{
		"755224", "287082", "359152", "969429", "338314",
		"254676", "287922", "162583", "399871", "520489",
	}
	for counter, code := range want {
		got, err := HOTP(rfcKeySHA1, uint64(counter), 6, SHA1)
		require.NoError(t, err)
		assert.Equal(t, code, got, "counter %d", counter)
	}
}

func TestComputeCode_RFC6238Vectors(t *testing.T) {
	cases := []struct {
		ts   int64
		alg  Algorithm
		key  []byte
		want string
	}{
		{59, SHA1, rfcKeySHA1, "94287082"},
		{59, SHA256, rfcKeySHA256, "46119246"},
		{59, SHA512, rfcKeySHA512, "90693936"},
		{1111111109, SHA1, rfcKeySHA1, "07081804"},
		{1111111109, SHA256, rfcKeySHA256, "68084774"},
		{1111111109, SHA512, rfcKeySHA512, "25091201"},
		{1111111111, SHA1, rfcKeySHA1, "14050471"},
		{1111111111, SHA256, rfcKeySHA256, "67062674"},
		{1111111111, SHA512, rfcKeySHA512, "99943326"},
		{1234567890, SHA1, rfcKeySHA1, "89005924"},
		{1234567890, SHA256, rfcKeySHA256, "91819424"},
		{1234567890, SHA512, rfcKeySHA512, "93441116"},
		{2000000000, SHA1, rfcKeySHA1, "69279037"},
		{2000000000, SHA256, rfcKeySHA256, "90698825"},
		{2000000000, SHA512, rfcKeySHA512, "38618901"},
		{20000000000, SHA1, rfcKeySHA1, "65353130"},
		{20000000000, SHA256, rfcKeySHA256, "77737706"},
		{20000000000, SHA512, rfcKeySHA512, "47863826"},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s/%d", tc.alg, tc.ts), func(t *testing.T) {
			p := Params{Step: 30, Digits: 8, Algorithm: tc.alg}
			got, err := ComputeCode(tc.key, tc.ts, p)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCode_Base32RFCSecret(t *testing.T) {
	secret := base32.StdEncoding.EncodeToString(rfcKeySHA1)
	require.Equal(t, "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ", secret)

	p := DefaultParams()
	p.Digits = 8
	got, err := Code(secret, time.Unix(59, 0), p)
	require.NoError(t, err)
	assert.Equal(t, "94287082", got)

	// lowercase and padded input decode to the same key
	got, err = Code("gezdgnbvgy3tqojqgezdgnbvgy3tqojq", time.Unix(59, 0), p)
	require.NoError(t, err)
	assert.Equal(t, "94287082", got)
}

func TestComputeCode_Deterministic(t *testing.T) {
	key := []byte("short")
	p := DefaultParams()
	first, err := ComputeCode(key, 1700000000, p)
	require.NoError(t, err)
	for range 5 {
		again, err := ComputeCode(key, 1700000000, p)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestComputeCode_SameWindow(t *testing.T) {
	p := DefaultParams()
	start := int64(1111111110) // window boundary: divisible by 30

	first, err := ComputeCode(rfcKeySHA1, start, p)
	require.NoError(t, err)
	last, err := ComputeCode(rfcKeySHA1, start+29, p)
	require.NoError(t, err)
	next, err := ComputeCode(rfcKeySHA1, start+30, p)
	require.NoError(t, err)

	assert.Equal(t, first, last)
	assert.NotEqual(t, first, next)
}

func TestComputeCode_LengthAndPadding(t *testing.T) {
	for digits := MinDigits; digits <= MaxDigits; digits++ {
		p := Params{Step: 30, Digits: digits, Algorithm: SHA1}
		for ts := int64(0); ts < 30*50; ts += 30 {
			code, err := ComputeCode(rfcKeySHA1, ts, p)
			require.NoError(t, err)
			require.Len(t, code, digits)
			for _, r := range code {
				require.True(t, r >= '0' && r <= '9', "non-digit in %q", code)
			}
		}
	}

	// counter 1111111109/30 for the 8 digit SHA1 vector starts with a zero.
	code, err := ComputeCode(rfcKeySHA1, 1111111109, Params{Step: 30, Digits: 8})
	require.NoError(t, err)
	assert.Equal(t, "07081804", code)
}

func TestComputeCode_Epoch(t *testing.T) {
	p := Params{Step: 30, Digits: 8, Algorithm: SHA1, Epoch: 1000}
	got, err := ComputeCode(rfcKeySHA1, 1059, p)
	require.NoError(t, err)
	assert.Equal(t, "94287082", got)

	_, err = ComputeCode(rfcKeySHA1, 999, p)
	assert.ErrorIs(t, err, ErrInvalidTimestamp)
}

func TestComputeCode_Errors(t *testing.T) {
	_, err := ComputeCode(nil, 59, DefaultParams())
	assert.ErrorIs(t, err, ErrEmptyKey)

	_, err = ComputeCode(rfcKeySHA1, -1, DefaultParams())
	assert.ErrorIs(t, err, ErrInvalidTimestamp)

	bad := []Params{
		{Step: 0, Digits: 6},
		{Step: 30, Digits: 3},
		{Step: 30, Digits: 11},
		{Step: 30, Digits: 6, Algorithm: Algorithm(42)},
	}
	for _, p := range bad {
		_, err := ComputeCode(rfcKeySHA1, 59, p)
		assert.ErrorIs(t, err, ErrInvalidParams, "%+v", p)
	}
}

func TestComputeCode_MatchesPquerna(t *testing.T) {
	algs := map[Algorithm]otp.Algorithm{
		SHA1:   otp.AlgorithmSHA1,
		SHA256: otp.AlgorithmSHA256,
		SHA512: otp.AlgorithmSHA512,
	}
	for alg, pqAlg := range algs {
		for i := range 20 {
			raw := make([]byte, 10+i)
			_, err := rand.Read(raw)
			require.NoError(t, err)
			secret := base32.StdEncoding.EncodeToString(raw)
			at := time.Unix(int64(1_600_000_000+i*7919), 0)

			want, err := pqtotp.GenerateCodeCustom(secret, at, pqtotp.ValidateOpts{
				Period:    30,
				Digits:    otp.DigitsSix,
				Algorithm: pqAlg,
			})
			require.NoError(t, err)

			got, err := Code(secret, at, Params{Step: 30, Digits: 6, Algorithm: alg})
			require.NoError(t, err)
			assert.Equal(t, want, got, "alg %s secret %s", alg, secret)
		}
	}
}

func TestRemaining(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, 30*time.Second, Remaining(time.Unix(60, 0), p))
	assert.Equal(t, 1*time.Second, Remaining(time.Unix(89, 0), p))
	assert.Equal(t, 15*time.Second, Remaining(time.Unix(75, 0), p))
}

func TestParseAlgorithm(t *testing.T) {
	for in, want := range map[string]Algorithm{
		"sha1":    SHA1,
		"SHA-256": SHA256,
		" SHA512": SHA512,
	} {
		got, err := ParseAlgorithm(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseAlgorithm("md5")
	assert.ErrorIs(t, err, ErrInvalidParams)
}
