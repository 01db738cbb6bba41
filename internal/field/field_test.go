package field

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twister-backend/internal/types"
)

func TestReduceStaysBelowModulus(t *testing.T) {
	p := Modulus()
	max256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

	cases := []*big.Int{
		big.NewInt(0),
		big.NewInt(1),
		new(big.Int).Sub(p, big.NewInt(1)),
		new(big.Int).Set(p),
		new(big.Int).Add(p, big.NewInt(7)),
		new(big.Int).Mul(p, big.NewInt(3)),
		max256,
	}
	for _, x := range cases {
		r := Reduce(x)
		assert.True(t, r.Big().Cmp(p) < 0, "reduce(%s) not below modulus", x)
		assert.Equal(t, new(big.Int).Mod(x, p).String(), r.Big().String(), "reduce(%s)", x)
		assert.Equal(t, r, Reduce(r.Big()), "reduce must be idempotent for %s", x)
	}
}

func TestReduceRejectsNegativeInput(t *testing.T) {
	assert.Panics(t, func() { Reduce(big.NewInt(-5)) })
	assert.Panics(t, func() { Reduce(nil) })
	assert.NotPanics(t, func() { Reduce(big.NewInt(0)) })
}

func TestNewElementRejectsNonCanonical(t *testing.T) {
	_, err := NewElement(Modulus())
	require.ErrorIs(t, err, types.ErrInputInvalid)

	_, err = NewElement(big.NewInt(-1))
	require.ErrorIs(t, err, types.ErrInputInvalid)

	e, err := NewElement(big.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, "0x0000000000000000000000000000000000000000000000000000000000000064", e.Hex())
}

func TestParseHexCanonicalizes(t *testing.T) {
	short, err := ParseHex("0x64")
	require.NoError(t, err)
	padded, err := ParseHex("0000000000000000000000000000000000000000000000000000000000000064")
	require.NoError(t, err)
	assert.Equal(t, short, padded)
	assert.Len(t, short.Hex(), 66)

	zero, err := ParseHex("0")
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	_, err = ParseHex("0xzz")
	assert.ErrorIs(t, err, types.ErrInputInvalid)

	_, err = ParseHex("0x" + Modulus().Text(16))
	assert.ErrorIs(t, err, types.ErrInputInvalid)
}

func TestElementJSON(t *testing.T) {
	e := FromUint64(1)
	data, err := json.Marshal(map[string]Element{"v": e})
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":"0x0000000000000000000000000000000000000000000000000000000000000001"}`, string(data))

	var back map[string]Element
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, e, back["v"])
}

func TestSecretFromPassphrase(t *testing.T) {
	a, err := SecretFromPassphrase("SecretPassword")
	require.NoError(t, err)
	b, err := SecretFromPassphrase("secretpassword")
	require.NoError(t, err)
	assert.Equal(t, a, b, "passphrase is case-insensitive")
	assert.True(t, a.Big().Cmp(Modulus()) < 0)

	c, err := SecretFromPassphrase("another passphrase")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	_, err = SecretFromPassphrase("")
	assert.ErrorIs(t, err, types.ErrInputInvalid)
}

func TestResolveSecret(t *testing.T) {
	fromPass, err := ResolveSecret("SecretPassword", "")
	require.NoError(t, err)
	want, _ := SecretFromPassphrase("SecretPassword")
	assert.Equal(t, want, fromPass)

	raw, err := ResolveSecret("", "0x01")
	require.NoError(t, err)
	assert.Equal(t, FromUint64(1), raw)

	_, err = ResolveSecret("SecretPassword", "0x01")
	assert.ErrorIs(t, err, types.ErrInputInvalid)
	_, err = ResolveSecret("", "0x0")
	assert.ErrorIs(t, err, types.ErrInputInvalid)
	_, err = ResolveSecret("", "")
	assert.ErrorIs(t, err, types.ErrInputInvalid)
}

func TestParseEther(t *testing.T) {
	cases := map[string]string{
		"0.1":                  "100000000000000000",
		"0.25":                 "250000000000000000",
		"1":                    "1000000000000000000",
		".5":                   "500000000000000000",
		"0.000000000000000001": "1",
		"0":                    "0",
	}
	for in, want := range cases {
		got, err := ParseEther(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got.String(), in)
		assert.Equal(t, got.String(), mustEther(t, FormatEther(got)).String(), "format round trip for %s", in)
	}

	for _, bad := range []string{"", "-1", "1.2.3", "abc", "+1", "0.0000000000000000001"} {
		_, err := ParseEther(bad)
		assert.ErrorIs(t, err, types.ErrInputInvalid, bad)
	}
}

func TestFormatEther(t *testing.T) {
	assert.Equal(t, "0.15", FormatEther(big.NewInt(150000000000000000)))
	assert.Equal(t, "2", FormatEther(new(big.Int).Mul(big.NewInt(2), big.NewInt(1e18))))
}

func mustEther(t *testing.T, s string) *big.Int {
	t.Helper()
	v, err := ParseEther(s)
	require.NoError(t, err)
	return v
}
