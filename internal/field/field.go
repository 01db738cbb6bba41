// Package field holds the BN254 scalar field representation shared by the hash,
// the Merkle accumulator and the prover wire format.
package field

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/crypto/sha3"

	"twister-backend/internal/types"
)

// Size is the byte width of a serialized element.
const Size = 32

// Element is a canonical field element, always strictly below the modulus.
// The zero value is the field's zero.
type Element [Size]byte

// Zero is the padding element of the accumulator and the neutral placeholder of deposit inputs.
var Zero Element

var modulus = fr.Modulus()

// Modulus returns a copy of the BN254 scalar field order.
func Modulus() *big.Int {
	return new(big.Int).Set(modulus)
}

// Reduce maps a non-negative integer into the field by repeated subtraction of the modulus.
// A 256-bit input needs at most six iterations. x must be non-nil and non-negative;
// untrusted values go through NewElement instead.
func Reduce(x *big.Int) Element {
	if x == nil || x.Sign() < 0 {
		panic("field: Reduce of nil or negative integer")
	}
	v := new(big.Int).Set(x)
	for v.Cmp(modulus) >= 0 {
		v.Sub(v, modulus)
	}
	var e Element
	v.FillBytes(e[:])
	return e
}

// ReduceBytes interprets b as a big-endian integer and reduces it.
func ReduceBytes(b []byte) Element {
	return Reduce(new(big.Int).SetBytes(b))
}

// NewElement accepts x only if it is already canonical.
func NewElement(x *big.Int) (Element, error) {
	if x == nil {
		return Zero, fmt.Errorf("%w: nil field value", types.ErrInputInvalid)
	}
	if x.Sign() < 0 {
		return Zero, fmt.Errorf("%w: negative field value %s", types.ErrInputInvalid, x)
	}
	if x.Cmp(modulus) >= 0 {
		return Zero, fmt.Errorf("%w: value %s exceeds field modulus", types.ErrInputInvalid, x)
	}
	var e Element
	x.FillBytes(e[:])
	return e, nil
}

// FromUint64 builds an element from a small integer.
func FromUint64(v uint64) Element {
	return Reduce(new(big.Int).SetUint64(v))
}

// SecretFromPassphrase derives a secret as keccak256 of the lowercased passphrase, reduced into the field.
func SecretFromPassphrase(passphrase string) (Element, error) {
	if passphrase == "" {
		return Zero, fmt.Errorf("%w: secret passphrase is required", types.ErrInputInvalid)
	}
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(strings.ToLower(passphrase)))
	return ReduceBytes(h.Sum(nil)), nil
}

// ResolveSecret picks exactly one of passphrase or rawSecret. A raw secret must be a
// canonical non-zero field element.
func ResolveSecret(passphrase, rawSecret string) (Element, error) {
	switch {
	case passphrase != "" && rawSecret != "":
		return Zero, fmt.Errorf("%w: passphrase and raw secret are mutually exclusive", types.ErrInputInvalid)
	case rawSecret != "":
		e, err := ParseHex(rawSecret)
		if err != nil {
			return Zero, err
		}
		if e.IsZero() {
			return Zero, fmt.Errorf("%w: raw secret must be non-zero", types.ErrInputInvalid)
		}
		return e, nil
	default:
		return SecretFromPassphrase(passphrase)
	}
}

// ParseHex decodes a hex string of any width up to 32 bytes into a canonical element.
// Values at or above the modulus are rejected rather than reduced.
func ParseHex(s string) (Element, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return Zero, nil
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	if len(s) > 2+2*Size {
		return Zero, fmt.Errorf("%w: field element %q longer than 32 bytes", types.ErrInputInvalid, s)
	}
	v, ok := new(big.Int).SetString(s[2:], 16)
	if !ok {
		return Zero, fmt.Errorf("%w: malformed field element %q", types.ErrInputInvalid, s)
	}
	return NewElement(v)
}

// MustParseHex is ParseHex for constants.
func MustParseHex(s string) Element {
	e, err := ParseHex(s)
	if err != nil {
		panic(err)
	}
	return e
}

// Big returns the element as an integer.
func (e Element) Big() *big.Int {
	return new(big.Int).SetBytes(e[:])
}

// Hex returns the canonical form: 0x followed by 64 lowercase hex digits.
func (e Element) Hex() string {
	return hexutil.Encode(e[:])
}

// Hash converts the element to a go-ethereum bytes32 value.
func (e Element) Hash() common.Hash {
	return common.Hash(e)
}

// FromHash converts a bytes32 value, rejecting non-canonical input.
func FromHash(h common.Hash) (Element, error) {
	return NewElement(h.Big())
}

func (e Element) IsZero() bool {
	return e == Zero
}

func (e Element) String() string {
	return e.Hex()
}

func (e Element) MarshalText() ([]byte, error) {
	return []byte(e.Hex()), nil
}

func (e *Element) UnmarshalText(text []byte) error {
	parsed, err := ParseHex(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}
