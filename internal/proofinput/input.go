// Package proofinput assembles the record handed to the prover and its wire encodings.
package proofinput

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pelletier/go-toml/v2"

	"twister-backend/internal/field"
	"twister-backend/internal/types"
)

// Address is a receiver or relayer. The zero address is encoded as "0".
type Address common.Address

// ParseAddress accepts a 0x address, or "" / "0" for none.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return Address{}, nil
	}
	if !common.IsHexAddress(s) {
		return Address{}, fmt.Errorf("%w: malformed address %q", types.ErrInputInvalid, s)
	}
	return Address(common.HexToAddress(s)), nil
}

func (a Address) Common() common.Address {
	return common.Address(a)
}

func (a Address) IsZero() bool {
	return a == Address{}
}

func (a Address) String() string {
	if a.IsZero() {
		return "0"
	}
	return common.Address(a).Hex()
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ProofInput is the exact record the circuit consumes. Field names are part of the wire format.
type ProofInput struct {
	Secret     field.Element   `json:"secret" toml:"secret"`
	OldAmount  field.Element   `json:"oldAmount" toml:"oldAmount"`
	Witnesses  []field.Element `json:"witnesses" toml:"witnesses"`
	LeafIndex  uint64          `json:"leafIndex" toml:"leafIndex"`
	Leaf       field.Element   `json:"leaf" toml:"leaf"`
	MerkleRoot field.Element   `json:"merkleRoot" toml:"merkleRoot"`
	Nullifier  field.Element   `json:"nullifier" toml:"nullifier"`
	Amount     field.Element   `json:"amount" toml:"amount"`
	Receiver   Address         `json:"receiver" toml:"receiver"`
	Relayer    Address         `json:"relayer" toml:"relayer"`
	Deposit    uint8           `json:"deposit" toml:"deposit"`
}

// IsDeposit reports whether the input proves a fresh deposit rather than tree membership.
func (p *ProofInput) IsDeposit() bool {
	return p.Deposit == 1
}

// Form encodes the input for URL-encoded prover relays. Witnesses repeat in path order.
func (p *ProofInput) Form() url.Values {
	v := url.Values{}
	v.Set("secret", p.Secret.Hex())
	v.Set("oldAmount", p.OldAmount.Hex())
	for _, w := range p.Witnesses {
		v.Add("witnesses", w.Hex())
	}
	v.Set("leafIndex", strconv.FormatUint(p.LeafIndex, 10))
	v.Set("leaf", p.Leaf.Hex())
	v.Set("merkleRoot", p.MerkleRoot.Hex())
	v.Set("nullifier", p.Nullifier.Hex())
	v.Set("amount", p.Amount.Hex())
	v.Set("receiver", p.Receiver.String())
	v.Set("relayer", p.Relayer.String())
	v.Set("deposit", strconv.Itoa(int(p.Deposit)))
	return v
}

// ProverTOML renders the input as a nargo Prover.toml.
func (p *ProofInput) ProverTOML() ([]byte, error) {
	data, err := toml.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode Prover.toml: %w", err)
	}
	return data, nil
}

// Redacted returns a copy safe to log or persist.
func (p *ProofInput) Redacted() ProofInput {
	c := *p
	c.Secret = field.Zero
	c.Witnesses = append([]field.Element(nil), p.Witnesses...)
	return c
}
