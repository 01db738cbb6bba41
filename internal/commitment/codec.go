// Package commitment derives commitments and nullifiers from a secret and an amount.
//
// A commitment (leaf) is H(secret, amount) and the nullifier that spends it is
// H(amount, secret). Both are returned as canonical field elements so every
// consumer sees the same 32-byte representation.
package commitment

import (
	"fmt"
	"math/big"

	"twister-backend/internal/field"
)

// Codec derives leaves and nullifiers with an injected hasher.
type Codec struct {
	hasher Hasher
}

// NewCodec creates a codec. hasher must not be nil.
func NewCodec(hasher Hasher) *Codec {
	return &Codec{hasher: hasher}
}

// Hasher exposes the codec's hash so the accumulator can share it.
func (c *Codec) Hasher() Hasher {
	return c.hasher
}

// Leaf returns H(secret, amount).
func (c *Codec) Leaf(secret, amount field.Element) (field.Element, error) {
	leaf, err := c.hasher.Hash(secret, amount)
	if err != nil {
		return field.Zero, fmt.Errorf("failed to derive leaf: %w", err)
	}
	return leaf, nil
}

// Nullifier returns H(amount, secret).
func (c *Codec) Nullifier(secret, amount field.Element) (field.Element, error) {
	nullifier, err := c.hasher.Hash(amount, secret)
	if err != nil {
		return field.Zero, fmt.Errorf("failed to derive nullifier: %w", err)
	}
	return nullifier, nil
}

// Note is a leaf together with the nullifier that spends it.
type Note struct {
	Amount    *big.Int      `json:"-"`
	Leaf      field.Element `json:"leaf"`
	Nullifier field.Element `json:"nullifier"`
}

// Note derives both values for (secret, amount in wei).
func (c *Codec) Note(secret field.Element, amount *big.Int) (*Note, error) {
	a, err := field.Amount(amount)
	if err != nil {
		return nil, err
	}
	leaf, err := c.Leaf(secret, a)
	if err != nil {
		return nil, err
	}
	nullifier, err := c.Nullifier(secret, a)
	if err != nil {
		return nil, err
	}
	return &Note{Amount: new(big.Int).Set(amount), Leaf: leaf, Nullifier: nullifier}, nil
}
