package commitment

import (
	"fmt"
	"math/big"

	"github.com/iden3/go-iden3-crypto/poseidon"

	"twister-backend/internal/field"
)

// Hasher is the protocol's arity-2 field hash. Implementations must be safe for concurrent use.
type Hasher interface {
	Hash(left, right field.Element) (field.Element, error)
}

// PoseidonHasher is the circomlib-compatible Poseidon over BN254, matching the deployed circuit.
type PoseidonHasher struct{}

// NewPoseidonHasher returns a stateless Poseidon hasher.
func NewPoseidonHasher() *PoseidonHasher {
	return &PoseidonHasher{}
}

// Hash computes Poseidon(left, right).
func (PoseidonHasher) Hash(left, right field.Element) (field.Element, error) {
	out, err := poseidon.Hash([]*big.Int{left.Big(), right.Big()})
	if err != nil {
		return field.Zero, fmt.Errorf("failed to compute poseidon hash: %w", err)
	}
	return field.NewElement(out)
}
