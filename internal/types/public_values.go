package types

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Proof is the prover's opaque output. PublicInputs are hex field elements in circuit order.
type Proof struct {
	Bytes        []byte   `json:"-"`
	PublicInputs []string `json:"public_inputs,omitempty"`
}

// Hex returns the proof bytes 0x-prefixed.
func (p *Proof) Hex() string {
	return hexutil.Encode(p.Bytes)
}

func (p *Proof) IsEmpty() bool {
	return p == nil || len(p.Bytes) == 0
}

// ParseProofHex decodes a prover's hex proof; the 0x prefix is optional.
func ParseProofHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid proof hex: %w", err)
	}
	return b, nil
}
