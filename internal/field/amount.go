package field

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/params"

	"twister-backend/internal/types"
)

const etherDecimals = 18

// ParseEther converts a decimal ether amount ("0.1", "2", "0.000000000000000001") to wei.
func ParseEther(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: amount is required", types.ErrInputInvalid)
	}
	if strings.HasPrefix(s, "-") {
		return nil, fmt.Errorf("%w: negative amount %q", types.ErrInputInvalid, s)
	}
	whole, frac, _ := strings.Cut(s, ".")
	if len(frac) > etherDecimals {
		return nil, fmt.Errorf("%w: amount %q has more than %d decimals", types.ErrInputInvalid, s, etherDecimals)
	}
	if whole == "" {
		whole = "0"
	}
	digits := whole + frac + strings.Repeat("0", etherDecimals-len(frac))
	wei, ok := new(big.Int).SetString(digits, 10)
	if !ok || strings.ContainsAny(digits, "+-") {
		return nil, fmt.Errorf("%w: malformed amount %q", types.ErrInputInvalid, s)
	}
	return wei, nil
}

// FormatEther renders wei as a decimal ether string without trailing zeros.
func FormatEther(wei *big.Int) string {
	q, r := new(big.Int).QuoRem(wei, big.NewInt(params.Ether), new(big.Int))
	if r.Sign() == 0 {
		return q.String()
	}
	digits := r.String()
	frac := strings.Repeat("0", etherDecimals-len(digits)) + digits
	return q.String() + "." + strings.TrimRight(frac, "0")
}

// Amount validates a wei amount as a field element.
func Amount(wei *big.Int) (Element, error) {
	if wei == nil {
		return Zero, fmt.Errorf("%w: amount is required", types.ErrInputInvalid)
	}
	return NewElement(wei)
}
