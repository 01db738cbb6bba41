// Package contracts holds the Twister contract ABI consumed by the submission client and
// the chain event source.
package contracts

import (
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// TwisterABI is the subset of the Twister contract the client calls.
const TwisterABI = `[
	{"type":"function","name":"deposit","stateMutability":"payable",
	 "inputs":[{"name":"_leaf","type":"bytes32"},{"name":"_proof","type":"bytes"}],"outputs":[]},
	{"type":"function","name":"withdraw","stateMutability":"nonpayable",
	 "inputs":[
		{"name":"_nullifier","type":"bytes32"},
		{"name":"_leaf","type":"bytes32"},
		{"name":"_merkleRoot","type":"bytes32"},
		{"name":"_receiver","type":"address"},
		{"name":"_relayer","type":"address"},
		{"name":"_amount","type":"uint256"},
		{"name":"_proof","type":"bytes"},
		{"name":"_auxData","type":"bytes"}],"outputs":[]},
	{"type":"function","name":"commitments","stateMutability":"view",
	 "inputs":[{"name":"","type":"bytes32"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"getLastRoot","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"bytes32"}]},
	{"type":"event","name":"AddLeaf","anonymous":false,
	 "inputs":[
		{"name":"index","type":"uint256","indexed":false},
		{"name":"commitment","type":"bytes32","indexed":false},
		{"name":"root","type":"bytes32","indexed":false}]}
]`

const AddLeafEvent = "AddLeaf"

var (
	parsedOnce sync.Once
	parsedABI  abi.ABI
	parseErr   error
)

// ParsedTwisterABI parses TwisterABI once.
func ParsedTwisterABI() (abi.ABI, error) {
	parsedOnce.Do(func() {
		parsedABI, parseErr = abi.JSON(strings.NewReader(TwisterABI))
	})
	return parsedABI, parseErr
}

// AddLeaf is the decoded AddLeaf event.
type AddLeaf struct {
	Index      *big.Int
	Commitment [32]byte
	Root       [32]byte
}

// AddLeafTopic is the event signature hash.
func AddLeafTopic() (common.Hash, error) {
	parsed, err := ParsedTwisterABI()
	if err != nil {
		return common.Hash{}, err
	}
	return parsed.Events[AddLeafEvent].ID, nil
}

// DecodeAddLeaf unpacks an AddLeaf log.
func DecodeAddLeaf(log types.Log) (*AddLeaf, error) {
	parsed, err := ParsedTwisterABI()
	if err != nil {
		return nil, err
	}
	event := parsed.Events[AddLeafEvent]
	if len(log.Topics) == 0 || log.Topics[0] != event.ID {
		return nil, fmt.Errorf("log %s:%d is not an AddLeaf event", log.TxHash.Hex(), log.Index)
	}
	var out AddLeaf
	if err := parsed.UnpackIntoInterface(&out, AddLeafEvent, log.Data); err != nil {
		return nil, fmt.Errorf("failed to unpack AddLeaf: %w", err)
	}
	return &out, nil
}

// EncodeAddLeafData packs event data; used by fixtures that simulate the contract.
func EncodeAddLeafData(index *big.Int, commitment, root [32]byte) ([]byte, error) {
	parsed, err := ParsedTwisterABI()
	if err != nil {
		return nil, err
	}
	return parsed.Events[AddLeafEvent].Inputs.NonIndexed().Pack(index, commitment, root)
}
