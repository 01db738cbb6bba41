package ledger

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"twister-backend/internal/contracts"
	"twister-backend/internal/field"
)

// defaultBlockRange keeps eth_getLogs requests under common RPC provider limits.
const defaultBlockRange = 5000

// LogReader is the part of ethclient.Client the chain source needs.
type LogReader interface {
	ethereum.LogFilterer
	BlockNumber(ctx context.Context) (uint64, error)
}

// ChainSource reads AddLeaf logs straight from the Twister contract.
type ChainSource struct {
	reader        LogReader
	address       common.Address
	startBlock    uint64
	blockRange    uint64
	confirmations uint64 // newest blocks held back so reorged logs are never recorded
	network       string
}

// NewChainSource creates a source. startBlock is the contract deployment block.
func NewChainSource(reader LogReader, network string, address common.Address, startBlock uint64) *ChainSource {
	return &ChainSource{
		reader:     reader,
		address:    address,
		startBlock: startBlock,
		blockRange: defaultBlockRange,
		network:    network,
	}
}

// WithBlockRange overrides the eth_getLogs window.
func (s *ChainSource) WithBlockRange(n uint64) *ChainSource {
	if n > 0 {
		s.blockRange = n
	}
	return s
}

// WithConfirmations only reads blocks at least n below the head.
func (s *ChainSource) WithConfirmations(n uint64) *ChainSource {
	s.confirmations = n
	return s
}

func (s *ChainSource) Name() string {
	return "chain:" + s.network
}

// FetchLeaves scans from the cursor's block (or the deployment block) to the chain head.
func (s *ChainSource) FetchLeaves(ctx context.Context, cursor Cursor) ([]LeafRecord, error) {
	topic, err := contracts.AddLeafTopic()
	if err != nil {
		return nil, fmt.Errorf("failed to load contract ABI: %w", err)
	}

	head, err := s.reader.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain head: %w", err)
	}
	if head < s.confirmations {
		return nil, nil
	}
	head -= s.confirmations

	from := s.startBlock
	if cursor.FromBlock > from {
		from = cursor.FromBlock
	}

	var records []LeafRecord
	for from <= head {
		to := from + s.blockRange - 1
		if to > head {
			to = head
		}
		logs, err := s.reader.FilterLogs(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(from),
			ToBlock:   new(big.Int).SetUint64(to),
			Addresses: []common.Address{s.address},
			Topics:    [][]common.Hash{{topic}},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to filter logs %d-%d: %w", from, to, err)
		}
		for _, lg := range logs {
			if lg.Removed {
				continue
			}
			ev, err := contracts.DecodeAddLeaf(lg)
			if err != nil {
				return nil, err
			}
			commitment, err := field.FromHash(common.Hash(ev.Commitment))
			if err != nil {
				return nil, fmt.Errorf("AddLeaf %s: %w", ev.Index, err)
			}
			root, err := field.FromHash(common.Hash(ev.Root))
			if err != nil {
				return nil, fmt.Errorf("AddLeaf %s root: %w", ev.Index, err)
			}
			if !ev.Index.IsUint64() {
				return nil, fmt.Errorf("AddLeaf index %s overflows", ev.Index)
			}
			records = append(records, LeafRecord{
				Index:           ev.Index.Uint64(),
				Commitment:      commitment,
				Root:            root,
				BlockNumber:     lg.BlockNumber,
				TransactionHash: lg.TxHash.Hex(),
				LogIndex:        lg.Index,
			})
		}
		from = to + 1
	}
	return records, nil
}
