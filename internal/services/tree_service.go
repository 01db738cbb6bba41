package services

import (
	"context"
	"fmt"

	"twister-backend/internal/commitment"
	"twister-backend/internal/dto"
	"twister-backend/internal/field"
	"twister-backend/internal/ledger"
	"twister-backend/internal/merkle"
	"twister-backend/internal/types"
)

// RootReader reads the contract's latest accepted root.
type RootReader interface {
	LastRoot(ctx context.Context) (field.Element, error)
}

// LedgerReader serves snapshots of the stored leaves.
type LedgerReader interface {
	Snapshot(ctx context.Context) (*ledger.Snapshot, error)
	Capacity() int
}

// TreeService answers read-only questions about the accumulator: root, witnesses, notes.
type TreeService struct {
	ledger LedgerReader
	codec  *commitment.Codec
	tree   *merkle.Builder
	roots  RootReader
}

// NewTreeService roots may be nil when no contract is configured.
func NewTreeService(ledger LedgerReader, codec *commitment.Codec, tree *merkle.Builder, roots RootReader) *TreeService {
	return &TreeService{ledger: ledger, codec: codec, tree: tree, roots: roots}
}

func (s *TreeService) build(ctx context.Context) (*ledger.Snapshot, *merkle.Tree, error) {
	snapshot, err := s.ledger.Snapshot(ctx)
	if err != nil {
		return nil, nil, err
	}
	tree, err := s.tree.Build(snapshot.Commitments())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build merkle tree: %w", err)
	}
	return snapshot, tree, nil
}

// Root rebuilds the local tree and, when possible, compares it with the contract root.
func (s *TreeService) Root(ctx context.Context) (*dto.RootResponse, error) {
	snapshot, tree, err := s.build(ctx)
	if err != nil {
		return nil, err
	}
	resp := &dto.RootResponse{
		Root:      tree.Root().Hex(),
		LeafCount: snapshot.Len(),
		Capacity:  s.ledger.Capacity(),
	}
	if s.roots != nil {
		contractRoot, err := s.roots.LastRoot(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read contract root: %w", err)
		}
		inSync := contractRoot == tree.Root()
		resp.ContractRoot = contractRoot.Hex()
		resp.InSync = &inSync
	}
	return resp, nil
}

// Witness returns the authentication path of a recorded commitment.
func (s *TreeService) Witness(ctx context.Context, commitmentHex string) (*dto.WitnessResponse, error) {
	leaf, err := field.ParseHex(commitmentHex)
	if err != nil {
		return nil, err
	}
	snapshot, tree, err := s.build(ctx)
	if err != nil {
		return nil, err
	}
	record, ok := snapshot.FindByCommitment(leaf)
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrNoSuchCommitment, leaf.Hex())
	}
	witness, err := tree.Witness(int(record.Index))
	if err != nil {
		return nil, err
	}
	out := make([]string, len(witness))
	for i, w := range witness {
		out[i] = w.Hex()
	}
	return &dto.WitnessResponse{
		Commitment: leaf.Hex(),
		LeafIndex:  record.Index,
		Root:       tree.Root().Hex(),
		Witnesses:  out,
	}, nil
}

// Leaves returns a page of records and the total count.
func (s *TreeService) Leaves(ctx context.Context, offset, limit int) ([]ledger.LeafRecord, int, error) {
	snapshot, err := s.ledger.Snapshot(ctx)
	if err != nil {
		return nil, 0, err
	}
	records := snapshot.Records()
	total := len(records)
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return records[offset:end], total, nil
}

// Note derives the leaf and nullifier of (secret, amount) and reports whether the leaf
// is recorded. Nothing is sent to the chain.
func (s *TreeService) Note(ctx context.Context, req types.NoteRequest) (*dto.NoteResponse, error) {
	secret, err := field.ResolveSecret(req.Passphrase, req.RawSecret)
	if err != nil {
		return nil, err
	}
	amount, err := field.ParseEther(req.Amount)
	if err != nil {
		return nil, err
	}
	note, err := s.codec.Note(secret, amount)
	if err != nil {
		return nil, err
	}
	resp := &dto.NoteResponse{
		Amount:    field.FormatEther(amount),
		AmountWei: weiString(amount),
		Leaf:      note.Leaf.Hex(),
		Nullifier: note.Nullifier.Hex(),
	}

	snapshot, err := s.ledger.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if record, ok := snapshot.FindByCommitment(note.Leaf); ok {
		index := int64(record.Index)
		resp.Recorded = true
		resp.LeafIndex = &index
	}
	return resp, nil
}
