package proofinput

import (
	"fmt"
	"math/big"

	"twister-backend/internal/commitment"
	"twister-backend/internal/field"
	"twister-backend/internal/ledger"
	"twister-backend/internal/merkle"
	"twister-backend/internal/types"
)

// Builder enforces the local preconditions the circuit would otherwise reject.
type Builder struct {
	codec *commitment.Codec
	tree  *merkle.Builder
}

func NewBuilder(codec *commitment.Codec, tree *merkle.Builder) *Builder {
	return &Builder{codec: codec, tree: tree}
}

// BuildDeposit proves leaf = H(secret, amount) with no tree membership.
func (b *Builder) BuildDeposit(secret field.Element, amount *big.Int) (*ProofInput, error) {
	if secret.IsZero() {
		return nil, fmt.Errorf("%w: secret is required", types.ErrInputInvalid)
	}
	a, err := positiveAmount(amount)
	if err != nil {
		return nil, err
	}
	leaf, err := b.codec.Leaf(secret, a)
	if err != nil {
		return nil, err
	}
	return &ProofInput{
		Secret:     secret,
		OldAmount:  a,
		Witnesses:  make([]field.Element, b.tree.Config().Depth),
		LeafIndex:  0,
		Leaf:       leaf,
		MerkleRoot: field.Zero,
		Nullifier:  field.Zero,
		Amount:     a,
		Deposit:    1,
	}, nil
}

// WithdrawalParams are the caller-supplied values of a withdrawal.
type WithdrawalParams struct {
	Secret    field.Element
	OldAmount *big.Int
	Amount    *big.Int
	Receiver  Address
	Relayer   Address
}

// Withdrawal is a built withdrawal input plus the values the coordinator reports.
type Withdrawal struct {
	Input     *ProofInput
	OldLeaf   field.Element
	Remainder *big.Int
}

// BuildWithdrawal consumes the (secret, oldAmount) leaf recorded in snapshot and
// re-deposits oldAmount-amount under a new leaf for the same secret.
func (b *Builder) BuildWithdrawal(p WithdrawalParams, snapshot *ledger.Snapshot) (*Withdrawal, error) {
	if p.Secret.IsZero() {
		return nil, fmt.Errorf("%w: secret is required", types.ErrInputInvalid)
	}
	if p.Receiver.IsZero() {
		return nil, fmt.Errorf("%w: receiver is required", types.ErrInputInvalid)
	}
	if snapshot == nil {
		return nil, fmt.Errorf("%w: ledger snapshot is required", types.ErrInputInvalid)
	}
	oldAmount, err := field.Amount(p.OldAmount)
	if err != nil {
		return nil, err
	}
	amount, err := positiveAmount(p.Amount)
	if err != nil {
		return nil, err
	}

	oldLeaf, err := b.codec.Leaf(p.Secret, oldAmount)
	if err != nil {
		return nil, err
	}
	record, ok := snapshot.FindByCommitment(oldLeaf)
	if !ok {
		return nil, fmt.Errorf("%w: leaf %s is not in the ledger (%d leaves)", types.ErrNoSuchCommitment, oldLeaf.Hex(), snapshot.Len())
	}

	if p.Amount.Cmp(p.OldAmount) > 0 {
		return nil, fmt.Errorf("%w: withdraw %s exceeds balance %s", types.ErrInsufficientBalance, p.Amount, p.OldAmount)
	}

	remainder := new(big.Int).Sub(p.OldAmount, p.Amount)
	remainderElem, err := field.Amount(remainder)
	if err != nil {
		return nil, err
	}
	newLeaf, err := b.codec.Leaf(p.Secret, remainderElem)
	if err != nil {
		return nil, err
	}
	nullifier, err := b.codec.Nullifier(p.Secret, oldAmount)
	if err != nil {
		return nil, err
	}

	tree, err := b.tree.Build(snapshot.Commitments())
	if err != nil {
		return nil, fmt.Errorf("failed to build merkle tree: %w", err)
	}
	witness, err := tree.Witness(int(record.Index))
	if err != nil {
		return nil, fmt.Errorf("failed to build witness: %w", err)
	}
	ok, err = b.tree.Verify(oldLeaf, int(record.Index), witness, tree.Root())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("witness for leaf %d does not verify against root %s", record.Index, tree.Root().Hex())
	}

	return &Withdrawal{
		Input: &ProofInput{
			Secret:     p.Secret,
			OldAmount:  oldAmount,
			Witnesses:  witness,
			LeafIndex:  record.Index,
			Leaf:       newLeaf,
			MerkleRoot: tree.Root(),
			Nullifier:  nullifier,
			Amount:     amount,
			Receiver:   p.Receiver,
			Relayer:    p.Relayer,
			Deposit:    0,
		},
		OldLeaf:   oldLeaf,
		Remainder: remainder,
	}, nil
}

func positiveAmount(v *big.Int) (field.Element, error) {
	if v == nil || v.Sign() <= 0 {
		return field.Zero, fmt.Errorf("%w: amount must be positive", types.ErrInputInvalid)
	}
	return field.Amount(v)
}
