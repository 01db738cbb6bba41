package proofinput

import (
	"encoding/json"
	"math/big"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twister-backend/internal/commitment"
	"twister-backend/internal/field"
	"twister-backend/internal/ledger"
	"twister-backend/internal/merkle"
	"twister-backend/internal/types"
)

const receiverHex = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

func newTestBuilder(t *testing.T) (*Builder, *commitment.Codec) {
	t.Helper()
	codec := commitment.NewCodec(commitment.NewPoseidonHasher())
	tree, err := merkle.NewBuilder(merkle.DefaultConfig(), codec.Hasher())
	require.NoError(t, err)
	return NewBuilder(codec, tree), codec
}

func ether(t *testing.T, s string) *big.Int {
	t.Helper()
	v, err := field.ParseEther(s)
	require.NoError(t, err)
	return v
}

// snapshotWith places leaves behind a few unrelated commitments.
func snapshotWith(t *testing.T, leaves ...field.Element) *ledger.Snapshot {
	t.Helper()
	var records []ledger.LeafRecord
	for i := 0; i < 3; i++ {
		records = append(records, ledger.LeafRecord{Index: uint64(i), Commitment: field.FromUint64(uint64(1000 + i))})
	}
	for _, leaf := range leaves {
		records = append(records, ledger.LeafRecord{Index: uint64(len(records)), Commitment: leaf})
	}
	s, err := ledger.NewSnapshot(records, ledger.DefaultCapacity)
	require.NoError(t, err)
	return s
}

func receiver(t *testing.T) Address {
	t.Helper()
	a, err := ParseAddress(receiverHex)
	require.NoError(t, err)
	return a
}

func TestBuildDeposit(t *testing.T) {
	b, codec := newTestBuilder(t)
	secret, err := field.SecretFromPassphrase("SecretPassword")
	require.NoError(t, err)
	amount := ether(t, "0.1")

	in, err := b.BuildDeposit(secret, amount)
	require.NoError(t, err)

	note, err := codec.Note(secret, amount)
	require.NoError(t, err)
	assert.True(t, in.IsDeposit())
	assert.Equal(t, note.Leaf, in.Leaf)
	assert.Equal(t, in.Amount, in.OldAmount)
	assert.Equal(t, amount.String(), in.Amount.Big().String())
	assert.True(t, in.MerkleRoot.IsZero())
	assert.True(t, in.Nullifier.IsZero())
	assert.Len(t, in.Witnesses, merkle.DefaultDepth)
	assert.True(t, in.Receiver.IsZero())
}

func TestBuildDepositRejectsBadInput(t *testing.T) {
	b, _ := newTestBuilder(t)

	_, err := b.BuildDeposit(field.Zero, big.NewInt(1))
	assert.ErrorIs(t, err, types.ErrInputInvalid)

	_, err = b.BuildDeposit(field.FromUint64(1), big.NewInt(0))
	assert.ErrorIs(t, err, types.ErrInputInvalid)

	_, err = b.BuildDeposit(field.FromUint64(1), big.NewInt(-1))
	assert.ErrorIs(t, err, types.ErrInputInvalid)
}

func TestBuildWithdrawalConservesValue(t *testing.T) {
	b, codec := newTestBuilder(t)
	secret := field.FromUint64(1)
	oldAmount := ether(t, "0.25")
	old, err := codec.Note(secret, oldAmount)
	require.NoError(t, err)
	snap := snapshotWith(t, old.Leaf)

	w, err := b.BuildWithdrawal(WithdrawalParams{
		Secret:    secret,
		OldAmount: oldAmount,
		Amount:    ether(t, "0.1"),
		Receiver:  receiver(t),
	}, snap)
	require.NoError(t, err)

	assert.Equal(t, "150000000000000000", w.Remainder.String())
	assert.Equal(t, old.Leaf, w.OldLeaf)

	remainder, err := codec.Note(secret, ether(t, "0.15"))
	require.NoError(t, err)
	in := w.Input
	assert.Equal(t, remainder.Leaf, in.Leaf)
	assert.Equal(t, old.Nullifier, in.Nullifier)
	assert.Equal(t, "0x2d7bea6eead28cf6460e4d952afcc7397ca25c3e3dda5724bbb74924de309c9a", in.Nullifier.Hex())
	assert.Equal(t, uint64(3), in.LeafIndex)
	assert.False(t, in.IsDeposit())
	assert.True(t, in.Relayer.IsZero())

	tree, err := merkle.NewBuilder(merkle.DefaultConfig(), codec.Hasher())
	require.NoError(t, err)
	built, err := tree.Build(snap.Commitments())
	require.NoError(t, err)
	assert.Equal(t, built.Root(), in.MerkleRoot)

	ok, err := tree.Verify(old.Leaf, int(in.LeafIndex), in.Witnesses, in.MerkleRoot)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBuildWithdrawalFullBalanceLeavesZeroRemainder(t *testing.T) {
	b, codec := newTestBuilder(t)
	secret := field.FromUint64(1)
	old, err := codec.Note(secret, ether(t, "0.15"))
	require.NoError(t, err)

	w, err := b.BuildWithdrawal(WithdrawalParams{
		Secret:    secret,
		OldAmount: ether(t, "0.15"),
		Amount:    ether(t, "0.15"),
		Receiver:  receiver(t),
	}, snapshotWith(t, old.Leaf))
	require.NoError(t, err)

	assert.Equal(t, 0, w.Remainder.Sign())
	zeroLeaf, err := codec.Leaf(secret, field.Zero)
	require.NoError(t, err)
	assert.Equal(t, zeroLeaf, w.Input.Leaf)
}

func TestBuildWithdrawalInsufficientBalance(t *testing.T) {
	b, codec := newTestBuilder(t)
	secret := field.FromUint64(1)
	old, err := codec.Note(secret, ether(t, "0.25"))
	require.NoError(t, err)

	_, err = b.BuildWithdrawal(WithdrawalParams{
		Secret:    secret,
		OldAmount: ether(t, "0.25"),
		Amount:    ether(t, "0.3"),
		Receiver:  receiver(t),
	}, snapshotWith(t, old.Leaf))
	assert.ErrorIs(t, err, types.ErrInsufficientBalance)
}

func TestBuildWithdrawalNoSuchCommitment(t *testing.T) {
	b, _ := newTestBuilder(t)

	_, err := b.BuildWithdrawal(WithdrawalParams{
		Secret:    field.FromUint64(1),
		OldAmount: ether(t, "0.25"),
		Amount:    ether(t, "0.1"),
		Receiver:  receiver(t),
	}, snapshotWith(t))
	assert.ErrorIs(t, err, types.ErrNoSuchCommitment)
}

func TestBuildWithdrawalRejectsInvalidInput(t *testing.T) {
	b, codec := newTestBuilder(t)
	secret := field.FromUint64(1)
	old, err := codec.Note(secret, ether(t, "0.25"))
	require.NoError(t, err)
	snap := snapshotWith(t, old.Leaf)

	cases := map[string]WithdrawalParams{
		"missing secret":   {OldAmount: ether(t, "0.25"), Amount: ether(t, "0.1"), Receiver: receiver(t)},
		"zero amount":      {Secret: secret, OldAmount: ether(t, "0.25"), Amount: big.NewInt(0), Receiver: receiver(t)},
		"negative amount":  {Secret: secret, OldAmount: ether(t, "0.25"), Amount: big.NewInt(-1), Receiver: receiver(t)},
		"missing receiver": {Secret: secret, OldAmount: ether(t, "0.25"), Amount: ether(t, "0.1")},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := b.BuildWithdrawal(p, snap)
			assert.ErrorIs(t, err, types.ErrInputInvalid)
		})
	}
}

func TestParseAddress(t *testing.T) {
	a, err := ParseAddress("0")
	require.NoError(t, err)
	assert.True(t, a.IsZero())
	assert.Equal(t, "0", a.String())

	a, err = ParseAddress(strings.ToLower(receiverHex))
	require.NoError(t, err)
	assert.Equal(t, receiverHex, a.String())

	_, err = ParseAddress("0x1234")
	assert.ErrorIs(t, err, types.ErrInputInvalid)
}

func TestWireEncodings(t *testing.T) {
	b, codec := newTestBuilder(t)
	secret := field.FromUint64(1)
	old, err := codec.Note(secret, ether(t, "0.25"))
	require.NoError(t, err)
	w, err := b.BuildWithdrawal(WithdrawalParams{
		Secret:    secret,
		OldAmount: ether(t, "0.25"),
		Amount:    ether(t, "0.1"),
		Receiver:  receiver(t),
	}, snapshotWith(t, old.Leaf))
	require.NoError(t, err)
	in := w.Input

	raw, err := json.Marshal(in)
	require.NoError(t, err)
	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	for _, key := range []string{"secret", "oldAmount", "witnesses", "leafIndex", "leaf", "merkleRoot", "nullifier", "amount", "receiver", "relayer", "deposit"} {
		assert.Contains(t, generic, key)
	}
	assert.Len(t, generic, 11)
	assert.Equal(t, "0", generic["relayer"])
	assert.Equal(t, float64(0), generic["deposit"])
	assert.Equal(t, float64(3), generic["leafIndex"])

	form := in.Form()
	assert.Len(t, form["witnesses"], merkle.DefaultDepth)
	assert.Equal(t, in.Witnesses[0].Hex(), form["witnesses"][0])
	assert.Equal(t, "3", form.Get("leafIndex"))
	assert.Equal(t, receiverHex, form.Get("receiver"))

	data, err := in.ProverTOML()
	require.NoError(t, err)
	var decoded struct {
		Nullifier string   `toml:"nullifier"`
		Witnesses []string `toml:"witnesses"`
		LeafIndex int      `toml:"leafIndex"`
		Relayer   string   `toml:"relayer"`
	}
	require.NoError(t, toml.Unmarshal(data, &decoded))
	assert.Equal(t, in.Nullifier.Hex(), decoded.Nullifier)
	assert.Len(t, decoded.Witnesses, merkle.DefaultDepth)
	assert.Equal(t, 3, decoded.LeafIndex)
	assert.Equal(t, "0", decoded.Relayer)
}

func TestRedactedDropsSecret(t *testing.T) {
	b, _ := newTestBuilder(t)
	in, err := b.BuildDeposit(field.FromUint64(9), big.NewInt(5))
	require.NoError(t, err)

	r := in.Redacted()
	assert.True(t, r.Secret.IsZero())
	assert.Equal(t, field.FromUint64(9), in.Secret)
}
