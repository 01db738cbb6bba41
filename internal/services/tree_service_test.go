package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twister-backend/internal/commitment"
	"twister-backend/internal/dto"
	"twister-backend/internal/field"
	"twister-backend/internal/ledger"
	"twister-backend/internal/merkle"
	"twister-backend/internal/types"
)

type staticRoot struct{ root field.Element }

func (s staticRoot) LastRoot(context.Context) (field.Element, error) { return s.root, nil }

func newTreeService(t *testing.T, roots RootReader, leaves ...field.Element) (*TreeService, *merkle.Builder) {
	t.Helper()
	codec := commitment.NewCodec(commitment.NewPoseidonHasher())
	tree, err := merkle.NewBuilder(merkle.DefaultConfig(), codec.Hasher())
	require.NoError(t, err)

	records := make([]ledger.LeafRecord, len(leaves))
	for i, leaf := range leaves {
		records[i] = ledger.LeafRecord{Index: uint64(i), Commitment: leaf}
	}
	l := ledger.New(nil, ledger.NewMemoryStore(records...))
	return NewTreeService(l, codec, tree, roots), tree
}

func TestTreeServiceRoot(t *testing.T) {
	leaves := []field.Element{field.FromUint64(1), field.FromUint64(2), field.FromUint64(3)}
	svc, tree := newTreeService(t, nil, leaves...)

	want, err := tree.Build(leaves)
	require.NoError(t, err)

	resp, err := svc.Root(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want.Root().Hex(), resp.Root)
	assert.Equal(t, 3, resp.LeafCount)
	assert.Equal(t, ledger.DefaultCapacity, resp.Capacity)
	assert.Nil(t, resp.InSync)

	svc, _ = newTreeService(t, staticRoot{root: want.Root()}, leaves...)
	resp, err = svc.Root(context.Background())
	require.NoError(t, err)
	require.NotNil(t, resp.InSync)
	assert.True(t, *resp.InSync)

	svc, _ = newTreeService(t, staticRoot{root: field.FromUint64(9)}, leaves...)
	resp, err = svc.Root(context.Background())
	require.NoError(t, err)
	assert.False(t, *resp.InSync)
}

func TestTreeServiceWitness(t *testing.T) {
	leaves := []field.Element{field.FromUint64(1), field.FromUint64(2), field.FromUint64(3)}
	svc, tree := newTreeService(t, nil, leaves...)

	resp, err := svc.Witness(context.Background(), "0x02")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), resp.LeafIndex)
	assert.Len(t, resp.Witnesses, merkle.DefaultDepth)

	witness := make([]field.Element, len(resp.Witnesses))
	for i, w := range resp.Witnesses {
		witness[i] = field.MustParseHex(w)
	}
	ok, err := tree.Verify(leaves[1], 1, witness, field.MustParseHex(resp.Root))
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = svc.Witness(context.Background(), "0x07")
	assert.ErrorIs(t, err, types.ErrNoSuchCommitment)

	_, err = svc.Witness(context.Background(), "zz")
	assert.ErrorIs(t, err, types.ErrInputInvalid)
}

func TestTreeServiceLeavesPaging(t *testing.T) {
	var leaves []field.Element
	for i := uint64(1); i <= 5; i++ {
		leaves = append(leaves, field.FromUint64(i))
	}
	svc, _ := newTreeService(t, nil, leaves...)

	page, total, err := svc.Leaves(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, uint64(1), page[0].Index)

	page, _, err = svc.Leaves(context.Background(), 4, 0)
	require.NoError(t, err)
	assert.Len(t, page, 1)

	page, _, err = svc.Leaves(context.Background(), 10, 2)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestTreeServiceNote(t *testing.T) {
	codec := commitment.NewCodec(commitment.NewPoseidonHasher())
	note, err := codec.Note(mustSecret(t, "SecretPassword"), mustEther(t, "0.1"))
	require.NoError(t, err)

	svc, _ := newTreeService(t, nil, field.FromUint64(5), note.Leaf)

	resp, err := svc.Note(context.Background(), types.NoteRequest{
		SecretSource: types.SecretSource{Passphrase: "SecretPassword"},
		Amount:       "0.1",
	})
	require.NoError(t, err)
	assert.Equal(t, note.Leaf.Hex(), resp.Leaf)
	assert.Equal(t, note.Nullifier.Hex(), resp.Nullifier)
	assert.Equal(t, "0.1", resp.Amount)
	assert.Equal(t, "100000000000000000", resp.AmountWei)
	assert.True(t, resp.Recorded)
	require.NotNil(t, resp.LeafIndex)
	assert.Equal(t, int64(1), *resp.LeafIndex)

	resp, err = svc.Note(context.Background(), types.NoteRequest{
		SecretSource: types.SecretSource{Passphrase: "SecretPassword"},
		Amount:       "0.2",
	})
	require.NoError(t, err)
	assert.False(t, resp.Recorded)
	assert.Nil(t, resp.LeafIndex)
}

func TestWebSocketPushBroadcastsOperations(t *testing.T) {
	hub := NewWebSocketPushService(nil)
	defer hub.Close()

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	var hello PushMessage
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "connection_established", hello.Type)
	assert.Equal(t, 1, hub.ActiveConnections())

	hub.BroadcastOperation(dto.OperationEvent{OperationID: "op-1", Kind: "deposit", State: "Proving"})

	var msg struct {
		Type string             `json:"type"`
		Data dto.OperationEvent `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "operation_update", msg.Type)
	assert.Equal(t, "op-1", msg.Data.OperationID)
	assert.Equal(t, "Proving", msg.Data.State)
}

type countingSyncer struct {
	calls chan struct{}
}

func (c *countingSyncer) Sync(context.Context) (*ledger.Snapshot, error) {
	select {
	case c.calls <- struct{}{}:
	default:
	}
	return ledger.NewSnapshot(nil, ledger.DefaultCapacity)
}

func TestLedgerSyncServiceRunsImmediately(t *testing.T) {
	syncer := &countingSyncer{calls: make(chan struct{}, 1)}
	svc := NewLedgerSyncService(syncer, time.Hour, nil)
	svc.Start()

	select {
	case <-syncer.calls:
	case <-time.After(5 * time.Second):
		t.Fatal("initial sync did not run")
	}
	svc.Stop()
	svc.Stop()
}
