package router

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twister-backend/internal/commitment"
	"twister-backend/internal/config"
	"twister-backend/internal/dto"
	"twister-backend/internal/field"
	"twister-backend/internal/handlers"
	"twister-backend/internal/ledger"
	"twister-backend/internal/merkle"
	"twister-backend/internal/models"
	"twister-backend/internal/repository"
	"twister-backend/internal/services"
	"twister-backend/internal/types"
)

type fakeCoordinator struct {
	err     error
	skipped bool
	ops     repository.OperationRepository
}

func (f *fakeCoordinator) run(kind models.OperationKind) (*services.Result, error) {
	if f.skipped {
		return &services.Result{Skipped: true}, nil
	}
	op := &models.Operation{ID: "op-" + string(kind), Kind: kind, State: "Confirmed", CreatedAt: time.Now()}
	if f.err != nil {
		op.State = "Failed"
		return &services.Result{Operation: op}, f.err
	}
	_ = f.ops.Save(context.Background(), op)
	return &services.Result{Operation: op, Receipt: nil}, nil
}

func (f *fakeCoordinator) Deposit(context.Context, types.DepositRequest) (*services.Result, error) {
	return f.run(models.OperationKindDeposit)
}

func (f *fakeCoordinator) Withdraw(context.Context, types.WithdrawRequest) (*services.Result, error) {
	return f.run(models.OperationKindWithdraw)
}

func setup(t *testing.T, cfg *config.Config, coordinator *fakeCoordinator, leaves ...field.Element) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	codec := commitment.NewCodec(commitment.NewPoseidonHasher())
	tree, err := merkle.NewBuilder(merkle.DefaultConfig(), codec.Hasher())
	require.NoError(t, err)

	records := make([]ledger.LeafRecord, len(leaves))
	for i, leaf := range leaves {
		records[i] = ledger.LeafRecord{Index: uint64(i), Commitment: leaf}
	}
	l := ledger.New(nil, ledger.NewMemoryStore(records...))

	return SetupRouter(cfg, Handlers{
		Tree:      handlers.NewTreeHandler(services.NewTreeService(l, codec, tree, nil)),
		Operation: handlers.NewOperationHandler(coordinator, coordinator.ops, nil),
	}, nil)
}

func do(r http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealthAndTreeRoutes(t *testing.T) {
	coordinator := &fakeCoordinator{ops: repository.NewMemoryOperationRepository()}
	r := setup(t, &config.Config{}, coordinator, field.FromUint64(1), field.FromUint64(2))

	w := do(r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/api/tree/root", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var root dto.RootResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &root))
	assert.Equal(t, 2, root.LeafCount)
	assert.Len(t, root.Root, 66)

	w = do(r, http.MethodGet, "/api/tree/witness/0x02", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var witness dto.WitnessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &witness))
	assert.Equal(t, uint64(1), witness.LeafIndex)

	w = do(r, http.MethodGet, "/api/tree/witness/0x09", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NO_SUCH_COMMITMENT", decodeError(t, w).Code)

	w = do(r, http.MethodGet, "/api/leaves?offset=1&limit=5", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":2`)

	w = do(r, http.MethodGet, "/api/leaves?limit=-1", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNoteRoute(t *testing.T) {
	coordinator := &fakeCoordinator{ops: repository.NewMemoryOperationRepository()}
	r := setup(t, &config.Config{}, coordinator)

	w := do(r, http.MethodPost, "/api/notes", `{"passphrase":"SecretPassword","amount":"0.1"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var note dto.NoteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &note))
	assert.False(t, note.Recorded)
	assert.Equal(t, "100000000000000000", note.AmountWei)

	w = do(r, http.MethodPost, "/api/notes", `{"passphrase":"x"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/notes", `{"passphrase":"x","raw_secret":"0x01","amount":"1"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INPUT_INVALID", decodeError(t, w).Code)
}

func TestOperationRoutesRequireToken(t *testing.T) {
	handlers.SetJWTSecret("test-secret")
	cfg := &config.Config{Auth: config.AuthConfig{RequireAuth: true}}
	coordinator := &fakeCoordinator{ops: repository.NewMemoryOperationRepository()}
	r := setup(t, cfg, coordinator)

	body := `{"passphrase":"SecretPassword","amount":"0.1"}`
	w := do(r, http.MethodPost, "/api/deposit", body, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "MISSING_AUTH_HEADER", decodeError(t, w).Code)

	w = do(r, http.MethodPost, "/api/deposit", body, map[string]string{"Authorization": "Token abc"})
	assert.Equal(t, "INVALID_AUTH_FORMAT", decodeError(t, w).Code)

	w = do(r, http.MethodPost, "/api/deposit", body, map[string]string{"Authorization": "Bearer nope"})
	assert.Equal(t, "INVALID_TOKEN", decodeError(t, w).Code)

	token, err := handlers.GenerateJWTToken("ops", "operator", time.Hour)
	require.NoError(t, err)
	auth := map[string]string{"Authorization": "Bearer " + token.Token}

	w = do(r, http.MethodPost, "/api/deposit", body, auth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"op-deposit"`)

	w = do(r, http.MethodGet, "/api/operations/op-deposit", "", auth)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/api/operations/missing", "", auth)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodGet, "/api/operations?limit=5", "", auth)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOperationErrorStatuses(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: bad", types.ErrInputInvalid), http.StatusBadRequest, "INPUT_INVALID"},
		{fmt.Errorf("%w: x", types.ErrNoSuchCommitment), http.StatusNotFound, "NO_SUCH_COMMITMENT"},
		{fmt.Errorf("%w: x", types.ErrAlreadySpent), http.StatusConflict, "ALREADY_SPENT"},
		{fmt.Errorf("%w: x", types.ErrInsufficientBalance), http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE"},
		{fmt.Errorf("%w: Cannot satisfy constraint", types.ErrProverFailure), http.StatusBadGateway, "PROVER_FAILURE"},
		{fmt.Errorf("%w: reverted", types.ErrSubmissionFailure), http.StatusBadGateway, "SUBMISSION_FAILURE"},
	}
	for _, tc := range cases {
		coordinator := &fakeCoordinator{ops: repository.NewMemoryOperationRepository(), err: tc.err}
		r := setup(t, &config.Config{}, coordinator)

		w := do(r, http.MethodPost, "/api/withdraw",
			`{"passphrase":"p","old_amount":"1","amount":"1","receiver":"0x70997970C51812dc3A010C7d01b50e0d17dc79C8"}`, nil)
		assert.Equal(t, tc.status, w.Code, tc.code)
		resp := decodeError(t, w)
		assert.Equal(t, tc.code, resp.Code)
		assert.Equal(t, tc.err.Error(), resp.Message)
	}
}

func TestBusyCoordinatorReturnsConflict(t *testing.T) {
	coordinator := &fakeCoordinator{ops: repository.NewMemoryOperationRepository(), skipped: true}
	r := setup(t, &config.Config{}, coordinator)

	w := do(r, http.MethodPost, "/api/deposit", `{"passphrase":"p","amount":"1"}`, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "OPERATION_IN_FLIGHT", decodeError(t, w).Code)
}

func TestMetricsIsLocalOnly(t *testing.T) {
	coordinator := &fakeCoordinator{ops: repository.NewMemoryOperationRepository()}

	r := setup(t, &config.Config{}, coordinator)
	w := do(r, http.MethodGet, "/metrics", "", nil) // httptest remote is 192.0.2.1
	assert.Equal(t, http.StatusForbidden, w.Code)

	cfg := &config.Config{Server: config.ServerConfig{MetricsAllowedIPs: []string{"192.0.2.0/24"}}}
	r = setup(t, cfg, coordinator)
	w = do(r, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "twister_")
}

func TestCORSPreflight(t *testing.T) {
	coordinator := &fakeCoordinator{ops: repository.NewMemoryOperationRepository()}
	cfg := &config.Config{CORS: config.CORSConfig{AllowedOrigins: []string{"https://app.example"}}}
	r := setup(t, cfg, coordinator)

	w := do(r, http.MethodOptions, "/api/deposit", "", map[string]string{"Origin": "https://app.example"})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))

	w = do(r, http.MethodOptions, "/api/deposit", "", map[string]string{"Origin": "https://evil.example"})
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
