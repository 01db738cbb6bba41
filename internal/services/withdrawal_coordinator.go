package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"twister-backend/internal/clients"
	"twister-backend/internal/dto"
	"twister-backend/internal/field"
	"twister-backend/internal/ledger"
	"twister-backend/internal/metrics"
	"twister-backend/internal/models"
	"twister-backend/internal/proofinput"
	"twister-backend/internal/repository"
	"twister-backend/internal/types"
)

// State of one coordinator run.
type State string

const (
	StateIdle          State = "Idle"
	StateBuildingInput State = "BuildingInput"
	StateProving       State = "Proving"
	StateSubmitting    State = "Submitting"
	StateConfirmed     State = "Confirmed"
	StateFailed        State = "Failed"
)

// IsTerminal reports whether no further transition follows.
func (s State) IsTerminal() bool {
	return s == StateConfirmed || s == StateFailed
}

// Prover turns a proof input into a proof. Implemented by the remote and local provers.
type Prover interface {
	Prove(ctx context.Context, input *proofinput.ProofInput) (*types.Proof, error)
}

// LedgerContract is the on-chain side of the coordinator.
type LedgerContract interface {
	IsKnownCommitment(ctx context.Context, leaf field.Element) (bool, error)
	Deposit(ctx context.Context, call clients.DepositCall) (*clients.TxReceipt, error)
	Withdraw(ctx context.Context, call clients.WithdrawCall) (*clients.TxReceipt, error)
}

// LedgerSyncer refreshes the local leaf ledger and returns the snapshot to build against.
type LedgerSyncer interface {
	Sync(ctx context.Context) (*ledger.Snapshot, error)
}

// OperationEventPublisher receives every transition (NATS).
type OperationEventPublisher interface {
	PublishOperationEvent(event dto.OperationEvent) error
}

// OperationBroadcaster pushes every transition to live subscribers (websocket hub).
type OperationBroadcaster interface {
	BroadcastOperation(event dto.OperationEvent)
}

// Result of Deposit or Withdraw. Skipped is set when another operation was in flight;
// nothing else is populated in that case.
type Result struct {
	Skipped   bool               `json:"skipped"`
	Operation *models.Operation  `json:"operation,omitempty"`
	Proof     *types.Proof       `json:"proof,omitempty"`
	Receipt   *clients.TxReceipt `json:"receipt,omitempty"`
}

// WithdrawalCoordinator runs deposits and withdrawals through
// BuildingInput -> Proving -> Submitting -> Confirmed, or Failed.
// At most one operation is in flight per coordinator.
type WithdrawalCoordinator struct {
	builder  *proofinput.Builder
	ledger   LedgerSyncer
	prover   Prover
	contract LedgerContract

	operations  repository.OperationRepository
	publisher   OperationEventPublisher
	broadcaster OperationBroadcaster
	network     string
	logger      *logrus.Logger

	inFlight atomic.Bool
	mu       sync.RWMutex
	state    State
}

// CoordinatorOption configures a WithdrawalCoordinator.
type CoordinatorOption func(*WithdrawalCoordinator)

func WithOperationRepository(repo repository.OperationRepository) CoordinatorOption {
	return func(c *WithdrawalCoordinator) { c.operations = repo }
}

func WithEventPublisher(p OperationEventPublisher) CoordinatorOption {
	return func(c *WithdrawalCoordinator) { c.publisher = p }
}

func WithBroadcaster(b OperationBroadcaster) CoordinatorOption {
	return func(c *WithdrawalCoordinator) { c.broadcaster = b }
}

func WithNetwork(network string) CoordinatorOption {
	return func(c *WithdrawalCoordinator) { c.network = network }
}

func WithCoordinatorLogger(logger *logrus.Logger) CoordinatorOption {
	return func(c *WithdrawalCoordinator) { c.logger = logger }
}

// NewWithdrawalCoordinator wires the pipeline stages. Observers are optional.
func NewWithdrawalCoordinator(builder *proofinput.Builder, ledger LedgerSyncer, prover Prover, contract LedgerContract, opts ...CoordinatorOption) *WithdrawalCoordinator {
	c := &WithdrawalCoordinator{
		builder:  builder,
		ledger:   ledger,
		prover:   prover,
		contract: contract,
		logger:   logrus.StandardLogger(),
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the state of the operation in flight, Idle when there is none.
func (c *WithdrawalCoordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Busy reports whether an operation is in flight.
func (c *WithdrawalCoordinator) Busy() bool {
	return c.inFlight.Load()
}

// Deposit records a new leaf for (secret, amount).
func (c *WithdrawalCoordinator) Deposit(ctx context.Context, req types.DepositRequest) (*Result, error) {
	if !c.acquire(models.OperationKindDeposit) {
		return &Result{Skipped: true}, nil
	}
	defer c.release()

	op := c.newOperation(models.OperationKindDeposit)
	start := time.Now()
	result, err := c.runDeposit(ctx, op, req)
	return c.finish(op, start, result, err)
}

// Withdraw consumes the (secret, oldAmount) leaf, pays amount to the receiver and
// re-deposits the remainder under a new leaf.
func (c *WithdrawalCoordinator) Withdraw(ctx context.Context, req types.WithdrawRequest) (*Result, error) {
	if !c.acquire(models.OperationKindWithdraw) {
		return &Result{Skipped: true}, nil
	}
	defer c.release()

	op := c.newOperation(models.OperationKindWithdraw)
	start := time.Now()
	result, err := c.runWithdraw(ctx, op, req)
	return c.finish(op, start, result, err)
}

func (c *WithdrawalCoordinator) runDeposit(ctx context.Context, op *models.Operation, req types.DepositRequest) (*Result, error) {
	c.transition(op, StateBuildingInput, nil)

	secret, err := field.ResolveSecret(req.Passphrase, req.RawSecret)
	if err != nil {
		return nil, err
	}
	amount, err := field.ParseEther(req.Amount)
	if err != nil {
		return nil, err
	}
	op.Amount = amount.String()

	snapshot, err := c.ledger.Sync(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to sync leaf ledger: %w", err)
	}
	input, err := c.builder.BuildDeposit(secret, amount)
	if err != nil {
		return nil, err
	}
	op.Leaf = input.Leaf.Hex()
	if _, ok := snapshot.FindByCommitment(input.Leaf); ok {
		return nil, fmt.Errorf("%w: leaf %s is already recorded", types.ErrAlreadySpent, input.Leaf.Hex())
	}

	proof, err := c.prove(ctx, op, input)
	if err != nil {
		return nil, err
	}

	c.transition(op, StateSubmitting, nil)
	if err := c.precheck(ctx, input.Leaf); err != nil {
		return nil, err
	}
	receipt, err := c.contract.Deposit(ctx, clients.DepositCall{
		Leaf:  input.Leaf,
		Proof: proof.Bytes,
		Value: amount,
	})
	if err != nil {
		return nil, classifySubmission(err)
	}
	return &Result{Proof: proof, Receipt: receipt}, nil
}

func (c *WithdrawalCoordinator) runWithdraw(ctx context.Context, op *models.Operation, req types.WithdrawRequest) (*Result, error) {
	c.transition(op, StateBuildingInput, nil)

	params, err := ParseWithdrawRequest(req)
	if err != nil {
		return nil, err
	}
	op.Amount = params.Amount.String()
	op.Receiver = params.Receiver.String()
	op.Relayer = params.Relayer.String()

	snapshot, err := c.ledger.Sync(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to sync leaf ledger: %w", err)
	}
	w, err := c.builder.BuildWithdrawal(params, snapshot)
	if err != nil {
		return nil, err
	}
	op.OldLeaf = w.OldLeaf.Hex()
	op.Leaf = w.Input.Leaf.Hex()
	op.Nullifier = w.Input.Nullifier.Hex()
	op.Remainder = w.Remainder.String()
	if _, ok := snapshot.FindByCommitment(w.Input.Leaf); ok {
		return nil, fmt.Errorf("%w: remainder leaf %s is already recorded", types.ErrAlreadySpent, w.Input.Leaf.Hex())
	}

	proof, err := c.prove(ctx, op, w.Input)
	if err != nil {
		return nil, err
	}

	c.transition(op, StateSubmitting, nil)
	if err := c.precheck(ctx, w.Input.Leaf); err != nil {
		return nil, err
	}
	receipt, err := c.contract.Withdraw(ctx, clients.WithdrawCall{
		Nullifier:  w.Input.Nullifier,
		Leaf:       w.Input.Leaf,
		MerkleRoot: w.Input.MerkleRoot,
		Receiver:   w.Input.Receiver.Common(),
		Relayer:    w.Input.Relayer.Common(),
		Amount:     params.Amount,
		Proof:      proof.Bytes,
	})
	if err != nil {
		return nil, classifySubmission(err)
	}
	return &Result{Proof: proof, Receipt: receipt}, nil
}

func (c *WithdrawalCoordinator) prove(ctx context.Context, op *models.Operation, input *proofinput.ProofInput) (*types.Proof, error) {
	c.transition(op, StateProving, nil)
	proof, err := c.prover.Prove(ctx, input)
	if err != nil {
		if errors.Is(err, types.ErrProverFailure) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", types.ErrProverFailure, err)
	}
	if proof == nil || proof.IsEmpty() {
		return nil, fmt.Errorf("%w: prover returned an empty proof", types.ErrProverFailure)
	}
	return proof, nil
}

// precheck refuses to submit a leaf the contract already holds.
func (c *WithdrawalCoordinator) precheck(ctx context.Context, leaf field.Element) error {
	known, err := c.contract.IsKnownCommitment(ctx, leaf)
	if err != nil {
		return classifySubmission(err)
	}
	if known {
		return fmt.Errorf("%w: commitment %s already exists on chain", types.ErrAlreadySpent, leaf.Hex())
	}
	return nil
}

func classifySubmission(err error) error {
	if errors.Is(err, types.ErrAlreadySpent) || errors.Is(err, types.ErrSubmissionFailure) {
		return err
	}
	return fmt.Errorf("%w: %v", types.ErrSubmissionFailure, err)
}

// ParseWithdrawRequest resolves the secret, amounts and addresses of a withdraw request.
func ParseWithdrawRequest(req types.WithdrawRequest) (proofinput.WithdrawalParams, error) {
	secret, err := field.ResolveSecret(req.Passphrase, req.RawSecret)
	if err != nil {
		return proofinput.WithdrawalParams{}, err
	}
	oldAmount, err := field.ParseEther(req.OldAmount)
	if err != nil {
		return proofinput.WithdrawalParams{}, fmt.Errorf("old amount: %w", err)
	}
	amount, err := field.ParseEther(req.Amount)
	if err != nil {
		return proofinput.WithdrawalParams{}, err
	}
	receiver, err := proofinput.ParseAddress(req.Receiver)
	if err != nil {
		return proofinput.WithdrawalParams{}, fmt.Errorf("receiver: %w", err)
	}
	relayer, err := proofinput.ParseAddress(req.Relayer)
	if err != nil {
		return proofinput.WithdrawalParams{}, fmt.Errorf("relayer: %w", err)
	}
	return proofinput.WithdrawalParams{
		Secret:    secret,
		OldAmount: oldAmount,
		Amount:    amount,
		Receiver:  receiver,
		Relayer:   relayer,
	}, nil
}

func (c *WithdrawalCoordinator) acquire(kind models.OperationKind) bool {
	if !c.inFlight.CompareAndSwap(false, true) {
		metrics.OperationsSkipped.WithLabelValues(string(kind)).Inc()
		c.logger.WithFields(logrus.Fields{
			"kind":  kind,
			"state": c.State(),
		}).Warn("[Coordinator] operation already in flight, request ignored")
		return false
	}
	return true
}

func (c *WithdrawalCoordinator) release() {
	c.mu.Lock()
	c.state = StateIdle
	c.mu.Unlock()
	c.inFlight.Store(false)
}

func (c *WithdrawalCoordinator) newOperation(kind models.OperationKind) *models.Operation {
	now := time.Now()
	return &models.Operation{
		ID:        uuid.New().String(),
		Kind:      kind,
		State:     string(StateIdle),
		Network:   c.network,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// finish moves op to its terminal state and resyncs the ledger after a confirmed submission.
func (c *WithdrawalCoordinator) finish(op *models.Operation, start time.Time, result *Result, err error) (*Result, error) {
	if err != nil {
		c.transition(op, StateFailed, err)
		metrics.OperationDuration.WithLabelValues(string(op.Kind), "failed").Observe(time.Since(start).Seconds())
		return &Result{Operation: op}, err
	}

	op.TxHash = result.Receipt.TxHash
	op.BlockNumber = result.Receipt.BlockNumber
	c.transition(op, StateConfirmed, nil)
	metrics.OperationDuration.WithLabelValues(string(op.Kind), "confirmed").Observe(time.Since(start).Seconds())

	// The confirmed leaf only enters the ledger through its AddLeaf event.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, syncErr := c.ledger.Sync(ctx); syncErr != nil {
		c.logger.WithFields(logrus.Fields{
			"operation_id": op.ID,
			"error":        syncErr.Error(),
		}).Warn("[Coordinator] ledger resync after confirmation failed")
	}

	result.Operation = op
	return result, nil
}

// transition records, publishes, pushes, counts and logs one state change.
// Observer failures are logged and never change the outcome.
func (c *WithdrawalCoordinator) transition(op *models.Operation, state State, cause error) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()

	now := time.Now()
	op.State = string(state)
	op.UpdatedAt = now
	if cause != nil {
		op.ErrorCode = types.ErrorCode(cause)
		op.FailureReason = cause.Error()
	}
	if state.IsTerminal() {
		op.CompletedAt = &now
	}

	metrics.OperationTransitions.WithLabelValues(string(op.Kind), string(state)).Inc()
	if state == StateFailed {
		metrics.OperationFailures.WithLabelValues(string(op.Kind), op.ErrorCode).Inc()
	}

	fields := logrus.Fields{
		"operation_id": op.ID,
		"kind":         op.Kind,
		"state":        state,
	}
	if op.Leaf != "" {
		fields["leaf"] = op.Leaf
	}
	if cause != nil {
		fields["error_code"] = op.ErrorCode
		fields["error"] = op.FailureReason
		c.logger.WithFields(fields).Error("[Coordinator] operation failed")
	} else {
		c.logger.WithFields(fields).Info("[Coordinator] state transition")
	}

	if c.operations != nil {
		if err := c.operations.Save(context.Background(), op); err != nil {
			c.logger.WithFields(logrus.Fields{
				"operation_id": op.ID,
				"error":        err.Error(),
			}).Warn("[Coordinator] failed to persist operation")
		}
	}

	event := OperationEvent(op, now)
	if c.publisher != nil {
		if err := c.publisher.PublishOperationEvent(event); err != nil {
			c.logger.WithFields(logrus.Fields{
				"operation_id": op.ID,
				"error":        err.Error(),
			}).Warn("[Coordinator] failed to publish operation event")
		}
	}
	if c.broadcaster != nil {
		c.broadcaster.BroadcastOperation(event)
	}
}

// OperationEvent is the wire form of an operation's current state.
func OperationEvent(op *models.Operation, at time.Time) dto.OperationEvent {
	return dto.OperationEvent{
		OperationID: op.ID,
		Kind:        string(op.Kind),
		State:       op.State,
		Leaf:        op.Leaf,
		Nullifier:   op.Nullifier,
		Amount:      op.Amount,
		TxHash:      op.TxHash,
		ErrorCode:   op.ErrorCode,
		Error:       op.FailureReason,
		Timestamp:   at.Unix(),
	}
}

// weiString formats an optional wei amount for responses.
func weiString(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}
