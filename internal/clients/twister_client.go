package clients

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"

	"twister-backend/internal/config"
	"twister-backend/internal/contracts"
	"twister-backend/internal/field"
	twtypes "twister-backend/internal/types"
)

// ChainBackend is the subset of ethclient.Client the contract client needs.
type ChainBackend interface {
	bind.DeployBackend
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// DepositCall arguments of Twister.deposit. Value is sent with the call.
type DepositCall struct {
	Leaf  field.Element
	Proof []byte
	Value *big.Int
}

// WithdrawCall arguments of Twister.withdraw.
type WithdrawCall struct {
	Nullifier  field.Element
	Leaf       field.Element
	MerkleRoot field.Element
	Receiver   common.Address
	Relayer    common.Address
	Amount     *big.Int
	Proof      []byte
	AuxData    []byte
}

// TxReceipt is a mined transaction.
type TxReceipt struct {
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
	GasUsed     uint64 `json:"gas_used"`
}

// TwisterClient submits deposits and withdrawals to one Twister deployment.
type TwisterClient struct {
	backend  ChainBackend
	abi      abi.ABI
	address  common.Address
	chainID  *big.Int
	key      *ecdsa.PrivateKey
	from     common.Address
	gasLimit uint64
	waitFor  time.Duration
	logger   *logrus.Logger
}

// DialNetwork connects to the first RPC endpoint that answers NetworkID.
func DialNetwork(ctx context.Context, network *config.NetworkConfig) (*ethclient.Client, error) {
	var lastErr error
	for _, endpoint := range network.RPCEndpoints {
		client, err := ethclient.DialContext(ctx, endpoint)
		if err != nil {
			lastErr = err
			continue
		}
		checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		_, err = client.NetworkID(checkCtx)
		cancel()
		if err == nil {
			return client, nil
		}
		lastErr = err
		client.Close()
	}
	if lastErr == nil {
		lastErr = errors.New("no rpc endpoints configured")
	}
	return nil, fmt.Errorf("failed to connect to %s network: %w", network.Name, lastErr)
}

// NewTwisterClient binds the contract at network.TwisterContract. Without a private key
// the client is read-only.
func NewTwisterClient(backend ChainBackend, network *config.NetworkConfig, logger *logrus.Logger) (*TwisterClient, error) {
	if !common.IsHexAddress(network.TwisterContract) {
		return nil, fmt.Errorf("network %s has no valid twisterContract address", network.Name)
	}
	parsed, err := contracts.ParsedTwisterABI()
	if err != nil {
		return nil, fmt.Errorf("failed to parse Twister ABI: %w", err)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	c := &TwisterClient{
		backend:  backend,
		abi:      parsed,
		address:  common.HexToAddress(network.TwisterContract),
		chainID:  big.NewInt(int64(network.ChainID)),
		gasLimit: network.GasLimit,
		waitFor:  5 * time.Minute,
		logger:   logger,
	}
	if network.PrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(network.PrivateKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		c.key = key
		c.from = crypto.PubkeyToAddress(key.PublicKey)
	}
	return c, nil
}

// WithConfirmationTimeout bounds WaitMined plus receipt polling.
func (c *TwisterClient) WithConfirmationTimeout(d time.Duration) *TwisterClient {
	c.waitFor = d
	return c
}

func (c *TwisterClient) Address() common.Address {
	return c.address
}

// From is the signing account, zero when read-only.
func (c *TwisterClient) From() common.Address {
	return c.from
}

// Balance returns the signing account balance in wei.
func (c *TwisterClient) Balance(ctx context.Context) (*big.Int, error) {
	if c.key == nil {
		return nil, fmt.Errorf("no wallet configured")
	}
	return c.backend.BalanceAt(ctx, c.from, nil)
}

// IsKnownCommitment calls commitments(leaf).
func (c *TwisterClient) IsKnownCommitment(ctx context.Context, leaf field.Element) (bool, error) {
	out, err := c.call(ctx, "commitments", [32]byte(leaf))
	if err != nil {
		return false, err
	}
	known, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("unexpected commitments() result %T", out[0])
	}
	return known, nil
}

// LastRoot calls getLastRoot().
func (c *TwisterClient) LastRoot(ctx context.Context) (field.Element, error) {
	out, err := c.call(ctx, "getLastRoot")
	if err != nil {
		return field.Zero, err
	}
	root, ok := out[0].([32]byte)
	if !ok {
		return field.Zero, fmt.Errorf("unexpected getLastRoot() result %T", out[0])
	}
	return field.FromHash(common.Hash(root))
}

// Deposit sends deposit(leaf, proof) with Value attached and waits for the receipt.
func (c *TwisterClient) Deposit(ctx context.Context, call DepositCall) (*TxReceipt, error) {
	data, err := c.abi.Pack("deposit", [32]byte(call.Leaf), call.Proof)
	if err != nil {
		return nil, fmt.Errorf("failed to pack deposit: %w", err)
	}
	return c.transact(ctx, "deposit", data, call.Value)
}

// Withdraw sends withdraw(...) and waits for the receipt.
func (c *TwisterClient) Withdraw(ctx context.Context, call WithdrawCall) (*TxReceipt, error) {
	auxData := call.AuxData
	if auxData == nil {
		auxData = []byte{}
	}
	data, err := c.abi.Pack("withdraw",
		[32]byte(call.Nullifier),
		[32]byte(call.Leaf),
		[32]byte(call.MerkleRoot),
		call.Receiver,
		call.Relayer,
		call.Amount,
		call.Proof,
		auxData,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to pack withdraw: %w", err)
	}
	return c.transact(ctx, "withdraw", data, big.NewInt(0))
}

func (c *TwisterClient) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	raw, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &c.address, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", method, err)
	}
	out, err := c.abi.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s returned no values", method)
	}
	return out, nil
}

func (c *TwisterClient) transact(ctx context.Context, method string, data []byte, value *big.Int) (*TxReceipt, error) {
	if c.key == nil {
		return nil, fmt.Errorf("%w: no wallet configured for %s", twtypes.ErrSubmissionFailure, method)
	}
	if value == nil {
		value = big.NewInt(0)
	}

	// eth_call first so a revert surfaces its reason instead of a bare status 0
	msg := ethereum.CallMsg{From: c.from, To: &c.address, Value: value, Data: data}
	if _, err := c.backend.CallContract(ctx, msg, nil); err != nil {
		return nil, classifyRevert(method, err)
	}

	nonce, err := c.backend.PendingNonceAt(ctx, c.from)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get nonce: %v", twtypes.ErrSubmissionFailure, err)
	}
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		gasPrice = big.NewInt(5000000000) // 5 Gwei
	} else {
		gasPrice = new(big.Int).Div(new(big.Int).Mul(gasPrice, big.NewInt(120)), big.NewInt(100))
	}
	gasLimit := c.gasLimit
	if gasLimit == 0 {
		gasLimit = 3000000
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &c.address,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.NewEIP155Signer(c.chainID), c.key)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to sign transaction: %v", twtypes.ErrSubmissionFailure, err)
	}

	logFields := logrus.Fields{"method": method, "tx_hash": signed.Hash().Hex(), "nonce": nonce, "gas_limit": gasLimit}
	c.logger.WithFields(logFields).Info("[Twister] Sending transaction")

	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return nil, classifyRevert(method, err)
	}

	receipt, err := c.waitMined(ctx, signed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s not confirmed: %v", twtypes.ErrSubmissionFailure, method, signed.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: %s %s reverted in block %d", twtypes.ErrSubmissionFailure, method, signed.Hash().Hex(), receipt.BlockNumber.Uint64())
	}

	c.logger.WithFields(logFields).WithField("block", receipt.BlockNumber.Uint64()).Info("[Twister] Transaction confirmed")
	return &TxReceipt{
		TxHash:      signed.Hash().Hex(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
	}, nil
}

// waitMined uses bind.WaitMined and falls back to polling TransactionReceipt until waitFor elapses.
func (c *TwisterClient) waitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	deadline := time.Now().Add(c.waitFor)

	mineCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	receipt, err := bind.WaitMined(mineCtx, c.backend, tx)
	cancel()
	if err == nil && receipt != nil {
		return receipt, nil
	}

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			receipt, err = c.backend.TransactionReceipt(ctx, tx.Hash())
			if err == nil && receipt != nil {
				return receipt, nil
			}
		}
	}
	if err == nil {
		err = errors.New("receipt not found")
	}
	return nil, fmt.Errorf("confirmation timeout after %v: %w", c.waitFor, err)
}

var alreadySpentMarkers = []string{
	"nullifier already",
	"nullifier used",
	"already spent",
	"already used",
	"leaf already",
	"commitment already",
	"already exist",
}

// classifyRevert maps double-spend reverts to ErrAlreadySpent and everything else to
// ErrSubmissionFailure, keeping the node's reason text.
func classifyRevert(method string, err error) error {
	reason := strings.ToLower(err.Error())
	for _, marker := range alreadySpentMarkers {
		if strings.Contains(reason, marker) {
			return fmt.Errorf("%w: %s rejected: %v", twtypes.ErrAlreadySpent, method, err)
		}
	}
	return fmt.Errorf("%w: %s rejected: %v", twtypes.ErrSubmissionFailure, method, err)
}
