package intent

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
)

const receiptPollInterval = 2 * time.Second

// Backend abstracts the chain operations the executor needs, so tests can
// drive the state machine without a node
type Backend interface {
	// From returns the transacting address
	From() common.Address
	// SubmitTransaction signs and broadcasts a contract call
	SubmitTransaction(ctx context.Context, to common.Address, data []byte) (common.Hash, error)
	// WaitMined blocks until the transaction is mined or the context ends
	WaitMined(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
}

// EVMBackend submits transactions through an eth client
type EVMBackend struct {
	client     *ethclient.Client
	privateKey *ecdsa.PrivateKey
	from       common.Address
	chainID    *big.Int
}

// NewEVMBackend connects to the RPC endpoint and derives the sender address
func NewEVMBackend(rpcURL, privateKeyHex string, chainID int64) (*EVMBackend, error) {
	if rpcURL == "" {
		return nil, errors.New("RPC URL is required")
	}
	if privateKeyHex == "" {
		return nil, errors.New("private key is required")
	}

	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to RPC endpoint")
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid private key")
	}

	return &EVMBackend{
		client:     client,
		privateKey: privateKey,
		from:       crypto.PubkeyToAddress(privateKey.PublicKey),
		chainID:    big.NewInt(chainID),
	}, nil
}

// From returns the transacting address
func (b *EVMBackend) From() common.Address {
	return b.from
}

// Client exposes the underlying eth client for read-only queries
func (b *EVMBackend) Client() *ethclient.Client {
	return b.client
}

// SubmitTransaction builds, signs, and broadcasts a contract call
func (b *EVMBackend) SubmitTransaction(ctx context.Context, to common.Address, data []byte) (common.Hash, error) {
	nonce, err := b.client.PendingNonceAt(ctx, b.from)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to get nonce")
	}

	gasPrice, err := b.client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to get gas price")
	}

	// Estimate gas with a 20% buffer, falling back to a fixed limit
	gasLimit := uint64(300000)
	msg := ethereum.CallMsg{
		From: b.from,
		To:   &to,
		Data: data,
	}
	if estimated, err := b.client.EstimateGas(ctx, msg); err == nil {
		gasLimit = estimated * 120 / 100
	}

	tx := ethtypes.NewTransaction(
		nonce,
		to,
		big.NewInt(0),
		gasLimit,
		gasPrice,
		data,
	)

	signedTx, err := ethtypes.SignTx(tx, ethtypes.NewEIP155Signer(b.chainID), b.privateKey)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to sign transaction")
	}

	if err := b.client.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to send transaction")
	}

	return signedTx.Hash(), nil
}

// WaitMined polls for the receipt until the transaction is mined or the
// context is cancelled
func (b *EVMBackend) WaitMined(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := b.client.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return nil, errors.Wrap(err, "failed to get transaction receipt")
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close closes the client connection
func (b *EVMBackend) Close() {
	if b.client != nil {
		b.client.Close()
	}
}
