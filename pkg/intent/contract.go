package intent

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// Commerce contract surface used by the swap pipeline
const commerceABI = `[
	{"constant":false,"inputs":[{"name":"paymentType","type":"uint8"},{"name":"creator","type":"address"},{"name":"contentId","type":"uint256"},{"name":"paymentToken","type":"address"},{"name":"maxSlippage","type":"uint256"},{"name":"deadline","type":"uint256"}],"name":"createPaymentIntent","outputs":[{"name":"intentId","type":"uint256"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"intentId","type":"uint256"}],"name":"executePaymentWithSignature","outputs":[],"type":"function"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"intentId","type":"uint256"},{"indexed":true,"name":"payer","type":"address"},{"indexed":false,"name":"paymentType","type":"uint8"}],"name":"PaymentIntentCreated","type":"event"}
]`

// Codec packs and unpacks commerce contract calls and events
type Codec struct {
	abi     abi.ABI
	address common.Address
}

// NewCodec creates a codec bound to the commerce contract address
func NewCodec(contract common.Address) (*Codec, error) {
	parsedABI, err := abi.JSON(strings.NewReader(commerceABI))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse commerce ABI")
	}

	return &Codec{
		abi:     parsedABI,
		address: contract,
	}, nil
}

// Address returns the commerce contract address
func (c *Codec) Address() common.Address {
	return c.address
}

// PackCreateIntent encodes a createPaymentIntent call
func (c *Codec) PackCreateIntent(pi PaymentIntent) ([]byte, error) {
	data, err := c.abi.Pack("createPaymentIntent",
		pi.PaymentType,
		pi.Creator,
		pi.ContentID,
		pi.PaymentToken,
		pi.MaxSlippage,
		pi.Deadline,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack createPaymentIntent data")
	}
	return data, nil
}

// PackExecuteIntent encodes an executePaymentWithSignature call. Only the
// intent id is transmitted; the signature is registered against the intent
// by the backend before this call is made.
func (c *Codec) PackExecuteIntent(intentID *big.Int) ([]byte, error) {
	data, err := c.abi.Pack("executePaymentWithSignature", intentID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack executePaymentWithSignature data")
	}
	return data, nil
}

// ExtractIntentID finds the PaymentIntentCreated event in a receipt and
// returns the emitted intent id. It returns an error when no matching log
// exists; extraction is not retried.
func (c *Codec) ExtractIntentID(receipt *ethtypes.Receipt) (*big.Int, error) {
	if receipt == nil {
		return nil, errors.New("nil receipt")
	}

	eventID := c.abi.Events["PaymentIntentCreated"].ID
	for _, log := range receipt.Logs {
		if log == nil || log.Address != c.address {
			continue
		}
		if len(log.Topics) < 2 || log.Topics[0] != eventID {
			continue
		}
		return new(big.Int).SetBytes(log.Topics[1].Bytes()), nil
	}

	return nil, errors.New("no PaymentIntentCreated event in receipt")
}

// IntentHash derives the hash the backend signs for an intent. The same
// derivation runs on the signature service, so both sides must agree on it.
func IntentHash(intentID *big.Int, contract, payer common.Address) common.Hash {
	return crypto.Keccak256Hash(
		common.LeftPadBytes(intentID.Bytes(), 32),
		contract.Bytes(),
		payer.Bytes(),
	)
}
