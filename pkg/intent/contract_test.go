package intent

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testContract = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testPayer    = common.HexToAddress("0x742d35Cc6634C0532925a3b844Bc454e4438f44e")
	testToken    = common.HexToAddress("0x4200000000000000000000000000000000000006")
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	codec, err := NewCodec(testContract)
	require.NoError(t, err)
	return codec
}

// intentCreatedReceipt builds a receipt carrying a PaymentIntentCreated log
func intentCreatedReceipt(codec *Codec, intentID *big.Int) *ethtypes.Receipt {
	eventID := codec.abi.Events["PaymentIntentCreated"].ID
	return &ethtypes.Receipt{
		Status: 1,
		Logs: []*ethtypes.Log{
			{
				Address: codec.address,
				Topics: []common.Hash{
					eventID,
					common.BigToHash(intentID),
					common.BytesToHash(testPayer.Bytes()),
				},
			},
		},
	}
}

func TestPackCreateIntent(t *testing.T) {
	codec := newTestCodec(t)

	pi := NewSwapIntent(testPayer, testToken, 0.5, testNow())
	data, err := codec.PackCreateIntent(pi)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	// Selector plus six words
	assert.Len(t, data, 4+6*32)
}

func TestPackExecuteIntent(t *testing.T) {
	codec := newTestCodec(t)

	data, err := codec.PackExecuteIntent(big.NewInt(42))
	require.NoError(t, err)
	assert.Len(t, data, 4+32)
}

func TestExtractIntentID(t *testing.T) {
	codec := newTestCodec(t)

	receipt := intentCreatedReceipt(codec, big.NewInt(7001))
	intentID, err := codec.ExtractIntentID(receipt)
	require.NoError(t, err)
	assert.Equal(t, int64(7001), intentID.Int64())
}

func TestExtractIntentIDNoLogs(t *testing.T) {
	codec := newTestCodec(t)

	_, err := codec.ExtractIntentID(&ethtypes.Receipt{Status: 1})
	assert.Error(t, err)
}

func TestExtractIntentIDIgnoresForeignLogs(t *testing.T) {
	codec := newTestCodec(t)
	eventID := codec.abi.Events["PaymentIntentCreated"].ID

	receipt := &ethtypes.Receipt{
		Status: 1,
		Logs: []*ethtypes.Log{
			{
				// Right event, wrong contract
				Address: common.HexToAddress("0x2222222222222222222222222222222222222222"),
				Topics:  []common.Hash{eventID, common.BigToHash(big.NewInt(1))},
			},
			{
				// Right contract, unrelated event
				Address: codec.address,
				Topics:  []common.Hash{common.HexToHash("0xdead"), common.BigToHash(big.NewInt(2))},
			},
		},
	}

	_, err := codec.ExtractIntentID(receipt)
	assert.Error(t, err)
}

func TestIntentHashDeterministic(t *testing.T) {
	a := IntentHash(big.NewInt(1), testContract, testPayer)
	b := IntentHash(big.NewInt(1), testContract, testPayer)
	c := IntentHash(big.NewInt(2), testContract, testPayer)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
