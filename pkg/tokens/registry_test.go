package tokens

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commerce-swap/pkg/types"
)

type fakeChainReader struct {
	nativeBalance *big.Int
	erc20Balances map[common.Address]*big.Int
	callCount     int
}

func (f *fakeChainReader) BalanceAt(_ context.Context, _ common.Address, _ *big.Int) (*big.Int, error) {
	return f.nativeBalance, nil
}

func (f *fakeChainReader) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.callCount++
	balance, ok := f.erc20Balances[*msg.To]
	if !ok {
		balance = big.NewInt(0)
	}
	return common.LeftPadBytes(balance.Bytes(), 32), nil
}

func testTokens() []types.TokenInfo {
	return []types.TokenInfo{
		{
			Address:  "native",
			Symbol:   "ETH",
			Name:     "Ethereum",
			Decimals: 18,
			Price:    2500,
			Category: types.CategoryNative,
		},
		{
			Address:  "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
			Symbol:   "USDC",
			Name:     "USD Coin",
			Decimals: 6,
			Price:    1,
			Category: types.CategoryStablecoin,
		},
	}
}

func TestRegistryFind(t *testing.T) {
	r := NewRegistry(testTokens())

	token, err := r.Find("usdc")
	require.NoError(t, err)
	assert.Equal(t, "USDC", token.Symbol)

	// Partial match
	token, err = r.Find("USD")
	require.NoError(t, err)
	assert.Equal(t, "USDC", token.Symbol)

	_, err = r.Find("DOGE")
	assert.Error(t, err)
}

func TestRegistryListPreservesOrder(t *testing.T) {
	r := NewRegistry(testTokens())

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "ETH", list[0].Symbol)
	assert.Equal(t, "USDC", list[1].Symbol)
}

func TestRegistryDropsDuplicateSymbols(t *testing.T) {
	configured := testTokens()
	configured = append(configured, types.TokenInfo{Symbol: "eth", Name: "Duplicate"})

	r := NewRegistry(configured)
	assert.Equal(t, 2, r.Count())

	token, err := r.Find("ETH")
	require.NoError(t, err)
	assert.Equal(t, "Ethereum", token.Name)
}

func TestRefreshBalances(t *testing.T) {
	r := NewRegistry(testTokens())
	usdcAddress := common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")

	reader := &fakeChainReader{
		nativeBalance: big.NewInt(2e18), // 2 ETH
		erc20Balances: map[common.Address]*big.Int{
			usdcAddress: big.NewInt(150_000_000), // 150 USDC
		},
	}

	owner := common.HexToAddress("0x1111111111111111111111111111111111111111")
	err := r.RefreshBalances(context.Background(), reader, owner)
	require.NoError(t, err)

	eth, err := r.Find("ETH")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(2e18).String(), eth.Balance)
	assert.InDelta(t, 5000, eth.BalanceUSD, 0.01)

	usdc, err := r.Find("USDC")
	require.NoError(t, err)
	assert.Equal(t, "150.000000", usdc.BalanceFormatted)
	assert.InDelta(t, 150, usdc.BalanceUSD, 0.0001)

	// Only the ERC-20 token goes through CallContract
	assert.Equal(t, 1, reader.callCount)
}

func TestCategoryFromString(t *testing.T) {
	assert.Equal(t, types.CategoryNative, CategoryFromString("Native"))
	assert.Equal(t, types.CategoryStablecoin, CategoryFromString("stablecoin"))
	assert.Equal(t, types.CategoryStablecoin, CategoryFromString("stable"))
	assert.Equal(t, types.CategoryOther, CategoryFromString("meme"))
	assert.Equal(t, types.CategoryOther, CategoryFromString(""))
}
