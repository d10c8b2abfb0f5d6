package pricing

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Price oracle read function ABI
const priceOracleABI = `[{"constant":true,"inputs":[{"name":"tokenIn","type":"address"},{"name":"tokenOut","type":"address"},{"name":"amountIn","type":"uint256"},{"name":"fee","type":"uint24"}],"name":"getTokenPrice","outputs":[{"name":"amountOut","type":"uint256"}],"stateMutability":"view","type":"function"}]`

// ContractCaller is the subset of the eth client used for oracle reads
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// OracleQuoteProvider reads quotes from the on-chain price oracle
type OracleQuoteProvider struct {
	caller ContractCaller
	oracle common.Address
	abi    abi.ABI
}

// NewOracleQuoteProvider creates a quote provider bound to the oracle contract
func NewOracleQuoteProvider(caller ContractCaller, oracle common.Address) (*OracleQuoteProvider, error) {
	parsedABI, err := abi.JSON(strings.NewReader(priceOracleABI))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse price oracle ABI")
	}

	return &OracleQuoteProvider{
		caller: caller,
		oracle: oracle,
		abi:    parsedABI,
	}, nil
}

// Quote performs a single getTokenPrice read at the given fee tier
func (p *OracleQuoteProvider) Quote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int, feeTier int64) (*big.Int, error) {
	data, err := p.abi.Pack("getTokenPrice", tokenIn, tokenOut, amountIn, big.NewInt(feeTier))
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack getTokenPrice data")
	}

	msg := ethereum.CallMsg{
		To:   &p.oracle,
		Data: data,
	}

	result, err := p.caller.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to call getTokenPrice")
	}
	if len(result) == 0 {
		return nil, errors.New("oracle returned empty result")
	}

	values, err := p.abi.Unpack("getTokenPrice", result)
	if err != nil {
		return nil, errors.Wrap(err, "failed to unpack getTokenPrice result")
	}
	if len(values) == 0 {
		return nil, errors.New("oracle returned no values")
	}

	amountOut, ok := values[0].(*big.Int)
	if !ok {
		return nil, errors.New("unexpected oracle result type")
	}

	return amountOut, nil
}
