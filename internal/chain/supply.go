// Package chain reads the authoritative total supply of a bridged ERC-20
// deployment of the asset directly from an EVM chain.
package chain

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const erc20ABIJSON = `[
{"inputs":[],"name":"totalSupply","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"}
]`

var erc20ABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		panic("failed to parse ERC-20 ABI: " + err.Error())
	}
	erc20ABI = parsed
}

// Options parameterise the supply reader.
type Options struct {
	RPCURL       string
	TokenAddress string
	Timeout      time.Duration
}

// SupplyReader resolves the ERC-20 total supply via an EVM RPC endpoint.
type SupplyReader struct {
	opts      Options
	logger    zerolog.Logger
	client    *ethclient.Client
	clientMux sync.Mutex
}

// NewSupplyReader builds a supply reader.
func NewSupplyReader(opts Options, logger zerolog.Logger) *SupplyReader {
	return &SupplyReader{opts: opts, logger: logger.With().Str("component", "chain_supply").Logger()}
}

// FetchSupply returns the decimal-adjusted total supply and the block number
// it was observed at.
func (r *SupplyReader) FetchSupply(ctx context.Context) (decimal.Decimal, uint64, error) {
	if r.opts.RPCURL == "" {
		return decimal.Decimal{}, 0, errors.New("chain rpc url not configured")
	}
	if r.opts.TokenAddress == "" {
		return decimal.Decimal{}, 0, errors.New("token contract address not configured")
	}

	timeout := r.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := r.getClient(ctx)
	if err != nil {
		return decimal.Decimal{}, 0, err
	}

	addr := common.HexToAddress(r.opts.TokenAddress)

	supplyRaw, err := r.callUint(ctx, client, addr, "totalSupply")
	if err != nil {
		return decimal.Decimal{}, 0, err
	}

	decimalsRaw, err := r.callUint(ctx, client, addr, "decimals")
	if err != nil {
		return decimal.Decimal{}, 0, err
	}

	supply := decimal.NewFromBigInt(supplyRaw, -int32(decimalsRaw.Int64()))

	blockNumber, err := client.BlockNumber(ctx)
	if err != nil {
		return decimal.Decimal{}, 0, err
	}

	return supply, blockNumber, nil
}

func (r *SupplyReader) callUint(ctx context.Context, client *ethclient.Client, addr common.Address, method string) (*big.Int, error) {
	payload, err := erc20ABI.Pack(method)
	if err != nil {
		return nil, err
	}

	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		return nil, err
	}

	outputs, err := erc20ABI.Unpack(method, res)
	if err != nil {
		return nil, err
	}
	if len(outputs) != 1 {
		return nil, errors.New("unexpected " + method + " response")
	}

	switch v := outputs[0].(type) {
	case *big.Int:
		return v, nil
	case uint8:
		return big.NewInt(int64(v)), nil
	default:
		return nil, errors.New("failed to decode " + method + " output")
	}
}

func (r *SupplyReader) getClient(ctx context.Context) (*ethclient.Client, error) {
	r.clientMux.Lock()
	defer r.clientMux.Unlock()

	if r.client != nil {
		return r.client, nil
	}

	client, err := ethclient.DialContext(ctx, r.opts.RPCURL)
	if err != nil {
		return nil, err
	}
	r.client = client
	return client, nil
}
