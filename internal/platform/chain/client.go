// Package chain wraps the blockchain RPC collaborator. It only knows how to
// fetch fill logs for the configured exchange contracts and to resolve block
// timestamps; retry policy lives in the pipeline.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alanyoungcy/polyindexer/internal/ctf"
	"github.com/alanyoungcy/polyindexer/internal/domain"
)

// Client is an ethclient wrapper scoped to a set of exchange contracts.
type Client struct {
	eth       *ethclient.Client
	exchanges []common.Address
}

// Dial connects to the given RPC endpoint.
func Dial(ctx context.Context, rpcURL string, exchanges []common.Address) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial rpc %s: %w", rpcURL, err)
	}
	return &Client{eth: eth, exchanges: exchanges}, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// Exchanges returns the exchange contract addresses the client filters on.
func (c *Client) Exchanges() []common.Address {
	return c.exchanges
}

// FilterOrderFills returns all OrderFilled logs emitted by the exchange
// contracts in [fromBlock, toBlock], inclusive. The node delivers logs in
// (blockNumber, logIndex) ascending order, which the pipeline treats as the
// on-chain total order. Failures are classified transient; the caller
// retries with backoff.
func (c *Client) FilterOrderFills(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: c.exchanges,
		Topics:    [][]common.Hash{{ctf.OrderFilledTopic}},
	}

	logs, err := c.eth.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("chain: filter logs [%d,%d]: %w: %w", fromBlock, toBlock, domain.ErrRPCTransient, err)
	}
	return logs, nil
}

// BlockTime returns the timestamp of the given block.
func (c *Client) BlockTime(ctx context.Context, blockNumber uint64) (time.Time, error) {
	header, err := c.eth.HeaderByNumber(ctx, new(big.Int).SetUint64(blockNumber))
	if err != nil {
		return time.Time{}, fmt.Errorf("chain: header %d: %w: %w", blockNumber, domain.ErrRPCTransient, err)
	}
	return time.Unix(int64(header.Time), 0).UTC(), nil
}

// HeadBlock returns the current chain head number.
func (c *Client) HeadBlock(ctx context.Context) (uint64, error) {
	n, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("chain: head block: %w: %w", domain.ErrRPCTransient, err)
	}
	return n, nil
}

// TxBlock returns the block number a transaction was mined in, used for
// single-transaction indexing.
func (c *Client) TxBlock(ctx context.Context, txHash string) (uint64, error) {
	receipt, err := c.eth.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		return 0, fmt.Errorf("chain: receipt %s: %w: %w", txHash, domain.ErrRPCTransient, err)
	}
	return receipt.BlockNumber.Uint64(), nil
}
