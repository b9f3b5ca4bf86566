// Package utxo is the adapter for Bitcoin-like chains served by an Esplora REST API.
package utxo

import (
	"context"
	"math/big"
	"strconv"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/pkg/errors"
	"github/chapool/go-custody/internal/wallet/chain"
	"github/chapool/go-custody/internal/wallet/chain/rest"
)

// Esplora pages block transactions 25 at a time.
const blockTxsPageSize = 25

type Client struct {
	api    *rest.Client
	params *chaincfg.Params
}

var _ chain.Client = (*Client)(nil)

func NewClient(urls []string, network string, timeout time.Duration) (*Client, error) {
	params, err := NetworkParams(network)
	if err != nil {
		return nil, err
	}

	api, err := rest.New(urls, timeout, nil)
	if err != nil {
		return nil, err
	}

	return &Client{api: api, params: params}, nil
}

// NewFactory returns a chain.ClientFactory for UTXO catalog entries.
func NewFactory(timeout time.Duration) chain.ClientFactory {
	return func(c *chain.Chain) (chain.Client, error) {
		return NewClient(chain.ParseRPCURLs(c.RPCURLs), c.Network, timeout)
	}
}

// NetworkParams maps a catalog network name to btcd chain parameters.
func NetworkParams(network string) (*chaincfg.Params, error) {
	switch network {
	case "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, errors.Errorf("unsupported utxo network %q", network)
	}
}

func (c *Client) Params() *chaincfg.Params {
	return c.params
}

type txStatus struct {
	Confirmed   bool  `json:"confirmed"`
	BlockHeight int64 `json:"block_height"`
}

type tx struct {
	TxID string `json:"txid"`
	Vin  []struct {
		IsCoinbase bool `json:"is_coinbase"`
		Prevout    *struct {
			Address string `json:"scriptpubkey_address"`
		} `json:"prevout"`
	} `json:"vin"`
	Vout []struct {
		Address string `json:"scriptpubkey_address"`
		Value   int64  `json:"value"`
	} `json:"vout"`
	Status txStatus `json:"status"`
}

// UTXO is a spendable output owned by an address.
type UTXO struct {
	TxID   string   `json:"txid"`
	Vout   uint32   `json:"vout"`
	Value  int64    `json:"value"`
	Status txStatus `json:"status"`
}

func (c *Client) CurrentHeight(ctx context.Context) (int64, error) {
	text, err := c.api.GetText(ctx, "/blocks/tip/height")
	if err != nil {
		return 0, err
	}

	height, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid tip height %q", text)
	}

	return height, nil
}

func (c *Client) TransfersInBlock(ctx context.Context, height int64) ([]chain.RawTransfer, error) {
	hash, err := c.api.GetText(ctx, "/block-height/"+strconv.FormatInt(height, 10))
	if err != nil {
		return nil, err
	}

	var block struct {
		TxCount int `json:"tx_count"`
	}
	if err := c.api.GetJSON(ctx, "/block/"+hash, &block); err != nil {
		return nil, err
	}

	transfers := []chain.RawTransfer{}
	for start := 0; start < block.TxCount; start += blockTxsPageSize {
		var page []tx
		if err := c.api.GetJSON(ctx, "/block/"+hash+"/txs/"+strconv.Itoa(start), &page); err != nil {
			return nil, err
		}

		for i := range page {
			transfers = append(transfers, outputsOf(&page[i], height)...)
		}
	}

	return transfers, nil
}

// outputsOf sums the outputs of t per receiving address. Outputs paying back to an input
// address are change and skipped.
func outputsOf(t *tx, height int64) []chain.RawTransfer {
	from := ""
	inputs := map[string]struct{}{}
	for _, in := range t.Vin {
		if in.Prevout == nil || in.Prevout.Address == "" {
			continue
		}
		if from == "" {
			from = in.Prevout.Address
		}
		inputs[in.Prevout.Address] = struct{}{}
	}

	order := []string{}
	sums := map[string]int64{}
	for _, out := range t.Vout {
		if out.Address == "" || out.Value <= 0 {
			continue
		}
		if _, change := inputs[out.Address]; change {
			continue
		}
		if _, ok := sums[out.Address]; !ok {
			order = append(order, out.Address)
		}
		sums[out.Address] += out.Value
	}

	transfers := make([]chain.RawTransfer, 0, len(order))
	for _, addr := range order {
		transfers = append(transfers, chain.RawTransfer{
			TxHash: t.TxID,
			From:   from,
			To:     addr,
			Amount: big.NewInt(sums[addr]),
			Height: height,
		})
	}

	return transfers
}

func (c *Client) ConfirmationsOf(ctx context.Context, txHash string) (int64, error) {
	var status txStatus
	if err := c.api.GetJSON(ctx, "/tx/"+txHash+"/status", &status); err != nil {
		return 0, err
	}

	if !status.Confirmed {
		return 0, nil
	}

	head, err := c.CurrentHeight(ctx)
	if err != nil {
		return 0, err
	}

	return max(head-status.BlockHeight+1, 0), nil
}

func (c *Client) BalanceOf(ctx context.Context, address string, tokenRef string) (*big.Int, error) {
	if tokenRef != "" {
		return nil, errors.Errorf("utxo chains have no token %q", tokenRef)
	}

	if _, err := btcutil.DecodeAddress(address, c.params); err != nil {
		return nil, errors.Wrapf(err, "invalid address %q", address)
	}

	var info struct {
		ChainStats struct {
			Funded int64 `json:"funded_txo_sum"`
			Spent  int64 `json:"spent_txo_sum"`
		} `json:"chain_stats"`
	}
	if err := c.api.GetJSON(ctx, "/address/"+address, &info); err != nil {
		return nil, err
	}

	return big.NewInt(info.ChainStats.Funded - info.ChainStats.Spent), nil
}

type outspend struct {
	Spent  bool     `json:"spent"`
	TxID   string   `json:"txid"`
	Status txStatus `json:"status"`
}

// OutputsTo lists the outputs of txid paying address that no confirmed transaction spent.
// Outputs spent only in the mempool are kept, a replacement may spend them again.
func (c *Client) OutputsTo(ctx context.Context, txid, address string) ([]UTXO, error) {
	var t tx
	if err := c.api.GetJSON(ctx, "/tx/"+txid, &t); err != nil {
		return nil, err
	}

	var spends []outspend
	if err := c.api.GetJSON(ctx, "/tx/"+txid+"/outspends", &spends); err != nil {
		return nil, err
	}

	outputs := []UTXO{}
	for i, out := range t.Vout {
		if out.Address != address || out.Value <= 0 {
			continue
		}
		if i < len(spends) && spends[i].Spent && spends[i].Status.Confirmed {
			continue
		}

		outputs = append(outputs, UTXO{
			TxID:   t.TxID,
			Vout:   uint32(i), //nolint:gosec // output index of a decoded transaction
			Value:  out.Value,
			Status: t.Status,
		})
	}

	return outputs, nil
}

// FeeRate returns the sat/vB estimate for confirmation within target blocks.
func (c *Client) FeeRate(ctx context.Context, target int) (int64, error) {
	var estimates map[string]float64
	if err := c.api.GetJSON(ctx, "/fee-estimates", &estimates); err != nil {
		return 0, err
	}

	for _, t := range []int{target, 6, 3, 1, 12} {
		if fee, ok := estimates[strconv.Itoa(t)]; ok && fee > 0 {
			return max(int64(fee+0.999), 1), nil
		}
	}

	return 0, errors.New("no fee estimates available")
}

// Broadcast submits a raw transaction and returns its txid.
func (c *Client) Broadcast(ctx context.Context, rawHex string) (string, error) {
	return c.api.PostText(ctx, "/tx", rawHex)
}
