// Package account is the adapter for account-model chains served by a TronGrid style HTTP API.
package account

import (
	"context"
	"encoding/hex"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fbsobreira/gotron-sdk/pkg/address"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github/chapool/go-custody/internal/wallet/chain"
	"github/chapool/go-custody/internal/wallet/chain/rest"
)

const (
	transferMethodID  = "a9059cbb" // transfer(address,uint256)
	abiWordLength     = 32
	contractSuccess   = "SUCCESS"
	typeTransfer      = "TransferContract"
	typeTriggerSmart  = "TriggerSmartContract"
	apiKeyHeader      = "TRON-PRO-API-KEY"
	transferCallBytes = 4 + 2*abiWordLength
)

type Client struct {
	api *rest.Client
}

var _ chain.Client = (*Client)(nil)

func NewClient(urls []string, apiKey string, timeout time.Duration) (*Client, error) {
	var headers map[string]string
	if apiKey != "" {
		headers = map[string]string{apiKeyHeader: apiKey}
	}

	api, err := rest.New(urls, timeout, headers)
	if err != nil {
		return nil, err
	}

	return &Client{api: api}, nil
}

// NewFactory returns a chain.ClientFactory for account-model catalog entries.
func NewFactory(apiKey string, timeout time.Duration) chain.ClientFactory {
	return func(c *chain.Chain) (chain.Client, error) {
		return NewClient(chain.ParseRPCURLs(c.RPCURLs), apiKey, timeout)
	}
}

type contractValue struct {
	OwnerAddress    string `json:"owner_address"`
	ToAddress       string `json:"to_address"`
	ContractAddress string `json:"contract_address"`
	Amount          int64  `json:"amount"`
	Data            string `json:"data"`
}

// Transaction is the JSON form used by /wallet/createtransaction and /wallet/broadcasttransaction.
type Transaction struct {
	TxID       string         `json:"txID"`
	Visible    bool           `json:"visible"`
	RawData    map[string]any `json:"raw_data"`
	RawDataHex string         `json:"raw_data_hex"`
	Signature  []string       `json:"signature,omitempty"`
}

type blockTx struct {
	TxID string `json:"txID"`
	Ret  []struct {
		ContractRet string `json:"contractRet"`
	} `json:"ret"`
	RawData struct {
		Contract []struct {
			Type      string `json:"type"`
			Parameter struct {
				Value contractValue `json:"value"`
			} `json:"parameter"`
		} `json:"contract"`
	} `json:"raw_data"`
}

type block struct {
	BlockID     string `json:"blockID"`
	BlockHeader struct {
		RawData struct {
			Number int64 `json:"number"`
		} `json:"raw_data"`
	} `json:"block_header"`
	Transactions []blockTx `json:"transactions"`
}

func (c *Client) CurrentHeight(ctx context.Context) (int64, error) {
	var b block
	if err := c.api.PostJSON(ctx, "/wallet/getnowblock", map[string]any{}, &b); err != nil {
		return 0, err
	}

	if b.BlockID == "" {
		return 0, chain.Unavailable(errors.New("empty block"), "getnowblock")
	}

	return b.BlockHeader.RawData.Number, nil
}

func (c *Client) TransfersInBlock(ctx context.Context, height int64) ([]chain.RawTransfer, error) {
	var b block
	if err := c.api.PostJSON(ctx, "/wallet/getblockbynum", map[string]any{"num": height, "visible": true}, &b); err != nil {
		return nil, err
	}

	if b.BlockID == "" {
		return nil, errors.Wrapf(chain.ErrNotFound, "block %d", height)
	}

	transfers := []chain.RawTransfer{}
	for i := range b.Transactions {
		tx := &b.Transactions[i]
		if len(tx.Ret) == 0 || tx.Ret[0].ContractRet != contractSuccess || len(tx.RawData.Contract) == 0 {
			continue
		}

		contract := tx.RawData.Contract[0]
		value := contract.Parameter.Value

		switch contract.Type {
		case typeTransfer:
			if value.Amount <= 0 {
				continue
			}
			transfers = append(transfers, chain.RawTransfer{
				TxHash: tx.TxID,
				From:   value.OwnerAddress,
				To:     value.ToAddress,
				Amount: big.NewInt(value.Amount),
				Height: height,
			})
		case typeTriggerSmart:
			to, amount, ok := decodeTransferCall(value.Data)
			if !ok {
				continue
			}
			transfers = append(transfers, chain.RawTransfer{
				TxHash:   tx.TxID,
				From:     value.OwnerAddress,
				To:       to,
				Amount:   amount,
				TokenRef: value.ContractAddress,
				Height:   height,
			})
		}
	}

	return transfers, nil
}

// decodeTransferCall decodes transfer(address,uint256) call data into a base58 recipient and amount.
func decodeTransferCall(data string) (string, *big.Int, bool) {
	raw, err := hex.DecodeString(strings.TrimPrefix(data, "0x"))
	if err != nil || len(raw) < transferCallBytes || hex.EncodeToString(raw[:4]) != transferMethodID {
		return "", nil, false
	}

	to := raw[4+abiWordLength-common.AddressLength : 4+abiWordLength]
	amount := new(big.Int).SetBytes(raw[4+abiWordLength : transferCallBytes])

	return HexToBase58(append([]byte{address.TronBytePrefix}, to...)), amount, true
}

// EncodeTransferCall returns the transfer(address,uint256) parameter block for a base58 recipient.
func EncodeTransferCall(to string, amount *big.Int) (string, error) {
	addr, err := address.Base58ToAddress(to)
	if err != nil {
		return "", errors.Wrapf(err, "invalid tron address %q", to)
	}

	param := common.LeftPadBytes(addr.Bytes()[1:], abiWordLength)
	param = append(param, common.LeftPadBytes(amount.Bytes(), abiWordLength)...)

	return hex.EncodeToString(param), nil
}

// HexToBase58 converts a 21 byte 0x41 prefixed address to its base58check form.
func HexToBase58(raw []byte) string {
	return address.Address(raw).String()
}

type txInfo struct {
	ID          string `json:"id"`
	BlockNumber int64  `json:"blockNumber"`
	Fee         int64  `json:"fee"`
	Result      string `json:"result"`
	Receipt     struct {
		Result string `json:"result"`
	} `json:"receipt"`
}

// Succeeded reports whether an included transaction executed successfully.
func (i *txInfo) Succeeded() bool {
	if i.Result == "FAILED" {
		return false
	}

	return i.Receipt.Result == "" || i.Receipt.Result == contractSuccess
}

func (c *Client) transactionInfo(ctx context.Context, txID string) (*txInfo, error) {
	var info txInfo
	if err := c.api.PostJSON(ctx, "/wallet/gettransactioninfobyid", map[string]any{"value": txID}, &info); err != nil {
		return nil, err
	}

	return &info, nil
}

func (c *Client) ConfirmationsOf(ctx context.Context, txHash string) (int64, error) {
	info, err := c.transactionInfo(ctx, txHash)
	if err != nil {
		return 0, err
	}

	if info.ID == "" {
		var tx Transaction
		if err := c.api.PostJSON(ctx, "/wallet/gettransactionbyid", map[string]any{"value": txHash, "visible": true}, &tx); err != nil {
			return 0, err
		}
		if tx.TxID == "" {
			return 0, errors.Wrapf(chain.ErrNotFound, "tx %s", txHash)
		}
		return 0, nil
	}

	head, err := c.CurrentHeight(ctx)
	if err != nil {
		return 0, err
	}

	return max(head-info.BlockNumber+1, 0), nil
}

// Outcome returns whether txID is included and, if so, whether it succeeded.
func (c *Client) Outcome(ctx context.Context, txID string) (included bool, succeeded bool, err error) {
	info, err := c.transactionInfo(ctx, txID)
	if err != nil {
		return false, false, err
	}

	if info.ID == "" {
		return false, false, nil
	}

	return true, info.Succeeded(), nil
}

func (c *Client) BalanceOf(ctx context.Context, addr string, tokenRef string) (*big.Int, error) {
	owner, err := address.Base58ToAddress(addr)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid tron address %q", addr)
	}

	if tokenRef == "" {
		var acc struct {
			Balance int64 `json:"balance"`
		}
		if err := c.api.PostJSON(ctx, "/wallet/getaccount", map[string]any{"address": addr, "visible": true}, &acc); err != nil {
			return nil, err
		}
		return big.NewInt(acc.Balance), nil
	}

	param := hex.EncodeToString(common.LeftPadBytes(owner.Bytes()[1:], abiWordLength))

	var res struct {
		ConstantResult []string `json:"constant_result"`
	}
	err = c.api.PostJSON(ctx, "/wallet/triggerconstantcontract", map[string]any{
		"owner_address":     addr,
		"contract_address":  tokenRef,
		"function_selector": "balanceOf(address)",
		"parameter":         param,
		"visible":           true,
	}, &res)
	if err != nil {
		return nil, err
	}

	if len(res.ConstantResult) == 0 {
		return big.NewInt(0), nil
	}

	raw, err := hex.DecodeString(res.ConstantResult[0])
	if err != nil {
		return nil, errors.Wrap(err, "invalid balanceOf result")
	}

	return new(big.Int).SetBytes(raw), nil
}

// CreateTransfer asks the node to build an unsigned native transfer.
func (c *Client) CreateTransfer(ctx context.Context, from, to string, amount int64) (*Transaction, error) {
	var tx Transaction
	err := c.api.PostJSON(ctx, "/wallet/createtransaction", map[string]any{
		"owner_address": from,
		"to_address":    to,
		"amount":        amount,
		"visible":       true,
	}, &tx)
	if err != nil {
		return nil, err
	}

	if tx.TxID == "" {
		return nil, errors.New("node returned no transaction")
	}

	return &tx, nil
}

// CreateTokenTransfer asks the node to build an unsigned TRC20 transfer call.
func (c *Client) CreateTokenTransfer(ctx context.Context, from, contract, to string, amount *big.Int, feeLimit int64) (*Transaction, error) {
	param, err := EncodeTransferCall(to, amount)
	if err != nil {
		return nil, err
	}

	var res struct {
		Result struct {
			Result  bool   `json:"result"`
			Message string `json:"message"`
		} `json:"result"`
		Transaction Transaction `json:"transaction"`
	}
	err = c.api.PostJSON(ctx, "/wallet/triggersmartcontract", map[string]any{
		"owner_address":     from,
		"contract_address":  contract,
		"function_selector": "transfer(address,uint256)",
		"parameter":         param,
		"fee_limit":         feeLimit,
		"call_value":        0,
		"visible":           true,
	}, &res)
	if err != nil {
		return nil, err
	}

	if !res.Result.Result || res.Transaction.TxID == "" {
		return nil, errors.Errorf("trigger smart contract rejected: %s", decodeMessage(res.Result.Message))
	}

	return &res.Transaction, nil
}

// Broadcast submits a signed transaction.
func (c *Client) Broadcast(ctx context.Context, tx *Transaction) (string, error) {
	var res struct {
		Result  bool   `json:"result"`
		TxID    string `json:"txid"`
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := c.api.PostJSON(ctx, "/wallet/broadcasttransaction", tx, &res); err != nil {
		return "", err
	}

	if !res.Result {
		return "", errors.Errorf("broadcast rejected: %s %s", res.Code, decodeMessage(res.Message))
	}

	if res.TxID == "" {
		res.TxID = tx.TxID
	}

	log.Debug().Str("tx_hash", res.TxID).Msg("Tron transaction broadcast")

	return res.TxID, nil
}

// TronGrid returns error messages hex encoded.
func decodeMessage(msg string) string {
	if raw, err := hex.DecodeString(msg); err == nil {
		return string(raw)
	}

	return msg
}
