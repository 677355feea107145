package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/contribmint/contribmint-api/internal/models"
)

const contribMintedABI = `[{"anonymous":false,"type":"event","name":"ContribMinted","inputs":[
{"indexed":true,"name":"minter","type":"address"},
{"indexed":true,"name":"tokenId","type":"uint256"},
{"indexed":false,"name":"projectId","type":"string"},
{"indexed":false,"name":"prId","type":"string"}]}]`

var (
	// ErrTxPending indicates the transaction has no receipt yet.
	ErrTxPending = errors.New("transaction not yet mined")
	// ErrTxFailed indicates the transaction reverted.
	ErrTxFailed = errors.New("transaction reverted")
	// ErrNoRedemption indicates the receipt carries no matching ContribMinted log.
	ErrNoRedemption = errors.New("no matching redemption log in transaction")
)

// ReceiptFetcher is the slice of an Ethereum client needed to confirm redemptions.
type ReceiptFetcher interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// RedemptionVerifier checks that a transaction redeemed a specific contribution.
type RedemptionVerifier struct {
	client   ReceiptFetcher
	contract common.Address
	abi      abi.ABI
	timeout  time.Duration
}

// Dial connects to rpcURL and returns a verifier for the contract at address.
func Dial(ctx context.Context, rpcURL, contract string, timeout time.Duration) (*RedemptionVerifier, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	return NewRedemptionVerifier(client, contract, timeout)
}

// NewRedemptionVerifier wraps an existing receipt source.
func NewRedemptionVerifier(client ReceiptFetcher, contract string, timeout time.Duration) (*RedemptionVerifier, error) {
	if !common.IsHexAddress(contract) {
		return nil, fmt.Errorf("contract %q is not an address", contract)
	}
	parsed, err := abi.JSON(strings.NewReader(contribMintedABI))
	if err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RedemptionVerifier{
		client:   client,
		contract: common.HexToAddress(contract),
		abi:      parsed,
		timeout:  timeout,
	}, nil
}

// VerifyRedemption fetches the receipt of txHash and returns the ContribMinted log whose prId equals eventID.
func (v *RedemptionVerifier) VerifyRedemption(ctx context.Context, txHash, eventID string) (*models.RedemptionReceipt, error) {
	if len(strings.TrimPrefix(txHash, "0x")) != 64 {
		return nil, fmt.Errorf("malformed transaction hash %q", txHash)
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	receipt, err := v.client.TransactionReceipt(ctx, common.HexToHash(txHash))
	if errors.Is(err, ethereum.NotFound) {
		return nil, ErrTxPending
	}
	if err != nil {
		return nil, fmt.Errorf("fetch receipt: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, ErrTxFailed
	}

	event := v.abi.Events["ContribMinted"]
	for _, entry := range receipt.Logs {
		if entry.Address != v.contract || len(entry.Topics) != 3 || entry.Topics[0] != event.ID {
			continue
		}
		fields := map[string]interface{}{}
		if err := v.abi.UnpackIntoMap(fields, event.Name, entry.Data); err != nil {
			continue
		}
		prID, _ := fields["prId"].(string)
		if prID != eventID {
			continue
		}
		projectID, _ := fields["projectId"].(string)
		return &models.RedemptionReceipt{
			TxHash:      receipt.TxHash.Hex(),
			BlockNumber: blockNumber(receipt),
			TokenID:     new(big.Int).SetBytes(entry.Topics[2].Bytes()).String(),
			Minter:      common.BytesToAddress(entry.Topics[1].Bytes()).Hex(),
			ProjectID:   projectID,
			PrID:        prID,
		}, nil
	}
	return nil, ErrNoRedemption
}

func blockNumber(r *types.Receipt) uint64 {
	if r.BlockNumber == nil {
		return 0
	}
	return r.BlockNumber.Uint64()
}
