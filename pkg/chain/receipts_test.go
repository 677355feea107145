package chain

import (
	"context"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const contract = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

type fakeFetcher struct {
	receipt *types.Receipt
	err     error
}

func (f fakeFetcher) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	return f.receipt, f.err
}

func mintedLog(t *testing.T, v *RedemptionVerifier, minter common.Address, tokenID int64, projectID, prID string) *types.Log {
	t.Helper()
	event := v.abi.Events["ContribMinted"]
	data, err := event.Inputs.NonIndexed().Pack(projectID, prID)
	require.NoError(t, err)
	return &types.Log{
		Address: common.HexToAddress(contract),
		Topics: []common.Hash{
			event.ID,
			common.BytesToHash(minter.Bytes()),
			common.BigToHash(big.NewInt(tokenID)),
		},
		Data: data,
	}
}

func TestVerifyRedemptionMatchesLog(t *testing.T) {
	v, err := NewRedemptionVerifier(nil, contract, 0)
	require.NoError(t, err)
	minter := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	v.client = fakeFetcher{receipt: &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		BlockNumber: big.NewInt(42),
		Logs: []*types.Log{
			mintedLog(t, v, minter, 6, "proj-1", "proj-1:pr-1"),
			mintedLog(t, v, minter, 7, "proj-1", "proj-1:pr-9"),
		},
	}}

	got, err := v.VerifyRedemption(context.Background(), "0x"+strings.Repeat("ab", 32), "proj-1:pr-9")
	require.NoError(t, err)
	assert.Equal(t, "7", got.TokenID)
	assert.Equal(t, minter.Hex(), got.Minter)
	assert.Equal(t, uint64(42), got.BlockNumber)
	assert.Equal(t, "proj-1", got.ProjectID)
}

func TestVerifyRedemptionFailures(t *testing.T) {
	v, err := NewRedemptionVerifier(nil, contract, 0)
	require.NoError(t, err)
	hash := "0x" + strings.Repeat("cd", 32)

	v.client = fakeFetcher{err: ethereum.NotFound}
	_, err = v.VerifyRedemption(context.Background(), hash, "e1")
	assert.ErrorIs(t, err, ErrTxPending)

	v.client = fakeFetcher{receipt: &types.Receipt{Status: types.ReceiptStatusFailed}}
	_, err = v.VerifyRedemption(context.Background(), hash, "e1")
	assert.ErrorIs(t, err, ErrTxFailed)

	v.client = fakeFetcher{receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful}}
	_, err = v.VerifyRedemption(context.Background(), hash, "e1")
	assert.ErrorIs(t, err, ErrNoRedemption)

	_, err = v.VerifyRedemption(context.Background(), "0x12", "e1")
	assert.Error(t, err)
}
