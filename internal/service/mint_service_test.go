package service

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contribmint/contribmint-api/internal/dto"
	"github.com/contribmint/contribmint-api/internal/models"
	"github.com/contribmint/contribmint-api/pkg/chain"
	appErrors "github.com/contribmint/contribmint-api/pkg/errors"
	"github.com/contribmint/contribmint-api/pkg/signer"
)

const testWallet = "0x70997970c51812dc3a010c7d01b50e0d17dc79c8"

var testTxHash = "0x" + strings.Repeat("ab", 32)

type stubVerifier struct {
	receipt *models.RedemptionReceipt
	err     error
	calls   int
}

func (s *stubVerifier) VerifyRedemption(ctx context.Context, txHash, eventID string) (*models.RedemptionReceipt, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.receipt, nil
}

type slowSigner struct{}

func (slowSigner) SignVoucher(ctx context.Context, v models.Voucher) (models.SignedVoucher, error) {
	time.Sleep(200 * time.Millisecond)
	return models.SignedVoucher{}, nil
}

func newTestTypedSigner(t *testing.T) *signer.TypedDataSigner {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	s, err := signer.New(signer.Domain{
		Name:              "ContribMint",
		Version:           "1",
		ChainID:           1337,
		VerifyingContract: "0x5FbDB2315678afecb367f032d93F642f64180aa3",
	}, hex.EncodeToString(crypto.FromECDSA(key)))
	require.NoError(t, err)
	return s
}

func newMintFixture(t *testing.T, voucherSigner VoucherSigner, verifier RedemptionVerifier) (*MintService, *memoryStore) {
	t.Helper()
	store := newMemoryStore()
	store.addEvent(models.ContributionEvent{ID: "proj-1:pr-7", ProjectID: "proj-1", Title: "Fix bug", Category: models.CategoryMergedPullRequest,
		ActorUsername: "alice", URL: "https://github.com/acme/widgets/pull/7", MintStatus: models.MintStatusMintEligible})
	store.addEvent(models.ContributionEvent{ID: "proj-1:pr-8", ProjectID: "proj-1", Category: models.CategoryMergedPullRequest,
		ActorUsername: "bob", MintStatus: models.MintStatusAwaitingVotes})
	svc := NewMintService(store, voucherSigner, verifier, DefaultConsensusRule, NewMetricsService(), nil, nil, MintServiceConfig{
		MetadataBaseURL: "https://contribmint.com/api/metadata/",
		SignTimeout:     50 * time.Millisecond,
	})
	return svc, store
}

func TestRequestVoucherSignsRecoverableVoucher(t *testing.T) {
	typed := newTestTypedSigner(t)
	svc, _ := newMintFixture(t, typed, nil)

	signed, err := svc.RequestVoucher(context.Background(), dto.VoucherRequest{ContributionID: "proj-1:pr-7", WalletAddress: testWallet})
	require.NoError(t, err)
	assert.Equal(t, "proj-1", signed.Voucher.ProjectID)
	assert.Equal(t, "proj-1:pr-7", signed.Voucher.PrID)
	assert.Equal(t, "https://contribmint.com/api/metadata/proj-1:pr-7", signed.Voucher.MetadataURI)
	assert.Equal(t, "0x70997970C51812dc3A010C7d01b50e0d17dc79C8", signed.Voucher.Minter)

	recovered, err := typed.RecoverVoucherSigner(signed.Voucher, signed.Signature)
	require.NoError(t, err)
	assert.Equal(t, typed.Address(), recovered)
}

func TestRequestVoucherRejectsIneligible(t *testing.T) {
	svc, _ := newMintFixture(t, newTestTypedSigner(t), nil)

	signed, err := svc.RequestVoucher(context.Background(), dto.VoucherRequest{ContributionID: "proj-1:pr-8", WalletAddress: testWallet})
	assert.Nil(t, signed)
	assert.ErrorIs(t, err, appErrors.ErrNotEligible)

	_, err = svc.RequestVoucher(context.Background(), dto.VoucherRequest{ContributionID: "missing", WalletAddress: testWallet})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.RequestVoucher(context.Background(), dto.VoucherRequest{ContributionID: "proj-1:pr-7", WalletAddress: "alice.eth"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestRequestVoucherConfigurationErrors(t *testing.T) {
	svc, _ := newMintFixture(t, nil, nil)
	_, err := svc.RequestVoucher(context.Background(), dto.VoucherRequest{ContributionID: "proj-1:pr-7", WalletAddress: testWallet})
	assert.ErrorIs(t, err, appErrors.ErrConfiguration)

	keyless, err := signer.New(signer.Domain{Name: "ContribMint", Version: "1", ChainID: 1337, VerifyingContract: "0x5FbDB2315678afecb367f032d93F642f64180aa3"}, "")
	require.NoError(t, err)
	svc, _ = newMintFixture(t, keyless, nil)
	_, err = svc.RequestVoucher(context.Background(), dto.VoucherRequest{ContributionID: "proj-1:pr-7", WalletAddress: testWallet})
	assert.ErrorIs(t, err, appErrors.ErrConfiguration)
}

func TestRequestVoucherSignTimeout(t *testing.T) {
	svc, _ := newMintFixture(t, slowSigner{}, nil)
	_, err := svc.RequestVoucher(context.Background(), dto.VoucherRequest{ContributionID: "proj-1:pr-7", WalletAddress: testWallet})
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}

func TestConfirmRedemptionMarksMinted(t *testing.T) {
	verifier := &stubVerifier{receipt: &models.RedemptionReceipt{TxHash: testTxHash, TokenID: "0", ProjectID: "proj-1", PrID: "proj-1:pr-7"}}
	svc, store := newMintFixture(t, nil, verifier)

	receipt, err := svc.ConfirmRedemption(context.Background(), dto.RedemptionRequest{ContributionID: "proj-1:pr-7", TxHash: testTxHash})
	require.NoError(t, err)
	assert.Equal(t, "0", receipt.TokenID)
	assert.Equal(t, models.MintStatusMinted, store.status("proj-1:pr-7"))

	_, err = svc.ConfirmRedemption(context.Background(), dto.RedemptionRequest{ContributionID: "proj-1:pr-7", TxHash: testTxHash})
	require.NoError(t, err)
	assert.Equal(t, models.MintStatusMinted, store.status("proj-1:pr-7"))
}

func TestConfirmRedemptionRejectsForeignProjectLog(t *testing.T) {
	verifier := &stubVerifier{receipt: &models.RedemptionReceipt{TxHash: testTxHash, TokenID: "3", ProjectID: "proj-2", PrID: "proj-1:pr-7"}}
	svc, store := newMintFixture(t, nil, verifier)

	_, err := svc.ConfirmRedemption(context.Background(), dto.RedemptionRequest{ContributionID: "proj-1:pr-7", TxHash: testTxHash})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Equal(t, 1, verifier.calls)
	assert.Equal(t, models.MintStatusMintEligible, store.status("proj-1:pr-7"))
}

func TestConfirmRedemptionRejections(t *testing.T) {
	verifier := &stubVerifier{err: chain.ErrNoRedemption}
	svc, store := newMintFixture(t, nil, verifier)

	_, err := svc.ConfirmRedemption(context.Background(), dto.RedemptionRequest{ContributionID: "proj-1:pr-8", TxHash: testTxHash})
	assert.ErrorIs(t, err, appErrors.ErrNotEligible)
	assert.Zero(t, verifier.calls)

	_, err = svc.ConfirmRedemption(context.Background(), dto.RedemptionRequest{ContributionID: "proj-1:pr-7", TxHash: testTxHash})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Equal(t, models.MintStatusMintEligible, store.status("proj-1:pr-7"))

	verifier.err = chain.ErrTxPending
	_, err = svc.ConfirmRedemption(context.Background(), dto.RedemptionRequest{ContributionID: "proj-1:pr-7", TxHash: testTxHash})
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	verifier.err = errors.New("dial tcp: refused")
	_, err = svc.ConfirmRedemption(context.Background(), dto.RedemptionRequest{ContributionID: "proj-1:pr-7", TxHash: testTxHash})
	assert.ErrorIs(t, err, appErrors.ErrUpstream)

	_, err = svc.ConfirmRedemption(context.Background(), dto.RedemptionRequest{ContributionID: "proj-1:pr-7", TxHash: "0x1234"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestMetadataDescribesContribution(t *testing.T) {
	svc, _ := newMintFixture(t, nil, nil)
	meta, err := svc.Metadata(context.Background(), "proj-1:pr-7")
	require.NoError(t, err)
	assert.Equal(t, "ContribMint: Fix bug", meta.Name)
	assert.Equal(t, "pr merged by alice", meta.Description)
	assert.Equal(t, "https://github.com/acme/widgets/pull/7", meta.ExternalURL)
	assert.Contains(t, meta.Attributes, models.TokenAttribute{TraitType: "Reputation", Value: 10})
}
