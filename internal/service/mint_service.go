package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/contribmint/contribmint-api/internal/dto"
	"github.com/contribmint/contribmint-api/internal/models"
	"github.com/contribmint/contribmint-api/pkg/chain"
	appErrors "github.com/contribmint/contribmint-api/pkg/errors"
	"github.com/contribmint/contribmint-api/pkg/signer"
)

type mintContributionRepository interface {
	FindByID(ctx context.Context, id string) (*models.ContributionEvent, error)
	UpdateMintStatus(ctx context.Context, id string, from, to models.MintStatus) (bool, error)
}

// VoucherSigner produces typed-data signatures over vouchers.
type VoucherSigner interface {
	SignVoucher(ctx context.Context, v models.Voucher) (models.SignedVoucher, error)
}

// RedemptionVerifier confirms on-chain redemptions of a contribution.
type RedemptionVerifier interface {
	VerifyRedemption(ctx context.Context, txHash, eventID string) (*models.RedemptionReceipt, error)
}

// MintServiceConfig carries the voucher settings shared with the redemption contract.
type MintServiceConfig struct {
	MetadataBaseURL string
	SignTimeout     time.Duration
}

// MintService issues redemption vouchers and records confirmed redemptions.
type MintService struct {
	contributions mintContributionRepository
	signer        VoucherSigner
	verifier      RedemptionVerifier
	rule          ConsensusRule
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
	cfg           MintServiceConfig
}

// NewMintService constructs the mint boundary. A nil signer or verifier disables the matching operation.
func NewMintService(contributions mintContributionRepository, voucherSigner VoucherSigner, verifier RedemptionVerifier, rule ConsensusRule, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg MintServiceConfig) *MintService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SignTimeout <= 0 {
		cfg.SignTimeout = 2 * time.Second
	}
	cfg.MetadataBaseURL = strings.TrimRight(cfg.MetadataBaseURL, "/")
	return &MintService{
		contributions: contributions,
		signer:        voucherSigner,
		verifier:      verifier,
		rule:          rule,
		metrics:       metrics,
		validator:     validate,
		logger:        logger,
		cfg:           cfg,
	}
}

// RequestVoucher signs a voucher letting wallet redeem a mint-eligible contribution.
// Nothing is persisted; replay protection belongs to the contract.
func (s *MintService) RequestVoucher(ctx context.Context, req dto.VoucherRequest) (*models.SignedVoucher, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid voucher request")
	}
	if !common.IsHexAddress(req.WalletAddress) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "wallet address must be a 20-byte hex address")
	}

	event, err := s.getContribution(ctx, req.ContributionID)
	if err != nil {
		return nil, err
	}
	if event.MintStatus != models.MintStatusMintEligible {
		return nil, appErrors.Clone(appErrors.ErrNotEligible, "not eligible for minting")
	}
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrConfiguration, "voucher signing is not configured")
	}

	voucher := models.Voucher{
		ProjectID:   event.ProjectID,
		PrID:        event.ID,
		MetadataURI: s.MetadataURI(event.ID),
		Minter:      common.HexToAddress(req.WalletAddress).Hex(),
	}

	signed, err := s.sign(ctx, voucher)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordVoucher()
	s.logger.Info("voucher issued",
		zap.String("contribution_id", event.ID),
		zap.String("minter", voucher.Minter),
		zap.String("signer", signed.Signer),
	)
	return &signed, nil
}

// ConfirmRedemption checks txHash on-chain and marks the contribution MINTED.
func (s *MintService) ConfirmRedemption(ctx context.Context, req dto.RedemptionRequest) (*models.RedemptionReceipt, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid redemption payload")
	}
	if hash, err := hexutil.Decode(req.TxHash); err != nil || len(hash) != common.HashLength {
		return nil, appErrors.Clone(appErrors.ErrValidation, "tx_hash must be a 32-byte hex string")
	}
	if s.verifier == nil {
		return nil, appErrors.Clone(appErrors.ErrConfiguration, "chain confirmation is not configured")
	}

	event, err := s.getContribution(ctx, req.ContributionID)
	if err != nil {
		return nil, err
	}
	next, err := s.rule.Transition(event.MintStatus, RedemptionConfirmed{})
	if err != nil {
		return nil, err
	}

	receipt, err := s.verifier.VerifyRedemption(ctx, req.TxHash, event.ID)
	if err != nil {
		return nil, s.mapChainError(err, event.ID)
	}
	if receipt.ProjectID != event.ProjectID {
		s.logger.Warn("redemption log names another project",
			zap.String("contribution_id", event.ID),
			zap.String("tx_hash", req.TxHash),
			zap.String("log_project_id", receipt.ProjectID),
		)
		return nil, appErrors.Clone(appErrors.ErrValidation, "transaction redeemed a voucher for another project")
	}

	if next == event.MintStatus {
		return receipt, nil
	}
	moved, err := s.contributions.UpdateMintStatus(ctx, event.ID, event.MintStatus, next)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "redemption not recorded, retry later")
	}
	if !moved {
		current, err := s.getContribution(ctx, event.ID)
		if err != nil {
			return nil, err
		}
		if current.MintStatus != models.MintStatusMinted {
			return nil, appErrors.Clone(appErrors.ErrConflict, "contribution status changed concurrently")
		}
		return receipt, nil
	}

	s.metrics.RecordTransition(event.MintStatus, next)
	s.logger.Info("contribution minted",
		zap.String("contribution_id", event.ID),
		zap.String("tx_hash", receipt.TxHash),
		zap.String("token_id", receipt.TokenID),
	)
	return receipt, nil
}

// Metadata returns the ERC-721 metadata document served at a voucher's metadata URI.
func (s *MintService) Metadata(ctx context.Context, contributionID string) (*models.TokenMetadata, error) {
	event, err := s.getContribution(ctx, contributionID)
	if err != nil {
		return nil, err
	}
	return &models.TokenMetadata{
		Name:        fmt.Sprintf("ContribMint: %s", event.Title),
		Description: fmt.Sprintf("%s by %s", strings.ToLower(strings.ReplaceAll(string(event.Category), "_", " ")), event.ActorUsername),
		ExternalURL: event.URL,
		Attributes: []models.TokenAttribute{
			{TraitType: "Project", Value: event.ProjectID},
			{TraitType: "Category", Value: string(event.Category)},
			{TraitType: "Contributor", Value: event.ActorUsername},
			{TraitType: "Reputation", Value: ScoreEvent(event.Category)},
			{TraitType: "Occurred", Value: event.OccurredAt.UTC().Format("2006-01-02")},
		},
	}, nil
}

// MetadataURI is the stable locator embedded in a contribution's voucher.
func (s *MintService) MetadataURI(contributionID string) string {
	return s.cfg.MetadataBaseURL + "/" + contributionID
}

type signResult struct {
	signed models.SignedVoucher
	err    error
}

func (s *MintService) sign(ctx context.Context, voucher models.Voucher) (models.SignedVoucher, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.SignTimeout)
	defer cancel()

	done := make(chan signResult, 1)
	go func() {
		signed, err := s.signer.SignVoucher(ctx, voucher)
		done <- signResult{signed: signed, err: err}
	}()

	select {
	case <-ctx.Done():
		return models.SignedVoucher{}, appErrors.Wrap(ctx.Err(), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "voucher signing timed out")
	case res := <-done:
		if errors.Is(res.err, signer.ErrNoKey) {
			return models.SignedVoucher{}, appErrors.Wrap(res.err, appErrors.ErrConfiguration.Code, appErrors.ErrConfiguration.Status, "voucher signing is not configured")
		}
		if res.err != nil {
			return models.SignedVoucher{}, appErrors.Wrap(res.err, appErrors.ErrConfiguration.Code, appErrors.ErrConfiguration.Status, "voucher signing failed")
		}
		return res.signed, nil
	}
}

func (s *MintService) mapChainError(err error, eventID string) error {
	switch {
	case errors.Is(err, chain.ErrTxPending):
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "transaction not yet mined")
	case errors.Is(err, chain.ErrTxFailed), errors.Is(err, chain.ErrNoRedemption):
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "transaction did not redeem this contribution")
	default:
		s.logger.Warn("redemption lookup failed", zap.String("contribution_id", eventID), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "chain lookup failed")
	}
}

func (s *MintService) getContribution(ctx context.Context, id string) (*models.ContributionEvent, error) {
	event, err := s.contributions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "contribution not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load contribution")
	}
	return event, nil
}
