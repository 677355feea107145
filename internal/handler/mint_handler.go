package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/contribmint/contribmint-api/internal/dto"
	"github.com/contribmint/contribmint-api/internal/models"
	appErrors "github.com/contribmint/contribmint-api/pkg/errors"
	"github.com/contribmint/contribmint-api/pkg/response"
)

type mintService interface {
	RequestVoucher(ctx context.Context, req dto.VoucherRequest) (*models.SignedVoucher, error)
	ConfirmRedemption(ctx context.Context, req dto.RedemptionRequest) (*models.RedemptionReceipt, error)
	Metadata(ctx context.Context, contributionID string) (*models.TokenMetadata, error)
}

// MintHandler exposes voucher issuance and redemption confirmation.
type MintHandler struct {
	service mintService
}

// NewMintHandler builds a new handler.
func NewMintHandler(service mintService) *MintHandler {
	return &MintHandler{service: service}
}

// RequestVoucher godoc
// @Summary Request a signed mint voucher for an eligible contribution
// @Tags Mint
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.VoucherRequest true "Voucher request"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /mint/vouchers [post]
func (h *MintHandler) RequestVoucher(c *gin.Context) {
	var req dto.VoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid voucher request"))
		return
	}
	signed, err := h.service.RequestVoucher(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, signed, nil)
}

// ConfirmRedemption godoc
// @Summary Confirm an on-chain redemption and mark the contribution minted
// @Tags Mint
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.RedemptionRequest true "Redemption"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /mint/confirmations [post]
func (h *MintHandler) ConfirmRedemption(c *gin.Context) {
	var req dto.RedemptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid redemption payload"))
		return
	}
	receipt, err := h.service.ConfirmRedemption(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, receipt, nil)
}

// Metadata godoc
// @Summary Token metadata of a contribution
// @Description Served unwrapped so marketplaces can read it from the token URI.
// @Tags Mint
// @Produce json
// @Param id path string true "Contribution ID"
// @Success 200 {object} models.TokenMetadata
// @Router /metadata/{id} [get]
func (h *MintHandler) Metadata(c *gin.Context) {
	meta, err := h.service.Metadata(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=300")
	c.JSON(http.StatusOK, meta)
}
