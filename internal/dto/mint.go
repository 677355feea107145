package dto

// VoucherRequest asks for a signed redemption voucher.
type VoucherRequest struct {
	ContributionID string `json:"contribution_id" validate:"required"`
	WalletAddress  string `json:"wallet_address" validate:"required"`
}

// RedemptionRequest reports an on-chain redemption transaction.
type RedemptionRequest struct {
	ContributionID string `json:"contribution_id" validate:"required"`
	TxHash         string `json:"tx_hash" validate:"required"`
}
