package models

// Voucher authorises a wallet to redeem one contribution on-chain.
type Voucher struct {
	ProjectID   string `json:"projectId"`
	PrID        string `json:"prId"`
	MetadataURI string `json:"metadataUri"`
	Minter      string `json:"minter"`
}

// SignedVoucher pairs a voucher with its typed-data signature.
type SignedVoucher struct {
	Voucher   Voucher `json:"voucher"`
	Signature string  `json:"signature"`
	Signer    string  `json:"signer"`
}

// TokenAttribute is an ERC-721 metadata trait.
type TokenAttribute struct {
	TraitType string      `json:"trait_type"`
	Value     interface{} `json:"value"`
}

// TokenMetadata is served at a voucher's metadata URI.
type TokenMetadata struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	ExternalURL string           `json:"external_url"`
	Attributes  []TokenAttribute `json:"attributes"`
}

// RedemptionReceipt describes a confirmed on-chain redemption.
type RedemptionReceipt struct {
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
	TokenID     string `json:"token_id"`
	Minter      string `json:"minter"`
	ProjectID   string `json:"project_id"`
	PrID        string `json:"pr_id"`
}
