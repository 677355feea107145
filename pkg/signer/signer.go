package signer

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/contribmint/contribmint-api/internal/models"
)

const voucherType = "Voucher"

var (
	// ErrNoKey indicates the signer was built without a private key.
	ErrNoKey = errors.New("signer private key not configured")
	// ErrBadSignature indicates a signature that cannot be decoded or recovered.
	ErrBadSignature = errors.New("invalid voucher signature")
)

// Domain identifies the redemption contract a voucher is bound to.
type Domain struct {
	Name              string
	Version           string
	ChainID           int64
	VerifyingContract string
}

// TypedDataSigner signs vouchers as EIP-712 typed data with a single authority key.
type TypedDataSigner struct {
	domain  Domain
	key     *ecdsa.PrivateKey
	address common.Address
}

// New parses hexKey and validates the domain. hexKey may carry a 0x prefix.
func New(domain Domain, hexKey string) (*TypedDataSigner, error) {
	if !common.IsHexAddress(domain.VerifyingContract) {
		return nil, fmt.Errorf("verifying contract %q is not an address", domain.VerifyingContract)
	}
	if domain.ChainID <= 0 {
		return nil, fmt.Errorf("chain id must be positive")
	}

	s := &TypedDataSigner{domain: domain}
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return s, nil
	}

	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse signer key: %w", err)
	}
	s.key = key
	s.address = crypto.PubkeyToAddress(key.PublicKey)
	return s, nil
}

// Address returns the checksummed authority address, or empty when no key is loaded.
func (s *TypedDataSigner) Address() string {
	if s == nil || s.key == nil {
		return ""
	}
	return s.address.Hex()
}

// Hash returns the EIP-712 digest of the voucher under the signer's domain.
func (s *TypedDataSigner) Hash(v models.Voucher) ([]byte, error) {
	if !common.IsHexAddress(v.Minter) {
		return nil, fmt.Errorf("minter %q is not an address", v.Minter)
	}
	digest, _, err := apitypes.TypedDataAndHash(s.typedData(v))
	if err != nil {
		return nil, fmt.Errorf("hash typed data: %w", err)
	}
	return digest, nil
}

// SignVoucher signs the voucher and returns a 65-byte hex signature with v in {27, 28}.
func (s *TypedDataSigner) SignVoucher(ctx context.Context, v models.Voucher) (models.SignedVoucher, error) {
	if s == nil || s.key == nil {
		return models.SignedVoucher{}, ErrNoKey
	}
	if err := ctx.Err(); err != nil {
		return models.SignedVoucher{}, err
	}

	digest, err := s.Hash(v)
	if err != nil {
		return models.SignedVoucher{}, err
	}
	sig, err := crypto.Sign(digest, s.key)
	if err != nil {
		return models.SignedVoucher{}, fmt.Errorf("sign voucher: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27

	return models.SignedVoucher{
		Voucher:   v,
		Signature: hexutil.Encode(sig),
		Signer:    s.address.Hex(),
	}, nil
}

// RecoverVoucherSigner returns the address that produced signature over v.
func (s *TypedDataSigner) RecoverVoucherSigner(v models.Voucher, signature string) (string, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil || len(sig) != crypto.SignatureLength {
		return "", ErrBadSignature
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	digest, err := s.Hash(v)
	if err != nil {
		return "", err
	}
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	return crypto.PubkeyToAddress(*pub).Hex(), nil
}

func (s *TypedDataSigner) typedData(v models.Voucher) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			voucherType: {
				{Name: "projectId", Type: "string"},
				{Name: "prId", Type: "string"},
				{Name: "metadataUri", Type: "string"},
				{Name: "minter", Type: "address"},
			},
		},
		PrimaryType: voucherType,
		Domain: apitypes.TypedDataDomain{
			Name:              s.domain.Name,
			Version:           s.domain.Version,
			ChainId:           math.NewHexOrDecimal256(s.domain.ChainID),
			VerifyingContract: common.HexToAddress(s.domain.VerifyingContract).Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"projectId":   v.ProjectID,
			"prId":        v.PrID,
			"metadataUri": v.MetadataURI,
			"minter":      common.HexToAddress(v.Minter).Hex(),
		},
	}
}
