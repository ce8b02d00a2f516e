// Package enclaveapi defines the JSON messages exchanged between the gateway,
// the CLI and the enclave server.
package enclaveapi

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/cloudx-io/assetauction/core"
	"github.com/cloudx-io/assetauction/ledger"
)

// Request types. A response's type is the request type with a "_response"
// suffix, or "error" when the request could not be decoded.
const (
	TypePing           = "ping"
	TypeKeyRequest     = "key_request"
	TypeCreateAsset    = "create_asset"
	TypeStartAuction   = "start_auction"
	TypeCancelAuction  = "cancel_auction"
	TypeBid            = "bid"
	TypeRefreshDisplay = "refresh_display"
	TypeCloseAuction   = "close_auction"
	TypeGetAsset       = "get_asset"
	TypeListAssets     = "list_assets"
	TypeGetAuction     = "get_auction"
	TypeGetBid         = "get_bid"
	TypeDeposit        = "deposit"
	TypeBalance        = "balance"

	TypeError = "error"
)

// RequestTypes lists every request type the enclave dispatches.
var RequestTypes = []string{
	TypePing, TypeKeyRequest,
	TypeCreateAsset, TypeStartAuction, TypeCancelAuction, TypeBid,
	TypeRefreshDisplay, TypeCloseAuction,
	TypeGetAsset, TypeListAssets, TypeGetAuction, TypeGetBid,
	TypeDeposit, TypeBalance,
}

// ResponseType returns the response type for a request type.
func ResponseType(requestType string) string {
	if requestType == TypePing {
		return "pong"
	}
	return requestType + "_response"
}

// Request is the envelope for every operation. Caller is the verified
// identity of the submitter; fields that do not apply to Type are ignored.
type Request struct {
	Type      string          `json:"type"`
	Caller    core.AccountID  `json:"caller,omitempty"`
	Name      string          `json:"name,omitempty"`
	AssetID   core.Hash       `json:"asset_id,omitzero"`
	AuctionID core.Hash       `json:"auction_id,omitzero"`
	BidID     core.Hash       `json:"bid_id,omitzero"`
	EndTime   time.Time       `json:"end_time,omitzero"`
	BasePrice decimal.Decimal `json:"base_price,omitzero"`
	Price     decimal.Decimal `json:"price,omitzero"`

	// Account and Amount are used by deposit and balance. Owner selects the
	// account for list_assets.
	Account core.AccountID  `json:"account,omitempty"`
	Amount  decimal.Decimal `json:"amount,omitzero"`
	Owner   core.AccountID  `json:"owner,omitempty"`
}

// AuctionView is an auction together with its resolved bids.
type AuctionView struct {
	core.Auction
	LeaderboardBids []core.Bid `json:"leaderboard_bids"`
	DisplayedView   []core.Bid `json:"displayed_view"`
	BidCount        int        `json:"bid_count"`
}

// Response is the envelope returned for every request.
type Response struct {
	Type      string `json:"type"`
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`

	Asset     *core.Asset     `json:"asset,omitempty"`
	Assets    []core.Hash     `json:"assets,omitempty"`
	Auction   *AuctionView    `json:"auction,omitempty"`
	Bid       *core.Bid       `json:"bid,omitempty"`
	Balance   *ledger.Balance `json:"balance,omitempty"`
	Refreshed *bool           `json:"refreshed,omitempty"`
	Events    []core.Event    `json:"events,omitempty"`
	Receipt   COSEBase64      `json:"receipt_cose_base64,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`

	ProcessingTime int64 `json:"processing_time_ms"`
}

// NewErrorResponse builds a failed response for requestType carrying the
// error's message and kind.
func NewErrorResponse(requestType string, err error) *Response {
	return &Response{
		Type:      ResponseType(requestType),
		Success:   false,
		Message:   err.Error(),
		ErrorKind: core.ErrorKind(err),
	}
}

// PCRs represents the Platform Configuration Registers from AWS Nitro Enclaves
type PCRs struct {
	// PCR0: Hash of the Enclave Image File (EIF)
	ImageFileHash string `json:"0"`

	// PCR1: Hash of the Linux kernel and initial RAM data (initramfs)
	KernelHash string `json:"1"`

	// PCR2: Hash of user applications, excluding the boot ramfs
	ApplicationHash string `json:"2"`

	// PCR3: Hash of the IAM role assigned to the parent instance
	IAMRoleHash string `json:"3"`

	// PCR4: Hash of the parent instance's ID
	InstanceIDHash string `json:"4"`

	// PCR8: Hash of the enclave image file's signing certificate
	SigningCertHash string `json:"8,omitempty"`
}

// AttestationDoc is the decoded NSM attestation document.
type AttestationDoc struct {
	ModuleID        string    `json:"module_id"`
	Timestamp       time.Time `json:"timestamp"`
	DigestAlgorithm string    `json:"digest"`
	PCRs            PCRs      `json:"pcrs"`
	Certificate     string    `json:"certificate"`
	CABundle        []string  `json:"cabundle"`
	PublicKey       string    `json:"public_key"`
	Nonce           string    `json:"nonce"`
}

// KeyAttestationDoc is an attestation binding the receipt signing key.
type KeyAttestationDoc struct {
	AttestationDoc
	UserData *KeyAttestationUserData `json:"user_data"`
}

// KeyAttestationUserData represents the key-specific data embedded in key attestation
type KeyAttestationUserData struct {
	KeyAlgorithm string `json:"key_algorithm"` // e.g., "ECDSA-P256"
	PublicKey    string `json:"public_key"`    // PEM-encoded public key
	Purpose      string `json:"purpose"`
}

// KeyResponse carries the enclave's receipt verification key.
type KeyResponse struct {
	Type           string             `json:"type"`
	PublicKey      string             `json:"public_key"`                // PEM format
	TEEInstanceIP  string             `json:"tee_instance_ip,omitempty"` // Injected by HTTP bridge
	KeyAttestation *KeyAttestationDoc `json:"key_attestation,omitempty"`

	AttestationCOSEBase64 COSEBase64 `json:"attestation_cose_base64"`
}
