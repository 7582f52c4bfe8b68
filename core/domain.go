package core

import (
	"fmt"
	"strconv"
	"strings"
)

// GrantType identifies one of the two spending grant slots.
type GrantType string

const (
	GrantTypeRecurring GrantType = "recurring"
	GrantTypeOneTime   GrantType = "one-time"
)

func (t GrantType) Valid() bool {
	return t == GrantTypeRecurring || t == GrantTypeOneTime
}

// Other returns the opposite slot type.
func (t GrantType) Other() GrantType {
	if t == GrantTypeRecurring {
		return GrantTypeOneTime
	}
	return GrantTypeRecurring
}

// InteractionIntent records why an interactive grant flow was started; it is
// echoed back to the interaction tab's result page.
type InteractionIntent string

const (
	IntentConnect      InteractionIntent = "connect"
	IntentReconnect    InteractionIntent = "reconnect"
	IntentFunds        InteractionIntent = "funds"
	IntentUpdateBudget InteractionIntent = "update_budget"
)

func (i InteractionIntent) Valid() bool {
	switch i {
	case IntentConnect, IntentReconnect, IntentFunds, IntentUpdateBudget:
		return true
	}
	return false
}

// InteractionResult is the outcome encoded on the interaction tab's result
// page URL.
type InteractionResult string

const (
	InteractionResultSuccess InteractionResult = "success"
	InteractionResultError   InteractionResult = "error"
)

// Signals the authorization server appends to the interaction redirect.
const (
	interactionSignalRejected = "grant_rejected"
	interactionSignalInvalid  = "grant_invalid"
)

// Error codes surfaced on the interaction tab's result page.
const (
	ResultCodeHashFailed         = "hash_failed"
	ResultCodeContinuationFailed = "continuation_failed"
	ResultCodeGrantRejected      = "grant_rejected"
	ResultCodeGrantInvalid       = "grant_invalid"
	ResultCodeKeyAddFailed       = "key_add_failed"
	ResultCodeTabClosed          = "tab_closed"
)

// WalletAddress describes a payment account: where to authorize against and
// what asset it holds. Immutable from this module's perspective.
type WalletAddress struct {
	ID             string `json:"id"`
	AuthServer     string `json:"auth_server"`
	ResourceServer string `json:"resource_server"`
	AssetCode      string `json:"asset_code"`
	AssetScale     uint8  `json:"asset_scale"`
}

func (w WalletAddress) Validate() error {
	if strings.TrimSpace(w.ID) == "" {
		return fmt.Errorf("core: wallet address id is required")
	}
	if strings.TrimSpace(w.AuthServer) == "" {
		return fmt.Errorf("core: wallet auth server is required")
	}
	return nil
}

// WalletAmount is a wire-level amount: an integer value in minor units
// rendered as a string, as the wallet APIs exchange it.
type WalletAmount struct {
	Value      string `json:"value"`
	AssetCode  string `json:"asset_code"`
	AssetScale uint8  `json:"asset_scale"`
}

// Uint64 parses the wire value into minor units.
func (a WalletAmount) Uint64() (uint64, error) {
	trimmed := strings.TrimSpace(a.Value)
	if trimmed == "" {
		return 0, nil
	}
	value, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("core: invalid amount value %q: %w", a.Value, err)
	}
	return value, nil
}

// FormatAmountValue renders minor units back into the wire representation.
func FormatAmountValue(value uint64) string {
	return strconv.FormatUint(value, 10)
}

// GrantAmount is the spending limit requested for a grant. Interval is the
// ISO 8601 repeating interval for recurring grants and empty for one-time
// grants.
type GrantAmount struct {
	Value    string `json:"value"`
	Interval string `json:"interval,omitempty"`
}

// AccessToken is the bearer credential issued by a finalized grant. ManageURL
// is where the token can be rotated.
type AccessToken struct {
	Value     string `json:"value"`
	ManageURL string `json:"manage_url"`
}

// Continuation holds the credentials that finalize or later revoke a grant.
type Continuation struct {
	URI         string `json:"uri"`
	AccessToken string `json:"access_token"`
}

// AccessGrant is a finalized delegated authorization to spend from a wallet.
type AccessGrant struct {
	Type         GrantType    `json:"type"`
	Amount       GrantAmount  `json:"amount"`
	AccessToken  AccessToken  `json:"access_token"`
	Continuation Continuation `json:"continuation"`
}

// PendingGrant is the authorization server's response to an interactive grant
// request: where to send the user and how to continue once they approve.
type PendingGrant struct {
	RedirectURI   string       `json:"redirect_uri"`
	InteractNonce string       `json:"interact_nonce"`
	Continuation  Continuation `json:"continuation"`
}

// grantSlot holds at most one grant of a given type plus its usability flag.
type grantSlot struct {
	grant  *AccessGrant
	usable bool
}

func (s *grantSlot) usableGrant() *AccessGrant {
	if s == nil || !s.usable {
		return nil
	}
	return s.grant
}

// Storage keys for the persisted grant slots and connection state.
const (
	StorageKeyRecurringGrant = "grants.recurring"
	StorageKeyOneTimeGrant   = "grants.one_time"
	StorageKeyRate           = "rate"
	StorageKeyConnected      = "connected"
	StorageKeyEnabled        = "enabled"
)

func storageKeyForGrant(grantType GrantType) string {
	if grantType == GrantTypeRecurring {
		return StorageKeyRecurringGrant
	}
	return StorageKeyOneTimeGrant
}
