package core

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// NegotiateGrantRequest describes one interactive grant negotiation.
type NegotiateGrantRequest struct {
	Wallet        WalletAddress
	Amount        GrantAmount
	Recurring     bool
	Intent        InteractionIntent
	ExistingTabID *int
}

func (r NegotiateGrantRequest) grantType() GrantType {
	if r.Recurring {
		return GrantTypeRecurring
	}
	return GrantTypeOneTime
}

func (r NegotiateGrantRequest) Validate() error {
	if err := r.Wallet.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(r.Amount.Value) == "" {
		return goerrors.New("core: grant amount value is required", goerrors.CategoryValidation)
	}
	if !r.Intent.Valid() {
		return goerrors.New("core: interaction intent is required", goerrors.CategoryValidation)
	}
	return nil
}

// NegotiateGrant runs the interactive flow end to end: request a pending
// grant, drive the user through the interaction tab, verify the interaction
// hash, exchange the interact_ref for a finalized grant and persist it into
// the matching slot as the active grant.
//
// Any failure after the tab exists redirects the tab to the result page with
// the failure code before the error is returned, so a UI watching the tab
// learns the outcome even if it never sees this call's error.
func (s *Service) NegotiateGrant(ctx context.Context, req NegotiateGrantRequest) (*AccessGrant, error) {
	startedAt := s.now()
	grant, err := s.negotiateGrant(ctx, req)
	s.observeOperation(ctx, startedAt, "grant_negotiate", err, map[string]any{
		"grant_type": string(req.grantType()),
		"intent":     string(req.Intent),
		"wallet":     req.Wallet.ID,
	})
	if err != nil {
		return nil, s.mapError(err)
	}
	return grant, nil
}

func (s *Service) negotiateGrant(ctx context.Context, req NegotiateGrantRequest) (*AccessGrant, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	clientNonce := uuid.NewString()
	pending, err := s.wallet.RequestGrant(ctx, GrantRequest{
		Wallet:      req.Wallet,
		Amount:      req.Amount,
		Recurring:   req.Recurring,
		ClientNonce: clientNonce,
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(pending.RedirectURI) == "" {
		return nil, goerrors.New("core: pending grant is missing its redirect uri", goerrors.CategoryExternal)
	}

	tabID, err := s.ensureInteractionTab(ctx, req.ExistingTabID, pending.RedirectURI)
	if err != nil {
		return nil, err
	}

	outcome, err := s.awaitInteraction(ctx, tabID)
	if err != nil {
		s.redirectFailure(ctx, tabID, req.Intent, err)
		return nil, err
	}

	if err := verifyInteractionHash(interactionHashInput{
		ClientNonce:   clientNonce,
		InteractNonce: pending.InteractNonce,
		InteractRef:   outcome.interactRef,
		AuthServer:    req.Wallet.AuthServer,
	}, outcome.hash); err != nil {
		s.redirectResult(ctx, tabID, InteractionResultError, req.Intent, ResultCodeHashFailed)
		return nil, err
	}

	details, err := s.wallet.ContinueGrant(ctx, pending.Continuation, outcome.interactRef)
	if err != nil {
		s.redirectResult(ctx, tabID, InteractionResultError, req.Intent, ResultCodeContinuationFailed)
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "core: grant continuation failed").
			WithTextCode(ErrorContinuationFailed)
	}

	grant := &AccessGrant{
		Type:         req.grantType(),
		Amount:       req.Amount,
		AccessToken:  details.AccessToken,
		Continuation: details.Continuation,
	}
	if err := s.storeGrant(ctx, grant); err != nil {
		return nil, err
	}

	s.redirectResult(ctx, tabID, InteractionResultSuccess, req.Intent, "")
	return grant, nil
}

// storeGrant installs a finalized grant into its slot, replacing whatever the
// slot held, and persists it. The new grant becomes the active one.
func (s *Service) storeGrant(ctx context.Context, grant *AccessGrant) error {
	s.mu.Lock()
	s.slots[grant.Type] = &grantSlot{grant: grant, usable: true}
	s.active = grant.Type
	s.mu.Unlock()

	return s.persistSlot(ctx, grant.Type)
}

func (s *Service) persistSlot(ctx context.Context, grantType GrantType) error {
	s.mu.Lock()
	slot := s.slots[grantType]
	var grant *AccessGrant
	if slot != nil && slot.grant != nil {
		copied := *slot.grant
		grant = &copied
	}
	s.mu.Unlock()

	key := storageKeyForGrant(grantType)
	if grant == nil {
		return s.storage.Delete(ctx, []string{key})
	}
	return s.storage.Set(ctx, map[string]any{key: grant})
}

// Hydrate restores previously persisted grant slots. Restored grants are
// usable but none is active until a session forces a switch.
func (s *Service) Hydrate(ctx context.Context) error {
	values, err := s.storage.Get(ctx, []string{StorageKeyRecurringGrant, StorageKeyOneTimeGrant})
	if err != nil {
		return s.mapError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for key, raw := range values {
		if len(raw) == 0 {
			continue
		}
		var grant AccessGrant
		if err := json.Unmarshal(raw, &grant); err != nil {
			s.logError(ctx, "discarding unreadable persisted grant", map[string]any{
				"storage_key": key,
				"error":       err.Error(),
			})
			continue
		}
		if !grant.Type.Valid() {
			continue
		}
		s.slots[grant.Type] = &grantSlot{grant: &grant, usable: true}
	}
	return nil
}

// CancelGrant revokes a grant through its continuation credentials. Wallet
// responses meaning the grant is already gone are swallowed; everything else
// propagates.
func (s *Service) CancelGrant(ctx context.Context, continuation Continuation) error {
	startedAt := s.now()
	err := s.wallet.CancelGrant(ctx, continuation)
	if err != nil && isBenignCancelError(err) {
		s.logInfo(ctx, "grant already revoked upstream", map[string]any{
			"continuation_uri": continuation.URI,
		})
		err = nil
	}
	s.observeOperation(ctx, startedAt, "grant_cancel", err, map[string]any{
		"continuation_uri": continuation.URI,
	})
	return s.mapError(err)
}

// RemoveGrant cancels a slot's grant upstream, clears the slot and deletes
// its persisted copy. Used on disconnect and before re-budgeting.
func (s *Service) RemoveGrant(ctx context.Context, grantType GrantType) error {
	s.mu.Lock()
	slot := s.slots[grantType]
	var continuation *Continuation
	if slot != nil && slot.grant != nil {
		copied := slot.grant.Continuation
		continuation = &copied
	}
	s.mu.Unlock()

	if continuation != nil {
		if err := s.CancelGrant(ctx, *continuation); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.slots[grantType] = &grantSlot{}
	if s.active == grantType {
		s.active = ""
	}
	s.mu.Unlock()

	return s.mapError(s.storage.Delete(ctx, []string{storageKeyForGrant(grantType)}))
}

// RotateToken rotates the active grant's access token at its manage endpoint.
// Concurrent callers share a single rotation.
func (s *Service) RotateToken(ctx context.Context) error {
	_, err := s.rotate(ctx, struct{}{})
	return s.mapError(err)
}

func (s *Service) rotateActiveToken(ctx context.Context, _ struct{}) (AccessToken, error) {
	s.mu.Lock()
	activeType := s.active
	slot := s.slots[activeType]
	var current AccessToken
	if slot != nil && slot.grant != nil {
		current = slot.grant.AccessToken
	}
	s.mu.Unlock()

	if !activeType.Valid() || current.Value == "" {
		return AccessToken{}, goerrors.New("core: no active grant to rotate", goerrors.CategoryConflict).
			WithTextCode(ErrorNoActiveGrant)
	}

	rotated, err := s.wallet.RotateToken(ctx, current)
	if err != nil {
		return AccessToken{}, err
	}

	s.mu.Lock()
	slot = s.slots[activeType]
	if slot != nil && slot.grant != nil {
		slot.grant.AccessToken = rotated
	}
	s.mu.Unlock()

	if err := s.persistSlot(ctx, activeType); err != nil {
		return AccessToken{}, err
	}
	s.logInfo(ctx, "access token rotated", map[string]any{
		"grant_type": string(activeType),
	})
	return rotated, nil
}

// ActiveToken returns the active grant's current access token value, or false
// when no grant is active. Sessions read this optimistically before each
// payment call.
func (s *Service) ActiveToken() (AccessToken, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot := s.slots[s.active]
	if grant := slot.usableGrant(); grant != nil {
		return grant.AccessToken, true
	}
	return AccessToken{}, false
}

// ActiveGrantType returns the currently active slot, or false when none is.
func (s *Service) ActiveGrantType() (GrantType, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active.Valid() {
		return "", false
	}
	return s.active, true
}

// RefreshActiveToken hands a session a token that is fresher than the stale
// value it just saw. If another caller already rotated, the stored token is
// returned without a second rotation; otherwise the deduplicated rotation
// runs once for all concurrent callers.
func (s *Service) RefreshActiveToken(ctx context.Context, staleValue string) (AccessToken, error) {
	current, ok := s.ActiveToken()
	if !ok {
		return AccessToken{}, s.mapError(
			goerrors.New("core: no active grant to refresh", goerrors.CategoryConflict).
				WithTextCode(ErrorNoActiveGrant))
	}
	if current.Value != "" && current.Value != staleValue {
		return current, nil
	}

	rotated, err := s.rotate(ctx, struct{}{})
	if err != nil {
		return AccessToken{}, s.mapError(err)
	}
	return rotated, nil
}

// SwitchGrant activates the other slot when the active one is no longer
// serviceable. It returns the newly active grant type, or ok=false with no
// mutation when the other slot holds no usable grant. Concurrent callers
// share a single switch.
func (s *Service) SwitchGrant(ctx context.Context) (GrantType, bool, error) {
	next, err := s.switchCall(ctx, struct{}{})
	if err != nil {
		return "", false, s.mapError(err)
	}
	return next, next.Valid(), nil
}

func (s *Service) switchActiveGrant(ctx context.Context, _ struct{}) (GrantType, error) {
	s.mu.Lock()
	var next GrantType
	switch {
	case s.active.Valid():
		other := s.active.Other()
		if s.slots[other].usableGrant() != nil {
			s.slots[s.active].usable = false
			s.active = other
			next = other
		}
	case s.slots[GrantTypeRecurring].usableGrant() != nil:
		s.active = GrantTypeRecurring
		next = GrantTypeRecurring
	case s.slots[GrantTypeOneTime].usableGrant() != nil:
		s.active = GrantTypeOneTime
		next = GrantTypeOneTime
	}
	s.mu.Unlock()

	if next.Valid() {
		s.logInfo(ctx, "switched active grant", map[string]any{
			"grant_type": string(next),
		})
	}
	return next, nil
}

// DisableRecurringGrant marks the recurring slot unusable; if it was active,
// the active slot is cleared so a later SwitchGrant can pick a replacement.
func (s *Service) DisableRecurringGrant() {
	s.disableGrant(GrantTypeRecurring)
}

// DisableOneTimeGrant marks the one-time slot unusable; if it was active, the
// active slot is cleared so a later SwitchGrant can pick a replacement.
func (s *Service) DisableOneTimeGrant() {
	s.disableGrant(GrantTypeOneTime)
}

func (s *Service) disableGrant(grantType GrantType) {
	s.mu.Lock()
	if slot := s.slots[grantType]; slot != nil {
		slot.usable = false
	}
	if s.active == grantType {
		s.active = ""
	}
	s.mu.Unlock()
}

// GrantSnapshot reports a slot's state for UI consumption.
type GrantSnapshot struct {
	Type     GrantType
	Present  bool
	Usable   bool
	Active   bool
	Amount   GrantAmount
	Captured time.Time
}

// SnapshotGrants returns the current state of both slots.
func (s *Service) SnapshotGrants() []GrantSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]GrantSnapshot, 0, 2)
	for _, grantType := range []GrantType{GrantTypeRecurring, GrantTypeOneTime} {
		slot := s.slots[grantType]
		snapshot := GrantSnapshot{
			Type:     grantType,
			Active:   s.active == grantType,
			Captured: s.now(),
		}
		if slot != nil && slot.grant != nil {
			snapshot.Present = true
			snapshot.Usable = slot.usable
			snapshot.Amount = slot.grant.Amount
		}
		out = append(out, snapshot)
	}
	return out
}
