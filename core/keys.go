package core

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

// AddKeyToWallet registers this client's signing key with the wallet provider
// through the given interaction tab. Failures other than a closed tab
// annotate the tab with the key_add_failed result before propagating.
func (s *Service) AddKeyToWallet(ctx context.Context, req AddKeyRequest) error {
	return s.addKey(ctx, req, false)
}

// RetryAddKeyToWallet re-runs a previously failed key registration on the
// same tab, for providers whose consent pages need a second pass.
func (s *Service) RetryAddKeyToWallet(ctx context.Context, req AddKeyRequest) error {
	return s.addKey(ctx, req, true)
}

func (s *Service) addKey(ctx context.Context, req AddKeyRequest, retry bool) error {
	startedAt := s.now()
	err := s.runKeyRegistration(ctx, req, retry)
	s.observeOperation(ctx, startedAt, "wallet_key_add", err, map[string]any{
		"wallet": req.Wallet.ID,
		"tab_id": req.TabID,
		"retry":  retry,
	})
	return s.mapError(err)
}

func (s *Service) runKeyRegistration(ctx context.Context, req AddKeyRequest, retry bool) error {
	if s.keyRegistrar == nil {
		return goerrors.New("core: wallet key registrar is not configured", goerrors.CategoryOperation).
			WithTextCode(ErrorKeyAddFailed)
	}

	var err error
	if retry {
		err = s.keyRegistrar.RetryAddKey(ctx, req)
	} else {
		err = s.keyRegistrar.AddKey(ctx, req)
	}
	if err == nil {
		return nil
	}
	if !IsTabClosed(err) {
		s.redirectResult(ctx, req.TabID, InteractionResultError, IntentConnect, ResultCodeKeyAddFailed)
		return goerrors.Wrap(err, goerrors.CategoryExternal, "core: wallet key registration failed").
			WithTextCode(ErrorKeyAddFailed)
	}
	return err
}
