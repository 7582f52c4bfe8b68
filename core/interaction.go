package core

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"net/url"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// interactionOutcome is what the authorization server handed back through the
// interaction redirect URL.
type interactionOutcome struct {
	interactRef string
	hash        string
}

// ensureInteractionTab reuses the caller's tab when one is given, otherwise
// opens a fresh one at the interaction redirect.
func (s *Service) ensureInteractionTab(ctx context.Context, existingTabID *int, redirectURI string) (int, error) {
	if existingTabID != nil {
		if err := s.tabs.Update(ctx, *existingTabID, redirectURI); err != nil {
			return 0, goerrors.Wrap(err, goerrors.CategoryExternal, "core: interaction tab navigation failed")
		}
		return *existingTabID, nil
	}
	tabID, err := s.tabs.Create(ctx, redirectURI)
	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryExternal, "core: interaction tab creation failed")
	}
	return tabID, nil
}

// awaitInteraction blocks until the interaction tab navigates to a URL
// carrying the grant outcome, the tab is closed, or ctx ends. There is no
// timeout here: the flow ends on tab close or an explicit signal.
func (s *Service) awaitInteraction(ctx context.Context, tabID int) (interactionOutcome, error) {
	events, cancel, err := s.tabs.Watch(ctx, tabID)
	if err != nil {
		return interactionOutcome{}, goerrors.Wrap(err, goerrors.CategoryExternal, "core: interaction tab watch failed")
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return interactionOutcome{}, ctx.Err()
		case event, ok := <-events:
			if !ok || event.Kind == TabEventRemoved {
				return interactionOutcome{}, newTabClosedError(tabID)
			}
			if event.Kind != TabEventNavigated {
				continue
			}
			outcome, signal, matched := parseInteractionURL(event.URL)
			if !matched {
				continue
			}
			switch signal {
			case interactionSignalRejected:
				return interactionOutcome{}, goerrors.New("core: grant was rejected by the user", goerrors.CategoryAuthz).
					WithTextCode(ErrorGrantRejected).
					WithMetadata(map[string]any{"tab_id": tabID})
			case interactionSignalInvalid:
				return interactionOutcome{}, goerrors.New("core: grant interaction reported grant_invalid", goerrors.CategoryAuthz).
					WithTextCode(ErrorGrantRejected).
					WithMetadata(map[string]any{"tab_id": tabID})
			}
			return outcome, nil
		}
	}
}

func newTabClosedError(tabID int) *goerrors.Error {
	return goerrors.New("core: interaction tab was closed", goerrors.CategoryOperation).
		WithTextCode(ErrorTabClosed).
		WithMetadata(map[string]any{"tab_id": tabID})
}

// parseInteractionURL inspects a navigation target for the grant outcome:
// either interact_ref+hash on approval, or a result signal on rejection.
func parseInteractionURL(raw string) (interactionOutcome, string, bool) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return interactionOutcome{}, "", false
	}
	query := parsed.Query()

	if signal := query.Get("result"); signal == interactionSignalRejected || signal == interactionSignalInvalid {
		return interactionOutcome{}, signal, true
	}

	interactRef := query.Get("interact_ref")
	hash := query.Get("hash")
	if interactRef == "" || hash == "" {
		return interactionOutcome{}, "", false
	}
	return interactionOutcome{interactRef: interactRef, hash: hash}, "", true
}

type interactionHashInput struct {
	ClientNonce   string
	InteractNonce string
	InteractRef   string
	AuthServer    string
}

// verifyInteractionHash recomputes the GNAP interaction hash and compares it
// byte for byte against the server-supplied value.
func verifyInteractionHash(input interactionHashInput, presented string) error {
	origin, err := authServerOrigin(input.AuthServer)
	if err != nil {
		return err
	}
	payload := strings.Join([]string{
		input.ClientNonce,
		input.InteractNonce,
		input.InteractRef,
		origin,
	}, "\n")
	digest := sha256.Sum256([]byte(payload))
	expected := base64.StdEncoding.EncodeToString(digest[:])

	if subtle.ConstantTimeCompare([]byte(expected), []byte(presented)) != 1 {
		return goerrors.New("core: interaction hash verification failed", goerrors.CategoryAuth).
			WithTextCode(ErrorHashMismatch)
	}
	return nil
}

func authServerOrigin(authServer string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(authServer))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", goerrors.New("core: auth server url is invalid", goerrors.CategoryBadInput)
	}
	return parsed.Scheme + "://" + parsed.Host + "/", nil
}

// redirectResult points the interaction tab at the result page so observers
// of the tab learn the outcome independent of the negotiating call.
func (s *Service) redirectResult(ctx context.Context, tabID int, result InteractionResult, intent InteractionIntent, errorCode string) {
	target, err := buildResultURL(s.config.InteractionResultURL, result, intent, errorCode)
	if err != nil {
		s.logError(ctx, "result url construction failed", map[string]any{
			"error": err.Error(),
		})
		return
	}
	if err := s.tabs.Update(ctx, tabID, target); err != nil {
		// The redirect is best effort: the tab may already be gone, and the
		// negotiation error still propagates to the caller.
		s.logError(ctx, "interaction tab redirect failed", map[string]any{
			"tab_id": tabID,
			"error":  err.Error(),
		})
	}
}

// redirectFailure maps an interaction error onto its result page code. A
// closed tab cannot be redirected, so that error passes through untouched.
func (s *Service) redirectFailure(ctx context.Context, tabID int, intent InteractionIntent, failure error) {
	if IsTabClosed(failure) {
		return
	}
	code := ResultCodeGrantInvalid
	if IsGrantRejected(failure) && !carriesSignal(failure, interactionSignalInvalid) {
		code = ResultCodeGrantRejected
	}
	s.redirectResult(ctx, tabID, InteractionResultError, intent, code)
}

func carriesSignal(err error, signal string) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), signal)
}

func buildResultURL(base string, result InteractionResult, intent InteractionIntent, errorCode string) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	query := parsed.Query()
	query.Set("result", string(result))
	query.Set("intent", string(intent))
	if errorCode != "" {
		query.Set("errorCode", errorCode)
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
