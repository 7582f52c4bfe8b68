package core

import (
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestMonetizationErrorMapperPassesRichErrors(t *testing.T) {
	original := goerrors.New("core: interaction tab was closed", goerrors.CategoryOperation).
		WithTextCode(ErrorTabClosed)

	mapped := monetizationErrorMapper(original)
	if mapped == nil {
		t.Fatalf("expected mapped error")
	}
	if mapped.TextCode != ErrorTabClosed {
		t.Fatalf("text code must survive mapping, got %q", mapped.TextCode)
	}
	if mapped.Code != http.StatusInternalServerError {
		t.Fatalf("operation category maps to 500, got %d", mapped.Code)
	}
}

func TestMonetizationErrorMapperSniffsWalletMessages(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{fmt.Errorf("invalid_client: signature key unknown"), ErrorInvalidClient},
		{fmt.Errorf("access token expired"), ErrorTokenExpired},
		{fmt.Errorf("insufficient balance for quote"), ErrorOutOfBalance},
		{fmt.Errorf("wallet address id is required"), ErrorBadInput},
	}
	for _, tc := range cases {
		mapped := monetizationErrorMapper(tc.err)
		if mapped == nil {
			t.Fatalf("mapper returned nil for %v", tc.err)
		}
		if mapped.TextCode != tc.code {
			t.Fatalf("mapping %q: expected %s, got %s", tc.err, tc.code, mapped.TextCode)
		}
	}
}

func TestMonetizationErrorMapperNil(t *testing.T) {
	if mapped := monetizationErrorMapper(nil); mapped != nil {
		t.Fatalf("expected nil, got %v", mapped)
	}
}

func TestEnsureErrorEnvelopeFillsDefaults(t *testing.T) {
	err := ensureErrorEnvelope(goerrors.New("boom", goerrors.CategoryValidation))
	if err.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", err.Code)
	}
	if err.TextCode != ErrorBadInput {
		t.Fatalf("expected %s, got %s", ErrorBadInput, err.TextCode)
	}

	err = ensureErrorEnvelope(goerrors.New("", goerrors.CategoryInternal))
	if err.Message == "" {
		t.Fatalf("internal errors must carry a message")
	}
}

func TestErrorPredicates(t *testing.T) {
	if !IsTabClosed(newTabClosedError(1)) {
		t.Fatalf("tab closed predicate failed")
	}
	if IsTabClosed(fmt.Errorf("something else")) {
		t.Fatalf("tab closed predicate too broad")
	}

	if !IsTokenExpired(fmt.Errorf("token was rotated out from under us")) {
		t.Fatalf("token expired predicate must sniff plain errors")
	}
	if !IsOutOfBalance(fmt.Errorf("payment refused: out of balance")) {
		t.Fatalf("out of balance predicate must sniff plain errors")
	}
	if !IsTokenInsufficient(fmt.Errorf("insufficient grant for outgoing payment read")) {
		t.Fatalf("token insufficient predicate failed")
	}
	if IsTokenInsufficient(fmt.Errorf("insufficient balance")) {
		t.Fatalf("token insufficient predicate too broad")
	}
}

func TestIsBenignCancelError(t *testing.T) {
	benign := []error{
		fmt.Errorf("grant not found"),
		fmt.Errorf("grant already revoked"),
		fmt.Errorf("invalid_client"),
		goerrors.New("gone", goerrors.CategoryNotFound),
	}
	for _, err := range benign {
		if !isBenignCancelError(err) {
			t.Fatalf("expected %v to be benign", err)
		}
	}
	if isBenignCancelError(fmt.Errorf("connection reset")) {
		t.Fatalf("transport failures are not benign")
	}
	if isBenignCancelError(nil) {
		t.Fatalf("nil is not an error")
	}
}
