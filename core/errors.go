package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Stable error text codes surfaced to the UI layer for localization.
const (
	ErrorTabClosed          = "MONETIZATION_TAB_CLOSED"
	ErrorGrantRejected      = "MONETIZATION_GRANT_REJECTED"
	ErrorHashMismatch       = "MONETIZATION_HASH_MISMATCH"
	ErrorContinuationFailed = "MONETIZATION_CONTINUATION_FAILED"
	ErrorInvalidClient      = "MONETIZATION_INVALID_CLIENT"
	ErrorKeyAddFailed       = "MONETIZATION_KEY_ADD_FAILED"
	ErrorOutOfBalance       = "MONETIZATION_OUT_OF_BALANCE"
	ErrorPollingIncomplete  = "MONETIZATION_POLLING_INCOMPLETE"
	ErrorPaymentFailed      = "MONETIZATION_PAYMENT_FAILED"
	ErrorTokenExpired       = "MONETIZATION_TOKEN_EXPIRED"
	ErrorNoActiveGrant      = "MONETIZATION_NO_ACTIVE_GRANT"
	ErrorBadInput           = "MONETIZATION_BAD_INPUT"
	ErrorInternal           = "MONETIZATION_INTERNAL_ERROR"
)

type ErrorMapper func(err error) *goerrors.Error

func newMonetizationError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

// monetizationErrorMapper normalizes arbitrary errors, including wallet
// protocol failures surfaced as plain errors, into the module's envelope.
func monetizationErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "invalid client"), strings.Contains(msg, "invalid_client"):
		return newMonetizationError(err.Error(), goerrors.CategoryAuth, ErrorInvalidClient)
	case strings.Contains(msg, "token") && (strings.Contains(msg, "expired") || strings.Contains(msg, "invalid")):
		return newMonetizationError(err.Error(), goerrors.CategoryAuth, ErrorTokenExpired)
	case strings.Contains(msg, "insufficient") && strings.Contains(msg, "balance"),
		strings.Contains(msg, "out of balance"):
		return newMonetizationError(err.Error(), goerrors.CategoryConflict, ErrorOutOfBalance)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return newMonetizationError(err.Error(), goerrors.CategoryBadInput, ErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = monetizationHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultMonetizationTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultMonetizationTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorBadInput
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return ErrorInvalidClient
	case goerrors.CategoryConflict:
		return ErrorOutOfBalance
	case goerrors.CategoryExternal, goerrors.CategoryOperation:
		return ErrorPaymentFailed
	default:
		return ErrorInternal
	}
}

func monetizationHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func hasTextCode(err error, textCode string) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == textCode
}

// IsTabClosed reports whether an interactive flow failed because its tab was
// closed before completing.
func IsTabClosed(err error) bool { return hasTextCode(err, ErrorTabClosed) }

// IsGrantRejected reports whether the user declined the grant interaction.
func IsGrantRejected(err error) bool { return hasTextCode(err, ErrorGrantRejected) }

// IsHashMismatch reports an interaction hash verification failure.
func IsHashMismatch(err error) bool { return hasTextCode(err, ErrorHashMismatch) }

// IsContinuationFailed reports a failed interact_ref exchange.
func IsContinuationFailed(err error) bool { return hasTextCode(err, ErrorContinuationFailed) }

// IsInvalidClient reports that the wallet no longer recognizes this client.
func IsInvalidClient(err error) bool {
	if hasTextCode(err, ErrorInvalidClient) {
		return true
	}
	msg := strings.ToLower(errMessage(err))
	return strings.Contains(msg, "invalid client") || strings.Contains(msg, "invalid_client")
}

// IsOutOfBalance reports that the wallet refused payment for lack of funds.
func IsOutOfBalance(err error) bool {
	if hasTextCode(err, ErrorOutOfBalance) {
		return true
	}
	msg := strings.ToLower(errMessage(err))
	return strings.Contains(msg, "out of balance") ||
		(strings.Contains(msg, "insufficient") && strings.Contains(msg, "balance"))
}

// IsTokenExpired reports that an access token was rejected as expired or
// rotated; callers treat this as retryable after a refresh.
func IsTokenExpired(err error) bool {
	if hasTextCode(err, ErrorTokenExpired) {
		return true
	}
	msg := strings.ToLower(errMessage(err))
	return strings.Contains(msg, "token") &&
		(strings.Contains(msg, "expired") || strings.Contains(msg, "rotated") || strings.Contains(msg, "invalid"))
}

// IsTokenInsufficient reports an access token that is valid but not allowed
// to read outgoing payments; one-time pay treats this as a soft outcome.
func IsTokenInsufficient(err error) bool {
	msg := strings.ToLower(errMessage(err))
	return strings.Contains(msg, "insufficient grant") ||
		(strings.Contains(msg, "forbidden") && strings.Contains(msg, "outgoing"))
}

// isBenignCancelError reports wallet responses that CancelGrant treats as a
// no-op: the grant is already gone or the client is no longer recognized.
func isBenignCancelError(err error) bool {
	if err == nil {
		return false
	}
	if IsInvalidClient(err) {
		return true
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Category == goerrors.CategoryNotFound {
		return true
	}
	msg := strings.ToLower(errMessage(err))
	return strings.Contains(msg, "not found") ||
		strings.Contains(msg, "already revoked") ||
		strings.Contains(msg, "already invalid")
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Message
	}
	return err.Error()
}
