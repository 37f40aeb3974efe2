package errors

import (
	"fmt"
	"net/http"
)

// Code is the stable identifier surfaced to API callers.
type Code string

const (
	CodeInvalidParameter            Code = "INVALID_PARAMETER"
	CodeInsufficientBalance         Code = "INSUFFICIENT_BALANCE"
	CodeMarketConditionsChanged     Code = "MARKET_CONDITIONS_CHANGED"
	CodeUnsupportedTokenPair        Code = "UNSUPPORTED_TOKEN_PAIR"
	CodeUnsupportedVenuePair        Code = "UNSUPPORTED_VENUE_PAIR"
	CodeVenueServiceError           Code = "VENUE_SERVICE_ERROR"
	CodeInvalidTransactionFormat    Code = "INVALID_TRANSACTION_FORMAT"
	CodeInvalidFeePayer             Code = "INVALID_FEE_PAYER"
	CodeAlreadySigned               Code = "ALREADY_SIGNED"
	CodeMissingUserSignature        Code = "MISSING_USER_SIGNATURE"
	CodeMessageTampered             Code = "MESSAGE_TAMPERED"
	CodeConfirmationTimeout         Code = "CONFIRMATION_TIMEOUT"
	CodeConfirmationUnknown         Code = "CONFIRMATION_UNKNOWN"
	CodeExecutionFailed             Code = "EXECUTION_FAILED"
	CodeExecutionContextNotFound    Code = "EXECUTION_CONTEXT_NOT_FOUND"
	CodePreparedTransactionNotFound Code = "PREPARED_TRANSACTION_NOT_FOUND"
	CodeInvalidStateTransition      Code = "INVALID_STATE_TRANSITION"
	CodeInternal                    Code = "INTERNAL_ERROR"
)

// Error is a settlement failure that can cross the API boundary. Details
// carries structured values (amounts, signatures) and never stack traces.
type Error struct {
	Code    Code                   `json:"type"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Detail returns a single detail value, or nil.
func (e *Error) Detail(key string) interface{} {
	if e.Details == nil {
		return nil
	}
	return e.Details[key]
}

func newError(code Code, message string, details map[string]interface{}, cause error) *Error {
	return &Error{Code: code, Message: message, Details: details, Err: cause}
}

func InvalidParameter(format string, args ...interface{}) *Error {
	return newError(CodeInvalidParameter, fmt.Sprintf(format, args...), nil, nil)
}

// InsufficientBalance takes display-unit amounts; they are rendered as-is.
func InsufficientBalance(asset string, required, available fmt.Stringer) *Error {
	return newError(CodeInsufficientBalance,
		fmt.Sprintf("insufficient balance: need %s %s, have %s %s", required, asset, available, asset),
		map[string]interface{}{"asset": asset, "required": required, "available": available}, nil)
}

func MarketConditionsChanged(expected, current, deviation fmt.Stringer) *Error {
	return newError(CodeMarketConditionsChanged,
		fmt.Sprintf("market conditions changed: expected %s, current %s", expected, current),
		map[string]interface{}{"expected": expected, "current": current, "deviation": deviation}, nil)
}

func UnsupportedTokenPair(from, to string) *Error {
	return newError(CodeUnsupportedTokenPair,
		fmt.Sprintf("token pair %s/%s is not supported", from, to),
		map[string]interface{}{"fromAsset": from, "toAsset": to}, nil)
}

func UnsupportedVenuePair(venue, from, to string, cause error) *Error {
	return newError(CodeUnsupportedVenuePair,
		fmt.Sprintf("%s venue cannot route %s/%s", venue, from, to),
		map[string]interface{}{"venue": venue, "fromAsset": from, "toAsset": to}, cause)
}

// VenueServiceError records the venue-reported HTTP status (0 when the call
// never got a response) so callers can tell rate limiting from outages.
func VenueServiceError(venue string, status int, cause error) *Error {
	rateLimited := status == http.StatusTooManyRequests
	msg := fmt.Sprintf("%s venue request failed", venue)
	if rateLimited {
		msg = fmt.Sprintf("%s venue rate limited the request", venue)
	}
	return newError(CodeVenueServiceError, msg,
		map[string]interface{}{"venue": venue, "status": status, "rateLimited": rateLimited}, cause)
}

func InvalidTransactionFormat(cause error) *Error {
	return newError(CodeInvalidTransactionFormat, "transaction could not be decoded or has no instructions", nil, cause)
}

func InvalidFeePayer() *Error {
	return newError(CodeInvalidFeePayer, "transaction fee payer is not the configured sponsor", nil, nil)
}

func AlreadySigned() *Error {
	return newError(CodeAlreadySigned, "transaction already carries the sponsor signature", nil, nil)
}

func MissingUserSignature() *Error {
	return newError(CodeMissingUserSignature, "transaction carries no valid member signature", nil, nil)
}

func MessageTampered() *Error {
	return newError(CodeMessageTampered, "signed transaction differs from the prepared transaction", nil, nil)
}

func ConfirmationTimeout(signature string) *Error {
	return newError(CodeConfirmationTimeout,
		"transaction was broadcast but confirmation was not observed in time; check the explorer",
		map[string]interface{}{"signature": signature}, nil)
}

func ConfirmationUnknown(signature string, cause error) *Error {
	return newError(CodeConfirmationUnknown,
		"transaction was broadcast but its status could not be determined; check the explorer",
		map[string]interface{}{"signature": signature}, cause)
}

func ExecutionFailed(signature string, chainErr interface{}) *Error {
	return newError(CodeExecutionFailed, "transaction failed on-chain",
		map[string]interface{}{"signature": signature, "chainError": fmt.Sprintf("%v", chainErr)}, nil)
}

func ExecutionContextNotFound(proposalSignature string) *Error {
	return newError(CodeExecutionContextNotFound, "execution context not found or expired; restart the swap",
		map[string]interface{}{"proposalSignature": proposalSignature}, nil)
}

func PreparedTransactionNotFound(transactionID string) *Error {
	return newError(CodePreparedTransactionNotFound, "prepared transaction not found or expired; prepare the swap again",
		map[string]interface{}{"transactionId": transactionID}, nil)
}

func InvalidStateTransition(from, to string) *Error {
	return newError(CodeInvalidStateTransition, fmt.Sprintf("cannot move settlement from %s to %s", from, to),
		map[string]interface{}{"from": from, "to": to}, nil)
}

// Internal wraps an unexpected failure under one of the message constants.
func Internal(errorType string, cause error) *Error {
	return newError(CodeInternal, errorType, nil, cause)
}

// CodeOf returns the taxonomy code of err, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

func HasCode(err error, code Code) bool {
	var e *Error
	return As(err, &e) && e.Code == code
}

// IsFallbackEligible reports whether a venue failure may be retried on the
// next venue in the candidate list.
func IsFallbackEligible(err error) bool {
	switch CodeOf(err) {
	case CodeVenueServiceError, CodeUnsupportedVenuePair:
		return true
	}
	return false
}

func HTTPStatus(code Code) int {
	switch code {
	case CodeInvalidParameter, CodeUnsupportedTokenPair, CodeInvalidTransactionFormat,
		CodeInvalidFeePayer, CodeAlreadySigned, CodeMissingUserSignature, CodeMessageTampered:
		return http.StatusBadRequest
	case CodeInsufficientBalance, CodeUnsupportedVenuePair, CodeExecutionFailed:
		return http.StatusUnprocessableEntity
	case CodeMarketConditionsChanged, CodeInvalidStateTransition:
		return http.StatusConflict
	case CodeExecutionContextNotFound, CodePreparedTransactionNotFound:
		return http.StatusNotFound
	case CodeVenueServiceError:
		return http.StatusBadGateway
	case CodeConfirmationTimeout, CodeConfirmationUnknown:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
