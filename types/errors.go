package types

import "errors"

// Error codes. Every failure in a protocol run is terminal; nothing is
// retried automatically.
const (
	// ErrFetchFailed covers any non-2xx answer from the server.
	ErrFetchFailed = "fetch_failed"

	// ErrMultiInstruction marks an invoice with more than one instruction.
	ErrMultiInstruction = "multi_instruction_invoice"

	// ErrEmptyOutputInvoice marks an instruction with zero outputs.
	ErrEmptyOutputInvoice = "empty_output_invoice"

	// ErrInvalidPaymentOption marks a pre-selected wallet whose asset the
	// invoice does not accept.
	ErrInvalidPaymentOption = "invalid_payment_option"

	// ErrNoPaymentOption means none of the user's wallets match any
	// accepted option.
	ErrNoPaymentOption = "no_payment_option"

	// ErrEmptyVerificationHex marks a signed transaction missing its
	// unsigned or signed hex serialization.
	ErrEmptyVerificationHex = "empty_verification_hex"

	// ErrVerificationMismatch means the server's echo did not exactly
	// match the submitted unsigned hex.
	ErrVerificationMismatch = "tx_verification_mismatch"
)

// Diagnostic carries the request context a failure was observed in. It is
// attached to errors for operator triage and never shown to end users.
type Diagnostic struct {
	RunID        string `json:"runId,omitempty"`
	URI          string `json:"uri,omitempty"`
	Method       string `json:"method,omitempty"`
	RequestBody  string `json:"requestBody,omitempty"`
	ResponseText string `json:"responseText,omitempty"`
	StatusCode   int    `json:"statusCode,omitempty"`
}

// ProtocolError is the tagged error variant for every domain failure in a
// protocol run. Callers switch on Code rather than on concrete types.
type ProtocolError struct {
	Code    string `json:"code"`
	Message string `json:"message"`

	// Header is the short media-type hint of the failing request
	// (the segment after the final "application/").
	Header string `json:"header,omitempty"`

	// Status is the numeric HTTP status as a string.
	Status string `json:"status,omitempty"`

	// Text is the server's plain-text body prefixed with ": ", or empty
	// when the body was an HTML document.
	Text string `json:"text,omitempty"`

	Diagnostic *Diagnostic `json:"diagnostic,omitempty"`
}

func (e *ProtocolError) Error() string {
	return e.Message
}

// IsCode reports whether err is a ProtocolError carrying the given code.
func IsCode(err error, code string) bool {
	var pe *ProtocolError
	return errors.As(err, &pe) && pe.Code == code
}
