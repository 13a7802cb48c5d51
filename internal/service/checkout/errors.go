package checkout

import "errors"

// Reason names why a checkout was blocked. Each reason has its own message.
type Reason string

const (
	ReasonNotAuthenticated   Reason = "not_authenticated"
	ReasonEmailNotVerified   Reason = "email_not_verified"
	ReasonPhoneRequired      Reason = "phone_required"
	ReasonAddressRequired    Reason = "address_required"
	ReasonCartEmpty          Reason = "cart_empty"
	ReasonInvalidTransaction Reason = "invalid_transaction_reference"
	ReasonUnsupportedPayment Reason = "unsupported_payment_method"
	ReasonInProgress         Reason = "checkout_in_progress"
)

var reasonMessages = map[Reason]string{
	ReasonNotAuthenticated:   "Please sign in to place an order.",
	ReasonEmailNotVerified:   "Please verify your email address before placing an order.",
	ReasonPhoneRequired:      "A phone number is required for delivery.",
	ReasonAddressRequired:    "A delivery address is required.",
	ReasonCartEmpty:          "Your cart is empty.",
	ReasonInvalidTransaction: "Invalid transaction ID. It must be exactly 10 letters or digits.",
	ReasonUnsupportedPayment: "Unsupported payment method.",
	ReasonInProgress:         "A checkout is already in progress.",
}

// Message is the user facing text for the reason.
func (r Reason) Message() string {
	if msg, ok := reasonMessages[r]; ok {
		return msg
	}
	return string(r)
}

// BlockedError reports a precondition the shopper must fix.
type BlockedError struct {
	Reason Reason
}

func (e *BlockedError) Error() string {
	return e.Reason.Message()
}

func blocked(r Reason) *BlockedError {
	return &BlockedError{Reason: r}
}

// ErrFailed is the generic failure reported for infrastructure errors. The
// cart is left exactly as it was.
var ErrFailed = errors.New("checkout failed")

// FailedMessage is shown to shoppers for ErrFailed.
const FailedMessage = "Checkout failed."
