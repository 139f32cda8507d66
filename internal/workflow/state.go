package workflow

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"linkpay/internal/merchant"
)

type State int

const (
	Idle State = iota
	RequestingToken
	RequestingSessionKey
	AwaitingExternalLinking
	RequestingPayment
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case RequestingToken:
		return "requesting_token"
	case RequestingSessionKey:
		return "requesting_session_key"
	case AwaitingExternalLinking:
		return "awaiting_external_linking"
	case RequestingPayment:
		return "requesting_payment"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return "unknown"
}

func (s State) Terminal() bool { return s == Done || s == Failed }

type AlertKind int

const (
	AlertFailure AlertKind = iota
	AlertSuccess
)

// Alert is the single modal message shown when a run ends.
type Alert struct {
	Kind    AlertKind
	Title   string
	Message string
}

const (
	TitleAccessToken = "Access Token Error"
	TitleSessionKey  = "Generate session error"
	TitleLinking     = "Link Account Error"
	TitlePayment     = "Payment Process Error"
	TitleSuccess     = "Payment Success"
	TitleInput       = "Invalid Input"

	msgMissingCustomer = "Customer Id is empty or the amount to charge is not valid."
	msgFallback        = "Error occurred"
)

// Form is what the user typed.
type Form struct {
	FirstName string
	LastName  string
	Email     string
	Amount    string

	ClientReferenceID string
	SoftDescriptor    string
}

var errInvalidAmount = errors.New("the amount to charge is not valid")

// ParseAmount reads the amount as a finite decimal number.
func (f Form) ParseAmount() (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(f.Amount), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errInvalidAmount
	}
	return v, nil
}

// Run records one workflow execution. Data obtained by earlier steps is kept
// even when a later step fails.
type Run struct {
	ID          string
	State       State
	AccessToken merchant.AccessToken
	SessionKey  string
	CustomerID  string
	Payment     *merchant.Payment
	Alert       Alert
	Err         error
}

// Event reports a state transition; the event for a terminal state carries the alert.
type Event struct {
	State State
	Run   Run
}
