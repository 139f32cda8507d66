package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"linkpay/internal/linking"
	"linkpay/internal/merchant"
	"linkpay/pkg/config"
)

var ErrInFlight = errors.New("a payment is already being processed")

// API is the merchant backend as seen by the workflow.
type API interface {
	AccessToken(ctx context.Context, clientID, clientSecret string) (merchant.AccessToken, error)
	SessionKey(ctx context.Context, req merchant.SessionKeyRequest) (merchant.SessionKey, error)
	Pay(ctx context.Context, req merchant.PaymentRequest) (merchant.Payment, error)
}

// Orchestrator sequences token -> session key -> linking -> payment. Calls are
// strictly sequential and nothing is retried or rolled back.
type Orchestrator struct {
	api      API
	linker   linking.Linker
	settings config.Settings
	log      *zap.SugaredLogger
	busy     atomic.Bool
}

func New(api API, linker linking.Linker, settings config.Settings, log *zap.SugaredLogger) *Orchestrator {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Orchestrator{api: api, linker: linker, settings: settings, log: log}
}

// Busy reports whether a run is in flight; front ends disable their trigger while it is.
func (o *Orchestrator) Busy() bool { return o.busy.Load() }

// Run executes the workflow on the calling goroutine, reporting every
// transition to observe (which may be nil).
func (o *Orchestrator) Run(ctx context.Context, form Form, observe func(Event)) (Run, error) {
	if !o.busy.CompareAndSwap(false, true) {
		return Run{}, ErrInFlight
	}
	defer o.busy.Store(false)
	return o.execute(ctx, form, observe), nil
}

// Start executes the workflow on its own goroutine. Events are delivered in
// order on the returned channel, which is closed after the terminal event, so
// the receiving goroutine is the only one that touches presentation state.
func (o *Orchestrator) Start(ctx context.Context, form Form) (<-chan Event, error) {
	if !o.busy.CompareAndSwap(false, true) {
		return nil, ErrInFlight
	}
	events := make(chan Event, 8)
	go func() {
		defer close(events)
		defer o.busy.Store(false)
		o.execute(ctx, form, func(ev Event) { events <- ev })
	}()
	return events, nil
}

func (o *Orchestrator) execute(ctx context.Context, form Form, observe func(Event)) Run {
	run := Run{ID: uuid.NewString(), State: Idle}
	log := o.log.With("run", run.ID)
	enter := func(s State) {
		run.State = s
		log.Infow("workflow transition", "state", s.String())
		if observe != nil {
			observe(Event{State: s, Run: run})
		}
	}
	fail := func(title string, err error) Run {
		run.Err = err
		run.Alert = Alert{Kind: AlertFailure, Title: title, Message: message(err)}
		log.Warnw("workflow failed", "step", run.State.String(), "err", err)
		enter(Failed)
		return run
	}

	amount, err := form.ParseAmount()
	if err != nil {
		return fail(TitleInput, err)
	}

	enter(RequestingToken)
	tok, err := o.api.AccessToken(ctx, o.settings.ClientID, o.settings.ClientSecret)
	if err != nil {
		return fail(TitleAccessToken, err)
	}
	run.AccessToken = tok

	enter(RequestingSessionKey)
	sk, err := o.api.SessionKey(ctx, merchant.SessionKeyRequest{
		First:       form.FirstName,
		Last:        form.LastName,
		Email:       form.Email,
		AccessToken: tok.Token,
	})
	if err != nil {
		return fail(TitleSessionKey, err)
	}
	run.SessionKey = sk.Key

	enter(AwaitingExternalLinking)
	customerID, err := o.linker.Link(ctx, sk.Key, o.settings.Environment())
	if err != nil {
		return fail(TitleLinking, err)
	}
	if customerID == "" {
		return fail(TitleLinking, errors.New(msgMissingCustomer))
	}
	run.CustomerID = customerID

	enter(RequestingPayment)
	payment, err := o.api.Pay(ctx, merchant.NewPaymentRequest(
		customerID, o.settings.MerchantID, amount, tok.Token, form.ClientReferenceID, form.SoftDescriptor,
	))
	if err != nil {
		return fail(TitlePayment, err)
	}
	run.Payment = &payment
	run.Alert = Alert{Kind: AlertSuccess, Title: TitleSuccess, Message: fmt.Sprintf("Payment Id: %s", payment.ID)}
	enter(Done)
	return run
}

func message(err error) string {
	if msg := merchant.Message(err); msg != "" {
		return msg
	}
	return msgFallback
}
