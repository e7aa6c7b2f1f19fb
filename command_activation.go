package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type ActivateMessage struct {
	Code       string `json:"code" doc:"Activation code from the notification link"`
	OnResponse func(resp *ActivateResponse)
}

func (e ActivateMessage) Type() string { return "principal.activate" }

type ActivateResponse struct {
	Principal         *Principal
	RecentlyActivated bool
}

// ActivateHandler redeems an activation code: it stamps the activation
// timestamp and clears the code. Redeeming again after a fresh
// RequestActivation is the only path that restamps the timestamp.
type ActivateHandler struct {
	repo  RepositoryManager
	creds *Credentials
	sink  ActivitySink
}

func NewActivateHandler(repo RepositoryManager, creds *Credentials) *ActivateHandler {
	return &ActivateHandler{repo: repo, creds: creds, sink: noopActivitySink{}}
}

func (h *ActivateHandler) WithActivitySink(sink ActivitySink) *ActivateHandler {
	h.sink = normalizeActivitySink(sink)
	return h
}

func (h *ActivateHandler) Execute(ctx context.Context, event ActivateMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during activation")
	default:
		return h.execute(ctx, event)
	}
}

func (h *ActivateHandler) execute(ctx context.Context, event ActivateMessage) error {
	record := &Principal{}
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		record, err = h.repo.Principals().FindByActivationCode(ctx, event.Code)
		if err != nil {
			return err
		}
		if record == nil {
			return ErrActivationCodeNotFound
		}

		h.creds.Activate(record, time.Now())

		return h.repo.Principals().SaveTx(ctx, tx, record)
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to activate principal")
	}

	if serr := h.sink.Record(ctx, ActivityEvent{
		EventType:   ActivityEventActivation,
		PrincipalID: record.ID.String(),
		OccurredAt:  time.Now(),
	}); serr != nil {
		defLogger{}.Error("activity sink error during activation", "error", serr)
	}

	if event.OnResponse != nil {
		event.OnResponse(&ActivateResponse{
			Principal:         record,
			RecentlyActivated: record.RecentlyActivated(),
		})
	}

	return nil
}

type RequestActivationMessage struct {
	Email string `json:"email" doc:"Email of the principal requesting re-activation"`
}

func (e RequestActivationMessage) Type() string { return "principal.activation_request" }

// RequestActivationHandler re-stamps a fresh activation code and clears the
// activation timestamp, then notifies the principal.
type RequestActivationHandler struct {
	repo  RepositoryManager
	creds *Credentials
	sink  ActivitySink
}

func NewRequestActivationHandler(repo RepositoryManager, creds *Credentials) *RequestActivationHandler {
	return &RequestActivationHandler{repo: repo, creds: creds, sink: noopActivitySink{}}
}

func (h *RequestActivationHandler) WithActivitySink(sink ActivitySink) *RequestActivationHandler {
	h.sink = normalizeActivitySink(sink)
	return h
}

func (h *RequestActivationHandler) Execute(ctx context.Context, event RequestActivationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during activation request")
	default:
		return h.execute(ctx, event)
	}
}

func (h *RequestActivationHandler) execute(ctx context.Context, event RequestActivationMessage) error {
	record := &Principal{}
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		record, err = h.repo.Principals().FindByEmail(ctx, event.Email)
		if err != nil {
			return err
		}
		if record == nil {
			return ErrPrincipalNotFound
		}

		h.creds.RequestActivation(record)

		if err := h.repo.Principals().SaveTx(ctx, tx, record); err != nil {
			return err
		}

		go func() {
			// TODO: we need to handle emails...
			printActivationNotification(record.Email, record.ActivationCode)
		}()

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to request activation")
	}

	if serr := h.sink.Record(ctx, ActivityEvent{
		EventType:   ActivityEventActivationRequested,
		PrincipalID: record.ID.String(),
		OccurredAt:  time.Now(),
	}); serr != nil {
		defLogger{}.Error("activity sink error during activation request", "error", serr)
	}

	return nil
}
