package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-featuregate/gate"
	"github.com/uptrace/bun"
)

type FinalizePasswordResetMessage struct {
	Token        string `json:"token" doc:"Reset capability token from the notification link"`
	Password     string `json:"password" doc:"New password"`
	Confirmation string `json:"confirmation" doc:"New password, confirmed"`
}

func (p FinalizePasswordResetMessage) Type() string { return "principal.password_reset.finalize" }

// FinalizePasswordResetHandler redeems a live reset capability token, sets
// the new password, and revokes the token so it cannot be replayed.
type FinalizePasswordResetHandler struct {
	repo        RepositoryManager
	creds       *Credentials
	issuer      *TokenIssuer
	sink        ActivitySink
	logger      Logger
	featureGate gate.FeatureGate
}

// NewFinalizePasswordResetHandler creates a handler with sane defaults.
func NewFinalizePasswordResetHandler(repo RepositoryManager, creds *Credentials, issuer *TokenIssuer) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{
		repo:   repo,
		creds:  creds,
		issuer: issuer,
		sink:   noopActivitySink{},
		logger: defLogger{},
	}
}

// WithFeatureGate gates finalization behind the password reset flag. The
// finalize override lets an in-flight reset complete after the gate closes.
func (h *FinalizePasswordResetHandler) WithFeatureGate(featureGate gate.FeatureGate) *FinalizePasswordResetHandler {
	h.featureGate = featureGate
	return h
}

// WithActivitySink sets the sink used to emit password reset events.
func (h *FinalizePasswordResetHandler) WithActivitySink(sink ActivitySink) *FinalizePasswordResetHandler {
	h.sink = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *FinalizePasswordResetHandler) WithLogger(logger Logger) *FinalizePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	if err := requirePasswordResetGate(ctx, h.featureGate, true); err != nil {
		return err
	}

	record := &Principal{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		record, err = h.repo.Principals().FindByRememberToken(ctx, event.Token)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve password reset capability")
		}

		if record == nil {
			return goerrors.New("invalid or expired password reset token", goerrors.CategoryNotFound).
				WithCode(goerrors.CodeNotFound)
		}

		if !record.RememberTokenLive(time.Now()) {
			return ErrResetCapabilityExpired
		}

		if err := h.creds.ResetPassword(record, event.Password, event.Confirmation, time.Now()); err != nil {
			return err
		}

		// revoke before save so the capability cannot be replayed
		record.RememberToken = nil
		record.RememberTokenExpiresAt = nil

		return h.repo.Principals().SaveTx(ctx, tx, record)
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		if isFieldValidationError(err) {
			return err
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to finalize password reset")
	}

	h.recordActivity(ctx, record)

	return nil
}

func (h *FinalizePasswordResetHandler) recordActivity(ctx context.Context, record *Principal) {
	if record == nil {
		return
	}

	event := ActivityEvent{
		EventType:   ActivityEventPasswordReset,
		PrincipalID: record.ID.String(),
		Metadata: map[string]any{
			"stage": ChangeFinalized,
		},
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.sink).Record(ctx, event); err != nil {
		h.getLogger().Error("activity sink error during password reset: %v", err)
	}
}

func (h *FinalizePasswordResetHandler) getLogger() Logger {
	if h.logger != nil {
		return h.logger
	}
	return defLogger{}
}
