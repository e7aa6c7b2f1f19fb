package auth

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-featuregate/gate"
	"github.com/uptrace/bun"
)

// PasswordResetStep is the stage a reset flow is in.
type PasswordResetStep = string

const (
	// ResetInit is the initial step
	ResetInit PasswordResetStep = "show-reset"
	// AccountVerification notification sent
	AccountVerification PasswordResetStep = "email-sent"
	// ChangingPassword principal will change password
	ChangingPassword PasswordResetStep = "change-password"
	// ChangeFinalized processing change
	ChangeFinalized PasswordResetStep = "password-changed"
	// ResetUnknown unknown or expired reset token
	ResetUnknown PasswordResetStep = "reset-unknown"
)

type InitializePasswordResetMessage struct {
	Stage      string `json:"stage" example:"show-reset" doc:"Reset flow stage."`
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Principal email."`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (p InitializePasswordResetMessage) Type() string { return "principal.password_reset" }

type InitializePasswordResetResponse struct {
	Stage   string
	Success bool
}

// InitializePasswordResetHandler grants a short-lived remember token as the
// reset capability and notifies the principal. An unknown email produces the
// same response stage as a known one: the flow does not reveal which emails
// exist.
type InitializePasswordResetHandler struct {
	repo        RepositoryManager
	issuer      *TokenIssuer
	sink        ActivitySink
	featureGate gate.FeatureGate
}

func NewInitializePasswordResetHandler(repo RepositoryManager, issuer *TokenIssuer) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{repo: repo, issuer: issuer, sink: noopActivitySink{}}
}

// WithFeatureGate gates reset initialization behind the password reset flag.
func (h *InitializePasswordResetHandler) WithFeatureGate(featureGate gate.FeatureGate) *InitializePasswordResetHandler {
	h.featureGate = featureGate
	return h
}

func (h *InitializePasswordResetHandler) WithActivitySink(sink ActivitySink) *InitializePasswordResetHandler {
	h.sink = normalizeActivitySink(sink)
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	if err := requirePasswordResetGate(ctx, h.featureGate, false); err != nil {
		return err
	}

	resp := &InitializePasswordResetResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if event.Stage != ResetInit {
		return goerrors.New("unknown or invalid stage for password reset initialization", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"stage": event.Stage})
	}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := h.repo.Principals().FindByEmail(ctx, event.Email)
		if err != nil {
			return err
		}

		resp.Stage = AccountVerification
		if record == nil {
			return nil
		}

		if err := h.issuer.GrantResetCapability(ctx, record); err != nil {
			return err
		}

		token := record.RememberToken
		go func() {
			// TODO: we need to handle emails...
			printResetNotification(record.Email, token)
		}()

		if serr := h.sink.Record(ctx, ActivityEvent{
			EventType:   ActivityEventPasswordReset,
			PrincipalID: record.ID.String(),
			Metadata:    map[string]any{"stage": ResetInit},
			OccurredAt:  time.Now(),
		}); serr != nil {
			defLogger{}.Error("activity sink error during reset initialization", "error", serr)
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to initialize password reset")
	}

	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func printResetNotification(email string, token *string) {
	if token == nil {
		return
	}
	fmt.Println("====== SENDING EMAIL NOTIFICATION =======")
	fmt.Printf("to: %s\n", email)
	fmt.Printf("link: /password-reset/%s\n", *token)
}
