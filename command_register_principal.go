package auth

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type RegisterPrincipalMessage struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Password     string `json:"password"`
	Confirmation string `json:"confirmation"`
	UseHashid    bool
}

func (e RegisterPrincipalMessage) Type() string { return "principal.register" }

// RegisterPrincipalHandler creates an unactivated principal with a fresh
// activation code and recognition token. The principal cannot authenticate
// until the activation code is redeemed.
type RegisterPrincipalHandler struct {
	repo        RepositoryManager
	creds       *Credentials
	featureGate gate.FeatureGate
}

func NewRegisterPrincipalHandler(repo RepositoryManager, creds *Credentials) *RegisterPrincipalHandler {
	return &RegisterPrincipalHandler{repo: repo, creds: creds}
}

// WithFeatureGate gates registration behind the signup feature flag.
func (h *RegisterPrincipalHandler) WithFeatureGate(featureGate gate.FeatureGate) *RegisterPrincipalHandler {
	h.featureGate = featureGate
	return h
}

func (h *RegisterPrincipalHandler) Execute(ctx context.Context, event RegisterPrincipalMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during principal registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterPrincipalHandler) execute(ctx context.Context, event RegisterPrincipalMessage) error {
	if err := requireSignupGate(ctx, h.featureGate); err != nil {
		return err
	}

	record := &Principal{}
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record.Email = event.Email
		record.Phone = event.Phone
		record.FirstName = event.FirstName
		record.LastName = event.LastName

		if event.UseHashid {
			if id, err := hashid.NewUUID(event.Email); err == nil {
				record.ID = id
			}
		}

		now := time.Now()
		record.CreatedAt = &now

		if err := h.creds.Apply(record, CredentialChange{
			Password:     event.Password,
			Confirmation: event.Confirmation,
		}, now); err != nil {
			return err
		}

		var err error
		if record, err = h.repo.Principals().RegisterTx(ctx, tx, record); err != nil {
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
		if isFieldValidationError(err) {
			return err
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "principal registration transaction failed")
	}

	return nil
}

func printActivationNotification(email string, code *string) {
	if code == nil {
		return
	}
	fmt.Println("====== SENDING EMAIL NOTIFICATION =======")
	fmt.Printf("to: %s\n", email)
	fmt.Printf("link: /activate/%s\n", *code)
}
