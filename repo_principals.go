package auth

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Principals is the persistent credential store. It satisfies PrincipalStore
// for the engine and exposes the richer repository surface for commands and
// admin flows. Finders return (nil, nil) when nothing matches.
type Principals interface {
	repository.Repository[*Principal]
	PrincipalStore

	FindByActivationCode(ctx context.Context, code string) (*Principal, error)
	Register(ctx context.Context, record *Principal) (*Principal, error)
	RegisterTx(ctx context.Context, tx bun.IDB, record *Principal) (*Principal, error)
	SaveTx(ctx context.Context, tx bun.IDB, record *Principal) error
}

type principals struct {
	repository.Repository[*Principal]
	db *bun.DB
}

var (
	_ Principals                        = (*principals)(nil)
	_ PrincipalStore                    = (*principals)(nil)
	_ repository.Repository[*Principal] = (*principals)(nil)
)

// NewPrincipalsRepository wires a Principals store over bun.
func NewPrincipalsRepository(db *bun.DB) Principals {
	repo := repository.NewRepository[*Principal](db, repository.ModelHandlers[*Principal]{
		NewRecord: func() *Principal { return &Principal{} },
		GetID: func(p *Principal) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *Principal, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &principals{
		Repository: repo,
		db:         db,
	}
}

func (a *principals) FindByID(ctx context.Context, id uuid.UUID) (*Principal, error) {
	return a.findOne(ctx, "?TableAlias.id = ?", id)
}

// FindByEmail matches exactly, ignoring case. The stored casing is preserved.
func (a *principals) FindByEmail(ctx context.Context, email string) (*Principal, error) {
	return a.findOne(ctx, "lower(?TableAlias.email) = ?", strings.ToLower(email))
}

func (a *principals) FindByRememberToken(ctx context.Context, token string) (*Principal, error) {
	return a.findOne(ctx, "?TableAlias.remember_token = ?", token)
}

func (a *principals) FindByRecognitionToken(ctx context.Context, token string) (*Principal, error) {
	return a.findOne(ctx, "?TableAlias.recognition_token = ?", token)
}

func (a *principals) FindByActivationCode(ctx context.Context, code string) (*Principal, error) {
	return a.findOne(ctx, "?TableAlias.activation_code = ?", code)
}

func (a *principals) findOne(ctx context.Context, where string, value any) (*Principal, error) {
	record := &Principal{}

	err := a.db.NewSelect().
		Model(record).
		Where(where, value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "principal lookup failed")
	}

	return record.MarkLoaded(), nil
}

func (a *principals) Register(ctx context.Context, record *Principal) (*Principal, error) {
	return a.RegisterTx(ctx, a.db, record)
}

// RegisterTx creates an unactivated principal: it stamps defaults (id,
// activation code, recognition token) and enforces email uniqueness at write
// time. The recognition token is assigned here exactly once; normal flows
// never reassign it.
func (a *principals) RegisterTx(ctx context.Context, tx bun.IDB, record *Principal) (*Principal, error) {
	preparePrincipalDefaults(record)

	if err := record.Validate(); err != nil {
		return nil, err
	}

	if err := a.ensureEmailFree(ctx, tx, record.Email, record.ID); err != nil {
		return nil, err
	}

	return a.Repository.CreateTx(ctx, tx, record)
}

// Save persists the record's current field set as one unit.
func (a *principals) Save(ctx context.Context, record *Principal) error {
	return a.SaveTx(ctx, a.db, record)
}

func (a *principals) SaveTx(ctx context.Context, tx bun.IDB, record *Principal) error {
	if record == nil || record.ID == uuid.Nil {
		return ErrPrincipalNotFound
	}

	if err := record.Validate(); err != nil {
		return err
	}

	if record.EmailChanged() {
		if err := a.ensureEmailFree(ctx, tx, record.Email, record.ID); err != nil {
			return err
		}
	}

	now := time.Now()
	record.UpdatedAt = &now

	_, err := a.Repository.UpdateTx(ctx, tx, record, repository.UpdateByID(record.ID.String()))
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to save principal")
	}

	record.MarkLoaded()
	return nil
}

// ensureEmailFree checks the whole-store uniqueness invariant, ignoring case.
func (a *principals) ensureEmailFree(ctx context.Context, tx bun.IDB, email string, selfID uuid.UUID) error {
	count, err := tx.NewSelect().
		Model((*Principal)(nil)).
		Where("lower(?TableAlias.email) = ?", strings.ToLower(email)).
		Where("?TableAlias.id != ?", selfID).
		Count(ctx)

	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "email uniqueness check failed")
	}

	if count > 0 {
		return validation.Errors{"email": ErrEmailTaken}
	}
	return nil
}

func preparePrincipalDefaults(record *Principal) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if record.RecognitionToken == "" {
		record.RecognitionToken = NewOpaqueToken()
	}

	if record.ActivationCode == nil && record.ActivatedAt == nil {
		code := NewOpaqueToken()
		record.ActivationCode = &code
	}
}
