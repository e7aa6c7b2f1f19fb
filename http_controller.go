package auth

import (
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
)

// RegisterSessionRoutes mounts the session lifecycle, registration,
// activation, and password reset endpoints on the given router.
func RegisterSessionRoutes[T any](app router.Router[T], opts ...SessionsControllerOption) {

	controller := NewSessionsController(opts...)

	app.
		Get(controller.Routes.Login, controller.LoginShow).
		SetName("sign-in.get")

	app.
		Post(controller.Routes.Login, controller.LoginPost).
		SetName("sign-in.post")

	app.Get(controller.Routes.Logout, controller.LogOut).SetName("sign-out.get")

	app.Get(controller.Routes.Register, controller.RegistrationShow).
		SetName("register.get")
	app.Post(controller.Routes.Register, controller.RegistrationCreate).
		SetName("register.post")

	app.Get(fmt.Sprintf("%s/:code", controller.Routes.Activate), controller.ActivateGet).
		SetName("activate.get")
	app.Post(controller.Routes.Activate, controller.ActivationRequestPost).
		SetName("activate.post")

	app.Get(controller.Routes.PasswordReset, controller.PasswordResetGet).
		SetName("pwd-reset.get")
	app.Post(controller.Routes.PasswordReset, controller.PasswordResetPost).
		SetName("pwd-reset.post")

	app.Get(fmt.Sprintf("%s/:token", controller.Routes.PasswordReset), controller.PasswordResetForm).
		SetName("pwd-reset-do.get")
	app.Post(fmt.Sprintf("%s/:token", controller.Routes.PasswordReset), controller.PasswordResetExecute).
		SetName("pwd-reset-do.post")
}

type SessionsControllerRoutes struct {
	Login         string
	Logout        string
	Register      string
	Activate      string
	PasswordReset string
}

type SessionsControllerViews struct {
	Login         string
	Register      string
	Activate      string
	PasswordReset string
}

type SessionsController struct {
	Debug        bool
	Logger       Logger
	Repo         RepositoryManager
	Guard        *RouteGuard
	Config       Config
	Sink         ActivitySink
	Routes       *SessionsControllerRoutes
	Views        *SessionsControllerViews
	ErrorHandler router.ErrorHandler
}

type SessionsControllerOption func(*SessionsController) *SessionsController

func NewSessionsController(opts ...SessionsControllerOption) *SessionsController {
	c := &SessionsController{
		Logger:       defLogger{},
		Sink:         noopActivitySink{},
		ErrorHandler: defaultErrHandler,
		Routes: &SessionsControllerRoutes{
			Login:         "/login",
			Logout:        "/logout",
			Register:      "/register",
			Activate:      "/activate",
			PasswordReset: "/password-reset",
		},
		Views: &SessionsControllerViews{
			Login:         "login",
			Register:      "register",
			Activate:      "activate",
			PasswordReset: "password_reset",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in sessions controller...")
	}

	if c.Guard == nil {
		panic("Missing RouteGuard in sessions controller...")
	}

	if c.Config == nil {
		c.Config = DefaultSettings()
	}

	return c
}

func (a *SessionsController) LoginShow(ctx router.Context) error {
	// arriving at the login page stores the referer so a successful login
	// can send the client back where it came from
	StoreLocationAsBack(a.Guard.ResolverFor(ctx).Session(), ctx.Referer())

	return ctx.Render(a.Views.Login, router.ViewContext{
		"errors": nil,
		"record": nil,
	})
}

// LoginRequest payload
type LoginRequest struct {
	Email      string `form:"email" json:"email"`
	Password   string `form:"password" json:"password"`
	RememberMe bool   `form:"remember_me" json:"remember_me"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (a *SessionsController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)
	errs := map[string]string{}

	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return ctx.Render(a.Views.Login, router.ViewContext{
			"record":     payload,
			"validation": FormatValidationErrorToMap(err),
		})
	}

	if a.Debug {
		fmt.Println(print.MaybePrettyJSON(payload))
	}

	resolver := a.Guard.ResolverFor(ctx)
	principals := a.Repo.Principals()

	principal, err := a.Guard.Credentials().AuthenticateByEmail(ctx.Context(), principals, payload.Email, payload.Password)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if principal == nil {
		a.recordActivity(ctx, ActivityEventLoginFailure, "", map[string]any{"strategy": "form"})

		errs["authentication"] = "Invalid email or password"
		if msg, ok := a.unactivatedMessage(ctx, payload.Email); ok {
			errs["authentication"] = msg
		}

		return ctx.Render(a.Views.Login, router.ViewContext{
			"errors": errs,
			"record": payload,
		})
	}

	resolver.SetCurrent(principal)

	jar := routerCookieJar{ctx: ctx}

	if payload.RememberMe {
		if err := a.Guard.Issuer().Remember(ctx.Context(), principal); err != nil {
			return a.ErrorHandler(ctx, err)
		}
		jar.Set(Cookie{
			Name:    a.Config.GetRememberCookieName(),
			Value:   *principal.RememberToken,
			Expires: *principal.RememberTokenExpiresAt,
		})
	}

	// the recognition cookie survives logout, it only says "seen before"
	jar.Set(Cookie{
		Name:    a.Config.GetRecognitionCookieName(),
		Value:   principal.RecognitionToken,
		Expires: time.Now().Add(a.Config.GetRecognitionCookieDuration()),
	})

	a.recordActivity(ctx, ActivityEventLoginSuccess, principal.ID.String(), map[string]any{"strategy": "form"})

	redirect := TakeStoredLocation(resolver.Session(), "/")

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "Logged in successfully",
	}).Redirect(redirect, fiber.StatusSeeOther)
}

// unactivatedMessage distinguishes "never activated" from "wrong password"
// for the interactive flow only; the credential engine itself never does.
func (a *SessionsController) unactivatedMessage(ctx router.Context, email string) (string, bool) {
	record, err := a.Repo.Principals().FindByEmail(ctx.Context(), email)
	if err != nil || record == nil {
		return "", false
	}
	if record.ActivatedAt == nil {
		return "Your account has not been activated yet", true
	}
	return "", false
}

func (a *SessionsController) LogOut(ctx router.Context) error {
	resolver := a.Guard.ResolverFor(ctx)

	principal, err := resolver.Current(ctx.Context())
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	jar := routerCookieJar{ctx: ctx}

	if principal != nil {
		if principal.RememberToken != nil {
			if err := a.Guard.Issuer().RevokeRememberToken(ctx.Context(), principal); err != nil {
				a.Logger.Error("revoke remember token on logout", "error", err)
			}
		}
		a.recordActivity(ctx, ActivityEventLogout, principal.ID.String(), nil)
	}

	jar.Delete(a.Config.GetRememberCookieName())

	// recognition survives logout unless the client asks to be unrecognized
	if ctx.Query("unrecognize", "") != "" {
		jar.Delete(a.Config.GetRecognitionCookieName())
	}

	resolver.SetCurrent(nil)

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "You have been logged out",
	}).Redirect("/", fiber.StatusSeeOther)
}

func (a *SessionsController) RegistrationShow(ctx router.Context) error {
	return ctx.Render(a.Views.Register, router.ViewContext{
		"errors": map[string]string{},
		"record": RegisterPrincipalMessage{},
	})
}

// RegistrationCreatePayload is the form payload
type RegistrationCreatePayload struct {
	FirstName       string `form:"first_name" json:"first_name"`
	LastName        string `form:"last_name" json:"last_name"`
	Email           string `form:"email" json:"email"`
	Phone           string `form:"phone_number" json:"phone_number"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r RegistrationCreatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Phone, validation.Length(10, 11), is.Digit),
		validation.Field(&r.Password, validation.Required),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *SessionsController) RegistrationCreate(ctx router.Context) error {
	payload := new(RegistrationCreatePayload)

	if err := ctx.Bind(payload); err != nil {
		errs := map[string]string{"form": "Failed to parse form"}
		a.Logger.Error("register principal parse payload: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Status(fiber.StatusBadRequest).Render(a.Views.Register, router.ViewContext{
			"errors": errs,
			"record": payload,
		})
	}

	if err := payload.Validate(); err != nil {
		errs := FormatValidationErrorToMap(err)
		a.Logger.Error("register principal validate payload: ", "error", err)

		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error validating payload",
		}).Render(a.Views.Register, router.ViewContext{
			"record":     payload,
			"validation": errs,
		})
	}

	req := RegisterPrincipalMessage{
		FirstName:    payload.FirstName,
		LastName:     payload.LastName,
		Email:        payload.Email,
		Phone:        payload.Phone,
		Password:     payload.Password,
		Confirmation: payload.ConfirmPassword,
	}

	register := NewRegisterPrincipalHandler(a.Repo, a.Guard.Credentials())
	if err := register.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("register principal error: ", "error", err)

		errs := map[string]string{"registration": err.Error()}
		if isFieldValidationError(err) {
			errs = FormatValidationErrorToMap(err)
		}

		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error registering account",
		}).Render(a.Views.Register, router.ViewContext{
			"record": payload,
			"errors": errs,
		})
	}

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "Thanks for signing up, check your email to activate your account",
	}).Redirect("/", fiber.StatusSeeOther)
}

func (a *SessionsController) ActivateGet(ctx router.Context) error {
	code := ctx.Param("code", "")

	var resp *ActivateResponse
	req := ActivateMessage{
		Code: code,
		OnResponse: func(r *ActivateResponse) {
			resp = r
		},
	}

	activate := NewActivateHandler(a.Repo, a.Guard.Credentials()).WithActivitySink(a.Sink)

	if err := activate.Execute(ctx.Context(), req); err != nil {
		return ctx.Render(a.Views.Activate, router.ViewContext{
			"errors":    map[string]string{"activation": err.Error()},
			"activated": false,
		})
	}

	message := "Your account is already active"
	if resp != nil && resp.RecentlyActivated {
		message = "Your account has been activated, you can now log in"
	}

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": message,
	}).Redirect(a.Routes.Login, fiber.StatusSeeOther)
}

// ActivationRequestPayload asks for a fresh activation code
type ActivationRequestPayload struct {
	Email string `form:"email" json:"email"`
}

func (r ActivationRequestPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (a *SessionsController) ActivationRequestPost(ctx router.Context) error {
	payload := new(ActivationRequestPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return ctx.Render(a.Views.Activate, router.ViewContext{
			"validation": FormatValidationErrorToMap(err),
			"record":     payload,
		})
	}

	request := NewRequestActivationHandler(a.Repo, a.Guard.Credentials()).WithActivitySink(a.Sink)

	if err := request.Execute(ctx.Context(), RequestActivationMessage{Email: payload.Email}); err != nil {
		a.Logger.Error("activation request error: ", "error", err)
	}

	// same response whether the email exists or not
	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "If that account exists, a new activation link is on its way",
	}).Redirect(a.Routes.Login, fiber.StatusSeeOther)
}

const (
	stageKey = "stage"
	tokenKey = "token"
	emailKey = "email"
)

func (a *SessionsController) PasswordResetGet(ctx router.Context) error {
	return ctx.Render(a.Views.PasswordReset, router.ViewContext{
		"errors": nil,
		"reset": map[string]string{
			stageKey: ResetInit,
		},
	})
}

// PasswordResetRequestPayload holds values for password reset
type PasswordResetRequestPayload struct {
	Email string `form:"email" json:"email"`
	Stage string `form:"stage" json:"stage"`
}

// Validate will validate the payload
func (r PasswordResetRequestPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Stage,
			validation.Required,
			validation.In(
				ResetInit,
			),
		),
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
	)
}

func (a *SessionsController) PasswordResetPost(ctx router.Context) error {
	errs := map[string]string{}
	payload := new(PasswordResetRequestPayload)

	if err := ctx.Bind(payload); err != nil {
		errs["form"] = "Failed to parse form"
		a.Logger.Error("password reset parse payload: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Status(fiber.StatusBadRequest).Render(a.Views.PasswordReset, router.ViewContext{
			"errors": errs,
			"record": payload,
		})
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("password reset validate payload: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error validating payload",
		}).Render(a.Views.PasswordReset, router.ViewContext{
			"record":     payload,
			"validation": FormatValidationErrorToMap(err),
		})
	}

	var res *InitializePasswordResetResponse

	req := InitializePasswordResetMessage{
		Stage: payload.Stage,
		Email: payload.Email,
		OnResponse: func(resp *InitializePasswordResetResponse) {
			res = resp
		},
	}

	initReset := NewInitializePasswordResetHandler(a.Repo, a.Guard.Issuer()).WithActivitySink(a.Sink)

	if err := initReset.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("password reset init error: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error starting password reset",
		}).Render(a.Views.PasswordReset, router.ViewContext{
			"record": payload,
			"errors": []string{err.Error()},
		})
	}

	if a.Debug {
		fmt.Println(print.MaybePrettyJSON(res))
	}

	if res != nil && res.Success && res.Stage == AccountVerification {
		return ctx.Render(a.Views.PasswordReset, router.ViewContext{
			"errors": errs,
			"reset": map[string]string{
				stageKey: AccountVerification,
				emailKey: req.Email,
			},
		})
	}

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "Check your email for the reset link",
	}).Redirect("/", fiber.StatusSeeOther)
}

func (a *SessionsController) PasswordResetForm(ctx router.Context) error {
	token := ctx.Param("token", "")
	errs := map[string]string{}

	record, err := a.Repo.Principals().FindByRememberToken(ctx.Context(), token)
	if err != nil {
		errs["verification"] = err.Error()
	}

	currentStage := ChangingPassword
	if record == nil || !record.RememberTokenLive(time.Now()) {
		currentStage = ResetUnknown
	}

	return ctx.Render(a.Views.PasswordReset, router.ViewContext{
		"errors": errs,
		"reset": map[string]string{
			tokenKey: token,
			stageKey: currentStage,
		},
	})
}

// PasswordResetVerifyPayload holds values for password reset
type PasswordResetVerifyPayload struct {
	Stage           string `form:"stage" json:"stage"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r PasswordResetVerifyPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Stage,
			validation.Required,
			validation.In(
				ChangingPassword,
			),
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *SessionsController) PasswordResetExecute(ctx router.Context) error {
	token := ctx.Param("token", "")

	errs := map[string]string{}
	payload := new(PasswordResetVerifyPayload)

	if err := ctx.Bind(payload); err != nil {
		errs["form"] = "Failed to parse form"
		a.Logger.Error("password reset parse payload: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Status(fiber.StatusBadRequest).Render(a.Views.PasswordReset, router.ViewContext{
			"errors": errs,
			"record": payload,
		})
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("password reset validate payload: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error validating payload",
		}).Render(a.Views.PasswordReset, router.ViewContext{
			"record":     payload,
			"validation": FormatValidationErrorToMap(err),
		})
	}

	input := FinalizePasswordResetMessage{
		Token:        token,
		Password:     payload.Password,
		Confirmation: payload.ConfirmPassword,
	}

	finalize := NewFinalizePasswordResetHandler(a.Repo, a.Guard.Credentials(), a.Guard.Issuer()).
		WithActivitySink(a.Sink)

	if err := finalize.Execute(ctx.Context(), input); err != nil {
		errs["validation"] = err.Error()
		return ctx.Render(a.Views.PasswordReset, router.ViewContext{
			"errors": errs,
			"reset": router.ViewContext{
				stageKey: ChangingPassword,
				tokenKey: token,
			},
		})
	}

	return ctx.Render(a.Views.PasswordReset, router.ViewContext{
		"errors": errs,
		"reset": router.ViewContext{
			stageKey: ChangeFinalized,
			tokenKey: token,
		},
	})
}

func (a *SessionsController) recordActivity(ctx router.Context, eventType ActivityEventType, principalID string, metadata map[string]any) {
	event := ActivityEvent{
		EventType:   eventType,
		PrincipalID: principalID,
		Metadata:    metadata,
		OccurredAt:  time.Now(),
	}
	if err := normalizeActivitySink(a.Sink).Record(ctx.Context(), event); err != nil {
		a.Logger.Error("activity sink error", "error", err)
	}
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

func defaultErrHandler(c router.Context, err error) error {
	return c.Render("errors/500", router.ViewContext{
		"message": err.Error(),
	})
}
