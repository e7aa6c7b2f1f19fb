package csrf

import (
	"fmt"

	"github.com/goliatone/go-router"
)

// RouteConfig controls the token bootstrap endpoint for clients that render
// forms outside the server template pipeline.
type RouteConfig struct {
	// Path is the route the token is served from.
	Path string
	// ContextKey is where the middleware stored the token for this request.
	ContextKey string
	// RouteName names the registered route.
	RouteName string
}

const (
	defaultRoutePath = "/csrf"
	defaultRouteName = "sessions.csrf.get"
)

// RegisterRoutes exposes a GET endpoint returning the request's CSRF token
// plus the form field and header names a client should echo it back in. The
// CSRF middleware must run before this handler so the token is on the
// request.
func RegisterRoutes[T any](app router.Router[T], cfg ...RouteConfig) {
	conf := RouteConfig{
		Path:       defaultRoutePath,
		ContextKey: DefaultContextKey,
		RouteName:  defaultRouteName,
	}
	if len(cfg) > 0 {
		if cfg[0].Path != "" {
			conf.Path = cfg[0].Path
		}
		if cfg[0].ContextKey != "" {
			conf.ContextKey = cfg[0].ContextKey
		}
		if cfg[0].RouteName != "" {
			conf.RouteName = cfg[0].RouteName
		}
	}

	app.Get(conf.Path, tokenHandler(conf)).SetName(conf.RouteName)
}

func tokenHandler(cfg RouteConfig) router.HandlerFunc {
	return func(ctx router.Context) error {
		token, _ := ctx.Locals(cfg.ContextKey).(string)
		if token == "" {
			return ctx.JSON(router.StatusUnauthorized, map[string]string{
				"error": ErrTokenMissing.Error(),
			})
		}

		// tokens are per request, never cacheable
		ctx.SetHeader("Cache-Control", "no-store, max-age=0")
		ctx.SetHeader("Pragma", "no-cache")
		ctx.SetHeader("Expires", "0")

		fieldName := localsOverride(ctx, cfg.ContextKey+"_field", DefaultFormFieldName)
		headerName := localsOverride(ctx, cfg.ContextKey+"_header", DefaultHeaderName)

		return ctx.JSON(router.StatusOK, map[string]string{
			"token":       token,
			"field_name":  fieldName,
			"header_name": headerName,
			"field_html":  fmt.Sprintf(`<input type="hidden" name="%s" value="%s">`, fieldName, token),
		})
	}
}

func localsOverride(ctx router.Context, key, fallback string) string {
	if v, ok := ctx.Locals(key).(string); ok && v != "" {
		return v
	}
	return fallback
}
