package auth

import (
	"strings"

	"github.com/ardes/authenticated-system/middleware/csrf"
	"github.com/goliatone/go-router"
)

// TemplatePrincipalKey is the locals/global key holding the current principal.
var TemplatePrincipalKey = "current_principal"

// TemplateHelpers returns helper functions for template engines, usable with
// go-template's WithGlobalData option.
//
// In templates:
//
//	{% if current_principal %}
//	{% if current_principal|is_activated %}
//	{{ current_principal|full_name }}
//	{{ csrf_field }}
func TemplateHelpers() map[string]any {
	return map[string]any{
		"is_authenticated": isAuthenticated,
		"is_activated":     isActivated,
		"full_name":        fullName,
	}
}

// TemplateHelpersWithPrincipal injects a specific principal as
// current_principal alongside the helper functions.
func TemplateHelpersWithPrincipal(p *Principal) map[string]any {
	helpers := TemplateHelpers()
	helpers[TemplatePrincipalKey] = p
	return helpers
}

// TemplateHelpersWithRouter pulls the current principal and the CSRF token
// out of the request so templates see live values.
func TemplateHelpersWithRouter(ctx router.Context, principalKey string) map[string]any {
	if principalKey == "" {
		principalKey = TemplatePrincipalKey
	}

	helpers := TemplateHelpers()

	if p := ctx.Locals(principalKey); p != nil {
		helpers[TemplatePrincipalKey] = p
	} else if p, ok := FromContext(ctx.Context()); ok && p != nil {
		helpers[TemplatePrincipalKey] = p
	}

	for key, value := range csrf.TemplateHelpers(ctx, csrf.DefaultContextKey) {
		helpers[key] = value
	}

	return helpers
}

// isAuthenticated reports whether the template's principal value is a real,
// non-anonymous identity. Templates may hold it as a struct or as a
// JSON-converted map depending on the renderer.
func isAuthenticated(principal any) bool {
	switch p := principal.(type) {
	case *Principal:
		return p != nil
	case Principal:
		return true
	case map[string]any:
		return len(p) > 0
	default:
		return false
	}
}

func isActivated(principal any) bool {
	switch p := principal.(type) {
	case *Principal:
		return p != nil && p.Activated()
	case Principal:
		return p.Activated()
	case map[string]any:
		code, exists := p["activation_code"]
		return !exists || code == nil
	default:
		return false
	}
}

func fullName(principal any) string {
	switch p := principal.(type) {
	case *Principal:
		if p == nil {
			return ""
		}
		return strings.TrimSpace(p.FirstName + " " + p.LastName)
	case Principal:
		return strings.TrimSpace(p.FirstName + " " + p.LastName)
	case map[string]any:
		first, _ := p["first_name"].(string)
		last, _ := p["last_name"].(string)
		return strings.TrimSpace(first + " " + last)
	default:
		return ""
	}
}
