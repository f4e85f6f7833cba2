// Package core holds the template helpers shared by every portal page.
package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"time"

	domainauth "github.com/target/grant-portal/internal/domain/auth"
	"github.com/target/grant-portal/internal/http/uiutil"
)

// Deps holds optional dependencies for constructing the core template func map.
type Deps struct {
	Template           **template.Template
	ContentTemplateFor func(string) string
}

// Funcs returns the template.FuncMap used by the layout and pages.
func Funcs(deps Deps) template.FuncMap {
	funcs := template.FuncMap{
		"sectionTmpl":  deps.ContentTemplateFor,
		"friendlyTime": friendlyTime,
		"relativeTime": relativeTime,
		"timeTag":      timeTag,
		"roleLabel":    RoleLabel,
		"deref":        Deref,
		"initials":     uiutil.Initials,
		"toJSON": func(v any) (string, error) {
			b, err := json.Marshal(v)
			if err != nil {
				return "", err
			}
			return string(b), nil
		},
	}

	funcs["renderSection"] = func(page string, data any) (template.HTML, error) {
		if deps.Template == nil || *deps.Template == nil {
			return "", errors.New("template not initialized")
		}
		var buf bytes.Buffer
		if err := (*deps.Template).ExecuteTemplate(&buf, deps.ContentTemplateFor(page), data); err != nil {
			return "", err
		}
		// #nosec G203 - produced by the same html/template set, values already escaped.
		return template.HTML(buf.String()), nil
	}
	return funcs
}

// RoleLabel accepts a Role or its string form.
func RoleLabel(v any) string {
	switch r := v.(type) {
	case domainauth.Role:
		return r.Label()
	case string:
		return domainauth.Role(r).Label()
	default:
		return ""
	}
}

// Deref returns the pointed-to string or fallback when nil or empty.
func Deref(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}

func asTime(ts any) time.Time {
	switch v := ts.(type) {
	case time.Time:
		return v
	case *time.Time:
		if v != nil {
			return *v
		}
	}
	return time.Time{}
}

func friendlyTime(ts any) string {
	return uiutil.FormatFriendlyDateTime(asTime(ts))
}

func relativeTime(ts any) string {
	t := asTime(ts)
	if t.IsZero() {
		return ""
	}
	return uiutil.FriendlyRelativeTime(t)
}

func timeTag(ts any) template.HTML {
	t := asTime(ts)
	if t.IsZero() {
		return ""
	}
	// #nosec G203 - built from escaped values only
	return template.HTML(fmt.Sprintf(
		"<time datetime=\"%s\" title=\"%s\">%s</time>",
		t.UTC().Format(time.RFC3339),
		template.HTMLEscapeString(t.Local().Format(time.RFC1123)),
		template.HTMLEscapeString(uiutil.FormatFriendlyDateTime(t)),
	))
}
