// Package grantportal provides the portal's embedded web assets.
package grantportal

import "embed"

// StaticFS holds CSS and scripts served under /static/.
//
//go:embed all:web/static
var StaticFS embed.FS

// TemplateFS holds the layout and page templates.
//
//go:embed all:web/templates
var TemplateFS embed.FS
