package core

import (
	"html/template"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/target/grant-portal/internal/domain/auth"
)

func TestRoleLabel(t *testing.T) {
	assert.Equal(t, "Reviewer", RoleLabel(domainauth.RoleReviewer))
	assert.Equal(t, "Institutional Administrator", RoleLabel("institutional_admin"))
	assert.Equal(t, "Unknown", RoleLabel("owner"))
	assert.Empty(t, RoleLabel(42))
}

func TestDeref(t *testing.T) {
	inst := "State University"
	empty := ""
	assert.Equal(t, "State University", Deref(&inst, "-"))
	assert.Equal(t, "-", Deref(&empty, "-"))
	assert.Equal(t, "-", Deref(nil, "-"))
}

func TestTimeTag(t *testing.T) {
	assert.Empty(t, timeTag(time.Time{}))
	assert.Empty(t, timeTag("not a time"))

	ts := time.Date(2026, 3, 4, 15, 4, 5, 0, time.UTC)
	html := string(timeTag(&ts))
	assert.True(t, strings.HasPrefix(html, `<time datetime="2026-03-04T15:04:05Z"`))
}

func TestRenderSection(t *testing.T) {
	var tmpl *template.Template
	funcs := Funcs(Deps{
		Template:           &tmpl,
		ContentTemplateFor: func(page string) string { return page + "-content" },
	})
	var err error
	tmpl, err = template.New("root").Funcs(funcs).Parse(
		`{{define "layout"}}<main>{{renderSection .Page .}}</main>{{end}}` +
			`{{define "hello-content"}}Hi {{.Name}}{{end}}`)
	require.NoError(t, err)

	var out strings.Builder
	require.NoError(t, tmpl.ExecuteTemplate(&out, "layout", map[string]string{"Page": "hello", "Name": "<b>Pat</b>"}))
	assert.Equal(t, "<main>Hi &lt;b&gt;Pat&lt;/b&gt;</main>", out.String())
}
