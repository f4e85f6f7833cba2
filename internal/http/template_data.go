package httpx

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	domainauth "github.com/target/grant-portal/internal/domain/auth"
)

// PageMeta holds per-page layout metadata.
type PageMeta struct {
	Title       string
	PageTitle   string
	CurrentPage string
}

// NavLink is one entry of the top navigation.
type NavLink struct {
	Page  string
	Path  string
	Label string
}

// pageRefresh drives the layout's meta refresh tag.
type pageRefresh struct {
	Seconds int
	URL     string
}

// Content renders the meta refresh content attribute.
func (p pageRefresh) Content() string {
	return strconv.Itoa(p.Seconds) + ";url=" + p.URL
}

func newPageRefresh(after time.Duration, target string) *pageRefresh {
	secs := int((after + time.Second - 1) / time.Second)
	if secs < 0 {
		secs = 0
	}
	return &pageRefresh{Seconds: secs, URL: target}
}

// navLinksFor returns the pages the role may open, in display order.
func navLinksFor(role domainauth.Role, policy RolePolicy) []NavLink {
	all := []NavLink{
		{Page: PageGrants, Path: "/grants", Label: "Grants"},
		{Page: PageReviews, Path: "/reviews", Label: "Reviews"},
		{Page: PageAdmin, Path: "/admin", Label: "Administration"},
	}
	if policy == nil {
		return all
	}
	out := make([]NavLink, 0, len(all))
	for _, l := range all {
		if allowed, ok := policy.Match(l.Path); !ok || allowed.Allows(role) {
			out = append(out, l)
		}
	}
	return out
}

// TemplateDataBuilder provides a fluent API for building template data maps.
type TemplateDataBuilder struct {
	data map[string]any
	r    *http.Request
}

// NewTemplateData creates a new TemplateDataBuilder initialized with basePageData.
func NewTemplateData(r *http.Request, meta PageMeta) *TemplateDataBuilder {
	return &TemplateDataBuilder{data: basePageData(r, meta), r: r}
}

// basePageData fills the keys the layout reads on every page. Navigation lists every
// page until WithUser narrows it by policy.
func basePageData(r *http.Request, meta PageMeta) map[string]any {
	data := map[string]any{
		"Title":           meta.Title,
		"PageTitle":       meta.PageTitle,
		"CurrentPage":     meta.CurrentPage,
		"CSRFToken":       GetCSRFToken(r),
		"IsAuthenticated": false,
		"ErrorMessage":    "",
	}
	if profile := GetProfileFromContext(r.Context()); profile != nil {
		data["User"] = profile
		data["IsAuthenticated"] = true
		data["Nav"] = navLinksFor(profile.Role, nil)
	}
	return data
}

// WithUser sets the profile for pages rendered outside RequireSession, such as the denial page.
func (b *TemplateDataBuilder) WithUser(p *domainauth.Profile, policy RolePolicy) *TemplateDataBuilder {
	if p != nil {
		b.data["User"] = p
		b.data["IsAuthenticated"] = true
		b.data["Nav"] = navLinksFor(p.Role, policy)
	}
	return b
}

// WithRefresh makes the page navigate to target after the delay.
func (b *TemplateDataBuilder) WithRefresh(after time.Duration, target string) *TemplateDataBuilder {
	b.data["Refresh"] = newPageRefresh(after, target)
	return b
}

// WithPagination sets PrevURL and NextURL for limit/offset style listings.
func (b *TemplateDataBuilder) WithPagination(basePath string, p pageOpts, hasNext bool) *TemplateDataBuilder {
	b.data["Page"] = p.Page
	b.data["PageSize"] = p.PageSize
	if p.Page > 1 {
		b.data["PrevURL"] = buildPageURL(basePath, b.r.URL.Query(), pageOpts{Page: p.Page - 1, PageSize: p.PageSize})
	}
	if hasNext {
		b.data["NextURL"] = buildPageURL(basePath, b.r.URL.Query(), pageOpts{Page: p.Page + 1, PageSize: p.PageSize})
	}
	return b
}

// WithError sets a general error message.
func (b *TemplateDataBuilder) WithError(msg string) *TemplateDataBuilder {
	b.data["Error"] = true
	b.data["ErrorMessage"] = msg
	return b
}

// With adds a custom field to the template data.
func (b *TemplateDataBuilder) With(key string, value any) *TemplateDataBuilder {
	b.data[key] = value
	return b
}

// Build returns the final template data map.
func (b *TemplateDataBuilder) Build() map[string]any {
	return b.data
}

type pageOpts struct {
	Page     int
	PageSize int
}

// parsePageOpts reads page and page_size, clamping to [1, maxSize].
func parsePageOpts(r *http.Request, defSize, maxSize int) pageOpts {
	p := pageOpts{Page: parseIntQuery(r, "page", 1), PageSize: parseIntQuery(r, "page_size", defSize)}
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = defSize
	}
	if p.PageSize > maxSize {
		p.PageSize = maxSize
	}
	return p
}

// LimitAndOffset fetches one extra row to detect whether a next page exists.
func (p pageOpts) LimitAndOffset() (int, int) {
	return p.PageSize + 1, (p.Page - 1) * p.PageSize
}

func buildPageURL(basePath string, q url.Values, p pageOpts) string {
	qq := make(url.Values, len(q))
	for k, v := range q {
		if strings.HasPrefix(k, "hx-") || strings.HasPrefix(k, "hx_") {
			continue
		}
		for _, s := range v {
			if strings.TrimSpace(s) != "" {
				qq.Add(k, s)
			}
		}
	}
	qq.Set("page", strconv.Itoa(p.Page))
	qq.Set("page_size", strconv.Itoa(p.PageSize))
	return basePath + "?" + qq.Encode()
}
