package httpx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/target/grant-portal/internal/data"
)

// AccountLister pages through accounts for the admin view.
type AccountLister interface {
	List(ctx context.Context, limit, offset int) ([]data.AccountSummary, error)
}

// PortalPages renders the guarded portal pages. Each handler expects RequireSession
// to have placed the profile in the request context.
type PortalPages struct {
	Renderer *TemplateRenderer
	Accounts AccountLister
	Policy   RolePolicy
	Logger   *slog.Logger
}

func (p *PortalPages) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

func (p *PortalPages) page(r *http.Request, meta PageMeta) *TemplateDataBuilder {
	return NewTemplateData(r, meta).WithUser(GetProfileFromContext(r.Context()), p.Policy)
}

// Grants is the landing page.
// GET /grants.
func (p *PortalPages) Grants(w http.ResponseWriter, r *http.Request) {
	b := p.page(r, PageMeta{Title: "Grants", PageTitle: "My grants", CurrentPage: PageGrants})
	if sess := GetSessionFromContext(r.Context()); sess != nil {
		b.With("SessionExpiresAt", sess.ExpiresAt)
	}
	p.Renderer.Render(w, r, http.StatusOK, b.Build())
}

// Reviews lists review assignments.
// GET /reviews.
func (p *PortalPages) Reviews(w http.ResponseWriter, r *http.Request) {
	b := p.page(r, PageMeta{Title: "Reviews", PageTitle: "Reviews", CurrentPage: PageReviews})
	p.Renderer.Render(w, r, http.StatusOK, b.Build())
}

// Admin lists accounts with their roles.
// GET /admin?page=<n>&page_size=<n>.
func (p *PortalPages) Admin(w http.ResponseWriter, r *http.Request) {
	opts := parsePageOpts(r, AdminPageSize, AdminMaxPageSize)
	limit, offset := opts.LimitAndOffset()

	var accounts []data.AccountSummary
	if p.Accounts != nil {
		var err error
		accounts, err = p.Accounts.List(r.Context(), limit, offset)
		if err != nil {
			p.logger().ErrorContext(r.Context(), "list accounts failed", "error", err)
			b := p.page(r, PageMeta{Title: "Administration", PageTitle: "Accounts", CurrentPage: PageAdmin}).
				With("Accounts", []data.AccountSummary(nil)).
				WithError("Accounts could not be loaded.")
			p.Renderer.Render(w, r, statusForAppError(err), b.Build())
			return
		}
	}
	hasNext := len(accounts) > opts.PageSize
	if hasNext {
		accounts = accounts[:opts.PageSize]
	}

	b := p.page(r, PageMeta{Title: "Administration", PageTitle: "Accounts", CurrentPage: PageAdmin}).
		With("Accounts", accounts).
		WithPagination(r.URL.Path, opts, hasNext)
	p.Renderer.Render(w, r, http.StatusOK, b.Build())
}

// NotFound renders the 404 page.
func (p *PortalPages) NotFound(w http.ResponseWriter, r *http.Request) {
	if !IsBrowserRequest(r) {
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "not_found"})
		return
	}
	b := NewTemplateData(r, PageMeta{Title: "Not found", CurrentPage: PageNotFound})
	p.Renderer.Render(w, r, http.StatusNotFound, b.Build())
}
