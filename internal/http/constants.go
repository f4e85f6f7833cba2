package httpx

// CurrentPage identifiers used in templates and navigation.
const (
	PageLogin    = "login"
	PageSignUp   = "signup"
	PageChecking = "checking"
	PageDenied   = "denied"
	PageNotFound = "not-found"

	// Guarded pages.
	PageGrants  = "grants"
	PageReviews = "reviews"
	PageAdmin   = "admin"
)

// Admin account listing bounds.
const (
	AdminPageSize    = 25
	AdminMaxPageSize = 100
)

//nolint:gochecknoglobals // static read-only lookup for templates
var contentTemplates = map[string]string{
	PageLogin:    "login-content",
	PageSignUp:   "signup-content",
	PageChecking: "checking-content",
	PageDenied:   "denied-content",
	PageNotFound: "not-found-content",
	PageGrants:   "grants-content",
	PageReviews:  "reviews-content",
	PageAdmin:    "admin-content",
}

// ContentTemplateMap returns the mapping from CurrentPage to template name.
func ContentTemplateMap() map[string]string { return contentTemplates }

// ContentTemplateFor returns the content template for the given CurrentPage.
// Unknown pages render the not-found section.
func ContentTemplateFor(currentPage string) string {
	if name, ok := contentTemplates[currentPage]; ok {
		return name
	}
	return "not-found-content"
}
