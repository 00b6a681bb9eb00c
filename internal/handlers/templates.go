package handlers

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/jjudge-oj/accounts/internal/forms"
	"github.com/jjudge-oj/accounts/types"
)

const (
	pageRegister    = "register.html"
	pageLogin       = "login.html"
	pageProfile     = "profile.html"
	pageProfileEdit = "profile_edit.html"
	pageError       = "error.html"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = mustParsePages(pageRegister, pageLogin, pageProfile, pageProfileEdit, pageError)

// page is the data every template receives. User is the authenticated user or nil.
type page struct {
	User    *types.User
	Form    any
	Errors  forms.Errors
	Message string
}

func mustParsePages(names ...string) map[string]*template.Template {
	base := template.Must(template.New("base.html").
		Funcs(template.FuncMap{"url": Reverse}).
		ParseFS(templateFS, "templates/base.html"))

	parsed := make(map[string]*template.Template, len(names))
	for _, name := range names {
		clone := template.Must(base.Clone())
		parsed[name] = template.Must(clone.ParseFS(templateFS, "templates/"+name))
	}
	return parsed
}

// render executes the named page into a buffer first so a template error never
// leaves a half-written response.
func render(w http.ResponseWriter, status int, name string, data page) error {
	tmpl, ok := pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
	return nil
}
