// Package web renders the portal's server-side HTML pages.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"fileportal/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

const layoutFile = "templates/layout.html"

// Page names accepted by Renderer.Render.
const (
	PageIndex            = "index"
	PageRegister         = "register"
	PageLogin            = "login"
	PageAdminDashboard   = "admin_dashboard"
	PageTeacherDashboard = "teacher_dashboard"
	PageUpload           = "upload"
)

// Flash is a one-shot notice shown on the next rendered page.
type Flash struct {
	Category string
	Message  string
}

// Page is the data passed to every template.
type Page struct {
	Title        string
	User         *model.User
	Flash        *Flash
	CSRFToken    string
	Files        []model.File
	PendingUsers []model.User
	Form         map[string]string
	MaxUploadMB  int64
}

// Renderer implements echo.Renderer over the embedded templates. Each page
// is parsed together with the shared layout.
type Renderer struct {
	pages map[string]*template.Template
}

var _ echo.Renderer = (*Renderer)(nil)

// NewRenderer parses all embedded pages.
func NewRenderer() (*Renderer, error) {
	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	funcs := template.FuncMap{
		"humanSize":  humanSize,
		"formatTime": formatTime,
	}

	r := &Renderer{pages: make(map[string]*template.Template)}
	for _, file := range files {
		if file == layoutFile {
			continue
		}
		name := strings.TrimSuffix(path.Base(file), ".html")
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(templateFS, layoutFile, file)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.pages[name] = tmpl
	}
	return r, nil
}

// Render executes the named page inside the layout.
func (r *Renderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	return tmpl.ExecuteTemplate(w, "layout", data)
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}
