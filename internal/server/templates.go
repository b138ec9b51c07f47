package server

import (
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/fixdesk/fixdesk/internal/common"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"age": common.FormatAge,
	"datetime": func(t time.Time) string {
		return t.Local().Format("2006-01-02 15:04")
	},
}).ParseFS(templateFS, "templates/*.html"))

// render executes a page template. A template failure after the header
// is written cannot be unwritten, so errors are only logged.
func (s *Server) render(w http.ResponseWriter, status int, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Printf("render %s: %v", name, err)
	}
}
