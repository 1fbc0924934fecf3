// Package web renders the frontend application shell.
package web

import (
	"bytes"
	"embed"
	"html/template"
	"io"
	"net/http"

	"github.com/aleka07/onchain-agent/internal/logger"
)

// Label is the static text the shell displays.
const Label = "On-chain Security AI Agent"

//go:embed templates/shell.html
var templateFS embed.FS

var shellTemplate = template.Must(template.ParseFS(templateFS, "templates/shell.html"))

// View is the data the shell template renders. The zero value renders the
// default label.
type View struct {
	Title string
	Label string
}

func (v View) withDefaults() View {
	if v.Label == "" {
		v.Label = Label
	}
	if v.Title == "" {
		v.Title = v.Label
	}
	return v
}

// Render writes the shell page for v to w.
func Render(w io.Writer, v View) error {
	return shellTemplate.Execute(w, v.withDefaults())
}

// Handler serves the shell with no data.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		if err := Render(&buf, View{}); err != nil {
			logger.Error("Failed to render frontend shell", "error", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = buf.WriteTo(w)
	})
}
