package handlers

import (
	"embed"
	"html/template"
	"net/http"

	logger "github.com/sirupsen/logrus"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

func (h *HandlerSet) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("content-type", "text/html; charset=utf-8")
	if err := templates.ExecuteTemplate(w, name, data); err != nil {
		logger.Errorf("Failed to render %s: %s", name, err.Error())
		http.Error(w, "Something went wrong", http.StatusInternalServerError)
	}
}
