package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/jkuat-robotics/printdesk/internal/auth"
	"github.com/jkuat-robotics/printdesk/internal/config"
	"github.com/jkuat-robotics/printdesk/internal/handlers"
)

const (
	compressLevel = 5
)

type Middleware interface {
	Handle(h http.Handler) http.Handler
}

type Router struct {
	address string
	router  *chi.Mux
}

func NewRouter(conf *config.ServerConfig, h *handlers.HandlerSet, middlewares ...Middleware) *Router {

	r := chi.NewRouter()

	for _, m := range middlewares {
		r.Use(m.Handle)
	}
	r.Use(middleware.Compress(compressLevel))

	r.Get("/", h.HandleUploadForm)
	r.Post("/upload", h.HandleUpload)
	r.Get("/status-check/{filename}", h.HandleStatusCheck)
	r.Get("/status/{filename}", h.HandleStatusPage)
	r.Post("/api/mpesa/callback", h.HandleMpesaCallback)

	adminAuth := &auth.AdminAuthMiddleware{User: conf.AdminUser, PasswordHash: conf.AdminPasswordHash}

	r.Group(func(r chi.Router) {

		r.Use(adminAuth.Handle)
		r.Get("/admin/files", h.HandleAdminFiles)
		r.Get("/admin/download/{name}", h.HandleAdminDownload)
	})

	return &Router{router: r, address: conf.RunAddress}
}

func (r *Router) ListenAndServe() error {
	err := http.ListenAndServe(r.address, r.router)
	return err
}
