// Package httpapi serves the detection pipeline over plain HTTP for clients
// that do not speak MCP.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/ping", PingHandler)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/analyze", app.AnalyzeHandler)
		r.Post("/filter", app.FilterHandler)
		r.Post("/summary", app.SummaryHandler)
		r.Post("/render", app.RenderHandler)
		r.Get("/materials", app.MaterialsHandler)
		r.Get("/materials/{material}", app.MaterialHandler)
	})

	return r
}
