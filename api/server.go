/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request for tracing
  2. RequestLogger: Structured request logging (slog)
  3. Recoverer:     Panic recovery (500 instead of crash)
  4. CORS:          Cross-origin requests, origins from config

ROUTE GROUPS:
  /api/invoices/*       Invoice selection, CRUD and audit log
  /api/sessions/*       Bulk-edit sessions
  /api/samples/*        Sample data sets
  /api/reset            Database reset (dev only)
  /*                    Landing page

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/warp/invoice-engine/config"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, corsCfg config.CORSConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsCfg.Origins(),
		AllowedMethods:   corsCfg.Methods(),
		AllowedHeaders:   corsCfg.Headers(),
		AllowCredentials: corsCfg.AllowCredentials,
		MaxAge:           corsCfg.MaxAge,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/invoices", func(r chi.Router) {
			r.Get("/", h.ListInvoices)
			r.Post("/", h.CreateInvoice)
			r.Post("/bulk-delete", h.BulkDeleteInvoices)
			r.Get("/{id}", h.GetInvoice)
			r.Delete("/{id}", h.DeleteInvoice)
			r.Get("/{id}/updates", h.ListInvoiceUpdates)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.CreateSession)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetSession)
				r.Put("/edits", h.SubmitEdit)
				r.Post("/items/open", h.OpenItemEditor)
				r.Post("/items/close", h.CloseItemEditor)
				r.Post("/items", h.AddItemRow)
				r.Put("/items/{itemId}", h.SubmitItemEdit)
				r.Delete("/items/{itemId}", h.DeleteItemRow)
				r.Post("/commit", h.Commit)
				r.Post("/cancel", h.CancelSession)
			})
		})

		r.Route("/samples", func(r chi.Router) {
			r.Get("/", h.ListSamples)
			r.Get("/current", h.GetCurrentSample)
			r.Post("/load", h.LoadSample)
		})

		r.Post("/reset", h.ResetDatabase)
	})

	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Invoice Bulk Editor</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Invoice Bulk Editor API</h1>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/invoices">/api/invoices</a> - List invoices</li>
<li><a href="/api/samples">/api/samples</a> - List sample data sets</li>
<li>POST /api/sessions - Start a bulk-edit session</li>
</ul>
</body>
</html>`))
	})

	return r
}
