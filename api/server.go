/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request, attached to error logs
  4. CORS:       Cross-origin requests from the mobile and web clients

ROUTE GROUPS:
  /api/supermarkets/*   Customers
  /api/fragrances/*     Scents
  /api/tiers            Price tiers
  /api/sales/*          Deliveries and payments
  /api/stock/*          Movements and replayed stock
  /api/orders/*         Scheduled deliveries
  /api/reports/*        Aging, supplier return, profitability, dashboard, export
  /api/reminders/*      Due payment and delivery reminders
  /api/scenarios/*      Demo data
  /                     API index

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
)

// NewRouter creates a new router with all routes configured. An empty
// origin list allows any origin.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/supermarkets", func(r chi.Router) {
			r.Get("/", h.ListSupermarkets)
			r.Post("/", h.CreateSupermarket)
			r.Get("/{id}", h.GetSupermarket)
		})

		r.Route("/fragrances", func(r chi.Router) {
			r.Get("/", h.ListFragrances)
			r.Post("/", h.CreateFragrance)
		})

		r.Get("/tiers", h.GetTiers)

		r.Route("/sales", func(r chi.Router) {
			r.Get("/", h.ListSales)
			r.Post("/", h.CreateSale)
			r.Get("/{id}", h.GetSale)
			r.Delete("/{id}", h.DeleteSale)
			r.Post("/{id}/payments", h.AddPayment)
		})

		r.Route("/stock", func(r chi.Router) {
			r.Get("/", h.GetStock)
			r.Get("/movements", h.ListMovements)
			r.Post("/movements", h.CreateMovement)
			r.Post("/recompute", h.RecomputeStock)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.ListOrders)
			r.Post("/", h.CreateOrder)
			r.Post("/{id}/status", h.UpdateOrderStatus)
			r.Post("/{id}/convert", h.ConvertOrder)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/aging", h.GetAging)
			r.Get("/supplier-return", h.GetSupplierReturn)
			r.Get("/period", h.GetPeriod)
			r.Get("/window", h.GetWindow)
			r.Get("/outstanding", h.GetOutstanding)
			r.Get("/dashboard", h.GetDashboard)
			r.Get("/export.xlsx", h.ExportXLSX)
		})

		r.Route("/reminders", func(r chi.Router) {
			r.Get("/", h.ListReminders)
			r.Post("/run", h.RunReminders)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Ledger Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Ledger Engine API</h1>
<ul>
<li><a href="/api/supermarkets">/api/supermarkets</a> - Supermarkets</li>
<li><a href="/api/sales">/api/sales</a> - Sales</li>
<li><a href="/api/stock">/api/stock</a> - Stock</li>
<li><a href="/api/reports/dashboard">/api/reports/dashboard</a> - Dashboard</li>
<li><a href="/api/scenarios">/api/scenarios</a> - Demo scenarios</li>
</ul>
</body>
</html>`))
	})

	return r
}
