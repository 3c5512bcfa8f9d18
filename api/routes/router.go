package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	cartscontroller "github.com/jaujye/ocean-shopping-center/api/controllers/carts"
	checkoutcontroller "github.com/jaujye/ocean-shopping-center/api/controllers/checkout"
	couponscontroller "github.com/jaujye/ocean-shopping-center/api/controllers/coupons"
	healthcontroller "github.com/jaujye/ocean-shopping-center/api/controllers/health"
	orderscontroller "github.com/jaujye/ocean-shopping-center/api/controllers/orders"
	"github.com/jaujye/ocean-shopping-center/api/middleware"
	"github.com/jaujye/ocean-shopping-center/pkg/config"
	"github.com/jaujye/ocean-shopping-center/pkg/logger"
)

// Controllers bundles the handlers the router mounts.
type Controllers struct {
	Health   *healthcontroller.Controller
	Carts    *cartscontroller.Controller
	Coupons  *couponscontroller.Controller
	Checkout *checkoutcontroller.Controller
	Orders   *orderscontroller.Controller
}

// New assembles the HTTP router.
func New(cfg *config.Config, logg *logger.Logger, c Controllers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID(logg))
	r.Use(middleware.Recoverer(logg))
	r.Use(middleware.Logging(logg))
	r.Use(chimiddleware.Timeout(30 * time.Second))

	r.Get("/healthz", c.Health.Live)
	r.Get("/readyz", c.Health.Ready)

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Identify(cfg.JWT, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", c.Carts.Get)
			r.Delete("/items", c.Carts.Clear)
			r.Post("/items", c.Carts.AddItem)
			r.Patch("/items/{itemID}", c.Carts.UpdateItem)
			r.Delete("/items/{itemID}", c.Carts.RemoveItem)
			r.Post("/items/{itemID}/save-for-later", c.Carts.SaveForLater)
			r.Post("/items/{itemID}/restore", c.Carts.Restore)
			r.Post("/coupon", c.Carts.ApplyCoupon)
			r.Delete("/coupon", c.Carts.RemoveCoupon)
			r.Post("/refresh", c.Carts.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireUser(logg))
				r.Post("/merge", c.Carts.Merge)
			})
		})

		r.Post("/checkout", c.Checkout.Execute)

		r.Route("/coupons", func(r chi.Router) {
			r.Post("/validate", c.Coupons.Validate)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin(logg))
				r.Post("/", c.Coupons.Create)
				r.Get("/", c.Coupons.List)
				r.Get("/{couponID}", c.Coupons.Get)
				r.Delete("/{couponID}", c.Coupons.Deactivate)
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(middleware.RequireUser(logg))
			r.Get("/", c.Orders.List)
			r.Get("/{orderID}", c.Orders.Get)
		})
	})

	return r
}
