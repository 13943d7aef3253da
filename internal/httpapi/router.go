package httpapi

import (
	"net/http"

	log "github.com/sirupsen/logrus"
)

// NewRouter регистрирует маршруты и возвращает handler с middleware.
// healthz может быть nil — тогда маршрут /healthz не регистрируется.
func NewRouter(app *App, healthz http.Handler, logger *log.Entry) http.Handler {
	if logger == nil {
		logger = log.New().WithField("component", "httpapi")
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /products", app.listProductsHandler)
	mux.HandleFunc("POST /products", app.createProductHandler)
	mux.HandleFunc("GET /products/{id}", app.getProductHandler)
	mux.HandleFunc("PUT /products/{id}", app.updateProductHandler)
	mux.HandleFunc("DELETE /products/{id}", app.deleteProductHandler)

	mux.HandleFunc("GET /categories", app.listCategoriesHandler)
	mux.HandleFunc("POST /categories", app.createCategoryHandler)
	mux.HandleFunc("GET /categories/{id}", app.getCategoryHandler)
	mux.HandleFunc("DELETE /categories/{id}", app.deleteCategoryHandler)

	mux.HandleFunc("POST /orders", app.placeOrderHandler)
	mux.HandleFunc("GET /orders", app.listOrdersHandler)
	mux.HandleFunc("GET /orders/{id}", app.getOrderHandler)
	mux.HandleFunc("POST /orders/{id}/status", app.updateOrderStatusHandler)
	mux.HandleFunc("POST /orders/{id}/cancel", app.cancelOrderHandler)

	if healthz != nil {
		mux.Handle("GET /healthz", healthz)
	}

	return WithRequestID(WithIdentity(WithLogging(logger, mux)))
}
