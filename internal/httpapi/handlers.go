package httpapi

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/service/catalog"
	"github.com/vladislavdragonenkov/shop/internal/service/orders"
)

const (
	headerIdempotencyKey = "Idempotency-Key"

	defaultIdempotencyTTL = 24 * time.Hour
	maxBodyBytes          = 1 << 20
)

// App связывает HTTP-обработчики с сервисами.
type App struct {
	Catalog     *catalog.Service
	Orders      *orders.Service
	Idempotency domain.IdempotencyRepository

	logger  *log.Entry
	idemTTL time.Duration
}

// NewApp конструирует HTTP-приложение. Idempotency может быть nil — тогда
// заголовок Idempotency-Key игнорируется.
func NewApp(catalogSvc *catalog.Service, ordersSvc *orders.Service, idem domain.IdempotencyRepository, logger *log.Entry) *App {
	if logger == nil {
		logger = log.New().WithField("component", "httpapi")
	}
	return &App{
		Catalog:     catalogSvc,
		Orders:      ordersSvc,
		Idempotency: idem,
		logger:      logger,
		idemTTL:     defaultIdempotencyTTL,
	}
}

type productPayload struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int32           `json:"stock"`
	CategoryID  string          `json:"category_id"`
	Active      *bool           `json:"active,omitempty"`
}

type productResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       string    `json:"price"`
	Stock       int32     `json:"stock"`
	CategoryID  string    `json:"category_id"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type categoryPayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type categoryResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

type orderItemPayload struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

type placeOrderPayload struct {
	Items []orderItemPayload `json:"items"`
}

type orderItemResponse struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
	Price     string `json:"price"`
	Subtotal  string `json:"subtotal"`
}

type statusEventResponse struct {
	Status   string    `json:"status"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred"`
}

type orderResponse struct {
	ID        string                `json:"id"`
	UserID    string                `json:"user_id"`
	Status    string                `json:"status"`
	Total     string                `json:"total"`
	Items     []orderItemResponse   `json:"items"`
	Version   int64                 `json:"version"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
	History   []statusEventResponse `json:"history,omitempty"`
}

type updateStatusPayload struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

type cancelPayload struct {
	Reason string `json:"reason"`
}

func toProductResponse(p domain.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.StringFixed(2),
		Stock:       p.Stock,
		CategoryID:  p.CategoryID,
		Active:      p.Active,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func toCategoryResponse(c domain.Category) categoryResponse {
	return categoryResponse{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Active:      c.Active,
		CreatedAt:   c.CreatedAt,
	}
}

func toOrderResponse(order domain.Order, history []domain.StatusEvent) orderResponse {
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price.StringFixed(2),
			Subtotal:  item.Subtotal.StringFixed(2),
		})
	}

	events := make([]statusEventResponse, 0, len(history))
	for _, event := range history {
		events = append(events, statusEventResponse{
			Status:   string(event.Status),
			Reason:   event.Reason,
			Occurred: event.Occurred,
		})
	}

	return orderResponse{
		ID:        order.ID,
		UserID:    order.UserID,
		Status:    string(order.Status),
		Total:     order.Total.StringFixed(2),
		Items:     items,
		Version:   order.Version,
		CreatedAt: order.CreatedAt,
		UpdatedAt: order.UpdatedAt,
		History:   events,
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return false
	}
	return true
}

func (a *App) listProductsHandler(w http.ResponseWriter, r *http.Request) {
	products, err := a.Catalog.ListProducts(IdentityFromContext(r.Context()), r.URL.Query().Get("category_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	result := make([]productResponse, 0, len(products))
	for _, p := range products {
		result = append(result, toProductResponse(p))
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *App) getProductHandler(w http.ResponseWriter, r *http.Request) {
	product, err := a.Catalog.GetProduct(IdentityFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(product))
}

func (a *App) createProductHandler(w http.ResponseWriter, r *http.Request) {
	var payload productPayload
	if !decodeJSON(w, r, &payload) {
		return
	}

	product, err := a.Catalog.CreateProduct(IdentityFromContext(r.Context()), domain.Product{
		Name:        payload.Name,
		Description: payload.Description,
		Price:       payload.Price,
		Stock:       payload.Stock,
		CategoryID:  payload.CategoryID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductResponse(product))
}

func (a *App) updateProductHandler(w http.ResponseWriter, r *http.Request) {
	var payload productPayload
	if !decodeJSON(w, r, &payload) {
		return
	}

	product := domain.Product{
		ID:          r.PathValue("id"),
		Name:        payload.Name,
		Description: payload.Description,
		Price:       payload.Price,
		Stock:       payload.Stock,
		CategoryID:  payload.CategoryID,
		Active:      true,
	}
	if payload.Active != nil {
		product.Active = *payload.Active
	}

	updated, err := a.Catalog.UpdateProduct(IdentityFromContext(r.Context()), product)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(updated))
}

func (a *App) deleteProductHandler(w http.ResponseWriter, r *http.Request) {
	if err := a.Catalog.DeleteProduct(IdentityFromContext(r.Context()), r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) listCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	categories, err := a.Catalog.ListCategories(IdentityFromContext(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	result := make([]categoryResponse, 0, len(categories))
	for _, c := range categories {
		result = append(result, toCategoryResponse(c))
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *App) getCategoryHandler(w http.ResponseWriter, r *http.Request) {
	category, err := a.Catalog.GetCategory(IdentityFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryResponse(category))
}

func (a *App) createCategoryHandler(w http.ResponseWriter, r *http.Request) {
	var payload categoryPayload
	if !decodeJSON(w, r, &payload) {
		return
	}

	category, err := a.Catalog.CreateCategory(IdentityFromContext(r.Context()), domain.Category{
		Name:        payload.Name,
		Description: payload.Description,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCategoryResponse(category))
}

func (a *App) deleteCategoryHandler(w http.ResponseWriter, r *http.Request) {
	if err := a.Catalog.DeleteCategory(IdentityFromContext(r.Context()), r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// placeOrderHandler размещает заказ. Повторный запрос с тем же
// Idempotency-Key возвращает сохранённый ответ вместо второго заказа.
func (a *App) placeOrderHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	var payload placeOrderPayload
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	key := r.Header.Get(headerIdempotencyKey)
	if key != "" && a.Idempotency != nil {
		if done := a.beginIdempotent(w, key, body); done {
			return
		}
	}

	items := make([]orders.ItemRequest, 0, len(payload.Items))
	for _, item := range payload.Items {
		items = append(items, orders.ItemRequest{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	order, err := a.Orders.Place(IdentityFromContext(r.Context()), items)
	if err != nil {
		status, code := statusForError(err)
		details := ""
		if status != http.StatusInternalServerError {
			details = err.Error()
		}
		a.finishIdempotent(key, jsonError{Error: code, Details: details}, status, false)
		writeJSONError(w, status, code, details)
		return
	}

	response := toOrderResponse(order, nil)
	a.finishIdempotent(key, response, http.StatusCreated, true)
	writeJSON(w, http.StatusCreated, response)
}

// beginIdempotent регистрирует ключ. Возвращает true, если ответ уже
// отправлен (replay или конфликт) и обработку надо прекратить.
func (a *App) beginIdempotent(w http.ResponseWriter, key string, body []byte) bool {
	hash := sha256.Sum256(body)
	requestHash := hex.EncodeToString(hash[:])

	record, err := a.Idempotency.CreateProcessing(key, requestHash, time.Now().UTC().Add(a.idemTTL))
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		writeJSONError(w, http.StatusConflict, "idempotency_conflict", "idempotency key reused with different request")
		return true
	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
		if record.Status == domain.IdempotencyStatusProcessing {
			writeJSONError(w, http.StatusConflict, "idempotency_conflict", "request with this key is still processing")
			return true
		}
		// Replay сохранённого ответа.
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(record.HTTPStatus)
		_, _ = w.Write(record.ResponseBody)
		return true
	default:
		writeDomainError(w, err)
		return true
	}
}

// finishIdempotent сохраняет итоговый ответ для будущих replay.
func (a *App) finishIdempotent(key string, body interface{}, status int, success bool) {
	if key == "" || a.Idempotency == nil {
		return
	}

	raw, err := json.Marshal(body)
	if err != nil {
		a.logger.WithError(err).Warn("failed to marshal idempotent response")
		return
	}

	if success {
		err = a.Idempotency.MarkDone(key, raw, status)
	} else {
		err = a.Idempotency.MarkFailed(key, raw, status)
	}
	if err != nil {
		a.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to store idempotent response")
	}
}

func (a *App) getOrderHandler(w http.ResponseWriter, r *http.Request) {
	order, history, err := a.Orders.Get(IdentityFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order, history))
}

func (a *App) listOrdersHandler(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeJSONError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	result, err := a.Orders.List(IdentityFromContext(r.Context()), r.URL.Query().Get("user_id"), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	responses := make([]orderResponse, 0, len(result))
	for _, order := range result {
		responses = append(responses, toOrderResponse(order, nil))
	}
	writeJSON(w, http.StatusOK, responses)
}

func (a *App) updateOrderStatusHandler(w http.ResponseWriter, r *http.Request) {
	var payload updateStatusPayload
	if !decodeJSON(w, r, &payload) {
		return
	}

	order, err := a.Orders.UpdateStatus(
		IdentityFromContext(r.Context()),
		r.PathValue("id"),
		domain.OrderStatus(payload.Status),
		payload.Reason,
	)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order, nil))
}

func (a *App) cancelOrderHandler(w http.ResponseWriter, r *http.Request) {
	var payload cancelPayload
	if r.ContentLength > 0 {
		if !decodeJSON(w, r, &payload) {
			return
		}
	}

	order, err := a.Orders.Cancel(IdentityFromContext(r.Context()), r.PathValue("id"), payload.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order, nil))
}
