package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shop/internal/service/catalog"
	"github.com/vladislavdragonenkov/shop/internal/service/orders"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	store := memory.NewStore()
	catalogSvc := catalog.NewService(store.Products(), store.Categories(), nil)
	ordersSvc := orders.NewService(
		store.Orders(),
		store.Products(),
		memory.NewHistoryRepository(),
		memory.NewOutboxRepository(),
		nil,
	)
	app := NewApp(catalogSvc, ordersSvc, memory.NewIdempotencyRepository(), nil)
	return NewRouter(app, nil, nil)
}

func doRequest(t *testing.T, router http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func asAdmin() map[string]string {
	return map[string]string{"X-User-Id": "admin-1", "X-User-Role": "admin"}
}

func asCustomer(id string) map[string]string {
	return map[string]string{"X-User-Id": id, "X-User-Role": "customer"}
}

func createCatalogFixture(t *testing.T, router http.Handler, price string, stock int32) (categoryID, productID string) {
	t.Helper()

	rec := doRequest(t, router, http.MethodPost, "/categories", map[string]string{"name": "tools"}, asAdmin())
	require.Equal(t, http.StatusCreated, rec.Code)
	var category struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &category))

	rec = doRequest(t, router, http.MethodPost, "/products", map[string]interface{}{
		"name":        "Widget",
		"description": "a widget",
		"price":       price,
		"stock":       stock,
		"category_id": category.ID,
	}, asAdmin())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var product struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &product))

	return category.ID, product.ID
}

func TestCatalogEndpoints(t *testing.T) {
	router := newTestRouter(t)
	categoryID, productID := createCatalogFixture(t, router, "10.00", 5)

	rec := doRequest(t, router, http.MethodGet, "/products", nil, asCustomer("user-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	var products []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &products))
	require.Len(t, products, 1)
	require.Equal(t, "10.00", products[0]["price"])

	rec = doRequest(t, router, http.MethodGet, "/products/"+productID, nil, asCustomer("user-1"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/products/"+productID, nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Мутации каталога закрыты для покупателя.
	rec = doRequest(t, router, http.MethodPost, "/categories", map[string]string{"name": "toys"}, asCustomer("user-1"))
	require.Equal(t, http.StatusForbidden, rec.Code)

	// Категория с товарами не удаляется.
	rec = doRequest(t, router, http.MethodDelete, "/categories/"+categoryID, nil, asAdmin())
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(t, router, http.MethodDelete, "/products/"+productID, nil, asAdmin())
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, router, http.MethodDelete, "/categories/"+categoryID, nil, asAdmin())
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCatalogValidationStatuses(t *testing.T) {
	router := newTestRouter(t)
	_, _ = createCatalogFixture(t, router, "10.00", 5)

	rec := doRequest(t, router, http.MethodPost, "/categories", map[string]string{"name": "Tools"}, asAdmin())
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/products", map[string]interface{}{
		"name":        "",
		"price":       "1.00",
		"stock":       1,
		"category_id": "missing",
	}, asAdmin())
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/products", map[string]interface{}{
		"name": "X", "price": "1.00", "stock": 1, "category_id": "missing",
	}, asAdmin())
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/products", map[string]interface{}{
		"unknown_field": true,
	}, asAdmin())
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlaceOrderEndpoint(t *testing.T) {
	router := newTestRouter(t)
	_, productID := createCatalogFixture(t, router, "10.00", 5)

	payload := map[string]interface{}{
		"items": []map[string]interface{}{
			{"product_id": productID, "quantity": 2},
		},
	}

	rec := doRequest(t, router, http.MethodPost, "/orders", payload, asCustomer("user-1"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var order struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Total  string `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	require.Equal(t, "pending", order.Status)
	require.Equal(t, "20.00", order.Total)

	// Анонимный запрос — 401.
	rec = doRequest(t, router, http.MethodPost, "/orders", payload, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Нехватка остатка — 409.
	big := map[string]interface{}{
		"items": []map[string]interface{}{
			{"product_id": productID, "quantity": 100},
		},
	}
	rec = doRequest(t, router, http.MethodPost, "/orders", big, asCustomer("user-1"))
	require.Equal(t, http.StatusConflict, rec.Code)

	// Пустой заказ — 422.
	rec = doRequest(t, router, http.MethodPost, "/orders", map[string]interface{}{"items": []string{}}, asCustomer("user-1"))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// Чужой заказ недоступен.
	rec = doRequest(t, router, http.MethodGet, "/orders/"+order.ID, nil, asCustomer("user-2"))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/orders/"+order.ID, nil, asCustomer("user-1"))
	require.Equal(t, http.StatusOK, rec.Code)

	var detailed struct {
		History []struct {
			Status string `json:"status"`
		} `json:"history"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detailed))
	require.Len(t, detailed.History, 1)
	require.Equal(t, "pending", detailed.History[0].Status)
}

func TestPlaceOrderIdempotency(t *testing.T) {
	router := newTestRouter(t)
	_, productID := createCatalogFixture(t, router, "10.00", 5)

	payload := map[string]interface{}{
		"items": []map[string]interface{}{
			{"product_id": productID, "quantity": 1},
		},
	}
	headers := asCustomer("user-1")
	headers["Idempotency-Key"] = "key-1"

	first := doRequest(t, router, http.MethodPost, "/orders", payload, headers)
	require.Equal(t, http.StatusCreated, first.Code)

	// Повтор с тем же ключом и телом — сохранённый ответ, заказ один.
	second := doRequest(t, router, http.MethodPost, "/orders", payload, headers)
	require.Equal(t, http.StatusCreated, second.Code)
	require.JSONEq(t, first.Body.String(), second.Body.String())

	rec := doRequest(t, router, http.MethodGet, "/orders", nil, asCustomer("user-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)

	// Тот же ключ с другим телом — конфликт.
	other := map[string]interface{}{
		"items": []map[string]interface{}{
			{"product_id": productID, "quantity": 3},
		},
	}
	rec = doRequest(t, router, http.MethodPost, "/orders", other, headers)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestOrderLifecycleEndpoints(t *testing.T) {
	router := newTestRouter(t)
	_, productID := createCatalogFixture(t, router, "10.00", 50)

	place := func(user string) string {
		rec := doRequest(t, router, http.MethodPost, "/orders", map[string]interface{}{
			"items": []map[string]interface{}{
				{"product_id": productID, "quantity": 1},
			},
		}, asCustomer(user))
		require.Equal(t, http.StatusCreated, rec.Code)
		var order struct {
			ID string `json:"id"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
		return order.ID
	}

	orderID := place("user-1")

	// Покупатель не переводит статусы.
	rec := doRequest(t, router, http.MethodPost, fmt.Sprintf("/orders/%s/status", orderID),
		map[string]string{"status": "processing"}, asCustomer("user-1"))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, router, http.MethodPost, fmt.Sprintf("/orders/%s/status", orderID),
		map[string]string{"status": "processing"}, asAdmin())
	require.Equal(t, http.StatusOK, rec.Code)

	// Отмена вне pending — 409.
	rec = doRequest(t, router, http.MethodPost, fmt.Sprintf("/orders/%s/cancel", orderID), nil, asCustomer("user-1"))
	require.Equal(t, http.StatusConflict, rec.Code)

	// Недопустимый переход — 409.
	rec = doRequest(t, router, http.MethodPost, fmt.Sprintf("/orders/%s/status", orderID),
		map[string]string{"status": "pending"}, asAdmin())
	require.Equal(t, http.StatusConflict, rec.Code)

	second := place("user-1")
	rec = doRequest(t, router, http.MethodPost, fmt.Sprintf("/orders/%s/cancel", second),
		map[string]string{"reason": "changed my mind"}, asCustomer("user-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	var cancelled struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cancelled))
	require.Equal(t, "cancelled", cancelled.Status)

	// Несуществующий заказ — 404.
	rec = doRequest(t, router, http.MethodGet, "/orders/missing", nil, asAdmin())
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListOrdersVisibility(t *testing.T) {
	router := newTestRouter(t)
	_, productID := createCatalogFixture(t, router, "10.00", 50)

	payload := map[string]interface{}{
		"items": []map[string]interface{}{
			{"product_id": productID, "quantity": 1},
		},
	}
	rec := doRequest(t, router, http.MethodPost, "/orders", payload, asCustomer("user-1"))
	require.Equal(t, http.StatusCreated, rec.Code)

	// Чужой список — только админ.
	rec = doRequest(t, router, http.MethodGet, "/orders?user_id=user-1", nil, asCustomer("user-2"))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/orders?user_id=user-1", nil, asAdmin())
	require.Equal(t, http.StatusOK, rec.Code)
	var list []json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)

	rec = doRequest(t, router, http.MethodGet, "/orders?limit=bogus", nil, asAdmin())
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestIDPropagation(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/categories", nil, asCustomer("user-1"))
	require.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec = doRequest(t, router, http.MethodGet, "/categories", nil, map[string]string{
		"X-User-Id": "user-1", "X-User-Role": "customer", "X-Request-Id": "req-42",
	})
	require.Equal(t, "req-42", rec.Header().Get("X-Request-Id"))
}
