package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go-pos-api/internal/cache"
	"go-pos-api/internal/model"
	"go-pos-api/internal/observability"
	"go-pos-api/internal/testutil"
	"go-pos-api/pkg/jwt"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type apiClient struct {
	t   *testing.T
	app *fiber.App
}

func (a apiClient) do(method, path, token string, body interface{}) (int, map[string]interface{}) {
	a.t.Helper()
	status, raw, _ := a.raw(method, path, token, body)
	out := map[string]interface{}{}
	if len(raw) > 0 {
		require.NoError(a.t, json.Unmarshal(raw, &out), string(raw))
	}
	return status, out
}

func (a apiClient) raw(method, path, token string, body interface{}) (int, []byte, http.Header) {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := a.app.Test(req, -1)
	require.NoError(a.t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(a.t, err)
	return resp.StatusCode, raw, resp.Header
}

func (a apiClient) login(email string) string {
	a.t.Helper()
	status, body := a.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": email, "password": "secret123"})
	require.Equal(a.t, http.StatusOK, status, body)
	token, _ := body["token"].(string)
	require.NotEmpty(a.t, token)
	return token
}

func newTestAPI(t *testing.T) (apiClient, *model.Tenant) {
	t.Helper()
	db := testutil.NewDB(t)
	tenant := testutil.CreateTenant(t, db, "Kedai Test")
	testutil.CreateUser(t, db, tenant.ID, "admin@kedai.test", model.RoleAdmin)
	testutil.CreateUser(t, db, tenant.ID, "kasir@kedai.test", model.RoleCashier)

	app := New(Deps{
		AppName:   "pos-test",
		DB:        db,
		Log:       zap.NewNop(),
		Tokens:    jwt.NewManager("test-secret", time.Hour),
		Cache:     cache.New(cache.NewMemoryStore(time.Minute), cache.Options{}),
		Metrics:   observability.NewMetrics("postest"),
		IdleLimit: time.Hour,
	})
	return apiClient{t: t, app: app}, tenant
}

func data(body map[string]interface{}) map[string]interface{} {
	d, _ := body["data"].(map[string]interface{})
	return d
}

func TestAPI_RequiresAuthentication(t *testing.T) {
	api, _ := newTestAPI(t)

	status, body := api.do(http.MethodGet, "/api/v1/products", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, false, body["success"])

	status, _ = api.do(http.MethodGet, "/api/v1/products", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = api.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "admin@kedai.test", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAPI_CheckoutFlow(t *testing.T) {
	api, _ := newTestAPI(t)
	admin := api.login("admin@kedai.test")
	cashier := api.login("kasir@kedai.test")

	status, body := api.do(http.MethodPost, "/api/v1/products", cashier, map[string]interface{}{"name": "Es Teh", "sku": "ES-1", "price": 15000})
	require.Equal(t, http.StatusForbidden, status, body)

	status, body = api.do(http.MethodPost, "/api/v1/products", admin, map[string]interface{}{
		"name": "Es Teh", "sku": "ES-1", "price": 15000, "stock": 3, "min_stock": 5,
	})
	require.Equal(t, http.StatusCreated, status, body)
	productID := data(body)["id"].(string)

	status, body = api.do(http.MethodPost, "/api/v1/products", admin, map[string]interface{}{"name": "Es Teh 2", "sku": "ES-1", "price": 1})
	assert.Equal(t, http.StatusConflict, status, body)

	status, body = api.do(http.MethodPost, "/api/v1/products", admin, map[string]interface{}{"sku": "X"})
	require.Equal(t, http.StatusBadRequest, status, body)
	assert.Contains(t, body["errors"], "name")

	status, body = api.do(http.MethodGet, "/api/v1/products/count?low_stock=true", cashier, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, float64(1), body["totalCount"])

	status, body = api.do(http.MethodPost, "/api/v1/products/"+productID+"/stock", admin, map[string]interface{}{"quantity": 10, "operation": "add"})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, float64(13), data(body)["stock"])

	status, body = api.do(http.MethodPost, "/api/v1/products/"+productID+"/stock", admin, map[string]interface{}{"quantity": 50, "operation": "subtract"})
	require.Equal(t, http.StatusUnprocessableEntity, status, body)
	assert.Equal(t, "stock_negative", body["code"])

	status, body = api.do(http.MethodGet, "/api/v1/products/count?low_stock=true", cashier, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(0), body["totalCount"])

	status, body = api.do(http.MethodGet, "/api/v1/products?sortBy=password", cashier, nil)
	assert.Equal(t, http.StatusBadRequest, status, body)

	status, body = api.do(http.MethodPost, "/api/v1/transactions", cashier, map[string]interface{}{
		"items": []map[string]interface{}{{"product_id": productID, "quantity": 3}},
	})
	require.Equal(t, http.StatusCreated, status, body)
	order := data(body)
	orderID := order["id"].(string)
	assert.Equal(t, float64(45000), order["total"])
	assert.Equal(t, "PENDING", order["status"])

	status, body = api.do(http.MethodGet, "/api/v1/transactions/"+orderID+"/receipt", cashier, nil)
	assert.Equal(t, http.StatusConflict, status, body)

	complete := "/api/v1/transactions/" + orderID + "/complete"
	status, body = api.do(http.MethodPost, complete, cashier, map[string]interface{}{"paymentAmount": 40000})
	require.Equal(t, http.StatusUnprocessableEntity, status, body)
	assert.Equal(t, float64(45000), body["minimumRequired"])

	status, body = api.do(http.MethodPost, complete, cashier, map[string]interface{}{"paymentAmount": 50000, "paymentMethod": "CASH"})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, float64(5000), data(body)["changeAmount"])
	assert.Equal(t, "COMPLETED", data(body)["status"])

	status, body = api.do(http.MethodPost, complete, cashier, map[string]interface{}{"paymentAmount": 60000})
	assert.Equal(t, http.StatusConflict, status, body)

	status, body = api.do(http.MethodGet, "/api/v1/transactions/"+orderID+"/receipt", cashier, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, float64(5000), data(body)["changeAmount"])

	status, raw, header := api.raw(http.MethodGet, "/api/v1/transactions/"+orderID+"/receipt?format=text", cashier, nil)
	require.Equal(t, http.StatusOK, status, string(raw))
	assert.True(t, strings.HasPrefix(header.Get("Content-Type"), "text/plain"))
	assert.Contains(t, header.Get("Content-Disposition"), "attachment")
	assert.Contains(t, string(raw), "Kedai Test")

	status, _ = api.do(http.MethodGet, "/api/v1/transactions/"+orderID+"/receipt?format=pdf", cashier, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPI_BulkRoutesAreNotShadowedByID(t *testing.T) {
	api, _ := newTestAPI(t)
	admin := api.login("admin@kedai.test")

	status, body := api.do(http.MethodPost, "/api/v1/products/bulk", admin, map[string]interface{}{
		"products": []map[string]interface{}{
			{"name": "Gula", "sku": "G-1", "price": 14000},
			{"name": "Garam", "sku": "G-2", "price": 3000},
		},
	})
	require.Equal(t, http.StatusCreated, status, body)

	status, body = api.do(http.MethodGet, "/api/v1/products?search=g&sortBy=name", admin, nil)
	require.Equal(t, http.StatusOK, status, body)
	products := body["products"].([]interface{})
	require.Len(t, products, 2)

	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.(map[string]interface{})["id"].(string))
	}
	status, body = api.do(http.MethodDelete, "/api/v1/products/bulk", admin, map[string]interface{}{"ids": ids})
	require.Equal(t, http.StatusOK, status, body)

	status, body = api.do(http.MethodGet, "/api/v1/products/"+ids[0], admin, nil)
	assert.Equal(t, http.StatusNotFound, status, body)
}

func TestAPI_TenantsAreIsolated(t *testing.T) {
	api, _ := newTestAPI(t)
	admin := api.login("admin@kedai.test")

	status, body := api.do(http.MethodPost, "/api/v1/auth/register", "", map[string]interface{}{
		"store_name": "Toko Sebelah", "email": "owner@sebelah.test", "password": "secret123", "full_name": "Pemilik",
	})
	require.Equal(t, http.StatusCreated, status, body)
	other, _ := body["token"].(string)
	require.NotEmpty(t, other)

	status, body = api.do(http.MethodPost, "/api/v1/products", admin, map[string]interface{}{"name": "Kopi", "sku": "K-1", "price": 8000})
	require.Equal(t, http.StatusCreated, status, body)
	productID := data(body)["id"].(string)

	status, _ = api.do(http.MethodGet, "/api/v1/products/"+productID, other, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = api.do(http.MethodGet, "/api/v1/products", other, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(0), body["totalCount"])

	// the same SKU is free in another store
	status, body = api.do(http.MethodPost, "/api/v1/products", other, map[string]interface{}{"name": "Kopi", "sku": "K-1", "price": 9000})
	assert.Equal(t, http.StatusCreated, status, body)
}

func TestAPI_HealthAndMetrics(t *testing.T) {
	api, _ := newTestAPI(t)

	status, body := api.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	status, raw, _ := api.raw(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(raw), "postest_http_requests_total")
	assert.Contains(t, string(raw), fmt.Sprintf("route=%q", "/healthz"))
}
