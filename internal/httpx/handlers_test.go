package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderdesk/orderdesk/internal/auth"
	"github.com/orderdesk/orderdesk/internal/catalog"
	"github.com/orderdesk/orderdesk/internal/domain"
	"github.com/orderdesk/orderdesk/internal/events"
	"github.com/orderdesk/orderdesk/internal/ledger"
	"github.com/orderdesk/orderdesk/internal/reporting"
	"github.com/orderdesk/orderdesk/internal/repository"
)

type env struct {
	srv        *httptest.Server
	adminToken string
	userToken  string
	userID     int64
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := repository.NewMemoryStore()
	orders := repository.NewMemoryOrders(store)
	users := repository.NewMemoryUsers(store)
	log := zerolog.Nop()

	tx := repository.NewMemoryTx(store)
	authSvc := auth.NewService(users, "test-secret", log)
	h := &Handler{
		Auth:    authSvc,
		Catalog: catalog.NewService(store, orders, tx, log),
		Ledger:  ledger.NewService(store, orders, users, tx, events.Nop{}, log),
		Reports: reporting.NewService(repository.NewMemoryReports(store)),
		Log:     log,
	}
	router := NewRouter()
	h.Register(router)

	ctx := context.Background()
	_, err := authSvc.Register(ctx, "boss", "s3cret", domain.RoleAdmin)
	require.NoError(t, err)
	adminToken, _, err := authSvc.Login(ctx, "boss", "s3cret")
	require.NoError(t, err)
	clerk, err := authSvc.Register(ctx, "clerk", "s3cret", domain.RoleUser)
	require.NoError(t, err)
	userToken, _, err := authSvc.Login(ctx, "clerk", "s3cret")
	require.NoError(t, err)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &env{srv: srv, adminToken: adminToken, userToken: userToken, userID: clerk.ID}
}

func (e *env) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (e *env) addProduct(t *testing.T, name string, price float64, qty int) domain.Product {
	t.Helper()
	var p domain.Product
	code := e.do(t, http.MethodPost, "/products", e.adminToken,
		map[string]any{"name": name, "price": price, "quantity": qty}, &p)
	require.Equal(t, http.StatusCreated, code)
	return p
}

func TestHealthz(t *testing.T) {
	e := newEnv(t)
	resp, err := http.Get(e.srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthRequired(t *testing.T) {
	e := newEnv(t)
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/products", "", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/orders", "garbage", nil, nil))
}

func TestRegisterAndLoginFlow(t *testing.T) {
	e := newEnv(t)

	var u domain.User
	code := e.do(t, http.MethodPost, "/register", "",
		map[string]string{"username": "newbie", "password": "s3cret"}, &u)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, domain.RoleUser, u.Role)

	code = e.do(t, http.MethodPost, "/register", "",
		map[string]string{"username": "newbie", "password": "other"}, nil)
	assert.Equal(t, http.StatusConflict, code)

	var lr struct {
		Token string      `json:"token"`
		User  domain.User `json:"user"`
	}
	code = e.do(t, http.MethodPost, "/login", "",
		map[string]string{"username": "newbie", "password": "s3cret"}, &lr)
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, lr.Token)
	assert.Empty(t, lr.User.PasswordHash)

	code = e.do(t, http.MethodPost, "/login", "",
		map[string]string{"username": "newbie", "password": "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestRegisterAdminRequiresAdminCaller(t *testing.T) {
	e := newEnv(t)

	body := map[string]string{"username": "mallory", "password": "s3cret", "role": "admin"}
	assert.Equal(t, http.StatusForbidden, e.do(t, http.MethodPost, "/register", "", body, nil))
	assert.Equal(t, http.StatusForbidden, e.do(t, http.MethodPost, "/register", e.userToken, body, nil))

	var u domain.User
	code := e.do(t, http.MethodPost, "/register", e.adminToken, body, &u)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, domain.RoleAdmin, u.Role)
}

func TestCatalogCRUD(t *testing.T) {
	e := newEnv(t)
	p := e.addProduct(t, "widget", 5, 10)

	var got domain.Product
	code := e.do(t, http.MethodGet, fmt.Sprintf("/products/%d", p.ID), e.userToken, nil, &got)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "widget", got.Name)

	code = e.do(t, http.MethodPut, fmt.Sprintf("/products/%d", p.ID), e.adminToken,
		map[string]any{"name": "widget mk2", "price": 6, "quantity": 12}, &got)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 12, got.Quantity)

	code = e.do(t, http.MethodPost, fmt.Sprintf("/products/%d/stock", p.ID), e.adminToken,
		map[string]int{"delta": -2}, &got)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 10, got.Quantity)

	assert.Equal(t, http.StatusNoContent,
		e.do(t, http.MethodDelete, fmt.Sprintf("/products/%d", p.ID), e.adminToken, nil, nil))
	assert.Equal(t, http.StatusNotFound,
		e.do(t, http.MethodGet, fmt.Sprintf("/products/%d", p.ID), e.userToken, nil, nil))
}

func TestCatalogManagementDeniedForUsers(t *testing.T) {
	e := newEnv(t)
	p := e.addProduct(t, "widget", 5, 10)

	body := map[string]any{"name": "x", "price": 1, "quantity": 1}
	assert.Equal(t, http.StatusForbidden, e.do(t, http.MethodPost, "/products", e.userToken, body, nil))
	assert.Equal(t, http.StatusForbidden,
		e.do(t, http.MethodPut, fmt.Sprintf("/products/%d", p.ID), e.userToken, body, nil))
	assert.Equal(t, http.StatusForbidden,
		e.do(t, http.MethodDelete, fmt.Sprintf("/products/%d", p.ID), e.userToken, nil, nil))
	assert.Equal(t, http.StatusForbidden,
		e.do(t, http.MethodPost, fmt.Sprintf("/products/%d/stock", p.ID), e.userToken,
			map[string]int{"delta": 1}, nil))
}

func TestOrderFlow(t *testing.T) {
	e := newEnv(t)
	p := e.addProduct(t, "widget", 5, 10)

	var detail domain.OrderDetail
	code := e.do(t, http.MethodPost, "/orders", e.userToken,
		map[string]any{"items": []map[string]any{{"product_id": p.ID, "quantity": 3}}}, &detail)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "ORD-1", detail.OrderNumber)
	assert.Equal(t, e.userID, detail.UserID)

	var after domain.Product
	e.do(t, http.MethodGet, fmt.Sprintf("/products/%d", p.ID), e.userToken, nil, &after)
	assert.Equal(t, 7, after.Quantity)

	var o domain.Order
	code = e.do(t, http.MethodPut, fmt.Sprintf("/orders/%d/status", detail.ID), e.adminToken,
		map[string]string{"status": "completed"}, &o)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, domain.StatusCompleted, o.Status)

	var summary struct {
		TotalIncome float64 `json:"total_income"`
	}
	code = e.do(t, http.MethodGet, "/reports/summary", e.adminToken, nil, &summary)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 15.0, summary.TotalIncome)

	assert.Equal(t, http.StatusNoContent,
		e.do(t, http.MethodDelete, fmt.Sprintf("/orders/%d", detail.ID), e.adminToken, nil, nil))
	e.do(t, http.MethodGet, fmt.Sprintf("/products/%d", p.ID), e.userToken, nil, &after)
	assert.Equal(t, 10, after.Quantity)
}

func TestPlaceOrderInsufficientStockConflict(t *testing.T) {
	e := newEnv(t)
	p := e.addProduct(t, "widget", 5, 2)

	code := e.do(t, http.MethodPost, "/orders", e.userToken,
		map[string]any{"items": []map[string]any{{"product_id": p.ID, "quantity": 5}}}, nil)
	assert.Equal(t, http.StatusConflict, code)
}

func TestUsersSeeOnlyTheirOwnOrders(t *testing.T) {
	e := newEnv(t)
	p := e.addProduct(t, "widget", 5, 100)

	// order placed by the admin for themselves
	code := e.do(t, http.MethodPost, "/orders", e.adminToken,
		map[string]any{"items": []map[string]any{{"product_id": p.ID, "quantity": 1}}}, nil)
	require.Equal(t, http.StatusCreated, code)

	var mine domain.OrderDetail
	code = e.do(t, http.MethodPost, "/orders", e.userToken,
		map[string]any{"items": []map[string]any{{"product_id": p.ID, "quantity": 1}}}, &mine)
	require.Equal(t, http.StatusCreated, code)

	var list []domain.OrderDetail
	code = e.do(t, http.MethodGet, "/orders", e.userToken, nil, &list)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, list, 1)
	assert.Equal(t, e.userID, list[0].UserID)

	code = e.do(t, http.MethodGet, "/orders", e.adminToken, nil, &list)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, list, 2)

	// the clerk can open their own order but not the admin's
	assert.Equal(t, http.StatusOK,
		e.do(t, http.MethodGet, fmt.Sprintf("/orders/%d", mine.ID), e.userToken, nil, nil))
	for _, d := range list {
		if d.UserID != e.userID {
			assert.Equal(t, http.StatusForbidden,
				e.do(t, http.MethodGet, fmt.Sprintf("/orders/%d", d.ID), e.userToken, nil, nil))
		}
	}
}

func TestOrderMutationsDeniedForUsers(t *testing.T) {
	e := newEnv(t)
	p := e.addProduct(t, "widget", 5, 10)

	var detail domain.OrderDetail
	code := e.do(t, http.MethodPost, "/orders", e.userToken,
		map[string]any{"items": []map[string]any{{"product_id": p.ID, "quantity": 1}}}, &detail)
	require.Equal(t, http.StatusCreated, code)

	assert.Equal(t, http.StatusForbidden,
		e.do(t, http.MethodPut, fmt.Sprintf("/orders/%d/status", detail.ID), e.userToken,
			map[string]string{"status": "completed"}, nil))
	assert.Equal(t, http.StatusForbidden,
		e.do(t, http.MethodPut, fmt.Sprintf("/orders/%d", detail.ID), e.userToken,
			map[string]any{"user_id": e.userID, "status": "pending",
				"items": []map[string]any{{"product_id": p.ID, "quantity": 2}}}, nil))
	assert.Equal(t, http.StatusForbidden,
		e.do(t, http.MethodDelete, fmt.Sprintf("/orders/%d", detail.ID), e.userToken, nil, nil))
	assert.Equal(t, http.StatusForbidden,
		e.do(t, http.MethodGet, "/reports/summary", e.userToken, nil, nil))
}

func TestEditOrderEndpoint(t *testing.T) {
	e := newEnv(t)
	p := e.addProduct(t, "widget", 5, 10)

	var detail domain.OrderDetail
	code := e.do(t, http.MethodPost, "/orders", e.userToken,
		map[string]any{"items": []map[string]any{{"product_id": p.ID, "quantity": 3}}}, &detail)
	require.Equal(t, http.StatusCreated, code)

	var edited domain.OrderDetail
	code = e.do(t, http.MethodPut, fmt.Sprintf("/orders/%d", detail.ID), e.adminToken,
		map[string]any{"user_id": e.userID, "status": "in_progress",
			"items": []map[string]any{{"product_id": p.ID, "quantity": 5}}}, &edited)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, domain.StatusInProgress, edited.Status)

	var after domain.Product
	e.do(t, http.MethodGet, fmt.Sprintf("/products/%d", p.ID), e.userToken, nil, &after)
	assert.Equal(t, 5, after.Quantity)
}

func TestDeleteReferencedProductConflict(t *testing.T) {
	e := newEnv(t)
	p := e.addProduct(t, "widget", 5, 10)

	code := e.do(t, http.MethodPost, "/orders", e.userToken,
		map[string]any{"items": []map[string]any{{"product_id": p.ID, "quantity": 1}}}, nil)
	require.Equal(t, http.StatusCreated, code)

	assert.Equal(t, http.StatusConflict,
		e.do(t, http.MethodDelete, fmt.Sprintf("/products/%d", p.ID), e.adminToken, nil, nil))
}
