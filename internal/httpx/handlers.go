// Package httpx exposes the order desk over HTTP: authentication, catalog
// management, the order ledger and the sales reports.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/orderdesk/orderdesk/internal/auth"
	"github.com/orderdesk/orderdesk/internal/catalog"
	"github.com/orderdesk/orderdesk/internal/domain"
	"github.com/orderdesk/orderdesk/internal/ledger"
	"github.com/orderdesk/orderdesk/internal/redisx"
	"github.com/orderdesk/orderdesk/internal/reporting"
)

type Handler struct {
	Auth    *auth.Service
	Catalog *catalog.Service
	Ledger  *ledger.Service
	Reports *reporting.Service
	Redis   *redis.Client // nil disables the order read cache
	Log     zerolog.Logger
}

func (h *Handler) Register(r *chi.Mux) {
	r.Post("/register", h.register)
	r.Post("/login", h.login)

	r.Group(func(r chi.Router) {
		r.Use(h.authenticate)

		r.Get("/products", h.listProducts)
		r.Get("/products/{id}", h.getProduct)
		r.Post("/products", h.createProduct)
		r.Put("/products/{id}", h.updateProduct)
		r.Delete("/products/{id}", h.deleteProduct)
		r.Post("/products/{id}/stock", h.adjustStock)

		r.Post("/orders", h.placeOrder)
		r.Get("/orders", h.listOrders)
		r.Get("/orders/{id}", h.getOrder)
		r.Put("/orders/{id}", h.editOrder)
		r.Put("/orders/{id}/status", h.setOrderStatus)
		r.Delete("/orders/{id}", h.deleteOrder)

		r.Get("/reports/summary", h.reportSummary)
		r.Get("/reports/products", h.reportProducts)
		r.Get("/reports/monthly", h.reportMonthly)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func errBody(msg string) map[string]string { return map[string]string{"error": msg} }

// writeError maps the domain error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errBody(err.Error()))
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errBody(err.Error()))
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrDuplicateUsername),
		errors.Is(err, domain.ErrReferenced):
		writeJSON(w, http.StatusConflict, errBody(err.Error()))
	case errors.Is(err, domain.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, errBody(err.Error()))
	default:
		writeJSON(w, http.StatusInternalServerError, errBody("internal error"))
	}
}

func (h *Handler) forbid(w http.ResponseWriter) {
	writeJSON(w, http.StatusForbidden, errBody("operation not allowed for this role"))
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func decode(r *http.Request, v any) bool {
	return json.NewDecoder(r.Body).Decode(v) == nil
}

// --- auth ---

type registerReq struct {
	Username string      `json:"username"`
	Password string      `json:"password"`
	Role     domain.Role `json:"role"`
}

// register creates an account. Anyone may self-register a regular user;
// granting the admin role requires an authenticated admin caller.
func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if !decode(r, &req) {
		writeJSON(w, http.StatusBadRequest, errBody("invalid json"))
		return
	}
	if req.Role == domain.RoleAdmin {
		id, ok := h.bearerIdentity(r)
		if !ok || id.Role != domain.RoleAdmin {
			h.forbid(w)
			return
		}
	}
	u, err := h.Auth.Register(r.Context(), req.Username, req.Password, req.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResp struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if !decode(r, &req) {
		writeJSON(w, http.StatusBadRequest, errBody("invalid json"))
		return
	}
	token, u, err := h.Auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResp{Token: token, User: u})
}

// --- catalog ---

type productReq struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Catalog.ListProducts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errBody("invalid id"))
		return
	}
	p, err := h.Catalog.GetProduct(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	if !h.allowed(r, auth.OpManageCatalog) {
		h.forbid(w)
		return
	}
	var req productReq
	if !decode(r, &req) {
		writeJSON(w, http.StatusBadRequest, errBody("invalid json"))
		return
	}
	p, err := h.Catalog.CreateProduct(r.Context(), req.Name, req.Price, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	if !h.allowed(r, auth.OpManageCatalog) {
		h.forbid(w)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errBody("invalid id"))
		return
	}
	var req productReq
	if !decode(r, &req) {
		writeJSON(w, http.StatusBadRequest, errBody("invalid json"))
		return
	}
	p, err := h.Catalog.UpdateProduct(r.Context(), id, req.Name, req.Price, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if !h.allowed(r, auth.OpManageCatalog) {
		h.forbid(w)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errBody("invalid id"))
		return
	}
	if err := h.Catalog.DeleteProduct(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type adjustStockReq struct {
	Delta int `json:"delta"`
}

func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	if !h.allowed(r, auth.OpManageCatalog) {
		h.forbid(w)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errBody("invalid id"))
		return
	}
	var req adjustStockReq
	if !decode(r, &req) {
		writeJSON(w, http.StatusBadRequest, errBody("invalid json"))
		return
	}
	p, err := h.Catalog.AdjustStock(r.Context(), id, req.Delta)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// --- orders ---

type placeOrderReq struct {
	UserID int64              `json:"user_id,omitempty"` // admins may order on behalf of a user
	Items  []ledger.ItemInput `json:"items"`
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	if !auth.Allowed(id.Role, auth.OpPlaceOrder) {
		h.forbid(w)
		return
	}
	var req placeOrderReq
	if !decode(r, &req) {
		writeJSON(w, http.StatusBadRequest, errBody("invalid json"))
		return
	}
	userID := id.UserID
	if req.UserID != 0 && req.UserID != id.UserID {
		if id.Role != domain.RoleAdmin {
			h.forbid(w)
			return
		}
		userID = req.UserID
	}
	detail, err := h.Ledger.PlaceOrder(r.Context(), userID, req.Items)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, detail)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	var forUser *int64
	if auth.Allowed(id.Role, auth.OpViewAllOrders) {
		if s := r.URL.Query().Get("user_id"); s != "" {
			uid, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, errBody("invalid user_id"))
				return
			}
			forUser = &uid
		}
	} else if auth.Allowed(id.Role, auth.OpViewOwnOrders) {
		uid := id.UserID
		forUser = &uid
	} else {
		h.forbid(w)
		return
	}
	out, err := h.Ledger.ListOrders(r.Context(), forUser)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	orderID, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errBody("invalid id"))
		return
	}

	if detail, ok := h.cachedOrder(r, orderID); ok {
		if detail.UserID != id.UserID && !auth.Allowed(id.Role, auth.OpViewAllOrders) {
			h.forbid(w)
			return
		}
		writeJSON(w, http.StatusOK, detail)
		return
	}

	detail, err := h.Ledger.GetOrder(r.Context(), orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	if detail.UserID != id.UserID && !auth.Allowed(id.Role, auth.OpViewAllOrders) {
		h.forbid(w)
		return
	}
	h.cacheOrder(r, detail)
	writeJSON(w, http.StatusOK, detail)
}

type editOrderReq struct {
	UserID int64              `json:"user_id"`
	Status domain.Status      `json:"status"`
	Items  []ledger.ItemInput `json:"items"`
}

func (h *Handler) editOrder(w http.ResponseWriter, r *http.Request) {
	if !h.allowed(r, auth.OpEditOrder) {
		h.forbid(w)
		return
	}
	orderID, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errBody("invalid id"))
		return
	}
	var req editOrderReq
	if !decode(r, &req) {
		writeJSON(w, http.StatusBadRequest, errBody("invalid json"))
		return
	}
	detail, err := h.Ledger.EditOrder(r.Context(), orderID, req.UserID, req.Status, req.Items)
	if err != nil {
		writeError(w, err)
		return
	}
	h.invalidateOrder(r, orderID)
	writeJSON(w, http.StatusOK, detail)
}

type setStatusReq struct {
	Status domain.Status `json:"status"`
}

func (h *Handler) setOrderStatus(w http.ResponseWriter, r *http.Request) {
	if !h.allowed(r, auth.OpSetOrderStatus) {
		h.forbid(w)
		return
	}
	orderID, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errBody("invalid id"))
		return
	}
	var req setStatusReq
	if !decode(r, &req) {
		writeJSON(w, http.StatusBadRequest, errBody("invalid json"))
		return
	}
	o, err := h.Ledger.SetStatus(r.Context(), orderID, req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	h.invalidateOrder(r, orderID)
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	if !h.allowed(r, auth.OpDeleteOrder) {
		h.forbid(w)
		return
	}
	orderID, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errBody("invalid id"))
		return
	}
	if err := h.Ledger.DeleteOrder(r.Context(), orderID); err != nil {
		writeError(w, err)
		return
	}
	h.invalidateOrder(r, orderID)
	w.WriteHeader(http.StatusNoContent)
}

// --- reports ---

func (h *Handler) reportSummary(w http.ResponseWriter, r *http.Request) {
	if !h.allowed(r, auth.OpViewReports) {
		h.forbid(w)
		return
	}
	s, err := h.Reports.Summary(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) reportProducts(w http.ResponseWriter, r *http.Request) {
	if !h.allowed(r, auth.OpViewReports) {
		h.forbid(w)
		return
	}
	out, err := h.Reports.ProductSales(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) reportMonthly(w http.ResponseWriter, r *http.Request) {
	if !h.allowed(r, auth.OpViewReports) {
		h.forbid(w)
		return
	}
	out, err := h.Reports.Monthly(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) allowed(r *http.Request, op auth.Operation) bool {
	id, ok := identityFrom(r.Context())
	return ok && auth.Allowed(id.Role, op)
}

// --- order read cache ---

func (h *Handler) cachedOrder(r *http.Request, orderID int64) (*domain.OrderDetail, bool) {
	if h.Redis == nil {
		return nil, false
	}
	raw, err := h.Redis.Get(r.Context(), redisx.OrderDetailKey(orderID)).Bytes()
	if err != nil {
		return nil, false
	}
	var detail domain.OrderDetail
	if json.Unmarshal(raw, &detail) != nil {
		return nil, false
	}
	return &detail, true
}

func (h *Handler) cacheOrder(r *http.Request, detail *domain.OrderDetail) {
	if h.Redis == nil {
		return
	}
	b, err := json.Marshal(detail)
	if err != nil {
		return
	}
	if err := h.Redis.Set(r.Context(), redisx.OrderDetailKey(detail.ID), b, redisx.TTLOrderCache).Err(); err != nil {
		h.Log.Warn().Err(err).Int64("order_id", detail.ID).Msg("cache order")
	}
}

func (h *Handler) invalidateOrder(r *http.Request, orderID int64) {
	if h.Redis == nil {
		return
	}
	if err := h.Redis.Del(r.Context(), redisx.OrderDetailKey(orderID)).Err(); err != nil {
		h.Log.Warn().Err(err).Int64("order_id", orderID).Msg("invalidate order cache")
	}
}
