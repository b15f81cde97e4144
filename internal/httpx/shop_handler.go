package httpx

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/andikarap/voucher-shop/internal/shop"
)

var (
	httpReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voucher_shop_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voucher_shop_http_request_duration_seconds",
		Help:    "Request latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"method", "endpoint"})
)

// Shop is the fulfillment surface the handlers need; *shop.Engine satisfies
// it.
type Shop interface {
	Checkout(ctx context.Context, productID string, qty int, sourceKey string) (*shop.CheckoutResult, error)
	GetStatus(ctx context.Context, orderID string) (*shop.Order, error)
	Confirm(ctx context.Context, orderID string) (*shop.Order, error)
	ListProducts(ctx context.Context) ([]shop.ProductStock, error)
	ListRecent(ctx context.Context, limit int) ([]shop.Order, error)
}

type ShopHandler struct {
	Shop       Shop
	AdminToken string
}

type checkoutReq struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
	Source    string `json:"source"`
}

type checkoutResp struct {
	OrderID   string `json:"order_id"`
	Qty       int    `json:"qty"`
	AmountIDR int64  `json:"amount_idr"`
	ExpiresAt string `json:"expires_at"`
}

type orderResp struct {
	OrderID   string `json:"order_id"`
	Status    string `json:"status"`
	AmountIDR int64  `json:"amount_idr"`
	// VoucherCode adalah bentuk yang dibaca bot Telegram (string tunggal,
	// multi-qty digabung per baris); VoucherCodes bentuk terstrukturnya.
	VoucherCode  string   `json:"voucher_code,omitempty"`
	VoucherCodes []string `json:"voucher_codes,omitempty"`
}

type adminOrderResp struct {
	orderResp
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
	CreatedAt string `json:"created_at"`
}

func (h *ShopHandler) Register(r *chi.Mux) {
	r.Get("/api/products", h.listProducts)
	r.Post("/api/checkout", h.checkout)
	r.Get("/api/order/{id}", h.getOrder)

	r.Route("/api/admin", func(r chi.Router) {
		r.Post("/orders/{id}/confirm", h.requireAdmin("/api/admin/orders/{id}/confirm", h.confirm))
		r.Get("/orders", h.requireAdmin("/api/admin/orders", h.listRecent))
	})
}

func (h *ShopHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpLatency.WithLabelValues("GET", "/api/products"))
	defer timer.ObserveDuration()

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Shop.ListProducts(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error", "GET", "/api/products")
		return
	}
	writeJSON(w, http.StatusOK, ps, "GET", "/api/products")
}

func (h *ShopHandler) checkout(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpLatency.WithLabelValues("POST", "/api/checkout"))
	defer timer.ObserveDuration()

	var req checkoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json", "POST", "/api/checkout")
		return
	}
	if req.ProductID == "" {
		writeError(w, http.StatusBadRequest, "product_id is required", "POST", "/api/checkout")
		return
	}
	if req.Qty < 1 {
		req.Qty = 1
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// kanal asal ikut masuk kunci limiter supaya front-end yang berbeda di
	// belakang IP yang sama tidak berbagi satu window
	key := sourceKey(r)
	if s := strings.TrimSpace(req.Source); s != "" {
		key = s + "/" + key
	}

	res, err := h.Shop.Checkout(ctx, req.ProductID, req.Qty, key)
	if err != nil {
		switch {
		case errors.Is(err, shop.ErrRateLimited):
			writeError(w, http.StatusTooManyRequests, "too many checkouts, try again later", "POST", "/api/checkout")
		case errors.Is(err, shop.ErrUnknownProduct):
			writeError(w, http.StatusNotFound, "product not found", "POST", "/api/checkout")
		case errors.Is(err, shop.ErrOutOfStock):
			writeError(w, http.StatusConflict, "out of stock", "POST", "/api/checkout")
		default:
			writeError(w, http.StatusInternalServerError, "internal error", "POST", "/api/checkout")
		}
		return
	}

	writeJSON(w, http.StatusCreated, checkoutResp{
		OrderID:   res.OrderID,
		Qty:       res.Quantity,
		AmountIDR: res.TotalAmount,
		ExpiresAt: res.ExpiresAt.Format(time.RFC3339),
	}, "POST", "/api/checkout")
}

func (h *ShopHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpLatency.WithLabelValues("GET", "/api/order/{id}"))
	defer timer.ObserveDuration()

	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		writeError(w, http.StatusBadRequest, "missing order id", "GET", "/api/order/{id}")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Shop.GetStatus(ctx, orderID)
	if err != nil {
		if errors.Is(err, shop.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, "order not found", "GET", "/api/order/{id}")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error", "GET", "/api/order/{id}")
		return
	}
	writeJSON(w, http.StatusOK, toOrderResp(o), "GET", "/api/order/{id}")
}

func (h *ShopHandler) confirm(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpLatency.WithLabelValues("POST", "/api/admin/orders/{id}/confirm"))
	defer timer.ObserveDuration()
	const endpoint = "/api/admin/orders/{id}/confirm"

	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Shop.Confirm(ctx, orderID)
	if err != nil {
		switch {
		case errors.Is(err, shop.ErrOrderNotFound):
			writeError(w, http.StatusNotFound, "order not found", "POST", endpoint)
		case errors.Is(err, shop.ErrAlreadyCancelled):
			writeError(w, http.StatusConflict, "order already cancelled", "POST", endpoint)
		case errors.Is(err, shop.ErrOutOfStock):
			writeError(w, http.StatusConflict, "insufficient stock, order left pending", "POST", endpoint)
		default:
			writeError(w, http.StatusInternalServerError, "internal error", "POST", endpoint)
		}
		return
	}
	writeJSON(w, http.StatusOK, toOrderResp(o), "POST", endpoint)
}

func (h *ShopHandler) listRecent(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpLatency.WithLabelValues("GET", "/api/admin/orders"))
	defer timer.ObserveDuration()

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 200 {
			writeError(w, http.StatusBadRequest, "limit must be 1..200", "GET", "/api/admin/orders")
			return
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	orders, err := h.Shop.ListRecent(ctx, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error", "GET", "/api/admin/orders")
		return
	}
	out := make([]adminOrderResp, 0, len(orders))
	for i := range orders {
		o := &orders[i]
		out = append(out, adminOrderResp{
			orderResp: toOrderResp(o),
			ProductID: o.ProductID,
			Qty:       o.Quantity,
			CreatedAt: o.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out, "GET", "/api/admin/orders")
}

// requireAdmin gates operator endpoints on token equality. Authorization
// stays at this boundary; the engine never sees credentials. The endpoint
// label is the route pattern so rejected requests count under the same
// series as accepted ones.
func (h *ShopHandler) requireAdmin(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Admin-Token")
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.AdminToken)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid admin token", r.Method, endpoint)
			return
		}
		next(w, r)
	}
}

func toOrderResp(o *shop.Order) orderResp {
	return orderResp{
		OrderID:      o.ID,
		Status:       strings.ToLower(string(o.Status)),
		AmountIDR:    o.TotalAmount,
		VoucherCode:  strings.Join(o.AssignedCodes, "\n"),
		VoucherCodes: o.AssignedCodes,
	}
}

// sourceKey identifies the caller for rate limiting: client IP, as rewritten
// by the RealIP middleware.
func sourceKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, code int, v any, method, endpoint string) {
	httpReqTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg, method, endpoint string) {
	writeJSON(w, code, map[string]string{"error": msg}, method, endpoint)
}
