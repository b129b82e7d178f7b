package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"pharmatrack/internal/app"
	"pharmatrack/internal/core"
	"pharmatrack/internal/store/memory"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

const testSecret = "test-secret"

type testServer struct {
	handler  http.Handler
	store    *memory.Store
	pharmacy core.User
	patient  core.User
	medicine core.Medicine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.New()
	ts := &testServer{store: store}
	ts.pharmacy = store.AddUser(core.User{Username: "citycare", FirstName: "City", LastName: "Care", Role: core.RolePharmacy})
	ts.patient = store.AddUser(core.User{Username: "alice", Role: core.RolePatient})
	ts.medicine = store.AddMedicine(core.Medicine{
		PharmacyID: ts.pharmacy.ID, Name: "Amoxicillin", StockQuantity: 10, MinimumStock: 2,
		UnitPrice: decimal.RequireFromString("4.50"),
	})

	svc := app.NewAppService(
		core.NewOrderService(store, nil, nil),
		core.NewReportingService(store),
		core.NewUserService(store),
	)
	ts.handler = NewHandler(svc, Options{
		JWTSecret:      testSecret,
		AllowedOrigins: "https://app.example.com",
		TracerProvider: noop.NewTracerProvider(),
	})
	return ts
}

func signToken(t *testing.T, secret string, userID int, role core.Role, ttl time.Duration) string {
	t.Helper()
	claims := &jwtClaims{
		UserID: userID,
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func (ts *testServer) do(t *testing.T, method, path string, u core.User, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if u.ID != 0 {
		req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, u.ID, u.Role, time.Hour))
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (ts *testServer) placeOrder(t *testing.T, qty int) core.Order {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/orders", ts.patient, app.PlaceOrderRequest{
		PharmacyID:    ts.pharmacy.ID,
		Items:         []app.OrderLineRequest{{MedicineID: ts.medicine.ID, Quantity: qty}},
		CustomerPhone: "0777000",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[core.Order](t, rec)
}

func orderPath(id int, action string) string {
	return "/api/orders/" + strconv.Itoa(id) + "/" + action
}

func TestHealthIsPublic(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/health", core.User{}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestAuthentication(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/orders", core.User{}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "wrong-secret", ts.patient.ID, core.RolePatient, time.Hour))
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, ts.patient.ID, core.RolePatient, -time.Minute))
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "expired token")

	req = httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, ts.patient.ID, core.Role("admin"), time.Hour))
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "unknown role")

	req = httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: signToken(t, testSecret, ts.pharmacy.ID, core.RolePharmacy, time.Hour)})
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[map[string]any](t, rec)
	assert.Equal(t, "City Care", me["display_name"])
	assert.Equal(t, "pharmacy", me["role"])
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	order := ts.placeOrder(t, 2)
	assert.Equal(t, core.StatusPending, order.Status)
	assert.Equal(t, "9", order.TotalAmount.String())

	rec := ts.do(t, http.MethodPost, orderPath(order.ID, "approve"), ts.pharmacy, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[core.Order](t, rec).StockReserved)

	rec = ts.do(t, http.MethodPost, orderPath(order.ID, "ship"), ts.pharmacy, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, orderPath(order.ID, "confirm"), ts.patient, map[string]string{"customer_name": "Alice Smith"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	confirmed := decode[core.Order](t, rec)
	assert.Equal(t, core.StatusCompleted, confirmed.Status)
	assert.Equal(t, "Alice Smith", confirmed.CustomerName)

	rec = ts.do(t, http.MethodGet, orderPath(order.ID, "sales"), ts.pharmacy, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sales := decode[app.SalesResult](t, rec)
	require.Len(t, sales.Sales, 1)
	assert.Equal(t, 2, sales.Sales[0].Quantity)

	rec = ts.do(t, http.MethodGet, "/api/orders?status=completed", ts.patient, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[app.OrderListResult](t, rec).Orders, 1)

	rec = ts.do(t, http.MethodGet, "/api/notifications", ts.patient, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestConfirmReadsBodyOfUnknownLength(t *testing.T) {
	ts := newTestServer(t)
	order := ts.placeOrder(t, 1)
	for _, action := range []string{"approve", "ship"} {
		rec := ts.do(t, http.MethodPost, orderPath(order.ID, action), ts.pharmacy, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	confirm := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, orderPath(order.ID, "confirm"), strings.NewReader(body))
		req.ContentLength = -1 // as sent with Transfer-Encoding: chunked
		req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, ts.patient.ID, core.RolePatient, time.Hour))
		rec := httptest.NewRecorder()
		ts.handler.ServeHTTP(rec, req)
		return rec
	}

	rec := confirm(`{"customer_name":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "truncated JSON is rejected")

	rec = confirm(`{"customer_name":"Chunked Customer"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	confirmed := decode[core.Order](t, rec)
	assert.Equal(t, core.StatusCompleted, confirmed.Status)
	assert.Equal(t, "Chunked Customer", confirmed.CustomerName)
}

func TestErrorMapping(t *testing.T) {
	ts := newTestServer(t)
	order := ts.placeOrder(t, 11)
	stranger := ts.store.AddUser(core.User{Username: "bob", Role: core.RolePatient})

	tests := []struct {
		name   string
		method string
		path   string
		user   core.User
		status int
		code   string
	}{
		{"insufficient stock", http.MethodPost, orderPath(order.ID, "approve"), ts.pharmacy, http.StatusConflict, "INSUFFICIENT_STOCK"},
		{"invalid transition", http.MethodPost, orderPath(order.ID, "ship"), ts.pharmacy, http.StatusConflict, "INVALID_TRANSITION"},
		{"wrong party", http.MethodPost, orderPath(order.ID, "approve"), ts.patient, http.StatusForbidden, "FORBIDDEN"},
		{"missing order", http.MethodPost, orderPath(999, "approve"), ts.pharmacy, http.StatusNotFound, "NOT_FOUND"},
		{"someone else's order", http.MethodGet, "/api/orders/" + strconv.Itoa(order.ID), stranger, http.StatusNotFound, "NOT_FOUND"},
		{"someone else's sales", http.MethodGet, orderPath(order.ID, "sales"), stranger, http.StatusNotFound, "NOT_FOUND"},
		{"unknown action", http.MethodPost, orderPath(order.ID, "refund"), ts.pharmacy, http.StatusBadRequest, "BAD_REQUEST"},
		{"bad id", http.MethodGet, "/api/orders/abc", ts.pharmacy, http.StatusBadRequest, "BAD_REQUEST"},
		{"bad status filter", http.MethodGet, "/api/orders?status=lost", ts.pharmacy, http.StatusBadRequest, "BAD_REQUEST"},
		{"patient low stock", http.MethodGet, "/api/medicines/low-stock", ts.patient, http.StatusForbidden, "FORBIDDEN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, tt.method, tt.path, tt.user, nil)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			body := decode[errorResponse](t, rec)
			assert.Equal(t, tt.code, body.Code)
			assert.NotEmpty(t, body.RequestID)
		})
	}

	m, err := ts.store.GetMedicine(context.Background(), ts.medicine.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, m.StockQuantity)
}

func TestSellDirectOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/sales", ts.pharmacy, app.DirectSaleRequest{
		MedicineID: ts.medicine.ID, Quantity: 3, CustomerName: "Bob", CustomerPhone: "077-7123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sale := decode[map[string]any](t, rec)
	assert.Equal(t, float64(7), sale["remaining_stock"])
	assert.Equal(t, "created", sale["customer_outcome"])

	rec = ts.do(t, http.MethodGet, "/api/customers", ts.pharmacy, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	customers := decode[app.CustomerSummaryResult](t, rec)
	require.Len(t, customers.Customers, 1)
	assert.Equal(t, "Bob", customers.Customers[0].Name)

	rec = ts.do(t, http.MethodPost, "/api/sales", ts.pharmacy, app.DirectSaleRequest{MedicineID: ts.medicine.ID, Quantity: 50})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestNotificationsOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	n := &core.Notification{RecipientID: ts.patient.ID, Verb: core.VerbOrderShipped, Message: "shipped"}
	require.NoError(t, ts.store.InsertNotification(context.Background(), n))

	rec := ts.do(t, http.MethodPost, "/api/notifications/"+strconv.Itoa(n.ID)+"/read", ts.pharmacy, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/notifications/"+strconv.Itoa(n.ID)+"/read", ts.patient, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/notifications?unread=true", ts.patient, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[app.NotificationListResult](t, rec).Notifications)
}

func TestRequestBodyLimitAndCORS(t *testing.T) {
	ts := newTestServer(t)

	big := bytes.Repeat([]byte("a"), 2<<20)
	req := httptest.NewRequest(http.MethodPost, "/api/sales", bytes.NewReader(append(append([]byte(`{"customer_name":"`), big...), []byte(`"}`)...)))
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, ts.pharmacy.ID, core.RolePharmacy, time.Hour))
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	req = httptest.NewRequest(http.MethodOptions, "/api/orders", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestIDIsSanitized(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "<script>")
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.NotEqual(t, "<script>", rec.Header().Get("X-Request-ID"))
}
