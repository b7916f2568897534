package order_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/cache"
	"github.com/Additional-Code/orderdesk/internal/config"
	"github.com/Additional-Code/orderdesk/internal/dto"
	"github.com/Additional-Code/orderdesk/internal/entity"
	"github.com/Additional-Code/orderdesk/internal/messaging"
	"github.com/Additional-Code/orderdesk/internal/presentation/http/response"
	repo "github.com/Additional-Code/orderdesk/internal/repository/order"
	service "github.com/Additional-Code/orderdesk/internal/service/order"
	transport "github.com/Additional-Code/orderdesk/internal/transport/http/order"
)

type testServer struct {
	e       *echo.Echo
	gateway *repo.MemoryRepository
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	gateway := repo.NewMemoryRepository()
	svc := service.NewService(service.Params{
		Gateway:   gateway,
		Cache:     cache.NewOrders(cache.NewNoop(), config.Config{}),
		Config:    config.Config{},
		Logger:    zap.NewNop(),
		Publisher: messaging.NewNoop("orders.events"),
	})

	e := echo.New()
	transport.Register(e, transport.NewHandler(svc))
	return testServer{e: e, gateway: gateway}
}

func (s testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s testServer) seed(t *testing.T, date string) *entity.Order {
	t.Helper()
	orderDate, err := time.Parse(dto.DateLayout, date)
	require.NoError(t, err)
	o := &entity.Order{
		CustomerName:    "John Doe",
		OrderDate:       orderDate,
		ShippingAddress: "123 Main St",
		Total:           100.0,
	}
	require.NoError(t, s.gateway.Save(context.Background(), o))
	return o
}

func decodeOrder(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestCreateOrder(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/orders", `{"customerName": "John Doe", "shippingAddress": "123 Main St", "total": 100.0}`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeOrder(t, rec)
	assert.EqualValues(t, 1, body["id"])
	assert.Equal(t, "John Doe", body["customerName"])
	assert.Equal(t, "123 Main St", body["shippingAddress"])
	assert.EqualValues(t, 100.0, body["total"])
	assert.Equal(t, time.Now().UTC().Format(dto.DateLayout), body["orderDate"])
}

func TestCreateOrderWithValidationErrors(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/orders", `{"customerName": "", "shippingAddress": "", "total": -100.0}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Customer name is required")
	assert.Contains(t, rec.Body.String(), "Shipping address is required")
	assert.Contains(t, rec.Body.String(), "Total must be positive")

	var body response.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "bad_request", body.Kind)
	assert.Len(t, body.Errors, 3)

	all, err := s.gateway.FindAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreateOrderSingleFailure(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/orders", `{"customerName": "John Doe", "shippingAddress": "123 Main St", "total": 0}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body response.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"Total must be positive"}, body.Errors)
}

func TestCreateOrderMalformedJSON(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/orders", `{"customerName": `)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid payload")
}

func TestFindOrderByID(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, "2023-07-03")

	rec := s.do(t, http.MethodGet, "/orders/1", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeOrder(t, rec)
	assert.EqualValues(t, 1, body["id"])
	assert.Equal(t, "John Doe", body["customerName"])
	assert.Equal(t, "2023-07-03", body["orderDate"])
	assert.Equal(t, "123 Main St", body["shippingAddress"])
	assert.EqualValues(t, 100.0, body["total"])
}

func TestFindOrderByIDMissing(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/orders/100", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestInvalidIDs(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/orders/abc", "/orders/0", "/orders/-4"} {
		rec := s.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.Contains(t, rec.Body.String(), "invalid id", path)
	}
}

func TestUpdateOrder(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, "2023-07-03")

	rec := s.do(t, http.MethodPut, "/orders/1", `{"customerName": "Jane Doe", "shippingAddress": "456 Oak St", "total": 200.0}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeOrder(t, rec)
	assert.Equal(t, "Jane Doe", body["customerName"])
	assert.Equal(t, "456 Oak St", body["shippingAddress"])
	assert.EqualValues(t, 200.0, body["total"])

	rec = s.do(t, http.MethodGet, "/orders/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeOrder(t, rec)
	assert.EqualValues(t, 1, body["id"])
	assert.Equal(t, "Jane Doe", body["customerName"])
	assert.Equal(t, "2023-07-03", body["orderDate"])
}

func TestUpdateOrderValidation(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, "2023-07-03")

	rec := s.do(t, http.MethodPut, "/orders/1", `{"customerName": "", "shippingAddress": "456 Oak St", "total": 200.0}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Customer name is required")
}

func TestUpdateNonexistentOrder(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPut, "/orders/100", `{"customerName": "Jane Doe", "shippingAddress": "456 Oak St", "total": 200.0}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestDeleteOrder(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, "2023-07-03")

	rec := s.do(t, http.MethodDelete, "/orders/1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/orders/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteNonexistentOrder(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodDelete, "/orders/100", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestListOrders(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/orders", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
	assert.Equal(t, "0", rec.Header().Get("X-Total-Count"))

	s.seed(t, "2023-07-03")
	s.seed(t, "2023-07-04")

	rec = s.do(t, http.MethodGet, "/orders", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []dto.OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, int64(1), list[0].ID)
	assert.Equal(t, "2023-07-04", list[1].OrderDate)
	assert.Equal(t, "2", rec.Header().Get("X-Total-Count"))
}

func TestCreateThenReadRoundTrip(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/orders", `{"customerName": "Jane Smith", "shippingAddress": "456 Oak St", "total": 150.0, "orderDate": "2023-07-03"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeOrder(t, rec)

	rec = s.do(t, http.MethodGet, "/orders/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created, decodeOrder(t, rec))
}
