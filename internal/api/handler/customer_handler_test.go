package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"loyalty-tracker/internal/api/handler"
	"loyalty-tracker/internal/api/handler/dto"
	"loyalty-tracker/internal/domain/customer"
	"loyalty-tracker/internal/pkg/apperrors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCustomerService struct {
	mock.Mock
}

func (_m *MockCustomerService) CreateOrGet(ctx context.Context, name string) (*customer.Customer, error) {
	ret := _m.Called(ctx, name)

	var r0 *customer.Customer
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*customer.Customer)
	}
	return r0, ret.Error(1)
}

func (_m *MockCustomerService) List(ctx context.Context) ([]*customer.Customer, error) {
	ret := _m.Called(ctx)

	var r0 []*customer.Customer
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]*customer.Customer)
	}
	return r0, ret.Error(1)
}

func (_m *MockCustomerService) Search(ctx context.Context, query string) ([]*customer.Customer, error) {
	ret := _m.Called(ctx, query)

	var r0 []*customer.Customer
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]*customer.Customer)
	}
	return r0, ret.Error(1)
}

func (_m *MockCustomerService) IncrementSpend(ctx context.Context, customerID string, amountDollars float64) (*customer.Customer, error) {
	ret := _m.Called(ctx, customerID, amountDollars)

	var r0 *customer.Customer
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*customer.Customer)
	}
	return r0, ret.Error(1)
}

func (_m *MockCustomerService) GoalDollars() float64 {
	return 200
}

func newHandler() (*MockCustomerService, *handler.CustomerHandler) {
	mockService := new(MockCustomerService)
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	return mockService, handler.NewCustomerHandler(mockService, logger)
}

func withCustomerID(req *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("customerID", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestListCustomers(t *testing.T) {
	alice := &customer.Customer{ID: "a", Name: "Alice", NormalizedName: "alice", TotalSpentCents: 5000, LastVisitISO: "2024-05-01T12:00:00.000Z"}

	t.Run("list without query", func(t *testing.T) {
		mockService, h := newHandler()
		mockService.On("List", mock.Anything).Return([]*customer.Customer{alice}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/customers", nil)
		rec := httptest.NewRecorder()
		h.ListCustomers(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		var resp dto.CustomerListEnvelope
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Customers, 1)
		assert.Equal(t, "a", resp.Customers[0].ID)
		assert.Equal(t, "$50.00", resp.Customers[0].TotalSpent)
		assert.Equal(t, 25, resp.Customers[0].ProgressPercent)
		mockService.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
	})

	t.Run("search with query", func(t *testing.T) {
		mockService, h := newHandler()
		mockService.On("Search", mock.Anything, "ali").Return([]*customer.Customer{alice}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/customers?q=ali", nil)
		rec := httptest.NewRecorder()
		h.ListCustomers(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("empty result is an empty array", func(t *testing.T) {
		mockService, h := newHandler()
		mockService.On("List", mock.Anything).Return(nil, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/customers", nil)
		rec := httptest.NewRecorder()
		h.ListCustomers(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"customers":[]}`, rec.Body.String())
	})

	t.Run("storage failure", func(t *testing.T) {
		mockService, h := newHandler()
		mockService.On("List", mock.Anything).Return(nil, errors.New("failed to list customers: io error")).Once()

		req := httptest.NewRequest(http.MethodGet, "/customers", nil)
		rec := httptest.NewRecorder()
		h.ListCustomers(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "failed to list customers: io error", decodeError(t, rec))
	})
}

func TestCreateCustomer(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		mockService, h := newHandler()
		created := &customer.Customer{ID: "c-1", Name: "Jane Doe", NormalizedName: "jane doe", LastVisitISO: "2024-05-01T12:00:00.000Z"}
		mockService.On("CreateOrGet", mock.Anything, "  jane doe ").Return(created, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/customers", strings.NewReader(`{"name":"  jane doe ","extra":true}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		h.CreateCustomer(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		var resp dto.CustomerEnvelope
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "c-1", resp.Customer.ID)
		assert.Equal(t, "Jane Doe", resp.Customer.Name)
		assert.Equal(t, "$0.00", resp.Customer.TotalSpent)
		mockService.AssertExpectations(t)
	})

	invalidBodies := map[string]string{
		"missing name":    `{}`,
		"empty name":      `{"name":""}`,
		"whitespace name": `{"name":"   "}`,
		"non-string name": `{"name":42}`,
		"malformed json":  `{"name":`,
		"empty body":      ``,
	}
	for name, body := range invalidBodies {
		t.Run(name, func(t *testing.T) {
			mockService, h := newHandler()

			req := httptest.NewRequest(http.MethodPost, "/customers", strings.NewReader(body))
			rec := httptest.NewRecorder()
			h.CreateCustomer(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "Name is required", decodeError(t, rec))
			mockService.AssertNotCalled(t, "CreateOrGet", mock.Anything, mock.Anything)
		})
	}

	t.Run("storage failure", func(t *testing.T) {
		mockService, h := newHandler()
		mockService.On("CreateOrGet", mock.Anything, "Bob").Return(nil, errors.New("failed to save new customer: disk full")).Once()

		req := httptest.NewRequest(http.MethodPost, "/customers", strings.NewReader(`{"name":"Bob"}`))
		rec := httptest.NewRecorder()
		h.CreateCustomer(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, decodeError(t, rec), "disk full")
	})
}

func TestRecordSpend(t *testing.T) {
	updated := &customer.Customer{ID: "c-1", Name: "Alice", NormalizedName: "alice", TotalSpentCents: 1250, LastVisitISO: "2024-05-01T12:00:00.000Z"}

	t.Run("success with number", func(t *testing.T) {
		mockService, h := newHandler()
		mockService.On("IncrementSpend", mock.Anything, "c-1", 12.5).Return(updated, nil).Once()

		req := withCustomerID(httptest.NewRequest(http.MethodPost, "/customers/c-1/spend", strings.NewReader(`{"amount":12.5}`)), "c-1")
		rec := httptest.NewRecorder()
		h.RecordSpend(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp dto.CustomerEnvelope
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, int64(1250), resp.Customer.TotalSpentCents)
		assert.Equal(t, "$12.50", resp.Customer.TotalSpent)
		assert.Equal(t, 6, resp.Customer.ProgressPercent)
		mockService.AssertExpectations(t)
	})

	t.Run("success with numeric string", func(t *testing.T) {
		mockService, h := newHandler()
		mockService.On("IncrementSpend", mock.Anything, "c-1", 12.5).Return(updated, nil).Once()

		req := withCustomerID(httptest.NewRequest(http.MethodPost, "/customers/c-1/spend", strings.NewReader(`{"amount":" 12.50 "}`)), "c-1")
		rec := httptest.NewRecorder()
		h.RecordSpend(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		mockService.AssertExpectations(t)
	})

	invalidBodies := map[string]string{
		"missing amount": `{}`,
		"null amount":    `{"amount":null}`,
		"text amount":    `{"amount":"ten"}`,
		"empty string":   `{"amount":""}`,
		"boolean amount": `{"amount":true}`,
		"overflow":       `{"amount":1e400}`,
		"malformed json": `{"amount":`,
	}
	for name, body := range invalidBodies {
		t.Run(name, func(t *testing.T) {
			mockService, h := newHandler()

			req := withCustomerID(httptest.NewRequest(http.MethodPost, "/customers/c-1/spend", strings.NewReader(body)), "c-1")
			rec := httptest.NewRecorder()
			h.RecordSpend(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "amount must be a finite number", decodeError(t, rec))
			mockService.AssertNotCalled(t, "IncrementSpend", mock.Anything, mock.Anything, mock.Anything)
		})
	}

	t.Run("customer not found", func(t *testing.T) {
		mockService, h := newHandler()
		notFound := errors.Join(customer.ErrNotFound, apperrors.NewNotFoundError("Customer", "nope"))
		mockService.On("IncrementSpend", mock.Anything, "nope", float64(10)).Return(nil, notFound).Once()

		req := withCustomerID(httptest.NewRequest(http.MethodPost, "/customers/nope/spend", strings.NewReader(`{"amount":10}`)), "nope")
		rec := httptest.NewRecorder()
		h.RecordSpend(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Customer not found", decodeError(t, rec))
	})

	t.Run("validation error from service", func(t *testing.T) {
		mockService, h := newHandler()
		mockService.On("IncrementSpend", mock.Anything, "c-1", 1e17).Return(nil, apperrors.NewValidationError("amount", "Amount is too large")).Once()

		req := withCustomerID(httptest.NewRequest(http.MethodPost, "/customers/c-1/spend", strings.NewReader(`{"amount":1e17}`)), "c-1")
		rec := httptest.NewRecorder()
		h.RecordSpend(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Amount is too large", decodeError(t, rec))
	})

	t.Run("storage failure is a bad request with the error text", func(t *testing.T) {
		mockService, h := newHandler()
		mockService.On("IncrementSpend", mock.Anything, "c-1", float64(5)).Return(nil, errors.New("failed to record spend: disk full")).Once()

		req := withCustomerID(httptest.NewRequest(http.MethodPost, "/customers/c-1/spend", strings.NewReader(`{"amount":5}`)), "c-1")
		rec := httptest.NewRecorder()
		h.RecordSpend(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "failed to record spend: disk full", decodeError(t, rec))
	})
}

func TestNewCustomerHandler_PanicsOnNilDependencies(t *testing.T) {
	assert.Panics(t, func() { handler.NewCustomerHandler(nil, slog.Default()) })
	assert.Panics(t, func() { handler.NewCustomerHandler(new(MockCustomerService), nil) })
}
