package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"loyalty-tracker/internal/api/handler/dto"
	"loyalty-tracker/internal/domain/customer"
	"loyalty-tracker/internal/pkg/apperrors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type CustomerHandler struct {
	service customer.CustomerService
	logger  *slog.Logger
}

func NewCustomerHandler(s customer.CustomerService, l *slog.Logger) *CustomerHandler {
	if s == nil {
		panic("customer service cannot be nil")
	}
	if l == nil {
		panic("logger cannot be nil")
	}
	return &CustomerHandler{
		service: s,
		logger:  l.With("component", "CustomerHandler"),
	}
}

// decodeJSON tolerates unknown fields; callers treat any failure as an
// empty body.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return fmt.Errorf("no request body")
	}
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Default().Error("Failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":"Internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

// respondError writes {"error": message}. Caller mistakes are always 400;
// anything else uses fallbackStatus with the error text.
func respondError(w http.ResponseWriter, err error, fallbackStatus int) {
	status, message := fallbackStatus, err.Error()
	var validationError *apperrors.ValidationError
	var notFound *apperrors.NotFoundError

	switch {
	case errors.As(err, &validationError):
		status, message = http.StatusBadRequest, validationError.Message
	case errors.As(err, &notFound):
		status, message = http.StatusBadRequest, notFound.Error()
	case errors.Is(err, apperrors.ErrNotFound):
		status, message = http.StatusBadRequest, "Customer not found"
	case errors.Is(err, apperrors.ErrInvalidArgument), errors.Is(err, dto.ErrInvalidAmount):
		status = http.StatusBadRequest
	default:
		slog.Default().Error("Unhandled customer request error", "error", err)
	}

	respondJSON(w, status, dto.ErrorResponse{Error: message})
}

// ListCustomers handles GET /customers
// @Summary List or search customers
// @Description Lists every customer sorted by name, or returns customers whose normalized name contains q.
// @Tags Customers
// @Produce json
// @Param q query string false "Name search text"
// @Success 200 {object} dto.CustomerListEnvelope "Customers"
// @Failure 500 {object} dto.ErrorResponse "Storage failure"
// @Router /customers [get]
func (h *CustomerHandler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	var (
		customers []*customer.Customer
		err       error
	)
	if query != "" {
		h.logger.DebugContext(r.Context(), "Searching customers", slog.String("query", query))
		customers, err = h.service.Search(r.Context(), query)
	} else {
		h.logger.DebugContext(r.Context(), "Listing customers")
		customers, err = h.service.List(r.Context())
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Service failed to load customers", slog.Any("error", err))
		respondError(w, err, http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewCustomerListEnvelope(customers, h.service.GoalDollars()))
}

// CreateCustomer handles POST /customers
// @Summary Register a customer
// @Description Returns the existing customer when the normalized name is already registered, otherwise creates one.
// @Tags Customers
// @Accept json
// @Produce json
// @Param request body dto.CreateCustomerRequest true "Customer registration request"
// @Success 201 {object} dto.CustomerEnvelope "Registered customer"
// @Failure 400 {object} dto.ErrorResponse "Name is required"
// @Failure 500 {object} dto.ErrorResponse "Storage failure"
// @Router /customers [post]
func (h *CustomerHandler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateCustomerRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode request body", slog.Any("error", err))
	}

	name := req.NameValue()
	if strings.TrimSpace(name) == "" {
		h.logger.WarnContext(r.Context(), "Validation failed: name is empty")
		respondJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Name is required"})
		return
	}

	cust, err := h.service.CreateOrGet(r.Context(), name)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Service failed to register customer", slog.Any("error", err))
		respondError(w, err, http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(r.Context(), "Customer registered", slog.String("customerID", cust.ID))
	respondJSON(w, http.StatusCreated, dto.CustomerEnvelope{Customer: dto.NewCustomerResponse(cust, h.service.GoalDollars())})
}

// RecordSpend handles POST /customers/{customerID}/spend
// @Summary Record a purchase
// @Description Adds the amount, in dollars, to the customer's running total and stamps the visit time. Negative amounts add nothing.
// @Tags Customers
// @Accept json
// @Produce json
// @Param customerID path string true "Customer ID"
// @Param request body dto.SpendRequest true "Spend request"
// @Success 200 {object} dto.CustomerEnvelope "Updated customer"
// @Failure 400 {object} dto.ErrorResponse "Invalid amount, unknown customer or storage failure"
// @Router /customers/{customerID}/spend [post]
func (h *CustomerHandler) RecordSpend(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "customerID")
	logger := h.logger.With(slog.String("customerID", customerID))

	var req dto.SpendRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.WarnContext(r.Context(), "Failed to decode request body", slog.Any("error", err))
	}

	amount, err := req.AmountValue()
	if err != nil {
		logger.WarnContext(r.Context(), "Validation failed: invalid amount")
		respondJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	cust, err := h.service.IncrementSpend(r.Context(), customerID, amount)
	if err != nil {
		level := slog.LevelWarn
		if !errors.Is(err, apperrors.ErrNotFound) && !errors.Is(err, apperrors.ErrValidation) {
			level = slog.LevelError
		}
		logger.Log(r.Context(), level, "Service failed to record spend", slog.Any("error", err))
		respondError(w, err, http.StatusBadRequest)
		return
	}

	logger.InfoContext(r.Context(), "Spend recorded", slog.Int64("totalSpentCents", cust.TotalSpentCents))
	respondJSON(w, http.StatusOK, dto.CustomerEnvelope{Customer: dto.NewCustomerResponse(cust, h.service.GoalDollars())})
}
