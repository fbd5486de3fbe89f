package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"loyalty-tracker/internal/domain/customer"
	"math"
	"strconv"
	"strings"
)

var ErrInvalidAmount = errors.New("amount must be a finite number")

type CreateCustomerRequest struct {
	Name json.RawMessage `json:"name" swaggertype:"string" example:"Jane Doe"`
}

// NameValue returns the requested name, or "" when the field is absent or
// not a JSON string.
func (r *CreateCustomerRequest) NameValue() string {
	var name string
	if err := json.Unmarshal(r.Name, &name); err != nil {
		return ""
	}
	return name
}

type SpendRequest struct {
	Amount json.RawMessage `json:"amount" swaggertype:"number" example:"12.5"`
}

// AmountValue accepts a JSON number or a string holding one. Values that
// overflow float64 are rejected and values that underflow read as zero.
func (r *SpendRequest) AmountValue() (float64, error) {
	raw := bytes.TrimSpace(r.Amount)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, ErrInvalidAmount
	}

	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, ErrInvalidAmount
		}
		text = strings.TrimSpace(text)
	}

	amount, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, ErrInvalidAmount
	}
	return amount, nil
}

type CustomerResponse struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	NormalizedName  string `json:"normalizedName"`
	TotalSpentCents int64  `json:"totalSpentCents"`
	LastVisitISO    string `json:"lastVisitIso"`
	TotalSpent      string `json:"totalSpent" example:"$12.50"`
	ProgressPercent int    `json:"progressPercent" example:"6"`
}

type CustomerEnvelope struct {
	Customer CustomerResponse `json:"customer"`
}

type CustomerListEnvelope struct {
	Customers []CustomerResponse `json:"customers"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func NewCustomerResponse(c *customer.Customer, goalDollars float64) CustomerResponse {
	return CustomerResponse{
		ID:              c.ID,
		Name:            c.Name,
		NormalizedName:  c.NormalizedName,
		TotalSpentCents: c.TotalSpentCents,
		LastVisitISO:    c.LastVisitISO,
		TotalSpent:      customer.FormatCurrency(c.TotalSpentCents),
		ProgressPercent: customer.ProgressPercent(c.TotalSpentCents, goalDollars),
	}
}

func NewCustomerListEnvelope(customers []*customer.Customer, goalDollars float64) CustomerListEnvelope {
	resp := CustomerListEnvelope{Customers: make([]CustomerResponse, 0, len(customers))}
	for _, c := range customers {
		resp.Customers = append(resp.Customers, NewCustomerResponse(c, goalDollars))
	}
	return resp
}
