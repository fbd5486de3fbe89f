package event

import "time"

type CustomerEventPayload struct {
	CustomerID      string `json:"customerId"`
	Name            string `json:"name"`
	NormalizedName  string `json:"normalizedName"`
	TotalSpentCents int64  `json:"totalSpentCents"`
	LastVisitISO    string `json:"lastVisitIso"`
}

type CustomerRegisteredEvent struct {
	Timestamp time.Time            `json:"timestamp"`
	Payload   CustomerEventPayload `json:"payload"`
}

type SpendRecordedEvent struct {
	Timestamp     time.Time            `json:"timestamp"`
	AmountCents   int64                `json:"amountCents"`
	PreviousCents int64                `json:"previousCents"`
	Payload       CustomerEventPayload `json:"payload"`
}

type GoalReachedEvent struct {
	Timestamp time.Time            `json:"timestamp"`
	GoalCents int64                `json:"goalCents"`
	Payload   CustomerEventPayload `json:"payload"`
}
