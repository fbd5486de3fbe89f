package customer

import (
	"time"

	"github.com/google/uuid"
)

// TimestampLayout matches the millisecond precision UTC form clients already
// sort and parse, e.g. 2024-05-01T13:45:10.123Z.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

type Customer struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	NormalizedName  string `json:"normalizedName"`
	TotalSpentCents int64  `json:"totalSpentCents"`
	LastVisitISO    string `json:"lastVisitIso"`
}

// Database is the whole persisted collection. It is always loaded and
// replaced as a unit.
type Database struct {
	Customers []*Customer `json:"customers"`
}

func NewDatabase() *Database {
	return &Database{Customers: []*Customer{}}
}

func NewCustomer(rawName string, now time.Time) *Customer {
	return &Customer{
		ID:              uuid.NewString(),
		Name:            DisplayName(rawName),
		NormalizedName:  NormalizeName(rawName),
		TotalSpentCents: 0,
		LastVisitISO:    FormatTimestamp(now),
	}
}

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// LastVisit parses LastVisitISO. Records written by other tools may carry any
// RFC 3339 timestamp, so the parse is not tied to TimestampLayout.
func (c *Customer) LastVisit() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, c.LastVisitISO)
}

// AddSpend credits cents to the running total and stamps the visit.
func (c *Customer) AddSpend(cents int64, now time.Time) {
	if cents > 0 {
		c.TotalSpentCents += cents
	}
	c.LastVisitISO = FormatTimestamp(now)
}

func (db *Database) FindByNormalizedName(normalized string) *Customer {
	for _, c := range db.Customers {
		if c.NormalizedName == normalized {
			return c
		}
	}
	return nil
}

func (db *Database) FindByID(id string) *Customer {
	for _, c := range db.Customers {
		if c.ID == id {
			return c
		}
	}
	return nil
}
