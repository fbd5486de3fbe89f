package customer

import (
	"encoding/json"
	"fmt"
	"loyalty-tracker/internal/pkg/apperrors"
)

// MarshalDatabase renders db in the persisted layout, indented by two spaces.
func MarshalDatabase(db *Database) ([]byte, error) {
	doc := Database{Customers: db.Customers}
	if doc.Customers == nil {
		doc.Customers = []*Customer{}
	}
	return json.MarshalIndent(doc, "", "  ")
}

// UnmarshalDatabase parses a persisted document. Anything other than a JSON
// object with a customers array yields apperrors.ErrCorruptStorage.
func UnmarshalDatabase(raw []byte) (*Database, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrCorruptStorage, err)
	}
	field, ok := doc["customers"]
	if !ok || string(field) == "null" {
		return nil, fmt.Errorf("%w: missing customers field", apperrors.ErrCorruptStorage)
	}

	var customers []*Customer
	if err := json.Unmarshal(field, &customers); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrCorruptStorage, err)
	}

	db := NewDatabase()
	for _, c := range customers {
		if c != nil {
			db.Customers = append(db.Customers, c)
		}
	}
	return db, nil
}
