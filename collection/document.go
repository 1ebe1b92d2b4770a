package collection

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/stevemurr/bizstore/common"
)

// Reserved field names present on every record.
const (
	FieldID        = "id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// TimeLayout is how the store writes timestamps: UTC, millisecond precision.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Document is a record in its generic JSON form.
type Document map[string]any

// ID returns the record id, or "" when it is missing or not a string.
func (d Document) ID() string {
	id, _ := d[FieldID].(string)
	return id
}

func (d Document) CreatedAt() time.Time { return d.time(FieldCreatedAt) }

func (d Document) UpdatedAt() time.Time { return d.time(FieldUpdatedAt) }

func (d Document) time(field string) time.Time {
	s, _ := d[field].(string)
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Decode unmarshals the document into v, typically an entity struct.
func (d Document) Decode(v any) error {
	b, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// FromValue converts a struct (or any JSON-marshalable value) into a Document.
func FromValue(v any) (Document, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrValidationFailure, err)
	}
	return decodeDocument(b)
}

func decodeDocument(b []byte) (Document, error) {
	var d Document
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("document is not a JSON object")
	}
	return d, nil
}

var collectionName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]{0,63}$`)

// ValidateCollectionName rejects names that are empty or unsafe as storage keys.
func ValidateCollectionName(name string) error {
	if !collectionName.MatchString(name) {
		return fmt.Errorf("%w: invalid collection name %q", common.ErrValidationFailure, name)
	}
	return nil
}

// checkReserved enforces the fields every record must carry.
func checkReserved(d Document) error {
	id, ok := d[FieldID].(string)
	if !ok || id == "" {
		return fmt.Errorf("%w: record is missing a non-empty string %q", common.ErrValidationFailure, FieldID)
	}
	for _, f := range []string{FieldCreatedAt, FieldUpdatedAt} {
		v, present := d[f]
		if !present {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("%w: %q must be an RFC 3339 string", common.ErrValidationFailure, f)
		}
		if _, err := time.Parse(time.RFC3339, s); err != nil {
			return fmt.Errorf("%w: %q is not an RFC 3339 timestamp: %q", common.ErrValidationFailure, f, s)
		}
	}
	return nil
}
