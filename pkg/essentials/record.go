package essentials

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/nepalcovid19/searchserve/pkg/index"
)

// Text is a display field from the remote feed. Numbers and booleans keep
// their literal spelling; null, objects and arrays decode to blank.
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		*t = ""
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*t = ""
			return nil
		}
		*t = Text(strings.TrimSpace(s))
	case '{', '[', 'n':
		*t = ""
	default:
		*t = Text(data)
	}
	return nil
}

// String returns the field as a plain string.
func (t Text) String() string { return string(t) }

// Record is one crowd-sourced organisation entry.
type Record struct {
	Organisation Text `json:"nameoftheorganisation" msgpack:"nameoftheorganisation"`
	Category     Text `json:"category" msgpack:"category"`
	Contact      Text `json:"contact" msgpack:"contact"`
	Description  Text `json:"descriptionandorserviceprovided" msgpack:"descriptionandorserviceprovided"`
	City         Text `json:"city" msgpack:"city"`
	State        Text `json:"state" msgpack:"state"`
	Phone        Text `json:"phonenumber" msgpack:"phonenumber"`
}

// Searchable fields, in the order they are tokenized.
func (r Record) categoryField() string     { return r.Category.String() }
func (r Record) cityField() string         { return r.City.String() }
func (r Record) contactField() string      { return r.Contact.String() }
func (r Record) descriptionField() string  { return r.Description.String() }
func (r Record) organisationField() string { return r.Organisation.String() }
func (r Record) stateField() string        { return r.State.String() }

// SearchFields returns the accessors for every tokenized field of a Record.
func SearchFields() []index.Field[Record] {
	return []index.Field[Record]{
		Record.categoryField,
		Record.cityField,
		Record.contactField,
		Record.descriptionField,
		Record.organisationField,
		Record.stateField,
	}
}

// decodePayload extracts the resources array. Entries that are not JSON
// objects are skipped; the count of skipped entries is returned.
func decodePayload(body []byte) ([]Record, int, error) {
	var payload struct {
		Resources []json.RawMessage `json:"resources"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, 0, err
	}
	if payload.Resources == nil {
		return nil, 0, ErrNoResources
	}

	records := make([]Record, 0, len(payload.Resources))
	skipped := 0
	for _, raw := range payload.Resources {
		if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			skipped++
			continue
		}
		var r Record
		if err := json.Unmarshal(raw, &r); err != nil {
			skipped++
			continue
		}
		records = append(records, r)
	}
	return records, skipped, nil
}
