package essentials

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePayload(t *testing.T) {
	body := `{"resources": [
		{"nameoftheorganisation": "Teku Hospital", "category": "Health Facility", "city": "Kathmandu",
		 "state": "Bagmati", "contact": "https://example.org/teku", "phonenumber": "01-4253396",
		 "descriptionandorserviceprovided": "Covid19 isolation ward"},
		{"nameoftheorganisation": 42, "category": null, "city": ["x"], "phonenumber": 9841000000},
		"not an object",
		null
	]}`

	records, skipped, err := decodePayload([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, 2, skipped)
	require.Len(t, records, 2)

	assert.Equal(t, Text("Teku Hospital"), records[0].Organisation)
	assert.Equal(t, Text("Covid19 isolation ward"), records[0].Description)
	assert.Equal(t, Text("01-4253396"), records[0].Phone)

	assert.Equal(t, Text("42"), records[1].Organisation)
	assert.Equal(t, Text(""), records[1].Category)
	assert.Equal(t, Text(""), records[1].City)
	assert.Equal(t, Text("9841000000"), records[1].Phone)
	assert.Equal(t, Text(""), records[1].State, "missing field is blank")
}

func TestDecodePayloadErrors(t *testing.T) {
	_, _, err := decodePayload([]byte(`{"data": []}`))
	assert.ErrorIs(t, err, ErrNoResources)

	_, _, err = decodePayload([]byte(`not json`))
	assert.Error(t, err)

	records, _, err := decodePayload([]byte(`{"resources": []}`))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSearchFieldsCoverDisplayText(t *testing.T) {
	r := Record{
		Organisation: "Org", Category: "Cat", Contact: "http://c", Description: "Desc",
		City: "City", State: "State", Phone: "123",
	}
	var got []string
	for _, f := range SearchFields() {
		got = append(got, f(r))
	}
	assert.Equal(t, []string{"Cat", "City", "http://c", "Desc", "Org", "State"}, got)
}
