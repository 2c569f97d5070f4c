package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckDocument_AcceptsSerializedReceipts(t *testing.T) {
	data, err := Marshal(fullReceipt())
	require.NoError(t, err)

	doc, err := DecodeJSON(data)
	require.NoError(t, err)
	assert.NoError(t, CheckDocument(doc))
}

func TestCheckDocument_AgreesWithParse(t *testing.T) {
	cases := map[string]string{
		"bad currency": `{"id":"r1","currency":"btc","amount":1,"subtotal":1,"date_time":1,"merchant_id":"m","line_items":[],"actions":[]}`,
		"missing id":   `{"currency":"usd","amount":1,"subtotal":1,"date_time":1,"merchant_id":"m","line_items":[],"actions":[]}`,
		"bad relation": `{"id":"r1","currency":"usd","amount":1,"subtotal":1,"date_time":1,"merchant_id":"m","line_items":[],"actions":[],
			"third_party":{"first_party_relation":"reseller","make_primary":true,"merchant":{"id":"x","name":"y"}}}`,
		"two metadata": `{"id":"r1","currency":"usd","amount":1,"subtotal":1,"date_time":1,"merchant_id":"m","actions":[],
			"line_items":[{"description":"a","total":1,"metadata":[{"key":"k","value":"v"},{"key":"k","value":"v"}]}]}`,
		"fractional date_time": `{"id":"r1","currency":"usd","amount":1,"subtotal":1,"date_time":1.5,"merchant_id":"m","line_items":[],"actions":[]}`,
		"date_time past 2^53":  `{"id":"r1","currency":"usd","amount":1,"subtotal":1,"date_time":9007199254740993.0,"merchant_id":"m","line_items":[],"actions":[]}`,
		"date_time 1e30":       `{"id":"r1","currency":"usd","amount":1,"subtotal":1,"date_time":1e30,"merchant_id":"m","line_items":[],"actions":[]}`,
	}

	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			decoded, err := DecodeJSON([]byte(doc))
			require.NoError(t, err)

			assert.Error(t, CheckDocument(decoded))

			_, err = ParseJSON([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestCheckDocument_DateTimeLimits(t *testing.T) {
	for _, v := range []string{"9007199254740991", "-9007199254740991", "0"} {
		doc := `{"id":"r1","currency":"usd","amount":1,"subtotal":1,"date_time":` + v + `,"merchant_id":"m","line_items":[],"actions":[]}`

		decoded, err := DecodeJSON([]byte(doc))
		require.NoError(t, err)
		assert.NoError(t, CheckDocument(decoded), v)

		_, err = ParseJSON([]byte(doc))
		assert.NoError(t, err, v)
	}
}

func TestSchemaDocument(t *testing.T) {
	assert.Contains(t, string(SchemaDocument()), `"line_items"`)
	_, err := compiled()
	assert.NoError(t, err)
}
