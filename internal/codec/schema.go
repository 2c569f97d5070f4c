package codec

import (
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaURL = "https://receipt-schema-api/schemas/receipt.json"

// receiptSchema mirrors the rules enforced by Parse so clients can validate
// documents before submitting them.
const receiptSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://receipt-schema-api/schemas/receipt.json",
  "title": "receipt",
  "type": "object",
  "required": ["id", "currency", "amount", "subtotal", "date_time", "merchant_id", "line_items", "actions"],
  "properties": {
    "id": {"type": "string"},
    "currency": {"enum": ["usd", "eur", "jpy", "gbp", "aud", "cad", "chf", "cnh"]},
    "amount": {"type": "number"},
    "subtotal": {"type": "number"},
    "date_time": {
      "type": "integer",
      "minimum": -9007199254740991,
      "maximum": 9007199254740991,
      "description": "milliseconds since the Unix epoch"
    },
    "merchant_id": {"type": "string"},
    "mcc": {"type": "string"},
    "third_party": {"$ref": "#/$defs/third_party"},
    "line_items": {"type": "array", "items": {"$ref": "#/$defs/line_item"}},
    "actions": {"type": "array", "items": {"$ref": "#/$defs/action"}}
  },
  "$defs": {
    "merchant": {
      "type": "object",
      "required": ["id", "name"],
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "name": {"type": "string"},
        "brand_color": {"type": "string"},
        "logo": {"type": "string"},
        "website": {"type": "string"}
      }
    },
    "third_party": {
      "type": "object",
      "required": ["first_party_relation", "make_primary", "merchant"],
      "properties": {
        "first_party_relation": {"enum": ["bnpl", "delivery_service", "marketplace", "payment_processor", "platform", "point_of_sale"]},
        "make_primary": {"type": "boolean"},
        "merchant": {"$ref": "#/$defs/merchant"}
      }
    },
    "metadata_entry": {
      "type": "object",
      "required": ["key", "value"],
      "properties": {
        "key": {"type": "string"},
        "value": {"type": "string"}
      }
    },
    "line_item": {
      "type": "object",
      "required": ["description", "total"],
      "properties": {
        "description": {"type": "string"},
        "total": {"type": "number"},
        "quantity": {"type": "number"},
        "unit_cost": {"type": "number"},
        "unit": {"type": "string"},
        "tax": {"type": "number"},
        "metadata": {"type": "array", "minItems": 1, "maxItems": 1, "items": {"$ref": "#/$defs/metadata_entry"}},
        "product_image": {"type": "string"},
        "group": {"type": "string"}
      }
    },
    "action": {
      "type": "object",
      "required": ["description", "url"],
      "properties": {
        "description": {"type": "string"},
        "url": {"type": "string"},
        "icon": {"type": "string"}
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// SchemaDocument returns the receipt JSON Schema.
func SchemaDocument() []byte {
	return []byte(receiptSchema)
}

// CheckDocument validates an already decoded document (see DecodeJSON and
// DecodeYAML) against the receipt JSON Schema.
func CheckDocument(doc any) error {
	schema, err := compiled()
	if err != nil {
		return err
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("document does not match receipt schema: %w", err)
	}
	return nil
}

func compiled() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = jsonschema.CompileString(schemaURL, receiptSchema)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile receipt schema: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}
