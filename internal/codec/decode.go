package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"receipt-schema-api/internal/models"
	"receipt-schema-api/internal/validation"
)

// ErrMalformed reports input that is not well-formed JSON or YAML at all.
// Contract violations are *validation.ValidationError instead.
var ErrMalformed = errors.New("codec: malformed document")

// ParseJSON decodes a JSON document and validates it as a receipt. Numbers
// are decoded as json.Number so integral timestamps keep full precision.
func ParseJSON(data []byte) (models.Receipt, error) {
	raw, err := DecodeJSON(data)
	if err != nil {
		return models.Receipt{}, err
	}
	return parseDocument(raw)
}

// ParseYAML decodes a YAML document and validates it as a receipt.
func ParseYAML(data []byte) (models.Receipt, error) {
	raw, err := DecodeYAML(data)
	if err != nil {
		return models.Receipt{}, err
	}
	return parseDocument(raw)
}

// DecodeJSON decodes exactly one JSON value without validating it.
func DecodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: unexpected data after top-level value", ErrMalformed)
	}
	return raw, nil
}

// DecodeYAML decodes a single YAML document without validating it.
func DecodeYAML(data []byte) (any, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return raw, nil
}

func parseDocument(raw any) (models.Receipt, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return models.Receipt{}, validation.WrongType("receipt", "an object")
	}
	return Parse(obj)
}
