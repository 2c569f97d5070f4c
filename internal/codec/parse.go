// Package codec converts between untyped structured records and receipts.
package codec

import (
	"encoding/json"
	"math"
	"math/big"

	"receipt-schema-api/internal/models"
	"receipt-schema-api/internal/validation"
)

// Parse validates raw and returns the typed receipt. The first violation in
// field declaration order is returned as a *validation.ValidationError.
// Fields not named by the receipt contract are ignored.
func Parse(raw map[string]any) (models.Receipt, error) {
	var r models.Receipt
	var err error

	if r.ID, err = requiredString(raw, "", "id"); err != nil {
		return models.Receipt{}, err
	}

	currency, err := requiredString(raw, "", "currency")
	if err != nil {
		return models.Receipt{}, err
	}
	c, ok := models.ParseCurrency(currency)
	if !ok {
		return models.Receipt{}, validation.NotAllowed("currency", currency, currencyNames())
	}
	r.Currency = c

	if r.Amount, err = requiredNumber(raw, "", "amount"); err != nil {
		return models.Receipt{}, err
	}
	if r.Subtotal, err = requiredNumber(raw, "", "subtotal"); err != nil {
		return models.Receipt{}, err
	}
	if r.DateTime, err = requiredEpochMillis(raw, "", "date_time"); err != nil {
		return models.Receipt{}, err
	}
	if r.MerchantID, err = requiredString(raw, "", "merchant_id"); err != nil {
		return models.Receipt{}, err
	}
	if r.MCC, err = optionalString(raw, "", "mcc"); err != nil {
		return models.Receipt{}, err
	}

	if v, present := raw["third_party"]; present {
		obj, ok := v.(map[string]any)
		if !ok {
			return models.Receipt{}, validation.WrongType("third_party", "an object")
		}
		tp, err := parseThirdParty(obj, "third_party")
		if err != nil {
			return models.Receipt{}, err
		}
		r.ThirdParty = models.Some(tp)
	}

	items, err := requiredArray(raw, "", "line_items")
	if err != nil {
		return models.Receipt{}, err
	}
	r.LineItems = make([]models.LineItem, 0, len(items))
	for i, v := range items {
		field := validation.Index("line_items", i)
		obj, ok := v.(map[string]any)
		if !ok {
			return models.Receipt{}, validation.WrongType(field, "an object")
		}
		item, err := parseLineItem(obj, field)
		if err != nil {
			return models.Receipt{}, err
		}
		r.LineItems = append(r.LineItems, item)
	}

	actions, err := requiredArray(raw, "", "actions")
	if err != nil {
		return models.Receipt{}, err
	}
	r.Actions = make([]models.Action, 0, len(actions))
	for i, v := range actions {
		field := validation.Index("actions", i)
		obj, ok := v.(map[string]any)
		if !ok {
			return models.Receipt{}, validation.WrongType(field, "an object")
		}
		action, err := parseAction(obj, field)
		if err != nil {
			return models.Receipt{}, err
		}
		r.Actions = append(r.Actions, action)
	}

	return r, nil
}

func parseMerchant(raw map[string]any, path string) (models.Merchant, error) {
	var m models.Merchant
	var err error

	if m.ID, err = requiredString(raw, path, "id"); err != nil {
		return models.Merchant{}, err
	}
	if m.ID == "" {
		return models.Merchant{}, validation.Empty(validation.Path(path, "id"))
	}
	if m.Name, err = requiredString(raw, path, "name"); err != nil {
		return models.Merchant{}, err
	}
	if m.BrandColor, err = optionalString(raw, path, "brand_color"); err != nil {
		return models.Merchant{}, err
	}
	if m.Logo, err = optionalString(raw, path, "logo"); err != nil {
		return models.Merchant{}, err
	}
	if m.Website, err = optionalString(raw, path, "website"); err != nil {
		return models.Merchant{}, err
	}
	return m, nil
}

func parseThirdParty(raw map[string]any, path string) (models.ThirdParty, error) {
	var tp models.ThirdParty

	relation, err := requiredString(raw, path, "first_party_relation")
	if err != nil {
		return models.ThirdParty{}, err
	}
	rel, ok := models.ParseFirstPartyRelation(relation)
	if !ok {
		return models.ThirdParty{}, validation.NotAllowed(
			validation.Path(path, "first_party_relation"), relation, relationNames())
	}
	tp.FirstPartyRelation = rel

	v, present := raw["make_primary"]
	if !present {
		return models.ThirdParty{}, validation.Missing(validation.Path(path, "make_primary"))
	}
	b, ok := v.(bool)
	if !ok {
		return models.ThirdParty{}, validation.WrongType(validation.Path(path, "make_primary"), "a boolean")
	}
	tp.MakePrimary = b

	field := validation.Path(path, "merchant")
	v, present = raw["merchant"]
	if !present {
		return models.ThirdParty{}, validation.Missing(field)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return models.ThirdParty{}, validation.WrongType(field, "an object")
	}
	if tp.Merchant, err = parseMerchant(obj, field); err != nil {
		return models.ThirdParty{}, err
	}

	return tp, nil
}

func parseLineItem(raw map[string]any, path string) (models.LineItem, error) {
	var item models.LineItem
	var err error

	if item.Description, err = requiredString(raw, path, "description"); err != nil {
		return models.LineItem{}, err
	}
	if item.Total, err = requiredNumber(raw, path, "total"); err != nil {
		return models.LineItem{}, err
	}
	if item.Quantity, err = optionalNumber(raw, path, "quantity"); err != nil {
		return models.LineItem{}, err
	}
	if item.UnitCost, err = optionalNumber(raw, path, "unit_cost"); err != nil {
		return models.LineItem{}, err
	}
	if item.Unit, err = optionalString(raw, path, "unit"); err != nil {
		return models.LineItem{}, err
	}
	if item.Tax, err = optionalNumber(raw, path, "tax"); err != nil {
		return models.LineItem{}, err
	}
	if item.Metadata, err = optionalMetadata(raw, path, "metadata"); err != nil {
		return models.LineItem{}, err
	}
	if item.ProductImage, err = optionalString(raw, path, "product_image"); err != nil {
		return models.LineItem{}, err
	}
	if item.Group, err = optionalString(raw, path, "group"); err != nil {
		return models.LineItem{}, err
	}
	return item, nil
}

func parseAction(raw map[string]any, path string) (models.Action, error) {
	var a models.Action
	var err error

	if a.Description, err = requiredString(raw, path, "description"); err != nil {
		return models.Action{}, err
	}
	if a.URL, err = requiredString(raw, path, "url"); err != nil {
		return models.Action{}, err
	}
	if a.Icon, err = optionalString(raw, path, "icon"); err != nil {
		return models.Action{}, err
	}
	return a, nil
}

func optionalMetadata(raw map[string]any, path, name string) (models.Optional[models.Metadata], error) {
	field := validation.Path(path, name)
	v, present := raw[name]
	if !present {
		return models.None[models.Metadata](), nil
	}
	entries, ok := v.([]any)
	if !ok {
		return models.None[models.Metadata](), validation.WrongType(field, "an array")
	}
	if len(entries) != len(models.Metadata{}) {
		return models.None[models.Metadata](), validation.Arity(field, len(models.Metadata{}), len(entries))
	}

	var md models.Metadata
	for i, e := range entries {
		entryField := validation.Index(field, i)
		obj, ok := e.(map[string]any)
		if !ok {
			return models.None[models.Metadata](), validation.WrongType(entryField, "an object")
		}
		key, err := requiredString(obj, entryField, "key")
		if err != nil {
			return models.None[models.Metadata](), err
		}
		value, err := requiredString(obj, entryField, "value")
		if err != nil {
			return models.None[models.Metadata](), err
		}
		md[i] = models.MetadataEntry{Key: key, Value: value}
	}
	return models.Some(md), nil
}

func requiredString(raw map[string]any, path, name string) (string, error) {
	v, present := raw[name]
	if !present {
		return "", validation.Missing(validation.Path(path, name))
	}
	s, ok := v.(string)
	if !ok {
		return "", validation.WrongType(validation.Path(path, name), "a string")
	}
	return s, nil
}

func optionalString(raw map[string]any, path, name string) (models.Optional[string], error) {
	v, present := raw[name]
	if !present {
		return models.None[string](), nil
	}
	s, ok := v.(string)
	if !ok {
		return models.None[string](), validation.WrongType(validation.Path(path, name), "a string")
	}
	return models.Some(s), nil
}

func requiredArray(raw map[string]any, path, name string) ([]any, error) {
	v, present := raw[name]
	if !present {
		return nil, validation.Missing(validation.Path(path, name))
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, validation.WrongType(validation.Path(path, name), "an array")
	}
	return arr, nil
}

func requiredNumber(raw map[string]any, path, name string) (float64, error) {
	v, present := raw[name]
	if !present {
		return 0, validation.Missing(validation.Path(path, name))
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, validation.WrongType(validation.Path(path, name), "a number")
	}
	return f, nil
}

func optionalNumber(raw map[string]any, path, name string) (models.Optional[float64], error) {
	v, present := raw[name]
	if !present {
		return models.None[float64](), nil
	}
	f, ok := toFloat(v)
	if !ok {
		return models.None[float64](), validation.WrongType(validation.Path(path, name), "a number")
	}
	return models.Some(f), nil
}

func requiredEpochMillis(raw map[string]any, path, name string) (int64, error) {
	v, present := raw[name]
	if !present {
		return 0, validation.Missing(validation.Path(path, name))
	}
	n, ok := toInt64(v)
	if !ok {
		return 0, validation.WrongType(validation.Path(path, name), "an integer count of epoch milliseconds")
	}
	return n, nil
}

// maxSafeInteger bounds date_time. Every integer within it is exact as a
// float64, so JSON and YAML inputs agree with the published schema.
const maxSafeInteger = 1<<53 - 1

// exactPrec is wide enough to keep a fractional part of a decimal that a
// float64 would round away.
const exactPrec = 256

func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func toInt64(v any) (int64, bool) {
	var n int64
	switch x := v.(type) {
	case int:
		n = int64(x)
	case int8:
		n = int64(x)
	case int16:
		n = int64(x)
	case int32:
		n = int64(x)
	case int64:
		n = x
	case uint8:
		n = int64(x)
	case uint16:
		n = int64(x)
	case uint32:
		n = int64(x)
	case uint:
		if uint64(x) > maxSafeInteger {
			return 0, false
		}
		n = int64(x)
	case uint64:
		if x > maxSafeInteger {
			return 0, false
		}
		n = int64(x)
	case json.Number:
		f, _, err := big.ParseFloat(string(x), 10, exactPrec, big.ToNearestEven)
		if err != nil || !f.IsInt() {
			return 0, false
		}
		i, acc := f.Int64()
		if acc != big.Exact {
			return 0, false
		}
		n = i
	default:
		f, ok := toFloat(v)
		if !ok || f != math.Trunc(f) || math.Abs(f) > maxSafeInteger {
			return 0, false
		}
		n = int64(f)
	}

	if n > maxSafeInteger || n < -maxSafeInteger {
		return 0, false
	}
	return n, true
}

func currencyNames() []string {
	all := models.Currencies()
	names := make([]string, len(all))
	for i, c := range all {
		names[i] = string(c)
	}
	return names
}

func relationNames() []string {
	all := models.FirstPartyRelations()
	names := make([]string, len(all))
	for i, r := range all {
		names[i] = string(r)
	}
	return names
}
