package codec

import (
	"encoding/json"

	"receipt-schema-api/internal/models"
)

// Serialize is the inverse of Parse: absent optionals are omitted and
// sequences are always emitted, even when empty.
func Serialize(r models.Receipt) map[string]any {
	out := map[string]any{
		"id":          r.ID,
		"currency":    string(r.Currency),
		"amount":      r.Amount,
		"subtotal":    r.Subtotal,
		"date_time":   r.DateTime,
		"merchant_id": r.MerchantID,
	}
	putString(out, "mcc", r.MCC)
	if tp, ok := r.ThirdParty.Get(); ok {
		out["third_party"] = serializeThirdParty(tp)
	}

	items := make([]any, 0, len(r.LineItems))
	for _, item := range r.LineItems {
		items = append(items, serializeLineItem(item))
	}
	out["line_items"] = items

	actions := make([]any, 0, len(r.Actions))
	for _, a := range r.Actions {
		actions = append(actions, serializeAction(a))
	}
	out["actions"] = actions

	return out
}

// Marshal encodes r in its JSON wire form.
func Marshal(r models.Receipt) ([]byte, error) {
	return json.Marshal(Serialize(r))
}

// MarshalIndent is like Marshal with indentation.
func MarshalIndent(r models.Receipt, prefix, indent string) ([]byte, error) {
	return json.MarshalIndent(Serialize(r), prefix, indent)
}

func serializeMerchant(m models.Merchant) map[string]any {
	out := map[string]any{
		"id":   m.ID,
		"name": m.Name,
	}
	putString(out, "brand_color", m.BrandColor)
	putString(out, "logo", m.Logo)
	putString(out, "website", m.Website)
	return out
}

func serializeThirdParty(tp models.ThirdParty) map[string]any {
	return map[string]any{
		"first_party_relation": string(tp.FirstPartyRelation),
		"make_primary":         tp.MakePrimary,
		"merchant":             serializeMerchant(tp.Merchant),
	}
}

func serializeLineItem(item models.LineItem) map[string]any {
	out := map[string]any{
		"description": item.Description,
		"total":       item.Total,
	}
	putNumber(out, "quantity", item.Quantity)
	putNumber(out, "unit_cost", item.UnitCost)
	putString(out, "unit", item.Unit)
	putNumber(out, "tax", item.Tax)
	if md, ok := item.Metadata.Get(); ok {
		entries := make([]any, 0, len(md))
		for _, e := range md {
			entries = append(entries, map[string]any{"key": e.Key, "value": e.Value})
		}
		out["metadata"] = entries
	}
	putString(out, "product_image", item.ProductImage)
	putString(out, "group", item.Group)
	return out
}

func serializeAction(a models.Action) map[string]any {
	out := map[string]any{
		"description": a.Description,
		"url":         a.URL,
	}
	putString(out, "icon", a.Icon)
	return out
}

func putString(out map[string]any, key string, v models.Optional[string]) {
	if s, ok := v.Get(); ok {
		out[key] = s
	}
}

func putNumber(out map[string]any, key string, v models.Optional[float64]) {
	if f, ok := v.Get(); ok {
		out[key] = f
	}
}
