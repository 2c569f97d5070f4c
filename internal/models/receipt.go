package models

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Currency is the closed set of currencies a receipt may be issued in.
type Currency string

const (
	CurrencyUSD Currency = "usd"
	CurrencyEUR Currency = "eur"
	CurrencyJPY Currency = "jpy"
	CurrencyGBP Currency = "gbp"
	CurrencyAUD Currency = "aud"
	CurrencyCAD Currency = "cad"
	CurrencyCHF Currency = "chf"
	CurrencyCNH Currency = "cnh"
)

// Currencies returns every accepted currency in declaration order.
func Currencies() []Currency {
	return []Currency{
		CurrencyUSD, CurrencyEUR, CurrencyJPY, CurrencyGBP,
		CurrencyAUD, CurrencyCAD, CurrencyCHF, CurrencyCNH,
	}
}

// Valid reports whether c is one of the accepted currencies.
func (c Currency) Valid() bool {
	switch c {
	case CurrencyUSD, CurrencyEUR, CurrencyJPY, CurrencyGBP,
		CurrencyAUD, CurrencyCAD, CurrencyCHF, CurrencyCNH:
		return true
	}
	return false
}

// ParseCurrency converts a wire value to a Currency. Matching is exact:
// "USD" is not accepted.
func ParseCurrency(s string) (Currency, bool) {
	c := Currency(s)
	return c, c.Valid()
}

// FirstPartyRelation describes how a third party relates to the transaction.
type FirstPartyRelation string

const (
	RelationBNPL             FirstPartyRelation = "bnpl"
	RelationDeliveryService  FirstPartyRelation = "delivery_service"
	RelationMarketplace      FirstPartyRelation = "marketplace"
	RelationPaymentProcessor FirstPartyRelation = "payment_processor"
	RelationPlatform         FirstPartyRelation = "platform"
	RelationPointOfSale      FirstPartyRelation = "point_of_sale"
)

// FirstPartyRelations returns every accepted relation in declaration order.
func FirstPartyRelations() []FirstPartyRelation {
	return []FirstPartyRelation{
		RelationBNPL, RelationDeliveryService, RelationMarketplace,
		RelationPaymentProcessor, RelationPlatform, RelationPointOfSale,
	}
}

// Valid reports whether r is one of the accepted relations.
func (r FirstPartyRelation) Valid() bool {
	switch r {
	case RelationBNPL, RelationDeliveryService, RelationMarketplace,
		RelationPaymentProcessor, RelationPlatform, RelationPointOfSale:
		return true
	}
	return false
}

// ParseFirstPartyRelation converts a wire value to a FirstPartyRelation.
func ParseFirstPartyRelation(s string) (FirstPartyRelation, bool) {
	r := FirstPartyRelation(s)
	return r, r.Valid()
}

// Optional holds a value that may be absent. The zero Optional is absent,
// which is distinct from a present zero value such as "" or 0.
type Optional[T any] struct {
	value T
	set   bool
}

// Some returns a present Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, set: true}
}

// None returns an absent Optional.
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Get returns the value and whether it is present.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.set
}

// IsSet reports whether the value is present.
func (o Optional[T]) IsSet() bool {
	return o.set
}

// OrElse returns the value if present, otherwise fallback.
func (o Optional[T]) OrElse(fallback T) T {
	if o.set {
		return o.value
	}
	return fallback
}

// IsZero lets encoding/json drop absent values from fields tagged omitzero.
func (o Optional[T]) IsZero() bool {
	return !o.set
}

// ErrNullOptional is returned when JSON null meets an Optional. Absence is
// spelled by omitting the field, never by null.
var ErrNullOptional = errors.New("null is not a valid value; omit the field instead")

// MarshalJSON fails for an absent value; fields holding an Optional must be
// tagged omitzero so absence is encoded by omission.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.set {
		return nil, ErrNullOptional
	}
	return json.Marshal(o.value)
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return ErrNullOptional
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}

// Merchant is a business identified by a stable id.
type Merchant struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	BrandColor Optional[string] `json:"brand_color,omitzero"`
	Logo       Optional[string] `json:"logo,omitzero"`
	Website    Optional[string] `json:"website,omitzero"`
}

// ThirdParty is a party other than the primary merchant that took part in
// the transaction. The merchant record is owned, not referenced.
type ThirdParty struct {
	FirstPartyRelation FirstPartyRelation `json:"first_party_relation"`
	MakePrimary        bool               `json:"make_primary"`
	Merchant           Merchant           `json:"merchant"`
}

// MetadataEntry is a single key/value annotation on a line item.
type MetadataEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Metadata is a sequence of exactly one entry. It travels as a one-element
// array on the wire.
type Metadata [1]MetadataEntry

// NewMetadata builds a Metadata tuple.
func NewMetadata(key, value string) Metadata {
	return Metadata{{Key: key, Value: value}}
}

// Entry returns the single entry.
func (m Metadata) Entry() MetadataEntry {
	return m[0]
}

// LineItem is one itemized part of a receipt. Currency comes from the receipt.
type LineItem struct {
	Description  string             `json:"description"`
	Total        float64            `json:"total"`
	Quantity     Optional[float64]  `json:"quantity,omitzero"`
	UnitCost     Optional[float64]  `json:"unit_cost,omitzero"`
	Unit         Optional[string]   `json:"unit,omitzero"`
	Tax          Optional[float64]  `json:"tax,omitzero"`
	Metadata     Optional[Metadata] `json:"metadata,omitzero"`
	ProductImage Optional[string]   `json:"product_image,omitzero"`
	Group        Optional[string]   `json:"group,omitzero"`
}

// Action is a user-facing link attached to a receipt.
type Action struct {
	Description string           `json:"description"`
	URL         string           `json:"url"`
	Icon        Optional[string] `json:"icon,omitzero"`
}

// Receipt is a transaction's proof of purchase. DateTime is milliseconds
// since the Unix epoch. MerchantID refers to a merchant held elsewhere.
//
// LineItems and Actions are never nil on a parsed Receipt. A nil slice
// serializes as an empty array and parses back as an empty, non-nil slice,
// so build receipts with empty slices when they must compare equal after a
// round trip.
type Receipt struct {
	ID         string               `json:"id"`
	Currency   Currency             `json:"currency"`
	Amount     float64              `json:"amount"`
	Subtotal   float64              `json:"subtotal"`
	DateTime   int64                `json:"date_time"`
	MerchantID string               `json:"merchant_id"`
	MCC        Optional[string]     `json:"mcc,omitzero"`
	ThirdParty Optional[ThirdParty] `json:"third_party,omitzero"`
	LineItems  []LineItem           `json:"line_items"`
	Actions    []Action             `json:"actions"`
}

// PrimaryMerchantID returns the id of the merchant that should be shown as
// the seller: the third party's when it asks to be primary, otherwise the
// receipt's own merchant_id.
func (r Receipt) PrimaryMerchantID() string {
	if tp, ok := r.ThirdParty.Get(); ok && tp.MakePrimary {
		return tp.Merchant.ID
	}
	return r.MerchantID
}
