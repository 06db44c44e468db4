package models

import (
	"encoding/json"
	"strings"
)

// InventoryItem is one pantry entry as held by the backend.
type InventoryItem struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	ExpirationDate *Date  `json:"expiration_date"`
}

// UnmarshalJSON accepts backend rows. An expiration date that is not a
// YYYY-MM-DD string is treated as absent rather than failing the whole list.
func (it *InventoryItem) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID             string          `json:"id"`
		Name           string          `json:"name"`
		Quantity       int             `json:"quantity"`
		ExpirationDate json.RawMessage `json:"expiration_date"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*it = InventoryItem{ID: raw.ID, Name: raw.Name, Quantity: raw.Quantity}

	var s *string
	if len(raw.ExpirationDate) > 0 && json.Unmarshal(raw.ExpirationDate, &s) == nil && s != nil {
		if d, err := ParseDate(strings.TrimSpace(*s)); err == nil {
			it.ExpirationDate = &d
		}
	}
	return nil
}

// CloneItems copies items, including the expiration pointers.
func CloneItems(items []InventoryItem) []InventoryItem {
	if items == nil {
		return nil
	}
	out := make([]InventoryItem, len(items))
	for i, it := range items {
		out[i] = it
		if it.ExpirationDate != nil {
			d := *it.ExpirationDate
			out[i].ExpirationDate = &d
		}
	}
	return out
}
