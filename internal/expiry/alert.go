// Package expiry derives which pantry items are about to expire and emits
// one notification per inventory change when any are.
package expiry

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/suPer8Hu/pantry-assistant/internal/models"
)

const DefaultWindowDays = 3

// AlertSet is the subset of items inside the alert window. It is never stored.
type AlertSet struct {
	Items []models.InventoryItem
	Names []string
}

func (s AlertSet) Empty() bool { return len(s.Items) == 0 }

// Compute returns the items with an expiration date between today and
// today+windowDays inclusive. Items without a date never qualify. Input
// order is preserved.
func Compute(items []models.InventoryItem, today models.Date, windowDays int) AlertSet {
	var set AlertSet
	for _, it := range items {
		if it.ExpirationDate == nil {
			continue
		}
		days := today.DaysUntil(*it.ExpirationDate)
		if days < 0 || days > windowDays {
			continue
		}
		set.Items = append(set.Items, it)
		set.Names = append(set.Names, it.Name)
	}
	set.Items = models.CloneItems(set.Items)
	return set
}

// Alert is the one-shot notification payload.
type Alert struct {
	UserID string                 `json:"user_id"`
	Names  []string               `json:"names"`
	Items  []models.InventoryItem `json:"items"`
	At     time.Time              `json:"at"`
}

func (a Alert) Message() string {
	return "Heads up! These items are expiring soon: " + strings.Join(a.Names, ", ")
}

// fingerprint identifies a mirror snapshot regardless of item order.
func fingerprint(items []models.InventoryItem) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		exp := ""
		if it.ExpirationDate != nil {
			exp = it.ExpirationDate.String()
		}
		parts = append(parts, it.ID+"\x1f"+it.Name+"\x1f"+strconv.Itoa(it.Quantity)+"\x1f"+exp)
	}
	sort.Strings(parts)
	return strings.Join(parts, "\x1e")
}
