package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/suPer8Hu/pantry-assistant/internal/models"
)

// InventorySource supplies the items the prompt is built from.
type InventorySource interface {
	Items() []models.InventoryItem
}

// PantryResponder answers chat messages locally through a Provider,
// grounding the prompt in the user's current inventory.
type PantryResponder struct {
	provider  Provider
	inventory InventorySource
}

func NewPantryResponder(p Provider, inv InventorySource) *PantryResponder {
	return &PantryResponder{provider: p, inventory: inv}
}

func (r *PantryResponder) Reply(ctx context.Context, userID, message string) (string, error) {
	var items []models.InventoryItem
	if r.inventory != nil {
		items = r.inventory.Items()
	}
	return r.provider.Chat(ctx, []Message{
		{Role: "system", Content: "You are a helpful cooking assistant."},
		{Role: "user", Content: BuildPrompt(items, message)},
	})
}

// BuildPrompt lays out the inventory followed by the user's question.
func BuildPrompt(items []models.InventoryItem, question string) string {
	lines := make([]string, 0, len(items))
	for _, it := range items {
		exp := "N/A"
		if it.ExpirationDate != nil {
			exp = it.ExpirationDate.String()
		}
		lines = append(lines, fmt.Sprintf("%s (qty: %d, expires: %s)", it.Name, it.Quantity, exp))
	}
	inventory := "No items in inventory"
	if len(lines) > 0 {
		inventory = strings.Join(lines, "\n")
	}

	var b strings.Builder
	b.WriteString("Current inventory:\n")
	b.WriteString(inventory)
	b.WriteString("\n\nUser question: ")
	b.WriteString(question)
	b.WriteString("\n\nProvide helpful recipe suggestions based on their available ingredients. Prioritize items that are expiring soon.")
	return b.String()
}
