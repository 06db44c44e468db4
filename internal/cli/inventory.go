package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/pantry-assistant/internal/common"
	"github.com/suPer8Hu/pantry-assistant/internal/inventory"
	"github.com/suPer8Hu/pantry-assistant/internal/models"
)

func newInventoryCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "inventory",
		Aliases: []string{"inv"},
		Short:   "List and edit pantry items",
	}
	cmd.AddCommand(newInventoryListCmd(opts), newInventoryAddCmd(opts), newInventoryRemoveCmd(opts))
	return cmd
}

func newInventoryListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pantry items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts, true)
			if err != nil {
				return err
			}
			defer s.close()

			if _, ok := s.rt.Identity(); !ok {
				return describe(common.ErrNotAuthenticated)
			}
			printItems(s, s.rt.Inventory())
			s.printAlerts()
			return nil
		},
	}
}

func newInventoryAddCmd(opts *rootOptions) *cobra.Command {
	var in inventory.AddInput
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts, true)
			if err != nil {
				return err
			}
			defer s.close()

			res, err := s.rt.Add(cmd.Context(), in)
			switch res.Status {
			case inventory.AddOK:
				fmt.Fprintf(s.out, "Added %s\n", in.Name)
				printItems(s, s.rt.Inventory())
				s.printAlerts()
				return nil
			case inventory.AddInvalid:
				return fmt.Errorf("invalid item: %w", err)
			default:
				return describe(err)
			}
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "item name")
	cmd.Flags().StringVar(&in.Quantity, "qty", "", "whole quantity, 0 or more")
	cmd.Flags().StringVar(&in.Expiration, "exp", "", "expiration date as YYYY-MM-DD (optional)")
	return cmd
}

func newInventoryRemoveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <item-id>",
		Aliases: []string{"remove"},
		Short:   "Remove an item by id",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts, true)
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.rt.Remove(cmd.Context(), args[0]); err != nil {
				return describe(err)
			}
			fmt.Fprintf(s.out, "Removed %s\n", args[0])
			return nil
		},
	}
}

func printItems(s *session, items []models.InventoryItem) {
	if len(items) == 0 {
		fmt.Fprintln(s.out, "No items yet, add one with 'pantry inventory add'")
		return
	}
	fmt.Fprintf(s.out, "%-36s %-24s %5s  %s\n", "ID", "NAME", "QTY", "EXPIRES")
	for _, it := range items {
		exp := "-"
		if it.ExpirationDate != nil {
			exp = it.ExpirationDate.String()
		}
		fmt.Fprintf(s.out, "%-36s %-24s %5s  %s\n", it.ID, it.Name, strconv.Itoa(it.Quantity), exp)
	}
}
