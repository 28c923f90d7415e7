package commands

import (
	"errors"
	"fmt"
	"strings"

	"visabulletin/internal/api"
	"visabulletin/internal/store"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(subscribeCmd)
	rootCmd.AddCommand(unsubscribeCmd)
	rootCmd.AddCommand(subscribersCmd)
}

var subscribeCmd = &cobra.Command{
	Use:   "subscribe <email> <category>...",
	Short: "Subscribes an address to visa categories, or updates its categories.",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		email, ok := api.NormalizeEmail(args[0])
		if !ok {
			return fmt.Errorf("invalid email address %q", args[0])
		}
		categories, err := api.ValidateCategories(args[1:])
		var categoryErr *api.CategoryError
		if errors.As(err, &categoryErr) {
			for unknown, suggestion := range categoryErr.Suggestions {
				fmt.Printf("did you mean %s instead of %s?\n", suggestion, unknown)
			}
			return err
		}

		s, db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		result, err := s.UpsertSubscription(cmd.Context(), store.SubscribeRequest{
			Email:      email,
			Categories: categories,
			UserAgent:  "visabulletin-cli",
		})
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s [%s]\n", result.Status, email, strings.Join(result.Subscription.Categories, ", "))
		if len(result.PreviousCategories) > 0 {
			fmt.Printf("previously: [%s]\n", strings.Join(result.PreviousCategories, ", "))
		}
		return nil
	},
}

var unsubscribeCmd = &cobra.Command{
	Use:   "unsubscribe <token>",
	Short: "Deactivates the subscription owning an unsubscribe token.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		sub, err := s.DeactivateSubscription(cmd.Context(), args[0])
		if errors.Is(err, store.ErrNotFound) {
			return errors.New("invalid or already-used unsubscribe token")
		}
		if err != nil {
			return err
		}
		fmt.Printf("%s will no longer receive visa bulletin updates.\n", sub.Email)
		return nil
	},
}

var subscribersCmd = &cobra.Command{
	Use:   "subscribers",
	Short: "Lists active subscriptions.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		subs, err := s.ActiveSubscriptions(cmd.Context())
		if err != nil {
			return err
		}
		if len(subs) == 0 {
			fmt.Println("No active subscriptions.")
			return nil
		}
		printSubscriptions(subs)
		return nil
	},
}
