package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tickerbrief/internal/storage"
)

// --- add ---

var addCmd = &cobra.Command{
	Use:   "add SYMBOL",
	Short: "Add a ticker to the watchlist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/tickers", map[string]string{"symbol": args[0]})
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Added %s", result["symbol"])
		return nil
	},
}

// --- remove ---

var removeCmd = &cobra.Command{
	Use:   "remove SYMBOL",
	Short: "Remove a ticker from the watchlist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		symbol := strings.ToUpper(strings.TrimSpace(args[0]))
		resp, err := client.delete(cmd.Context(), "/tickers/"+symbol)
		if err != nil {
			return err
		}
		if err := checkStatus(resp); err != nil {
			return err
		}

		printSuccess("Removed %s", symbol)
		return nil
	},
}

// --- list ---

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List watched tickers",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/tickers")
		if err != nil {
			return err
		}

		var result struct {
			Tickers []string `json:"tickers"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if len(result.Tickers) == 0 {
			fmt.Println("no tickers on the watchlist")
			return nil
		}
		for _, sym := range result.Tickers {
			fmt.Println(sym)
		}
		return nil
	},
}

// --- refresh ---

var refreshCmd = &cobra.Command{
	Use:   "refresh [SYMBOL]",
	Short: "Queue a summary refresh for one ticker, or --all for the whole watchlist",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		if all == (len(args) == 1) {
			return fmt.Errorf("specify either a SYMBOL or --all")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		if all {
			resp, err := client.post(cmd.Context(), "/refresh", nil)
			if err != nil {
				return err
			}
			if err := checkStatus(resp); err != nil {
				return err
			}
			printSuccess("Queued refresh for all tickers")
			return nil
		}

		symbol := strings.ToUpper(strings.TrimSpace(args[0]))
		resp, err := client.post(cmd.Context(), "/tickers/"+symbol+"/refresh", nil)
		if err != nil {
			return err
		}
		if err := checkStatus(resp); err != nil {
			return err
		}
		printSuccess("Queued refresh for %s", symbol)
		return nil
	},
}

func init() {
	refreshCmd.Flags().Bool("all", false, "refresh every watched ticker")
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status SYMBOL",
	Short: "Show whether a ticker's summary refresh is still in flight",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		symbol := strings.ToUpper(strings.TrimSpace(args[0]))
		resp, err := client.get(cmd.Context(), "/tickers/"+symbol+"/status")
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printStatus(symbol, "%s", result["status"])
		return nil
	},
}

// --- summaries ---

var summariesCmd = &cobra.Command{
	Use:   "summaries SYMBOL",
	Short: "Show recent daily summaries for a ticker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")
		if days < 1 {
			return fmt.Errorf("--days must be at least 1")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		symbol := strings.ToUpper(strings.TrimSpace(args[0]))
		resp, err := client.get(cmd.Context(), fmt.Sprintf("/tickers/%s/summaries?days=%d", symbol, days))
		if err != nil {
			return err
		}

		var result struct {
			Summaries []storage.Summary `json:"summaries"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if len(result.Summaries) == 0 {
			fmt.Printf("no summaries for %s yet\n", symbol)
			return nil
		}

		for i, sum := range result.Summaries {
			if i > 0 {
				fmt.Println()
			}
			printHeading("%s — %s", sum.Ticker, sum.Date)
			fmt.Println(sum.Text)
			if len(sum.Sources) > 0 {
				fmt.Println("\nSources:")
				for _, src := range sum.Sources {
					fmt.Printf("  - %s (%s)\n", src.Title, src.URL)
				}
			}
		}
		return nil
	},
}

func init() {
	summariesCmd.Flags().Int("days", 8, "how many recent days to show")
}
