// Command tradercli is a small operator CLI for the admin HTTP surface:
// it fetches the read-only §6 views and renders them as tables. Table
// rendering is grounded on AlejandroRuiz99-polybot's console notifier
// (internal/adapters/notify/console.go), which uses the same
// olekukonko/tablewriter package for its full-mode reports.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/go-resty/resty/v2"
	"github.com/olekukonko/tablewriter"
)

func main() {
	addr := flag.String("addr", "http://localhost:8080", "tradercore admin API base URL")
	limit := flag.Int("limit", 20, "row limit for list views")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: tradercli [-addr URL] [-limit N] <leaderboard|positions|trades|cancelled|history>")
		os.Exit(1)
	}

	client := resty.New().SetBaseURL(*addr)

	switch flag.Arg(0) {
	case "leaderboard":
		printLeaderboard(client)
	case "positions":
		printPositions(client)
	case "trades":
		printTrades(client, *limit)
	case "cancelled":
		printCancelled(client, *limit)
	case "history":
		printHistory(client, *limit)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", flag.Arg(0))
		os.Exit(1)
	}
}

func printLeaderboard(client *resty.Client) {
	var out struct {
		Success     bool `json:"success"`
		Leaderboard []struct {
			FirmName          string  `json:"FirmName"`
			Balance           float64 `json:"Balance"`
			InitialBalance    float64 `json:"InitialBalance"`
			ConsecutiveWins   int     `json:"ConsecutiveWins"`
			ConsecutiveLosses int     `json:"ConsecutiveLosses"`
		} `json:"leaderboard"`
	}
	if !fetch(client, "/api/leaderboard", &out) {
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Firm", "Balance", "Initial", "Ratio", "W streak", "L streak")
	for _, row := range out.Leaderboard {
		ratio := 0.0
		if row.InitialBalance > 0 {
			ratio = row.Balance / row.InitialBalance
		}
		table.Append(
			row.FirmName,
			fmt.Sprintf("$%.2f", row.Balance),
			fmt.Sprintf("$%.2f", row.InitialBalance),
			fmt.Sprintf("%.1f%%", ratio*100),
			fmt.Sprintf("%d", row.ConsecutiveWins),
			fmt.Sprintf("%d", row.ConsecutiveLosses),
		)
	}
	table.Render()
}

func printPositions(client *resty.Client) {
	var out struct {
		Success   bool `json:"success"`
		Count     int  `json:"count"`
		Positions []struct {
			Firm       string  `json:"Firm"`
			MarketID   string  `json:"MarketID"`
			Side       string  `json:"Side"`
			Size       float64 `json:"Size"`
			LimitPrice float64 `json:"LimitPrice"`
			Status     string  `json:"Status"`
		} `json:"positions"`
	}
	if !fetch(client, "/api/active-positions", &out) {
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Firm", "Market", "Side", "Size", "Price", "Status")
	for _, p := range out.Positions {
		table.Append(p.Firm, p.MarketID, p.Side, fmt.Sprintf("$%.2f", p.Size), fmt.Sprintf("%.3f", p.LimitPrice), p.Status)
	}
	table.Render()
	fmt.Printf("%d open positions\n", out.Count)
}

func printTrades(client *resty.Client, limit int) {
	var out struct {
		Success bool `json:"success"`
		Count   int  `json:"count"`
		Trades  []struct {
			Firm       string  `json:"Firm"`
			MarketID   string  `json:"MarketID"`
			Size       float64 `json:"Size"`
			LimitPrice float64 `json:"LimitPrice"`
			Status     string  `json:"Status"`
			ProfitLoss float64 `json:"ProfitLoss"`
		} `json:"trades"`
	}
	if !fetch(client, fmt.Sprintf("/api/recent-trades?limit=%d", limit), &out) {
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Firm", "Market", "Size", "Price", "Status", "P&L")
	for _, t := range out.Trades {
		table.Append(t.Firm, t.MarketID, fmt.Sprintf("$%.2f", t.Size), fmt.Sprintf("%.3f", t.LimitPrice), t.Status, fmt.Sprintf("$%.2f", t.ProfitLoss))
	}
	table.Render()
}

func printCancelled(client *resty.Client, limit int) {
	var out struct {
		Success         bool `json:"success"`
		Count           int  `json:"count"`
		CancelledOrders []struct {
			Firm         string `json:"Firm"`
			MarketID     string `json:"MarketID"`
			CancelReason string `json:"CancelReason"`
		} `json:"cancelled_orders"`
	}
	if !fetch(client, fmt.Sprintf("/api/cancelled-orders?limit=%d", limit), &out) {
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Firm", "Market", "Reason")
	for _, c := range out.CancelledOrders {
		table.Append(c.Firm, c.MarketID, c.CancelReason)
	}
	table.Render()
}

func printHistory(client *resty.Client, limit int) {
	var out struct {
		Success   bool `json:"success"`
		Count     int  `json:"count"`
		Decisions []struct {
			Firm        string  `json:"Firm"`
			MarketID    string  `json:"MarketID"`
			Probability float64 `json:"Probability"`
			Confidence  float64 `json:"Confidence"`
			SkipReason  string  `json:"SkipReason"`
		} `json:"decisions"`
	}
	if !fetch(client, fmt.Sprintf("/api/ai-decisions-history?limit=%d", limit), &out) {
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Firm", "Market", "P(yes)", "Confidence", "Skip reason")
	for _, d := range out.Decisions {
		table.Append(d.Firm, d.MarketID, fmt.Sprintf("%.2f", d.Probability), fmt.Sprintf("%.1f", d.Confidence), d.SkipReason)
	}
	table.Render()
}

func fetch(client *resty.Client, path string, out any) bool {
	resp, err := client.R().SetResult(out).Get(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "request failed: %v\n", err)
		return false
	}
	if resp.IsError() {
		fmt.Fprintf(os.Stderr, "request failed: status %d\n", resp.StatusCode())
		return false
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(resp.Body(), &probe); err == nil {
		if raw, ok := probe["success"]; ok {
			var ok2 bool
			_ = json.Unmarshal(raw, &ok2)
			if !ok2 {
				fmt.Fprintln(os.Stderr, "server reported failure")
				return false
			}
		}
	}
	return true
}
