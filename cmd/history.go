package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"stampede/internal/report"
	"stampede/internal/storage"
	"stampede/internal/tui/styles"
)

var (
	historyLimit  int
	historyOutput string
)

var historyCmd = &cobra.Command{
	Use:   "history [id]",
	Short: "List recorded runs, or show one run by id",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer store.Close()

		items, err := loadHistory(store, args, historyLimit)
		if err != nil {
			return err
		}
		return printHistory(os.Stdout, items, historyOutput)
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to show, 0 for all")
	historyCmd.Flags().StringVarP(&historyOutput, "output", "o", "table", "Output format (table, json, yaml)")
}

// loadHistory returns the run named by args[0], or the newest limit runs
// when no id is given.
func loadHistory(store *storage.Store, args []string, limit int) ([]storage.HistoryItem, error) {
	if len(args) == 1 {
		item, err := store.Get(args[0])
		if err != nil {
			return nil, err
		}
		return []storage.HistoryItem{*item}, nil
	}

	items, err := store.List(limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return items, nil
}

func printHistory(w io.Writer, items []storage.HistoryItem, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(items)
	case "table", "":
		if len(items) == 0 {
			fmt.Fprintln(w, "No runs recorded yet.")
			return nil
		}
		fmt.Fprintln(w, historyTable(items))
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}

func historyTable(items []storage.HistoryItem) string {
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		s := it.Summary
		rows = append(rows, []string{
			s.Token(),
			it.Timestamp.Format(report.TimestampLayout),
			strconv.Itoa(it.Config.Count),
			string(it.Config.Mode),
			it.Config.URL,
			fmt.Sprintf("%.2f", s.AvgMs),
			fmt.Sprintf("%.2f", s.MaxMs),
			fmt.Sprintf("%g%%", s.SuccessPct),
		})
	}

	header := lipgloss.NewStyle().Foreground(styles.ColorPrimary).Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(styles.ColorBorder)).
		Headers("", "WHEN", "CALLS", "MODE", "URL", "AVG MS", "MAX MS", "SUCCESS").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row < 0 {
				return header
			}
			return cell
		})

	return t.String()
}
