package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/insightai/insight/internal/daemon"
	"github.com/insightai/insight/internal/domain"
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of results to show")
	rootCmd.AddCommand(historyCmd)
}

var historyLimit int

var historyCmd = &cobra.Command{
	Use:     "history",
	Aliases: []string{"ls"},
	Short:   "List recent research results",
	RunE:    runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	if d.DB == nil {
		return domain.ErrHistoryDisabled
	}

	results, err := d.DB.RecentResults(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Println("No research yet. Run 'insight ask <question>' to get started.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tMETHOD\tVERIFIED\tTASK\tQUERY")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%v\t%s\t%s\n",
			r.Timestamp.Format("2006-01-02 15:04"),
			r.Method,
			r.Verified,
			r.TaskID,
			truncate(r.Query, 60),
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	counts, err := d.DB.CountResults(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("\nTotal: %s\n", formatCounts(counts))
	return nil
}

// formatCounts renders per-method totals in a fixed order.
func formatCounts(counts map[domain.Mode]int) string {
	parts := make([]string, 0, 3)
	for _, m := range []domain.Mode{domain.ModeRouter, domain.ModeWeb3, domain.ModeDemo} {
		parts = append(parts, fmt.Sprintf("%s %d", m, counts[m]))
	}
	return strings.Join(parts, ", ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
