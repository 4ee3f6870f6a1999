package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/insightai/insight/internal/daemon"
	"github.com/insightai/insight/internal/domain"
	"github.com/insightai/insight/internal/research"
)

func init() {
	askCmd.Flags().StringVar(&askURL, "url", "", "URL to analyze alongside the question")
	askCmd.Flags().StringVar(&askMode, "mode", "", "Execution mode: auto, router, web3 or demo")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "Print the raw JSON result")
	rootCmd.AddCommand(askCmd)
}

var (
	askURL  string
	askMode string
	askJSON bool
)

var askCmd = &cobra.Command{
	Use:   "ask QUESTION",
	Short: "Answer a research question without starting the server",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	// Empty keeps the configured default mode.
	var mode domain.Mode
	if askMode != "" {
		m, err := domain.ParseMode(askMode)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v, using auto\n", err)
			m = domain.ModeAuto
		}
		mode = m
	}

	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	res, err := d.Dispatcher.Dispatch(cmd.Context(), research.Request{
		Query: strings.Join(args, " "),
		URL:   askURL,
		Mode:  mode,
	})
	if err != nil {
		return err
	}

	if askJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printResult(res)
	return nil
}

func printResult(res domain.ResearchResult) {
	fmt.Println(res.Summary)
	fmt.Println()
	for _, b := range res.BulletPoints {
		fmt.Printf("  • %s\n", b)
	}
	fmt.Println()

	status := "verified"
	if !res.Verified {
		status = "demo (unverified)"
	}
	fmt.Printf("Method:   %s (%s)\n", res.Method, status)
	fmt.Printf("Session:  %s  Task: %s\n", res.SessionID, res.TaskID)
	if res.TxHash != "" {
		fmt.Printf("Tx:       %s\n", res.TxHash)
	}
	if res.VerificationURL != "" {
		fmt.Printf("Verify:   %s\n", res.VerificationURL)
	}
	if res.FallbackReason != "" {
		fmt.Printf("Fallback: %s\n", res.FallbackReason)
	}
	fmt.Printf("Sources:  %s\n", strings.Join(res.Sources, ", "))
}
