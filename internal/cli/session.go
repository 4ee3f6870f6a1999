package cli

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/insightai/insight/internal/daemon"
	"github.com/insightai/insight/internal/domain"
)

func init() {
	sessionCmd.Flags().IntVar(&sessionTasks, "tasks", 10, "Number of recent tasks to list")
	sessionCmd.Flags().StringVar(&sessionOwner, "owner", "", `List the sessions created by an address ("me" = the configured signer)`)
	rootCmd.AddCommand(sessionCmd)
}

var (
	sessionTasks int
	sessionOwner string
)

var sessionCmd = &cobra.Command{
	Use:   "session [ID]",
	Short: "Inspect an on-chain session (default: the configured one)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSession,
}

func runSession(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	if d.Ledger == nil {
		return domain.ErrLedgerUnavailable
	}

	if sessionOwner != "" {
		return listOwnedSessions(cmd, d, sessionOwner)
	}

	id := d.Dispatcher.Config().SessionID
	if len(args) == 1 {
		id, err = strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("session id must be an unsigned integer: %w", err)
		}
	}

	ctx := cmd.Context()
	check := d.Ledger.VerifySession(ctx, id)
	if !check.Valid {
		fmt.Printf("Session %d: %s\n", id, check.Error)
		return nil
	}
	fmt.Printf("Session:  %d (%s)\n", id, check.Name)
	if check.Model != nil {
		fmt.Printf("Model:    %d\n", *check.Model)
	}

	nodes, err := d.Ledger.EphemeralNodes(ctx, id)
	if err != nil {
		fmt.Printf("Nodes:    unavailable (%v)\n", err)
	} else {
		fmt.Printf("Nodes:    %d reserved\n", len(nodes))
		for _, n := range nodes {
			fmt.Printf("  %s\n", n)
		}
	}

	if sessionTasks <= 0 {
		return nil
	}
	tasks, err := d.Ledger.TasksBySession(ctx, id)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Println("\nNo tasks queued in this session.")
		return nil
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TASK\tSTATUS\tMINERS\tCREATED\tENDED")
	for i, shown := len(tasks)-1, 0; i >= 0 && shown < sessionTasks; i, shown = i-1, shown+1 {
		t := tasks[i]
		ended := "-"
		if t.IsTerminal() {
			ended = t.EndedAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%d\t%d\t%d\t%s\t%s\n",
			t.ID,
			t.Status,
			len(t.Miners),
			t.CreatedAt.Format("2006-01-02 15:04"),
			ended,
		)
	}
	return w.Flush()
}

func listOwnedSessions(cmd *cobra.Command, d *daemon.Daemon, owner string) error {
	var addr common.Address
	switch {
	case owner == "me":
		if d.Signer == nil {
			return domain.ErrSignerMissing
		}
		addr = d.Signer.Address
	case common.IsHexAddress(owner):
		addr = common.HexToAddress(owner)
	default:
		return fmt.Errorf("%q is not a hex address", owner)
	}

	sessions, err := d.Ledger.SessionsByOwner(cmd.Context(), addr)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Printf("No sessions owned by %s.\n", addr.Hex())
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tNAME\tACTIVE\tMODEL\tNODES")
	for _, s := range sessions {
		fmt.Fprintf(w, "%d\t%s\t%v\t%d\t%d-%d\n",
			s.ID,
			s.Name,
			s.Active,
			s.ModelIdentifier,
			s.MinNodes,
			s.MaxNodes,
		)
	}
	return w.Flush()
}
