package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/amitsahu0611/chatbot-sub001/internal/leads"
	"github.com/amitsahu0611/chatbot-sub001/internal/session"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Deactivate expired visitor sessions",
	RunE:  runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	mgr := session.NewManager(store, leads.NewEngine(store, nil), session.Config{
		Duration:      cfg.SessionDuration(),
		MaxDuration:   cfg.MaxSessionDuration(),
		SlidingExpiry: cfg.Session.SlidingExpiry,
	}, nil)

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.StorageTimeout())
	defer cancel()

	n, err := mgr.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("sweeping sessions: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deactivated %d expired sessions\n", n)
	return nil
}
