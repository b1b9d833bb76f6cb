package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/amitsahu0611/chatbot-sub001/internal/ingestion"
	"github.com/amitsahu0611/chatbot-sub001/internal/storage"
	"github.com/amitsahu0611/chatbot-sub001/internal/storage/models"
	"github.com/amitsahu0611/chatbot-sub001/internal/unanswered"
	"github.com/amitsahu0611/chatbot-sub001/pkg/config"
)

var unansweredCmd = &cobra.Command{
	Use:   "unanswered",
	Short: "Review questions the widget could not answer",
}

var unansweredListCmd = &cobra.Command{
	Use:   "list",
	Short: "List unanswered questions for a tenant",
	RunE:  runUnansweredList,
}

var unansweredAnswerCmd = &cobra.Command{
	Use:   "answer <id>",
	Short: "Answer a question, creating a knowledge entry from it",
	Args:  cobra.ExactArgs(1),
	RunE:  runUnansweredAnswer,
}

func init() {
	unansweredCmd.PersistentFlags().Int64("tenant", 0, "tenant id (required)")
	_ = unansweredCmd.MarkPersistentFlagRequired("tenant")

	unansweredListCmd.Flags().String("status", "", "filter by status: pending, answered, ignored")
	unansweredListCmd.Flags().String("priority", "", "filter by priority: low, medium, high")
	unansweredListCmd.Flags().String("sort", string(models.SortLastAsked), "sort by lastAsked, frequency or priority")
	unansweredListCmd.Flags().Int("limit", 20, "maximum rows to show")
	unansweredListCmd.Flags().Bool("json", false, "print JSON instead of a table")

	unansweredAnswerCmd.Flags().String("text", "", "answer text (required)")
	unansweredAnswerCmd.Flags().String("category", "", "category for the new knowledge entry")
	_ = unansweredAnswerCmd.MarkFlagRequired("text")

	unansweredCmd.AddCommand(unansweredListCmd, unansweredAnswerCmd)
	rootCmd.AddCommand(unansweredCmd)
}

func newTracker(cfg *config.Config, store storage.Store, inv CacheInvalidator) *unanswered.Tracker {
	tracker := unanswered.NewTracker(store, ingestion.NewProcessor(store, nil), unanswered.Config{
		ScanWindow:          cfg.Unanswered.ScanWindow,
		SimilarityThreshold: cfg.Unanswered.SimilarityThreshold,
	}, nil)
	if inv != nil {
		tracker.OnKnowledgeChange = func(tenantID int64) {
			invalidate(context.Background(), inv, tenantID)
		}
	}
	return tracker
}

func runUnansweredList(cmd *cobra.Command, args []string) error {
	tenant, _ := cmd.Flags().GetInt64("tenant")
	status, _ := cmd.Flags().GetString("status")
	priority, _ := cmd.Flags().GetString("priority")
	sort, _ := cmd.Flags().GetString("sort")
	limit, _ := cmd.Flags().GetInt("limit")
	asJSON, _ := cmd.Flags().GetBool("json")

	cfg, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	res, err := newTracker(cfg, store, nil).List(cmd.Context(), models.UnansweredFilter{
		TenantID: tenant,
		Status:   models.UnansweredStatus(status),
		Priority: models.Priority(priority),
		Sort:     models.UnansweredSort(sort),
		Limit:    limit,
	})
	if err != nil {
		return err
	}
	return printUnanswered(cmd.OutOrStdout(), res, asJSON)
}

func runUnansweredAnswer(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid id %q", args[0])
	}
	tenant, _ := cmd.Flags().GetInt64("tenant")
	text, _ := cmd.Flags().GetString("text")
	category, _ := cmd.Flags().GetString("category")

	cfg, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	inv, closeCache := openCache(cfg)
	defer closeCache()

	q, err := newTracker(cfg, store, inv).Update(cmd.Context(), tenant, id, unanswered.Update{
		AutoCreateEntry: true,
		Answer:          text,
		Category:        category,
	})
	if err != nil {
		return err
	}

	entryID := int64(0)
	if q.KnowledgeEntryID != nil {
		entryID = *q.KnowledgeEntryID
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Question %d is %s, knowledge entry %d\n", q.ID, q.Status, entryID)
	return nil
}

func printUnanswered(w io.Writer, res *unanswered.ListResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"queries": res.Queries,
			"total":   res.Total,
			"stats":   res.Stats,
		})
	}

	if len(res.Queries) == 0 {
		fmt.Fprintln(w, "No unanswered questions.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFREQ\tPRIORITY\tSTATUS\tLAST ASKED\tQUERY")
	for _, q := range res.Queries {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\n",
			q.ID, q.Frequency, q.Priority, q.Status, q.LastAskedAt.Format("2006-01-02 15:04"), q.Query)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d of %d shown, %d pending, %d high priority\n",
		len(res.Queries), res.Total, res.Stats.Pending, res.Stats.HighPriority)
	return nil
}
