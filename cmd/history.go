package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/kozaktomas/clock-in/internal/capture"
	"github.com/kozaktomas/clock-in/internal/config"
	"github.com/kozaktomas/clock-in/internal/constants"
	"github.com/kozaktomas/clock-in/internal/database"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded capture sessions",
	Long: `List capture session outcomes from the audit log named by DATABASE_URL,
newest first. Submitted and cancelled sessions are both recorded.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().Int("limit", constants.DefaultHistoryLimit, "Maximum number of sessions to list")
	historyCmd.Flags().String("type", "", "Only list check-in or check-out sessions")
	historyCmd.Flags().String("result", "", "Only list submitted or cancelled sessions")
	historyCmd.Flags().Bool("json", false, "Output as JSON")
}

func formatPosition(o database.StoredOutcome) string {
	if o.Latitude == nil || o.Longitude == nil {
		return "-"
	}
	return fmt.Sprintf("%.5f, %.5f", *o.Latitude, *o.Longitude)
}

func outcomeDetail(o database.StoredOutcome) string {
	switch {
	case o.Error != "":
		return o.Error
	case o.RecordStatus != "":
		return o.RecordStatus
	default:
		return "-"
	}
}

func renderHistory(outcomes []database.StoredOutcome) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("CLOSED", "TYPE", "RESULT", "PHASE", "SOURCE", "POSITION", "DETAIL").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	for _, o := range outcomes {
		source := o.Provenance
		if source == "" {
			source = "-"
		}
		result := o.Result
		if result == string(capture.OutcomeSubmitted) {
			result = successStyle.Render(result)
		}
		t.Row(
			o.ClosedAt.Local().Format(time.DateTime),
			o.Type,
			result,
			o.Phase,
			source,
			formatPosition(o),
			outcomeDetail(o),
		)
	}
	return t.Render()
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	setupLogger(cmd, cfg.Log)

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	ctx := context.Background()
	audit, _, err := openAuditLog(ctx, cfg)
	if err != nil {
		return err
	}
	defer audit.Close()

	opts := database.ListOptions{
		Limit:  mustGetInt(cmd, "limit"),
		Type:   mustGetString(cmd, "type"),
		Result: mustGetString(cmd, "result"),
	}.Normalized(constants.DefaultHistoryLimit, constants.MaxHistoryLimit)

	outcomes, err := audit.ListOutcomes(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if mustGetBool(cmd, "json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(outcomes)
	}

	if len(outcomes) == 0 {
		fmt.Println("No capture sessions recorded.")
		return nil
	}

	total, err := audit.CountOutcomes(ctx)
	if err != nil {
		return fmt.Errorf("failed to count sessions: %w", err)
	}
	fmt.Println(renderHistory(outcomes))
	fmt.Printf("Showing %d of %d sessions\n", len(outcomes), total)
	return nil
}
