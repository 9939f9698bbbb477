package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/noteseg/internal/model"
	"github.com/sells-group/noteseg/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect training and evaluation run history",
	Long:  "Commands for listing and viewing runs recorded in store.path.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := requireStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		kind, _ := cmd.Flags().GetString("kind")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Kind:   model.RunKind(kind),
			Status: model.RunStatus(status),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}
		return formatRunsList(cmd.OutOrStdout(), runs)
	},
}

// -- runs show --

type runDetail struct {
	model.Run `yaml:",inline"`
	Epochs    []model.Epoch `json:"epochs,omitempty" yaml:"epochs,omitempty"`
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run and its epochs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := requireStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		epochs, err := st.ListEpochs(ctx, run.ID)
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		format, _ := cmd.Flags().GetString("format")
		return writeRunDetail(cmd.OutOrStdout(), format, runDetail{Run: *run, Epochs: epochs})
	},
}

func init() {
	runsListCmd.Flags().String("kind", "", "filter by run kind (train, eval)")
	runsListCmd.Flags().String("status", "", "filter by run status (running, complete, failed)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsShowCmd.Flags().String("format", "json", "output format: json or yaml")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

func writeRunDetail(out io.Writer, format string, d runDetail) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(d); err != nil {
			return eris.Wrap(err, "runs: encode yaml")
		}
		return enc.Close()
	default:
		return eris.Errorf("runs: --format must be json or yaml (got %q)", format)
	}
}

func requireStore(cmd *cobra.Command) (store.Store, error) {
	st, err := openStore(cmd.Context())
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, eris.New("runs: store.path is not configured (NOTESEG_STORE_PATH)")
	}
	return st, nil
}

// formatRunsList writes a table of runs to out.
func formatRunsList(out io.Writer, runs []model.Run) error {
	table := tablewriter.NewWriter(out)
	table.Header("ID", "Kind", "Status", "Data", "Result", "Created", "Duration")

	for _, r := range runs {
		dur := r.UpdatedAt.Sub(r.CreatedAt).Round(time.Second).String()
		if err := table.Append([]string{
			truncateID(r.ID),
			string(r.Kind),
			statusColor(r.Status).Sprint(string(r.Status)),
			r.DataPath,
			summarizeResult(r),
			r.CreatedAt.Format("2006-01-02 15:04"),
			dur,
		}); err != nil {
			return eris.Wrap(err, "runs: append row")
		}
	}
	return eris.Wrap(table.Render(), "runs: render table")
}

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
)

func statusColor(s model.RunStatus) *color.Color {
	switch s {
	case model.RunStatusComplete:
		return green
	case model.RunStatusFailed:
		return red
	default:
		return yellow
	}
}

// summarizeResult returns a one-line outcome for the runs table.
func summarizeResult(r model.Run) string {
	switch {
	case r.Status == model.RunStatusFailed:
		return "error: " + r.Error
	case r.Result == nil:
		return ""
	case r.Kind == model.RunKindEval:
		return "acc=" + strconv.FormatFloat(r.Result.Accuracy, 'f', 4, 64) +
			" miss=" + strconv.Itoa(r.Result.Misclassified)
	default:
		return "best_epoch=" + strconv.Itoa(r.Result.BestEpoch) +
			" loss=" + strconv.FormatFloat(r.Result.BestLoss, 'f', 4, 64)
	}
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
