package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/apfuzz/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit int
}

// HistoryEntry is one delivery attempt.
type HistoryEntry struct {
	ID     string    `json:"id"`
	GUID   string    `json:"guid"`
	Target string    `json:"target"`
	Status int       `json:"status"`
	OK     bool      `json:"ok"`
	Error  string    `json:"error,omitempty"`
	SentAt time.Time `json:"sentAt"`
}

// HistoryResult lists delivery attempts, newest first.
type HistoryResult struct {
	Deliveries []HistoryEntry `json:"deliveries"`
}

func (r HistoryResult) String() string {
	if len(r.Deliveries) == 0 {
		return "No deliveries recorded."
	}
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SENT\tSTATUS\tGUID\tTARGET\tERROR")
	for _, d := range r.Deliveries {
		status := fmt.Sprint(d.Status)
		if d.Status == 0 {
			status = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", d.SentAt.Format(time.RFC3339), status, d.GUID, d.Target, d.Error)
	}
	w.Flush()
	return strings.TrimRight(b.String(), "\n")
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent delivery attempts",
		Long: `List the most recent delivery attempts recorded in the fuzzer database,
newest first, with the target's status code or the transport error.

Example:
  apfuzz history --limit 20
  apfuzz history --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 50, "maximum number of deliveries to list")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	st, err := store.Open(cfg.Database.Fuzzer)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to open fuzzer database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	deliveries, err := st.ListDeliveries(ctx, opts.Limit)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to list deliveries", err)
	}

	res := HistoryResult{Deliveries: make([]HistoryEntry, 0, len(deliveries))}
	for _, d := range deliveries {
		res.Deliveries = append(res.Deliveries, HistoryEntry{
			ID:     d.ID,
			GUID:   d.GUID,
			Target: d.Target,
			Status: d.Status,
			OK:     d.OK(),
			Error:  d.Error,
			SentAt: d.SentAt,
		})
	}
	return formatter.Success(res)
}
