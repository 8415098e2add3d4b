package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/apfuzz/internal/corpus"
	"github.com/roach88/apfuzz/internal/delivery"
	"github.com/roach88/apfuzz/internal/firehose"
)

// FirehoseOptions holds flags for the firehose command.
type FirehoseOptions struct {
	*RootOptions
	Delay            string
	Count            int
	Target           string
	Types            []string
	Software         string
	NotesOnly        bool
	AnnounceToCreate bool
}

// FirehoseResult summarizes a foreground run.
type FirehoseResult struct {
	RunID    string `json:"runId"`
	Target   string `json:"target"`
	Ticks    int64  `json:"ticks"`
	Failures int64  `json:"failures"`
}

func (r FirehoseResult) String() string {
	return fmt.Sprintf("Firehose %s finished: %d tick(s), %d failed, target %s", r.RunID, r.Ticks, r.Failures, r.Target)
}

// NewFirehoseCommand creates the firehose command.
func NewFirehoseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FirehoseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "firehose",
		Short: "Deliver weighted random templates to the target on a schedule",
		Long: `Run the firehose in the foreground. Every tick picks a template from the
corpus weighted by how often it was observed, synthesizes it and delivers it
to the target. A failed tick is logged and the schedule continues.

The run ends after --count ticks, or on Ctrl-C when --count is 0.

Example:
  apfuzz firehose --delay 500 --count 100
  apfuzz firehose --type Create --software mastodon --notes-only`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFirehose(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Delay, "delay", "d", "1000", "milliseconds between ticks")
	cmd.Flags().IntVarP(&opts.Count, "count", "n", 0, "stop after this many ticks (0 runs until interrupted)")
	cmd.Flags().StringVarP(&opts.Target, "target", "t", "", "target inbox URL (defaults to target.endpoint)")
	cmd.Flags().StringSliceVar(&opts.Types, "type", nil, "only templates of these activity types")
	cmd.Flags().StringVar(&opts.Software, "software", "", "only templates observed from this software")
	cmd.Flags().BoolVar(&opts.NotesOnly, "notes-only", false, "only templates that carry a note")
	cmd.Flags().BoolVar(&opts.AnnounceToCreate, "announce-to-create", false, "rewrite Announce activities to Create")

	return cmd
}

func runFirehose(opts *FirehoseOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	delay, err := firehose.ParseDelay(opts.Delay)
	if err != nil {
		return formatter.Fail(ExitCommandError, "invalid --delay", err)
	}
	if opts.Count < 0 {
		return NewExitError(ExitCommandError, "--count must not be negative")
	}

	a, err := openApp(opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext(cmd, a.logger)
	defer cancel()

	if err := a.ensureOperator(ctx); err != nil {
		return err
	}

	if opts.Target != "" {
		a.target.Set(opts.Target)
	}
	if a.target.Get() == "" {
		return formatter.Fail(ExitCommandError, "no target inbox", delivery.ErrNoTarget)
	}

	h, err := a.firehose.Start(ctx, firehose.Options{
		Delay:            delay,
		AnnounceToCreate: opts.AnnounceToCreate,
		Filter: corpus.Filter{
			Types:     opts.Types,
			Software:  opts.Software,
			NotesOnly: opts.NotesOnly,
		},
		MaxTicks: opts.Count,
	})
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to start firehose", err)
	}
	formatter.VerboseLog("firehose %s started: delay %s, target %s", h.ID(), delay, a.target.Get())

	h.Wait()

	res := FirehoseResult{
		RunID:    h.ID(),
		Target:   a.target.Get(),
		Ticks:    h.Ticks(),
		Failures: h.Failures(),
	}
	if err := formatter.Success(res); err != nil {
		return err
	}
	if res.Failures > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d tick(s) failed", res.Failures, res.Ticks))
	}
	return nil
}
