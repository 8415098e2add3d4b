package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/apfuzz/internal/delivery"
)

// SendOptions holds flags for the send command.
type SendOptions struct {
	*RootOptions
	TemplateFlags
	Target string
}

// SendResult reports one delivered message.
type SendResult struct {
	GUID     string `json:"guid"`
	Type     string `json:"type"`
	Target   string `json:"target"`
	Activity string `json:"activity"`
}

func (r SendResult) String() string {
	return fmt.Sprintf("Delivered %s %s to %s", r.Type, r.Activity, r.Target)
}

// NewSendCommand creates the send command.
func NewSendCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SendOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Synthesize a message and deliver it to a target inbox",
		Long: `Synthesize a message from a corpus template or a template file, sign it as
the operating account and POST it to the target inbox. The message is stored
before delivery so the target can dereference it while the fuzzer serves.

The target defaults to target.endpoint from the config.

Example:
  apfuzz send --file create-note.json --target https://mastodon.test/inbox
  apfuzz send --hash 3f1d0c6a9b2e4f5a8c7d6e5f4a3b2c1d`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(opts, cmd)
		},
	}
	opts.TemplateFlags.register(cmd)
	cmd.Flags().StringVarP(&opts.Target, "target", "t", "", "target inbox URL")

	return cmd
}

func runSend(opts *SendOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

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

	target := opts.Target
	if target == "" {
		target = a.target.Get()
	}
	if target == "" {
		return formatter.Fail(ExitCommandError, "no target inbox", delivery.ErrNoTarget)
	}

	req, err := opts.TemplateFlags.request(ctx, a)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to load template", err)
	}
	res, err := a.synth.Synthesize(ctx, req)
	if err != nil {
		return formatter.Fail(ExitFailure, "failed to synthesize", err)
	}
	a.metrics.ObserveSynth(res.Type)
	formatter.VerboseLog("synthesized %s %s", res.Type, res.GUID)

	if _, err := a.sender.SignAndSend(ctx, res.JSON, target); err != nil {
		return formatter.Fail(ExitFailure, "failed to deliver", err)
	}

	return formatter.Success(SendResult{
		GUID:     res.GUID,
		Type:     res.Type,
		Target:   target,
		Activity: a.site.ActivityURL(res.GUID),
	})
}
