package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/apfuzz/internal/synth"
)

// TemplateFlags select the template a command synthesizes from.
type TemplateFlags struct {
	Hash             string
	File             string
	Note             string
	Software         string
	AnnounceToCreate bool
}

func (f *TemplateFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Hash, "hash", "", "corpus template hash")
	cmd.Flags().StringVar(&f.File, "file", "", "path to a JSON template")
	cmd.Flags().StringVar(&f.Note, "note", "", "label for <string> values (overrides the corpus note)")
	cmd.Flags().StringVar(&f.Software, "software", "", "software label used in the fallback note")
	cmd.Flags().BoolVar(&f.AnnounceToCreate, "announce-to-create", false, "rewrite Announce activities to Create")
	cmd.MarkFlagsMutuallyExclusive("hash", "file")
	cmd.MarkFlagsOneRequired("hash", "file")
}

// request resolves the flags into a synthesis request. Corpus templates
// carry their own note and software unless overridden.
func (f *TemplateFlags) request(ctx context.Context, a *app) (synth.Request, error) {
	req := synth.Request{
		Note:             f.Note,
		Software:         f.Software,
		AnnounceToCreate: f.AnnounceToCreate,
	}
	if f.File != "" {
		data, err := os.ReadFile(f.File)
		if err != nil {
			return synth.Request{}, fmt.Errorf("read template: %w", err)
		}
		req.Template = data
		return req, nil
	}

	t, err := a.corpus.Get(ctx, f.Hash)
	if err != nil {
		return synth.Request{}, fmt.Errorf("load template %s: %w", f.Hash, err)
	}
	req.Template = []byte(t.Schema)
	if req.Note == "" {
		req.Note = t.Notes
	}
	if req.Software == "" {
		req.Software = t.Software
	}
	return req, nil
}

// SynthResult is one synthesized message.
type SynthResult struct {
	GUID    string          `json:"guid"`
	Type    string          `json:"type"`
	Message json.RawMessage `json:"message"`
}

func (r SynthResult) String() string {
	return string(r.Message)
}

// NewSynthCommand creates the synth command.
func NewSynthCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &TemplateFlags{}

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Synthesize one message from a template",
		Long: `Synthesize a concrete activity from a corpus template or a template file
and print it. Custom emoji in the template are minted into the fuzzer
database so the printed message dereferences once served.

Example:
  apfuzz synth --hash 3f1d0c6a9b2e4f5a8c7d6e5f4a3b2c1d
  apfuzz synth --file create-note.json --note "mention test"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSynth(rootOpts, flags, cmd)
		},
	}
	flags.register(cmd)

	return cmd
}

func runSynth(opts *RootOptions, flags *TemplateFlags, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	a, err := openApp(opts)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	req, err := flags.request(ctx, a)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to load template", err)
	}
	res, err := a.synth.Synthesize(ctx, req)
	if err != nil {
		return formatter.Fail(ExitFailure, "failed to synthesize", err)
	}
	formatter.VerboseLog("synthesized %s %s", res.Type, res.GUID)

	return formatter.Success(SynthResult{GUID: res.GUID, Type: res.Type, Message: res.JSON})
}
