package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/apfuzz/internal/config"
	"github.com/roach88/apfuzz/internal/corpus"
)

// ImportResult reports a corpus import.
type ImportResult struct {
	Files int `json:"files"`
	corpus.ImportStats
	Templates int   `json:"templates"`
	TotalSum  int64 `json:"totalSum"`
}

func (r ImportResult) String() string {
	return fmt.Sprintf("Imported %d record(s) from %d file(s): %d new, %d updated (%d templates, %d observations)",
		r.Records, r.Files, r.Created, r.Updated, r.Templates, r.TotalSum)
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>...",
		Short: "Import observed message templates into the corpus",
		Long: `Import template records into the observatory database. Files ending in
.yaml or .yml are read as YAML, anything else as JSON; each holds a list of
records with a schema, an optional note, the software it was observed from
and an observation count.

Records whose schema canonicalizes to an existing template add to its count.
The import is all-or-nothing.

Example:
  apfuzz import observed/mastodon.json observed/misskey.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runImport(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.Logger()

	cfg, err := opts.loadConfig()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	records, err := corpus.LoadFiles(ctx, paths)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to read records", err)
	}
	formatter.VerboseLog("read %d record(s) from %d file(s)", len(records), len(paths))

	cp, err := openCorpus(cfg)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to open observatory database", err)
	}
	defer cp.Close()

	stats, err := cp.Import(ctx, records)
	if err != nil {
		return formatter.Fail(ExitFailure, "import failed", err)
	}
	logger.Info("corpus imported", "records", stats.Records, "created", stats.Created, "updated", stats.Updated)

	count, err := cp.Count(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to count templates", err)
	}
	sum, err := cp.TotalSum(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to sum observations", err)
	}

	return formatter.Success(ImportResult{
		Files:       len(paths),
		ImportStats: stats,
		Templates:   count,
		TotalSum:    sum,
	})
}

func openCorpus(cfg *config.Config) (*corpus.Corpus, error) {
	return corpus.Open(cfg.Database.Observatory)
}
