package cli

import (
	"context"
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/roach88/apfuzz/internal/account"
	"github.com/roach88/apfuzz/internal/activity"
	"github.com/roach88/apfuzz/internal/config"
	"github.com/roach88/apfuzz/internal/corpus"
	"github.com/roach88/apfuzz/internal/delivery"
	"github.com/roach88/apfuzz/internal/deref"
	"github.com/roach88/apfuzz/internal/firehose"
	"github.com/roach88/apfuzz/internal/httpsig"
	"github.com/roach88/apfuzz/internal/metrics"
	"github.com/roach88/apfuzz/internal/server"
	"github.com/roach88/apfuzz/internal/store"
	"github.com/roach88/apfuzz/internal/synth"
)

// app is the process-wide component graph built from one Config.
type app struct {
	cfg    *config.Config
	site   activity.Site
	logger *slog.Logger

	store    *store.Store
	corpus   *corpus.Corpus
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	accounts *account.Provisioner
	sender   *delivery.Sender
	synth    *synth.Synthesizer
	target   *delivery.Target
	firehose *firehose.Controller
}

// openApp loads configuration, opens both databases and wires every
// component. The caller must Close the result.
func openApp(opts *RootOptions) (*app, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	logger := opts.Logger()

	logger.Debug("opening database", "path", cfg.Database.Fuzzer)
	st, err := store.Open(cfg.Database.Fuzzer)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open fuzzer database", err)
	}
	logger.Debug("opening database", "path", cfg.Database.Observatory)
	cp, err := corpus.Open(cfg.Database.Observatory)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to open observatory database", err)
	}

	site := cfg.Site()
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	accountOpts := []account.Option{account.WithKeyBits(cfg.KeyBits), account.WithLogger(logger)}
	if opts.KeyGenerator != nil {
		accountOpts = append(accountOpts, account.WithKeyGenerator(opts.KeyGenerator))
	}

	client := httpsig.NewClient(site.ActorURL(), st.SigningKey, httpsig.WithLogger(logger))
	sender := delivery.NewSender(site, client, st, m, logger)
	sy := synth.New(site, m.InstrumentMinter(deref.NewMinter(site, st, nil)), synth.WithLogger(logger))
	target := delivery.NewTarget(cfg.Target.Endpoint)

	return &app{
		cfg:      cfg,
		site:     site,
		logger:   logger,
		store:    st,
		corpus:   cp,
		registry: reg,
		metrics:  m,
		accounts: account.NewProvisioner(site, st, accountOpts...),
		sender:   sender,
		synth:    sy,
		target:   target,
		firehose: firehose.New(cp, sy, sender, target.Get,
			firehose.WithObserver(m),
			firehose.WithLogger(logger),
		),
	}, nil
}

// ensureOperator creates the operating account on first use so that
// outgoing requests can be signed.
func (a *app) ensureOperator(ctx context.Context) error {
	if _, err := a.accounts.EnsureOperator(ctx, a.cfg.Account, a.cfg.ActorInfo()); err != nil {
		return WrapExitError(ExitCommandError, "failed to provision operating account", err)
	}
	return nil
}

// server builds the HTTP surface over the app's components.
func (a *app) server() *server.Server {
	return server.New(server.Deps{
		Site:         a.site,
		Messages:     a.store,
		Accounts:     a.accounts,
		Corpus:       a.corpus,
		Synth:        a.synth,
		Sender:       a.sender,
		Firehose:     a.firehose,
		Target:       a.target,
		FollowTarget: a.cfg.Target.UserID,
		Gatherer:     a.registry,
		Logger:       a.logger,
	})
}

func (a *app) Close() error {
	a.firehose.Stop()
	return errors.Join(a.corpus.Close(), a.store.Close())
}
