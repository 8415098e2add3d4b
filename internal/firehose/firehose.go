// Package firehose runs the periodic pick, synthesize and deliver loop.
//
// A Controller owns at most one running Handle. Start replaces a running
// handle rather than stacking a second one. Each tick runs in its own
// goroutine so a slow target never delays the next tick; Stop prevents
// further ticks and lets in-flight ones finish.
package firehose

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/apfuzz/internal/corpus"
	"github.com/roach88/apfuzz/internal/store"
	"github.com/roach88/apfuzz/internal/synth"
)

// Picker selects a template.
type Picker interface {
	Pick(ctx context.Context, f corpus.Filter, rng corpus.Rand) (corpus.Template, error)
}

// Synthesizer turns a template into a message.
type Synthesizer interface {
	Synthesize(ctx context.Context, req synth.Request) (synth.Result, error)
}

// Sender signs, stores and posts a message.
type Sender interface {
	SignAndSend(ctx context.Context, message []byte, target string) (string, error)
}

// Observer receives tick outcomes and running state.
type Observer interface {
	ObserveTick(ok bool)
	ObserveSynth(activityType string)
	SetRunning(running bool)
}

type noopObserver struct{}

func (noopObserver) ObserveTick(bool)    {}
func (noopObserver) ObserveSynth(string) {}
func (noopObserver) SetRunning(bool)     {}

// TickSource returns a channel firing every d and a function releasing it.
type TickSource func(d time.Duration) (<-chan time.Time, func())

func tickerSource(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Options configures one firehose run.
type Options struct {
	Delay            time.Duration `json:"-"`
	AnnounceToCreate bool          `json:"rewriteAnnounceToCreate"`
	Filter           corpus.Filter `json:"filter"`

	// MaxTicks ends the run after that many ticks. Zero runs until stopped.
	MaxTicks int `json:"maxTicks,omitempty"`
}

// ParseDelay parses a delay given in milliseconds.
func ParseDelay(s string) (time.Duration, error) {
	ms, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || ms <= 0 {
		return 0, ErrInvalidDelay
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// TickResult describes a delivered tick.
type TickResult struct {
	TickID   string `json:"tickId"`
	Hash     string `json:"hash"`
	Software string `json:"software"`
	Type     string `json:"type"`
	GUID     string `json:"guid"`
}

// Controller starts and stops the firehose.
type Controller struct {
	picker   Picker
	synth    Synthesizer
	sender   Sender
	target   func() string
	rng      corpus.Rand
	observer Observer
	ticks    TickSource
	newID    func() string
	logger   *slog.Logger

	mu      sync.Mutex
	current *Handle
}

// Option configures a Controller.
type Option func(*Controller)

// WithRand sets the randomness used to pick templates.
func WithRand(rng corpus.Rand) Option {
	return func(c *Controller) { c.rng = rng }
}

// WithObserver sets the metrics observer.
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observer = o }
}

// WithTickSource replaces the ticker. Tests drive ticks by hand with it.
func WithTickSource(src TickSource) Option {
	return func(c *Controller) { c.ticks = src }
}

// WithIDs sets the tick ID generator.
func WithIDs(gen func() string) Option {
	return func(c *Controller) { c.newID = gen }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// New returns a stopped Controller. target is read on every tick so a
// changed target applies to the next delivery.
func New(picker Picker, s Synthesizer, sender Sender, target func() string, opts ...Option) *Controller {
	c := &Controller{
		picker:   picker,
		synth:    s,
		sender:   sender,
		target:   target,
		rng:      corpus.DefaultRand,
		observer: noopObserver{},
		ticks:    tickerSource,
		newID:    uuid.NewString,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "firehose")
	return c
}

// Start begins a run, stopping the current one first. An invalid delay is
// rejected before anything else so a running firehose keeps running.
//
// Ticks run with a context detached from ctx's cancellation. Cancelling
// ctx stops the run like Stop does.
func (c *Controller) Start(ctx context.Context, opts Options) (*Handle, error) {
	if opts.Delay <= 0 {
		return nil, ErrInvalidDelay
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil && c.current.Stop() {
		c.logger.Info("firehose replaced", "previous", c.current.id)
	}

	runCtx, cancel := context.WithCancel(ctx)
	h := &Handle{
		id:        c.newID(),
		opts:      opts,
		startedAt: time.Now(),
		cancel:    cancel,
		loopDone:  make(chan struct{}),
	}
	c.current = h

	ch, release := c.ticks(opts.Delay)
	c.observer.SetRunning(true)
	go h.run(runCtx, ch, release, c.runTick, func() { c.observer.SetRunning(false) })

	c.logger.Info("firehose started",
		"run_id", h.id,
		"delay_ms", opts.Delay.Milliseconds(),
		"rewrite_announce", opts.AnnounceToCreate,
		"types", opts.Filter.Types,
		"software", opts.Filter.Software,
		"notes_only", opts.Filter.NotesOnly)
	return h, nil
}

// Stop stops the current run. It reports whether a run was stopped;
// stopping a stopped controller is a no-op.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	h := c.current
	c.current = nil
	c.mu.Unlock()

	if h == nil || !h.Stop() {
		return false
	}
	c.logger.Info("firehose stopped", "run_id", h.id, "ticks", h.Ticks(), "failures", h.Failures())
	return true
}

// Current returns the active handle, or nil when stopped.
func (c *Controller) Current() *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil || c.current.Stopped() {
		return nil
	}
	return c.current
}

// Status describes the controller for the control surface.
type Status struct {
	Running          bool          `json:"running"`
	RunID            string        `json:"runId,omitempty"`
	DelayMillis      int64         `json:"delayMs,omitempty"`
	AnnounceToCreate bool          `json:"rewriteAnnounceToCreate"`
	Filter           corpus.Filter `json:"filter"`
	StartedAt        *time.Time    `json:"startedAt,omitempty"`
	Ticks            int64         `json:"ticks"`
	Failures         int64         `json:"failures"`
	Target           string        `json:"target"`
}

// Status returns the current state.
func (c *Controller) Status() Status {
	st := Status{Target: c.target()}
	h := c.Current()
	if h == nil {
		return st
	}
	started := h.startedAt
	st.Running = true
	st.RunID = h.id
	st.DelayMillis = h.opts.Delay.Milliseconds()
	st.AnnounceToCreate = h.opts.AnnounceToCreate
	st.Filter = h.opts.Filter
	st.StartedAt = &started
	st.Ticks = h.Ticks()
	st.Failures = h.Failures()
	return st
}

func (c *Controller) runTick(ctx context.Context, h *Handle) {
	_, err := c.Tick(ctx, h.opts)
	h.ticks.Add(1)
	if err != nil {
		h.failures.Add(1)
	}
}

// Tick runs one pick, synthesize and deliver cycle and returns its error.
// The run loop discards the error after logging it; direct callers get it.
func (c *Controller) Tick(ctx context.Context, opts Options) (TickResult, error) {
	res := TickResult{TickID: c.newID()}
	err := c.tick(ctx, opts, &res)
	c.observer.ObserveTick(err == nil)

	if err != nil {
		c.logger.Error("tick failed",
			"tick_id", res.TickID,
			"hash", res.Hash,
			"code", CodeOf(err),
			"error", err)
		return res, err
	}
	c.logger.Info("tick delivered",
		"tick_id", res.TickID,
		"hash", res.Hash,
		"software", res.Software,
		"type", res.Type,
		"guid", res.GUID,
		"status", "ok")
	return res, nil
}

func (c *Controller) tick(ctx context.Context, opts Options, res *TickResult) error {
	fail := func(code TickErrorCode, err error) error {
		return &TickError{Code: code, TickID: res.TickID, Hash: res.Hash, Err: err}
	}

	tmpl, err := c.picker.Pick(ctx, opts.Filter, c.rng)
	if err != nil {
		return fail(ErrCodePickFailed, err)
	}
	res.Hash = tmpl.Hash
	res.Software = tmpl.Software

	msg, err := c.synth.Synthesize(ctx, synth.Request{
		Template:         []byte(tmpl.Schema),
		Note:             tmpl.Notes,
		Software:         tmpl.Software,
		AnnounceToCreate: opts.AnnounceToCreate,
	})
	if err != nil {
		return fail(ErrCodeSynthFailed, err)
	}
	res.Type = msg.Type
	c.observer.ObserveSynth(msg.Type)

	guid, err := c.sender.SignAndSend(ctx, msg.JSON, c.target())
	if guid != "" {
		res.GUID = guid
	} else {
		res.GUID = msg.GUID
	}
	if err != nil {
		if errors.Is(err, store.ErrStoreUnavailable) {
			return fail(ErrCodeStoreFailed, err)
		}
		return fail(ErrCodeDeliveryFailed, err)
	}
	return nil
}
