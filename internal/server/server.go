// Package server is the HTTP surface: ActivityPub discovery and
// dereferencing, the inbox, and the operator control routes.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/apfuzz/internal/activity"
	"github.com/roach88/apfuzz/internal/corpus"
	"github.com/roach88/apfuzz/internal/delivery"
	"github.com/roach88/apfuzz/internal/firehose"
	"github.com/roach88/apfuzz/internal/store"
	"github.com/roach88/apfuzz/internal/synth"
)

// MessageStore serves stored messages.
type MessageStore interface {
	GetMessage(ctx context.Context, guid string) (string, error)
	GetMessageObject(ctx context.Context, guid string) (string, error)
	GetAccount(ctx context.Context, name string) (store.Account, error)
	CountMessages(ctx context.Context) (int, error)
}

// Accounts creates accounts on first lookup.
type Accounts interface {
	GetOrCreate(ctx context.Context, name string) (store.Account, error)
}

// Corpus is the read side of the template corpus.
type Corpus interface {
	Random(ctx context.Context, f corpus.Filter, rng corpus.Rand) (corpus.Template, error)
	Get(ctx context.Context, hash string) (corpus.Template, error)
	Types(ctx context.Context) ([]string, error)
	Software(ctx context.Context) ([]string, error)
	WithNotes(ctx context.Context) ([]corpus.NoteEntry, error)
	TotalSum(ctx context.Context) (int64, error)
}

// Synthesizer previews templates.
type Synthesizer interface {
	Synthesize(ctx context.Context, req synth.Request) (synth.Result, error)
}

// Sender delivers messages.
type Sender interface {
	SignAndSend(ctx context.Context, message []byte, target string) (string, error)
	SendFollow(ctx context.Context, inbox, followee string) (string, error)
	AcceptFollow(ctx context.Context, follow map[string]any) (string, error)
}

// Firehose is the scheduler control.
type Firehose interface {
	Start(ctx context.Context, opts firehose.Options) (*firehose.Handle, error)
	Stop() bool
	Status() firehose.Status
}

// Deps are the components the routes use.
type Deps struct {
	Site     activity.Site
	Messages MessageStore
	Accounts Accounts
	Corpus   Corpus
	Synth    Synthesizer
	Sender   Sender
	Firehose Firehose
	Target   *delivery.Target

	// FollowTarget is the actor /sendFollow follows. Empty follows the
	// public collection.
	FollowTarget string

	// Gatherer backs /metrics. Nil serves the default registry.
	Gatherer prometheus.Gatherer

	// Rand drives the random template preview. Nil uses corpus.DefaultRand.
	Rand corpus.Rand

	Logger *slog.Logger
}

// Server owns the router and the work it starts in the background.
type Server struct {
	deps   Deps
	engine *gin.Engine
	logger *slog.Logger

	// ctx outlives requests: firehose runs and Follow replies use it.
	ctx    context.Context
	cancel context.CancelFunc
	bg     sync.WaitGroup
}

// New builds the router.
func New(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Rand == nil {
		deps.Rand = corpus.DefaultRand
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	if deps.Target == nil {
		deps.Target = delivery.NewTarget("")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		deps:   deps,
		engine: gin.New(),
		logger: deps.Logger.With("component", "server"),
		ctx:    ctx,
		cancel: cancel,
	}
	s.engine.Use(gin.Recovery(), s.requestLogger())
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.engine

	r.GET("/health", handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))

	ap := r.Group("/", cors(), activityJSON())
	{
		ap.GET("/.well-known/webfinger", s.handleWebfinger)
		ap.GET("/.well-known/nodeinfo", s.handleNodeInfoIndex)
		ap.GET("/nodeinfo/2.0", handleNodeInfo)
		ap.GET("/u/:name", s.handleActor)
		ap.GET("/hashtag/:tag", s.handleHashtag)
	}
	r.GET("/m/:guid", s.handleObject)
	r.GET("/m/:guid/activity", s.handleActivity)
	r.POST("/inbox", s.handleInbox)

	r.GET("/", s.handleStats)
	r.GET("/stats", s.handleStats)
	r.POST("/set-target", s.handleSetTarget)
	r.POST("/post-to-endpoint", s.handlePostToEndpoint)
	r.POST("/sendFollow", s.handleSendFollow)

	fh := r.Group("/firehose")
	{
		fh.GET("/start", s.handleFirehoseStart)
		fh.GET("/stop", s.handleFirehoseStop)
		fh.GET("/status", s.handleFirehoseStatus)
	}

	r.GET("/random-schema-json", s.handleRandomSchema)
	r.GET("/show-schema", s.handleShowSchema)
	r.GET("/unique-software", s.handleUniqueSoftware)
	r.GET("/schemas-with-notes", s.handleSchemasWithNotes)
	r.GET("/distinct-types", s.handleDistinctTypes)
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully,
// stops the firehose and waits for background work.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr, "domain", s.deps.Site.Domain)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close stops the firehose and waits for background replies to finish.
func (s *Server) Close() {
	s.deps.Firehose.Stop()
	s.cancel()
	s.bg.Wait()
}

// Wait blocks until background work started by requests is done.
func (s *Server) Wait() {
	s.bg.Wait()
}

func (s *Server) background(name string, fn func(ctx context.Context) error) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		if err := fn(s.ctx); err != nil {
			s.logger.Error("background task failed", "task", name, "error", err)
		}
	}()
}
