package firehose

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/apfuzz/internal/corpus"
	"github.com/roach88/apfuzz/internal/delivery"
	"github.com/roach88/apfuzz/internal/store"
	"github.com/roach88/apfuzz/internal/synth"
	"github.com/roach88/apfuzz/internal/testutil"
)

type fakePicker struct {
	mu    sync.Mutex
	errs  []error // consumed one per call; nil entries succeed
	calls int
}

func (p *fakePicker) Pick(_ context.Context, f corpus.Filter, _ corpus.Rand) (corpus.Template, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		if err != nil {
			return corpus.Template{}, err
		}
	}
	return corpus.Template{
		Hash:     "aaaa",
		Schema:   `{"type":"Create","object":{"type":"Note","content":"<string>"}}`,
		Notes:    "Plain note",
		Software: "mastodon",
		Total:    1,
	}, nil
}

type fakeSynth struct {
	mu   sync.Mutex
	err  error
	reqs []synth.Request
	seq  int
}

func (s *fakeSynth) Synthesize(_ context.Context, req synth.Request) (synth.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return synth.Result{}, s.err
	}
	s.seq++
	guid := fmt.Sprintf("%032x", s.seq)
	return synth.Result{
		GUID: guid,
		Type: "Create",
		JSON: []byte(`{"id":"https://fuzz.example/m/` + guid + `/activity","type":"Create"}`),
	}, nil
}

type sent struct {
	message string
	target  string
}

type fakeSender struct {
	mu      sync.Mutex
	err     error
	block   chan struct{}
	entered chan struct{}
	sent    []sent
}

func (s *fakeSender) SignAndSend(_ context.Context, message []byte, target string) (string, error) {
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sent{message: string(message), target: target})
	if s.err != nil {
		return "", s.err
	}
	return "guid-" + fmt.Sprint(len(s.sent)), nil
}

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type recordingObserver struct {
	mu      sync.Mutex
	ok      int
	failed  int
	types   []string
	running bool
}

func (o *recordingObserver) ObserveTick(ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if ok {
		o.ok++
	} else {
		o.failed++
	}
}

func (o *recordingObserver) ObserveSynth(t string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.types = append(o.types, t)
}

func (o *recordingObserver) SetRunning(r bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.running = r
}

func (o *recordingObserver) isRunning() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// manualTicks hands out one unbuffered channel per run. A send returns
// once the loop has received the tick.
type manualTicks struct {
	mu    sync.Mutex
	chans []chan time.Time
}

func (m *manualTicks) source(time.Duration) (<-chan time.Time, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan time.Time)
	m.chans = append(m.chans, ch)
	return ch, func() {}
}

func (m *manualTicks) fire(t *testing.T, n int) {
	t.Helper()
	m.mu.Lock()
	ch := m.chans[len(m.chans)-1]
	m.mu.Unlock()
	for range n {
		select {
		case ch <- testutil.Epoch:
		case <-time.After(5 * time.Second):
			t.Fatal("tick not received")
		}
	}
}

type fixture struct {
	ctrl     *Controller
	picker   *fakePicker
	synth    *fakeSynth
	sender   *fakeSender
	observer *recordingObserver
	ticks    *manualTicks
	target   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		picker:   &fakePicker{},
		synth:    &fakeSynth{},
		sender:   &fakeSender{},
		observer: &recordingObserver{},
		ticks:    &manualTicks{},
		target:   "https://target.example/inbox",
	}
	guids := &testutil.SeqGUIDs{}
	f.ctrl = New(f.picker, f.synth, f.sender, func() string { return f.target },
		WithObserver(f.observer),
		WithTickSource(f.ticks.source),
		WithIDs(guids.Generate),
		WithRand(testutil.NewScriptedRand(0)),
	)
	t.Cleanup(func() { f.ctrl.Stop() })
	return f
}

var validOpts = Options{Delay: 100 * time.Millisecond}

func TestStart_RejectsNonPositiveDelay(t *testing.T) {
	for _, delay := range []time.Duration{0, -5 * time.Millisecond} {
		t.Run(delay.String(), func(t *testing.T) {
			f := newFixture(t)

			h, err := f.ctrl.Start(context.Background(), Options{Delay: delay})
			assert.ErrorIs(t, err, ErrInvalidDelay)
			assert.Nil(t, h)
			assert.Nil(t, f.ctrl.Current())
			assert.False(t, f.ctrl.Status().Running)
			assert.False(t, f.observer.isRunning())
		})
	}
}

func TestStart_InvalidDelayKeepsRunningFirehose(t *testing.T) {
	f := newFixture(t)

	h, err := f.ctrl.Start(context.Background(), validOpts)
	require.NoError(t, err)

	_, err = f.ctrl.Start(context.Background(), Options{Delay: -5})
	require.ErrorIs(t, err, ErrInvalidDelay)
	assert.Same(t, h, f.ctrl.Current())
	assert.False(t, h.Stopped())
}

func TestStop_Idempotent(t *testing.T) {
	f := newFixture(t)

	_, err := f.ctrl.Start(context.Background(), validOpts)
	require.NoError(t, err)
	require.True(t, f.observer.isRunning())

	assert.True(t, f.ctrl.Stop())
	assert.False(t, f.ctrl.Stop())
	assert.False(t, f.ctrl.Stop())
	assert.Nil(t, f.ctrl.Current())
	assert.False(t, f.observer.isRunning())
}

func TestHandleStop_Idempotent(t *testing.T) {
	f := newFixture(t)

	h, err := f.ctrl.Start(context.Background(), validOpts)
	require.NoError(t, err)

	assert.True(t, h.Stop())
	assert.False(t, h.Stop())
	assert.True(t, h.Stopped())
	assert.Nil(t, f.ctrl.Current())
	assert.False(t, f.ctrl.Stop())
}

func TestStop_WhenNeverStarted(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.ctrl.Stop())
	assert.False(t, f.ctrl.Stop())
}

func TestTicksDeliver(t *testing.T) {
	f := newFixture(t)

	opts := validOpts
	opts.AnnounceToCreate = true
	h, err := f.ctrl.Start(context.Background(), opts)
	require.NoError(t, err)

	f.ticks.fire(t, 3)
	require.Eventually(t, func() bool { return h.Ticks() == 3 }, 5*time.Second, time.Millisecond)
	h.Stop()
	h.Wait()

	assert.Equal(t, int64(3), h.Ticks())
	assert.Equal(t, int64(0), h.Failures())
	require.Equal(t, 3, f.sender.count())
	for _, s := range f.sender.sent {
		assert.Equal(t, "https://target.example/inbox", s.target)
	}
	require.Len(t, f.synth.reqs, 3)
	assert.Equal(t, synth.Request{
		Template:         []byte(`{"type":"Create","object":{"type":"Note","content":"<string>"}}`),
		Note:             "Plain note",
		Software:         "mastodon",
		AnnounceToCreate: true,
	}, f.synth.reqs[0])
	assert.Equal(t, 3, f.observer.ok)
	assert.Equal(t, []string{"Create", "Create", "Create"}, f.observer.types)
}

func TestTickErrorsDoNotStopSchedule(t *testing.T) {
	f := newFixture(t)
	f.picker.errs = []error{corpus.ErrNoEligible, nil}

	h, err := f.ctrl.Start(context.Background(), validOpts)
	require.NoError(t, err)

	f.ticks.fire(t, 2)
	require.Eventually(t, func() bool { return h.Ticks() == 2 }, 5*time.Second, time.Millisecond)
	assert.False(t, h.Stopped())
	h.Stop()
	h.Wait()

	assert.Equal(t, int64(2), h.Ticks())
	assert.Equal(t, int64(1), h.Failures())
	assert.Equal(t, 1, f.sender.count())
	assert.Equal(t, 1, f.observer.failed)
}

func TestStart_ReplacesRunning(t *testing.T) {
	f := newFixture(t)

	first, err := f.ctrl.Start(context.Background(), validOpts)
	require.NoError(t, err)
	second, err := f.ctrl.Start(context.Background(), Options{Delay: time.Second})
	require.NoError(t, err)

	assert.True(t, first.Stopped())
	assert.False(t, second.Stopped())
	assert.Same(t, second, f.ctrl.Current())
	assert.True(t, f.observer.isRunning())
	assert.Equal(t, int64(1000), f.ctrl.Status().DelayMillis)
}

func TestMaxTicks(t *testing.T) {
	f := newFixture(t)

	h, err := f.ctrl.Start(context.Background(), Options{Delay: time.Millisecond, MaxTicks: 2})
	require.NoError(t, err)

	f.ticks.fire(t, 2)
	h.Wait()

	assert.True(t, h.Stopped())
	assert.Equal(t, 2, f.sender.count())
	assert.Nil(t, f.ctrl.Current())
	assert.False(t, f.observer.isRunning())
}

func TestStop_LetsInFlightTickFinish(t *testing.T) {
	f := newFixture(t)
	f.sender.block = make(chan struct{})
	f.sender.entered = make(chan struct{}, 1)

	h, err := f.ctrl.Start(context.Background(), validOpts)
	require.NoError(t, err)

	f.ticks.fire(t, 1)
	select {
	case <-f.sender.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("tick never reached the sender")
	}
	require.True(t, h.Stop())
	assert.Equal(t, 0, f.sender.count())

	close(f.sender.block)
	h.Wait()
	assert.Equal(t, 1, f.sender.count())
	assert.Equal(t, int64(1), h.Ticks())
}

func TestContextCancelStopsRun(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	h, err := f.ctrl.Start(ctx, validOpts)
	require.NoError(t, err)
	cancel()

	require.Eventually(t, h.Stopped, 5*time.Second, time.Millisecond)
	assert.Nil(t, f.ctrl.Current())
}

func TestTick_ErrorCodes(t *testing.T) {
	storeErr := fmt.Errorf("put message: %w", store.ErrStoreUnavailable)
	deliveryErr := &delivery.Error{Target: "https://target.example/inbox", Status: 500}

	tests := []struct {
		name  string
		setup func(f *fixture)
		code  TickErrorCode
		is    error
	}{
		{"pick", func(f *fixture) { f.picker.errs = []error{corpus.ErrNoEligible} }, ErrCodePickFailed, corpus.ErrNoEligible},
		{"synth", func(f *fixture) { f.synth.err = errors.New("malformed JSON") }, ErrCodeSynthFailed, nil},
		{"store", func(f *fixture) { f.sender.err = storeErr }, ErrCodeStoreFailed, store.ErrStoreUnavailable},
		{"delivery", func(f *fixture) { f.sender.err = deliveryErr }, ErrCodeDeliveryFailed, delivery.ErrDeliveryFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f)

			res, err := f.ctrl.Tick(context.Background(), validOpts)
			require.Error(t, err)
			assert.Equal(t, tt.code, CodeOf(err))
			assert.NotEmpty(t, res.TickID)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}

			var te *TickError
			require.ErrorAs(t, err, &te)
			if tt.code != ErrCodePickFailed {
				assert.Equal(t, "aaaa", te.Hash)
			}
		})
	}
}

func TestTick_ReadsTargetEachTime(t *testing.T) {
	f := newFixture(t)

	res, err := f.ctrl.Tick(context.Background(), validOpts)
	require.NoError(t, err)
	assert.Equal(t, "aaaa", res.Hash)
	assert.Equal(t, "mastodon", res.Software)
	assert.Equal(t, "Create", res.Type)
	assert.Equal(t, "guid-1", res.GUID)

	f.target = "https://other.example/inbox"
	_, err = f.ctrl.Tick(context.Background(), validOpts)
	require.NoError(t, err)
	assert.Equal(t, "https://other.example/inbox", f.sender.sent[1].target)
}

func TestStatus(t *testing.T) {
	f := newFixture(t)

	st := f.ctrl.Status()
	assert.False(t, st.Running)
	assert.Equal(t, "https://target.example/inbox", st.Target)

	opts := Options{Delay: 250 * time.Millisecond, Filter: corpus.Filter{Types: []string{"Create"}, NotesOnly: true}}
	h, err := f.ctrl.Start(context.Background(), opts)
	require.NoError(t, err)

	st = f.ctrl.Status()
	assert.True(t, st.Running)
	assert.Equal(t, h.ID(), st.RunID)
	assert.Equal(t, int64(250), st.DelayMillis)
	assert.Equal(t, opts.Filter, st.Filter)
	assert.NotNil(t, st.StartedAt)
}

func TestParseDelay(t *testing.T) {
	d, err := ParseDelay("1500")
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, d)

	for _, in := range []string{"0", "-5", "", "abc", "1.5", "10ms"} {
		_, err := ParseDelay(in)
		assert.ErrorIs(t, err, ErrInvalidDelay, in)
	}
}
