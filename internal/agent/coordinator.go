// Package agent runs one interview's voice loop: capture an answer, transcribe it,
// stream the interviewer's reply into the transcript, then speak it.
package agent

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/DCbrown/interview-ai-app/internal/apperr"
	"github.com/DCbrown/interview-ai-app/internal/conversation"
	"github.com/DCbrown/interview-ai-app/internal/interview"
	"github.com/DCbrown/interview-ai-app/internal/logging"
	"github.com/DCbrown/interview-ai-app/internal/metrics"
)

// ErrClosed is returned by commands issued after Teardown.
var ErrClosed = errors.New("agent: coordinator closed")

var errEmptyTranscript = errors.New("empty transcript")
var errEmptyReply = errors.New("empty model reply")

const eventBuffer = 64

// Coordinator owns the voice turn state machine. One loop goroutine is the only
// mutator of the state and of the conversation store; provider calls run in their own
// goroutines and report back as events tagged with the epoch they were started in.
// An event from an older epoch is dropped.
type Coordinator struct {
	store   *conversation.Store
	deps    Deps
	metrics *metrics.Metrics
	log     zerolog.Logger

	autoListen bool
	opening    string
	onUpdate   func(Update)
	sessionID  string

	ctx    context.Context
	cancel context.CancelFunc
	events chan event
	done   chan struct{}

	closed    atomic.Bool
	closeOnce sync.Once

	stateMu sync.RWMutex
	state   State

	// loop-owned
	epoch      uint64
	opCancel   context.CancelFunc
	reply      strings.Builder
	replyIndex int
	modelStart time.Time
	gotDelta   bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithAutoListen re-enters Listening after the interviewer finishes speaking.
func WithAutoListen(on bool) Option {
	return func(c *Coordinator) { c.autoListen = on }
}

// WithObserver registers the update callback. It runs on the loop goroutine and must
// not block or call back into the coordinator's Teardown.
func WithObserver(fn func(Update)) Option {
	return func(c *Coordinator) { c.onUpdate = fn }
}

func WithSessionID(id string) Option {
	return func(c *Coordinator) { c.sessionID = id }
}

// WithOpeningInstruction overrides the ephemeral message Greet sends.
func WithOpeningInstruction(s string) Option {
	return func(c *Coordinator) { c.opening = s }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// NewCoordinator starts the loop. The coordinator lives until Teardown or until parent
// is cancelled.
func NewCoordinator(parent context.Context, store *conversation.Store, deps Deps, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:   store,
		deps:    deps,
		metrics: metrics.DefaultMetrics,
		opening: interview.OpeningInstruction,
		events:  make(chan event, eventBuffer),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logging.WithSession("agent", c.sessionID)
	c.ctx, c.cancel = context.WithCancel(parent)

	go c.loop()
	go func() {
		select {
		case <-c.ctx.Done():
			c.Teardown()
		case <-c.done:
		}
	}()
	return c
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// Controls returns what the UI may currently offer.
func (c *Coordinator) Controls() Controls {
	return c.State().Controls()
}

// Store exposes the conversation for read-only use.
func (c *Coordinator) Store() *conversation.Store { return c.store }

// Done is closed once the loop has stopped.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

// Start begins capturing an answer. Ignored unless Idle.
func (c *Coordinator) Start() error { return c.enqueue(event{kind: evStart}) }

// Stop ends capture and submits the answer. Ignored unless Listening.
func (c *Coordinator) Stop() error { return c.enqueue(event{kind: evStop}) }

// SubmitText answers with typed text instead of speech. Ignored unless Idle.
func (c *Coordinator) SubmitText(text string) error {
	return c.enqueue(event{kind: evText, text: text})
}

// Greet asks the interviewer to open the interview. Ignored unless Idle with an
// empty transcript.
func (c *Coordinator) Greet() error { return c.enqueue(event{kind: evGreet}) }

// Teardown stops capture, cancels in-flight calls, drops a pending reply and stops the
// loop. It blocks until the loop has exited and is safe to call more than once.
func (c *Coordinator) Teardown() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.cancel()
		select {
		case c.events <- event{kind: evTeardown}:
		case <-c.done:
		}
	})
	<-c.done
}

func (c *Coordinator) enqueue(ev event) error {
	if c.closed.Load() {
		return ErrClosed
	}
	select {
	case c.events <- ev:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// post delivers a result from a worker goroutine. It reports false once the loop is gone.
func (c *Coordinator) post(ev event) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}

func (c *Coordinator) loop() {
	defer close(c.done)
	for ev := range c.events {
		if ev.kind == evTeardown {
			c.teardown()
			return
		}
		if c.ctx.Err() != nil {
			// teardown is queued behind this event
			continue
		}
		c.handle(ev)
	}
}

func (c *Coordinator) handle(ev event) {
	switch ev.kind {
	case evStart:
		c.onStart()
	case evStop:
		c.onStop()
	case evText:
		c.onText(ev.text)
	case evGreet:
		c.onGreet()
	case evTranscribed:
		if c.stale(ev, StateTranscribing) {
			return
		}
		c.onTranscribed(ev.text, ev.err)
	case evDelta:
		if c.stale(ev, StateAwaitingModel) {
			return
		}
		c.onDelta(ev.text)
	case evModelDone:
		if c.stale(ev, StateAwaitingModel) {
			return
		}
		c.onModelDone(ev.err)
	case evSpoken:
		if c.stale(ev, StateSpeaking) {
			return
		}
		c.onSpoken(ev.err)
	}
}

func (c *Coordinator) stale(ev event, want State) bool {
	if ev.epoch != c.epoch || c.State() != want {
		c.log.Debug().Str("event", ev.kind.String()).Uint64("epoch", ev.epoch).
			Uint64("current", c.epoch).Msg("dropping stale event")
		return true
	}
	return false
}

func (c *Coordinator) ignored(cmd string) {
	c.log.Debug().Str("command", cmd).Str("state", c.State().String()).Msg("command not enabled in state")
}

func (c *Coordinator) onStart() {
	if c.State() != StateIdle {
		c.ignored("start")
		return
	}
	c.startListening()
}

func (c *Coordinator) startListening() {
	if err := c.deps.Recorder.Start(c.ctx); err != nil {
		c.fail(apperr.New(apperr.KindDevice, "recorder.Start", err))
		return
	}
	c.setState(StateListening)
}

func (c *Coordinator) onStop() {
	if c.State() != StateListening {
		c.ignored("stop")
		return
	}
	rec, err := c.deps.Recorder.Stop(c.ctx)
	if err != nil {
		c.fail(apperr.New(apperr.KindDevice, "recorder.Stop", err))
		return
	}
	if len(rec.Data) == 0 {
		c.fail(apperr.New(apperr.KindTranscription, "recorder.Stop", errors.New("no audio captured")))
		return
	}

	c.setState(StateTranscribing)
	ctx, epoch := c.beginOp()
	go func() {
		text, err := c.deps.Transcriber.Transcribe(ctx, rec.Data, rec.MimeType)
		c.post(event{kind: evTranscribed, epoch: epoch, text: text, err: err})
	}()
}

func (c *Coordinator) onTranscribed(text string, err error) {
	if err == nil && strings.TrimSpace(text) == "" {
		err = errEmptyTranscript
	}
	if err != nil {
		c.fail(apperr.New(apperr.KindTranscription, "transcriber.Transcribe", err))
		return
	}
	c.answer(strings.TrimSpace(text))
}

func (c *Coordinator) onText(text string) {
	if c.State() != StateIdle {
		c.ignored("text")
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		c.fail(apperr.Validation("agent.SubmitText", map[string]string{"text": "Please enter an answer"}))
		return
	}
	c.answer(text)
}

func (c *Coordinator) onGreet() {
	if c.State() != StateIdle || c.store.Len() > 0 {
		c.ignored("greet")
		return
	}
	c.requestReply([]conversation.Message{{Role: conversation.RoleUser, Content: c.opening}})
}

// answer records the user's turn and asks the model for the next one.
func (c *Coordinator) answer(text string) {
	turn, err := c.store.AppendUserTurn(text)
	if err != nil {
		c.fail(apperr.New(apperr.KindModel, "store.AppendUserTurn", err))
		return
	}
	c.metrics.RecordTurnFinalized(string(conversation.RoleUser))
	c.emit(Update{Kind: UpdateTurn, Index: c.store.Len() - 1, Role: turn.Role, Text: turn.DisplayText, Final: true})
	c.requestReply(nil)
}

// requestReply appends the placeholder and streams the reply. ephemeral messages are
// sent after the stored history but never stored.
func (c *Coordinator) requestReply(ephemeral []conversation.Message) {
	ph, err := c.store.AppendPlaceholderAssistantTurn()
	if err != nil {
		c.fail(apperr.New(apperr.KindModel, "store.AppendPlaceholderAssistantTurn", err))
		return
	}
	c.replyIndex = c.store.Len() - 1
	c.reply.Reset()
	c.gotDelta = false
	c.modelStart = time.Now()
	c.emit(Update{Kind: UpdateTurn, Index: c.replyIndex, Role: ph.Role, Text: ph.DisplayText})

	history := append(c.store.PromptHistory(), ephemeral...)
	c.setState(StateAwaitingModel)
	ctx, epoch := c.beginOp()
	go c.streamReply(ctx, epoch, history)
}

func (c *Coordinator) streamReply(ctx context.Context, epoch uint64, history []conversation.Message) {
	stream, err := c.deps.Model.StreamChat(ctx, history)
	if err != nil {
		c.post(event{kind: evModelDone, epoch: epoch, err: err})
		return
	}
	defer stream.Close()
	for {
		delta, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			c.post(event{kind: evModelDone, epoch: epoch})
			return
		}
		if err != nil {
			c.post(event{kind: evModelDone, epoch: epoch, err: err})
			return
		}
		if !c.post(event{kind: evDelta, epoch: epoch, text: delta}) {
			return
		}
	}
}

func (c *Coordinator) onDelta(delta string) {
	if !c.gotDelta {
		c.gotDelta = true
		c.metrics.ModelFirstDelta.Observe(time.Since(c.modelStart).Seconds())
	}
	c.reply.WriteString(delta)
	turn, err := c.store.UpdateTrailingAssistantText(c.reply.String())
	if err != nil {
		c.log.Error().Err(err).Msg("update trailing assistant turn")
		return
	}
	c.emit(Update{Kind: UpdateTurn, Index: c.replyIndex, Role: turn.Role, Text: turn.DisplayText})
}

func (c *Coordinator) onModelDone(err error) {
	full := c.reply.String()
	if err == nil && strings.TrimSpace(full) == "" {
		err = errEmptyReply
	}
	if err != nil {
		c.dropPlaceholder()
		c.fail(apperr.New(apperr.KindModel, "model.StreamChat", err))
		return
	}

	turn, ferr := c.store.FinalizeAssistantTurn(full)
	if ferr != nil {
		c.dropPlaceholder()
		c.fail(apperr.New(apperr.KindModel, "store.FinalizeAssistantTurn", ferr))
		return
	}
	c.metrics.RecordTurnFinalized(string(conversation.RoleAssistant))
	c.emit(Update{Kind: UpdateTurn, Index: c.replyIndex, Role: turn.Role, Text: turn.DisplayText, Final: true})

	c.setState(StateSpeaking)
	ctx, epoch := c.beginOp()
	go func() {
		c.post(event{kind: evSpoken, epoch: epoch, err: c.speak(ctx, full)})
	}()
}

func (c *Coordinator) speak(ctx context.Context, text string) error {
	audio, err := c.deps.Synthesizer.Synthesize(ctx, text)
	if err != nil {
		return apperr.New(apperr.KindSynthesis, "synthesizer.Synthesize", err)
	}
	if err := c.deps.Player.Play(ctx, audio); err != nil {
		return apperr.New(apperr.KindPlayback, "player.Play", err)
	}
	return nil
}

func (c *Coordinator) onSpoken(err error) {
	if err != nil {
		c.fail(err)
		return
	}
	c.endOp()
	if c.autoListen {
		c.startListening()
		return
	}
	c.setState(StateIdle)
}

func (c *Coordinator) dropPlaceholder() {
	if !c.store.Pending() {
		return
	}
	idx, err := c.store.RemoveTrailingAssistantTurn()
	if err != nil {
		c.log.Error().Err(err).Msg("remove placeholder")
		return
	}
	c.emit(Update{Kind: UpdateTurnRemoved, Index: idx})
}

// fail surfaces a recoverable error and returns to Idle.
func (c *Coordinator) fail(err error) {
	c.endOp()
	kind, _ := apperr.KindOf(err)
	msg := "Something went wrong"
	var ae *apperr.Error
	if errors.As(err, &ae) {
		msg = ae.UserMessage()
	}
	c.metrics.RecordTurnError(kind.String())
	c.log.Warn().Err(err).Str("kind", kind.String()).Str("state", c.State().String()).Msg("turn failed")
	c.emit(Update{Kind: UpdateError, ErrKind: kind, Message: msg, Err: err})
	c.setState(StateIdle)
}

func (c *Coordinator) teardown() {
	c.epoch++
	c.endOp()
	if c.State() == StateListening {
		c.deps.Recorder.Abort()
	}
	c.dropPlaceholder()
	c.setState(StateIdle)
	c.log.Info().Int("turns", c.store.Len()).Msg("coordinator torn down")
}

// beginOp starts a new epoch with a cancellable context for the worker.
func (c *Coordinator) beginOp() (context.Context, uint64) {
	c.endOp()
	c.epoch++
	ctx, cancel := context.WithCancel(c.ctx)
	c.opCancel = cancel
	return ctx, c.epoch
}

func (c *Coordinator) endOp() {
	if c.opCancel != nil {
		c.opCancel()
		c.opCancel = nil
	}
}

func (c *Coordinator) setState(next State) {
	c.stateMu.Lock()
	prev := c.state
	c.state = next
	c.stateMu.Unlock()
	if prev == next {
		return
	}
	c.metrics.RecordTransition(prev.String(), next.String())
	c.log.Debug().Str("from", prev.String()).Str("to", next.String()).Msg("state transition")
	c.emit(Update{Kind: UpdateState, State: next, Controls: next.Controls()})
}

func (c *Coordinator) emit(u Update) {
	if c.onUpdate != nil {
		c.onUpdate(u)
	}
}
