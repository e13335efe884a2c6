// Typewriter reveal: timing policy and engine.
//
// PlanReveal is the pure policy mapping response length and shape to a
// (tick interval, chunk size) pair. The engine runs one timer-driven job per
// message id, held in a map owned by the engine instance; starting a job for
// an id that already has one cancels the old timer first, which gives
// last-writer-wins semantics when a regeneration races a prior reveal.
package chat

import (
	"regexp"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kchalkias/go-chat-client/internal/metrics"
)

// Reveal timing constants. Long responses are paced so the whole reveal
// lands within targetTotalDuration no matter how much text arrived; short
// ones keep the default character feel.
const (
	defaultTickInterval = 30 * time.Millisecond
	minTickInterval     = 16 * time.Millisecond
	defaultChunkSize    = 1

	shortThreshold = 160  // runes; below this the defaults apply untouched
	longThreshold  = 1200 // runes; at or above this the adaptive pacing kicks in

	targetTotalDuration = 4 * time.Second
	minChunkSize        = 2
	maxChunkSize        = 48

	// codeBlockThreshold is the combined fenced-code length above which the
	// chunk size is scaled up; code should not visibly type rune by rune.
	codeBlockThreshold = 240
	codeChunkScale     = 1.5
)

// fencedCodeRE matches fenced code blocks, including unterminated trailing
// fences.
var fencedCodeRE = regexp.MustCompile("(?s)```.*?(```|$)")

// RevealTiming is the output of the animation policy.
type RevealTiming struct {
	TickInterval time.Duration
	ChunkSize    int
}

// PlanReveal maps content to reveal pacing:
//
//   - Below shortThreshold runes: default tick and chunk (rune-by-rune).
//   - Between the thresholds: default chunk at the fastest tick.
//   - At or above longThreshold: chunk = ceil(len/targetTicks) where
//     targetTicks = ceil(targetTotalDuration/minTickInterval), clamped to
//     [minChunkSize, maxChunkSize], so the reveal finishes within the
//     wall-clock budget regardless of length.
//
// Content dominated by fenced code blocks gets its chunk scaled by
// codeChunkScale, re-clamped.
func PlanReveal(content string) RevealTiming {
	runes := []rune(content)
	n := len(runes)

	t := RevealTiming{TickInterval: defaultTickInterval, ChunkSize: defaultChunkSize}
	switch {
	case n < shortThreshold:
		return t
	case n < longThreshold:
		t.TickInterval = minTickInterval
	default:
		targetTicks := ceilDiv(int(targetTotalDuration), int(minTickInterval))
		t.TickInterval = minTickInterval
		t.ChunkSize = clamp(ceilDiv(n, targetTicks), minChunkSize, maxChunkSize)
	}

	if codeBlockLength(content) > codeBlockThreshold {
		t.ChunkSize = clamp(int(float64(t.ChunkSize)*codeChunkScale+0.5), minChunkSize, maxChunkSize)
	}
	return t
}

// codeBlockLength returns the combined rune length of fenced code blocks.
func codeBlockLength(content string) int {
	total := 0
	for _, block := range fencedCodeRE.FindAllString(content, -1) {
		total += len([]rune(block))
	}
	return total
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// job is one running reveal; closing stop cancels it.
type job struct {
	stop chan struct{}
}

// AnimationEngine maintains one independent reveal job per message id and
// writes revealed prefixes through the state manager. The job map is private
// to the engine instance; lifecycle is insert-on-start,
// remove-on-complete-or-superseded.
type AnimationEngine struct {
	states *StateManager

	mu   sync.Mutex
	jobs map[string]*job
}

// NewAnimationEngine constructs an engine writing through states.
func NewAnimationEngine(states *StateManager) *AnimationEngine {
	return &AnimationEngine{
		states: states,
		jobs:   make(map[string]*job),
	}
}

// Start transitions the message into the animating state and begins
// revealing full at the pace PlanReveal chose. An existing job for the same
// id is cancelled first.
func (e *AnimationEngine) Start(id, full string) {
	timing := PlanReveal(full)

	e.mu.Lock()
	if old, ok := e.jobs[id]; ok {
		close(old.stop)
	} else {
		metrics.AnimationJobs.Inc()
	}
	j := &job{stop: make(chan struct{})}
	e.jobs[id] = j
	e.mu.Unlock()

	e.states.HandleRegeneration(id, full)

	log.Debug().
		Str("message_id", id).
		Int("chunk", timing.ChunkSize).
		Dur("tick", timing.TickInterval).
		Int("length", len(full)).
		Msg("reveal started")

	go e.run(id, full, timing, j)
}

// Stop cancels the job for id, if any, leaving the message in whatever
// state it had reached.
func (e *AnimationEngine) Stop(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if j, ok := e.jobs[id]; ok {
		close(j.stop)
		delete(e.jobs, id)
		metrics.AnimationJobs.Dec()
	}
}

// StopAll cancels every running job (process-wide reset).
func (e *AnimationEngine) StopAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, j := range e.jobs {
		close(j.stop)
		delete(e.jobs, id)
		metrics.AnimationJobs.Dec()
	}
}

// Running reports whether a job currently exists for id.
func (e *AnimationEngine) Running(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.jobs[id]
	return ok
}

// run advances the reveal cursor each tick until the end of the text or
// cancellation. Whitespace runs are consumed whole before the chunk advance,
// so the reveal never visibly pauses mid-indentation.
func (e *AnimationEngine) run(id, full string, timing RevealTiming, j *job) {
	runes := []rune(full)
	cursor := 0

	ticker := time.NewTicker(timing.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-j.stop:
			return
		case <-ticker.C:
		}

		cursor = advance(runes, cursor, timing.ChunkSize)
		e.states.UpdateStreamingContent(id, string(runes[:cursor]))

		if cursor >= len(runes) {
			e.states.MarkCompleted(id)
			e.finish(id, j)
			return
		}
	}
}

// finish removes the job entry unless it has already been superseded by a
// newer job for the same id.
func (e *AnimationEngine) finish(id string, j *job) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cur, ok := e.jobs[id]; ok && cur == j {
		delete(e.jobs, id)
		metrics.AnimationJobs.Dec()
	}
}

// advance moves the cursor through any whitespace run in one step, then by
// chunk runes.
func advance(runes []rune, cursor, chunk int) int {
	for cursor < len(runes) && isSpace(runes[cursor]) {
		cursor++
	}
	cursor += chunk
	if cursor > len(runes) {
		cursor = len(runes)
	}
	return cursor
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r':
		return true
	}
	return false
}
