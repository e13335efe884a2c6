package chat

import (
	"strings"
	"testing"
	"time"
)

func TestPlanReveal_ShortContent_Defaults(t *testing.T) {
	timing := PlanReveal("short reply")
	if timing.TickInterval != defaultTickInterval {
		t.Fatalf("tick = %v, want %v", timing.TickInterval, defaultTickInterval)
	}
	if timing.ChunkSize != defaultChunkSize {
		t.Fatalf("chunk = %d, want %d", timing.ChunkSize, defaultChunkSize)
	}
}

func TestPlanReveal_MediumContent_FastTickDefaultChunk(t *testing.T) {
	timing := PlanReveal(strings.Repeat("a", shortThreshold+10))
	if timing.TickInterval != minTickInterval {
		t.Fatalf("tick = %v, want %v", timing.TickInterval, minTickInterval)
	}
	if timing.ChunkSize != defaultChunkSize {
		t.Fatalf("chunk = %d, want %d", timing.ChunkSize, defaultChunkSize)
	}
}

func TestPlanReveal_LongContent_BoundedDuration(t *testing.T) {
	// Regardless of length, the planned reveal must finish within a small
	// multiple of the target duration (chunk clamping can stretch it for
	// extreme lengths, never below the bound for realistic ones).
	for _, n := range []int{longThreshold, 5000, 20000} {
		timing := PlanReveal(strings.Repeat("a", n))
		if timing.TickInterval != minTickInterval {
			t.Fatalf("n=%d: tick = %v, want %v", n, timing.TickInterval, minTickInterval)
		}
		if timing.ChunkSize < minChunkSize || timing.ChunkSize > maxChunkSize {
			t.Fatalf("n=%d: chunk %d out of [%d,%d]", n, timing.ChunkSize, minChunkSize, maxChunkSize)
		}
		ticks := ceilDiv(n, timing.ChunkSize)
		total := time.Duration(ticks) * timing.TickInterval
		if timing.ChunkSize < maxChunkSize && total > targetTotalDuration+time.Second {
			t.Fatalf("n=%d: planned reveal %v exceeds budget", n, total)
		}
	}
}

func TestPlanReveal_ChunkMonotonicInLength(t *testing.T) {
	prev := 0
	for _, n := range []int{longThreshold, 2 * longThreshold, 4 * longThreshold} {
		chunk := PlanReveal(strings.Repeat("a", n)).ChunkSize
		if chunk < prev {
			t.Fatalf("chunk shrank with longer content: %d after %d", chunk, prev)
		}
		prev = chunk
	}
}

func TestPlanReveal_CodeHeavyContent_ScalesChunk(t *testing.T) {
	code := "```\n" + strings.Repeat("x := 1\n", 60) + "```"
	padded := code + strings.Repeat(" prose", 20)

	base := PlanReveal(strings.Repeat("a", len([]rune(padded))))
	withCode := PlanReveal(padded)
	if withCode.ChunkSize <= base.ChunkSize {
		t.Fatalf("code-heavy chunk %d not scaled past %d", withCode.ChunkSize, base.ChunkSize)
	}
}

func TestCodeBlockLength(t *testing.T) {
	cases := map[string]struct {
		in   string
		want int
	}{
		"none":         {"just prose", 0},
		"one block":    {"a ```code``` b", len("```code```")},
		"unterminated": {"a ```dangling", len("```dangling")},
		"two blocks":   {"```x``` mid ```y```", len("```x```") + len("```y```")},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if got := codeBlockLength(tc.in); got != tc.want {
				t.Fatalf("codeBlockLength(%q) = %d, want %d", tc.in, got, tc.want)
			}
		})
	}
}

func TestAdvance_SkipsWhitespaceRuns(t *testing.T) {
	runes := []rune("a   \t\n bcd")
	// Cursor at the whitespace run: one advance consumes the run plus chunk.
	got := advance(runes, 1, 2)
	if string(runes[:got]) != "a   \t\n bc" {
		t.Fatalf("advance through whitespace = %q", string(runes[:got]))
	}
	// Never past the end.
	if end := advance(runes, len(runes)-1, 10); end != len(runes) {
		t.Fatalf("advance past end = %d", end)
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not reached within %v", d)
}

func TestAnimationEngine_RevealsToCompletion(t *testing.T) {
	states := NewStateManager()
	states.CreateLoadingMessage("a1")
	e := NewAnimationEngine(states)

	e.Start("a1", "hello world")

	waitFor(t, 5*time.Second, func() bool {
		m, _ := states.Get("a1")
		_, done := m.State.(Completed)
		return done
	})

	m, _ := states.Get("a1")
	if m.Content != "hello world" {
		t.Fatalf("final content = %q", m.Content)
	}
	waitFor(t, time.Second, func() bool { return !e.Running("a1") })
}

func TestAnimationEngine_RevealedContentIsAlwaysAPrefix(t *testing.T) {
	states := NewStateManager()
	states.CreateLoadingMessage("a1")
	e := NewAnimationEngine(states)

	const full = "the quick brown fox jumps over the lazy dog"
	e.Start("a1", full)

	done := false
	for deadline := time.Now().Add(5 * time.Second); time.Now().Before(deadline) && !done; {
		m, _ := states.Get("a1")
		if !strings.HasPrefix(full, m.Content) {
			t.Fatalf("observed content %q is not a prefix of the full text", m.Content)
		}
		_, done = m.State.(Completed)
		time.Sleep(3 * time.Millisecond)
	}
	if !done {
		t.Fatalf("reveal did not complete")
	}
}

func TestAnimationEngine_StartSupersedesRunningJob(t *testing.T) {
	states := NewStateManager()
	states.CreateLoadingMessage("a1")
	e := NewAnimationEngine(states)

	// A long first reveal, immediately superseded.
	e.Start("a1", strings.Repeat("first ", 500))
	e.Start("a1", "second")

	waitFor(t, 5*time.Second, func() bool {
		m, _ := states.Get("a1")
		_, done := m.State.(Completed)
		return done && m.Content == "second"
	})
	waitFor(t, time.Second, func() bool { return !e.Running("a1") })
}

func TestAnimationEngine_StopLeavesPartialContent(t *testing.T) {
	states := NewStateManager()
	states.CreateLoadingMessage("a1")
	e := NewAnimationEngine(states)

	e.Start("a1", strings.Repeat("slow reveal ", 200))
	waitFor(t, 2*time.Second, func() bool {
		m, _ := states.Get("a1")
		return m.Content != ""
	})

	e.Stop("a1")
	if e.Running("a1") {
		t.Fatalf("job must be gone after Stop")
	}

	m, _ := states.Get("a1")
	if _, ok := m.State.(Animating); !ok {
		t.Fatalf("stopped message should stay animating, got %s", m.State.Name())
	}
}

func TestAnimationEngine_StopAll(t *testing.T) {
	states := NewStateManager()
	states.CreateLoadingMessage("a1")
	states.CreateLoadingMessage("a2")
	e := NewAnimationEngine(states)

	e.Start("a1", strings.Repeat("one ", 500))
	e.Start("a2", strings.Repeat("two ", 500))
	e.StopAll()

	if e.Running("a1") || e.Running("a2") {
		t.Fatalf("expected no running jobs after StopAll")
	}
}

func TestAnimationEngine_IndependentJobs(t *testing.T) {
	states := NewStateManager()
	states.CreateLoadingMessage("a1")
	states.CreateLoadingMessage("a2")
	e := NewAnimationEngine(states)

	e.Start("a1", "short one")
	e.Start("a2", "short two")

	waitFor(t, 5*time.Second, func() bool {
		m1, _ := states.Get("a1")
		m2, _ := states.Get("a2")
		_, d1 := m1.State.(Completed)
		_, d2 := m2.State.(Completed)
		return d1 && d2
	})

	m1, _ := states.Get("a1")
	m2, _ := states.Get("a2")
	if m1.Content != "short one" || m2.Content != "short two" {
		t.Fatalf("cross-talk between jobs: %q / %q", m1.Content, m2.Content)
	}
}
