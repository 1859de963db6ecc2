// Package harness runs scenario files end to end against the loopback
// transport and captures the firing trace for golden comparison.
//
// Runs are fully deterministic: correlation ids come from a sequence
// generator, the loopback transport delivers in FIFO order, and the
// scheduler resolves ties by declaration order. Two runs of the same
// scenario against the same handlers therefore produce identical traces,
// which is what makes byte-level golden files viable.
package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/tessen-io/stagehand/internal/engine"
	"github.com/tessen-io/stagehand/internal/scenario"
	"github.com/tessen-io/stagehand/internal/transport"
)

// Scenario describes one end-to-end run: a scenario file plus the scripted
// system it runs against.
type Scenario struct {
	// Name keys the golden file for this run.
	Name string

	// Path is the scenario YAML file to load.
	Path string

	// SearchPath lists extra directories searched for subroutine files.
	SearchPath []string

	// Handlers scripts cast members on the loopback transport. Cast
	// members without a handler silently drop traffic sent to them.
	Handlers map[string]transport.Handler

	// Inject queues unsolicited messages before the run starts.
	Inject []engine.Message
}

// Result carries the verdict and the firing trace of one run.
type Result struct {
	Verdict *engine.Verdict
	Trace   []engine.TraceEntry
}

// traceLog is an in-memory TraceSink.
type traceLog struct {
	entries []engine.TraceEntry
}

func (l *traceLog) Record(e engine.TraceEntry) {
	l.entries = append(l.entries, e)
}

// Run loads, builds and executes the scenario to quiescence.
//
// A fail verdict is a normal Result; only load, build and fatal run errors
// (unbound variable, transport failure) are returned as errors.
func Run(sc *Scenario) (*Result, error) {
	unit, err := scenario.NewLoader(sc.SearchPath...).Load(sc.Path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", sc.Path, err)
	}
	graph, participants, err := scenario.Build(unit)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", sc.Path, err)
	}

	lb := transport.NewLoopback()
	for actor, h := range sc.Handlers {
		lb.Handle(actor, h)
	}
	lb.Inject(sc.Inject...)

	log := &traceLog{}
	sched := engine.NewScheduler(graph, lb, participants,
		engine.WithCorrelation(engine.NewSequenceGenerator()),
		engine.WithTraceSink(log),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	verdict, err := sched.Run(context.Background())
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", sc.Path, err)
	}
	return &Result{Verdict: verdict, Trace: log.entries}, nil
}
