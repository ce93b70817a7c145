// Package complexity estimates the cost of parsed GraphQL queries before
// execution. The analyzer is a pure function over the query AST: it
// computes a weighted complexity score and the maximum selection depth,
// and leaves rejection policy to the caller so the same traversal can
// feed both a hard validation gate and a soft telemetry-only monitor.
package complexity

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/vektah/gqlparser/v2/ast"
)

// maxFanOut bounds the per-field fan-out taken from limit-style
// arguments, so a single absurd argument cannot overflow the score.
const maxFanOut = 1000

// rootType is the parent type name used for top-level selections.
const rootType = "Query"

// Result holds the analyzer's verdict for one operation.
type Result struct {
	Complexity int
	Depth      int
}

// Analyzer computes complexity and depth for parsed operations. It never
// mutates shared state and never rejects a query itself.
type Analyzer struct {
	table    *WeightTable
	sentinel int
	logger   *slog.Logger
}

// NewAnalyzer creates an analyzer. sentinelComplexity is the score
// returned when a query cannot be analyzed (malformed AST, fragment
// cycle); it should exceed the caller's rejection threshold so analysis
// failures fail closed.
func NewAnalyzer(table *WeightTable, sentinelComplexity int, logger *slog.Logger) *Analyzer {
	if table == nil {
		table = NewWeightTable(1, 10, nil)
	}
	if sentinelComplexity <= 0 {
		sentinelComplexity = 1 << 30
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Analyzer{
		table:    table,
		sentinel: sentinelComplexity,
		logger:   logger.With("component", "complexity-analyzer"),
	}
}

// Analyze scores the first operation of a parsed query document.
func (a *Analyzer) Analyze(doc *ast.QueryDocument) Result {
	if doc == nil || len(doc.Operations) == 0 {
		a.logger.Warn("analysis failed closed", "reason", "empty document")
		return a.sentinelResult()
	}
	return a.AnalyzeOperation(doc.Operations[0], doc.Fragments)
}

// AnalyzeOperation scores a single operation, resolving fragment spreads
// against the given fragment list.
func (a *Analyzer) AnalyzeOperation(op *ast.OperationDefinition, fragments ast.FragmentDefinitionList) (res Result) {
	// A traversal bug must not take down the request path: fail closed
	// to the sentinel instead.
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("analysis panicked, failing closed", "panic", fmt.Sprint(r))
			res = a.sentinelResult()
		}
	}()

	if op == nil || len(op.SelectionSet) == 0 {
		a.logger.Warn("analysis failed closed", "reason", "empty selection set")
		return a.sentinelResult()
	}

	frags := make(map[string]*ast.FragmentDefinition, len(fragments))
	for _, f := range fragments {
		frags[f.Name] = f
	}

	w := walker{table: a.table, fragments: frags, visiting: make(map[string]bool)}
	cost, depth, err := w.walk(op.SelectionSet, rootType, 1)
	if err != nil {
		a.logger.Warn("analysis failed closed", "reason", err.Error())
		return a.sentinelResult()
	}

	return Result{Complexity: cost, Depth: depth}
}

func (a *Analyzer) sentinelResult() Result {
	return Result{Complexity: a.sentinel, Depth: 0}
}

// walker carries traversal state: the fragment table and the set of
// fragments on the current path (cycle detection).
type walker struct {
	table     *WeightTable
	fragments map[string]*ast.FragmentDefinition
	visiting  map[string]bool
}

// walk scores one selection set whose fields sit at the given depth.
// It returns the summed complexity and the maximum depth reached.
func (w *walker) walk(sel ast.SelectionSet, parentType string, depth int) (int, int, error) {
	cost := 0
	maxDepth := depth

	for _, selection := range sel {
		switch s := selection.(type) {
		case *ast.Field:
			c, d, err := w.field(s, parentType, depth)
			if err != nil {
				return 0, 0, err
			}
			cost += c
			maxDepth = max(maxDepth, d)

		case *ast.InlineFragment:
			// Type conditions narrow, they do not nest.
			c, d, err := w.walk(s.SelectionSet, parentType, depth)
			if err != nil {
				return 0, 0, err
			}
			cost += c
			maxDepth = max(maxDepth, d)

		case *ast.FragmentSpread:
			frag, ok := w.fragments[s.Name]
			if ok && w.visiting[s.Name] {
				return 0, 0, fmt.Errorf("fragment cycle through %q", s.Name)
			}
			if !ok {
				return 0, 0, fmt.Errorf("undefined fragment %q", s.Name)
			}
			w.visiting[s.Name] = true
			c, d, err := w.walk(frag.SelectionSet, parentType, depth)
			delete(w.visiting, s.Name)
			if err != nil {
				return 0, 0, err
			}
			cost += c
			maxDepth = max(maxDepth, d)

		default:
			return 0, 0, fmt.Errorf("unexpected selection node %T", selection)
		}
	}

	return cost, maxDepth, nil
}

// field scores one field: its weight plus the fan-out-scaled cost of its
// children.
func (w *walker) field(f *ast.Field, parentType string, depth int) (int, int, error) {
	if f == nil {
		return 0, 0, fmt.Errorf("nil field node")
	}

	weight := w.table.Weight(parentType, f.Name)

	if len(f.SelectionSet) == 0 {
		return weight, depth, nil
	}

	childCost, childDepth, err := w.walk(f.SelectionSet, f.Name, depth+1)
	if err != nil {
		return 0, 0, err
	}

	return weight + fanOut(f)*childCost, childDepth, nil
}

// fanOut estimates how many child objects a field resolves to, from a
// limit-style integer argument when present, clamped to maxFanOut.
func fanOut(f *ast.Field) int {
	for _, arg := range f.Arguments {
		switch arg.Name {
		case "limit", "first", "count", "top":
		default:
			continue
		}
		if arg.Value == nil || arg.Value.Kind != ast.IntValue {
			continue
		}
		n, err := strconv.Atoi(arg.Value.Raw)
		if err != nil || n < 1 {
			continue
		}
		return min(n, maxFanOut)
	}
	return 1
}
