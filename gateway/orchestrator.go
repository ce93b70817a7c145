package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/s0mar1/tftai.gg-sub000/complexity"
	apperrors "github.com/s0mar1/tftai.gg-sub000/errors"
	"github.com/s0mar1/tftai.gg-sub000/metric"
	"github.com/s0mar1/tftai.gg-sub000/respcache"
)

// Request is one incoming query.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`

	// Principal identifies the caller for principal-scoped caching.
	// Set by the transport, never by the request body.
	Principal string `json:"-"`
}

// ResponseError is one error in a query response.
type ResponseError struct {
	Message string `json:"message"`
}

// Response is the result of one executed query, keyed by field alias.
type Response struct {
	Data   map[string]json.RawMessage `json:"data,omitempty"`
	Errors []ResponseError            `json:"errors,omitempty"`
}

// Event is the per-request telemetry record emitted after every
// executed query, whatever its outcome.
type Event struct {
	Operation  string
	Hit        bool
	Complexity int
	Depth      int
	DurationMs float64
}

// Orchestrator runs the request pipeline: parse, analyze, gate, consult
// the response cache, resolve misses with fresh per-request loaders,
// write back, emit telemetry. Cache failures are absorbed here (a dead
// cache costs latency, never correctness); backing-fetch failures
// propagate to the caller.
type Orchestrator struct {
	config    Config
	analyzer  *complexity.Analyzer
	cache     *respcache.Cache
	resolvers *resolverSet
	fetcher   Fetcher
	scoped    map[string]bool
	logger    *slog.Logger
	metrics   *metric.Metrics
	telemetry func(Event)
}

// OrchestratorOption configures optional orchestrator collaborators.
type OrchestratorOption func(*Orchestrator)

// WithMetrics records request metrics on the given set.
func WithMetrics(m *metric.Metrics) OrchestratorOption {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithTelemetry registers a hook receiving one Event per request.
func WithTelemetry(fn func(Event)) OrchestratorOption {
	return func(o *Orchestrator) { o.telemetry = fn }
}

// NewOrchestrator wires the pipeline together.
func NewOrchestrator(config Config, analyzer *complexity.Analyzer, cache *respcache.Cache,
	fetcher Fetcher, logger *slog.Logger, opts ...OrchestratorOption) (*Orchestrator, error) {

	if err := config.Validate(); err != nil {
		return nil, apperrors.WrapInvalid(err, "Orchestrator", "NewOrchestrator", "config validation")
	}
	if analyzer == nil || cache == nil || fetcher == nil {
		return nil, apperrors.WrapFatal(fmt.Errorf("analyzer, cache and fetcher are required"),
			"Orchestrator", "NewOrchestrator", "dependency wiring")
	}
	if logger == nil {
		logger = slog.Default()
	}

	scoped := make(map[string]bool, len(config.PrincipalScopedOps))
	for _, op := range config.PrincipalScopedOps {
		scoped[op] = true
	}

	o := &Orchestrator{
		config:    config,
		analyzer:  analyzer,
		cache:     cache,
		resolvers: newResolverSet(fetcher),
		fetcher:   fetcher,
		scoped:    scoped,
		logger:    logger.With("component", "orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Execute runs one query through the full pipeline.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	doc, err := parser.ParseQuery(&ast.Source{Input: req.Query})
	if err != nil {
		return nil, apperrors.WrapInvalid(
			fmt.Errorf("%w: %s", apperrors.ErrMalformedQuery, err),
			"Orchestrator", "Execute", "query parsing")
	}

	op := selectOperation(doc, req.OperationName)
	if op == nil {
		return nil, apperrors.WrapInvalid(
			fmt.Errorf("%w: no operation named %q", apperrors.ErrMalformedQuery, req.OperationName),
			"Orchestrator", "Execute", "operation selection")
	}
	if op.Operation != ast.Query {
		return nil, apperrors.WrapInvalid(
			fmt.Errorf("%w: only queries are supported", apperrors.ErrMalformedQuery),
			"Orchestrator", "Execute", "operation selection")
	}

	res := o.analyzer.AnalyzeOperation(op, doc.Fragments)
	if o.metrics != nil {
		o.metrics.ObserveAnalysis(res.Complexity, res.Depth)
	}

	fields, err := topLevelFields(op)
	if err != nil {
		return nil, err
	}
	label := requestLabel(op, fields)

	if res.Complexity > o.config.MaxComplexity {
		o.reject(label, "complexity", res, start)
		return nil, apperrors.WrapInvalid(
			fmt.Errorf("%w: score %d exceeds limit %d",
				apperrors.ErrQueryTooComplex, res.Complexity, o.config.MaxComplexity),
			"Orchestrator", "Execute", "complexity gate")
	}
	if res.Depth > o.config.MaxDepth {
		o.reject(label, "depth", res, start)
		return nil, apperrors.WrapInvalid(
			fmt.Errorf("%w: depth %d exceeds limit %d",
				apperrors.ErrQueryTooDeep, res.Depth, o.config.MaxDepth),
			"Orchestrator", "Execute", "depth gate")
	}

	// One loader set per request: duplicate fetches issued while
	// resolving the fields below coalesce, and nothing leaks across
	// requests.
	loaders := NewLoaders(o.fetcher, o.config.Batch)

	data := make(map[string]json.RawMessage, len(fields))
	hit := false

	if len(fields) == 1 {
		payload, wasHit, err := o.executeCached(ctx, loaders, fields[0], req, res)
		if err != nil {
			o.observe(label, "error", res, false, start)
			return nil, err
		}
		data[fieldAlias(fields[0])] = payload
		hit = wasHit
	} else {
		// Multi-field queries skip the response cache: entries are
		// keyed per operation, and splicing per-field hits and misses
		// into one response is not worth the complexity. Loader
		// coalescing still spans all fields.
		for _, f := range fields {
			payload, err := o.executeFresh(ctx, loaders, f, req.Variables)
			if err != nil {
				o.observe(label, "error", res, false, start)
				return nil, err
			}
			data[fieldAlias(f)] = payload
		}
	}

	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	o.observe(label, outcome, res, hit, start)

	return &Response{Data: data}, nil
}

// executeCached runs the single-field path: cache lookup, resolve on
// miss, write back with the resolver's tags.
func (o *Orchestrator) executeCached(ctx context.Context, loaders *Loaders, f *ast.Field,
	req Request, res complexity.Result) (json.RawMessage, bool, error) {

	args, err := fieldArgs(f, req.Variables)
	if err != nil {
		return nil, false, err
	}

	principal := ""
	if o.scoped[f.Name] {
		principal = req.Principal
	}

	entry, found, cerr := o.cache.Get(ctx, f.Name, args, principal)
	if cerr != nil {
		o.logger.Warn("cache read failed, treating as miss",
			"operation", f.Name, "error", cerr)
	}
	if found {
		return entry.Payload, true, nil
	}

	payload, tags, err := o.resolve(ctx, loaders, f, args)
	if err != nil {
		return nil, false, err
	}

	serr := o.cache.Set(ctx, f.Name, args, payload, respcache.SetOptions{
		Complexity: res.Complexity,
		Tags:       tags,
		Principal:  principal,
	})
	if serr != nil {
		// The response is already computed; a failed write only costs
		// the next caller a miss.
		o.logger.Warn("cache write failed", "operation", f.Name, "error", serr)
	}

	return payload, false, nil
}

func (o *Orchestrator) executeFresh(ctx context.Context, loaders *Loaders, f *ast.Field,
	vars map[string]any) (json.RawMessage, error) {

	args, err := fieldArgs(f, vars)
	if err != nil {
		return nil, err
	}
	payload, _, err := o.resolve(ctx, loaders, f, args)
	return payload, err
}

func (o *Orchestrator) resolve(ctx context.Context, loaders *Loaders, f *ast.Field,
	args map[string]any) (json.RawMessage, []string, error) {

	fn, ok := o.resolvers.lookup(f.Name)
	if !ok {
		return nil, nil, apperrors.WrapInvalid(
			fmt.Errorf("%w: unknown operation %q", apperrors.ErrMalformedQuery, f.Name),
			"Orchestrator", "resolve", "operation lookup")
	}

	payload, tags, err := fn(ctx, loaders, args)
	if err != nil {
		return nil, nil, err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, apperrors.WrapInvalid(err, "Orchestrator", "resolve", "payload encoding")
	}
	return raw, tags, nil
}

func (o *Orchestrator) reject(label, reason string, res complexity.Result, start time.Time) {
	if o.metrics != nil {
		o.metrics.ObserveRejection(reason)
	}
	o.observe(label, "rejected", res, false, start)
	o.logger.Info("query rejected",
		"operation", label, "reason", reason,
		"complexity", res.Complexity, "depth", res.Depth)
}

func (o *Orchestrator) observe(label, outcome string, res complexity.Result, hit bool, start time.Time) {
	duration := time.Since(start)
	if o.metrics != nil {
		o.metrics.ObserveRequest(label, outcome, duration)
	}
	if o.telemetry != nil {
		o.telemetry(Event{
			Operation:  label,
			Hit:        hit,
			Complexity: res.Complexity,
			Depth:      res.Depth,
			DurationMs: float64(duration) / float64(time.Millisecond),
		})
	}
}

// selectOperation picks the requested operation, or the only one when
// no name is given.
func selectOperation(doc *ast.QueryDocument, name string) *ast.OperationDefinition {
	if name == "" {
		if len(doc.Operations) == 1 {
			return doc.Operations[0]
		}
		return nil
	}
	for _, op := range doc.Operations {
		if op.Name == name {
			return op
		}
	}
	return nil
}

// topLevelFields returns the operation's direct field selections.
// Fragments at the root are not supported: the cache is keyed by
// top-level field name, and root spreads would hide it.
func topLevelFields(op *ast.OperationDefinition) ([]*ast.Field, error) {
	fields := make([]*ast.Field, 0, len(op.SelectionSet))
	for _, sel := range op.SelectionSet {
		f, ok := sel.(*ast.Field)
		if !ok {
			return nil, apperrors.WrapInvalid(
				fmt.Errorf("%w: fragments are not supported at the query root", apperrors.ErrMalformedQuery),
				"Orchestrator", "topLevelFields", "selection validation")
		}
		fields = append(fields, f)
	}
	if len(fields) == 0 {
		return nil, apperrors.WrapInvalid(
			fmt.Errorf("%w: empty selection set", apperrors.ErrMalformedQuery),
			"Orchestrator", "topLevelFields", "selection validation")
	}
	return fields, nil
}

// fieldArgs evaluates a field's arguments against the request
// variables.
func fieldArgs(f *ast.Field, vars map[string]any) (map[string]any, error) {
	if len(f.Arguments) == 0 {
		return nil, nil
	}
	args := make(map[string]any, len(f.Arguments))
	for _, arg := range f.Arguments {
		v, err := arg.Value.Value(vars)
		if err != nil {
			return nil, apperrors.WrapInvalid(
				fmt.Errorf("%w: argument %q: %s", apperrors.ErrMalformedQuery, arg.Name, err),
				"Orchestrator", "fieldArgs", "argument evaluation")
		}
		args[arg.Name] = v
	}
	return args, nil
}

func fieldAlias(f *ast.Field) string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

func requestLabel(op *ast.OperationDefinition, fields []*ast.Field) string {
	if len(fields) == 1 {
		return fields[0].Name
	}
	if op.Name != "" {
		return op.Name
	}
	return "multi"
}
