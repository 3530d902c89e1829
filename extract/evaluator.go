package extract

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/richinsley/comfyparams/graphapi"
)

const DefaultMaxDepth = 1000

// EntryTypes lists the node types that extraction starts from.
type EntryTypes struct {
	Samplers []string
	Loras    []string
	ClipSkip []string
}

// DefaultEntryTypes returns the entry types understood by the built-in processors.
func DefaultEntryTypes() EntryTypes {
	return EntryTypes{
		Samplers: []string{TypeKSampler, TypeKSamplerAdvanced},
		Loras:    []string{TypeLoraLoader, TypeLoraManagerLoader},
		ClipSkip: []string{TypeCLIPSetLastLayer},
	}
}

type Option func(*Evaluator)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithEntryTypes(entries EntryTypes) Option {
	return func(e *Evaluator) {
		e.entries = entries
	}
}

// WithMaxDepth bounds the length of a reference chain. Nodes deeper than this yield nothing.
func WithMaxDepth(depth int) Option {
	return func(e *Evaluator) {
		if depth > 0 {
			e.maxDepth = depth
		}
	}
}

// Evaluator resolves node outputs of one workflow at a time.
// Its cache and cycle state belong to the current Parse call; use one Evaluator per goroutine.
type Evaluator struct {
	registry *Registry
	entries  EntryTypes
	maxDepth int
	logger   *slog.Logger

	log        *slog.Logger
	workflow   *graphapi.Workflow
	cache      map[string]interface{}
	inProgress map[string]struct{}
}

func NewEvaluator(registry *Registry, opts ...Option) *Evaluator {
	if registry == nil {
		registry = NewRegistry()
	}
	e := &Evaluator{
		registry: registry,
		entries:  DefaultEntryTypes(),
		maxDepth: DefaultMaxDepth,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.logger
	return e
}

// Load makes wf the evaluated workflow and clears the cache and cycle state.
func (e *Evaluator) Load(wf *graphapi.Workflow) {
	e.workflow = wf
	e.cache = make(map[string]interface{})
	e.inProgress = make(map[string]struct{})
	e.log = e.logger.With("parse_id", uuid.NewString())
}

// Workflow returns the workflow currently loaded.
func (e *Evaluator) Workflow() *graphapi.Workflow {
	return e.workflow
}

// ResolveInput returns the literal stored at input name of node nodeID, or the
// computed output of the node it references.
func (e *Evaluator) ResolveInput(nodeID, name string) interface{} {
	if e.workflow == nil {
		return nil
	}
	node := e.workflow.GetNodeById(nodeID)
	if node == nil {
		return nil
	}
	v, ok := node.Input(name)
	if !ok {
		return nil
	}
	if ref, ok := graphapi.AsReference(v); ok {
		return e.EvaluateNode(ref.NodeID)
	}
	return v
}

// EvaluateNode computes the output of nodeID, at most once per Parse call.
// Missing nodes, unknown types and cycles all yield nil.
func (e *Evaluator) EvaluateNode(nodeID string) interface{} {
	if e.workflow == nil {
		return nil
	}
	if v, ok := e.cache[nodeID]; ok {
		return v
	}
	if _, ok := e.inProgress[nodeID]; ok {
		e.log.Warn("circular reference", "node", nodeID)
		return nil
	}
	if len(e.inProgress) >= e.maxDepth {
		e.log.Warn("reference chain too deep", "node", nodeID, "max depth", e.maxDepth)
		return nil
	}

	e.inProgress[nodeID] = struct{}{}
	defer delete(e.inProgress, nodeID)

	// structural absence is not cached, the outcome cannot change within a parse
	node := e.workflow.GetNodeById(nodeID)
	if node == nil {
		e.log.Debug("referenced node not found", "node", nodeID)
		return nil
	}
	if node.ClassType == "" {
		e.log.Debug("node has no type", "node", nodeID)
		return nil
	}
	factory, ok := e.registry.Lookup(node.ClassType)
	if !ok {
		e.log.Debug("no processor for node type", "node", nodeID, "node type", node.ClassType)
		return nil
	}

	value, err := e.compute(factory(nodeID, node, e.workflow))
	if err != nil {
		e.log.Error("processor failed", "node", nodeID, "node type", node.ClassType, "error", err)
		value = nil
	}
	e.cache[nodeID] = value
	return value
}

func (e *Evaluator) compute(p Processor) (value interface{}, err error) {
	if p == nil {
		return nil, nil
	}
	defer func() {
		if r := recover(); r != nil {
			value = nil
			err = fmt.Errorf("processor panic: %v", r)
		}
	}()
	return p.Compute(e)
}

// FindEntryNodes returns the ids of the nodes with type typeName in workflow order.
func (e *Evaluator) FindEntryNodes(typeName string) []string {
	return e.findEntries([]string{typeName})
}

func (e *Evaluator) findEntries(types []string) []string {
	retv := make([]string, 0)
	if e.workflow == nil {
		return retv
	}
	wanted := make(map[string]bool, len(types))
	for _, t := range types {
		wanted[t] = true
	}
	for _, id := range e.workflow.Order {
		n := e.workflow.Nodes[id]
		if n != nil && wanted[n.ClassType] {
			retv = append(retv, id)
		}
	}
	return retv
}

// Parse evaluates the entry nodes of wf and merges their outputs into one Result.
// Later entry nodes overwrite earlier ones, in workflow order.
func (e *Evaluator) Parse(wf *graphapi.Workflow) *Result {
	res := newResult()
	if wf == nil {
		return res
	}
	e.Load(wf)

	for _, id := range e.findEntries(e.entries.Samplers) {
		params, ok := e.EvaluateNode(id).(map[string]interface{})
		if !ok {
			continue
		}
		for k, v := range params {
			if !isParamKey(k) {
				continue
			}
			if s, ok := Stringify(v); ok {
				res.GenParams[k] = s
			}
		}
	}

	stacks := make([]string, 0)
	for _, id := range e.findEntries(e.entries.Loras) {
		if stack := stackString(e.EvaluateNode(id)); stack != "" {
			stacks = append(stacks, stack)
		}
	}
	res.Loras = joinNonEmpty(stacks, " ")

	for _, id := range e.findEntries(e.entries.ClipSkip) {
		m, ok := e.EvaluateNode(id).(map[string]interface{})
		if !ok {
			continue
		}
		if s, ok := Stringify(m[ParamClipSkip]); ok && s != "" {
			res.GenParams[ParamClipSkip] = s
		}
	}

	e.log.Debug("parsed workflow", "nodes", len(wf.Order), "params", len(res.GenParams))
	return res
}

// ParseJSON decodes data as a workflow and parses it. Malformed input yields an empty Result.
func (e *Evaluator) ParseJSON(data []byte) *Result {
	wf, err := graphapi.NewWorkflowFromJsonBytes(data)
	if err != nil {
		e.logger.Warn("cannot decode workflow", "error", err)
		return newResult()
	}
	return e.Parse(wf)
}

// ParseValue parses a workflow given in any of the accepted shapes: *graphapi.Workflow,
// map[string]interface{}, JSON text as []byte or string, or an io.Reader of JSON text.
// Undecodable input yields an empty Result; an argument of any other type is an error.
func (e *Evaluator) ParseValue(v interface{}) (*Result, error) {
	switch value := v.(type) {
	case *graphapi.Workflow:
		return e.Parse(value), nil
	case map[string]interface{}:
		wf, err := graphapi.NewWorkflowFromMap(value)
		if err != nil {
			e.logger.Warn("cannot decode workflow", "error", err)
			return newResult(), nil
		}
		return e.Parse(wf), nil
	case []byte:
		return e.ParseJSON(value), nil
	case string:
		return e.ParseJSON([]byte(value)), nil
	case io.Reader:
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(value); err != nil {
			return nil, err
		}
		return e.ParseJSON(buf.Bytes()), nil
	}
	return nil, fmt.Errorf("%w: unsupported argument type %T", graphapi.ErrNotAGraph, v)
}

// Parse extracts parameters from wf using the built-in processors.
func Parse(wf *graphapi.Workflow) *Result {
	return NewEvaluator(DefaultRegistry()).Parse(wf)
}

// ParseJSON extracts parameters from JSON text using the built-in processors.
func ParseJSON(data []byte) *Result {
	return NewEvaluator(DefaultRegistry()).ParseJSON(data)
}
