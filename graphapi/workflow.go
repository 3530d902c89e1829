package graphapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
)

var ErrNotAGraph = errors.New("workflow is not a mapping of node ids to nodes")

// Workflow is the API format of a ComfyUI prompt: a mapping of node id to node.
// Order holds the node ids in document order and is the workflow's iteration order.
type Workflow struct {
	Nodes map[string]*Node
	Order []string
}

// Node is a single entry of a Workflow.
type Node struct {
	ID string `json:"-"`
	// Inputs can be one of:
	//	json.Number, string, bool, nil
	//	[]interface{} where: [0] is the string (or number) id of the source node
	//					     [1] is the integer output slot index
	//	map[string]interface{} for structured widget values
	Inputs    map[string]interface{} `json:"inputs"`
	ClassType string                 `json:"class_type"`
}

// Input returns the raw value stored under name.
func (n *Node) Input(name string) (interface{}, bool) {
	if n.Inputs == nil {
		return nil, false
	}
	v, ok := n.Inputs[name]
	return v, ok
}

// Reference is an input that points at the output of another node.
type Reference struct {
	NodeID string
	Slot   int
}

// AsReference reports whether v is a [node_id, slot] pair and returns it.
func AsReference(v interface{}) (Reference, bool) {
	pair, ok := v.([]interface{})
	if !ok || len(pair) != 2 {
		return Reference{}, false
	}

	var ref Reference
	switch id := pair[0].(type) {
	case string:
		ref.NodeID = id
	case float64:
		ref.NodeID = strconv.FormatFloat(id, 'f', -1, 64)
	case json.Number:
		ref.NodeID = id.String()
	default:
		return Reference{}, false
	}

	switch slot := pair[1].(type) {
	case float64:
		ref.Slot = int(slot)
	case json.Number:
		i, err := slot.Int64()
		if err != nil {
			return Reference{}, false
		}
		ref.Slot = int(i)
	default:
		return Reference{}, false
	}
	return ref, true
}

func (w *Workflow) GetNodeById(id string) *Node {
	val, ok := w.Nodes[id]
	if ok {
		return val
	}
	return nil
}

// GetNodesWithType retrieves all nodes in the workflow that match a specified type,
// in workflow order.
func (w *Workflow) GetNodesWithType(nodeType string) []*Node {
	retv := make([]*Node, 0)
	for _, id := range w.Order {
		n := w.Nodes[id]
		if n != nil && n.ClassType == nodeType {
			retv = append(retv, n)
		}
	}
	return retv
}

func (w *Workflow) add(n *Node) {
	if _, exists := w.Nodes[n.ID]; !exists {
		w.Order = append(w.Order, n.ID)
	}
	w.Nodes[n.ID] = n
}

// UnmarshalJSON decodes the node mapping while keeping the key order of the document.
func (w *Workflow) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))

	t, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := t.(json.Delim); !ok || d != '{' {
		return ErrNotAGraph
	}

	w.Nodes = make(map[string]*Node)
	w.Order = make([]string, 0)
	for dec.More() {
		keyToken, err := dec.Token()
		if err != nil {
			return err
		}
		id := keyToken.(string)

		raw := json.RawMessage{}
		if err := dec.Decode(&raw); err != nil {
			return err
		}

		node, err := decodeNode(id, raw)
		if err != nil {
			slog.Debug("skipping malformed workflow entry", "node", id, "error", err)
			continue
		}
		w.add(node)
	}

	if _, err := dec.Token(); err != nil { // consume closing brace
		return err
	}
	return nil
}

// MarshalJSON writes the nodes back in workflow order.
func (w *Workflow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range w.Order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		node, err := json.Marshal(w.Nodes[id])
		if err != nil {
			return nil, err
		}
		buf.Write(node)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func decodeNode(id string, raw json.RawMessage) (*Node, error) {
	var tmp struct {
		ClassType *string         `json:"class_type"`
		Type      *string         `json:"type"`
		Inputs    json.RawMessage `json:"inputs"`
	}
	if err := json.Unmarshal(raw, &tmp); err != nil {
		return nil, err
	}

	n := &Node{
		ID:     id,
		Inputs: make(map[string]interface{}),
	}
	if tmp.ClassType != nil {
		n.ClassType = *tmp.ClassType
	} else if tmp.Type != nil {
		n.ClassType = *tmp.Type
	}

	// inputs that are not an object are treated as no inputs
	if len(tmp.Inputs) != 0 {
		// numbers stay json.Number so 64-bit seeds keep every digit
		dec := json.NewDecoder(bytes.NewReader(tmp.Inputs))
		dec.UseNumber()
		var inputs map[string]interface{}
		if err := dec.Decode(&inputs); err == nil && inputs != nil {
			n.Inputs = inputs
		}
	}
	return n, nil
}

// NewWorkflowFromMap builds a workflow from an already decoded JSON object.
// Go maps carry no order, so node ids are ordered the way they sort as numbers
// first and strings second.
func NewWorkflowFromMap(m map[string]interface{}) (*Workflow, error) {
	if m == nil {
		return nil, ErrNotAGraph
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding workflow: %w", err)
	}
	wf, err := NewWorkflowFromJsonBytes(data)
	if err != nil {
		return nil, err
	}
	sortNodeIDs(wf.Order)
	return wf, nil
}

func sortNodeIDs(ids []string) {
	less := func(a, b string) bool {
		ai, aerr := strconv.ParseFloat(a, 64)
		bi, berr := strconv.ParseFloat(b, 64)
		switch {
		case aerr == nil && berr == nil:
			if ai != bi {
				return ai < bi
			}
			return a < b
		case aerr == nil:
			return true
		case berr == nil:
			return false
		}
		return a < b
	}
	sort.SliceStable(ids, func(i, j int) bool { return less(ids[i], ids[j]) })
}

func NewWorkflowFromJsonBytes(data []byte) (*Workflow, error) {
	wf := &Workflow{}
	if err := json.Unmarshal(data, wf); err != nil {
		return nil, err
	}
	return wf, nil
}

func NewWorkflowFromJsonReader(r io.Reader) (*Workflow, error) {
	fileContent, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return NewWorkflowFromJsonBytes(fileContent)
}

func NewWorkflowFromJsonFile(path string) (*Workflow, error) {
	freader, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer freader.Close()

	return NewWorkflowFromJsonReader(freader)
}

func NewWorkflowFromJsonString(data string) (*Workflow, error) {
	return NewWorkflowFromJsonReader(strings.NewReader(data))
}
