package ir

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Op tags what kind of step an event records.
// The four agent operations are predefined; any other non-empty tag is allowed.
type Op string

const (
	OpObserve   Op = "observe"
	OpPlan      Op = "plan"
	OpEffect    Op = "effect"
	OpSummarize Op = "summarize"
)

// Label renders the op the way prompts show it: "[PLAN]".
func (o Op) Label() string {
	return "[" + strings.ToUpper(string(o)) + "]"
}

// EventNode is one immutable node of the memory graph.
//
// Values handed out by the store are copies; mutating Meta or Parents on a
// returned node never reaches the stored node.
type EventNode struct {
	ID        string            `json:"id"`        // Content-addressed hash
	Op        Op                `json:"op"`
	Content   string            `json:"content"`
	Timestamp int64             `json:"timestamp"` // Unix nanoseconds
	Meta      map[string]string `json:"meta"`
	Parents   []string          `json:"parents"` // Sorted, de-duplicated
}

// NewEventNode builds a node with normalized parents, a private copy of meta
// and its derived id.
//
// Op, content and meta are stored NFC normalized, the same form the id is
// computed over, so two spellings of one text are one event. Invalid UTF-8
// fails with InvalidPayload.
func NewEventNode(op Op, content string, timestamp int64, meta map[string]string, parents []string) (EventNode, error) {
	if op == "" {
		return EventNode{}, fmt.Errorf("new event: op must not be empty")
	}
	if err := checkPayload(op, content, meta); err != nil {
		return EventNode{}, fmt.Errorf("new event: %w", err)
	}

	nmeta, err := normalizeMeta(meta)
	if err != nil {
		return EventNode{}, fmt.Errorf("new event: %w", err)
	}
	node := EventNode{
		Op:        Op(norm.NFC.String(string(op))),
		Content:   norm.NFC.String(content),
		Timestamp: timestamp,
		Meta:      nmeta,
		Parents:   NormalizeParents(parents),
	}

	id, err := EventID(node.Op, node.Content, node.Timestamp, node.Meta, node.Parents)
	if err != nil {
		return EventNode{}, fmt.Errorf("new event: %w", err)
	}
	node.ID = id
	return node, nil
}

// Clone returns a deep copy of the node.
func (n EventNode) Clone() EventNode {
	n.Meta = cloneMeta(n.Meta)
	n.Parents = slices.Clone(n.Parents)
	if n.Parents == nil {
		n.Parents = []string{}
	}
	return n
}

// Verify recomputes the id from the payload and compares it with n.ID.
// A payload that is not in the normalized form NewEventNode stores is
// rejected even when its id matches.
func (n EventNode) Verify() error {
	if err := checkPayload(n.Op, n.Content, n.Meta); err != nil {
		return err
	}
	if !isNormalized(n) {
		return NewInvalidPayloadError(ShortID(n.ID), "payload is not NFC normalized")
	}
	id, err := EventID(n.Op, n.Content, n.Timestamp, n.Meta, n.Parents)
	if err != nil {
		return err
	}
	if id != n.ID {
		return fmt.Errorf("id %s does not match payload (computed %s)", ShortID(n.ID), ShortID(id))
	}
	return nil
}

// SamePayload reports whether two nodes carry the same logical content.
func SamePayload(a, b EventNode) bool {
	return a.Op == b.Op &&
		a.Content == b.Content &&
		a.Timestamp == b.Timestamp &&
		maps.Equal(a.Meta, b.Meta) &&
		slices.Equal(NormalizeParents(a.Parents), NormalizeParents(b.Parents))
}

// Line renders the node as a single "[OP] content" prompt line.
func (n EventNode) Line() string {
	return n.Op.Label() + " " + n.Content
}

// checkPayload rejects fields the canonical encoder cannot hash.
func checkPayload(op Op, content string, meta map[string]string) error {
	if !utf8.ValidString(string(op)) {
		return NewInvalidPayloadError("op", "op is not valid UTF-8")
	}
	if !utf8.ValidString(content) {
		return NewInvalidPayloadError("content", "content is not valid UTF-8")
	}
	for k, v := range meta {
		if !utf8.ValidString(k) {
			return NewInvalidPayloadError("meta", "meta key %q is not valid UTF-8", k)
		}
		if !utf8.ValidString(v) {
			return NewInvalidPayloadError("meta", "meta value of %q is not valid UTF-8", k)
		}
	}
	return nil
}

// normalizeMeta copies m with NFC keys and values. Two keys that normalize
// to the same text are ambiguous and rejected.
func normalizeMeta(m map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(m))
	for k, v := range m {
		nk := norm.NFC.String(k)
		if _, dup := out[nk]; dup {
			return nil, NewInvalidPayloadError("meta", "meta keys collide after normalization: %q", nk)
		}
		out[nk] = norm.NFC.String(v)
	}
	return out, nil
}

func isNormalized(n EventNode) bool {
	if !norm.NFC.IsNormalString(string(n.Op)) || !norm.NFC.IsNormalString(n.Content) {
		return false
	}
	for k, v := range n.Meta {
		if !norm.NFC.IsNormalString(k) || !norm.NFC.IsNormalString(v) {
			return false
		}
	}
	return true
}

func cloneMeta(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	maps.Copy(out, m)
	return out
}
