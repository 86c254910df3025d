package persist

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/roach88/memento/internal/graph"
	"github.com/roach88/memento/internal/ir"
)

// maxLogLine bounds a single JSONL record.
const maxLogLine = 16 << 20

// Record is one line of a JSONL event log.
//
// ID and Parents are optional. When ID is present the rebuilt event must
// hash to it, and a record without Parents is a root. When both are absent
// the record chains onto the previous record of the same agent.
type Record struct {
	Op        ir.Op             `json:"op"`
	Content   string            `json:"content"`
	Timestamp int64             `json:"timestamp"` // Unix nanoseconds
	Agent     string            `json:"agent"`
	Meta      map[string]string `json:"meta"`
	ID        string            `json:"id,omitempty"`
	Parents   []string          `json:"parents,omitempty"`
}

// RecordsFor converts events to log records attributed to agent, keeping
// ids and parents so the log rebuilds the exact graph.
func RecordsFor(agent string, nodes []ir.EventNode) []Record {
	out := make([]Record, len(nodes))
	for i, n := range nodes {
		out[i] = Record{
			Op:        n.Op,
			Content:   n.Content,
			Timestamp: n.Timestamp,
			Agent:     agent,
			Meta:      n.Meta,
			ID:        n.ID,
			Parents:   n.Parents,
		}
	}
	return out
}

// WriteLog writes records as JSON lines.
func WriteLog(w io.Writer, records []Record) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if rec.Meta == nil {
			rec.Meta = map[string]string{}
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}
	return bw.Flush()
}

// ReadLog reads JSON lines. Blank lines are skipped. Every line is
// validated; the first bad line fails the whole read with
// CORRUPT_PERSISTED_STATE naming the line number.
func ReadLog(r io.Reader) ([]Record, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLogLine)

	var out []Record
	line := 0
	for sc.Scan() {
		line++
		data := bytes.TrimSpace(sc.Bytes())
		if len(data) == 0 {
			continue
		}

		if err := validate(defRecord, data); err != nil {
			return nil, ir.NewCorruptStateError(fmt.Sprintf("log line %d", line), "%v", err)
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, ir.NewCorruptStateError(fmt.Sprintf("log line %d", line), "decode: %v", err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	return out, nil
}

// Rebuild materializes records into store and returns the last event id per
// agent.
//
// The whole log is converted to nodes first and loaded with one
// graph.Store.Restore, so a bad record leaves the store untouched.
func Rebuild(store *graph.Store, records []Record) (map[string]string, error) {
	heads := make(map[string]string)
	nodes := make([]ir.EventNode, 0, len(records))

	for i, rec := range records {
		parents := rec.Parents
		if parents == nil && rec.ID == "" {
			if prev, ok := heads[rec.Agent]; ok {
				parents = []string{prev}
			}
		}

		node, err := ir.NewEventNode(rec.Op, rec.Content, rec.Timestamp, rec.Meta, parents)
		if err != nil {
			return nil, ir.NewCorruptStateError(fmt.Sprintf("record %d", i), "%v", err)
		}
		if rec.ID != "" && rec.ID != node.ID {
			return nil, ir.NewCorruptStateError(fmt.Sprintf("record %d", i),
				"id %s does not match content (computed %s)", ir.ShortID(rec.ID), ir.ShortID(node.ID))
		}

		nodes = append(nodes, node)
		heads[rec.Agent] = node.ID
	}

	if err := store.Restore(nodes); err != nil {
		return nil, err
	}
	return heads, nil
}
