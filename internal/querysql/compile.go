package querysql

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/memento/internal/query"
)

// Dialect selects placeholder syntax and the text and JSON functions used
// for a backend.
type Dialect int

const (
	// SQLite uses ? placeholders, instr() and json_extract().
	SQLite Dialect = iota
	// Postgres uses $n placeholders, strpos() and the jsonb ->> operator.
	Postgres
)

// ErrNotCompilable is returned for matchers that only exist as Go code.
var ErrNotCompilable = errors.New("matcher cannot be compiled to SQL")

// Compiler compiles query matchers to parameterized WHERE fragments over the
// events and nodes tables (columns op, content, meta).
//
// All values are parameterized, never interpolated.
type Compiler struct {
	dialect Dialect
	next    int // next placeholder number (Postgres)
}

// NewCompiler creates a compiler for dialect. offset is the number of
// placeholders already used by the surrounding statement.
func NewCompiler(dialect Dialect, offset int) *Compiler {
	return &Compiler{dialect: dialect, next: offset + 1}
}

// Compile converts m to a WHERE fragment and its parameters.
// A nil matcher compiles to an always-true condition. Func, and anything
// containing it, fails with ErrNotCompilable.
func (c *Compiler) Compile(m query.Matcher) (string, []any, error) {
	if m == nil {
		return "1 = 1", nil, nil
	}

	switch pred := m.(type) {
	case query.Everything:
		return "1 = 1", nil, nil
	case query.ByText:
		return c.compileText(string(pred))
	case query.ByOp:
		return "op = " + c.placeholder(), []any{string(pred)}, nil
	case query.ByMeta:
		return c.compileMeta(pred)
	case query.AllOf:
		return c.compileList(pred, " AND ", "1 = 1")
	case query.AnyOf:
		return c.compileList(pred, " OR ", "1 = 0")
	case query.Negation:
		sql, params, err := c.Compile(pred.M)
		if err != nil {
			return "", nil, err
		}
		return "NOT (" + sql + ")", params, nil
	case query.Func:
		return "", nil, fmt.Errorf("%w: %T", ErrNotCompilable, m)
	default:
		return "", nil, fmt.Errorf("%w: unsupported matcher type %T", ErrNotCompilable, m)
	}
}

// compileText matches a substring with a position function rather than LIKE,
// so % and _ in the needle need no escaping.
func (c *Compiler) compileText(needle string) (string, []any, error) {
	fn := "instr(content, %s) > 0"
	if c.dialect == Postgres {
		fn = "strpos(content, %s) > 0"
	}
	return fmt.Sprintf(fn, c.placeholder()), []any{needle}, nil
}

// compileMeta requires the key to be present: a JSON null or missing key
// never compares equal.
func (c *Compiler) compileMeta(m query.ByMeta) (string, []any, error) {
	if c.dialect == Postgres {
		key, val := c.placeholder(), c.placeholder()
		return fmt.Sprintf("(meta::jsonb ->> %s) = %s", key, val), []any{m.Key, m.Value}, nil
	}
	path, val := c.placeholder(), c.placeholder()
	return fmt.Sprintf("json_extract(meta, %s) = %s", path, val), []any{jsonPath(m.Key), m.Value}, nil
}

func (c *Compiler) compileList(ms []query.Matcher, sep, empty string) (string, []any, error) {
	if len(ms) == 0 {
		return empty, nil, nil
	}

	parts := make([]string, 0, len(ms))
	var params []any
	for _, m := range ms {
		sql, p, err := c.Compile(m)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, "("+sql+")")
		params = append(params, p...)
	}
	return strings.Join(parts, sep), params, nil
}

func (c *Compiler) placeholder() string {
	if c.dialect == Postgres {
		p := "$" + strconv.Itoa(c.next)
		c.next++
		return p
	}
	return "?"
}

// jsonPath quotes an arbitrary key for SQLite's JSON path syntax.
func jsonPath(key string) string {
	return `$."` + strings.ReplaceAll(key, `"`, `\"`) + `"`
}
