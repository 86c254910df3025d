package persist

import (
	_ "embed"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed schema.cue
var schemaSource string

// Schema definitions in schema.cue.
const (
	defRegions = "#Regions"
	defRecord  = "#Record"
	defBackup  = "#Backup"
)

// schema validates JSON documents against the embedded CUE definitions.
//
// Thread-safety: a cue.Context is not safe for concurrent use, so every
// validation holds mu.
type schema struct {
	mu   sync.Mutex
	ctx  *cue.Context
	root cue.Value
}

var (
	schemaOnce sync.Once
	shared     *schema
	schemaErr  error
)

func loadSchema() (*schema, error) {
	schemaOnce.Do(func() {
		ctx := cuecontext.New()
		root := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
		if err := root.Err(); err != nil {
			schemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}
		shared = &schema{ctx: ctx, root: root}
	})
	return shared, schemaErr
}

// validate unifies the JSON document data with definition def and requires
// the result to be concrete.
func validate(def string, data []byte) error {
	s, err := loadSchema()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.ctx.CompileBytes(data, cue.Filename("document.json"))
	if err := doc.Err(); err != nil {
		return fmt.Errorf("parse: %w", err)
	}

	unified := s.root.LookupPath(cue.ParsePath(def)).Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("schema %s: %w", def, err)
	}
	return nil
}
