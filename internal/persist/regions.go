package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/roach88/memento/internal/ir"
	"github.com/roach88/memento/internal/region"
)

// regionFile is the on-disk shape of a region file:
//
//	{"regions": {"Planner": {"name": "Planner", "meta": {...}, "heads": [...]}}}
type regionFile struct {
	Regions map[string]region.Pointer `json:"regions"`
}

// LoadRegions reads region pointers from path, sorted by name.
//
// A missing file is an empty collection. Any other failure, including a
// document that does not match the schema, is CORRUPT_PERSISTED_STATE and
// no pointer is returned.
func LoadRegions(path string) ([]region.Pointer, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return []region.Pointer{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read regions: %w", err)
	}
	return DecodeRegions(data)
}

// DecodeRegions validates and decodes a region file document.
func DecodeRegions(data []byte) ([]region.Pointer, error) {
	if err := validate(defRegions, data); err != nil {
		return nil, ir.NewCorruptStateError("regions", "%v", err)
	}

	var f regionFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, ir.NewCorruptStateError("regions", "decode: %v", err)
	}

	out := make([]region.Pointer, 0, len(f.Regions))
	for _, p := range f.Regions {
		out = append(out, normalizePointer(p))
	}
	slices.SortFunc(out, func(a, b region.Pointer) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

// SaveRegions writes pointers to path, replacing the file atomically.
func SaveRegions(path string, ptrs []region.Pointer) error {
	data, err := EncodeRegions(ptrs)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}

// EncodeRegions renders pointers as an indented region file document.
func EncodeRegions(ptrs []region.Pointer) ([]byte, error) {
	f := regionFile{Regions: make(map[string]region.Pointer, len(ptrs))}
	for _, p := range ptrs {
		if _, dup := f.Regions[p.Name]; dup {
			return nil, ir.NewDuplicateRegionError(p.Name)
		}
		f.Regions[p.Name] = normalizePointer(p)
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode regions: %w", err)
	}
	return append(data, '\n'), nil
}

// LoadCollection replaces c's regions with those stored at path.
func LoadCollection(path string, c *region.Collection) error {
	ptrs, err := LoadRegions(path)
	if err != nil {
		return err
	}
	return c.LoadPointers(ptrs)
}

// SaveCollection writes every region of c to path.
func SaveCollection(path string, c *region.Collection) error {
	return SaveRegions(path, c.Pointers())
}

// normalizePointer gives a pointer non-nil meta and sorted, non-nil heads so
// it encodes as {} and [] rather than null.
func normalizePointer(p region.Pointer) region.Pointer {
	if p.Meta == nil {
		p.Meta = map[string]string{}
	}
	p.Heads = ir.NormalizeParents(p.Heads)
	return p
}

// writeFileAtomic writes data to a temporary file next to path and renames
// it into place, so readers see either the old or the new content.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
