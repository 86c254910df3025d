package persist

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/roach88/memento/internal/graph"
	"github.com/roach88/memento/internal/ir"
	"github.com/roach88/memento/internal/region"
)

// BackupVersion is the only backup format version this package reads.
const BackupVersion = 1

// Backup is a full snapshot: every node plus every region pointer.
type Backup struct {
	Version int              `json:"version"`
	Nodes   []ir.EventNode   `json:"nodes"`
	Regions []region.Pointer `json:"regions"`
}

// Snapshot captures the store and collection. Nodes come out parents
// first, so a backup replays in order.
func Snapshot(c *region.Collection) *Backup {
	ptrs := c.Pointers()
	for i := range ptrs {
		ptrs[i] = normalizePointer(ptrs[i])
	}
	return &Backup{
		Version: BackupVersion,
		Nodes:   c.Store().Nodes(),
		Regions: ptrs,
	}
}

// WriteBackup writes a snapshot of c to path atomically.
func WriteBackup(path string, c *region.Collection) error {
	data, err := json.MarshalIndent(Snapshot(c), "", "  ")
	if err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}
	return writeFileAtomic(path, append(data, '\n'))
}

// ReadBackup reads and validates a backup file.
func ReadBackup(path string) (*Backup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read backup: %w", err)
	}
	return DecodeBackup(data)
}

// DecodeBackup validates and decodes a backup document.
func DecodeBackup(data []byte) (*Backup, error) {
	if err := validate(defBackup, data); err != nil {
		return nil, ir.NewCorruptStateError("backup", "%v", err)
	}

	var b Backup
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, ir.NewCorruptStateError("backup", "decode: %v", err)
	}
	return &b, nil
}

// Apply loads the backup into c and its store. Region heads must resolve to
// nodes in the backup or already in the store. Everything is checked before
// anything is written, so a failed Apply changes nothing.
func (b *Backup) Apply(c *region.Collection) error {
	store := c.Store()

	known := make(map[string]struct{}, len(b.Nodes))
	for _, n := range b.Nodes {
		known[n.ID] = struct{}{}
	}
	seen := make(map[string]struct{}, len(b.Regions))
	for _, p := range b.Regions {
		if err := p.Validate(); err != nil {
			return err
		}
		if _, dup := seen[p.Name]; dup {
			return ir.NewCorruptStateError(p.Name, "region listed twice")
		}
		seen[p.Name] = struct{}{}

		for _, h := range p.Heads {
			if _, ok := known[h]; !ok && !store.Has(h) {
				return ir.NewCorruptStateError(p.Name, "head %s not found", ir.ShortID(h))
			}
		}
	}

	if err := store.Restore(b.Nodes); err != nil {
		return err
	}
	return c.LoadPointers(b.Regions)
}

// Restore reads the backup at path into a fresh store and collection.
func Restore(path string, opts ...graph.Option) (*region.Collection, error) {
	b, err := ReadBackup(path)
	if err != nil {
		return nil, err
	}

	c := region.NewCollection(graph.New(opts...))
	if err := b.Apply(c); err != nil {
		return nil, err
	}
	return c, nil
}
