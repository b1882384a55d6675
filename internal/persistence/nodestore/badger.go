package nodestore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"voxelpipes.ai/internal/sim/pipes/host"
	"voxelpipes.ai/internal/sim/pipes/loc"
)

const badgerPrefix = "node/"

// Badger stores one key per node: node/<world>/<x>/<y>/<z> -> disabled mask.
// Writes are synchronous.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens a store at dir. An empty dir opens an in-memory store.
func OpenBadger(dir string) (*Badger, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Badger{db: db}, nil
}

func (b *Badger) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

func nodeKey(world string, x, y, z int) []byte {
	return []byte(fmt.Sprintf("%s%s/%d/%d/%d", badgerPrefix, world, x, y, z))
}

func parseNodeKey(key []byte) (host.NodeRecord, bool) {
	rest, ok := strings.CutPrefix(string(key), badgerPrefix)
	if !ok {
		return host.NodeRecord{}, false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 4 {
		return host.NodeRecord{}, false
	}
	x, err1 := strconv.Atoi(parts[1])
	y, err2 := strconv.Atoi(parts[2])
	z, err3 := strconv.Atoi(parts[3])
	if err1 != nil || err2 != nil || err3 != nil {
		return host.NodeRecord{}, false
	}
	return host.NodeRecord{World: parts[0], X: x, Y: y, Z: z}, true
}

func (b *Badger) SaveNode(ctx context.Context, rec host.NodeRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(nodeKey(rec.World, rec.X, rec.Y, rec.Z), []byte{byte(rec.DisabledSides.Clean())})
	})
}

func (b *Badger) DeleteNode(ctx context.Context, l loc.Location) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(nodeKey(l.World, l.X, l.Y, l.Z))
	})
}

// LoadNodes returns the nodes of one world sorted by coordinates.
func (b *Badger) LoadNodes(ctx context.Context, worldID string) ([]host.NodeRecord, error) {
	prefix := []byte(badgerPrefix + worldID + "/")
	var out []host.NodeRecord
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			rec, ok := parseNodeKey(item.KeyCopy(nil))
			if !ok {
				continue
			}
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if len(val) > 0 {
				rec.DisabledSides = loc.SideMask(val[0]).Clean()
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return loc.Less(out[i].Location(), out[j].Location()) })
	return out, nil
}

// Worlds lists the world ids that have at least one node.
func (b *Badger) Worlds(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(badgerPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if rec, ok := parseNodeKey(it.Item().KeyCopy(nil)); ok {
				seen[rec.World] = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(seen))
	for w := range seen {
		out = append(out, w)
	}
	sort.Strings(out)
	return out, nil
}
