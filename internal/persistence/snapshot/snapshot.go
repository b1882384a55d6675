package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"voxelpipes.ai/internal/sim/pipes/host"
	"voxelpipes.ai/internal/sim/pipes/loc"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
	Nodes   int    `json:"nodes"`
}

// SnapshotV1 is a point-in-time copy of one world's pipe nodes.
type SnapshotV1 struct {
	Header Header   `json:"header"`
	Nodes  []NodeV1 `json:"nodes"`
}

type NodeV1 struct {
	Pos      [3]int `json:"pos"`
	Disabled uint8  `json:"disabled"`
}

// FromRecords builds a snapshot; records from other worlds are skipped.
func FromRecords(worldID string, tick uint64, recs []host.NodeRecord) SnapshotV1 {
	snap := SnapshotV1{Header: Header{Version: Version, WorldID: worldID, Tick: tick}}
	for _, r := range recs {
		if r.World != worldID {
			continue
		}
		snap.Nodes = append(snap.Nodes, NodeV1{Pos: [3]int{r.X, r.Y, r.Z}, Disabled: uint8(r.DisabledSides.Clean())})
	}
	snap.Header.Nodes = len(snap.Nodes)
	return snap
}

func (s SnapshotV1) Records() []host.NodeRecord {
	out := make([]host.NodeRecord, 0, len(s.Nodes))
	for _, n := range s.Nodes {
		out = append(out, host.NodeRecord{
			World:         s.Header.WorldID,
			X:             n.Pos[0],
			Y:             n.Pos[1],
			Z:             n.Pos[2],
			DisabledSides: loc.SideMask(n.Disabled).Clean(),
		})
	}
	return out
}

// WriteSnapshot writes a JSON header line followed by the gob body, all zstd
// compressed.
func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}

	bw := bufio.NewWriterSize(enc, 256*1024)
	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		_ = enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// Header line is for humans and tools; the gob body carries it too.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}

// ReadHeader decodes only the header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, err
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("snapshot header: %w", err)
	}
	return h, nil
}
