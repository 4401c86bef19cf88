package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"voxelpath.ai/internal/sim/encoding"
	"voxelpath.ai/internal/sim/grid"
	"voxelpath.ai/internal/sim/terrain"
	"voxelpath.ai/internal/sim/tuning"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
	Grid    [3]int `json:"grid"`
}

// SnapshotV1 captures everything needed to rebuild a world's terrain and
// pathfinding setup: the effective tuning and the tiles in grid.Index order,
// run-length encoded.
type SnapshotV1 struct {
	Header Header `json:"header"`

	Tuning   tuning.Tuning `json:"tuning"`
	TileRuns []byte        `json:"tile_runs"`
}

func FromTerrain(worldID string, tick uint64, tune tuning.Tuning, m *terrain.Tilemap) SnapshotV1 {
	wd, ht, dp := m.Grid().Size()
	tiles := m.Tiles()
	raw := make([]uint8, len(tiles))
	for i, t := range tiles {
		raw[i] = uint8(t)
	}
	return SnapshotV1{
		Header: Header{Version: Version, WorldID: worldID, Tick: tick, Grid: [3]int{wd, ht, dp}},
		Tuning:   tune,
		TileRuns: encoding.EncodeRuns(raw),
	}
}

// Terrain rebuilds the tile map. It fails when the decoded tile count does
// not match the header's grid.
func (s SnapshotV1) Terrain() (*terrain.Tilemap, error) {
	g := grid.WithSize(s.Header.Grid[0], s.Header.Grid[1], s.Header.Grid[2])
	raw, err := encoding.DecodeRuns(s.TileRuns, g.Len())
	if err != nil {
		return nil, fmt.Errorf("snapshot tiles: %w", err)
	}
	tiles := make([]terrain.Tile, len(raw))
	for i, t := range raw {
		if terrain.Tile(t) > terrain.Stairs {
			return nil, fmt.Errorf("snapshot tile %d: unknown tile %d", i, t)
		}
		tiles[i] = terrain.Tile(t)
	}
	return terrain.FromTiles(g, tiles)
}

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

// ReadHeader decodes only the JSON header line.
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
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
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

	// Header line is repeated inside the gob payload.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}
