// Package mcdb persists exported regions to a leveldb backed world database
// and reopens them for fixup application. Chunks are stored one blob per
// chunk under bedrock style keys: little endian chunk X and Z, the dimension
// ID for non-primary dimensions and a tag byte.
package mcdb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/df-mc/goleveldb/leveldb"
	"github.com/tilevox/tilevox/export/world"
)

// Key tags. Chunk payloads, block entities and entities are stored under
// separate keys so fixups can rewrite blocks without re-encoding records.
const (
	tagChunkPayload  = 0x2f
	tagBlockEntities = 0x31
	tagEntities      = 0x32
)

// Config holds the options for opening a world database.
type Config struct {
	// Log is the logger used for database diagnostics. Defaults to
	// slog.Default().
	Log *slog.Logger
}

// Provider is a handle onto one world directory's database. It is safe for
// concurrent use; leveldb serialises writes internally.
type Provider struct {
	db  *leveldb.DB
	dir string
	log *slog.Logger
}

// Open opens (or creates) the world database under the directory passed.
func (conf Config) Open(dir string) (*Provider, error) {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	db, err := leveldb.OpenFile(filepath.Join(dir, "db"), nil)
	if err != nil {
		return nil, fmt.Errorf("mcdb: open %v: %w", dir, err)
	}
	return &Provider{db: db, dir: dir, log: conf.Log.With("world", dir)}, nil
}

// Open opens the world database under the directory passed with default
// options.
func Open(dir string) (*Provider, error) {
	return Config{}.Open(dir)
}

func chunkKey(dim int, pos world.ChunkPos, tag byte) []byte {
	key := make([]byte, 0, 13)
	key = binary.LittleEndian.AppendUint32(key, uint32(pos[0]))
	key = binary.LittleEndian.AppendUint32(key, uint32(pos[1]))
	if dim != 0 {
		key = binary.LittleEndian.AppendUint32(key, uint32(dim))
	}
	return append(key, tag)
}

// SaveRegion writes every generated chunk inside the region's 32x32 chunk
// footprint in a single batch. The padded synthesis window is not persisted.
func (p *Provider) SaveRegion(r *world.Region, dim int) error {
	start := time.Now()
	batch := new(leveldb.Batch)
	count := 0
	var encodeErr error
	r.InnerChunks(func(c world.Chunk) {
		if encodeErr != nil {
			return
		}
		payload, blockEntities, entities, err := encodeChunk(c)
		if err != nil {
			encodeErr = fmt.Errorf("encode chunk %v: %w", c.Pos(), err)
			return
		}
		batch.Put(chunkKey(dim, c.Pos(), tagChunkPayload), payload)
		if blockEntities != nil {
			batch.Put(chunkKey(dim, c.Pos(), tagBlockEntities), blockEntities)
		}
		if entities != nil {
			batch.Put(chunkKey(dim, c.Pos(), tagEntities), entities)
		}
		count++
	})
	if encodeErr != nil {
		return fmt.Errorf("mcdb: save region %v: %w", r.Pos(), encodeErr)
	}
	if err := p.db.Write(batch, nil); err != nil {
		return fmt.Errorf("mcdb: save region %v: %w", r.Pos(), err)
	}
	p.log.Debug("saved region", "region", r.Pos(), "chunks", count, "took", time.Since(start))
	return nil
}

// LoadChunk reads the chunk at the position passed back from the database.
// The second return value is false if no chunk is stored there.
func (p *Provider) LoadChunk(dim int, pos world.ChunkPos) (world.Chunk, bool, error) {
	payload, err := p.db.Get(chunkKey(dim, pos, tagChunkPayload), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("mcdb: load chunk %v: %w", pos, err)
	}
	blockEntities, err := p.db.Get(chunkKey(dim, pos, tagBlockEntities), nil)
	if err != nil && !errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, fmt.Errorf("mcdb: load chunk %v: %w", pos, err)
	}
	entities, err := p.db.Get(chunkKey(dim, pos, tagEntities), nil)
	if err != nil && !errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, fmt.Errorf("mcdb: load chunk %v: %w", pos, err)
	}
	c, err := decodeChunk(pos, payload, blockEntities, entities)
	if err != nil {
		return nil, false, fmt.Errorf("mcdb: load chunk %v: %w", pos, err)
	}
	return c, true, nil
}

// SaveChunk writes a single chunk back, used when flushing fixup edits.
func (p *Provider) SaveChunk(dim int, c world.Chunk) error {
	payload, blockEntities, entities, err := encodeChunk(c)
	if err != nil {
		return fmt.Errorf("mcdb: save chunk %v: %w", c.Pos(), err)
	}
	batch := new(leveldb.Batch)
	batch.Put(chunkKey(dim, c.Pos(), tagChunkPayload), payload)
	if blockEntities != nil {
		batch.Put(chunkKey(dim, c.Pos(), tagBlockEntities), blockEntities)
	} else {
		batch.Delete(chunkKey(dim, c.Pos(), tagBlockEntities))
	}
	if entities != nil {
		batch.Put(chunkKey(dim, c.Pos(), tagEntities), entities)
	} else {
		batch.Delete(chunkKey(dim, c.Pos(), tagEntities))
	}
	return p.db.Write(batch, nil)
}

// Keys calls f with every chunk payload key in the database, used by the
// world inspection tool.
func (p *Provider) Keys(f func(dim int, pos world.ChunkPos)) error {
	it := p.db.NewIterator(nil, nil)
	defer it.Release()
	for it.Next() {
		key := it.Key()
		switch len(key) {
		case 9:
			if key[8] == tagChunkPayload {
				f(0, world.ChunkPos{int32(binary.LittleEndian.Uint32(key)), int32(binary.LittleEndian.Uint32(key[4:]))})
			}
		case 13:
			if key[12] == tagChunkPayload {
				f(int(int32(binary.LittleEndian.Uint32(key[8:]))), world.ChunkPos{int32(binary.LittleEndian.Uint32(key)), int32(binary.LittleEndian.Uint32(key[4:]))})
			}
		}
	}
	return it.Error()
}

// Close closes the underlying database.
func (p *Provider) Close() error {
	return p.db.Close()
}
