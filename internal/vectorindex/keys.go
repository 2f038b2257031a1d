package vectorindex

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const chunkKeyPrefix = "chunk-"

var ErrInvalidKey = errors.New("invalid vector key")

// ChunkKey returns the vector-store key of a chunk.
func ChunkKey(chunkID uint) string {
	return chunkKeyPrefix + strconv.FormatUint(uint64(chunkID), 10)
}

// ParseChunkKey is the inverse of ChunkKey.
func ParseChunkKey(key string) (uint, error) {
	raw, ok := strings.CutPrefix(key, chunkKeyPrefix)
	if !ok || raw == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return uint(id), nil
}
