package util

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// HashID spreads a 64-bit cache id over the shard space.
// Octree ids are dense in their low bits, so they are hashed rather than masked.
func HashID(id uint64) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], id)
	return xxhash.Sum64(b[:])
}
