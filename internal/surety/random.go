package surety

import (
	crand "crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"flight_surety/internal/models"
)

// IndexSource draws oracle indexes. Implementations must be deterministic for a given seed;
// the draws are predictable to anyone who knows the seed and are not a security boundary.
type IndexSource interface {
	Index(caller models.Address, bound uint8) uint8
}

// SeededSource derives each draw from sha256(seed || caller || nonce)
type SeededSource struct {
	seed  uint64
	nonce uint64
}

func NewSeededSource(seed uint64) *SeededSource {
	return &SeededSource{seed: seed}
}

// NewSeed generates a seed using crypto/rand
func NewSeed() (uint64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func (s *SeededSource) Index(caller models.Address, bound uint8) uint8 {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], s.seed)
	binary.BigEndian.PutUint64(buf[8:], s.nonce)
	s.nonce++

	h := sha256.New()
	h.Write(buf[:8])
	h.Write([]byte(caller))
	h.Write(buf[8:])
	sum := h.Sum(nil)
	return uint8(binary.BigEndian.Uint64(sum[:8]) % uint64(bound))
}

// generateIndexes draws three distinct indexes for one oracle
func generateIndexes(src IndexSource, caller models.Address, bound uint8) models.Indexes {
	var ix models.Indexes
	ix[0] = src.Index(caller, bound)

	ix[1] = ix[0]
	for ix[1] == ix[0] {
		ix[1] = src.Index(caller, bound)
	}

	ix[2] = ix[1]
	for ix[2] == ix[0] || ix[2] == ix[1] {
		ix[2] = src.Index(caller, bound)
	}
	return ix
}
