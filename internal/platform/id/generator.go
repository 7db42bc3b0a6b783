package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// Generator creates opaque IDs. Lock holders and exported events use them.
type Generator interface {
	NewID() (string, error)
}

// UUIDGenerator returns random v4 UUIDs.
type UUIDGenerator struct{}

func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

func (g *UUIDGenerator) NewID() (string, error) {
	v, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return v.String(), nil
}

// PrefixedGenerator returns "<prefix>-<hex>" ids, e.g. "api-3f9c...".
type PrefixedGenerator struct {
	prefix string
	size   int
}

func NewPrefixedGenerator(prefix string, size int) *PrefixedGenerator {
	if size <= 0 {
		size = 8
	}
	return &PrefixedGenerator{prefix: prefix, size: size}
}

func (g *PrefixedGenerator) NewID() (string, error) {
	buf := make([]byte, g.size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	if g.prefix == "" {
		return hex.EncodeToString(buf), nil
	}
	return g.prefix + "-" + hex.EncodeToString(buf), nil
}
