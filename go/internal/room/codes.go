package room

import (
	"math/rand"
	"strings"
)

// codeAlphabet is the room code character set: uppercase letters and digits.
const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// CodeLength is the fixed length of a room code.
const CodeLength = 6

// codeGenerator produces room codes from a seeded source so tests can be
// deterministic. Callers must serialize access; the registry generates codes
// under its own lock.
type codeGenerator struct {
	rng *rand.Rand
}

func newCodeGenerator(seed int64) *codeGenerator {
	return &codeGenerator{rng: rand.New(rand.NewSource(seed))}
}

// next returns a fresh code, retrying while taken reports a collision with a
// live room.
func (g *codeGenerator) next(taken func(string) bool) string {
	for {
		var b strings.Builder
		b.Grow(CodeLength)
		for i := 0; i < CodeLength; i++ {
			b.WriteByte(codeAlphabet[g.rng.Intn(len(codeAlphabet))])
		}
		code := b.String()
		if !taken(code) {
			return code
		}
	}
}
