package extractor

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
)

// ResolveSeed fixes an effective seed at construction time. A nil seed is
// drawn from system randomness exactly once; callers persist the returned
// value in their parameter dicts so a reload reproduces identical output.
func ResolveSeed(seed *uint64) uint64 {
	if seed != nil {
		return *seed
	}
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		panic(fmt.Sprintf("cannot read system randomness: %v", err))
	}
	return binary.LittleEndian.Uint64(b[:])
}
