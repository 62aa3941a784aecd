package digest

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"seirsim.dev/internal/sim/epidemic"
)

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

// Population hashes the day number and every agent's state and
// vaccination flag in index order.
func Population(day int, pop epidemic.Population) string {
	h := sha256.New()
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(day))
	h.Write(tmp[:])
	binary.LittleEndian.PutUint64(tmp[:], uint64(len(pop)))
	h.Write(tmp[:])
	for _, a := range pop {
		binary.LittleEndian.PutUint64(tmp[:], uint64(int64(a.State)))
		h.Write(tmp[:])
		h.Write([]byte{boolByte(a.Vaccinated)})
	}
	return hex.EncodeToString(h.Sum(nil))
}
