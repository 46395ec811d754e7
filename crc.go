package upscaledb

import "github.com/taabodim/upscaledb/internal/murmur3"

// crc32PageHash is the page-payload digest: MurmurHash3 x86-32 seeded
// with the page's own byte-offset address, as specified for on-disk
// page integrity.
func crc32PageHash(payload []byte, address uint32) uint32 {
	return murmur3.Sum32(payload, address)
}
