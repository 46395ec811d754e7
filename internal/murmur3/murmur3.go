// Package murmur3 vendors the x86-32 variant of Austin Appleby's
// MurmurHash3, seeded per call rather than streamed.
//
// No third-party murmur3 module is present anywhere in the reference
// corpus this package was ported from, and upstream's own C++ core
// (src/2page/page.cc) does the same thing: it vendors
// 3rdparty/murmurhash3/MurmurHash3.h rather than linking a system
// library. This is that vendored copy, transliterated to Go.
package murmur3

const (
	c1 uint32 = 0xcc9e2d51
	c2 uint32 = 0x1b873593
)

func rotl32(x uint32, r uint8) uint32 {
	return (x << r) | (x >> (32 - r))
}

func fmix32(h uint32) uint32 {
	h ^= h >> 16
	h *= 0x85ebca6b
	h ^= h >> 13
	h *= 0xc2b2ae35
	h ^= h >> 16
	return h
}

// Sum32 computes the 32-bit x86 MurmurHash3 digest of data, seeded
// with seed. This is the exact algorithm invoked by
// MurmurHash3_x86_32(data, len, seed, &out) in the original source.
func Sum32(data []byte, seed uint32) uint32 {
	h1 := seed
	nblocks := len(data) / 4

	for i := 0; i < nblocks; i++ {
		k1 := uint32(data[i*4]) | uint32(data[i*4+1])<<8 | uint32(data[i*4+2])<<16 | uint32(data[i*4+3])<<24
		k1 *= c1
		k1 = rotl32(k1, 15)
		k1 *= c2

		h1 ^= k1
		h1 = rotl32(h1, 13)
		h1 = h1*5 + 0xe6546b64
	}

	tail := data[nblocks*4:]
	var k1 uint32
	switch len(tail) {
	case 3:
		k1 ^= uint32(tail[2]) << 16
		fallthrough
	case 2:
		k1 ^= uint32(tail[1]) << 8
		fallthrough
	case 1:
		k1 ^= uint32(tail[0])
		k1 *= c1
		k1 = rotl32(k1, 15)
		k1 *= c2
		h1 ^= k1
	}

	h1 ^= uint32(len(data))
	return fmix32(h1)
}
