package upscaledb

import (
	"bytes"
	"compress/zlib"
	"io"
)

// Compressor is the strategy capability described in the design notes:
// a plug-in need only provide compressed-length, compress, and
// decompress. It has no algorithmic content of its own; it is an
// external collaborator to the btree/page core, not part of it.
type Compressor interface {
	// CompressedLength returns the worst-case size compress will
	// produce for an input of length n, used to size destination
	// buffers before compressing.
	CompressedLength(n int) int
	// Compress writes the compressed form of src followed by the
	// optional src2 into dst, reusing dst's storage from index 0
	// (dst's previous contents are not kept), and returns the result.
	Compress(dst, src, src2 []byte) ([]byte, error)
	// Decompress decompresses src into dst, which is exactly
	// expectedLen bytes; if dst is nil a new slice is allocated.
	Decompress(dst, src []byte, expectedLen int) ([]byte, error)
}

// NoopCompressor is the identity strategy: compress and decompress are
// both pass-through copies. Used when a Database is opened without
// compression.
type NoopCompressor struct{}

func (NoopCompressor) CompressedLength(n int) int { return n }

func (NoopCompressor) Compress(dst, src, src2 []byte) ([]byte, error) {
	dst = append(dst[:0], src...)
	dst = append(dst, src2...)
	return dst, nil
}

func (NoopCompressor) Decompress(dst, src []byte, expectedLen int) ([]byte, error) {
	if len(src) != expectedLen {
		return nil, newErr(ErrCorruption, "decompressed length mismatch")
	}
	if dst == nil {
		dst = make([]byte, expectedLen)
	} else {
		dst = dst[:expectedLen]
	}
	copy(dst, src)
	return dst, nil
}

// ZlibCompressor implements Compressor over compress/zlib.
//
// No third-party compression library appears anywhere in this
// project's reference corpus (a single unrelated file uses
// compress/gzip for log rotation); zlib is the closest stdlib
// equivalent to the block compressors the original engine plugs in
// here, and is used the same way: whole-payload compress/decompress
// with a known expected length, no streaming.
type ZlibCompressor struct {
	Level int
}

func (c ZlibCompressor) CompressedLength(n int) int {
	// zlib framing overhead plus a small safety margin; actual writes
	// grow the destination buffer as needed via bytes.Buffer.
	return n + n/1000 + 64
}

func (c ZlibCompressor) Compress(dst, src, src2 []byte) ([]byte, error) {
	var buf bytes.Buffer
	level := c.Level
	if level == 0 {
		level = zlib.DefaultCompression
	}
	w, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, wrapErr(ErrInvalidArgument, "compressor: bad level", err)
	}
	if _, err := w.Write(src); err != nil {
		return nil, wrapErr(ErrIo, "compressor: write", err)
	}
	if len(src2) > 0 {
		if _, err := w.Write(src2); err != nil {
			return nil, wrapErr(ErrIo, "compressor: write", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, wrapErr(ErrIo, "compressor: close", err)
	}
	return append(dst[:0], buf.Bytes()...), nil
}

func (c ZlibCompressor) Decompress(dst, src []byte, expectedLen int) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, wrapErr(ErrCorruption, "compressor: bad stream", err)
	}
	defer r.Close()
	if dst == nil || cap(dst) < expectedLen {
		dst = make([]byte, expectedLen)
	} else {
		dst = dst[:expectedLen]
	}
	n, err := io.ReadFull(r, dst)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, wrapErr(ErrCorruption, "compressor: read", err)
	}
	if n != expectedLen {
		return nil, newErr(ErrCorruption, "compressor: length mismatch")
	}
	return dst, nil
}
