// Package pool hands out pixel buffers from bucketed sync.Pool instances.
// Buffers are organised by size class; requests above the largest class are
// allocated directly and dropped on release.
package pool

import (
	"errors"
	"sync"
)

// Size classes for bucketed pools. Pixel buffers for thumbnails land in the
// small classes, full layers in the large ones.
const (
	Size64K  = 1 << 16
	Size256K = 1 << 18
	Size1M   = 1 << 20
	Size4M   = 1 << 22
	Size16M  = 1 << 24
)

// MaxSize is the largest buffer Get will hand out: a 16383x16383 RGBA layer.
const MaxSize = 16383 * 16383 * 4

// ErrSize is returned by Get for non-positive or oversized requests.
var ErrSize = errors.New("pool: invalid buffer size")

var sizes = [...]int{Size64K, Size256K, Size1M, Size4M, Size16M}

var pools [len(sizes)]sync.Pool

func init() {
	for i := range pools {
		sz := sizes[i]
		pools[i] = sync.Pool{
			New: func() any {
				b := make([]byte, sz)
				return &b
			},
		}
	}
}

// bucketIndex returns the pool index for a given size, or -1 when the size
// is above the largest class.
func bucketIndex(size int) int {
	for i, sz := range sizes {
		if size <= sz {
			return i
		}
	}
	return -1
}

// Get returns a zeroed byte slice of exactly size bytes. The caller must
// hand it back with Put once the pixels have been consumed.
func Get(size int) ([]byte, error) {
	if size <= 0 || size > MaxSize {
		return nil, ErrSize
	}
	idx := bucketIndex(size)
	if idx < 0 {
		return make([]byte, size), nil
	}
	bp := pools[idx].Get().(*[]byte)
	b := (*bp)[:size]
	clear(b)
	return b, nil
}

// Put returns a byte slice to the pool. Slices that do not match a size
// class exactly (including direct allocations) are left to the GC.
func Put(b []byte) {
	c := cap(b)
	idx := bucketIndex(c)
	if idx < 0 || sizes[idx] != c {
		return
	}
	b = b[:c]
	pools[idx].Put(&b)
}
