package peers

import "sync"

// chunkSize is the fixed size of one read buffer, mirroring the
// source's page-at-a-time allocator (spec.md §5).
const chunkSize = 4096

// bufferPool is a freelist of fixed-size read buffers. Unlike the
// source, which allocates pages on demand and never frees the largest
// one (a documented leak, spec.md §9), this is a sync.Pool: buffers the
// GC decides are no longer needed are simply not kept, so there is no
// permanently pinned high-water page.
type bufferPool struct {
	pool sync.Pool
}

func newBufferPool() *bufferPool {
	return &bufferPool{
		pool: sync.Pool{
			New: func() any {
				b := make([]byte, chunkSize)
				return &b
			},
		},
	}
}

func (p *bufferPool) get() []byte {
	b := p.pool.Get().(*[]byte)
	return *b
}

func (p *bufferPool) put(b []byte) {
	b = b[:chunkSize]
	p.pool.Put(&b)
}
