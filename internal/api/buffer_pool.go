package api

import (
	"bytes"
	"sync"
)

// bufferPool reuses byte buffers for encoding request bodies.
// Prompts carry story context, so bodies are a few KB each.
var bufferPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

// getBuffer retrieves a reset buffer from the pool.
// Caller must call putBuffer() when done.
func getBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// putBuffer returns a buffer to the pool unless it grew too large to keep around
func putBuffer(buf *bytes.Buffer) {
	const maxBufferSize = 64 * 1024
	if buf.Cap() <= maxBufferSize {
		bufferPool.Put(buf)
	}
}
