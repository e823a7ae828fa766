package desktop

import (
	"bytes"
	"sync"
)

// bufferPool pools bytes.Buffer instances for PNG encoding. Full-desktop
// captures are several megabytes, so buffers start large.
var bufferPool = sync.Pool{
	New: func() any {
		return bytes.NewBuffer(make([]byte, 0, 1024*1024))
	},
}

func getBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

func putBuffer(buf *bytes.Buffer) {
	if buf.Cap() > 32*1024*1024 {
		return // don't pool oversized buffers
	}
	bufferPool.Put(buf)
}
