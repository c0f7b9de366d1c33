package imgio

import (
	"bytes"
	"sync"
)

// Encode buffer tiers, sized for thumbnails, web-sized images and
// full-resolution photos respectively.
const (
	smallBufferSize  = 64 * 1024
	mediumBufferSize = 512 * 1024
	largeBufferSize  = 5 * 1024 * 1024
)

type tieredBufferPool struct {
	small  sync.Pool
	medium sync.Pool
	large  sync.Pool
}

var encodeBuffers = &tieredBufferPool{
	small: sync.Pool{
		New: func() interface{} {
			return bytes.NewBuffer(make([]byte, 0, smallBufferSize))
		},
	},
	medium: sync.Pool{
		New: func() interface{} {
			return bytes.NewBuffer(make([]byte, 0, mediumBufferSize))
		},
	},
	large: sync.Pool{
		New: func() interface{} {
			return bytes.NewBuffer(make([]byte, 0, largeBufferSize))
		},
	},
}

// getBuffer returns an empty buffer from the tier matching the size hint.
// Buffers grow as needed, so the hint only has to be roughly right.
func getBuffer(sizeHint int) *bytes.Buffer {
	var buf *bytes.Buffer
	switch {
	case sizeHint <= smallBufferSize:
		buf = encodeBuffers.small.Get().(*bytes.Buffer)
	case sizeHint <= mediumBufferSize:
		buf = encodeBuffers.medium.Get().(*bytes.Buffer)
	default:
		buf = encodeBuffers.large.Get().(*bytes.Buffer)
	}
	buf.Reset()
	return buf
}

// putBuffer returns buf to the tier matching its grown capacity. Buffers
// past twice the large tier are dropped so one huge image does not pin
// memory for the life of the process.
func putBuffer(buf *bytes.Buffer) {
	if buf == nil {
		return
	}
	buf.Reset()
	switch c := buf.Cap(); {
	case c >= 2*largeBufferSize:
		// Let the GC reclaim it.
	case c >= largeBufferSize:
		encodeBuffers.large.Put(buf)
	case c >= mediumBufferSize:
		encodeBuffers.medium.Put(buf)
	default:
		encodeBuffers.small.Put(buf)
	}
}
