// Package pool reduces GC pressure on the UDP receive path by reusing
// fixed-size datagram buffers instead of allocating one per query.
package pool

import "sync"

// DatagramSize is the fixed receive buffer size: v1 never reads more
// than 512 octets from the socket, so larger datagrams are truncated on
// read rather than requiring a size-tiered pool.
const DatagramSize = 512

var datagramPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, DatagramSize)
		return &buf
	},
}

// GetDatagramBuffer returns a zero-length-extended, DatagramSize buffer
// from the pool.
func GetDatagramBuffer() []byte {
	bufPtr := datagramPool.Get().(*[]byte)
	return (*bufPtr)[:DatagramSize]
}

// PutDatagramBuffer returns buf to the pool. Buffers with reduced
// capacity (e.g. from a caller that re-sliced below DatagramSize) are
// not pooled, since they'd be undersized for the next receive.
func PutDatagramBuffer(buf []byte) {
	if cap(buf) < DatagramSize {
		return
	}
	buf = buf[:cap(buf)]
	datagramPool.Put(&buf)
}
