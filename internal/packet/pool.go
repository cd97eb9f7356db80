package packet

import "sync"

// Buffer sizes for the two common cases: a UDP-sized datagram and the
// maximum a TCP-framed message can carry. Adapted from the teacher's
// internal/pool/buffers.go sync.Pool approach to cutting GC pressure,
// retargeted at raw byte buffers instead of *dns.Msg since this codec owns
// its own wire representation.
const (
	UDPBufferSize = 4096
	MaxBufferSize = 65535
)

var udpBufferPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, UDPBufferSize)
		return &b
	},
}

// GetUDPBuffer returns a zero-length-logical (but full-capacity) buffer
// sized for a typical UDP response.
func GetUDPBuffer() []byte {
	return *(udpBufferPool.Get().(*[]byte))
}

// PutUDPBuffer returns buf to the pool. A buffer whose capacity is not
// UDPBufferSize is dropped instead of pooled.
func PutUDPBuffer(buf []byte) {
	if cap(buf) != UDPBufferSize {
		return
	}
	buf = buf[:UDPBufferSize]
	udpBufferPool.Put(&buf)
}
