package sja1000

// SJARcvBufLen is the receive FIFO capacity in bytes, SJA_RCV_BUF_LEN in
// the original datasheet-derived source.
const SJARcvBufLen = 64

// rxFIFO is the SJA1000 receive FIFO: a byte ring holding variable-length
// encoded messages, with a separate message counter layered on top of the
// byte counter. It is not a generic ring buffer — enqueue/dequeue both
// operate in units of "one encoded CAN message", the same way the register
// file's Release-Receive-Buffer command does.
type rxFIFO struct {
	buf     [SJARcvBufLen]byte
	start   int // rxbuf_start: read cursor, start of the oldest buffered message
	ptr     int // rx_ptr: write cursor
	byteCnt int // rx_cnt
	msgCnt  int // rxmsg_cnt
}

func (r *rxFIFO) reset() {
	*r = rxFIFO{}
}

// push appends an already-encoded message to the ring. Returns false
// (without mutating state) if the message would overflow capacity — the
// caller is responsible for latching the overrun status/interrupt bits.
func (r *rxFIFO) push(msg []byte) bool {
	if r.byteCnt+len(msg) > SJARcvBufLen {
		return false
	}
	for _, b := range msg {
		r.buf[r.ptr] = b
		r.ptr = (r.ptr + 1) % SJARcvBufLen
	}
	r.byteCnt += len(msg)
	r.msgCnt++
	return true
}

// at reads the byte `offset` positions past the current read cursor,
// wrapping modulo capacity — used for guest reads of the RX buffer window.
func (r *rxFIFO) at(offset int) byte {
	return r.buf[(r.start+offset)%SJARcvBufLen]
}

// peekHeader returns the header byte of the oldest buffered message.
func (r *rxFIFO) peekHeader() byte {
	return r.buf[r.start]
}

// release advances the read cursor past a message of the given encoded
// length (computed by the caller from the header byte, mode-specific),
// decrementing both counters. The caller must not call release when
// msgCnt == 0.
func (r *rxFIFO) release(length int) {
	r.start = (r.start + length) % SJARcvBufLen
	r.byteCnt -= length
	r.msgCnt--
}
