package sja1000

// This file implements the SJA1000's two on-register byte layouts
// (PeliCAN and BasicCAN) and the pure conversions between them and Frame.
// decode* turns a guest-written transmit buffer into a Frame headed for the
// host bridge; encode* turns an inbound Frame into the byte layout the
// guest reads back out of the receive FIFO.

// decodePeliCAN interprets the PeliCAN transmit buffer format:
// buff[0] bit 7 = EFF, bit 6 = RTR, bits 3..0 = dlc. A dlc above 8 is kept
// as decoded; at most 8 data bytes are copied.
func decodePeliCAN(buff []byte) Frame {
	var f Frame
	f.DLC = buff[0] & 0x0f
	n := int(f.DLC)
	if n > 8 {
		n = 8
	}
	if buff[0]&0x40 != 0 {
		f.Flags |= FlagRTR
	}
	if buff[0]&0x80 != 0 {
		f.Flags |= FlagEFF
		f.ID = uint32(buff[1])<<21 | uint32(buff[2])<<13 | uint32(buff[3])<<5 | uint32(buff[4])>>3
		copy(f.Data[:n], buff[5:5+n])
	} else {
		f.ID = uint32(buff[1])<<3 | uint32(buff[2])>>5
		copy(f.Data[:n], buff[3:3+n])
	}
	return f
}

// encodePeliCAN is the inverse of decodePeliCAN, producing the bytes the
// guest reads back from the receive FIFO. Returns the encoded length, or
// -1 for an error frame (unsupported). A dlc above 8 is encoded as 8.
func encodePeliCAN(f Frame, buff []byte) int {
	if f.IsERR() {
		return -1
	}
	dlc := f.DLC
	if dlc > 8 {
		dlc = 8
	}
	buff[0] = dlc & 0x0f
	if f.IsRTR() {
		buff[0] |= 1 << 6
	}
	if f.IsEFF() {
		buff[0] |= 1 << 7
		buff[1] = byte(f.ID >> 21)
		buff[2] = byte(f.ID >> 13)
		buff[3] = byte(f.ID >> 5)
		buff[4] = byte(f.ID<<3) & 0xf8
		copy(buff[5:5+int(dlc)], f.Data[:dlc])
		return 5 + int(dlc)
	}
	buff[1] = byte(f.ID >> 3)
	buff[2] = byte(f.ID<<5) & 0xe0
	copy(buff[3:3+int(dlc)], f.Data[:dlc])
	return 3 + int(dlc)
}

// decodeBasicCAN interprets the BasicCAN transmit buffer format:
// id = (buff[0]<<3) | (buff[1]>>5); RTR = buff[1] bit 4; dlc = buff[1]&0x0f.
//
// Preserves a source bug: a set RTR bit overwrites the decoded id with
// 1<<30 instead of ORing it in, so RTR frames lose their identifier.
// A dlc above 8 is kept as decoded; at most 8 data bytes are copied.
func decodeBasicCAN(buff []byte) Frame {
	var f Frame
	if buff[1]&0x10 != 0 {
		f.Flags |= FlagRTR
	} else {
		f.ID = uint32(buff[0])<<3&(0xff<<3) | uint32(buff[1])>>5&0x07
	}
	f.DLC = buff[1] & 0x0f
	n := int(f.DLC)
	if n > 8 {
		n = 8
	}
	copy(f.Data[:n], buff[2:2+n])
	return f
}

// encodeBasicCAN is the inverse of decodeBasicCAN. Refuses EFF and error
// frames, neither representable in BasicCAN mode. A dlc above 8 is encoded
// as 8.
func encodeBasicCAN(f Frame, buff []byte) int {
	if f.IsEFF() || f.IsERR() {
		return -1
	}
	dlc := f.DLC
	if dlc > 8 {
		dlc = 8
	}
	buff[0] = byte(f.ID >> 3)
	buff[1] = byte(f.ID<<5) & 0xe0
	if f.IsRTR() {
		buff[1] |= 1 << 4
	}
	buff[1] |= dlc & 0x0f
	copy(buff[2:2+int(dlc)], f.Data[:dlc])
	return 2 + int(dlc)
}
