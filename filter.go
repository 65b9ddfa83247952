package sja1000

// acceptFilter implements the PeliCAN acceptance filter (datasheet p.22).
// It is consulted only in PeliCAN mode on the receive path; BasicCAN mode
// always accepts (the host-side filter is assumed to have pre-filtered).
//
// codeMask holds the reset-mode acceptance code bytes at indices 0..3 and
// the acceptance mask bytes at indices 4..7, exactly the register-16..23
// layout.
//
// Several paths here are pass-through (accept unconditionally) rather than
// literal datasheet transcriptions — single-mode EFF frames, and dual-mode
// frames whose top-level identifier comparison fails. These are preserved
// bit-exactly; guest drivers depend on this behavior as written.
func acceptFilter(single bool, codeMask [8]byte, f Frame) bool {
	if single {
		if f.IsEFF() {
			return true
		}
		if f.IsRTR() {
			return true
		}
		if f.DLC == 0 {
			return true
		}
		if f.DLC == 1 {
			return (f.Data[0] &^ codeMask[6]) == (codeMask[2] &^ codeMask[6])
		}
		// dlc >= 2
		return (f.Data[0]&^codeMask[6]) == (codeMask[2]&^codeMask[6]) &&
			(f.Data[1]&^codeMask[7]) == (codeMask[3]&^codeMask[7])
	}

	// Dual mode.
	if f.IsEFF() {
		return true
	}
	idHighMatch := (codeMask[0] &^ codeMask[4]) == (byte(f.ID>>3) &^ codeMask[4])
	idLowMatch := ((codeMask[1] &^ codeMask[5]) & 0xe0) == ((byte(f.ID<<5) &^ codeMask[5]) & 0xe0)
	if !(idHighMatch && idLowMatch) {
		return true
	}
	if f.DLC == 0 {
		return true
	}
	tmp1 := (codeMask[1]<<4)&0xf0 | codeMask[2]&0x0f
	tmp2 := ^((codeMask[5]<<4)&0xf0 | codeMask[6]&0x0f)
	return (tmp1 & tmp2) == (f.Data[0] & tmp2)
}
