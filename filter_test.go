package sja1000

import "testing"

func TestAcceptFilterSingleModeAllOnesMask(t *testing.T) {
	// Mask bytes all 1: ~mask == 0, so the data comparisons always match.
	codeMask := [8]byte{0, 0, 0, 0, 0xff, 0xff, 0xff, 0xff}
	f := Frame{ID: 0x123, DLC: 3, Data: [8]byte{0xAA, 0xBB, 0xCC}}
	if !acceptFilter(true, codeMask, f) {
		t.Error("expected accept with all-ones mask")
	}
}

func TestAcceptFilterSingleModeRTRAndEmptyAlwaysAccept(t *testing.T) {
	var codeMask [8]byte
	if !acceptFilter(true, codeMask, Frame{Flags: FlagRTR, DLC: 5}) {
		t.Error("RTR frames must be accepted unconditionally in single mode")
	}
	if !acceptFilter(true, codeMask, Frame{DLC: 0}) {
		t.Error("zero-dlc frames must be accepted unconditionally in single mode")
	}
	if !acceptFilter(true, codeMask, Frame{Flags: FlagEFF, DLC: 8}) {
		t.Error("EFF frames must be accepted unconditionally in single mode")
	}
}

func TestAcceptFilterSingleModeDataMismatchRejected(t *testing.T) {
	// code[2]=0x55, mask[6]=0 (exact match required on data[0]).
	var codeMask [8]byte
	codeMask[2] = 0x55
	if acceptFilter(true, codeMask, Frame{DLC: 1, Data: [8]byte{0xAA}}) {
		t.Error("expected reject on data[0] mismatch")
	}
	if !acceptFilter(true, codeMask, Frame{DLC: 1, Data: [8]byte{0x55}}) {
		t.Error("expected accept on data[0] match")
	}
}

func TestAcceptFilterDualModeIDMismatchIsPassThrough(t *testing.T) {
	// An ID comparison that fails still accepts in dual mode: only a
	// matched-ID, mismatched-data combination rejects.
	var codeMask [8]byte
	codeMask[0] = 0xff // code demands id-high == 0xff
	f := Frame{ID: 0x001, DLC: 2, Data: [8]byte{0, 0}}
	if !acceptFilter(false, codeMask, f) {
		t.Error("ID mismatch in dual mode must still accept (pass-through)")
	}
}

func TestAcceptFilterDualModeEFFAlwaysAccepts(t *testing.T) {
	var codeMask [8]byte
	f := Frame{ID: 0x1ABCDEF, Flags: FlagEFF, DLC: 8}
	if !acceptFilter(false, codeMask, f) {
		t.Error("EFF frames must be accepted unconditionally in dual mode")
	}
}
