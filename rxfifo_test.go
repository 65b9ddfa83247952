package sja1000

import "testing"

func TestRxFIFOPushAndRelease(t *testing.T) {
	var rx rxFIFO
	if !rx.push([]byte{0x03, 0x24, 0x60, 0xAA, 0xBB, 0xCC}) {
		t.Fatal("push failed unexpectedly")
	}
	if rx.msgCnt != 1 || rx.byteCnt != 6 {
		t.Errorf("msgCnt=%d byteCnt=%d, want 1,6", rx.msgCnt, rx.byteCnt)
	}
	for i, want := range []byte{0x03, 0x24, 0x60, 0xAA, 0xBB, 0xCC} {
		if got := rx.at(i); got != want {
			t.Errorf("at(%d) = %#x, want %#x", i, got, want)
		}
	}
	rx.release(6)
	if rx.msgCnt != 0 || rx.byteCnt != 0 {
		t.Errorf("msgCnt=%d byteCnt=%d, want 0,0 after release", rx.msgCnt, rx.byteCnt)
	}
}

func TestRxFIFOOverrunSignal(t *testing.T) {
	var rx rxFIFO
	big := make([]byte, SJARcvBufLen)
	if !rx.push(big) {
		t.Fatal("filling exactly to capacity should succeed")
	}
	if rx.push([]byte{1}) {
		t.Error("push exceeding capacity must fail without mutating state")
	}
	if rx.byteCnt != SJARcvBufLen || rx.msgCnt != 1 {
		t.Errorf("overrun attempt must not mutate counters: byteCnt=%d msgCnt=%d", rx.byteCnt, rx.msgCnt)
	}
}

func TestRxFIFOWrapAround(t *testing.T) {
	var rx rxFIFO
	// Push and release once to walk the write cursor near the end of
	// the ring, then push a message that straddles the wrap point.
	filler := make([]byte, SJARcvBufLen-4)
	rx.push(filler)
	rx.release(len(filler))
	msg := []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	if !rx.push(msg) {
		t.Fatal("wrapping push failed")
	}
	for i, want := range msg {
		if got := rx.at(i); got != want {
			t.Errorf("wrapped at(%d) = %#x, want %#x", i, got, want)
		}
	}
}

func TestRxFIFOReset(t *testing.T) {
	var rx rxFIFO
	rx.push([]byte{1, 2, 3})
	rx.reset()
	if rx.msgCnt != 0 || rx.byteCnt != 0 || rx.start != 0 || rx.ptr != 0 {
		t.Errorf("reset left non-zero state: %+v", rx)
	}
}
