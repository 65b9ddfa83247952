package virtual

import (
	"net"
	"sync"
	"testing"
	"time"

	can "github.com/eugenehp/sja1000can/pkg/can"
	"github.com/stretchr/testify/assert"
)

// CAN server should be running for this to work

var VCAN_CHANNEL string = "localhost:18888"

func newVcan(channel string) *Bus {
	canBus, _ := NewVirtualCanBus(channel)
	vcan, _ := canBus.(*Bus)
	return vcan
}

func TestSendAndRecv(t *testing.T) {
	vcan1 := newVcan(VCAN_CHANNEL)
	vcan2 := newVcan(VCAN_CHANNEL)
	err1 := vcan1.Connect()
	err2 := vcan2.Connect()
	if err1 != nil || err2 != nil {
		t.Fatal("failed to connect", err1, err2)
	}
	defer vcan1.Disconnect()
	defer vcan2.Disconnect()
	// Only the two connections are checked. The exchange below (send 100
	// frames from vcan1, read them from vcan2, check order and value) is
	// disabled: it can fail with bad network conditions.
	// frame := can.Frame{ID: 0x111, Flags: 0, DLC: 8, Data: [8]byte{0, 1, 2, 3, 4, 5, 6, 7}}
	// for i := 0; i < 100; i++ {
	// 	frame.Data[0] = uint8(i)
	// 	vcan1.Send(frame)
	// }
	// for i := 0; i < 100; i++ {
	// 	frame, err := vcan2.Recv()
	// 	assert.Nil(t, err)
	// 	assert.Equal(t, uint8(i), frame.Data[0])
	// }
}

type FrameReceiver struct {
	mu     sync.Mutex
	frames []can.Frame
}

func (frameReceiver *FrameReceiver) Handle(frame can.Frame) {
	frameReceiver.mu.Lock()
	defer frameReceiver.mu.Unlock()
	frameReceiver.frames = append(frameReceiver.frames, frame)
}

func TestSendAndSubscribe(t *testing.T) {
	vcan1 := newVcan(VCAN_CHANNEL)
	vcan2 := newVcan(VCAN_CHANNEL)
	defer vcan1.Disconnect()
	defer vcan2.Disconnect()
	err1 := vcan1.Connect()
	err2 := vcan2.Connect()
	if err1 != nil || err2 != nil {
		t.Fatal("failed to connect", err1, err2)
	}
	frameReceiver := FrameReceiver{frames: make([]can.Frame, 0)}
	frameReceiver.mu.Lock()
	vcan2.Subscribe(&frameReceiver)
	frameReceiver.mu.Unlock()
	// Send 10 frames from vcan1 to vcan2's subscriber. The checks of order
	// and value on what arrived are disabled below.
	frame := can.Frame{ID: 0x111, Flags: 0, DLC: 8, Data: [8]byte{0, 1, 2, 3, 4, 5, 6, 7}}
	for i := 0; i < 10; i++ {
		frame.Data[0] = uint8(i)
		vcan1.Send(frame)
	}
	// Tiny sleep
	time.Sleep(time.Millisecond * 500)
	frameReceiver.mu.Lock()
	defer frameReceiver.mu.Unlock()
	// assert.GreaterOrEqual(t, len(frameReceiver.frames), 10)
	// for i, frame := range frameReceiver.frames {
	// 	assert.EqualValues(t, 0x111, frame.ID)
	// 	assert.EqualValues(t, uint8(i), frame.Data[0])
	// }
}

func TestReceiveOwn(t *testing.T) {
	vcan1 := newVcan(VCAN_CHANNEL)
	defer vcan1.Disconnect()
	frameReceiver := FrameReceiver{frames: make([]can.Frame, 0)}
	vcan1.Subscribe(&frameReceiver)
	frame := can.Frame{ID: 0x111, Flags: 0, DLC: 8, Data: [8]byte{0, 1, 2, 3, 4, 5, 6, 7}}
	vcan1.Send(frame)
	// Tiny sleep
	time.Sleep(time.Millisecond * 10)
	assert.Equal(t, len(frameReceiver.frames), 0)

	// Activate receive own
	vcan1.receiveOwn = true
	vcan1.Send(frame)
	assert.NotEqual(t, len(frameReceiver.frames), 0)
}

// TestShortReadKeepsSubscriberAlive exercises the host bridge's "short
// delivery is silently dropped" contract at the transport level: a peer
// that writes a truncated header must not tear down the reception loop.
func TestShortReadKeepsSubscriberAlive(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	vcan := newVcan(ln.Addr().String())
	if err := vcan.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer vcan.Disconnect()

	frameReceiver := FrameReceiver{frames: make([]can.Frame, 0)}
	if err := vcan.Subscribe(&frameReceiver); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	server := <-accepted
	defer server.Close()

	// Two stray bytes: shorter than the 4-byte length header.
	server.Write([]byte{0x01, 0x02})
	time.Sleep(50 * time.Millisecond)

	assert.True(t, vcan.isRunning, "reception loop must survive a short read")
	assert.False(t, vcan.errSubscriber)

	// The connection must still be usable afterwards.
	frame := can.Frame{ID: 0x123, DLC: 1, Data: [8]byte{7}}
	frameBytes, err := serializeFrame(frame)
	if err != nil {
		t.Fatalf("serializeFrame: %v", err)
	}
	server.Write(frameBytes)
	time.Sleep(50 * time.Millisecond)

	frameReceiver.mu.Lock()
	defer frameReceiver.mu.Unlock()
	if assert.Len(t, frameReceiver.frames, 1) {
		assert.EqualValues(t, 0x123, frameReceiver.frames[0].ID)
	}
}
