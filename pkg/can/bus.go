// Package can is the transport layer a Controller's Host Bridge Adapter
// rides on: a wire-level CAN frame plus a registry of pluggable backends
// (socketcan, socketcanv2, virtual, ...), each self-registering from its
// own init(). Outside this tree it is used only by the root package's
// busadapter.go and by the cmd/sja1000sim harness, which picks a backend
// through NewBus; it never imports the root package back, so the SJA1000
// register model stays ignorant of whatever raw transport carries its
// frames.
package can

import (
	"fmt"
)

// Frame is the wire-level CAN frame a Bus backend sends and receives. Its
// shape mirrors struct can_frame, the same layout a Controller's own Frame
// (see Controller.Deliver) reduces to once it crosses the Host Bridge.
type Frame struct {
	ID    uint32
	Flags uint8
	DLC   uint8
	Data  [8]byte
}

func NewFrame(id uint32, flags uint8, dlc uint8) Frame {
	return Frame{ID: id, Flags: flags, DLC: dlc}
}

// FrameListener receives frames a Bus backend read off the wire. A
// Controller is never a FrameListener directly — busadapter.go's
// DeliverListener stands between the two so this package stays free of any
// register-level knowledge.
type FrameListener interface {
	Handle(frame Frame)
}

// Bus is the minimal lifecycle every backend under pkg/can implements.
// Backends that can additionally push acceptance filters down to kernel-side
// CAN_RAW sockets (socketcanv2) implement a SetFilters([]unix.CanFilter)
// error method as well; busadapter.go probes for it with a type assertion
// rather than requiring it here, since backends like virtual have nothing to
// push a filter into.
type Bus interface {
	Connect(...any) error                   // Connect to the CAN bus
	Disconnect() error                      // Disconnect from CAN bus
	Send(frame Frame) error                 // Send a frame on the bus
	Subscribe(callback FrameListener) error // Subscribe to all received CAN frames
}

// Register a new CAN bus interface type
// This should be called inside an init() function of plugin
func RegisterInterface(interfaceType string, newInterface NewInterfaceFunc) {
	interfaceRegistry[interfaceType] = newInterface
}

type NewInterfaceFunc func(channel string) (Bus, error)

var interfaceRegistry = make(map[string]NewInterfaceFunc)

// NewBus looks up a backend registered under canInterface (one of
// "virtual", "virtualcan", "socketcan", "socketcanv2") and constructs it
// against channel. bitrate is accepted for parity with real hardware
// configuration but is presently ignored: none of the kept backends
// negotiate bitrate themselves, it is set on the kernel interface
// (e.g. `ip link set can0 type can bitrate 500000`) before Connect.
func NewBus(canInterface string, channel string, bitrate int) (Bus, error) {
	createInterface, ok := interfaceRegistry[canInterface]
	if !ok {
		return nil, fmt.Errorf("unsupported interface : %v", canInterface)
	}
	return createInterface(channel)
}
