package sja1000

import (
	can "github.com/eugenehp/sja1000can/pkg/can"
	"golang.org/x/sys/unix"
)

// filterSetter is implemented by backends that support kernel-side hardware
// filtering, currently pkg/can/socketcanv2's raw AF_CAN socket. Backends
// without it (virtual, the plain brutella/can socketcan wrapper) simply
// receive every frame and rely on Controller's own acceptFilter pass.
type filterSetter interface {
	SetFilters(filters []unix.CanFilter) error
}

// BusAdapter wraps a pkg/can.Bus transport as the Controller's HostBus,
// translating the neutral Frame and Filter types to and from the transport's
// own can.Frame and unix.CanFilter.
type BusAdapter struct {
	bus can.Bus
}

// NewBusAdapter adapts an already-connected transport. The caller owns the
// transport's lifecycle (Connect/Disconnect/Subscribe); BusAdapter only
// drives outbound Write/SetFilters calls and forwards inbound frames given
// to Deliver via the returned listener.
func NewBusAdapter(bus can.Bus) *BusAdapter {
	return &BusAdapter{bus: bus}
}

func (a *BusAdapter) Write(frame Frame) error {
	cf := can.NewFrame(frame.ID, frame.Flags, frame.DLC)
	cf.Data = frame.Data
	return a.bus.Send(cf)
}

// SetFilters announces the filter set to the transport if it supports
// kernel-side filtering; otherwise it is a no-op, matching [DOMAIN] Host
// Bridge backends' "best effort" framing.
func (a *BusAdapter) SetFilters(kind int, filters []Filter) error {
	setter, ok := a.bus.(filterSetter)
	if !ok {
		return nil
	}
	uf := make([]unix.CanFilter, len(filters))
	for i, f := range filters {
		uf[i] = unix.CanFilter{Id: f.ID, Mask: f.Mask}
	}
	return setter.SetFilters(uf)
}

// DeliverListener adapts a *Controller as a can.FrameListener, so it can be
// passed directly to a transport's Subscribe call.
type DeliverListener struct {
	Controller *Controller
}

func (l DeliverListener) Handle(frame can.Frame) {
	if !l.Controller.CanAccept() {
		return
	}
	var f Frame
	f.ID = frame.ID
	f.Flags = frame.Flags
	f.DLC = frame.DLC
	f.Data = frame.Data
	l.Controller.Deliver(f)
}
