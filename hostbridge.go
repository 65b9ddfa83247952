package sja1000

// Filter is one acceptance-filter entry announced to the host bus, the
// {can_id, can_mask} pair passed through host_ioctl.
type Filter struct {
	ID   uint32
	Mask uint32
}

// Filter kinds, matching the host_ioctl "kind" argument.
const (
	FilterKindBasicCAN      = 1
	FilterKindPeliCANSingle = 2
	FilterKindPeliCANDual   = 4
)

// HostBus is the Host Bridge Adapter's outbound contract: writing frames to
// the external byte stream and announcing the active filter set. Real
// transports (pkg/can/socketcan, pkg/can/virtual, ...) are adapted to this
// interface by BusAdapter (busadapter.go); it deliberately does not
// expose Connect/Subscribe, which belong to the transport's own lifecycle.
type HostBus interface {
	Write(frame Frame) error
	SetFilters(kind int, filters []Filter) error
}

// CanAccept reports whether the controller is in operation mode and can
// accept an inbound frame from the host bus. Mirrors canpci_can_receive.
func (c *Controller) CanAccept() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.peliCAN() {
		return c.mode&0x01 == 0
	}
	return c.control&0x01 == 0
}

// DeliverBytes is the raw-byte counterpart of Deliver: the entry point for
// a host transport that hands over an undifferentiated byte chunk rather
// than an already-parsed Frame (canpci_receive's buf/size argument pair).
// Any chunk shorter than FrameWireSize is silently dropped, matching the
// "short host delivery" error kind — it never reaches the codec, filter or
// FIFO, and never raises an interrupt.
func (c *Controller) DeliverBytes(buf []byte) {
	var f Frame
	if err := f.UnmarshalBinary(buf); err != nil {
		c.log.WithError(err).Warn("dropping short host delivery")
		return
	}
	c.Deliver(f)
}

// Deliver runs an inbound host-side frame through the codec, acceptance
// filter and receive FIFO, latching overrun or updating the RX interrupt
// as appropriate. Mirrors canpci_receive.
func (c *Controller) Deliver(frame Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.peliCAN() {
		c.deliverPeliCANLocked(frame)
	} else {
		c.deliverBasicCANLocked(frame)
	}
}

func (c *Controller) deliverPeliCANLocked(frame Frame) {
	c.statusP |= 1 << 4

	single := c.mode&(1<<3) != 0
	if !acceptFilter(single, c.codeMask, frame) {
		c.statusP &^= 1 << 4
		return
	}

	var buf [13]byte
	n := encodePeliCAN(frame, buf[:])
	if n < 0 {
		c.statusP &^= 1 << 4
		return
	}

	if c.rx.byteCnt+n > SJARcvBufLen {
		c.statusP |= 1 << 1
		c.interruptP |= 1 << 3
		c.statusP &^= 1 << 4
		c.syncIRQLocked()
		return
	}

	c.rx.push(buf[:n])

	c.statusP |= 0x01
	c.interruptP |= 0x01
	c.statusP &^= 1 << 4
	c.syncIRQLocked()
}

func (c *Controller) deliverBasicCANLocked(frame Frame) {
	c.statusB |= 1 << 4

	var buf [13]byte
	n := encodeBasicCAN(frame, buf[:])
	if n < 0 {
		c.statusB &^= 1 << 4
		return
	}

	if c.rx.byteCnt+n > SJARcvBufLen {
		c.statusB |= 1 << 1
		c.statusB &^= 1 << 4
		c.interruptB |= 1 << 3
		c.syncIRQLocked()
		return
	}

	c.rx.push(buf[:n])

	c.statusB |= 0x01
	c.statusB &^= 1 << 4
	c.interruptB |= 0x01
	c.syncIRQLocked()
}

func (c *Controller) hostWriteLocked(frame Frame) error {
	return c.bus.Write(frame)
}

// announceFilterSetLocked builds the host-side filter set from the
// acceptance code/mask registers and announces it via host_ioctl. Called
// exactly once per reset-to-operation mode transition.
func (c *Controller) announceFilterSetLocked() {
	var kind int
	var filters []Filter
	if c.peliCAN() {
		if c.mode&(1<<3) != 0 {
			kind, filters = FilterKindPeliCANSingle, c.singleModeFiltersLocked()
		} else {
			kind, filters = FilterKindPeliCANDual, c.dualModeFiltersLocked()
		}
	} else {
		kind, filters = FilterKindBasicCAN, c.basicModeFiltersLocked()
	}
	if err := c.bus.SetFilters(kind, filters); err != nil {
		c.log.WithError(err).Warn("failed to announce filter set to host bus")
	}
}

func (c *Controller) singleModeFiltersLocked() []Filter {
	cm := c.codeMask

	effID := u32(cm[0])<<21&(0xff<<21) | u32(cm[1])<<13&(0xff<<13) | u32(cm[2])<<5&(0xff<<5) | u32(cm[3])>>3&0x1f | 1<<31
	effMask := u32(cm[4])<<21&(0xff<<21) | u32(cm[5])<<13&(0xff<<13) | u32(cm[6])<<5&(0xff<<5) | u32(cm[7])>>3&0x1f | 7<<29
	effMask = ^effMask | 1<<31
	if cm[3]&(1<<2) != 0 {
		effID |= 1 << 30
	}
	if cm[7]&(1<<2) == 0 {
		effMask |= 1 << 30
	}

	sffID := u32(cm[0])<<3&(0xff<<3) | u32(cm[1])>>5&0x07
	sffMask := u32(cm[4])<<3&(0xff<<3) | u32(cm[5])>>5&0x07 | 0xff<<11 | 0xff<<19 | 0x0f<<27
	sffMask = ^sffMask | 1<<31
	if cm[1]&(1<<4) != 0 {
		sffID |= 1 << 30
	}
	if cm[5]&(1<<4) == 0 {
		sffMask |= 1 << 30
	}

	return []Filter{{ID: effID, Mask: effMask}, {ID: sffID, Mask: sffMask}}
}

func (c *Controller) dualModeFiltersLocked() []Filter {
	cm := c.codeMask

	eff0ID := u32(cm[0])<<21&(0xff<<21) | u32(cm[1])<<13&(0xff<<13) | 1<<31
	eff0Mask := u32(cm[4])<<21&(0xff<<21) | u32(cm[5])<<13&(0xff<<13) | 0xff<<5 | 0xff>>3 | 7<<29
	eff0Mask = ^eff0Mask | 1<<31

	eff1ID := u32(cm[2])<<21&(0xff<<21) | u32(cm[3])<<13&(0xff<<13) | 1<<31
	eff1Mask := u32(cm[6])<<21&(0xff<<21) | u32(cm[7])<<13&(0xff<<13) | 0xff<<5 | 0xff>>3 | 7<<29
	eff1Mask = ^eff1Mask | 1<<31

	sff0ID := u32(cm[0])<<3&(0xff<<3) | u32(cm[1])>>5&0x07
	sff0Mask := u32(cm[4])<<3&(0xff<<3) | u32(cm[5])>>5&0x07 | 0xff<<11 | 0xff<<19 | 0x0f<<27
	sff0Mask = ^sff0Mask | 1<<31
	if cm[1]&(1<<4) != 0 {
		sff0ID |= 1 << 30
	}
	if cm[5]&(1<<4) == 0 {
		sff0Mask |= 1 << 30
	}

	sff1ID := u32(cm[2])<<3&(0xff<<3) | u32(cm[3])>>5&0x07
	sff1Mask := u32(cm[6])<<3&(0xff<<3) | u32(cm[7])>>5&0x07 | 0xff<<11 | 0xff<<19 | 0x0f<<27
	sff1Mask = ^sff1Mask | 1<<31
	if cm[3]&(1<<4) != 0 {
		sff1ID |= 1 << 30
	}
	if cm[7]&(1<<4) == 0 {
		sff1Mask |= 1 << 30
	}

	return []Filter{
		{ID: eff0ID, Mask: eff0Mask},
		{ID: eff1ID, Mask: eff1Mask},
		{ID: sff0ID, Mask: sff0Mask},
		{ID: sff1ID, Mask: sff1Mask},
	}
}

func (c *Controller) basicModeFiltersLocked() []Filter {
	id := u32(c.code)<<3 & (0xff << 3)
	mask := ^(u32(c.mask) << 3) & (0xff << 3)
	mask |= 1 << 31
	return []Filter{{ID: id, Mask: mask}}
}

func u32(b byte) uint32 { return uint32(b) }
