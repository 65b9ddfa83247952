package sja1000

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// windowSize is the guest-visible register window, 32 bytes. The bounds
// check below preserves a source off-by-one (addr > windowSize instead of
// addr >= windowSize): offset 32 passes the check and falls through to
// each mode's switch default instead of being rejected.
const windowSize = 32

// PeliCAN register offsets.
const (
	offMode        = 0
	offCommand     = 1
	offStatus      = 2
	offInterrupt   = 3
	offInterruptEn = 4
	offTxRxFirst   = 16
	offTxRxLast    = 28
	offCodeMaskEnd = 23 // reset-mode code/mask bytes occupy 16..23
	offClock       = 31
)

// BasicCAN register offsets.
const (
	bOffControl   = 0
	bOffCommand   = 1
	bOffStatus    = 2
	bOffInterrupt = 3
	bOffCode      = 4
	bOffMask      = 5
	bOffTxFirst   = 10
	bOffTxLast    = 19
	bOffRxFirst   = 20
	bOffRxLast    = 29
	bOffClock     = 31
)

// Command register bits, shared bit positions for both modes.
const (
	cmdTR  uint8 = 1 << 0 // transmission request
	cmdRRB uint8 = 1 << 2 // release receive buffer
	cmdCDO uint8 = 1 << 3 // clear data overrun
)

// Controller is the SJA1000 register-level state machine: PeliCAN and
// BasicCAN register banks, the receive FIFO, and the IRQ arbiter, all
// guarded by a single mutex shared between the guest-facing Read/Write
// path and the host-facing Deliver path.
type Controller struct {
	mu sync.Mutex

	// PeliCAN bank.
	mode        uint8
	statusP     uint8
	interruptP  uint8
	interruptEn uint8
	codeMask    [8]byte

	// BasicCAN bank.
	control    uint8
	statusB    uint8
	interruptB uint8
	code       uint8
	mask       uint8

	clock uint8 // bit 7 selects PeliCAN(1) / BasicCAN(0)

	txBuf [13]byte
	rx    rxFIFO

	irq irqArbiter
	bus HostBus

	log *log.Entry
}

// NewController constructs a controller bound to the given host bus and
// IRQ line. model must equal "SJA1000"; any other value is a construction
// error, matching the original device's model-string validation.
func NewController(model string, bus HostBus, irq IRQLine) (*Controller, error) {
	if bus == nil {
		return nil, ErrNoHostBus
	}
	if model != "SJA1000" {
		return nil, ErrWrongModel
	}
	c := &Controller{
		bus: bus,
		irq: newIRQArbiter(irq),
		log: log.WithField("component", "sja1000"),
	}
	c.HardwareReset()
	return c, nil
}

// HardwareReset restores the power-on register values (datasheet p.10) and
// lowers the IRQ line unconditionally. Invoked once at construction and on
// system-wide reset requests.
func (c *Controller) HardwareReset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.mode = 0x01
	c.statusP = 0x3c
	c.interruptP = 0x00
	c.interruptEn = 0x00
	c.clock = 0x00
	c.codeMask = [8]byte{}
	c.rx.reset()

	c.control = 0x01
	c.statusB = 0x0c
	c.interruptB = 0x00
	c.code = 0x00
	c.mask = 0x00

	c.txBuf = [13]byte{}

	c.irq.level = false
	c.irq.primed = true
	c.irq.line.SetLevel(false)
}

func (c *Controller) peliCAN() bool { return c.clock&0x80 != 0 }

// basicCANEnableMask maps the BasicCAN control register's interrupt-enable
// bits onto the interruptB bit positions they mirror (bit0 RX, bit1 TX,
// bit3 overrun), so the IRQ arbiter can be driven the same way for both
// banks.
func basicCANEnableMask(control uint8) uint8 {
	var m uint8
	if control&0x02 != 0 {
		m |= 0x01
	}
	if control&0x04 != 0 {
		m |= 0x02
	}
	if control&0x10 != 0 {
		m |= 0x08
	}
	return m
}

func (c *Controller) syncIRQLocked() {
	if c.peliCAN() {
		c.irq.sync(c.interruptP, c.interruptEn)
	} else {
		c.irq.sync(c.interruptB, basicCANEnableMask(c.control))
	}
}

// Read decodes a single-byte guest register read at offset (0..31).
func (c *Controller) Read(offset int) uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if offset > windowSize {
		return 0
	}
	if c.peliCAN() {
		return c.readPeliCANLocked(offset)
	}
	return c.readBasicCANLocked(offset)
}

// Write decodes a single-byte guest register write at offset (0..31).
func (c *Controller) Write(offset int, val uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if offset > windowSize {
		return
	}
	if c.peliCAN() {
		c.writePeliCANLocked(offset, val)
	} else {
		c.writeBasicCANLocked(offset, val)
	}
}

func (c *Controller) readPeliCANLocked(offset int) uint8 {
	switch {
	case offset == offMode:
		return c.mode
	case offset == offCommand:
		return 0x00 // command register cannot be read back
	case offset == offStatus:
		return c.statusP
	case offset == offInterrupt:
		temp := c.interruptP
		c.interruptP = 0
		if c.rx.msgCnt > 0 {
			c.interruptP |= 0x01
		}
		c.syncIRQLocked()
		return temp
	case offset == offInterruptEn:
		return c.interruptEn
	case offset >= 5 && offset <= 15:
		return 0x00
	case offset >= offTxRxFirst && offset <= offTxRxLast:
		if c.mode&0x01 != 0 { // reset mode: expose acceptance code/mask
			if offset <= offCodeMaskEnd {
				return c.codeMask[offset-offTxRxFirst]
			}
			return 0x00
		}
		return c.rx.at(offset - offTxRxFirst)
	case offset == offClock:
		return c.clock
	default:
		return 0xff
	}
}

func (c *Controller) writePeliCANLocked(offset int, val uint8) {
	switch {
	case offset == offMode:
		wasReset := c.mode&0x01 != 0
		c.mode = val & 0x1f
		if wasReset && val&0x01 == 0 {
			c.announceFilterSetLocked()
			c.rx.reset()
		}
	case offset == offCommand:
		c.handleCommandLocked(true, val)
	case offset == offStatus, offset == offInterrupt:
		// read-only registers, writes ignored
	case offset == offInterruptEn:
		c.interruptEn = val
		c.syncIRQLocked()
	case offset >= offTxRxFirst && offset <= offTxRxLast:
		if offset == offTxRxFirst {
			c.statusP |= 1 << 5
		}
		if c.mode&0x01 != 0 { // reset mode
			if offset <= offCodeMaskEnd {
				c.codeMask[offset-offTxRxFirst] = val
			}
		} else {
			c.txBuf[offset-offTxRxFirst] = val
		}
	case offset == offClock:
		c.clock = val
	}
}

func (c *Controller) readBasicCANLocked(offset int) uint8 {
	switch {
	case offset == bOffControl:
		return c.control
	case offset == bOffStatus:
		return c.statusB
	case offset == bOffInterrupt:
		temp := c.interruptB
		c.interruptB = 0
		if c.rx.msgCnt > 0 {
			c.interruptB |= 0x01
		}
		c.syncIRQLocked()
		return temp
	case offset == bOffCode:
		return c.code
	case offset == bOffMask:
		return c.mask
	case offset >= bOffRxFirst && offset <= bOffRxLast:
		return c.rx.at(offset - bOffRxFirst)
	case offset == bOffClock:
		return c.clock
	default:
		return 0xff
	}
}

func (c *Controller) writeBasicCANLocked(offset int, val uint8) {
	switch {
	case offset == bOffControl:
		wasReset := c.control&0x01 != 0
		if wasReset && val&0x01 == 0 {
			c.announceFilterSetLocked()
			c.rx.reset()
		} else if !wasReset && val&0x01 == 0 {
			c.softwareResetLocked()
		}
		c.control = val & 0x1f
	case offset == bOffCommand:
		c.handleCommandLocked(false, val)
	case offset == bOffCode:
		c.code = val
	case offset == bOffMask:
		c.mask = val
	case offset >= bOffTxFirst && offset <= bOffTxLast:
		if offset == bOffTxFirst {
			c.statusB |= 1 << 5
		}
		if c.control&0x01 == 0 { // operation mode
			c.txBuf[offset-bOffTxFirst] = val
		}
	case offset == bOffClock:
		c.clock = val
	}
}

// handleCommandLocked implements the command register (TR/RRB/CDO), shared
// between PeliCAN and BasicCAN modulo which status/interrupt/enable
// registers it touches.
func (c *Controller) handleCommandLocked(peliCAN bool, val uint8) {
	switch {
	case val&cmdTR != 0:
		c.transmitLocked(peliCAN)
	case val&cmdRRB != 0:
		c.releaseReceiveBufferLocked(peliCAN)
	case val&cmdCDO != 0:
		c.clearOverrunLocked(peliCAN)
	}
}

func (c *Controller) transmitLocked(peliCAN bool) {
	var frame Frame
	if peliCAN {
		frame = decodePeliCAN(c.txBuf[:])
		c.statusP &^= 3 << 2
	} else {
		frame = decodeBasicCAN(c.txBuf[:])
		c.statusB &^= 3 << 2
	}

	if err := c.hostWriteLocked(frame); err != nil {
		c.log.WithError(err).Warn("failed to deliver transmit frame to host bus")
	}

	if peliCAN {
		c.statusP |= 3 << 2
		c.statusP &^= 1 << 5
		c.interruptP |= 0x02
		c.syncIRQLocked()
	} else {
		c.statusB |= 3 << 2
		c.statusB &^= 1 << 5
		c.interruptB |= 0x02
		c.syncIRQLocked()
	}
}

func (c *Controller) releaseReceiveBufferLocked(peliCAN bool) {
	if c.rx.msgCnt <= 0 {
		return
	}
	var length int
	if peliCAN {
		header := c.rx.peekHeader()
		length = 3
		if header&(1<<7) != 0 { // EFF
			length += 2
		}
		if header&(1<<6) == 0 { // not RTR: data follows
			length += int(header & 0x0f)
		}
	} else {
		// BasicCAN's length-bearing byte is the second FIFO byte (id-low
		// nibble + dlc), not the first, unlike the PeliCAN header byte.
		length = 2 + int(c.rx.at(1)&0x0f)
	}
	c.rx.release(length)

	if c.rx.msgCnt == 0 {
		if peliCAN {
			c.statusP &^= 1 << 0
			c.interruptP &^= 1 << 0
		} else {
			c.statusB &^= 1 << 0
			c.interruptB &^= 1 << 0
		}
	}
	c.syncIRQLocked()
}

func (c *Controller) clearOverrunLocked(peliCAN bool) {
	if peliCAN {
		c.statusP &^= 1 << 1
		c.interruptP &^= 1 << 3
	} else {
		c.statusB &^= 1 << 1
		c.interruptB &^= 1 << 3
	}
	c.syncIRQLocked()
}

// softwareResetLocked mirrors can_software_reset: entered when the guest
// writes the BasicCAN control register while bit 0 is 0 both before and
// after the write (an operation-mode write that doesn't request reset),
// matching the original's quirky re-entrant reset path.
func (c *Controller) softwareResetLocked() {
	c.mode &^= 0x31
	c.mode |= 0x01
	c.statusP &^= 0x37
	c.statusP |= 0x34
	c.rx.reset()
}
