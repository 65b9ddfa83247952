package sja1000

import "errors"

var (
	// ErrWrongModel is returned when a device is constructed with a model
	// string other than "SJA1000".
	ErrWrongModel = errors.New("sja1000: unsupported model, expected \"SJA1000\"")

	// ErrNoHostBus is returned by NewController when constructed without a
	// host bus, mirroring can_pci_init's empty-chardev construction error.
	ErrNoHostBus = errors.New("sja1000: no host bus attached")

	// ErrShortDelivery is returned by Frame.UnmarshalBinary when an inbound
	// host delivery is shorter than FrameWireSize bytes.
	ErrShortDelivery = errors.New("sja1000: short frame delivery from host")
)
