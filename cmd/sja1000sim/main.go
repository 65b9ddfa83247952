package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	sja1000 "github.com/eugenehp/sja1000can"
	can "github.com/eugenehp/sja1000can/pkg/can"
	_ "github.com/eugenehp/sja1000can/pkg/can/socketcan"
	_ "github.com/eugenehp/sja1000can/pkg/can/socketcanv2"
	_ "github.com/eugenehp/sja1000can/pkg/can/virtual"
)

var DEFAULT_CAN_INTERFACE = "virtual"
var DEFAULT_CHANNEL = "vcan0"

// irqLine prints every edge to stdout, standing in for an interrupt
// controller wire in this standalone harness.
type irqLine struct{}

func (irqLine) SetLevel(asserted bool) {
	fmt.Printf("irq: %v\n", asserted)
}

// rawFileBus is the HostBus for -raw mode: transmit frames are marshaled
// straight to the host wire format and written out, and filter
// announcement is a no-op since a raw byte stream has no kernel-side
// filtering hook to push into.
type rawFileBus struct {
	f *os.File
}

func (b rawFileBus) Write(frame sja1000.Frame) error {
	buf, err := frame.MarshalBinary()
	if err != nil {
		return err
	}
	_, err = b.f.Write(buf)
	return err
}

func (rawFileBus) SetFilters(kind int, filters []sja1000.Filter) error { return nil }

// deliverRawChunks reads arbitrarily-sized chunks off f and hands each one
// to the controller's raw-byte delivery path, exercising the short host
// delivery contract directly: a chunk smaller than one struct can_frame is
// dropped rather than parsed.
func deliverRawChunks(controller *sja1000.Controller, f *os.File) {
	buf := make([]byte, sja1000.FrameWireSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			controller.DeliverBytes(buf[:n])
		}
		if err != nil {
			return
		}
	}
}

func main() {
	log.SetLevel(log.DebugLevel)

	canInterface := flag.String("i", DEFAULT_CAN_INTERFACE, "host bus interface e.g. virtual,socketcan,socketcanv2")
	channel := flag.String("c", DEFAULT_CHANNEL, "interface channel e.g. vcan0,can0,localhost:18888")
	bitrate := flag.Int("b", 500000, "bitrate, ignored by most backends")
	model := flag.String("m", "SJA1000", "device model string")
	configPath := flag.String("config", "", "ini file with a [device] section; flags above override its values")
	rawPath := flag.String("raw", "", "bypass -i/-c and deliver frames from a raw byte stream at this path (FIFO or unix socket), one struct can_frame chunk at a time")
	flag.Parse()

	if *configPath != "" {
		cfg, err := sja1000.LoadDeviceConfig(*configPath)
		if err != nil {
			fmt.Printf("could not load config %v: %v\n", *configPath, err)
			os.Exit(1)
		}
		explicit := map[string]bool{}
		flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
		if !explicit["i"] {
			*canInterface = cfg.Interface
		}
		if !explicit["c"] {
			*channel = cfg.Channel
		}
		if !explicit["b"] {
			*bitrate = cfg.Bitrate
		}
		if !explicit["m"] {
			*model = cfg.Model
		}
	}

	var controller *sja1000.Controller

	if *rawPath != "" {
		f, err := os.OpenFile(*rawPath, os.O_RDWR, 0)
		if err != nil {
			fmt.Printf("could not open raw byte stream %v: %v\n", *rawPath, err)
			os.Exit(1)
		}
		controller, err = sja1000.NewController(*model, rawFileBus{f}, irqLine{})
		if err != nil {
			fmt.Printf("could not create controller: %v\n", err)
			os.Exit(1)
		}
		go deliverRawChunks(controller, f)
	} else {
		bus, err := can.NewBus(*canInterface, *channel, *bitrate)
		if err != nil {
			fmt.Printf("could not create host bus %v: %v\n", *canInterface, err)
			os.Exit(1)
		}
		if err := bus.Connect(); err != nil {
			fmt.Printf("could not connect to %v/%v: %v\n", *canInterface, *channel, err)
			os.Exit(1)
		}

		adapter := sja1000.NewBusAdapter(bus)
		controller, err = sja1000.NewController(*model, adapter, irqLine{})
		if err != nil {
			fmt.Printf("could not create controller: %v\n", err)
			os.Exit(1)
		}

		listener := sja1000.DeliverListener{Controller: controller}
		if err := bus.Subscribe(listener); err != nil {
			fmt.Printf("could not subscribe to host bus: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Println("sja1000sim ready. commands: r <offset> | w <offset> <value> | q")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "r":
			if len(fields) != 2 {
				fmt.Println("usage: r <offset>")
				continue
			}
			offset, err := strconv.Atoi(fields[1])
			if err != nil {
				fmt.Println("bad offset:", err)
				continue
			}
			fmt.Printf("0x%02x\n", controller.Read(offset))
		case "w":
			if len(fields) != 3 {
				fmt.Println("usage: w <offset> <value>")
				continue
			}
			offset, err := strconv.Atoi(fields[1])
			if err != nil {
				fmt.Println("bad offset:", err)
				continue
			}
			value, err := strconv.ParseUint(fields[2], 0, 8)
			if err != nil {
				fmt.Println("bad value:", err)
				continue
			}
			controller.Write(offset, uint8(value))
		case "q":
			return
		default:
			fmt.Println("unknown command:", fields[0])
		}
	}
}
