package sja1000

import "gopkg.in/ini.v1"

// DeviceConfig describes one simulated controller instance: which transport
// backs its host bus and the model string it reports at construction.
type DeviceConfig struct {
	Model     string
	Interface string
	Channel   string
	Bitrate   int
}

// LoadDeviceConfig reads a [device] section from an ini file, the same
// config format and library the command-line harness uses throughout.
// Missing keys fall back to SJA1000 defaults rather than erroring, since a
// bare `[device]` stanza selecting just the interface is the common case.
func LoadDeviceConfig(path string) (DeviceConfig, error) {
	cfg := DeviceConfig{
		Model:     "SJA1000",
		Interface: "virtual",
		Channel:   "vcan0",
		Bitrate:   500000,
	}

	f, err := ini.Load(path)
	if err != nil {
		return cfg, err
	}

	sec := f.Section("device")
	if sec.HasKey("model") {
		cfg.Model = sec.Key("model").String()
	}
	if sec.HasKey("interface") {
		cfg.Interface = sec.Key("interface").String()
	}
	if sec.HasKey("channel") {
		cfg.Channel = sec.Key("channel").String()
	}
	if sec.HasKey("bitrate") {
		cfg.Bitrate = sec.Key("bitrate").MustInt(cfg.Bitrate)
	}
	return cfg, nil
}
