package sja1000

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempIni(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "device.ini")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadDeviceConfigOverridesDefaults(t *testing.T) {
	path := writeTempIni(t, `
[device]
model = SJA1000
interface = socketcanv2
channel = can0
bitrate = 125000
`)
	cfg, err := LoadDeviceConfig(path)
	if err != nil {
		t.Fatalf("LoadDeviceConfig: %v", err)
	}
	if cfg.Interface != "socketcanv2" || cfg.Channel != "can0" || cfg.Bitrate != 125000 {
		t.Errorf("cfg = %+v, want interface=socketcanv2 channel=can0 bitrate=125000", cfg)
	}
}

func TestLoadDeviceConfigFallsBackOnMissingKeys(t *testing.T) {
	path := writeTempIni(t, `
[device]
interface = virtual
`)
	cfg, err := LoadDeviceConfig(path)
	if err != nil {
		t.Fatalf("LoadDeviceConfig: %v", err)
	}
	if cfg.Model != "SJA1000" || cfg.Channel != "vcan0" || cfg.Bitrate != 500000 {
		t.Errorf("cfg = %+v, want defaults for model/channel/bitrate", cfg)
	}
	if cfg.Interface != "virtual" {
		t.Errorf("cfg.Interface = %v, want virtual", cfg.Interface)
	}
}

func TestLoadDeviceConfigMissingFile(t *testing.T) {
	cfg, err := LoadDeviceConfig(filepath.Join(t.TempDir(), "does-not-exist.ini"))
	if err == nil {
		t.Fatal("expected an error for a missing config file")
	}
	if cfg.Model != "SJA1000" {
		t.Errorf("cfg should still carry defaults on error, got %+v", cfg)
	}
}
