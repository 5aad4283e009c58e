package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/racerxdl/tx_out/rfmgt"
	"github.com/spf13/viper"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(nil, viper.New())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Hardware != rfmgt.HwTest {
		t.Fatalf("hardware = %s", cfg.Hardware)
	}
	if cfg.Params != (rfmgt.RFParams{SampleRate: 2e6, CenterFreq: 915e6, TxGain: 0}) {
		t.Fatalf("params = %+v", cfg.Params)
	}
	if cfg.TestAddr != defaultTestAddress || cfg.Input != "-" || cfg.Chunk != 4096 || cfg.Monitor != "" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Drivers.UHD != "tx_samples_from_file" || cfg.Drivers.HackRF != "hackrf_transfer" {
		t.Fatalf("unexpected driver paths %+v", cfg.Drivers)
	}
}

func TestLoadConfigFlags(t *testing.T) {
	args := []string{"--hardware", "hackrf", "-g", "40", "--center-freq", "433.92e6", "--monitor", ":1234", "-v"}
	cfg, err := loadConfig(args, viper.New())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Hardware != rfmgt.HwHackRF || cfg.Params.TxGain != 40 || cfg.Params.CenterFreq != 433.92e6 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Monitor != ":1234" || !cfg.Verbose {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadConfigEnvironment(t *testing.T) {
	t.Setenv("TXOUT_SAMPLE_RATE", "8000000")
	t.Setenv("TXOUT_HARDWARE", "usrp")
	cfg, err := loadConfig([]string{"--tx-gain", "10"}, viper.New())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Params.SampleRate != 8e6 || cfg.Hardware != rfmgt.HwUHD || cfg.Params.TxGain != 10 {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "radio.yaml")
	content := "hardware: uhd\nsample-rate: 1000000\ntest-addr: ipc:///tmp/tx\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := loadConfig([]string{"--config", path, "--sample-rate", "4e6"}, viper.New())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Hardware != rfmgt.HwUHD || cfg.TestAddr != "ipc:///tmp/tx" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Params.SampleRate != 4e6 {
		t.Fatalf("flag should override file, got %v", cfg.Params.SampleRate)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := loadConfig([]string{"--hardware", "limesdr"}, viper.New()); err == nil {
		t.Fatalf("expected hardware error")
	}
	if _, err := loadConfig([]string{"--chunk", "0"}, viper.New()); err == nil {
		t.Fatalf("expected chunk error")
	}
	if _, err := loadConfig([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}, viper.New()); err == nil {
		t.Fatalf("expected missing config error")
	}
}
