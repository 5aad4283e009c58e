package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/racerxdl/tx_out/rfmgt"
	"github.com/racerxdl/tx_out/txout"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const defaultTestAddress = "tcp://127.0.0.1:49203"

type config struct {
	Hardware rfmgt.Hardware
	Params   rfmgt.RFParams
	TestAddr string
	Input    string
	Chunk    int
	Monitor  string
	Drivers  txout.DriverPaths
	Verbose  bool
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("tx_out", pflag.ContinueOnError)
	fs.StringP("hardware", "H", "test", "output hardware: test, uhd or hackrf")
	fs.Float64P("sample-rate", "s", 2e6, "sample rate in Hz")
	fs.Float64P("center-freq", "f", 915e6, "center frequency in Hz")
	fs.Float64P("tx-gain", "g", 0, "transmit gain (device units; hackrf: 0, 20, 30, 40, 60 or 80)")
	fs.String("test-addr", defaultTestAddress, "ZeroMQ push address used in test mode")
	fs.StringP("input", "i", "-", "cf32 input file ('-' for stdin)")
	fs.Int("chunk", 4096, "samples per buffer")
	fs.String("monitor", "", "rtl_tcp mirror listen address (disabled when empty)")
	fs.String("uhd-bin", txout.DefaultDriverPaths.UHD, "UHD transmit tool")
	fs.String("hackrf-bin", txout.DefaultDriverPaths.HackRF, "HackRF transmit tool")
	fs.BoolP("verbose", "v", false, "verbose mode")
	fs.StringP("config", "c", "", "config file (default: ./tx_out.{yaml,toml,json} if present)")
	return fs
}

// loadConfig merges flags, TXOUT_* environment variables and the config file.
// Flags set on the command line win, then environment, then file, then defaults.
func loadConfig(args []string, v *viper.Viper) (config, error) {
	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}
	if err := v.BindPFlags(fs); err != nil {
		return config{}, err
	}

	v.SetEnvPrefix("TXOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("tx_out")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	hw, err := rfmgt.ParseHardware(v.GetString("hardware"))
	if err != nil {
		return config{}, err
	}

	cfg := config{
		Hardware: hw,
		Params: rfmgt.RFParams{
			SampleRate: v.GetFloat64("sample-rate"),
			CenterFreq: v.GetFloat64("center-freq"),
			TxGain:     v.GetFloat64("tx-gain"),
		},
		TestAddr: v.GetString("test-addr"),
		Input:    v.GetString("input"),
		Chunk:    v.GetInt("chunk"),
		Monitor:  v.GetString("monitor"),
		Drivers: txout.DriverPaths{
			UHD:    v.GetString("uhd-bin"),
			HackRF: v.GetString("hackrf-bin"),
		},
		Verbose: v.GetBool("verbose"),
	}
	if cfg.Chunk < 1 {
		return config{}, fmt.Errorf("chunk must be positive, got %d", cfg.Chunk)
	}
	return cfg, nil
}
