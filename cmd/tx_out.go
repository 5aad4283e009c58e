package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/quan-to/slog"
	"github.com/racerxdl/tx_out/rtltcp"
	"github.com/racerxdl/tx_out/txout"
	"github.com/spf13/viper"
)

var log = slog.Scope("TX_OUT")

func fatal(format string, v ...interface{}) {
	log.Error(format, v...)
	os.Exit(1)
}

// streamResult reports why streaming stopped. The reader is only waited for
// when the output drained the stream; after an interrupt it may be parked on
// an idle pipe.
func streamResult(interrupted bool, runErr error, readErr <-chan error) error {
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("transmitting: %w", runErr)
	}
	if interrupted || runErr != nil {
		return nil
	}
	if err := <-readErr; err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("reading input: %w", err)
	}
	return nil
}

func openInput(name string) (io.ReadCloser, error) {
	if name == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(name)
}

func startMonitor(address string, cfg config) *rtltcp.Server {
	server := rtltcp.MakeMirrorServer(address)
	server.SetDongleInfo(rtltcp.DongleInfo{TunerType: rtltcp.RtlsdrTunerUnknown})
	server.SetOnConnect(func(sessionId string, address string) {
		log.Info("Monitor client %s connected [%s]. Streaming at %s", address, sessionId,
			humanize.SIWithDigits(cfg.Params.SampleRate, 3, "S/s"))
	})
	server.SetOnCommand(func(sessionId string, cmd rtltcp.Command) bool {
		log.Debug("Monitor client [%s] sent %s(%d), ignored: mirror is read only", sessionId, cmd.Type, cmd.Value())
		return true
	})
	if err := server.Start(); err != nil {
		fatal("Error starting monitor: %s", err)
	}
	return server
}

func main() {
	cfg, err := loadConfig(os.Args[1:], viper.New())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	slog.SetDebug(cfg.Verbose)
	slog.SetShowLines(false)

	drivers := txout.DetectDrivers(cfg.Drivers)
	out, err := txout.New(cfg.Params, cfg.TestAddr, cfg.Hardware, drivers)
	if err != nil {
		fatal("Error building %s output: %s", cfg.Hardware, err)
	}

	input, err := openInput(cfg.Input)
	if err != nil {
		_ = out.Close()
		fatal("Error opening input: %s", err)
	}
	defer input.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	samples := make(chan []complex64, 4)
	readErr := make(chan error, 1)
	go func() {
		defer close(samples)
		readErr <- readSamples(ctx, input, cfg.Chunk, samples)
	}()

	var stream <-chan []complex64 = samples
	if cfg.Monitor != "" {
		monitor := startMonitor(cfg.Monitor, cfg)
		defer monitor.Stop()
		stream = tee(ctx, samples, monitor.Broadcast)
	}

	log.Info("Transmitting %s through %s output", cfg.Input, cfg.Hardware)
	runErr := out.Run(ctx, stream)
	interrupted := ctx.Err() != nil
	cancel()

	if err := out.Close(); err != nil {
		log.Error("Error closing output: %s", err)
	}
	if err := streamResult(interrupted, runErr, readErr); err != nil {
		log.Error("Error %s", err)
		return
	}
	log.Info("Closed!")
}
