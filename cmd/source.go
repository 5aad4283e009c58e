package main

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
)

// readSamples decodes little-endian cf32 IQ from r in buffers of chunk samples.
// A trailing partial sample is discarded.
func readSamples(ctx context.Context, r io.Reader, chunk int, out chan<- []complex64) error {
	br := bufio.NewReaderSize(r, chunk*8)
	raw := make([]byte, chunk*8)
	for {
		n, err := io.ReadFull(br, raw)
		if n >= 8 {
			samples := make([]complex64, n/8)
			for i := range samples {
				re := math.Float32frombits(binary.LittleEndian.Uint32(raw[i*8:]))
				im := math.Float32frombits(binary.LittleEndian.Uint32(raw[i*8+4:]))
				samples[i] = complex(re, im)
			}
			select {
			case out <- samples:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return err
		}
	}
}

// tee calls fn with every buffer before handing it on.
func tee(ctx context.Context, in <-chan []complex64, fn func([]complex64)) <-chan []complex64 {
	out := make(chan []complex64)
	go func() {
		defer close(out)
		for samples := range in {
			fn(samples)
			select {
			case out <- samples:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
