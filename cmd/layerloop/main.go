package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/cbegin/layerloop"
	intaudio "github.com/cbegin/layerloop/internal/audio"
	"github.com/cbegin/layerloop/internal/config"
	"github.com/cbegin/layerloop/internal/control"
	"github.com/cbegin/layerloop/internal/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "layerloop: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	fs := flag.NewFlagSet("layerloop", flag.ExitOnError)
	cfg.RegisterFlags(fs)
	listMIDI := fs.Bool("list-midi", false, "print the available MIDI inputs and exit")
	_ = fs.Parse(os.Args[1:])

	if *listMIDI {
		ports, err := control.InPorts()
		if err != nil {
			return err
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return nil
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	opts := []layerloop.Option{layerloop.WithLogger(logger)}
	if cfg.Compressor {
		opts = append(opts, layerloop.WithCompressor(float32(cfg.CompressorThreshold), float32(cfg.CompressorRatio)))
	}
	if cfg.Limiter {
		opts = append(opts, layerloop.WithLimiter(-0.3))
	}
	looper, err := layerloop.New(cfg.Engine(), opts...)
	if err != nil {
		return err
	}

	kind, _ := intaudio.ParseKind(cfg.Backend)
	audioOpts := intaudio.Options{Kind: kind, Latency: cfg.Latency}
	if kind == intaudio.KindFile {
		src, err := looper.LoadInput(cfg.InputFile)
		if err != nil {
			return err
		}
		audioOpts.Input = src
	}
	if err := looper.Start(audioOpts); err != nil {
		return err
	}
	defer func() {
		if err := looper.Stop(); err != nil {
			logger.Error("stop audio", "err", err)
		}
	}()

	dispatcher := &control.Dispatcher{Target: looper, Log: logger}
	var midiPort string
	if cfg.MIDIPort != "" {
		mapping := control.DefaultMapping(cfg.Channels)
		listener, err := control.Listen(cfg.MIDIPort, mapping, dispatcher.Handle, logger)
		if err != nil {
			return err
		}
		defer listener.Close()
		midiPort = listener.Port()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.NoTUI {
		logger.Info("running headless; interrupt to stop")
		<-ctx.Done()
		return nil
	}

	m := tui.New(tui.Options{
		Target: looper,
		Export: func() ([]string, error) {
			dir := filepath.Join(cfg.ExportDir, time.Now().Format("20060102-150405"))
			return looper.ExportWindow(dir)
		},
		Stats: func() string { return statusLine(looper.Backend(), midiPort) },
	})
	return tui.Run(ctx, m)
}

// newLogger logs to a file while the terminal UI owns the screen and to
// stderr otherwise.
func newLogger(cfg config.Config) (*slog.Logger, func(), error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, nil, err
	}
	out := os.Stderr
	closeFn := func() {}
	if !cfg.NoTUI {
		if err := os.MkdirAll(cfg.ExportDir, 0o755); err != nil {
			return nil, nil, err
		}
		f, err := os.OpenFile(filepath.Join(cfg.ExportDir, "layerloop.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
		closeFn = func() { f.Close() }
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})), closeFn, nil
}

func statusLine(b intaudio.Backend, midiPort string) string {
	var parts []string
	if midiPort != "" {
		parts = append(parts, "midi "+midiPort)
	}
	if split, ok := b.(*intaudio.Split); ok {
		r := split.Ring()
		parts = append(parts, fmt.Sprintf("input ring %d/%d · overruns %d · underruns %d",
			r.Buffered(), r.Cap(), r.Overruns(), r.Underruns()))
	}
	return strings.Join(parts, " · ")
}
