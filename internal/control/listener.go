package control

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

var ErrPortNotFound = errors.New("MIDI input port not found")

// Dispatcher applies actions to a Target and logs what the engine refused.
// It is what the MIDI listener and the terminal UI share.
type Dispatcher struct {
	Target Target
	Log    *slog.Logger
	// OnResult, if set, observes every action and its outcome.
	OnResult func(Action, error)
}

func (d *Dispatcher) Handle(a Action) {
	err := Dispatch(d.Target, a)
	if d.Log != nil {
		if err != nil {
			d.Log.Debug("action refused", "action", a.String(), "err", err)
		} else {
			d.Log.Debug("action applied", "action", a.String())
		}
	}
	if d.OnResult != nil {
		d.OnResult(a, err)
	}
}

// Listener feeds one MIDI input port through a Mapping into a handler.
type Listener struct {
	drv  *rtmididrv.Driver
	in   drivers.In
	stop func()
	log  *slog.Logger
}

// InPorts lists the names of the available MIDI inputs.
func InPorts() ([]string, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("midi driver: %w", err)
	}
	defer drv.Close()
	ins, err := drv.Ins()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(ins))
	for i, in := range ins {
		names[i] = in.String()
	}
	return names, nil
}

// Listen opens the first input whose name contains port and calls handle
// for every message m maps to an action. handle runs on the driver's
// goroutine.
func Listen(port string, m Mapping, handle func(Action), log *slog.Logger) (*Listener, error) {
	if log == nil {
		log = slog.Default()
	}
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("midi driver: %w", err)
	}
	in, err := findIn(drv, port)
	if err != nil {
		drv.Close()
		return nil, err
	}
	if err := in.Open(); err != nil {
		drv.Close()
		return nil, fmt.Errorf("open MIDI port %q: %w", in.String(), err)
	}
	name := in.String()
	stop, err := midi.ListenTo(in, func(msg midi.Message, _ int32) {
		if a, ok := m.Translate(msg); ok {
			handle(a)
			return
		}
		log.Debug("unmapped MIDI message", "msg", msg.String())
	}, midi.HandleError(func(err error) {
		log.Warn("MIDI listener error", "port", name, "err", err)
	}))
	if err != nil {
		in.Close()
		drv.Close()
		return nil, fmt.Errorf("listen on %q: %w", name, err)
	}
	log.Info("MIDI input connected", "port", name)
	return &Listener{drv: drv, in: in, stop: stop, log: log}, nil
}

func (l *Listener) Port() string { return l.in.String() }

func (l *Listener) Close() error {
	l.stop()
	err := errors.Join(l.in.Close(), l.drv.Close())
	l.log.Info("MIDI input closed", "port", l.in.String())
	return err
}

func findIn(drv *rtmididrv.Driver, port string) (drivers.In, error) {
	ins, err := drv.Ins()
	if err != nil {
		return nil, fmt.Errorf("list MIDI inputs: %w", err)
	}
	for _, in := range ins {
		if strings.Contains(strings.ToLower(in.String()), strings.ToLower(port)) {
			return in, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrPortNotFound, port)
}
