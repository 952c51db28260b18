// Package audio handles device discovery, microphone capture, and playback
// through the Pulse server.
package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// Device describes one Pulse input source.
type Device struct {
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
}

// Usable reports whether the source can deliver audio right now.
func (d Device) Usable() bool {
	return d.Available && !d.Muted
}

// problem names why an unusable source was skipped.
func (d Device) problem() string {
	if d.Muted {
		return "muted"
	}
	return "unavailable"
}

// matches reports whether term appears in the device id or description.
// term must already be lower-cased.
func (d Device) matches(term string) bool {
	return term != "" &&
		(strings.Contains(strings.ToLower(d.ID), term) ||
			strings.Contains(strings.ToLower(d.Description), term))
}

// Selection is the source chosen for capture. Warning is set when the
// preferred source was skipped.
type Selection struct {
	Device   Device
	Warning  string
	Fallback bool
}

// ListDevices returns the Pulse input sources, marking the server default.
func ListDevices(_ context.Context) ([]Device, error) {
	client, err := newClient("audio-input-microphone")
	if err != nil {
		return nil, err
	}
	defer client.Close()

	defaultSource, err := client.DefaultSource()
	if err != nil {
		return nil, fmt.Errorf("read default source: %w", err)
	}

	var infos pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &infos); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	devices := make([]Device, 0, len(infos))
	for _, info := range infos {
		if info != nil {
			devices = append(devices, deviceFromSource(info, defaultSource.ID()))
		}
	}
	return devices, nil
}

func deviceFromSource(info *pulseproto.GetSourceInfoReply, defaultID string) Device {
	return Device{
		ID:          info.SourceName,
		Description: info.Device,
		State:       sourceStateString(info.State),
		Available:   sourceAvailable(info),
		Muted:       info.Mute,
		Default:     info.SourceName == defaultID,
	}
}

// SelectDevice resolves the audio.input and audio.fallback preferences
// against the live source list.
func SelectDevice(ctx context.Context, input string, fallback string) (Selection, error) {
	devices, err := ListDevices(ctx)
	if err != nil {
		return Selection{}, err
	}
	return selectDeviceFromList(devices, input, fallback)
}

// preference is a normalized device search term. The empty term and
// "default" both mean the server default source.
type preference string

func newPreference(raw string) preference {
	return preference(strings.ToLower(strings.TrimSpace(raw)))
}

func (p preference) isDefault() bool {
	return p == "" || p == "default"
}

// resolve finds the device p names within devices.
func (p preference) resolve(devices []Device) (Device, bool) {
	for _, dev := range devices {
		if p.isDefault() && dev.Default {
			return dev, true
		}
		if !p.isDefault() && dev.matches(string(p)) {
			return dev, true
		}
	}
	return Device{}, false
}

func selectDeviceFromList(devices []Device, input string, fallback string) (Selection, error) {
	if len(devices) == 0 {
		return Selection{}, errors.New("no audio input devices found")
	}

	want := newPreference(input)
	primary, ok := want.resolve(devices)
	switch {
	case !ok && want.isDefault():
		return Selection{}, errors.New("default audio source is unavailable")
	case !ok:
		return Selection{}, fmt.Errorf("audio.input %q did not match any device", string(want))
	case primary.Usable():
		return Selection{Device: primary}, nil
	}

	backup := newPreference(fallback)
	alternate, ok := backup.resolve(devices)
	if !ok {
		if backup.isDefault() {
			return Selection{}, fmt.Errorf("primary input %q is %s and no usable fallback: default audio source is unavailable", primary.ID, primary.problem())
		}
		return Selection{}, fmt.Errorf("primary input %q is %s and fallback %q not found", primary.ID, primary.problem(), string(backup))
	}
	if !alternate.Usable() {
		return Selection{}, fmt.Errorf("audio fallback device %q is %s", alternate.ID, alternate.problem())
	}

	return Selection{
		Device:   alternate,
		Warning:  fmt.Sprintf("audio.input %q is %s; falling back to %q", primary.ID, primary.problem(), alternate.ID),
		Fallback: alternate.ID != primary.ID,
	}, nil
}

func newClient(icon string) (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("parley"),
		pulse.ClientApplicationIconName(icon),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	return client, nil
}

// pcmSink adapts a function to the io.Writer pulse.NewWriter expects.
type pcmSink func([]byte) (int, error)

func (f pcmSink) Write(b []byte) (int, error) {
	return f(b)
}

func sourceStateString(state uint32) string {
	switch state {
	case 0:
		return "running"
	case 1:
		return "idle"
	case 2:
		return "suspended"
	default:
		return fmt.Sprintf("unknown(%d)", state)
	}
}

// sourceAvailable reads the availability of the active port. Sources
// without ports are always available.
func sourceAvailable(info *pulseproto.GetSourceInfoReply) bool {
	if info == nil {
		return false
	}
	for _, port := range info.Ports {
		if port.Name == info.ActivePortName {
			// unknown=0, no=1, yes=2
			return port.Available != 1
		}
	}
	return true
}
