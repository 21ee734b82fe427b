// Package capture turns the microphone into a steady stream of fixed-size
// base64 PCM frames.
package capture

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPermissionDenied is returned by Start when microphone access is refused
// or no input device exists. The user has to fix this in OS settings.
var ErrPermissionDenied = errors.New("microphone permission denied")

// SampleFunc receives mono float32 samples at sampleRate. It is called on the
// audio thread and must not block.
type SampleFunc func(samples []float32, sampleRate int)

// DeviceConfig describes the requested input stream.
type DeviceConfig struct {
	SampleRate      int
	FramesPerBuffer int
}

// Stream is an open input device.
type Stream interface {
	// Close stops the device and releases it.
	Close() error
}

// Strategy opens input devices. Implementations differ in how samples are
// pulled from the hardware; callers cannot tell them apart.
type Strategy interface {
	Name() string
	Open(cfg DeviceConfig, onSamples SampleFunc) (Stream, error)
}

// NewStrategy returns the strategy registered under name.
func NewStrategy(name string) (Strategy, error) {
	switch name {
	case "", "callback":
		return &CallbackStrategy{}, nil
	case "blocking":
		return &BlockingStrategy{}, nil
	}
	return nil, fmt.Errorf("unknown capture strategy %q", name)
}

// classifyOpenError maps device failures that need user action onto
// ErrPermissionDenied.
func classifyOpenError(err error) error {
	if err == nil || errors.Is(err, ErrPermissionDenied) {
		return err
	}

	errStr := strings.ToLower(err.Error())
	if containsAny(errStr,
		// Access refused
		"notallowederror",
		"permission",
		"not allowed",
		"access denied",
		"denied",
		// No usable device
		"notfounderror",
		"no device",
		"no input device",
		"no default input",
		"device not found",
		"device unavailable",
		"invalid device",
	) {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return err
}

func containsAny(s string, substrings ...string) bool {
	for _, substr := range substrings {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}
