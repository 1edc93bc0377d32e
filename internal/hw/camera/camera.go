package camera

import (
	"errors"
	"fmt"
	"time"
)

// AcquisitionMode selects what starts an exposure on the camera.
type AcquisitionMode int

const (
	SoftwareTrigger AcquisitionMode = iota // exposure starts on SendTrigger
	HardwareTrigger                        // exposure starts on the external trigger line
	Continuous                             // camera free-runs
)

func (m AcquisitionMode) String() string {
	switch m {
	case SoftwareTrigger:
		return "software_trigger"
	case HardwareTrigger:
		return "hardware_trigger"
	case Continuous:
		return "continuous"
	default:
		return fmt.Sprintf("AcquisitionMode(%d)", int(m))
	}
}

// ErrNotStreaming is returned when a trigger is sent to a stopped camera.
var ErrNotStreaming = errors.New("camera is not streaming")

// Camera is the high-level interface used by the live controller.
// It represents an abstract "camera", regardless of how it's controlled
// (GPIO, USB, network protocol, etc.).
//
// SetAnalogGain may return errors.ErrUnsupported for sensors without
// analog gain control; callers treat that as non-fatal.
type Camera interface {
	StartStreaming() error
	StopStreaming() error
	EnableCallbacks(enabled bool) error
	SendTrigger() error
	ReadyForTrigger() bool
	TotalFrameTime() time.Duration
	// StrobeTime is the delay between trigger and start of exposure.
	StrobeTime() time.Duration
	SetExposureTime(ms float64) error
	SetAnalogGain(gain float64) error
	SetAcquisitionMode(mode AcquisitionMode) error
}

// FrameFunc is invoked from the camera's delivery goroutine for each frame
// while callbacks are enabled.
type FrameFunc func(frameID int64)
