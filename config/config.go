package config

import (
	"fmt"
	"image"
	"strings"
	"time"
)

type Config struct {
	// Capture devices in order of preference. See source.VideoCaptureOptions.
	Devices  []string
	Width    int
	Height   int
	Portrait bool

	// Detector tuning.
	AspectRatio     float64
	AspectTolerance float64
	MinAreaRatio    float64
	MaxResults      int
	CannyLow        float32
	CannyHigh       float32

	// Capture scheduling. LossPolicy is "keep" or "cancel".
	DwellMillis       int
	LossPolicy        string
	RearmAfterFailure bool

	// Preview surface size and the region frames are fit into. An empty region
	// uses the whole surface.
	PreviewWidth  int
	PreviewHeight int
	PreviewRegion image.Rectangle
	// Window additionally shows the preview in a local window.
	Window bool
	// DebugStreams publishes intermediate detector images over MJPEG.
	DebugStreams bool

	// CaptureDir is where captured images are stored.
	CaptureDir  string
	ThumbWidth  int
	ThumbHeight int

	LogLevel string
}

// Defaults returns the configuration used for fields a file leaves unset.
func Defaults() Config {
	return Config{
		Devices:       []string{"0", "1"},
		Width:         1280,
		Height:        720,
		Portrait:      true,
		AspectRatio:   1.0,
		MinAreaRatio:  0.05,
		CannyLow:      50,
		CannyHigh:     150,
		DwellMillis:   4000,
		LossPolicy:    "keep",
		PreviewWidth:  720,
		PreviewHeight: 960,
		CaptureDir:    "/tmp/doccam/",
		ThumbWidth:    180,
		ThumbHeight:   240,
		LogLevel:      "info",
	}
}

func (c *Config) Dwell() time.Duration {
	return time.Duration(c.DwellMillis) * time.Millisecond
}

// Region returns the preview region, defaulting to the full preview surface.
func (c *Config) Region() image.Rectangle {
	if c.PreviewRegion.Empty() {
		return image.Rect(0, 0, c.PreviewWidth, c.PreviewHeight)
	}
	return c.PreviewRegion
}

func (c *Config) Validate() error {
	var errs []string
	if len(c.Devices) == 0 {
		errs = append(errs, "no capture devices")
	}
	if c.DwellMillis <= 0 {
		errs = append(errs, "dwell must be positive")
	}
	if c.AspectRatio <= 0 {
		errs = append(errs, "aspect ratio must be positive")
	}
	if c.MinAreaRatio < 0 || c.MinAreaRatio >= 1 {
		errs = append(errs, "min area ratio must be in [0, 1)")
	}
	if c.PreviewWidth <= 0 || c.PreviewHeight <= 0 {
		errs = append(errs, "preview size must be positive")
	}
	if r := c.Region(); !r.In(image.Rect(0, 0, c.PreviewWidth, c.PreviewHeight)) {
		errs = append(errs, fmt.Sprintf("preview region %v outside the preview surface", r))
	}
	if c.LossPolicy != "" && c.LossPolicy != "keep" && c.LossPolicy != "cancel" {
		errs = append(errs, fmt.Sprintf("unknown loss policy %q", c.LossPolicy))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}
