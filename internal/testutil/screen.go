package testutil

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// Frame is one rendered view.
type Frame struct {
	Timestamp time.Time
	Raw       string // Raw output with ANSI codes
	Plain     string // Text without ANSI codes
	Phase     string // Request phase at capture time
}

// ScreenCapture records the views a model renders while a test drives it.
type ScreenCapture struct {
	mu        sync.Mutex
	frames    []Frame
	startTime time.Time
}

// NewScreenCapture creates an empty capture.
func NewScreenCapture() *ScreenCapture {
	return &ScreenCapture{startTime: time.Now()}
}

// Capture records a new frame.
func (s *ScreenCapture) Capture(raw, phase string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, Frame{
		Timestamp: time.Now(),
		Raw:       raw,
		Plain:     StripANSI(raw),
		Phase:     phase,
	})
}

// Frames returns all captured frames.
func (s *ScreenCapture) Frames() []Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]Frame, len(s.frames))
	copy(result, s.frames)
	return result
}

// LastFrame returns the most recent frame, or an empty frame if none.
func (s *ScreenCapture) LastFrame() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return Frame{}
	}
	return s.frames[len(s.frames)-1]
}

// FinalScreenPlain returns the plain text of the last frame.
func (s *ScreenCapture) FinalScreenPlain() string {
	return s.LastFrame().Plain
}

// AnyFrameContains reports whether some frame's plain text contains text.
func (s *ScreenCapture) AnyFrameContains(text string) bool {
	for _, f := range s.Frames() {
		if strings.Contains(f.Plain, text) {
			return true
		}
	}
	return false
}

// Dump returns a debug string showing all frames.
func (s *ScreenCapture) Dump() string {
	var sb strings.Builder
	frames := s.Frames()
	sb.WriteString(fmt.Sprintf("Screen Capture: %d frames\n", len(frames)))
	for i, f := range frames {
		elapsed := f.Timestamp.Sub(s.startTime)
		sb.WriteString(fmt.Sprintf("\n--- Frame %d (%.3fs) Phase: %s ---\n", i, elapsed.Seconds(), f.Phase))
		sb.WriteString(f.Plain)
		sb.WriteString("\n")
	}
	return sb.String()
}

// DebugScreensEnabled returns true if DEBUG_SCREENS environment variable is set.
func DebugScreensEnabled() bool {
	return os.Getenv("DEBUG_SCREENS") != ""
}
