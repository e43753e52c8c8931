package simsvc

import (
	"fmt"
	"strings"
)

// Contact is one finger of a gesture frame.
type Contact struct {
	ID  int32
	X   int32
	Y   int32
	Tip bool
}

// Frame is the complete contact state at one instant. Frames are injected in
// order, one interrupt transfer (or several, when hybrid-split) each.
type Frame []Contact

// Tap presses a point briefly and releases it.
func Tap(x, y int32) []Frame {
	down := Contact{ID: 1, X: x, Y: y, Tip: true}
	up := down
	up.Tip = false
	return []Frame{{down}, {down}, {up}}
}

// Swipe drags one finger between two points in the given number of steps.
func Swipe(x0, y0, x1, y1 int32, steps int) []Frame {
	if steps < 1 {
		steps = 1
	}
	frames := make([]Frame, 0, steps+2)
	for i := 0; i <= steps; i++ {
		frames = append(frames, Frame{{
			ID:  1,
			X:   x0 + (x1-x0)*int32(i)/int32(steps),
			Y:   y0 + (y1-y0)*int32(i)/int32(steps),
			Tip: true,
		}})
	}
	up := frames[len(frames)-1][0]
	up.Tip = false
	return append(frames, Frame{up})
}

// Pinch spreads two fingers horizontally around a center point from one gap
// to another. A toGap below fromGap pinches inward.
func Pinch(cx, cy, fromGap, toGap int32, steps int) []Frame {
	if steps < 1 {
		steps = 1
	}
	frames := make([]Frame, 0, steps+2)
	for i := 0; i <= steps; i++ {
		half := (fromGap + (toGap-fromGap)*int32(i)/int32(steps)) / 2
		frames = append(frames, Frame{
			{ID: 1, X: cx - half, Y: cy, Tip: true},
			{ID: 2, X: cx + half, Y: cy, Tip: true},
		})
	}
	last := frames[len(frames)-1]
	up := Frame{last[0], last[1]}
	up[0].Tip = false
	up[1].Tip = false
	return append(frames, up)
}

// GestureNames lists the gestures BuildGesture accepts.
func GestureNames() []string {
	return []string{"tap", "swipe", "pinch"}
}

// BuildGesture maps a gesture name to frames sized for the device surface.
func BuildGesture(name string, width, height int32) ([]Frame, error) {
	cx, cy := width/2, height/2
	switch name {
	case "tap":
		return Tap(cx, cy), nil
	case "swipe":
		return Swipe(width/4, cy, width*3/4, cy, 16), nil
	case "pinch":
		return Pinch(cx, cy, width/8, width/2, 16), nil
	}
	return nil, fmt.Errorf("unknown gesture %q (have: %s)", name, strings.Join(GestureNames(), ", "))
}
