// Package imageview models the zoom and pan state of an image viewer as
// pure geometry, independent of how the image is actually drawn. The
// renderer feeds input events in and reads the resulting transform out.
package imageview

import "math"

const (
	// ClickZoomFactor is the magnification applied by a single click
	// relative to the fitted scale.
	ClickZoomFactor = 2.0

	// WheelZoomStep scales the current zoom per wheel notch.
	WheelZoomStep = 1.1

	// MaxZoomFactor caps zoom at this multiple of the fitted scale.
	MaxZoomFactor = 8.0
)

// Viewport tracks an image displayed inside a container. Scale is in
// screen pixels per image pixel; OffsetX and OffsetY position the scaled
// image's top-left corner in container coordinates.
type Viewport struct {
	ImageW, ImageH         float64
	ContainerW, ContainerH float64

	Scale            float64
	OffsetX, OffsetY float64

	dragging         bool
	dragX, dragY     float64
	startOX, startOY float64
}

// New creates a viewport showing the whole image, centered and fitted to
// the container.
func New(imageW, imageH, containerW, containerH float64) *Viewport {
	v := &Viewport{
		ImageW:     imageW,
		ImageH:     imageH,
		ContainerW: containerW,
		ContainerH: containerH,
	}
	v.Reset()
	return v
}

// FitScale is the largest scale at which the whole image fits the
// container, never upscaling past 1:1.
func (v *Viewport) FitScale() float64 {
	if v.ImageW <= 0 || v.ImageH <= 0 {
		return 1
	}
	fit := math.Min(v.ContainerW/v.ImageW, v.ContainerH/v.ImageH)
	return math.Min(fit, 1)
}

// Zoomed reports whether the image is magnified past its fitted size.
func (v *Viewport) Zoomed() bool {
	return v.Scale > v.FitScale()+1e-9
}

// Reset returns to the fitted, centered view and ends any drag.
func (v *Viewport) Reset() {
	v.Scale = v.FitScale()
	v.center()
	v.dragging = false
}

// Resize updates the container dimensions, refitting when the view was
// not zoomed and re-clamping when it was.
func (v *Viewport) Resize(containerW, containerH float64) {
	zoomed := v.Zoomed()
	v.ContainerW = containerW
	v.ContainerH = containerH
	if !zoomed {
		v.Reset()
		return
	}
	v.clamp()
}

// ToggleZoom handles a click at container coordinates (x, y): zoom in
// around that point when fitted, zoom back out when already magnified.
func (v *Viewport) ToggleZoom(x, y float64) {
	if v.Zoomed() {
		v.Reset()
		return
	}
	v.zoomAround(x, y, v.FitScale()*ClickZoomFactor)
}

// Wheel applies one scroll notch at container coordinates (x, y).
// Positive delta zooms in. The point under the cursor stays put.
func (v *Viewport) Wheel(x, y float64, delta int) {
	factor := math.Pow(WheelZoomStep, float64(delta))
	v.zoomAround(x, y, v.Scale*factor)
}

// StartDrag begins panning from container coordinates (x, y). Panning is
// only available while zoomed; a drag at fitted scale is ignored.
func (v *Viewport) StartDrag(x, y float64) bool {
	if !v.Zoomed() {
		return false
	}
	v.dragging = true
	v.dragX, v.dragY = x, y
	v.startOX, v.startOY = v.OffsetX, v.OffsetY
	return true
}

// Drag pans to follow the pointer at container coordinates (x, y).
func (v *Viewport) Drag(x, y float64) {
	if !v.dragging {
		return
	}
	v.OffsetX = v.startOX + (x - v.dragX)
	v.OffsetY = v.startOY + (y - v.dragY)
	v.clamp()
}

// EndDrag finishes an in-progress pan.
func (v *Viewport) EndDrag() {
	v.dragging = false
}

// Dragging reports whether a pan is in progress.
func (v *Viewport) Dragging() bool {
	return v.dragging
}

// zoomAround rescales so the image point under container point (x, y)
// stays under it, clamping scale between fit and the zoom cap.
func (v *Viewport) zoomAround(x, y, scale float64) {
	fit := v.FitScale()
	scale = math.Max(fit, math.Min(scale, fit*MaxZoomFactor))
	if v.Scale <= 0 {
		v.Scale = fit
	}

	// Image-space point currently under (x, y).
	ix := (x - v.OffsetX) / v.Scale
	iy := (y - v.OffsetY) / v.Scale

	v.Scale = scale
	v.OffsetX = x - ix*scale
	v.OffsetY = y - iy*scale
	v.clamp()
}

// center positions the scaled image in the middle of the container.
func (v *Viewport) center() {
	v.OffsetX = (v.ContainerW - v.ImageW*v.Scale) / 2
	v.OffsetY = (v.ContainerH - v.ImageH*v.Scale) / 2
}

// clamp keeps the image covering the container on each axis where it is
// larger, and centered on each axis where it is smaller.
func (v *Viewport) clamp() {
	w := v.ImageW * v.Scale
	h := v.ImageH * v.Scale

	if w <= v.ContainerW {
		v.OffsetX = (v.ContainerW - w) / 2
	} else {
		v.OffsetX = math.Min(0, math.Max(v.OffsetX, v.ContainerW-w))
	}
	if h <= v.ContainerH {
		v.OffsetY = (v.ContainerH - h) / 2
	} else {
		v.OffsetY = math.Min(0, math.Max(v.OffsetY, v.ContainerH-h))
	}
}
