package geometry

import (
	"brain2-canvas/internal/domain"
)

// ZoomLimits bounds the zoom factor. Pan is unconstrained.
type ZoomLimits struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// DefaultZoomLimits matches the canvas buttons: 30% to 200%.
var DefaultZoomLimits = ZoomLimits{Min: 0.3, Max: 2.0}

// Clamp forces z into [Min, Max].
func (l ZoomLimits) Clamp(z float64) float64 {
	if z < l.Min {
		return l.Min
	}
	if z > l.Max {
		return l.Max
	}
	return z
}

// ToCanvasSpace converts a screen point: canvas = screen/zoom - pan.
func ToCanvasSpace(screen, pan domain.Position, zoom float64) domain.Position {
	return screen.Scale(1 / zoom).Sub(pan)
}

// ToScreenSpace is the inverse of ToCanvasSpace: screen = (canvas + pan) * zoom.
func ToScreenSpace(canvas, pan domain.Position, zoom float64) domain.Position {
	return canvas.Add(pan).Scale(zoom)
}

// Viewport is the pan offset and zoom factor of one canvas view.
type Viewport struct {
	Pan    domain.Position
	Zoom   float64
	Limits ZoomLimits
}

// NewViewport starts at the origin with zoom 1.
func NewViewport(limits ZoomLimits) Viewport {
	return Viewport{Zoom: limits.Clamp(1), Limits: limits}
}

func (v Viewport) ToCanvas(screen domain.Position) domain.Position {
	return ToCanvasSpace(screen, v.Pan, v.Zoom)
}

func (v Viewport) ToScreen(canvas domain.Position) domain.Position {
	return ToScreenSpace(canvas, v.Pan, v.Zoom)
}

// PanBy shifts the view by a raw screen delta. The delta is not divided by
// zoom, so panning speed does not depend on the zoom level.
func (v *Viewport) PanBy(screenDelta domain.Position) {
	v.Pan = v.Pan.Add(screenDelta)
}

// ZoomTo changes the zoom factor keeping the canvas point under the center of
// a view of the given size fixed on screen.
func (v *Viewport) ZoomTo(zoom float64, viewSize domain.Position) {
	center := viewSize.Scale(0.5)
	anchor := v.ToCanvas(center)
	v.Zoom = v.Limits.Clamp(zoom)
	v.Pan = center.Scale(1 / v.Zoom).Sub(anchor)
}
