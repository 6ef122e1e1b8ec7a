package hexgrid

import "github.com/talgya/hexcrown/internal/spatial"

// Viewport is the camera state a renderer pans and zooms. It is deliberately
// separate from the world-model layout: zooming changes how the map is drawn,
// never where anything is.
type Viewport struct {
	Width  float64 // screen width in pixels
	Height float64 // screen height in pixels

	// Camera offset in world units; (0,0) centers the origin hex.
	OffsetX float64
	OffsetY float64

	// Current zoomed hex size, clamped to [MinHexSize, MaxHexSize].
	HexSize    float64
	MinHexSize float64
	MaxHexSize float64
}

// Pan shifts the camera by a screen-space delta.
func (v *Viewport) Pan(dx, dy float64) {
	v.OffsetX += dx
	v.OffsetY += dy
}

// Zoom adjusts the hex size by delta, clamped to the configured bounds.
func (v *Viewport) Zoom(delta float64) {
	v.HexSize += delta
	if v.HexSize < v.MinHexSize {
		v.HexSize = v.MinHexSize
	}
	if v.HexSize > v.MaxHexSize {
		v.HexSize = v.MaxHexSize
	}
}

// Layout returns the layout at the current zoom level.
func (v *Viewport) Layout() Layout {
	return Layout{Size: v.HexSize}
}

// ToPixel converts a world-space position to screen pixels.
func (v *Viewport) ToPixel(pos spatial.Position) (float64, float64) {
	return pos.X - v.OffsetX + v.Width/2, pos.Y - v.OffsetY + v.Height/2
}

// PixelToHex snaps a screen pixel to the hex cell under it at the current
// zoom, using the same cube rounding as Layout.FromCartesian.
func (v *Viewport) PixelToHex(px, py float64) HexCoord {
	x := px - v.Width/2 + v.OffsetX
	y := py - v.Height/2 + v.OffsetY
	return v.Layout().FromCartesian(x, y)
}
