// Package render draws game snapshots to images with gg.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"lane-defense/internal/game"
)

// HUDHeight is the pixel height of the status bar above the field
const HUDHeight = 32.0

var (
	colorBackground = color.RGBA{18, 24, 20, 255}
	colorTileA      = color.RGBA{58, 112, 52, 255}
	colorTileB      = color.RGBA{66, 124, 58, 255}
	colorEdge       = color.RGBA{160, 40, 40, 255}
	colorHUD        = color.RGBA{12, 12, 18, 230}
	colorText       = color.RGBA{235, 235, 240, 255}
	colorHealthBg   = color.RGBA{51, 51, 51, 255}
	colorProjectile = color.RGBA{250, 230, 90, 255}
	colorCoin       = color.RGBA{255, 200, 40, 255}
	colorShadow     = color.RGBA{0, 0, 0, 90}
	colorHostile    = color.RGBA{150, 80, 160, 255}
	colorEngaged    = color.RGBA{200, 70, 110, 255}
	colorFlash      = color.RGBA{255, 255, 255, 255}

	kindColors = map[game.DefenderKind]color.RGBA{
		game.KindAttacker: {70, 150, 230, 255},
		game.KindProducer: {240, 190, 50, 255},
		game.KindBlocker:  {140, 100, 60, 255},
	}
)

// Renderer draws snapshots at a fixed output size. Not safe for concurrent use.
type Renderer struct {
	width, height int
	dc            *gg.Context
}

// NewRenderer creates a renderer for width x height output
func NewRenderer(width, height int) *Renderer {
	dc := gg.NewContext(width, height)
	dc.SetFontFace(basicfont.Face7x13)
	return &Renderer{width: width, height: height, dc: dc}
}

// Size returns the output dimensions
func (r *Renderer) Size() (int, int) {
	return r.width, r.height
}

// Viewport maps world coordinates onto the output image
type Viewport struct {
	Scale   float64
	OffsetX float64
	OffsetY float64
}

// ViewportFor fits a cols x lanes field of tileSize tiles below the HUD
func ViewportFor(width, height, cols, lanes int, tileSize float64) Viewport {
	fieldW := float64(cols) * tileSize
	fieldH := float64(lanes) * tileSize
	if fieldW <= 0 || fieldH <= 0 {
		return Viewport{Scale: 1}
	}
	avail := float64(height) - HUDHeight
	scale := math.Min(float64(width)/fieldW, avail/fieldH)
	return Viewport{
		Scale:   scale,
		OffsetX: (float64(width) - fieldW*scale) / 2,
		OffsetY: HUDHeight + (avail-fieldH*scale)/2,
	}
}

// ToScreen converts a world point to pixels
func (v Viewport) ToScreen(x, y float64) (float64, float64) {
	return v.OffsetX + x*v.Scale, v.OffsetY + y*v.Scale
}

// ToWorld converts a pixel to a world point
func (v Viewport) ToWorld(px, py float64) (float64, float64) {
	return (px - v.OffsetX) / v.Scale, (py - v.OffsetY) / v.Scale
}

// Render draws the snapshot and returns the backing image.
// The image is reused by the next call.
func (r *Renderer) Render(snap *game.GameSnapshot) image.Image {
	dc := r.dc
	vp := ViewportFor(r.width, r.height, snap.Cols, snap.Lanes, snap.TileSize)
	tile := snap.TileSize * vp.Scale

	dc.SetColor(colorBackground)
	dc.Clear()

	r.drawField(snap, vp, tile)
	r.drawDefenders(snap.Defenders, vp, tile)
	r.drawHostiles(snap.Hostiles, vp, tile)
	r.drawProjectiles(snap.Projectiles, vp, tile)
	r.drawCollectibles(snap.Collectibles, vp, tile)
	r.drawHUD(snap)
	if snap.Lost {
		r.drawLost(snap)
	}

	return dc.Image()
}

// WritePNG renders the snapshot and encodes it as PNG
func (r *Renderer) WritePNG(w io.Writer, snap *game.GameSnapshot) error {
	if err := png.Encode(w, r.Render(snap)); err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	return nil
}

func (r *Renderer) drawField(snap *game.GameSnapshot, vp Viewport, tile float64) {
	dc := r.dc
	for lane := 0; lane < snap.Lanes; lane++ {
		for col := 0; col < snap.Cols; col++ {
			if (lane+col)%2 == 0 {
				dc.SetColor(colorTileA)
			} else {
				dc.SetColor(colorTileB)
			}
			x, y := vp.ToScreen(float64(col)*snap.TileSize, float64(lane)*snap.TileSize)
			dc.DrawRectangle(x, y, tile, tile)
			dc.Fill()
		}
	}

	// Defended edge
	x0, y0 := vp.ToScreen(0, 0)
	_, y1 := vp.ToScreen(0, float64(snap.Lanes)*snap.TileSize)
	dc.SetColor(colorEdge)
	dc.SetLineWidth(3)
	dc.DrawLine(x0, y0, x0, y1)
	dc.Stroke()
}

func (r *Renderer) drawDefenders(defenders []game.DefenderSnapshot, vp Viewport, tile float64) {
	dc := r.dc
	size := tile * 0.7
	for _, d := range defenders {
		x, y := vp.ToScreen(d.X, d.Y)

		dc.SetColor(colorShadow)
		dc.DrawEllipse(x, y+size*0.4, size*0.5, size*0.15)
		dc.Fill()

		dc.SetColor(kindColors[d.Kind])
		switch d.Kind {
		case game.KindAttacker:
			dc.DrawCircle(x, y, size/2)
		case game.KindProducer:
			dc.DrawRegularPolygon(6, x, y, size/2, 0)
		default:
			dc.DrawRoundedRectangle(x-size/2, y-size/2, size, size, size*0.15)
		}
		dc.Fill()

		if d.Ready && d.Kind == game.KindProducer {
			dc.SetColor(colorCoin)
			dc.SetLineWidth(2)
			dc.DrawCircle(x, y, size/2+2)
			dc.Stroke()
		}

		r.drawHealthBar(x, y-size/2-6, size, d.Health, d.MaxHealth)
	}
}

func (r *Renderer) drawHostiles(hostiles []game.HostileSnapshot, vp Viewport, tile float64) {
	dc := r.dc
	radius := tile * 0.3
	for _, h := range hostiles {
		x, y := vp.ToScreen(h.X, h.Y)
		if h.State == game.HostileAdvancing {
			y += h.Bob * tile * 0.04
		}

		switch {
		case h.Flash:
			dc.SetColor(colorFlash)
		case h.State == game.HostileEngaged:
			dc.SetColor(colorEngaged)
		default:
			dc.SetColor(colorHostile)
		}
		dc.DrawCircle(x, y, radius)
		dc.Fill()

		r.drawHealthBar(x, y-radius-6, radius*2, h.Health, h.MaxHealth)
	}
}

func (r *Renderer) drawProjectiles(projectiles []game.ProjectileSnapshot, vp Viewport, tile float64) {
	dc := r.dc
	dc.SetColor(colorProjectile)
	for _, p := range projectiles {
		x, y := vp.ToScreen(p.X, p.Y)
		dc.DrawCircle(x, y, math.Max(2, tile*0.08))
		dc.Fill()
	}
}

func (r *Renderer) drawCollectibles(collectibles []game.CollectibleSnapshot, vp Viewport, tile float64) {
	dc := r.dc
	radius := math.Max(3, tile*0.15)
	for _, c := range collectibles {
		x, y := vp.ToScreen(c.X, c.Y)

		dc.SetColor(colorShadow)
		dc.DrawEllipse(x, y, radius, radius*0.4)
		dc.Fill()

		// Height lifts the coin up the screen
		lift := c.Height * vp.Scale * 0.5
		dc.SetColor(colorCoin)
		dc.DrawCircle(x, y-lift, radius)
		dc.Fill()
	}
}

func (r *Renderer) drawHealthBar(cx, y, width float64, health, maxHealth int) {
	if maxHealth <= 0 || health >= maxHealth {
		return
	}
	pct := math.Max(0, float64(health)/float64(maxHealth))
	dc := r.dc

	dc.SetColor(colorHealthBg)
	dc.DrawRectangle(cx-width/2, y, width, 4)
	dc.Fill()

	switch {
	case pct > 0.5:
		dc.SetColor(color.RGBA{83, 255, 69, 255})
	case pct > 0.25:
		dc.SetColor(color.RGBA{255, 149, 0, 255})
	default:
		dc.SetColor(color.RGBA{255, 62, 62, 255})
	}
	dc.DrawRectangle(cx-width/2, y, width*pct, 4)
	dc.Fill()
}

func (r *Renderer) drawHUD(snap *game.GameSnapshot) {
	dc := r.dc
	dc.SetColor(colorHUD)
	dc.DrawRectangle(0, 0, float64(r.width), HUDHeight)
	dc.Fill()

	dc.SetColor(colorText)
	status := fmt.Sprintf("Currency %d   Score %d   Kills %d   Selected %s   Next wave %.1fs",
		snap.Currency, snap.Score, snap.Kills, snap.SelectedKind, float64(snap.NextSpawnMs)/1000)
	dc.DrawStringAnchored(status, 10, HUDHeight/2, 0, 0.5)
}

func (r *Renderer) drawLost(snap *game.GameSnapshot) {
	dc := r.dc
	dc.SetColor(color.RGBA{0, 0, 0, 160})
	dc.DrawRectangle(0, HUDHeight, float64(r.width), float64(r.height)-HUDHeight)
	dc.Fill()

	dc.SetColor(colorText)
	cx, cy := float64(r.width)/2, float64(r.height)/2
	dc.DrawStringAnchored("THE LINE HAS FALLEN", cx, cy-10, 0.5, 0.5)
	dc.DrawStringAnchored(fmt.Sprintf("Final score %d", snap.Score), cx, cy+10, 0.5, 0.5)
}
