package collectibles

import (
	"math"

	"github.com/zeusync/scenehook/internal/core/scene"
)

type MinimapConfig struct {
	// MapSize is the world span shown edge to edge.
	MapSize float64
	Width   int
	Height  int
}

// Marker is a collectible projected onto the minimap.
type Marker struct {
	ID       int     `json:"id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Distance float64 `json:"distance"`
	Visible  bool    `json:"visible"`
}

// Minimap is one projected frame. The player is always at the center.
type Minimap struct {
	Player  scene.Vec3 `json:"player"`
	CenterX float64    `json:"center_x"`
	CenterY float64    `json:"center_y"`
	Scale   float64    `json:"scale"`
	Markers []Marker   `json:"markers"`
	Visible int        `json:"visible"`
}

// Projector maps world positions into minimap pixels relative to the player.
type Projector struct {
	cfg MinimapConfig
}

func NewProjector(cfg MinimapConfig) *Projector {
	return &Projector{cfg: cfg}
}

// Project places every collectible that is neither collected nor removed.
// Those farther than half the map size are kept but hidden. World +z points
// down the screen, so it is inverted.
func (p *Projector) Project(player scene.Sample, coins []View) Minimap {
	scale := float64(p.cfg.Width) / p.cfg.MapSize
	m := Minimap{
		Player:  player,
		CenterX: float64(p.cfg.Width) / 2,
		CenterY: float64(p.cfg.Height) / 2,
		Scale:   scale,
		Markers: make([]Marker, 0, len(coins)),
	}
	radius := p.cfg.MapSize / 2
	for _, c := range coins {
		if c.State == Collected || c.State == Removed {
			continue
		}
		dx, dz := c.Position.X-player.X, c.Position.Z-player.Z
		mk := Marker{
			ID:       c.ID,
			X:        m.CenterX + dx*scale,
			Y:        m.CenterY - dz*scale,
			Distance: math.Hypot(dx, dz),
		}
		mk.Visible = mk.Distance <= radius
		if mk.Visible {
			m.Visible++
		}
		m.Markers = append(m.Markers, mk)
	}
	return m
}
