// Package collectibles owns the coin lifecycle: procedural placement, scene
// attachment, proximity pickup, animation and minimap projection.
package collectibles

import (
	"fmt"
	"time"

	"github.com/zeusync/scenehook/internal/core/scene"
)

// State is a collectible's lifecycle stage. Collected is terminal.
type State uint8

const (
	Spawned State = iota
	Attached
	Collected
	Removed
)

func (s State) String() string {
	switch s {
	case Spawned:
		return "spawned"
	case Attached:
		return "attached"
	case Collected:
		return "collected"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for st := Spawned; st <= Removed; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("collectibles: unknown state %q", b)
}

// Phase holds the cosmetic animation parameters, fixed at spawn.
type Phase struct {
	RotationSpeed float64 `json:"rotation_speed"`
	BobOffset     float64 `json:"bob_offset"`
	BobSpeed      float64 `json:"bob_speed"`
	BaseRotation  float64 `json:"base_rotation"`
}

// Placement records how a position was chosen.
type Placement struct {
	Near      bool `json:"near" yaml:"near"`
	Attempts  int  `json:"attempts" yaml:"attempts"`
	Exhausted bool `json:"exhausted" yaml:"exhausted"`
}

type Collectible struct {
	id        int
	position  scene.Vec3
	phase     Phase
	placement Placement

	state       State
	render      scene.Node
	rotation    float64
	collectedAt time.Time
}

func (c *Collectible) ID() int              { return c.id }
func (c *Collectible) Position() scene.Vec3 { return c.position }
func (c *Collectible) Phase() Phase         { return c.phase }
func (c *Collectible) Placement() Placement { return c.placement }
func (c *Collectible) State() State         { return c.state }
func (c *Collectible) Collected() bool      { return c.state == Collected }

// Render returns the node attached to the scene, nil unless attached.
func (c *Collectible) Render() scene.Node { return c.render }

// View is a read-only copy of a collectible.
type View struct {
	ID          int        `json:"id" yaml:"id"`
	Position    scene.Vec3 `json:"position" yaml:"position"`
	State       State      `json:"state" yaml:"state"`
	Placement   Placement  `json:"placement" yaml:"placement"`
	CollectedAt time.Time  `json:"collected_at,omitzero" yaml:"-"`
}

func (c *Collectible) View() View {
	return View{
		ID:          c.id,
		Position:    c.position,
		State:       c.state,
		Placement:   c.placement,
		CollectedAt: c.collectedAt,
	}
}
