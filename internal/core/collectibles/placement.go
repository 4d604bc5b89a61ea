package collectibles

import (
	"math"
	"math/rand/v2"

	"github.com/zeusync/scenehook/internal/core/scene"
)

type SpawnConfig struct {
	Count         int
	NearCount     int
	NearMinRadius float64
	NearSpread    float64
	// NearJitter is the maximum angular offset in radians.
	NearJitter   float64
	Radius       float64
	MinDistance  float64
	Attempts     int
	GroundOffset float64
}

// Spawn places cfg.Count collectibles. The first NearCount ring the origin
// so early pickups are reachable; the rest are rejection sampled within
// Radius keeping MinDistance from every earlier placement. When the attempt
// budget runs out the farthest-from-neighbours candidate is taken.
func Spawn(cfg SpawnConfig, rng *rand.Rand) []*Collectible {
	coins := make([]*Collectible, 0, cfg.Count)
	near := min(cfg.NearCount, cfg.Count)

	for i := 0; i < near; i++ {
		angle := float64(i)/float64(near)*2*math.Pi + (rng.Float64()*2-1)*cfg.NearJitter
		r := cfg.NearMinRadius + rng.Float64()*cfg.NearSpread
		p := scene.Vec3{X: math.Cos(angle) * r, Y: cfg.GroundOffset, Z: math.Sin(angle) * r}
		coins = append(coins, newCollectible(len(coins)+1, p, Placement{Near: true, Attempts: 1}, rng))
	}

	attempts := max(cfg.Attempts, 1)
	for len(coins) < cfg.Count {
		var best scene.Vec3
		bestGap := -1.0
		placement := Placement{}
		for placement.Attempts < attempts {
			placement.Attempts++
			angle := rng.Float64() * 2 * math.Pi
			r := math.Sqrt(rng.Float64()) * cfg.Radius
			p := scene.Vec3{X: math.Cos(angle) * r, Y: cfg.GroundOffset, Z: math.Sin(angle) * r}
			gap := nearest(coins, p)
			if gap > bestGap {
				best, bestGap = p, gap
			}
			if gap >= cfg.MinDistance {
				break
			}
		}
		placement.Exhausted = bestGap < cfg.MinDistance
		coins = append(coins, newCollectible(len(coins)+1, best, placement, rng))
	}
	return coins
}

// nearest returns the planar distance from p to the closest coin, or +Inf.
func nearest(coins []*Collectible, p scene.Vec3) float64 {
	d := math.Inf(1)
	for _, c := range coins {
		d = math.Min(d, scene.PlanarDistance(c.position, p))
	}
	return d
}

func newCollectible(id int, p scene.Vec3, placement Placement, rng *rand.Rand) *Collectible {
	phase := Phase{
		RotationSpeed: 0.02 + rng.Float64()*0.01,
		BobOffset:     rng.Float64() * 2 * math.Pi,
		BobSpeed:      0.5 + rng.Float64()*0.5,
		BaseRotation:  rng.Float64() * 2 * math.Pi,
	}
	return &Collectible{
		id:        id,
		position:  p,
		phase:     phase,
		placement: placement,
		state:     Spawned,
		rotation:  phase.BaseRotation,
	}
}

// NewRand returns the generator used for placement. Seed 0 draws a random
// seed.
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
