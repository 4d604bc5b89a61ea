package engine

import (
	"time"

	"github.com/zeusync/scenehook/internal/core/collectibles"
	"github.com/zeusync/scenehook/internal/core/discovery"
	"github.com/zeusync/scenehook/internal/core/scene"
	"github.com/zeusync/scenehook/internal/core/scheduler"
	"github.com/zeusync/scenehook/internal/core/tracking"
)

// TargetInfo describes the bound player target.
type TargetInfo struct {
	Name       string    `json:"name"`
	Strategy   string    `json:"strategy"`
	Score      float64   `json:"score"`
	ResolvedAt time.Time `json:"resolved_at"`
	Confirmed  bool      `json:"confirmed"`
}

// Diagnostics is the read-only engine view exposed to collaborators.
type Diagnostics struct {
	Collectibles   collectibles.Stats  `json:"collectibles"`
	LastStrategy   string              `json:"last_strategy"`
	Position       scene.Sample        `json:"position"`
	HasPosition    bool                `json:"has_position"`
	Tracking       tracking.Snapshot   `json:"tracking"`
	Target         *TargetInfo         `json:"target,omitempty"`
	SceneReady     bool                `json:"scene_ready"`
	SceneVia       string              `json:"scene_via,omitempty"`
	Probes         []scheduler.Status  `json:"probes"`
	ProviderErrors uint64              `json:"provider_errors"`
	Resolutions    uint64              `json:"resolutions"`
	Walk           discovery.WalkStats `json:"walk"`
	UpdatedAt      time.Time           `json:"updated_at"`
}
