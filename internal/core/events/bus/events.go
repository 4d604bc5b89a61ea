package bus

// Engine event types.
const (
	SceneReady       = "scene.ready"
	PlayerResolved   = "player.resolved"
	PlayerStale      = "player.stale"
	CoinsAttached    = "coins.attached"
	CoinCollected    = "coin.collected"
	ProbeExhausted   = "probe.exhausted"
	CosmeticsApplied = "cosmetics.applied"
)

type SceneReadyData struct {
	Identity uint64 `json:"identity"`
	HasMath  bool   `json:"has_math"`
	Replaced bool   `json:"replaced"`
}

type PlayerResolvedData struct {
	Name     string  `json:"name"`
	Strategy string  `json:"strategy"`
	Score    float64 `json:"score"`
	Key      uint64  `json:"key"`
}

type PlayerStaleData struct {
	Strategy string `json:"strategy"`
	Failures int    `json:"failures"`
}

type CoinsAttachedData struct {
	Attached int `json:"attached"`
	Total    int `json:"total"`
}

type CoinCollectedData struct {
	ID        int     `json:"id"`
	X         float64 `json:"x"`
	Z         float64 `json:"z"`
	Collected int     `json:"collected"`
}

type ProbeExhaustedData struct {
	Probe    string `json:"probe"`
	Attempts int    `json:"attempts"`
}

type CosmeticsAppliedData struct {
	Meshes int `json:"meshes"`
}
