package discovery

import (
	"strconv"
	"strings"

	"github.com/zeusync/scenehook/internal/core/scene"
)

// NameWeight scores a node whose name contains Term.
type NameWeight struct {
	Term   string  `yaml:"term" json:"term"`
	Weight float64 `yaml:"weight" json:"weight"`
}

// ChildTier adds Weight when a node has more than Above children.
type ChildTier struct {
	Above  int     `yaml:"above" json:"above"`
	Weight float64 `yaml:"weight" json:"weight"`
}

// Weights tunes the Scorer. Only the relative ordering of the tiers matters:
// role metadata outranks every name, bone children are a strong signal,
// world-position capability a weak one.
type Weights struct {
	// Names is ranked, most specific first. The first matching term counts.
	Names []NameWeight
	// Roles maps a metadata key or a role value onto a weight. The highest
	// match counts.
	Roles map[string]float64
	// Children tiers are checked highest first; only one applies.
	Children  []ChildTier
	Animation float64
	// Group applies to group-typed nodes with more than GroupChildren children.
	Group         float64
	GroupChildren int
	World         float64
	Bones         float64
	BoneTerms     []string
	// BoneDepth bounds how deep below the node bone names are searched.
	BoneDepth int
	Threshold float64
}

// DefaultWeights returns the tuned production weights.
func DefaultWeights() Weights {
	return Weights{
		Names: []NameWeight{
			{Term: "explorer", Weight: 90},
			{Term: "player", Weight: 80},
			{Term: "character", Weight: 70},
			{Term: "walker", Weight: 60},
			{Term: "person", Weight: 50},
			{Term: "human", Weight: 50},
		},
		Roles: map[string]float64{
			"isPlayer":   120,
			"isExplorer": 110,
			"character":  100,
			"player":     100,
		},
		Children: []ChildTier{
			{Above: 15, Weight: 80},
			{Above: 10, Weight: 60},
			{Above: 5, Weight: 40},
		},
		Animation:     50,
		Group:         30,
		GroupChildren: 3,
		World:         20,
		Bones:         60,
		BoneTerms:     []string{"mixamorig", "bone", "armature", "leftfoot", "rightfoot", "hips", "spine"},
		BoneDepth:     3,
		Threshold:     30,
	}
}

// Signal is one scoring contribution.
type Signal struct {
	Name   string  `json:"name"`
	Detail string  `json:"detail,omitempty"`
	Weight float64 `json:"weight"`
}

// Scorer rates how likely a node is the player entity. It only reads.
type Scorer struct {
	w Weights
}

func NewScorer(w Weights) *Scorer {
	return &Scorer{w: w}
}

// Threshold is the score a candidate must exceed.
func (s *Scorer) Threshold() float64 { return s.w.Threshold }

// Score returns the sum of Explain.
func (s *Scorer) Score(n scene.Node) float64 {
	var total float64
	for _, sig := range s.Explain(n) {
		total += sig.Weight
	}
	return total
}

// Accept reports whether n scores above the threshold and has a finite
// position. It returns the score either way.
func (s *Scorer) Accept(n scene.Node) (float64, bool) {
	score := s.Score(n)
	if score <= s.w.Threshold {
		return score, false
	}
	p, ok := n.(scene.Positioned)
	if !ok {
		return score, false
	}
	return score, p.Position().Valid()
}

// Explain lists every signal that fired for n.
func (s *Scorer) Explain(n scene.Node) []Signal {
	var out []Signal

	if named, ok := n.(scene.Named); ok {
		name := strings.ToLower(named.Name())
		for _, nw := range s.w.Names {
			if name != "" && strings.Contains(name, nw.Term) {
				out = append(out, Signal{Name: "name", Detail: nw.Term, Weight: nw.Weight})
				break
			}
		}
	}

	if tagged, ok := n.(scene.Tagged); ok {
		if sig, ok := s.role(tagged.UserData()); ok {
			out = append(out, sig)
		}
	}

	var children []scene.Node
	if p, ok := n.(scene.Parent); ok {
		children = p.Children()
	}
	for _, tier := range s.w.Children {
		if len(children) > tier.Above {
			out = append(out, Signal{Name: "children", Detail: ">" + strconv.Itoa(tier.Above), Weight: tier.Weight})
			break
		}
	}

	if a, ok := n.(scene.Animated); ok && len(a.Animations()) > 0 {
		out = append(out, Signal{Name: "animations", Weight: s.w.Animation})
	}

	if t, ok := n.(scene.Typed); ok && strings.EqualFold(t.Type(), "group") && len(children) > s.w.GroupChildren {
		out = append(out, Signal{Name: "group", Weight: s.w.Group})
	}

	if _, ok := n.(scene.WorldPositioner); ok {
		out = append(out, Signal{Name: "world", Weight: s.w.World})
	}

	if term, ok := s.bones(children, s.w.BoneDepth); ok {
		out = append(out, Signal{Name: "bones", Detail: term, Weight: s.w.Bones})
	}

	return out
}

func (s *Scorer) role(data map[string]any) (Signal, bool) {
	var best Signal
	found := false
	consider := func(detail string, w float64) {
		if !found || w > best.Weight {
			best = Signal{Name: "role", Detail: detail, Weight: w}
			found = true
		}
	}
	for key, v := range data {
		if b, ok := v.(bool); ok && b {
			if w, ok := s.w.Roles[key]; ok {
				consider(key, w)
			}
		}
		if key == "role" || key == "type" {
			if str, ok := v.(string); ok {
				if w, ok := s.w.Roles[strings.ToLower(str)]; ok {
					consider(key+"="+str, w)
				}
			}
		}
	}
	return best, found
}

func (s *Scorer) bones(children []scene.Node, depth int) (string, bool) {
	if depth <= 0 {
		return "", false
	}
	for _, c := range children {
		if named, ok := c.(scene.Named); ok {
			name := strings.ToLower(named.Name())
			for _, term := range s.w.BoneTerms {
				if strings.Contains(name, term) {
					return term, true
				}
			}
		}
	}
	for _, c := range children {
		if p, ok := c.(scene.Parent); ok {
			if term, ok := s.bones(p.Children(), depth-1); ok {
				return term, true
			}
		}
	}
	return "", false
}
