package network

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/starford/regnet/internal/apperr"
)

// Layout places graph nodes in the plane. Implementations must be
// deterministic for a given graph.
type Layout interface {
	Name() string
	Place(g *Graph) map[string]Point
}

const (
	LayoutForce     = "force"
	LayoutEmbedding = "embedding"
	LayoutCircular  = "circular"
)

// LayoutByName returns the named layout. An empty name selects force.
func LayoutByName(name string, seed uint64) (Layout, error) {
	switch name {
	case "", LayoutForce:
		return Force{Seed: seed, Iterations: 300}, nil
	case LayoutEmbedding:
		return Embedding{}, nil
	case LayoutCircular:
		return Circular{}, nil
	default:
		return nil, fmt.Errorf("network: unknown layout %q: %w", name, apperr.ErrInvalidInput)
	}
}

// Circular spreads nodes evenly on the unit circle in node order.
type Circular struct{}

func (Circular) Name() string { return LayoutCircular }

func (Circular) Place(g *Graph) map[string]Point {
	out := make(map[string]Point, len(g.Nodes))
	n := float64(len(g.Nodes))
	for i, node := range g.Nodes {
		a := 2 * math.Pi * float64(i) / n
		out[node.ID] = Point{X: math.Cos(a), Y: math.Sin(a)}
	}
	return out
}

// Force is a Fruchterman-Reingold spring layout started from seeded random
// positions.
type Force struct {
	Seed       uint64
	Iterations int
}

func (Force) Name() string { return LayoutForce }

func (f Force) Place(g *Graph) map[string]Point {
	n := len(g.Nodes)
	out := make(map[string]Point, n)
	if n == 0 {
		return out
	}
	rng := rand.New(rand.NewPCG(f.Seed, 0x9e3779b97f4a7c15))
	pos := make([]Point, n)
	for i := range pos {
		pos[i] = Point{X: rng.Float64()*2 - 1, Y: rng.Float64()*2 - 1}
	}

	k := math.Sqrt(4.0 / float64(n))
	temp := 0.1
	iters := f.Iterations
	if iters <= 0 {
		iters = 300
	}
	disp := make([]Point, n)
	for it := 0; it < iters; it++ {
		for i := range disp {
			disp[i] = Point{}
		}
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				dx, dy := pos[i].X-pos[j].X, pos[i].Y-pos[j].Y
				d := math.Max(math.Hypot(dx, dy), 1e-9)
				force := k * k / d
				disp[i].X += dx / d * force
				disp[i].Y += dy / d * force
				disp[j].X -= dx / d * force
				disp[j].Y -= dy / d * force
			}
		}
		for _, e := range g.Edges {
			a, b := g.at(e.Regulator), g.at(e.Target)
			if a == b {
				continue
			}
			dx, dy := pos[a].X-pos[b].X, pos[a].Y-pos[b].Y
			d := math.Max(math.Hypot(dx, dy), 1e-9)
			force := d * d / k
			disp[a].X -= dx / d * force
			disp[a].Y -= dy / d * force
			disp[b].X += dx / d * force
			disp[b].Y += dy / d * force
		}
		for i := range pos {
			d := math.Hypot(disp[i].X, disp[i].Y)
			if d == 0 {
				continue
			}
			step := math.Min(d, temp)
			pos[i].X = clamp(pos[i].X + disp[i].X/d*step)
			pos[i].Y = clamp(pos[i].Y + disp[i].Y/d*step)
		}
		temp *= 0.98
	}
	for i, node := range g.Nodes {
		out[node.ID] = pos[i]
	}
	return out
}

func clamp(v float64) float64 { return math.Max(-1, math.Min(1, v)) }

// Embedding projects each node's signed coefficient profile (outgoing and
// incoming edge estimates) onto its first two principal components.
type Embedding struct{}

func (Embedding) Name() string { return LayoutEmbedding }

func (Embedding) Place(g *Graph) map[string]Point {
	n := len(g.Nodes)
	out := make(map[string]Point, n)
	if n == 0 {
		return out
	}
	x := mat.NewDense(n, 2*n, nil)
	for _, e := range g.Edges {
		a, b := g.at(e.Regulator), g.at(e.Target)
		x.Set(a, b, x.At(a, b)+e.Estimate)
		x.Set(b, n+a, x.At(b, n+a)+e.Estimate)
	}
	for j := 0; j < 2*n; j++ {
		var mean float64
		for i := 0; i < n; i++ {
			mean += x.At(i, j)
		}
		mean /= float64(n)
		for i := 0; i < n; i++ {
			x.Set(i, j, x.At(i, j)-mean)
		}
	}

	var svd mat.SVD
	if !svd.Factorize(x, mat.SVDThin) {
		return Circular{}.Place(g)
	}
	var u mat.Dense
	svd.UTo(&u)
	vals := svd.Values(nil)
	scale := 1.0
	if len(vals) > 0 && vals[0] > 0 {
		scale = 1 / vals[0]
	}
	_, cols := u.Dims()
	for i, node := range g.Nodes {
		var p Point
		if cols > 0 {
			p.X = u.At(i, 0) * vals[0] * scale
		}
		if cols > 1 {
			p.Y = u.At(i, 1) * vals[1] * scale
		}
		out[node.ID] = p
	}
	return out
}
