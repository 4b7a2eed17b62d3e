// Package unmix implements the per-pixel color-unmixing kernel: given an
// observed color, a background, and zero or more basis (foreground)
// colors, it recovers non-negative basis weights and an overall alpha such
// that alpha-compositing the weighted basis sum over the background
// reproduces the observed color.
//
// The kernel is pure and holds no state; it is safe to call concurrently
// from any number of goroutines, which is what makes the pixel driver's
// row-slab parallelism trivially safe.
package unmix

import (
	"errors"
	"math"

	"github.com/nullpixel/bgone/colour"
	"gonum.org/v1/gonum/mat"
)

// ErrInsufficientColors is returned by UnmixColor when no basis colors are
// supplied; the library entry point requires at least one, unlike the
// internal driver which falls through to the free solve (§4.3.3) instead.
var ErrInsufficientColors = errors.New("bgone: no foreground colors supplied")

// channelEpsilon is the spec's numeric precision tolerance for channel-wise
// comparisons and reconstruction-error acceptance.
const channelEpsilon = 1.0 / 512.0

// alphaLowerBound seeds the multi-basis bisection's lower end.
const alphaLowerBound = 1.0 / 255.0

// bisectionPrecision is the §4.3.2 target precision for locating the
// smallest feasible alpha.
const bisectionPrecision = 1.0 / 512.0

// Result is the outcome of a kernel solve: a non-negative weight per basis
// color (same order as the basis slice) and an overall alpha.
type Result struct {
	Weights []float32
	Alpha   float32
}

// UnmixColor is the public, single-call entry point (spec.md §6's
// unmixColor). It requires at least one basis color.
func UnmixColor(observed colour.RGB, basis []colour.NRGB, bg colour.NRGB) (Result, error) {
	if len(basis) == 0 {
		return Result{}, ErrInsufficientColors
	}
	res, _ := Unmix(colour.ToNormalized(observed), bg, basis)
	return res, nil
}

// Unmix solves eq. A of spec.md §4.3 for one pixel against a non-empty
// basis. ok reports whether the solve met the reconstruction-error
// tolerance. On failure with a single basis color, weights/alpha are still
// the best effort found; on failure with several, no alpha in (0,1] is
// feasible and the result holds zero weights and alpha 0. Either way the
// caller (the pixel driver, in strict mode) can fall back per §4.5.
func Unmix(observed, bg colour.NRGB, basis []colour.NRGB) (Result, bool) {
	if len(basis) == 1 {
		return unmixSingle(observed, basis[0], bg)
	}
	return unmixMulti(observed, basis, bg)
}

// unmixSingle implements spec.md §4.3.1.
func unmixSingle(observed, fg, bg colour.NRGB) (Result, bool) {
	o, f, g := channels(observed), channels(fg), channels(bg)

	best := 0
	bestAbs := math.Abs(f[0] - g[0])
	for i := 1; i < 3; i++ {
		if d := math.Abs(f[i] - g[i]); d > bestAbs {
			bestAbs = d
			best = i
		}
	}

	var weight float64
	if bestAbs > 1e-12 {
		weight = clamp01((o[best] - g[best]) / (f[best] - g[best]))
	}

	residual := 0.0
	for i := 0; i < 3; i++ {
		recon := weight*f[i] + (1-weight)*g[i]
		if d := math.Abs(recon - o[i]); d > residual {
			residual = d
		}
	}

	// The clamped ratio is the alpha; the single basis weight stays at 1.
	return Result{
		Weights: []float32{1},
		Alpha:   float32(weight),
	}, residual <= channelEpsilon
}

// unmixMulti implements spec.md §4.3.2: bisection on alpha, feasibility
// tested by non-negative least squares over all non-empty active sets of
// the basis (n <= 4, so at most 15 subsets).
func unmixMulti(observed colour.NRGB, basis []colour.NRGB, bg colour.NRGB) (Result, bool) {
	o, g := channels(observed), channels(bg)
	n := len(basis)

	effectiveAt := func(alpha float64) [3]float64 {
		var e [3]float64
		for i := 0; i < 3; i++ {
			e[i] = g[i] + (o[i]-g[i])/alpha
		}
		return e
	}

	feasible := func(alpha float64) (weights []float64, ok bool) {
		e := effectiveAt(alpha)
		for i := 0; i < 3; i++ {
			if e[i] < -channelEpsilon || e[i] > 1+channelEpsilon {
				return nil, false
			}
		}
		return nonNegativeLeastSquares(e, basis, n)
	}

	hiWeights, hiOK := feasible(1.0)
	if !hiOK {
		// No exact solution anywhere in (0,1]; let the driver's strict-mode
		// policy decide the fallback.
		return Result{Weights: make([]float32, n), Alpha: 0}, false
	}

	lo, hi := alphaLowerBound, 1.0
	weights := hiWeights
	for hi-lo > bisectionPrecision {
		mid := (lo + hi) / 2
		if w, ok := feasible(mid); ok {
			hi = mid
			weights = w
		} else {
			lo = mid
		}
	}

	w32 := make([]float32, n)
	for i, w := range weights {
		w32[i] = float32(w)
	}
	return Result{Weights: w32, Alpha: float32(hi)}, true
}

// nonNegativeLeastSquares finds w >= 0 minimizing ||sum w_i*basis_i - target||
// by brute-force active-set enumeration: for each non-empty subset of basis
// indices, solve the unconstrained least-squares system restricted to that
// subset (via gonum, since the system is at most 3x4) and accept it if no
// solved weight is below -channelEpsilon and the residual is within tolerance. The
// subset with the smallest residual wins; subsets are tried in a fixed,
// deterministic order so ties resolve the same way on every run.
func nonNegativeLeastSquares(target [3]float64, basis []colour.NRGB, n int) ([]float64, bool) {
	bestResidual := math.Inf(1)
	var bestWeights []float64
	found := false

	for mask := 1; mask < (1 << n); mask++ {
		active := activeIndices(mask, n)
		w, residual, ok := solveActiveSet(target, basis, active)
		if !ok {
			continue
		}
		if residual > channelEpsilon {
			continue
		}
		if residual < bestResidual {
			bestResidual = residual
			bestWeights = expand(w, active, n)
			found = true
		}
	}

	return bestWeights, found
}

func activeIndices(mask, n int) []int {
	idx := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if mask&(1<<i) != 0 {
			idx = append(idx, i)
		}
	}
	return idx
}

func expand(w []float64, active []int, n int) []float64 {
	full := make([]float64, n)
	for i, a := range active {
		full[a] = w[i]
	}
	return full
}

// solveActiveSet solves the least-squares system A*w = target restricted
// to the given active basis indices, where A's columns are basis[i]. It
// rejects the solution if any resulting weight is below -channelEpsilon;
// smaller negative weights are clamped to zero.
func solveActiveSet(target [3]float64, basis []colour.NRGB, active []int) (weights []float64, residual float64, ok bool) {
	k := len(active)
	a := mat.NewDense(3, k, nil)
	for col, idx := range active {
		c := channels(basis[idx])
		a.Set(0, col, c[0])
		a.Set(1, col, c[1])
		a.Set(2, col, c[2])
	}
	b := mat.NewVecDense(3, []float64{target[0], target[1], target[2]})

	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		return nil, 0, false
	}

	weights = make([]float64, k)
	for i := 0; i < k; i++ {
		v := x.AtVec(i)
		if v < -channelEpsilon {
			return nil, 0, false
		}
		weights[i] = math.Max(v, 0)
	}

	var recon mat.VecDense
	recon.MulVec(a, &x)
	residual = 0
	for i := 0; i < 3; i++ {
		if d := math.Abs(recon.AtVec(i) - target[i]); d > residual {
			residual = d
		}
	}
	return weights, residual, true
}

// ComputeResultColor implements spec.md §6's computeUnmixResultColor: the
// effective foreground E = sum(weights[i] * basis[i]), clamped to [0,1]
// per channel, paired with the given alpha.
func ComputeResultColor(weights []float32, alpha float32, basis []colour.NRGB) colour.RGBA {
	var e [3]float64
	for i, w := range weights {
		if i >= len(basis) {
			break
		}
		c := channels(basis[i])
		for ch := 0; ch < 3; ch++ {
			e[ch] += float64(w) * c[ch]
		}
	}
	for ch := 0; ch < 3; ch++ {
		e[ch] = clamp01(e[ch])
	}
	rgb := colour.FromNormalized(colour.NRGB{R: e[0], G: e[1], B: e[2]})
	return colour.RGBA{
		R: rgb.R, G: rgb.G, B: rgb.B,
		A: uint8(clamp01(float64(alpha))*255 + 0.5),
	}
}

// FreeSolve implements spec.md §4.3.3: the zero-basis case where any
// foreground color is acceptable, chosen to minimize alpha while keeping
// the effective foreground in [0,1]^3. It always succeeds and guarantees
// perfect reconstruction.
func FreeSolve(observed, bg colour.NRGB) (effective colour.NRGB, alpha float32) {
	o, g := channels(observed), channels(bg)

	if o == g {
		return colour.NRGB{}, 0
	}

	a := 0.0
	for i := 0; i < 3; i++ {
		denom := math.Max(g[i], 1-g[i])
		if denom <= 0 {
			continue
		}
		if v := math.Abs(o[i]-g[i]) / denom; v > a {
			a = v
		}
	}
	a = clamp01(a)
	if a == 0 {
		return colour.NRGB{}, 0
	}

	var e [3]float64
	for i := 0; i < 3; i++ {
		e[i] = clamp01(g[i] + (o[i]-g[i])/a)
	}
	return colour.NRGB{R: e[0], G: e[1], B: e[2]}, float32(a)
}

func channels(c colour.NRGB) [3]float64 {
	return [3]float64{c.R, c.G, c.B}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
