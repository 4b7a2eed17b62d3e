// Package deduce fills in AUTO foreground slots from image statistics: it
// gathers colors that plausibly carry foreground content, reduces them to
// implied pure-foreground points, and clusters those points with a
// deterministic k-means++ so repeated runs on the same image always pick
// the same colors.
package deduce

import (
	"errors"
	"image"
	"image/color"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/muesli/clusters"
	"github.com/nullpixel/bgone/colour"
)

// ErrInsufficientColors is returned when the image's candidate colors
// cannot form as many non-empty clusters as the number of AUTO slots
// requested (including when there are fewer candidates than slots).
var ErrInsufficientColors = errors.New("bgone: not enough distinct colors to deduce foreground")

// maxIterations bounds k-means' refinement loop, per spec.md §4.4.
const maxIterations = 32

// seed is the fixed k-means++ seed that makes deduction reproducible.
const seed = 0xB6076E5A

// outOfGamutTolerance allows implied foreground points a hair outside
// [0,1]^3 before they're discarded, matching the kernel's channelEpsilon.
const outOfGamutTolerance = 1.0 / 512.0

// Colors deduces count foreground colors from img's content, given the
// background bg and a background-exclusion threshold (spec.md §4.4's
// threshold, scaled so 1.0 means the full normalized-RGB diagonal). It
// returns one colour.RGB per requested slot, ordered by descending
// cluster population.
func Colors(img image.Image, bg colour.NRGB, threshold float64, count int) ([]colour.RGB, error) {
	if count <= 0 {
		return nil, nil
	}

	points := impliedForegroundPoints(img, bg, threshold)
	if len(points) < count {
		return nil, ErrInsufficientColors
	}

	assignments, centroids := kMeansPlusPlus(points, count, seed, maxIterations)

	population := make([]int, len(centroids))
	for _, a := range assignments {
		population[a]++
	}
	for _, p := range population {
		if p == 0 {
			return nil, ErrInsufficientColors
		}
	}

	order := make([]int, len(centroids))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return population[order[i]] > population[order[j]]
	})

	result := make([]colour.RGB, count)
	for i := 0; i < count; i++ {
		c := centroids[order[i]]
		result[i] = colour.FromNormalized(colour.NRGB{R: c[0], G: c[1], B: c[2]})
	}
	return result, nil
}

// impliedForegroundPoints implements spec.md §4.4 steps 1-2: collect every
// unique observed color at least threshold away from the background, then
// reduce each to its implied pure-foreground point, discarding anything
// that lands outside the RGB cube.
func impliedForegroundPoints(img image.Image, bg colour.NRGB, threshold float64) []colour.NRGB {
	bounds := img.Bounds()
	minDist := threshold * math.Sqrt(3)

	seen := make(map[colour.RGB]struct{})
	points := make([]colour.NRGB, 0, 256)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			observed := rgbAt(img, x, y)
			if _, ok := seen[observed]; ok {
				continue
			}
			seen[observed] = struct{}{}

			norm := colour.ToNormalized(observed)
			if euclidean(norm, bg) < minDist {
				continue
			}
			if e, ok := impliedForeground(norm, bg); ok {
				points = append(points, e)
			}
		}
	}
	return points
}

// impliedForeground computes the implied pure-foreground color of an
// observed pixel by treating it as attenuated only by its own "natural"
// alpha: the channel-wise maximum alpha that keeps the implied foreground
// within the RGB cube. This mirrors the kernel's zero-basis free solve but
// reports failure instead of clamping, since out-of-gamut candidates must
// be discarded rather than squashed.
func impliedForeground(observed, bg colour.NRGB) (colour.NRGB, bool) {
	o := [3]float64{observed.R, observed.G, observed.B}
	g := [3]float64{bg.R, bg.G, bg.B}

	alpha := 0.0
	for i := 0; i < 3; i++ {
		denom := math.Max(g[i], 1-g[i])
		if denom <= 0 {
			continue
		}
		if v := math.Abs(o[i]-g[i]) / denom; v > alpha {
			alpha = v
		}
	}
	if alpha <= 0 {
		return colour.NRGB{}, false
	}

	var e [3]float64
	for i := 0; i < 3; i++ {
		e[i] = g[i] + (o[i]-g[i])/alpha
		if e[i] < -outOfGamutTolerance || e[i] > 1+outOfGamutTolerance {
			return colour.NRGB{}, false
		}
		e[i] = math.Min(1, math.Max(0, e[i]))
	}
	return colour.NRGB{R: e[0], G: e[1], B: e[2]}, true
}

// rgbAt reads a pixel as straight (non-premultiplied) 8-bit RGB; see
// detect.rgbAt for why img.At(x,y).RGBA() can't be used directly.
func rgbAt(img image.Image, x, y int) colour.RGB {
	c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
	return colour.RGB{R: c.R, G: c.G, B: c.B}
}

func euclidean(a, b colour.NRGB) float64 {
	dr, dg, db := a.R-b.R, a.G-b.G, a.B-b.B
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

// kMeansPlusPlus clusters points into k groups using the github.com/muesli/
// clusters data types, seeded by a k-means++ pass driven by an explicit
// PRNG so the result is reproducible regardless of how many times this
// process has called into math/rand elsewhere.
func kMeansPlusPlus(points []colour.NRGB, k int, prngSeed uint64, iterations int) (assignments []int, centroids []clusters.Coordinates) {
	obs := make(clusters.Observations, len(points))
	for i, p := range points {
		obs[i] = clusters.Coordinates{p.R, p.G, p.B}
	}

	rng := rand.New(rand.NewPCG(prngSeed, prngSeed^0x9e3779b97f4a7c15))
	centroids = seedPlusPlus(obs, k, rng)
	assignments = make([]int, len(obs))

	for iter := 0; iter < iterations; iter++ {
		changed := assign(obs, centroids, assignments)
		centroids = recompute(obs, assignments, centroids)
		if !changed {
			break
		}
	}
	return assignments, centroids
}

func seedPlusPlus(obs clusters.Observations, k int, rng *rand.Rand) []clusters.Coordinates {
	n := len(obs)
	centroids := make([]clusters.Coordinates, 0, k)
	centroids = append(centroids, obs[rng.IntN(n)].Coordinates())

	dist := make([]float64, n)
	for len(centroids) < k {
		total := 0.0
		for i, o := range obs {
			best := math.Inf(1)
			for _, c := range centroids {
				if d := squaredDistance(o.Coordinates(), c); d < best {
					best = d
				}
			}
			dist[i] = best
			total += best
		}
		if total == 0 {
			centroids = append(centroids, obs[rng.IntN(n)].Coordinates())
			continue
		}

		target := rng.Float64() * total
		cum, chosen := 0.0, n-1
		for i, d := range dist {
			cum += d
			if cum >= target {
				chosen = i
				break
			}
		}
		centroids = append(centroids, obs[chosen].Coordinates())
	}
	return centroids
}

func assign(obs clusters.Observations, centroids []clusters.Coordinates, assignments []int) bool {
	changed := false
	for i, o := range obs {
		coords := o.Coordinates()
		best, bestDist := 0, math.Inf(1)
		for c, centroid := range centroids {
			if d := squaredDistance(coords, centroid); d < bestDist {
				bestDist, best = d, c
			}
		}
		if assignments[i] != best {
			assignments[i] = best
			changed = true
		}
	}
	return changed
}

func recompute(obs clusters.Observations, assignments []int, previous []clusters.Coordinates) []clusters.Coordinates {
	dims := len(previous[0])
	sums := make([]clusters.Coordinates, len(previous))
	counts := make([]int, len(previous))
	for i := range sums {
		sums[i] = make(clusters.Coordinates, dims)
	}

	for i, o := range obs {
		c := assignments[i]
		coords := o.Coordinates()
		for d := 0; d < dims; d++ {
			sums[c][d] += coords[d]
		}
		counts[c]++
	}

	next := make([]clusters.Coordinates, len(previous))
	for c := range sums {
		if counts[c] == 0 {
			next[c] = previous[c]
			continue
		}
		next[c] = make(clusters.Coordinates, dims)
		for d := 0; d < dims; d++ {
			next[c][d] = sums[c][d] / float64(counts[c])
		}
	}
	return next
}

func squaredDistance(a, b clusters.Coordinates) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
