// Package estimator implements the similarity-weighted nearest-neighbour
// valuation heuristic. It is deterministic: the same training set and query
// always produce the same estimate, confidence and comparables.
package estimator

import (
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/stwalsh4118/atlas/reconciler/internal/models"
)

// Score weights and scale factors.
const (
	weightDistance = 0.4
	weightArea     = 0.3
	weightAge      = 0.2
	weightType     = 0.05
	weightZip      = 0.05

	areaScale         = 10.0
	ageScaleYears     = 50.0
	unknownAgePenalty = 0.5
	typeMismatch      = 5.0
	zipMismatch       = 3.0
)

// Defaults used when an Estimator is built with zero options.
const (
	DefaultK            = 20
	DefaultComparables  = 5
	earthRadiusMiles    = 3958.8
	parallelScoreCutoff = 2048
)

// Comparable is one training sample selected as similar to the query.
type Comparable struct {
	AccountNumber string  `json:"accountNumber"`
	TotalValue    float64 `json:"totalValue"`
	Score         float64 `json:"score"`
	DistanceMiles float64 `json:"distanceMiles"`
}

// Estimate is the result of one point query. Value is nil when no estimate
// could be made, in which case Confidence is 0.
type Estimate struct {
	Value       *float64     `json:"estimatedValue"`
	Confidence  float64      `json:"confidence"`
	Comparables []Comparable `json:"comparables"`
}

// Options tunes the estimator.
type Options struct {
	K       int
	Workers int
}

// Estimator scores training samples against a query vector.
type Estimator struct {
	k       int
	workers int
}

// New creates an Estimator. Zero options fall back to k=20 and sequential scoring.
func New(opts Options) *Estimator {
	k := opts.K
	if k <= 0 {
		k = DefaultK
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Estimator{k: k, workers: workers}
}

type scored struct {
	index    int
	score    float64
	distance float64
}

// Estimate values the query using the k most similar training samples.
func (e *Estimator) Estimate(q models.FeatureVector, training []models.TrainingSample) Estimate {
	empty := Estimate{Comparables: []Comparable{}}
	if len(training) == 0 || !usable(q) {
		return empty
	}

	scores := e.scoreAll(q, training)

	// Stable so equal scores keep training-set order
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].score < scores[j].score
	})

	k := e.k
	if k > len(scores) {
		k = len(scores)
	}
	top := scores[:k]

	var weighted, weights float64
	values := make([]float64, 0, k)
	for _, s := range top {
		v := training[s.index].TotalValue
		w := 1 / (1 + s.score)
		weighted += v * w
		weights += w
		values = append(values, v)
	}
	if weights == 0 {
		return empty
	}
	value := weighted / weights
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return empty
	}

	n := DefaultComparables
	if n > k {
		n = k
	}
	comparables := make([]Comparable, 0, n)
	for _, s := range top[:n] {
		sample := training[s.index]
		comparables = append(comparables, Comparable{
			AccountNumber: sample.AccountNumber,
			TotalValue:    sample.TotalValue,
			Score:         s.score,
			DistanceMiles: s.distance,
		})
	}

	return Estimate{
		Value:       &value,
		Confidence:  Confidence(values),
		Comparables: comparables,
	}
}

// scoreAll scores every candidate; large training sets are split across workers.
// Each slot is written by exactly one goroutine so the output order is fixed.
func (e *Estimator) scoreAll(q models.FeatureVector, training []models.TrainingSample) []scored {
	out := make([]scored, len(training))
	scoreRange := func(lo, hi int) {
		for i := lo; i < hi; i++ {
			d := HaversineMiles(*q.Latitude, *q.Longitude, training[i].Latitude, training[i].Longitude)
			out[i] = scored{index: i, score: scoreWithDistance(q, training[i], d), distance: d}
		}
	}

	if e.workers <= 1 || len(training) < parallelScoreCutoff {
		scoreRange(0, len(training))
		return out
	}

	chunk := (len(training) + e.workers - 1) / e.workers
	var g errgroup.Group
	for lo := 0; lo < len(training); lo += chunk {
		lo, hi := lo, min(lo+chunk, len(training))
		g.Go(func() error {
			scoreRange(lo, hi)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Score returns the composite dissimilarity between a query and a candidate.
// Lower is more similar. The query must carry coordinates and a positive area.
func Score(q models.FeatureVector, c models.TrainingSample) float64 {
	d := HaversineMiles(*q.Latitude, *q.Longitude, c.Latitude, c.Longitude)
	return scoreWithDistance(q, c, d)
}

func scoreWithDistance(q models.FeatureVector, c models.TrainingSample, distance float64) float64 {
	area := *q.AreaAcres
	score := weightDistance * distance
	score += weightArea * areaScale * math.Abs(area-c.AreaAcres) / area

	age := unknownAgePenalty
	if q.YearBuilt != nil && c.YearBuilt != nil {
		age = math.Abs(float64(*q.YearBuilt-*c.YearBuilt)) / ageScaleYears
	}
	score += weightAge * age

	if q.PropertyType != c.PropertyType {
		score += weightType * typeMismatch
	}
	if q.Zip != c.Zip {
		score += weightZip * zipMismatch
	}
	return score
}

// Confidence is 100·(1 − coefficient of variation) of the comparable values,
// clamped to [0, 100]. A non-positive mean yields 0.
func Confidence(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	if mean <= 0 {
		return 0
	}

	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	std := math.Sqrt(sq / float64(len(values)))

	c := 100 * (1 - std/mean)
	if math.IsNaN(c) {
		return 0
	}
	return math.Max(0, math.Min(100, c))
}

// HaversineMiles returns the great-circle distance between two points in miles.
func HaversineMiles(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := math.Pi / 180
	dLat := (lat2 - lat1) * toRad
	dLon := (lon2 - lon1) * toRad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*toRad)*math.Cos(lat2*toRad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMiles * math.Asin(math.Min(1, math.Sqrt(a)))
}

func usable(q models.FeatureVector) bool {
	return q.Latitude != nil && q.Longitude != nil && q.AreaAcres != nil && *q.AreaAcres > 0
}
