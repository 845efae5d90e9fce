// Package analytics estimates one-rep maxes, ranks them against population
// standards and keeps the personal-record table.
package analytics

import (
	"math"

	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/standards"
)

// EstimateOneRepMax uses the Epley formula w*(1+r/30). A single rep returns
// the weight unchanged. The linear form is a deliberate simplification; no
// curve fitting is attempted for high rep counts.
func EstimateOneRepMax(weight float64, reps int) float64 {
	switch {
	case reps <= 0:
		return 0
	case reps == 1:
		return weight
	}
	return weight * (1 + float64(reps)/30)
}

// anchor maps a bodyweight ratio to a percentile.
type anchor struct {
	ratio      float64
	percentile float64
}

// superiorOvershoot is the ratio beyond Superior at which the percentile reaches 100.
const superiorOvershoot = 1.25

func anchors(s standards.Standard) []anchor {
	return []anchor{
		{0, 0},
		{s.Novice, 6},
		{s.Intermediate, 23},
		{s.Proficient, 47},
		{s.Advanced, 70},
		{s.Elite, 85},
		{s.Superior, 97},
		{s.Superior * superiorOvershoot, 100},
	}
}

// Percentile ranks a one-rep max against the standards table for the
// exercise and gender, interpolating linearly between anchors on the
// (age-adjusted) 1RM/bodyweight ratio. Exercises without a standard, or a
// non-positive bodyweight, rank 0.
func Percentile(table *standards.Table, oneRepMax, bodyweight float64, gender models.Gender, exerciseKey string, age int) int {
	if table == nil || bodyweight <= 0 || oneRepMax <= 0 {
		return 0
	}
	std, ok := table.Lookup(gender, exerciseKey)
	if !ok {
		return 0
	}
	ratio := oneRepMax / bodyweight * table.AgeFactor(age)

	pts := anchors(std)
	for i := 1; i < len(pts); i++ {
		lo, hi := pts[i-1], pts[i]
		if ratio > hi.ratio || hi.ratio <= lo.ratio {
			continue
		}
		frac := (ratio - lo.ratio) / (hi.ratio - lo.ratio)
		return clampPercentile(lo.percentile + frac*(hi.percentile-lo.percentile))
	}
	return 100
}

func clampPercentile(p float64) int {
	return int(math.Max(0, math.Min(100, math.Round(p))))
}

// BestSet returns the index of the set with the highest estimated one-rep
// max, comparing in canonical units. Ties keep the earliest set; an empty
// slice returns -1.
func BestSet(sets []models.SetRecord) int {
	best, bestORM := -1, -1.0
	for i, s := range sets {
		orm := EstimateOneRepMax(models.ToCanonical(s.Weight, s.Unit), s.Reps)
		if orm > bestORM {
			best, bestORM = i, orm
		}
	}
	return best
}
