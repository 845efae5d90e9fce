package analytics

// Tier is a named percentile bucket.
type Tier struct {
	Name      string  `json:"name"`
	Threshold float64 `json:"threshold"`
}

// tiers is ordered by ascending threshold. The first entry must start at 0.
var tiers = []Tier{
	{Name: "Beginner", Threshold: 0},
	{Name: "Novice", Threshold: 6},
	{Name: "Intermediate", Threshold: 23},
	{Name: "Proficient", Threshold: 47},
	{Name: "Advanced", Threshold: 70},
	{Name: "Elite", Threshold: 85},
}

// Tiers returns a copy of the tier table.
func Tiers() []Tier {
	return append([]Tier(nil), tiers...)
}

// TierFromPercentile returns the highest tier whose threshold is <= p.
// Values below zero map to the lowest tier.
func TierFromPercentile(p float64) Tier {
	for i := len(tiers) - 1; i > 0; i-- {
		if p >= tiers[i].Threshold {
			return tiers[i]
		}
	}
	return tiers[0]
}

// TierGap describes the distance to the next tier.
type TierGap struct {
	Tier         string  `json:"tier,omitempty"`
	PointsNeeded float64 `json:"points_needed"`
	MaxTier      bool    `json:"max_tier"`
}

// NextTierGap finds the smallest threshold strictly above p. At or above the
// top threshold it reports MaxTier.
func NextTierGap(p float64) TierGap {
	for _, t := range tiers {
		if t.Threshold > p {
			return TierGap{Tier: t.Name, PointsNeeded: t.Threshold - p}
		}
	}
	return TierGap{MaxTier: true}
}
