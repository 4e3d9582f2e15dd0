package stats

import "math"

// CohensD returns the standardized mean difference (a - b) over the pooled
// standard deviation, 0 when the pooled spread is zero.
func CohensD(a, b Summary) float64 {
	n1 := float64(a.N)
	n2 := float64(b.N)
	if a.N+b.N < 3 {
		return 0
	}
	pooled := math.Sqrt(((n1-1)*a.variance() + (n2-1)*b.variance()) / (n1 + n2 - 2))
	if pooled == 0 {
		return 0
	}
	return (a.Mean - b.Mean) / pooled
}

// ObservedPower estimates post-hoc power by treating the observed
// t-statistic as the non-centrality parameter: the probability a repeat of
// the experiment clears the critical value again. Clamped to [0, 1].
func ObservedPower(tStat, df, alpha float64) float64 {
	if df <= 0 {
		return 0
	}
	if alpha <= 0 || alpha >= 1 {
		alpha = 0.05
	}
	tCrit := TCritical(df, 1-alpha)
	power := 1 - NormalCDF(tCrit-math.Abs(tStat))
	if power < 0 {
		return 0
	}
	if power > 1 {
		return 1
	}
	return power
}

// RequiredSampleSize returns the per-group sample size for a two-proportion
// test detecting a relative lift of mde over baselineRate, via the normal
// approximation. Degenerate inputs return 0; callers validate ranges.
func RequiredSampleSize(baselineRate, mde, power, alpha float64) int {
	if baselineRate <= 0 || baselineRate >= 1 || mde <= 0 {
		return 0
	}
	if power <= 0 || power >= 1 {
		power = 0.8
	}
	if alpha <= 0 || alpha >= 1 {
		alpha = 0.05
	}
	p1 := baselineRate
	p2 := p1 * (1 + mde)
	if p2 >= 1 {
		p2 = 1 - 1e-9
	}
	zAlpha := ZScore(1 - alpha/2)
	zPower := ZScore(power)
	num := (zAlpha + zPower) * (zAlpha + zPower) * (p1*(1-p1) + p2*(1-p2))
	den := (p2 - p1) * (p2 - p1)
	return int(math.Ceil(num / den))
}
