package stats

import "math"

// Summary describes one sample group.
type Summary struct {
	N      int
	Mean   float64
	StdDev float64
}

func (s Summary) variance() float64 { return s.StdDev * s.StdDev }

// Describe computes the sample mean and sample (n-1) standard deviation.
func Describe(samples []float64) Summary {
	n := len(samples)
	if n == 0 {
		return Summary{}
	}
	var sum float64
	for _, v := range samples {
		sum += v
	}
	mean := sum / float64(n)
	if n < 2 {
		return Summary{N: n, Mean: mean}
	}
	var sq float64
	for _, v := range samples {
		d := v - mean
		sq += d * d
	}
	return Summary{N: n, Mean: mean, StdDev: math.Sqrt(sq / float64(n-1))}
}

// TTest is the outcome of a two-sample test on a - b.
type TTest struct {
	T  float64
	P  float64
	DF float64
}

// welchSEDF returns the unequal-variance standard error of the mean
// difference and the Welch-Satterthwaite degrees of freedom.
func welchSEDF(a, b Summary) (float64, float64) {
	n1 := float64(a.N)
	n2 := float64(b.N)
	q1 := a.variance() / n1
	q2 := b.variance() / n2
	se := math.Sqrt(q1 + q2)
	if se == 0 {
		return 0, float64(a.N + b.N - 2)
	}
	df := (q1 + q2) * (q1 + q2) / (q1*q1/(n1-1) + q2*q2/(n2-1))
	return se, df
}

// Welch runs Welch's unequal-variance two-sample t-test on a - b. Groups
// smaller than two observations cannot be tested and yield P = 1. Zero
// spread in both groups degenerates to P = 1 when the means agree and
// P = 0 when they differ.
func Welch(a, b Summary) TTest {
	diff := a.Mean - b.Mean
	if a.N < 2 || b.N < 2 {
		return TTest{P: 1}
	}
	se, df := welchSEDF(a, b)
	if se == 0 {
		if diff == 0 {
			return TTest{P: 1, DF: df}
		}
		return TTest{P: 0, DF: df}
	}
	t := diff / se
	return TTest{T: t, P: twoTailedP(t, df), DF: df}
}

// DiffCI returns the confidence interval for the mean difference a - b at
// the given level, using the t critical value on the Welch degrees of
// freedom. Degenerate samples collapse to the point estimate.
func DiffCI(a, b Summary, level float64) (float64, float64) {
	diff := a.Mean - b.Mean
	if a.N < 2 || b.N < 2 {
		return diff, diff
	}
	se, df := welchSEDF(a, b)
	if se == 0 {
		return diff, diff
	}
	margin := TCritical(df, level) * se
	return diff - margin, diff + margin
}
