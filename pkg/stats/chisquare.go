package stats

// ChiSquared2x2 computes the chi-squared statistic for a 2x2 independence
// table of {converted, not converted} x {variant A, variant B}.
// Returns ok=false when either variant has zero impressions, in which case
// the statistic is meaningless.
func ChiSquared2x2(aConv, aImpr, bConv, bImpr int) (float64, bool) {
	if aImpr == 0 || bImpr == 0 {
		return 0, false
	}

	obsConvA := float64(aConv)
	obsNoConvA := float64(aImpr - aConv)
	obsConvB := float64(bConv)
	obsNoConvB := float64(bImpr - bConv)

	totalConv := obsConvA + obsConvB
	totalNoConv := obsNoConvA + obsNoConvB
	totalImpr := float64(aImpr + bImpr)

	if totalImpr == 0 {
		return 0, false
	}

	expConvA := float64(aImpr) * totalConv / totalImpr
	expNoConvA := float64(aImpr) * totalNoConv / totalImpr
	expConvB := float64(bImpr) * totalConv / totalImpr
	expNoConvB := float64(bImpr) * totalNoConv / totalImpr

	// Cells with an expected count of zero contribute nothing.
	chi := 0.0
	if expConvA > 0 {
		chi += (obsConvA - expConvA) * (obsConvA - expConvA) / expConvA
	}
	if expNoConvA > 0 {
		chi += (obsNoConvA - expNoConvA) * (obsNoConvA - expNoConvA) / expNoConvA
	}
	if expConvB > 0 {
		chi += (obsConvB - expConvB) * (obsConvB - expConvB) / expConvB
	}
	if expNoConvB > 0 {
		chi += (obsNoConvB - expNoConvB) * (obsNoConvB - expNoConvB) / expNoConvB
	}

	return chi, true
}

// PValue converts a chi-squared statistic to a p-value using the critical
// values for df=1. The bucketed thresholds are part of the engine's external
// contract: reported significance values land exactly on these boundaries,
// so this must not be swapped for a continuous CDF.
func PValue(chiSquared float64, df int) float64 {
	if df == 1 {
		switch {
		case chiSquared >= 10.83:
			return 0.001
		case chiSquared >= 7.88:
			return 0.005
		case chiSquared >= 6.63:
			return 0.01
		case chiSquared >= 3.84:
			return 0.05
		case chiSquared >= 2.71:
			return 0.10
		default:
			return 0.50
		}
	}

	return 0.50
}
