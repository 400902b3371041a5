// Package stats implements the Poisson likelihood statistics used to fit
// binned counts: CASH for a known background and WSTAT for a background
// measured in an off region.
package stats

import (
	"math"
)

// CashTruncation is the floor applied to predicted counts before taking the log
const CashTruncation = 1e-25

// Stat type tags
const (
	TypeCash  = "cash"
	TypeWStat = "wstat"
)

// Cash returns 2(mu - n ln mu). Predicted counts at or below CashTruncation
// are raised to it, so the result is never NaN.
func Cash(nOn, muOn float64) float64 {
	if muOn <= CashTruncation {
		muOn = CashTruncation
	}
	return 2 * (muOn - nOn*math.Log(muOn))
}

// CashArray evaluates Cash bin by bin
func CashArray(nOn, muOn []float64) []float64 {
	out := make([]float64, len(nOn))
	for i := range out {
		out[i] = Cash(nOn[i], muOn[i])
	}
	return out
}

// WStatMuBkg returns the background that maximises the likelihood for a given
// signal (profile likelihood). With alpha zero the off region is independent
// and the estimate is nOff.
func WStatMuBkg(nOn, nOff, alpha, muSig float64) float64 {
	if alpha <= 0 {
		return nOff
	}
	c := alpha*(nOn+nOff) - (1+alpha)*muSig
	d := math.Sqrt(math.Max(c*c+4*alpha*(alpha+1)*nOff*muSig, 0))
	return (c + d) / (2 * alpha * (alpha + 1))
}

// WStatGOFTerms returns the terms that make WStat a goodness of fit statistic
// (zero for a perfect fit)
func WStatGOFTerms(nOn, nOff float64) float64 {
	var term float64
	if nOn != 0 {
		term += -nOn * (1 - math.Log(nOn))
	}
	if nOff != 0 {
		term += -nOff * (1 - math.Log(nOff))
	}
	return 2 * term
}

// WStat is the profile likelihood statistic for Poisson signal on top of a
// background measured in an off region scaled by alpha, including the
// goodness of fit terms. Bins with nOn or nOff zero drop the matching log term.
func WStat(nOn, nOff, alpha, muSig float64) float64 {
	return WStatWithBkg(nOn, nOff, alpha, muSig, WStatMuBkg(nOn, nOff, alpha, muSig))
}

// WStatWithBkg evaluates WStat for an explicit background. Like Cash, the
// predictions inside the logs are floored at CashTruncation.
func WStatWithBkg(nOn, nOff, alpha, muSig, muBkg float64) float64 {
	term1 := muSig + (1+alpha)*muBkg
	var term2, term3 float64
	if nOn != 0 {
		term2 = -nOn * math.Log(math.Max(muSig+alpha*muBkg, CashTruncation))
	}
	if nOff != 0 {
		term3 = -nOff * math.Log(math.Max(muBkg, CashTruncation))
	}
	return 2*(term1+term2+term3) + WStatGOFTerms(nOn, nOff)
}

// WStatArray evaluates WStat bin by bin
func WStatArray(nOn, nOff, alpha, muSig []float64) []float64 {
	out := make([]float64, len(nOn))
	for i := range out {
		out[i] = WStat(nOn[i], nOff[i], alpha[i], muSig[i])
	}
	return out
}

// WStatMuBkgArray evaluates WStatMuBkg bin by bin
func WStatMuBkgArray(nOn, nOff, alpha, muSig []float64) []float64 {
	out := make([]float64, len(nOn))
	for i := range out {
		out[i] = WStatMuBkg(nOn[i], nOff[i], alpha[i], muSig[i])
	}
	return out
}
