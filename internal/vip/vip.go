// Package vip centralizes every VIP adjustment so that reward engines, fee
// calculations and shop pricing share one rounding policy. Rates are basis
// points (1/10000) and all arithmetic is integral.
package vip

// Basis-point denominator.
const BpsDenom = 10000

// Amount applies the VIP reward multiplier to a base amount.
func Amount(base int64, isVIP bool, multiplier int64) int64 {
	if !isVIP || multiplier <= 1 {
		return base
	}
	return base * multiplier
}

// FeeRate returns the effective fee rate: VIP senders pay no fees.
func FeeRate(isVIP bool, rateBps int64) int64 {
	if isVIP {
		return 0
	}
	return rateBps
}

// Fee computes floor(amount * rate). Negative inputs yield zero.
func Fee(amount, rateBps int64) int64 {
	if amount <= 0 || rateBps <= 0 {
		return 0
	}
	return amount * rateBps / BpsDenom
}

// Price applies the VIP shop discount: floor(base * (1 - discount)) for VIP
// buyers, the base price otherwise.
func Price(base int64, isVIP bool, discountBps int64) int64 {
	if !isVIP || discountBps <= 0 {
		return base
	}
	if discountBps > BpsDenom {
		discountBps = BpsDenom
	}
	return base * (BpsDenom - discountBps) / BpsDenom
}
