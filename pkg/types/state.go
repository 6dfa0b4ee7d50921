package types

// Charge tracks how unmetabolized a feeling still is.
type Charge string

// Charge constants in forward order.
const (
	ChargeFresh       Charge = "fresh"
	ChargeWarm        Charge = "warm"
	ChargeCool        Charge = "cool"
	ChargeMetabolized Charge = "metabolized"
)

var chargeRank = map[Charge]int{
	ChargeFresh:       0,
	ChargeWarm:        1,
	ChargeCool:        2,
	ChargeMetabolized: 3,
}

// IsValid reports whether c is a known charge.
func (c Charge) IsValid() bool {
	_, ok := chargeRank[c]
	return ok
}

// IsValidChargeTransition validates charge transitions.
//
// Valid transitions:
//
//	fresh -> warm (sit) | cool (decay or sit)
//	warm  -> cool (sit or decay)
//	cool  -> metabolized (resolve)
//	fresh | warm -> metabolized (resolve)
//	metabolized -> (terminal, no transitions out)
//
// Charge never moves backwards and never stays in place through a transition.
func IsValidChargeTransition(current, next Charge) bool {
	if !current.IsValid() || !next.IsValid() {
		return false
	}
	if current == ChargeMetabolized {
		return false
	}
	return chargeRank[next] > chargeRank[current]
}

// ChargeAfterSit returns the charge a feeling holds after being sat with,
// given its charge and sit count before the sit.
// The first sit warms, any later sit cools; metabolized and cool are unchanged.
func ChargeAfterSit(current Charge, sitCountBefore int) Charge {
	switch current {
	case ChargeMetabolized, ChargeCool:
		return current
	}
	if sitCountBefore == 0 {
		return ChargeWarm
	}
	return ChargeCool
}
