package domain

import "strings"

type CabinClass string

const (
	CabinEconomy        CabinClass = "economy"
	CabinPremiumEconomy CabinClass = "premium_economy"
	CabinBusiness       CabinClass = "business"
	CabinFirst          CabinClass = "first"
)

// Valid reports whether the cabin class is one of the supported values.
func (c CabinClass) Valid() bool {
	switch c {
	case CabinEconomy, CabinPremiumEconomy, CabinBusiness, CabinFirst:
		return true
	}
	return false
}

// Title renders the cabin class for human-readable flight summaries,
// e.g. "premium_economy" -> "Premium Economy".
func (c CabinClass) Title() string {
	words := strings.Split(string(c), "_")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}

// TripParams are the passenger/cabin/round-trip values applied to every row
// of a batch. Values present in the input rows are informational only; the
// active TripParams always win.
type TripParams struct {
	Passengers int        `json:"passengers"`
	CabinClass CabinClass `json:"cabinClass"`
	RoundTrip  bool       `json:"roundTrip"`
}

// DefaultTripParams matches the defaults applied when a trigger supplies none.
func DefaultTripParams() TripParams {
	return TripParams{
		Passengers: 1,
		CabinClass: CabinEconomy,
		RoundTrip:  false,
	}
}

// Normalize fills unusable fields with defaults.
func (p TripParams) Normalize() TripParams {
	if p.Passengers < 1 {
		p.Passengers = 1
	}
	if !p.CabinClass.Valid() {
		p.CabinClass = CabinEconomy
	}
	return p
}

// CanonicalRow is one cleaned input record ready for computation.
type CanonicalRow struct {
	Departure   string
	Destination string
	Passengers  int
	CabinClass  CabinClass
	RoundTrip   bool
}
