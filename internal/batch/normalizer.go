package batch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mvidal/flight-emissions-back/internal/domain"
)

var errInsufficientColumns = errors.New("insufficient columns")

const (
	fieldDeparture   = "departure_iata"
	fieldDestination = "destination_iata"
	fieldPassengers  = "passengers"
	fieldCabinClass  = "cabin_class"
	fieldRoundTrip   = "round_trip"
)

// headerAliases maps case-folded incoming header names onto canonical field
// names. Unrecognized headers pass through unchanged and are ignored.
var headerAliases = map[string]string{
	"departure_iata":   fieldDeparture,
	"departure":        fieldDeparture,
	"from":             fieldDeparture,
	"origin":           fieldDeparture,
	"destination_iata": fieldDestination,
	"destination":      fieldDestination,
	"to":               fieldDestination,
	"arrival":          fieldDestination,
	"passengers":       fieldPassengers,
	"pax":              fieldPassengers,
	"cabin_class":      fieldCabinClass,
	"cabin":            fieldCabinClass,
	"class":            fieldCabinClass,
	"round_trip":       fieldRoundTrip,
	"roundtrip":        fieldRoundTrip,
	"return":           fieldRoundTrip,
}

// CleanHeader strips a leading byte-order mark and maps header synonyms onto
// canonical field names.
func CleanHeader(header []string) []string {
	cleaned := make([]string, len(header))
	for i, field := range header {
		if i == 0 {
			field = strings.TrimPrefix(field, "\ufeff")
		}
		field = strings.ToLower(strings.TrimSpace(field))
		if canonical, ok := headerAliases[field]; ok {
			field = canonical
		}
		cleaned[i] = field
	}
	return cleaned
}

// NormalizeRow cleans one raw record into a canonical row, applying the
// active trip parameters. The row's own passenger/cabin/round-trip values are
// informational only and never reach the computation.
func NormalizeRow(header []string, row []string, params domain.TripParams) (domain.CanonicalRow, error) {
	if len(row) < len(header) || len(row) < 2 {
		return domain.CanonicalRow{}, errInsufficientColumns
	}

	fields := make(map[string]string, len(header))
	for i, name := range header {
		if i < len(row) {
			fields[name] = row[i]
		}
	}

	departureRaw := strings.ToUpper(strings.TrimSpace(fields[fieldDeparture]))
	destinationRaw := strings.ToUpper(strings.TrimSpace(fields[fieldDestination]))

	departure, okDep := validateAirportCode(departureRaw)
	destination, okDest := validateAirportCode(destinationRaw)
	if !okDep || !okDest {
		return domain.CanonicalRow{}, fmt.Errorf("invalid airport codes: %s -> %s", departureRaw, destinationRaw)
	}
	if departure == destination {
		return domain.CanonicalRow{}, fmt.Errorf("same airport: %s", departure)
	}

	return domain.CanonicalRow{
		Departure:   departure,
		Destination: destination,
		Passengers:  params.Passengers,
		CabinClass:  params.CabinClass,
		RoundTrip:   params.RoundTrip,
	}, nil
}

// validateAirportCode trims, uppercases and strips non-alphabetic characters,
// then requires exactly three letters to remain. The check is format-only; it
// does not confirm the code denotes a real airport.
func validateAirportCode(code string) (string, bool) {
	var letters strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(code)) {
		if r >= 'A' && r <= 'Z' {
			letters.WriteRune(r)
		}
	}
	clean := letters.String()
	if len(clean) != 3 {
		return "", false
	}
	return clean, true
}
