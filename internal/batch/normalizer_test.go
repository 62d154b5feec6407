package batch

import (
	"strings"
	"testing"

	"github.com/mvidal/flight-emissions-back/internal/domain"
)

func TestCleanHeaderAliasesAndStripsBOM(t *testing.T) {
	header := CleanHeader([]string{"\ufeffFrom", "To", "PAX", "Cabin", "Return", "notes"})

	want := []string{"departure_iata", "destination_iata", "passengers", "cabin_class", "round_trip", "notes"}
	for i, field := range want {
		if header[i] != field {
			t.Fatalf("header[%d]: expected %q, got %q", i, field, header[i])
		}
	}
}

func TestNormalizeRowAppliesTripParamOverride(t *testing.T) {
	header := CleanHeader([]string{"From", "To", "PAX"})
	params := domain.TripParams{Passengers: 3, CabinClass: domain.CabinBusiness, RoundTrip: true}

	row, err := NormalizeRow(header, []string{"yyz", "yvr", "9"}, params)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if row.Departure != "YYZ" || row.Destination != "YVR" {
		t.Fatalf("unexpected codes %s -> %s", row.Departure, row.Destination)
	}
	if row.Passengers != 3 {
		t.Fatalf("expected override passengers 3, got %d", row.Passengers)
	}
	if row.CabinClass != domain.CabinBusiness || !row.RoundTrip {
		t.Fatalf("expected override cabin/round-trip to win, got %+v", row)
	}
}

func TestNormalizeRowRejectsShortRows(t *testing.T) {
	header := CleanHeader([]string{"From", "To", "PAX"})

	_, err := NormalizeRow(header, []string{"YYZ"}, domain.DefaultTripParams())
	if err == nil || err.Error() != "insufficient columns" {
		t.Fatalf("expected insufficient columns, got %v", err)
	}
}

func TestNormalizeRowRejectsInvalidCodes(t *testing.T) {
	header := CleanHeader([]string{"From", "To"})

	cases := [][]string{
		{"12", "BB"},
		{"YYZZ", "YVR"},
		{"", "YVR"},
	}
	for _, row := range cases {
		_, err := NormalizeRow(header, row, domain.DefaultTripParams())
		if err == nil || !strings.HasPrefix(err.Error(), "invalid airport codes:") {
			t.Fatalf("row %v: expected invalid airport codes, got %v", row, err)
		}
	}
}

func TestNormalizeRowRejectsSameAirport(t *testing.T) {
	header := CleanHeader([]string{"From", "To"})

	_, err := NormalizeRow(header, []string{"ccc", " CCC "}, domain.DefaultTripParams())
	if err == nil || err.Error() != "same airport: CCC" {
		t.Fatalf("expected same airport rejection, got %v", err)
	}
}

func TestValidateAirportCodeStripsNoise(t *testing.T) {
	code, ok := validateAirportCode(" y-y_z ")
	if !ok || code != "YYZ" {
		t.Fatalf("expected YYZ, got %q ok=%v", code, ok)
	}

	if _, ok := validateAirportCode("A1B2C3D"); ok {
		t.Fatalf("expected four-letter residue to be rejected")
	}
}
