package domain

import "time"

// Calculation is one persisted emissions computation.
type Calculation struct {
	ID                   int64      `json:"id"`
	DepartureAirportID   int64      `json:"departure_airport_id,omitempty"`
	DestinationAirportID int64      `json:"destination_airport_id,omitempty"`
	Passengers           int        `json:"passengers"`
	RoundTrip            bool       `json:"round_trip"`
	CabinClass           CabinClass `json:"cabin_class"`
	DistanceKM           float64    `json:"distance_km"`
	DistanceMiles        float64    `json:"distance_miles"`
	FuelBurnKG           float64    `json:"fuel_burn_kg"`
	TotalCO2KG           float64    `json:"total_co2_kg"`
	CO2PerPassengerKG    float64    `json:"co2_per_passenger_kg"`
	CO2Tonnes            float64    `json:"co2_tonnes"`
	CalculationMethod    string     `json:"calculation_method"`
	FlightInfo           string     `json:"flight_info"`
	CreatedAt            time.Time  `json:"created_at"`
}

// Airport is the reference-lookup record for a 3-letter code.
type Airport struct {
	ID       int64
	IATACode string
	Name     string
	City     string
	Country  string
}
