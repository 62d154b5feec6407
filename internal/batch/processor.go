package batch

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"

	"github.com/mvidal/flight-emissions-back/internal/domain"
	"github.com/mvidal/flight-emissions-back/internal/icao"
	"github.com/mvidal/flight-emissions-back/internal/repository"
)

const (
	// progressCadence is how often the tracker is advanced during the row
	// loop, in rows. The first row always publishes an update.
	progressCadence = 5

	defaultCommitEvery = 50

	// partialSuccessThreshold routes a partially-failed file to the
	// processed directory when at least this share of rows succeeded.
	// Inherited business rule, pending product confirmation.
	partialSuccessThreshold = 50.0
)

// Processor drives the per-row loop over one queued file: normalize, compute
// through the oracle, persist, tally, classify. Rows are processed strictly
// sequentially to keep the outcome list deterministic and to avoid flooding
// the oracle.
type Processor struct {
	computer    icao.Computer
	calcs       repository.CalculationsRepository
	airports    repository.AirportsRepository
	tracker     *Tracker
	logger      *log.Logger
	commitEvery int
}

func NewProcessor(
	computer icao.Computer,
	calcs repository.CalculationsRepository,
	airports repository.AirportsRepository,
	tracker *Tracker,
	logger *log.Logger,
	commitEvery int,
) *Processor {
	if commitEvery <= 0 {
		commitEvery = defaultCommitEvery
	}
	return &Processor{
		computer:    computer,
		calcs:       calcs,
		airports:    airports,
		tracker:     tracker,
		logger:      logger,
		commitEvery: commitEvery,
	}
}

// ProcessFile processes one queued file and returns its aggregate result.
// It fails fast only on whole-file conditions (missing file, no header);
// every row-level failure is tallied and processing continues.
func (p *Processor) ProcessFile(ctx context.Context, path string, params domain.TripParams) (*domain.BatchResult, error) {
	params = params.Normalize()
	filename := filepath.Base(path)

	p.tracker.Reset()
	p.tracker.Start(fmt.Sprintf("Starting processing of %s", filename))

	file, err := os.Open(path)
	if err != nil {
		p.tracker.Fail(fmt.Sprintf("File not found: %s", filename))
		return nil, fmt.Errorf("open batch file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	headerRecord, err := reader.Read()
	if err != nil {
		p.tracker.Fail(fmt.Sprintf("Empty file: %s", filename))
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty file")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	header := CleanHeader(headerRecord)

	// Pre-pass: materialize the rows so the tracker can be seeded with the
	// total before the loop starts.
	records, err := reader.ReadAll()
	if err != nil {
		p.tracker.Fail(fmt.Sprintf("Unreadable file: %s", filename))
		return nil, fmt.Errorf("read rows: %w", err)
	}
	totalRows := len(records)
	p.tracker.SetTotal(totalRows, fmt.Sprintf("Processing %d rows from %s", totalRows, filename))

	batch, err := p.calcs.BeginBatch(ctx)
	if err != nil {
		p.tracker.Fail(fmt.Sprintf("Storage unavailable: %v", err))
		return nil, err
	}
	defer batch.Close(ctx)

	var (
		outcomes  = make([]domain.RowOutcome, 0, totalRows)
		processed int
		errored   int
	)

	for i, record := range records {
		rowNum := i + 1

		if rowNum == 1 || rowNum%progressCadence == 0 {
			percent := float64(rowNum) / float64(totalRows) * 100
			p.tracker.Advance(rowNum, processed, errored, percent, fmt.Sprintf(
				"Processing row %d of %d - %d successful, %d failed",
				rowNum, totalRows, processed, errored,
			))
		}

		canonical, err := NormalizeRow(header, record, params)
		if err != nil {
			errored++
			outcomes = append(outcomes, domain.RowOutcome{Row: rowNum, Error: err.Error()})
			p.logger.Printf("row %d rejected file=%s reason=%v", rowNum, filename, err)
			continue
		}

		result, err := p.computer.Compute(ctx, icao.RouteRequest{
			Departure:   canonical.Departure,
			Destination: canonical.Destination,
			Passengers:  canonical.Passengers,
			RoundTrip:   canonical.RoundTrip,
			CabinClass:  canonical.CabinClass,
		})
		if err != nil {
			// Every oracle failure is a row failure. No fallback
			// computation is substituted.
			errored++
			outcomes = append(outcomes, domain.RowOutcome{
				Row:         rowNum,
				Departure:   canonical.Departure,
				Destination: canonical.Destination,
				Error:       err.Error(),
			})
			p.logger.Printf("row %d oracle failure file=%s route=%s->%s err=%v",
				rowNum, filename, canonical.Departure, canonical.Destination, err)
			continue
		}

		calculation := buildCalculation(canonical, result)
		p.attachAirportIDs(ctx, calculation, canonical)

		if err := batch.Insert(ctx, calculation); err != nil {
			if rollbackErr := batch.Rollback(ctx); rollbackErr != nil {
				p.logger.Printf("rollback failed file=%s err=%v", filename, rollbackErr)
			}
			errored++
			outcomes = append(outcomes, domain.RowOutcome{
				Row:         rowNum,
				Departure:   canonical.Departure,
				Destination: canonical.Destination,
				Error:       fmt.Sprintf("database error: %v", err),
			})
			p.logger.Printf("row %d persistence failure file=%s err=%v", rowNum, filename, err)
			continue
		}

		processed++
		outcomes = append(outcomes, domain.RowOutcome{
			Row:           rowNum,
			Success:       true,
			Departure:     canonical.Departure,
			Destination:   canonical.Destination,
			CalculationID: calculation.ID,
			ParamsApplied: &params,
		})

		if processed%p.commitEvery == 0 {
			if err := batch.Commit(ctx); err != nil {
				p.logger.Printf("batch commit failed file=%s processed=%d err=%v", filename, processed, err)
			}
		}
	}

	if err := batch.Commit(ctx); err != nil {
		p.logger.Printf("final commit failed file=%s err=%v", filename, err)
	}

	successRate := 0.0
	if processed+errored > 0 {
		successRate = float64(processed) / float64(processed+errored) * 100
	}
	successRate = math.Round(successRate*10) / 10

	result := &domain.BatchResult{
		OriginalFilename: filename,
		ProcessedRows:    processed,
		ErrorRows:        errored,
		TotalRows:        totalRows,
		SuccessRate:      successRate,
		Outcomes:         outcomes,
		ParamsUsed:       params,
		Destination:      classifyDestination(totalRows, errored, successRate),
	}

	completionMessage := fmt.Sprintf("Processing completed: %d successful, %d errors", processed, errored)
	if totalRows == 0 {
		completionMessage = "No rows processed"
	}
	p.tracker.Complete(processed, errored, completionMessage)
	p.logger.Printf("file processed file=%s processed=%d errors=%d success_rate=%.1f destination=%s",
		filename, processed, errored, successRate, result.Destination)

	return result, nil
}

func classifyDestination(totalRows, errorRows int, successRate float64) domain.BatchDestination {
	switch {
	case totalRows == 0:
		return domain.DestinationErrors
	case errorRows == 0:
		return domain.DestinationProcessed
	case successRate >= partialSuccessThreshold:
		return domain.DestinationProcessed
	default:
		return domain.DestinationErrors
	}
}

func buildCalculation(row domain.CanonicalRow, result icao.Result) *domain.Calculation {
	flightInfo := fmt.Sprintf("%s to %s - %.0fkm", row.Departure, row.Destination, result.DistanceKM)
	if row.RoundTrip {
		flightInfo += " (Round Trip)"
	}
	flightInfo += " • " + row.CabinClass.Title()

	return &domain.Calculation{
		Passengers:        row.Passengers,
		RoundTrip:         row.RoundTrip,
		CabinClass:        row.CabinClass,
		DistanceKM:        result.DistanceKM,
		DistanceMiles:     result.DistanceMiles,
		FuelBurnKG:        result.FuelBurnKG,
		TotalCO2KG:        result.TotalCO2KG,
		CO2PerPassengerKG: result.CO2PerPassengerKG,
		CO2Tonnes:         result.CO2Tonnes,
		CalculationMethod: result.DataSource,
		FlightInfo:        flightInfo,
	}
}

// attachAirportIDs resolves the optional airport foreign keys. Lookups are
// best-effort; a missing airport never blocks persistence.
func (p *Processor) attachAirportIDs(ctx context.Context, calculation *domain.Calculation, row domain.CanonicalRow) {
	if p.airports == nil {
		return
	}
	if id, err := p.airports.LookupID(ctx, row.Departure); err == nil {
		calculation.DepartureAirportID = id
	}
	if id, err := p.airports.LookupID(ctx, row.Destination); err == nil {
		calculation.DestinationAirportID = id
	}
}
