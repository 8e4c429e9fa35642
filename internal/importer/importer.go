package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"proptrack/server/internal/models"
	"proptrack/server/internal/validation"
)

const (
	msgInvalidColumns = "Invalid number of columns"
	msgGeocodeFailed  = "Failed to geocode location"
)

var (
	ErrEmptyFile     = errors.New("import file has no header row")
	ErrMalformedFile = errors.New("import file is not valid CSV")
	ErrNoFile        = errors.New("no file provided")
)

// Geocoder resolves a location to latitude and longitude
type Geocoder interface {
	Geocode(ctx context.Context, location string) (float64, float64, error)
}

// Store persists a batch of listings atomically
type Store interface {
	InsertProperties(ctx context.Context, properties []*models.Property) error
}

// Importer turns an uploaded CSV file into listings. A batch is stored only
// when every row is valid and geocoded.
type Importer struct {
	geocoder    Geocoder
	store       Store
	logger      *logrus.Logger
	concurrency int
}

// Result of one import. Exactly one of Errors and Properties is populated
// for a processed file.
type Result struct {
	Errors     []models.ValidationError
	Properties []*models.Property
}

// Rejected reports whether the batch was refused
func (r *Result) Rejected() bool {
	return len(r.Errors) > 0
}

// NewImporter creates an importer. concurrency bounds how many rows are
// geocoded at once; values below 1 mean one row at a time in file order.
func NewImporter(geocoder Geocoder, store Store, logger *logrus.Logger, concurrency int) *Importer {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Importer{
		geocoder:    geocoder,
		store:       store,
		logger:      logger,
		concurrency: concurrency,
	}
}

// rowOutcome holds what processing produced for a single data row
type rowOutcome struct {
	err      *models.ValidationError
	property *models.Property
}

// Import reads the file, validates and geocodes every data row and, when no
// row failed, inserts all rows with a single bulk insert.
func (i *Importer) Import(ctx context.Context, r io.Reader) (*Result, error) {
	header, records, err := readRecords(r)
	if err != nil {
		return nil, err
	}

	outcomes := make([]rowOutcome, len(records))

	g := new(errgroup.Group)
	g.SetLimit(i.concurrency)

	for idx, record := range records {
		rowNum := idx + 1

		if len(record) != len(header) {
			outcomes[idx].err = &models.ValidationError{Row: rowNum, Errors: []string{msgInvalidColumns}}
			continue
		}

		row := make(map[string]string, len(header))
		for col, name := range header {
			row[name] = strings.TrimSpace(record[col])
		}

		if verr := validation.ValidateRow(row, rowNum); verr != nil {
			outcomes[idx].err = verr
			continue
		}

		// Go blocks while the limit is reached, so with a limit of one each
		// lookup starts only after the previous row's lookup returned.
		out := &outcomes[idx]
		g.Go(func() error {
			lat, lon, err := i.geocoder.Geocode(ctx, row["location"])
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				i.logger.WithError(err).WithFields(logrus.Fields{
					"row":      rowNum,
					"location": row["location"],
				}).Warn("Error geocoding location")
				out.err = &models.ValidationError{Row: rowNum, Errors: []string{msgGeocodeFailed}}
				return nil
			}
			out.property = buildProperty(row, lat, lon)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("import cancelled: %w", err)
	}

	result := &Result{}
	staged := make([]*models.Property, 0, len(outcomes))
	for _, out := range outcomes {
		if out.err != nil {
			result.Errors = append(result.Errors, *out.err)
			continue
		}
		staged = append(staged, out.property)
	}

	if result.Rejected() {
		i.logger.WithFields(logrus.Fields{
			"rows":        len(records),
			"failed_rows": len(result.Errors),
		}).Info("Batch import rejected")
		return result, nil
	}

	if len(staged) > 0 {
		if err := i.store.InsertProperties(ctx, staged); err != nil {
			return nil, fmt.Errorf("failed to store imported properties: %w", err)
		}
	}

	i.logger.Infof("Successfully imported %d properties", len(staged))
	result.Properties = staged
	return result, nil
}

// readRecords parses the payload into a trimmed header and the data records.
// Blank lines are skipped and rows may differ in length from the header.
func readRecords(r io.Reader) ([]string, [][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedFile, err)
	}
	if len(records) == 0 {
		return nil, nil, ErrEmptyFile
	}

	header := make([]string, len(records[0]))
	for i, name := range records[0] {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		header[i] = strings.TrimSpace(name)
	}
	return header, records[1:], nil
}

// buildProperty stages a validated row. Numeric fields were already checked
// by the row validator.
func buildProperty(row map[string]string, lat, lon float64) *models.Property {
	price, _ := validation.ParseNumber(row["price_per_month"])
	rooms, _ := validation.ParseNumber(row["rooms"])
	bathrooms, _ := validation.ParseNumber(row["bathrooms"])
	squareMeters, _ := validation.ParseOptionalNumber(row["square_meters"])
	serviceCharge, _ := validation.ParseOptionalNumber(row["service_charge"])
	cleaningFee, _ := validation.ParseOptionalNumber(row["cleaning_fee"])
	commission, _ := validation.ParseOptionalNumber(row["commission_charge"])

	return &models.Property{
		Name:             row["name"],
		PricePerMonth:    price,
		Location:         row["location"],
		Rooms:            rooms,
		Bathrooms:        bathrooms,
		SquareMeters:     squareMeters,
		Status:           models.StatusAvailable,
		ServiceCharge:    serviceCharge,
		CleaningFee:      cleaningFee,
		CommissionCharge: commission,
		Latitude:         lat,
		Longitude:        lon,
		IsApproximated:   false,
		IsFavorite:       false,
		URL:              row["url"],
	}
}
