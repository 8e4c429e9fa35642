package importer

import (
	"encoding/csv"
	"io"
	"strconv"

	"proptrack/server/internal/models"
)

const (
	TemplateFilename = "property-template.csv"
	ExportFilename   = "properties.csv"
)

// TemplateHeaders is the column order accepted by Import
var TemplateHeaders = []string{
	"name",
	"price_per_month",
	"location",
	"rooms",
	"bathrooms",
	"square_meters",
	"service_charge",
	"cleaning_fee",
	"commission_charge",
	"url",
}

var templateExample = []string{
	"Beautiful Apartment",
	"1500",
	"Example Street 123",
	"2",
	"1",
	"75",
	"100",
	"50",
	"75",
	"https://example.com/listing",
}

var exportHeaders = []string{
	"ID",
	"Name",
	"Price per Month",
	"Location",
	"Rooms",
	"Bathrooms",
	"Square Meters",
	"Status",
	"Service Charge",
	"Cleaning Fee",
	"Commission Charge",
	"Is Approximated",
	"URL",
}

// WriteTemplate writes the import header and one example row
func WriteTemplate(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(TemplateHeaders); err != nil {
		return err
	}
	if err := cw.Write(templateExample); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// WriteExport writes the listings as a spreadsheet-friendly CSV file.
// Missing optional numbers are left blank.
func WriteExport(w io.Writer, properties []models.Property) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeaders); err != nil {
		return err
	}

	for _, p := range properties {
		record := []string{
			strconv.FormatInt(p.ID, 10),
			p.Name,
			formatNumber(p.PricePerMonth),
			p.Location,
			formatNumber(p.Rooms),
			formatNumber(p.Bathrooms),
			formatOptional(p.SquareMeters),
			string(p.Status),
			formatOptional(p.ServiceCharge),
			formatOptional(p.CleaningFee),
			formatOptional(p.CommissionCharge),
			strconv.FormatBool(p.IsApproximated),
			p.URL,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatNumber(*v)
}
