package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// CertificateData holds the fields printed on a verification certificate
type CertificateData struct {
	RequestID    string
	FullName     string
	Phone        string
	CropName     string
	Variety      string
	Quantity     string
	Village      string
	Taluk        string
	District     string
	LocationType string
	Latitude     float64
	Longitude    float64
	ReviewedBy   string
	ReviewedAt   time.Time
	IssuedAt     time.Time
}

// Color represents an RGB color
type Color struct {
	R, G, B int
}

// CertificateOptions configures certificate rendering
type CertificateOptions struct {
	Title       string
	Issuer      string
	FontFamily  string
	AccentColor Color
	Timezone    *time.Location
}

// DefaultCertificateOptions returns default certificate options
func DefaultCertificateOptions() CertificateOptions {
	return CertificateOptions{
		Title:       "Crop Ownership Verification Certificate",
		Issuer:      "Crop Verification Desk",
		FontFamily:  "Arial",
		AccentColor: Color{R: 46, G: 125, B: 50},
		Timezone:    time.UTC,
	}
}

// CertificateGenerator renders approved verifications as PDF
type CertificateGenerator struct {
	options CertificateOptions
}

func NewCertificateGenerator(options CertificateOptions) *CertificateGenerator {
	if options.Timezone == nil {
		options.Timezone = time.UTC
	}
	return &CertificateGenerator{options: options}
}

// Generate renders a one-page certificate
func (g *CertificateGenerator) Generate(data CertificateData) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetTitle(g.options.Title, false)
	pdf.AddPage()

	accent := g.options.AccentColor
	font := g.options.FontFamily

	pdf.SetDrawColor(accent.R, accent.G, accent.B)
	pdf.SetLineWidth(1)
	pdf.Rect(10, 10, 190, 277, "D")

	pdf.SetFont(font, "B", 18)
	pdf.SetTextColor(accent.R, accent.G, accent.B)
	pdf.CellFormat(0, 12, g.options.Title, "", 1, "C", false, 0, "")

	pdf.SetFont(font, "", 11)
	pdf.SetTextColor(100, 100, 100)
	pdf.CellFormat(0, 8, "Request ID: "+data.RequestID, "", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont(font, "", 12)
	pdf.MultiCell(0, 7, fmt.Sprintf(
		"This certifies that %s is verified as the owner of the %s crop described below.",
		fallback(data.FullName, "the farmer"), fallback(data.CropName, "listed")), "", "L", false)
	pdf.Ln(6)

	rows := [][2]string{
		{"Farmer", data.FullName},
		{"Phone", data.Phone},
		{"Crop", data.CropName},
		{"Variety", data.Variety},
		{"Quantity", data.Quantity},
		{"Village", data.Village},
		{"Taluk", data.Taluk},
		{"District", data.District},
		{"Location type", data.LocationType},
		{"Coordinates", fmt.Sprintf("%.6f, %.6f", data.Latitude, data.Longitude)},
		{"Reviewed by", data.ReviewedBy},
		{"Reviewed at", g.formatTime(data.ReviewedAt)},
	}

	for i, row := range rows {
		if i%2 == 0 {
			pdf.SetFillColor(240, 240, 240)
		} else {
			pdf.SetFillColor(255, 255, 255)
		}
		pdf.SetFont(font, "B", 11)
		pdf.CellFormat(55, 8, row[0], "1", 0, "L", true, 0, "")
		pdf.SetFont(font, "", 11)
		pdf.CellFormat(0, 8, fallback(row[1], "-"), "1", 1, "L", true, 0, "")
	}

	pdf.Ln(12)
	pdf.SetFont(font, "I", 9)
	pdf.SetTextColor(128, 128, 128)
	pdf.CellFormat(0, 6, fmt.Sprintf("Issued by %s on %s", g.options.Issuer, g.formatTime(data.IssuedAt)), "", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render certificate: %w", err)
	}
	return buf.Bytes(), nil
}

func (g *CertificateGenerator) formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(g.options.Timezone).Format("02 Jan 2006 15:04 MST")
}

func fallback(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
