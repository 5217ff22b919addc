package verification

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"croptrust/verification-portal/verification-backend/pkg/export"
)

// MaxExportRows caps a single spreadsheet export
const MaxExportRows = 10000

// File is a generated download
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

var exportColumns = []string{
	"Request ID", "Status", "User ID", "Full Name", "Phone", "Crop ID", "Crop Name",
	"Variety", "Quantity", "Village", "Taluk", "District", "Latitude", "Longitude",
	"Location Type", "Photos Approved", "Photos Total", "Rejection Reason",
	"Reviewed By", "Reviewed At", "Created At",
}

// Export renders every record matching the admin listing query as XLSX.
// The page parameters of q are ignored.
func (s *Service) Export(ctx context.Context, q ListQuery) (*File, error) {
	filter, _, err := q.Parse()
	if err != nil {
		return nil, err
	}

	var rows [][]interface{}
	for number := 1; len(rows) < MaxExportRows; number++ {
		page := NewPage(number, MaxPageLimit)
		recs, total, err := s.repo.List(ctx, filter, page)
		if err != nil {
			return nil, internalError("Error fetching requests", err)
		}
		for _, r := range recs {
			rows = append(rows, exportRow(r))
		}
		if len(recs) < page.Limit || int64(page.Offset()+len(recs)) >= total {
			break
		}
	}
	if len(rows) > MaxExportRows {
		rows = rows[:MaxExportRows]
	}

	status := q.Status
	if status == "" {
		status = "all"
	}
	exporter, err := export.NewExcelExporter(export.DefaultExcelOptions("Verifications"))
	if err != nil {
		return nil, internalError("Failed to create workbook", err)
	}
	defer exporter.Close()

	if err := exporter.WriteTable(exportColumns, rows); err != nil {
		return nil, internalError("Failed to write workbook", err)
	}
	var buf bytes.Buffer
	if err := exporter.WriteTo(&buf); err != nil {
		return nil, internalError("Failed to write workbook", err)
	}

	return &File{
		Name:        fmt.Sprintf("verifications_%s_%s.xlsx", status, s.now().UTC().Format("20060102")),
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Data:        buf.Bytes(),
	}, nil
}

func exportRow(r *Record) []interface{} {
	summary := SummarizePhotos(r.Photos)
	return []interface{}{
		r.RequestID, string(r.Status), r.UserID, r.FullName, r.Phone, r.CropID, r.CropName,
		r.Variety, r.Quantity, r.Village, r.Taluk, r.District,
		r.Location.Coordinates[1], r.Location.Coordinates[0],
		string(r.Location.LocationType), summary.Approved, summary.Total, string(r.RejectionReason),
		r.ReviewedBy, r.ReviewedAt, r.CreatedAt,
	}
}

// Certificate renders the PDF certificate of an approved record
func (s *Service) Certificate(ctx context.Context, id string) (*File, error) {
	rec, err := s.load(ctx, id, "Verification not found")
	if err != nil {
		return nil, err
	}
	if rec.Status != StatusApproved {
		return nil, invalidStateError("Certificate is only available for approved requests. Request is %s", rec.Status)
	}

	data := export.CertificateData{
		RequestID:    rec.RequestID,
		FullName:     rec.FullName,
		Phone:        rec.Phone,
		CropName:     rec.CropName,
		Variety:      rec.Variety,
		Quantity:     rec.Quantity,
		Village:      rec.Village,
		Taluk:        rec.Taluk,
		District:     rec.District,
		LocationType: string(rec.Location.LocationType),
		Latitude:     rec.Location.Coordinates[1],
		Longitude:    rec.Location.Coordinates[0],
		ReviewedBy:   rec.ReviewedBy,
		IssuedAt:     s.now(),
	}
	if rec.ReviewedAt != nil {
		data.ReviewedAt = *rec.ReviewedAt
	}

	pdf, err := s.certificates.Generate(data)
	if err != nil {
		return nil, internalError("Failed to generate certificate", err)
	}

	name := rec.RequestID
	if name == "" {
		name = rec.ID
	}
	return &File{
		Name:        "certificate_" + strings.ToLower(name) + ".pdf",
		ContentType: "application/pdf",
		Data:        pdf,
	}, nil
}
