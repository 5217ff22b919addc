package verification

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	pgConstraintRequestID  = "uniq_verifications_request_id"
	pgConstraintActiveUser = "uniq_verifications_active_user"
	pgUniqueViolation      = "23505"
)

type recordRow struct {
	ID              string         `gorm:"primaryKey;type:varchar(64)"`
	RequestID       *string        `gorm:"type:varchar(32);uniqueIndex:uniq_verifications_request_id"`
	UserID          string         `gorm:"type:varchar(128);not null;index:idx_verifications_user_created,priority:1"`
	CropID          string         `gorm:"type:varchar(128);not null;index"`
	CropName        string         `gorm:"not null"`
	FullName        string
	Phone           string
	Village         string
	Taluk           string
	District        string
	Quantity        string
	Variety         string
	Moisture        string
	WillDry         string
	Photos          datatypes.JSON `gorm:"type:jsonb;not null"`
	Longitude       float64
	Latitude        float64
	LocationType    *string `gorm:"type:varchar(16)"`
	Status          string  `gorm:"type:varchar(16);not null;index"`
	RejectionReason *string `gorm:"type:varchar(64)"`
	RejectionNotes  *string
	ReviewedAt      *time.Time
	ReviewedBy      *string
	CreatedAt       time.Time `gorm:"not null;index:idx_verifications_user_created,priority:2,sort:desc"`
	UpdatedAt       time.Time
}

func (recordRow) TableName() string { return "verifications" }

// PostgresRepository stores records through gorm
type PostgresRepository struct {
	db *gorm.DB
}

func NewPostgresRepository(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Migrate creates the table and the one-active-record partial index
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	db := r.db.WithContext(ctx)
	if err := db.AutoMigrate(&recordRow{}); err != nil {
		return err
	}
	return db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ` + pgConstraintActiveUser +
		` ON verifications (user_id) WHERE status IN ('pending', 'approved')`).Error
}

func (r *PostgresRepository) Create(ctx context.Context, rec *Record) error {
	row, err := toRow(rec)
	if err != nil {
		return err
	}
	return classifyPgError(r.db.WithContext(ctx).Create(row).Error)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Record, error) {
	var row recordRow
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toRecord()
}

func (r *PostgresRepository) LatestByUser(ctx context.Context, userID string) (*Record, error) {
	var row recordRow
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toRecord()
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*Record, error) {
	return r.find(r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC"))
}

func (r *PostgresRepository) ListByCrop(ctx context.Context, cropID string) ([]*Record, error) {
	return r.find(r.db.WithContext(ctx).Where("crop_id = ?", cropID).Order("created_at DESC"))
}

func (r *PostgresRepository) List(ctx context.Context, filter ListFilter, page Page) ([]*Record, int64, error) {
	query := applyPgFilter(r.db.WithContext(ctx).Model(&recordRow{}), filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	records, err := r.find(query.Order("created_at DESC").Order("id DESC").Offset(page.Offset()).Limit(page.Limit))
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (r *PostgresRepository) RequestIDExists(ctx context.Context, requestID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&recordRow{}).Where("request_id = ?", requestID).Limit(1).Count(&n).Error
	return n > 0, err
}

func (r *PostgresRepository) UpdatePhotos(ctx context.Context, id string, photos []Photo, updatedAt time.Time) error {
	raw, err := json.Marshal(photos)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Model(&recordRow{}).
		Where("id = ? AND status = ?", id, string(StatusPending)).
		Updates(map[string]interface{}{"photos": datatypes.JSON(raw), "updated_at": updatedAt})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.missOrConflict(ctx, id)
	}
	return nil
}

func (r *PostgresRepository) Finalize(ctx context.Context, rec *Record) error {
	updates := map[string]interface{}{
		"status":      string(rec.Status),
		"reviewed_at": rec.ReviewedAt,
		"updated_at":  rec.UpdatedAt,
	}
	if rec.ReviewedBy != "" {
		updates["reviewed_by"] = rec.ReviewedBy
	}
	switch rec.Status {
	case StatusRejected:
		updates["rejection_reason"] = string(rec.RejectionReason)
		if rec.RejectionNotes != "" {
			updates["rejection_notes"] = rec.RejectionNotes
		}
	case StatusApproved:
		if rec.Location.LocationType != "" {
			updates["location_type"] = string(rec.Location.LocationType)
		}
	}

	query := r.db.WithContext(ctx).Model(&recordRow{}).
		Where("id = ? AND status = ?", rec.ID, string(StatusPending))
	if rec.Status == StatusApproved {
		query = query.Where("photos @> ?::jsonb", `[{"status":"approved"}]`)
	}

	res := query.Updates(updates)
	if res.Error != nil {
		return classifyPgError(res.Error)
	}
	if res.RowsAffected == 0 {
		stored, err := r.GetByID(ctx, rec.ID)
		if err != nil {
			return err
		}
		return finalizeMissReason(stored, rec.Status)
	}
	return nil
}

func (r *PostgresRepository) UpdateLocationType(ctx context.Context, id string, locationType LocationType, updatedAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&recordRow{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"location_type": string(locationType), "updated_at": updatedAt})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *PostgresRepository) ListMissingRequestID(ctx context.Context, limit int) ([]*Record, error) {
	query := r.db.WithContext(ctx).
		Where("request_id IS NULL OR request_id = ''").
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	return r.find(query)
}

func (r *PostgresRepository) SetRequestID(ctx context.Context, id, requestID string) error {
	res := r.db.WithContext(ctx).Model(&recordRow{}).
		Where("id = ? AND (request_id IS NULL OR request_id = '')", id).
		Update("request_id", requestID)
	if res.Error != nil {
		return classifyPgError(res.Error)
	}
	if res.RowsAffected == 0 {
		return r.missOrConflict(ctx, id)
	}
	return nil
}

func (r *PostgresRepository) find(query *gorm.DB) ([]*Record, error) {
	var rows []recordRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*Record, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].toRecord()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *PostgresRepository) missOrConflict(ctx context.Context, id string) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrStatusConflict
}

func applyPgFilter(query *gorm.DB, f ListFilter) *gorm.DB {
	if f.Status != nil {
		query = query.Where("status = ?", string(*f.Status))
	}
	if f.UserID != nil {
		query = query.Where("user_id = ?", *f.UserID)
	}
	for _, c := range []struct {
		column string
		value  *string
	}{
		{"phone", f.Phone},
		{"full_name", f.FullName},
		{"crop_name", f.CropName},
		{"village", f.Village},
		{"taluk", f.Taluk},
		{"district", f.District},
	} {
		if c.value != nil {
			query = query.Where(c.column+" ILIKE ?", "%"+escapeLike(*c.value)+"%")
		}
	}
	if f.From != nil {
		query = query.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		query = query.Where("created_at <= ?", *f.To)
	}
	return query
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func classifyPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return err
	}
	switch pgErr.ConstraintName {
	case pgConstraintActiveUser:
		return ErrActiveRecordExists
	case pgConstraintRequestID:
		return ErrDuplicateRequestID
	}
	return err
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func toRow(rec *Record) (*recordRow, error) {
	photos, err := json.Marshal(rec.Photos)
	if err != nil {
		return nil, err
	}
	return &recordRow{
		ID:              rec.ID,
		RequestID:       optional(rec.RequestID),
		UserID:          rec.UserID,
		CropID:          rec.CropID,
		CropName:        rec.CropName,
		FullName:        rec.FullName,
		Phone:           rec.Phone,
		Village:         rec.Village,
		Taluk:           rec.Taluk,
		District:        rec.District,
		Quantity:        rec.Quantity,
		Variety:         rec.Variety,
		Moisture:        rec.Moisture,
		WillDry:         rec.WillDry,
		Photos:          datatypes.JSON(photos),
		Longitude:       rec.Location.Coordinates[0],
		Latitude:        rec.Location.Coordinates[1],
		LocationType:    optional(string(rec.Location.LocationType)),
		Status:          string(rec.Status),
		RejectionReason: optional(string(rec.RejectionReason)),
		RejectionNotes:  optional(rec.RejectionNotes),
		ReviewedAt:      rec.ReviewedAt,
		ReviewedBy:      optional(rec.ReviewedBy),
		CreatedAt:       rec.CreatedAt,
		UpdatedAt:       rec.UpdatedAt,
	}, nil
}

func (row *recordRow) toRecord() (*Record, error) {
	var photos []Photo
	if len(row.Photos) > 0 {
		if err := json.Unmarshal(row.Photos, &photos); err != nil {
			return nil, err
		}
	}
	if photos == nil {
		photos = []Photo{}
	}
	return &Record{
		ID:        row.ID,
		RequestID: deref(row.RequestID),
		UserID:    row.UserID,
		CropID:    row.CropID,
		CropName:  row.CropName,
		FullName:  row.FullName,
		Phone:     row.Phone,
		Village:   row.Village,
		Taluk:     row.Taluk,
		District:  row.District,
		Quantity:  row.Quantity,
		Variety:   row.Variety,
		Moisture:  row.Moisture,
		WillDry:   row.WillDry,
		Photos:    photos,
		Location: Location{
			Type:         "Point",
			Coordinates:  [2]float64{row.Longitude, row.Latitude},
			LocationType: LocationType(deref(row.LocationType)),
		},
		Status:          Status(row.Status),
		RejectionReason: RejectionReason(deref(row.RejectionReason)),
		RejectionNotes:  deref(row.RejectionNotes),
		ReviewedAt:      row.ReviewedAt,
		ReviewedBy:      deref(row.ReviewedBy),
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}, nil
}
