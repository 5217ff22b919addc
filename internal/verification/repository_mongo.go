package verification

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	mongoIndexRequestID  = "uniq_request_id"
	mongoIndexActiveUser = "uniq_active_user"
)

// Documents keep the field names of the existing farm_verifications
// collection so legacy records decode unchanged. blockingUserId is set only
// while a record is pending or approved and backs the one-active-record
// unique index.
type mongoPhoto struct {
	ID     interface{} `bson:"_id"`
	URL    string      `bson:"url"`
	Status string      `bson:"status"`
}

type mongoLocation struct {
	Type         string    `bson:"type"`
	Coordinates  []float64 `bson:"coordinates"`
	LocationType string    `bson:"locationType,omitempty"`
}

type mongoRecord struct {
	ID              interface{}   `bson:"_id"`
	RequestID       string        `bson:"requestId,omitempty"`
	UserID          string        `bson:"userId"`
	CropID          string        `bson:"cropId"`
	CropName        string        `bson:"cropName"`
	FullName        string        `bson:"fullName,omitempty"`
	Phone           string        `bson:"phone,omitempty"`
	Village         string        `bson:"village,omitempty"`
	Taluk           string        `bson:"taluk,omitempty"`
	District        string        `bson:"district,omitempty"`
	Quantity        string        `bson:"quantity,omitempty"`
	Variety         string        `bson:"variety,omitempty"`
	Moisture        string        `bson:"moisture,omitempty"`
	WillDry         string        `bson:"willDry,omitempty"`
	Photos          []mongoPhoto  `bson:"photos"`
	Location        mongoLocation `bson:"location"`
	Status          string        `bson:"status"`
	RejectionReason string        `bson:"rejectionReason,omitempty"`
	RejectionNotes  string        `bson:"rejectionNotes,omitempty"`
	ReviewedAt      *time.Time    `bson:"reviewedAt,omitempty"`
	ReviewedBy      string        `bson:"reviewedBy,omitempty"`
	BlockingUserID  string        `bson:"blockingUserId,omitempty"`
	CreatedAt       time.Time     `bson:"createdAt"`
	UpdatedAt       time.Time     `bson:"updatedAt"`
}

// MongoRepository stores records in a MongoDB collection
type MongoRepository struct {
	coll *mongo.Collection
}

func NewMongoRepository(db *mongo.Database, collection string) *MongoRepository {
	return &MongoRepository{coll: db.Collection(collection)}
}

// EnsureIndexes creates the uniqueness guards and query indexes
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "requestId", Value: 1}},
			Options: options.Index().
				SetName(mongoIndexRequestID).
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"requestId": bson.M{"$type": "string"}}),
		},
		{
			Keys: bson.D{{Key: "blockingUserId", Value: 1}},
			Options: options.Index().
				SetName(mongoIndexActiveUser).
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"blockingUserId": bson.M{"$type": "string"}}),
		},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "cropId", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
	})
	return err
}

func (r *MongoRepository) Create(ctx context.Context, rec *Record) error {
	_, err := r.coll.InsertOne(ctx, toMongoRecord(rec))
	return classifyMongoWriteError(err)
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (*Record, error) {
	var doc mongoRecord
	err := r.coll.FindOne(ctx, bson.M{"_id": mongoID(id)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toRecord(), nil
}

func (r *MongoRepository) LatestByUser(ctx context.Context, userID string) (*Record, error) {
	var doc mongoRecord
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	err := r.coll.FindOne(ctx, bson.M{"userId": userID}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.toRecord(), nil
}

func (r *MongoRepository) ListByUser(ctx context.Context, userID string) ([]*Record, error) {
	return r.find(ctx, bson.M{"userId": userID}, newestFirst())
}

func (r *MongoRepository) ListByCrop(ctx context.Context, cropID string) ([]*Record, error) {
	return r.find(ctx, bson.M{"cropId": cropID}, newestFirst())
}

func (r *MongoRepository) List(ctx context.Context, filter ListFilter, page Page) ([]*Record, int64, error) {
	query := mongoFilter(filter)

	total, err := r.coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	opts := newestFirst().SetSkip(int64(page.Offset())).SetLimit(int64(page.Limit))
	records, err := r.find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (r *MongoRepository) RequestIDExists(ctx context.Context, requestID string) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"requestId": requestID}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *MongoRepository) UpdatePhotos(ctx context.Context, id string, photos []Photo, updatedAt time.Time) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": mongoID(id), "status": string(StatusPending)},
		bson.M{"$set": bson.M{"photos": toMongoPhotos(photos), "updatedAt": updatedAt}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return r.missOrConflict(ctx, id)
	}
	return nil
}

func (r *MongoRepository) Finalize(ctx context.Context, rec *Record) error {
	set := bson.M{
		"status":     string(rec.Status),
		"reviewedAt": rec.ReviewedAt,
		"updatedAt":  rec.UpdatedAt,
	}
	if rec.ReviewedBy != "" {
		set["reviewedBy"] = rec.ReviewedBy
	}
	update := bson.M{"$set": set}
	filter := bson.M{"_id": mongoID(rec.ID), "status": string(StatusPending)}

	switch rec.Status {
	case StatusRejected:
		set["rejectionReason"] = string(rec.RejectionReason)
		if rec.RejectionNotes != "" {
			set["rejectionNotes"] = rec.RejectionNotes
		}
		update["$unset"] = bson.M{"blockingUserId": ""}
	case StatusApproved:
		if rec.Location.LocationType != "" {
			set["location.locationType"] = string(rec.Location.LocationType)
		}
		set["blockingUserId"] = rec.UserID
		filter["photos.status"] = string(PhotoApproved)
	}

	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return classifyMongoWriteError(err)
	}
	if res.MatchedCount == 0 {
		return r.finalizeMiss(ctx, rec)
	}
	return nil
}

// finalizeMiss explains why a conditional finalize matched nothing
func (r *MongoRepository) finalizeMiss(ctx context.Context, rec *Record) error {
	stored, err := r.GetByID(ctx, rec.ID)
	if err != nil {
		return err
	}
	return finalizeMissReason(stored, rec.Status)
}

func (r *MongoRepository) UpdateLocationType(ctx context.Context, id string, locationType LocationType, updatedAt time.Time) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": mongoID(id)},
		bson.M{"$set": bson.M{"location.locationType": string(locationType), "updatedAt": updatedAt}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *MongoRepository) ListMissingRequestID(ctx context.Context, limit int) ([]*Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.find(ctx, missingRequestID(), opts)
}

func (r *MongoRepository) SetRequestID(ctx context.Context, id, requestID string) error {
	filter := missingRequestID()
	filter["_id"] = mongoID(id)

	res, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"requestId": requestID}})
	if err != nil {
		return classifyMongoWriteError(err)
	}
	if res.MatchedCount == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrStatusConflict
	}
	return nil
}

func (r *MongoRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*Record, error) {
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []mongoRecord
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]*Record, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toRecord())
	}
	return out, nil
}

// missOrConflict tells a missing record apart from one that left pending
func (r *MongoRepository) missOrConflict(ctx context.Context, id string) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrStatusConflict
}

func newestFirst() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
}

func missingRequestID() bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"requestId": bson.M{"$exists": false}},
		bson.M{"requestId": nil},
		bson.M{"requestId": ""},
	}}
}

func mongoFilter(f ListFilter) bson.M {
	q := bson.M{}
	if f.Status != nil {
		q["status"] = string(*f.Status)
	}
	if f.UserID != nil {
		q["userId"] = *f.UserID
	}
	for field, v := range map[string]*string{
		"phone":    f.Phone,
		"fullName": f.FullName,
		"cropName": f.CropName,
		"village":  f.Village,
		"taluk":    f.Taluk,
		"district": f.District,
	} {
		if v != nil {
			q[field] = primitive.Regex{Pattern: regexp.QuoteMeta(*v), Options: "i"}
		}
	}
	if f.From != nil || f.To != nil {
		created := bson.M{}
		if f.From != nil {
			created["$gte"] = *f.From
		}
		if f.To != nil {
			created["$lte"] = *f.To
		}
		q["createdAt"] = created
	}
	return q
}

func classifyMongoWriteError(err error) error {
	if err == nil || !mongo.IsDuplicateKeyError(err) {
		return err
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, mongoIndexActiveUser):
		return ErrActiveRecordExists
	case strings.Contains(msg, mongoIndexRequestID):
		return ErrDuplicateRequestID
	}
	return err
}

// mongoID keeps legacy ObjectID keys addressable by their hex form
func mongoID(id string) interface{} {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return oid
	}
	return id
}

func idString(v interface{}) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	default:
		return ""
	}
}

func toMongoPhotos(photos []Photo) []mongoPhoto {
	out := make([]mongoPhoto, len(photos))
	for i, p := range photos {
		out[i] = mongoPhoto{ID: mongoID(p.ID), URL: p.URL, Status: string(p.Status)}
	}
	return out
}

func toMongoRecord(rec *Record) mongoRecord {
	doc := mongoRecord{
		ID:        rec.ID,
		RequestID: rec.RequestID,
		UserID:    rec.UserID,
		CropID:    rec.CropID,
		CropName:  rec.CropName,
		FullName:  rec.FullName,
		Phone:     rec.Phone,
		Village:   rec.Village,
		Taluk:     rec.Taluk,
		District:  rec.District,
		Quantity:  rec.Quantity,
		Variety:   rec.Variety,
		Moisture:  rec.Moisture,
		WillDry:   rec.WillDry,
		Photos:    toMongoPhotos(rec.Photos),
		Location: mongoLocation{
			Type:         "Point",
			Coordinates:  []float64{rec.Location.Coordinates[0], rec.Location.Coordinates[1]},
			LocationType: string(rec.Location.LocationType),
		},
		Status:          string(rec.Status),
		RejectionReason: string(rec.RejectionReason),
		RejectionNotes:  rec.RejectionNotes,
		ReviewedAt:      rec.ReviewedAt,
		ReviewedBy:      rec.ReviewedBy,
		CreatedAt:       rec.CreatedAt,
		UpdatedAt:       rec.UpdatedAt,
	}
	if rec.Status.Blocking() {
		doc.BlockingUserID = rec.UserID
	}
	return doc
}

func (d *mongoRecord) toRecord() *Record {
	rec := &Record{
		ID:              idString(d.ID),
		RequestID:       d.RequestID,
		UserID:          d.UserID,
		CropID:          d.CropID,
		CropName:        d.CropName,
		FullName:        d.FullName,
		Phone:           d.Phone,
		Village:         d.Village,
		Taluk:           d.Taluk,
		District:        d.District,
		Quantity:        d.Quantity,
		Variety:         d.Variety,
		Moisture:        d.Moisture,
		WillDry:         d.WillDry,
		Photos:          make([]Photo, 0, len(d.Photos)),
		Status:          Status(d.Status),
		RejectionReason: RejectionReason(d.RejectionReason),
		RejectionNotes:  d.RejectionNotes,
		ReviewedAt:      d.ReviewedAt,
		ReviewedBy:      d.ReviewedBy,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
	for _, p := range d.Photos {
		rec.Photos = append(rec.Photos, Photo{ID: idString(p.ID), URL: p.URL, Status: PhotoStatus(p.Status)})
	}
	rec.Location = Location{Type: "Point", LocationType: LocationType(d.Location.LocationType)}
	if len(d.Location.Coordinates) == 2 {
		rec.Location.Coordinates = [2]float64{d.Location.Coordinates[0], d.Location.Coordinates[1]}
	}
	return rec
}
