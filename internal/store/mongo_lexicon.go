package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/developia-II/slang-translator-backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	LexiconCollection = "lexicon"
	MetaCollection    = "meta"

	lexiconMetaID = "lexicon"
)

// MongoLexicon stores entries keyed by normalized term. The store-wide version lives in
// a single meta document and is bumped with $inc after every write lands.
type MongoLexicon struct {
	col  *mongo.Collection
	meta *mongo.Collection
}

func NewMongoLexicon(db *mongo.Database) *MongoLexicon {
	return &MongoLexicon{
		col:  db.Collection(LexiconCollection),
		meta: db.Collection(MetaCollection),
	}
}

func (s *MongoLexicon) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "surfaces", Value: 1}, {Key: "active", Value: 1}}},
		{Keys: bson.D{{Key: "active", Value: 1}, {Key: "momentum", Value: -1}}},
	})
	return err
}

func (s *MongoLexicon) Get(ctx context.Context, term string) (*models.LexiconEntry, error) {
	var e models.LexiconEntry
	err := s.col.FindOne(ctx, bson.M{"_id": models.NormalizeTerm(term)}).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("lexicon entry %q: %w", term, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find lexicon entry: %w", err)
	}
	return &e, nil
}

func (s *MongoLexicon) FindActiveBySurface(ctx context.Context, surface string) (*models.LexiconEntry, error) {
	var e models.LexiconEntry
	filter := bson.M{"surfaces": models.NormalizeTerm(surface), "active": true}
	err := s.col.FindOne(ctx, filter).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("lexicon surface %q: %w", surface, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find lexicon surface: %w", err)
	}
	return &e, nil
}

// ListActive reads the version before the entries, so a concurrent write can only make
// the result newer than the version it reports, never older.
func (s *MongoLexicon) ListActive(ctx context.Context) ([]models.LexiconEntry, uint64, error) {
	version, err := s.Version(ctx)
	if err != nil {
		return nil, 0, err
	}

	cursor, err := s.col.Find(ctx, bson.M{"active": true}, options.Find().SetSort(bson.M{"_id": 1}))
	if err != nil {
		return nil, 0, fmt.Errorf("list lexicon: %w", err)
	}
	defer cursor.Close(ctx)

	entries := []models.LexiconEntry{}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, 0, fmt.Errorf("decode lexicon: %w", err)
	}
	return entries, version, nil
}

func (s *MongoLexicon) Upsert(ctx context.Context, e models.LexiconEntry) (uint64, error) {
	e = e.Clone()
	e.Refresh()
	if e.Term == "" {
		return 0, fmt.Errorf("%w: empty lexicon term", models.ErrInvalidInput)
	}

	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now()
	}

	version, err := writeThenBump(ctx, func(ctx context.Context) error {
		_, err := s.col.ReplaceOne(ctx, bson.M{"_id": e.Term}, e, options.Replace().SetUpsert(true))
		if err != nil {
			return fmt.Errorf("upsert lexicon entry %q: %w", e.Term, err)
		}
		return nil
	}, s.bumpVersion)
	if err != nil {
		return 0, err
	}
	if err := s.stampVersion(ctx, bson.M{"_id": e.Term}, version); err != nil {
		return 0, err
	}
	return version, nil
}

// DecayMomentum rewrites every active entry in one bulk write so the derived quiz fields
// stay in step with the new momentum.
func (s *MongoLexicon) DecayMomentum(ctx context.Context, factor float64) (int64, uint64, error) {
	cursor, err := s.col.Find(ctx, bson.M{"active": true, "momentum": bson.M{"$gt": 0}})
	if err != nil {
		return 0, 0, fmt.Errorf("list lexicon for decay: %w", err)
	}
	var entries []models.LexiconEntry
	err = cursor.All(ctx, &entries)
	cursor.Close(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("decode lexicon for decay: %w", err)
	}
	if len(entries) == 0 {
		v, err := s.Version(ctx)
		return 0, v, err
	}

	writes := make([]mongo.WriteModel, 0, len(entries))
	terms := make([]string, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		e.Momentum *= factor
		e.Refresh()
		writes = append(writes, mongo.NewReplaceOneModel().SetFilter(bson.M{"_id": e.Term}).SetReplacement(e))
		terms = append(terms, e.Term)
	}

	var modified int64
	version, err := writeThenBump(ctx, func(ctx context.Context) error {
		res, err := s.col.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
		if err != nil {
			return fmt.Errorf("decay momentum: %w", err)
		}
		modified = res.ModifiedCount
		return nil
	}, s.bumpVersion)
	if err != nil {
		return 0, 0, err
	}
	if err := s.stampVersion(ctx, bson.M{"_id": bson.M{"$in": terms}}, version); err != nil {
		return 0, 0, err
	}
	return modified, version, nil
}

func (s *MongoLexicon) Version(ctx context.Context) (uint64, error) {
	var doc struct {
		Version int64 `bson:"version"`
	}
	err := s.meta.FindOne(ctx, bson.M{"_id": lexiconMetaID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read lexicon version: %w", err)
	}
	return uint64(doc.Version), nil
}

func (s *MongoLexicon) CountActive(ctx context.Context) (int64, error) {
	return s.col.CountDocuments(ctx, bson.M{"active": true})
}

// stampVersion records version on the entries matched by filter. $max keeps a newer
// stamp from a concurrent writer.
func (s *MongoLexicon) stampVersion(ctx context.Context, filter bson.M, version uint64) error {
	_, err := s.col.UpdateMany(ctx, filter, bson.M{"$max": bson.M{"version": int64(version)}})
	if err != nil {
		return fmt.Errorf("stamp lexicon version: %w", err)
	}
	return nil
}

func (s *MongoLexicon) bumpVersion(ctx context.Context) (uint64, error) {
	var doc struct {
		Version int64 `bson:"version"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := s.meta.FindOneAndUpdate(ctx,
		bson.M{"_id": lexiconMetaID},
		bson.M{"$inc": bson.M{"version": int64(1)}},
		opts,
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("bump lexicon version: %w", err)
	}
	return uint64(doc.Version), nil
}
