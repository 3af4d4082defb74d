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

const SubmissionCollection = "submissions"

type MongoSubmissions struct {
	col *mongo.Collection
}

func NewMongoSubmissions(db *mongo.Database) *MongoSubmissions {
	return &MongoSubmissions{col: db.Collection(SubmissionCollection)}
}

// EnsureIndexes creates the unique sparse index on openTerm that serializes concurrent
// submissions of one term, plus the listing indexes.
func (s *MongoSubmissions) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "openTerm", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "updatedAt", Value: 1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	return err
}

func (s *MongoSubmissions) Create(ctx context.Context, rec *models.SubmissionRecord) error {
	_, err := s.col.InsertOne(ctx, rec)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("term %q already under review: %w", rec.NormalizedTerm, models.ErrDuplicateSubmission)
	}
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (s *MongoSubmissions) Get(ctx context.Context, id string) (*models.SubmissionRecord, error) {
	var rec models.SubmissionRecord
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("submission %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find submission: %w", err)
	}
	return &rec, nil
}

func (s *MongoSubmissions) FindOpenByTerm(ctx context.Context, normalizedTerm string) (*models.SubmissionRecord, error) {
	var rec models.SubmissionRecord
	err := s.col.FindOne(ctx, bson.M{"openTerm": normalizedTerm}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("open submission for %q: %w", normalizedTerm, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find open submission: %w", err)
	}
	return &rec, nil
}

func (s *MongoSubmissions) UpdateStatus(ctx context.Context, id string, u models.StatusUpdate) (*models.SubmissionRecord, error) {
	if err := checkTransition(u); err != nil {
		return nil, err
	}

	update := bson.M{"$set": statusSet(u)}
	if u.To.IsTerminal() {
		update["$unset"] = bson.M{"openTerm": ""}
	}

	var rec models.SubmissionRecord
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := s.col.FindOneAndUpdate(ctx, bson.M{"_id": id, "status": u.From}, update, opts).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		current, gerr := s.Get(ctx, id)
		if gerr != nil {
			return nil, gerr
		}
		return nil, fmt.Errorf("submission %s is %s: %w", id, current.Status, transitionError(u.From, u.To))
	}
	if err != nil {
		return nil, fmt.Errorf("update submission status: %w", err)
	}
	return &rec, nil
}

func statusSet(u models.StatusUpdate) bson.M {
	set := bson.M{"status": u.To, "updatedAt": u.At}
	if u.LLMValidationStatus != "" {
		set["llmValidationStatus"] = u.LLMValidationStatus
	}
	if u.LLMConfidenceScore != nil {
		set["llmConfidenceScore"] = *u.LLMConfidenceScore
	}
	if u.LLMUsageScore != nil {
		set["llmUsageScore"] = *u.LLMUsageScore
	}
	if u.Evidence != nil {
		set["evidence"] = u.Evidence
	}
	if u.ApprovalType != "" {
		set["approvalType"] = u.ApprovalType
	}
	if u.ReviewedBy != "" {
		set["reviewedBy"] = u.ReviewedBy
	}
	if u.ReviewedAt != nil {
		set["reviewedAt"] = *u.ReviewedAt
	}
	return set
}

func (s *MongoSubmissions) AddUpvote(ctx context.Context, id, userID string, at time.Time) (*models.SubmissionRecord, error) {
	filter := bson.M{
		"_id":    id,
		"status": models.StatusPendingVote,
		"voters": bson.M{"$ne": userID},
	}
	update := bson.M{
		"$inc":  bson.M{"upvotes": 1},
		"$push": bson.M{"voters": userID},
		"$set":  bson.M{"updatedAt": at},
	}

	var rec models.SubmissionRecord
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := s.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&rec)
	if err == nil {
		return &rec, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("upvote submission: %w", err)
	}

	// Work out which condition failed.
	current, gerr := s.Get(ctx, id)
	if gerr != nil {
		return nil, gerr
	}
	if current.Status != models.StatusPendingVote {
		return nil, fmt.Errorf("submission %s is %s: %w", id, current.Status, models.ErrInvalidTransition)
	}
	return nil, fmt.Errorf("submission %s: %w", id, models.ErrAlreadyVoted)
}

func (s *MongoSubmissions) List(ctx context.Context, opts ListOptions) ([]models.SubmissionRecord, int64, error) {
	opts = opts.normalized()

	filter := bson.M{}
	if opts.Status != "" {
		filter["status"] = opts.Status
	}
	if opts.UserID != "" {
		filter["userId"] = opts.UserID
	}

	total, err := s.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count submissions: %w", err)
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(opts.skip())).
		SetLimit(int64(opts.Limit))

	cursor, err := s.col.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, 0, fmt.Errorf("list submissions: %w", err)
	}
	defer cursor.Close(ctx)

	records := []models.SubmissionRecord{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, 0, fmt.Errorf("decode submissions: %w", err)
	}
	return records, total, nil
}

func (s *MongoSubmissions) CountByStatus(ctx context.Context) (map[models.SubmissionStatus]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$status"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cursor, err := s.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate submission status: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status models.SubmissionStatus `bson:"_id"`
		Count  int64                   `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode submission status: %w", err)
	}

	counts := make(map[models.SubmissionStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

func (s *MongoSubmissions) ListStuck(ctx context.Context, cutoff time.Time) ([]models.SubmissionRecord, error) {
	filter := bson.M{
		"status":    bson.M{"$in": []models.SubmissionStatus{models.StatusSubmitted, models.StatusValidating}},
		"updatedAt": bson.M{"$lt": cutoff},
	}
	cursor, err := s.col.Find(ctx, filter, options.Find().SetSort(bson.M{"updatedAt": 1}))
	if err != nil {
		return nil, fmt.Errorf("list stuck submissions: %w", err)
	}
	defer cursor.Close(ctx)

	var records []models.SubmissionRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode stuck submissions: %w", err)
	}
	return records, nil
}
