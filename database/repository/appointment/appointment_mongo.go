package appointmentRepo

import (
	"context"
	"fmt"
	"time"

	"bookline/database"
	"bookline/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// MongoAppointmentRepo implements AppointmentRepository using MongoDB.
type MongoAppointmentRepo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoAppointmentRepo creates a new AppointmentRepository backed by MongoDB.
func NewMongoAppointmentRepo() AppointmentRepository {
	repo := &MongoAppointmentRepo{
		client: database.MongoClient,
		coll:   database.Collection("appointments"),
	}
	if err := repo.ensureIndexes(); err != nil {
		fmt.Printf("failed to create appointment indexes: %v\n", err)
	}
	return repo
}

func (r *MongoAppointmentRepo) ensureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "resourceId", Value: 1}, {Key: "start", Value: 1}}},
		{Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "customerPhone", Value: 1}, {Key: "start", Value: 1}}},
	}
	_, err := r.coll.Indexes().CreateMany(ctx, indexModels)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func overlapFilter(tenantID, resourceID string, from, to time.Time) bson.M {
	return bson.M{
		"tenantId":   tenantID,
		"resourceId": resourceID,
		"status":     bson.M{"$in": models.OccupyingStatuses},
		"start":      bson.M{"$lt": to},
		"end":        bson.M{"$gt": from},
	}
}

// InsertIfFree runs the overlap check and the insert inside a single
// transaction with majority read/write concern, so two concurrent attempts
// for overlapping intervals cannot both commit.
func (r *MongoAppointmentRepo) InsertIfFree(ctx context.Context, appt *models.Appointment, buffer time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	session, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start mongo session: %w", err)
	}
	defer session.EndSession(ctx)

	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		filter := overlapFilter(appt.TenantID, appt.ResourceID,
			appt.Start.Add(-buffer), appt.End.Add(buffer))
		count, err := r.coll.CountDocuments(sc, filter)
		if err != nil {
			return nil, fmt.Errorf("overlap check failed: %w", err)
		}
		if count > 0 {
			return nil, ErrSlotConflict
		}
		if _, err := r.coll.InsertOne(sc, appt); err != nil {
			return nil, fmt.Errorf("failed to insert appointment: %w", err)
		}
		return nil, nil
	}, txnOpts)
	return err
}

func (r *MongoAppointmentRepo) ListOccupying(ctx context.Context, tenantID, resourceID string, from, to time.Time) ([]models.Appointment, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cursor, err := r.coll.Find(ctx, overlapFilter(tenantID, resourceID, from, to),
		options.Find().SetSort(bson.D{{Key: "start", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments for resource %s: %w", resourceID, err)
	}
	defer cursor.Close(ctx)

	var appts []models.Appointment
	if err := cursor.All(ctx, &appts); err != nil {
		return nil, fmt.Errorf("failed to decode appointments: %w", err)
	}
	return appts, nil
}

func (r *MongoAppointmentRepo) ListUpcomingByCustomer(ctx context.Context, tenantID, phone string, now time.Time) ([]models.Appointment, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"tenantId":      tenantID,
		"customerPhone": phone,
		"status":        bson.M{"$in": models.OccupyingStatuses},
		"start":         bson.M{"$gte": now},
	}
	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "start", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments for customer %s: %w", phone, err)
	}
	defer cursor.Close(ctx)

	var appts []models.Appointment
	if err := cursor.All(ctx, &appts); err != nil {
		return nil, fmt.Errorf("failed to decode appointments: %w", err)
	}
	return appts, nil
}

func (r *MongoAppointmentRepo) GetByID(ctx context.Context, tenantID, apptID string) (*models.Appointment, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var appt models.Appointment
	err := r.coll.FindOne(ctx, bson.M{"tenantId": tenantID, "id": apptID}).Decode(&appt)
	if err == mongo.ErrNoDocuments {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch appointment %s: %w", apptID, err)
	}
	return &appt, nil
}

func (r *MongoAppointmentRepo) UpdateStatus(ctx context.Context, tenantID, apptID, status string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{"$set": bson.M{"status": status, "updatedAt": time.Now()}}
	res, err := r.coll.UpdateOne(ctx, bson.M{"tenantId": tenantID, "id": apptID}, update)
	if err != nil {
		return fmt.Errorf("failed to update appointment %s status: %w", apptID, err)
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (r *MongoAppointmentRepo) SetPaymentLink(ctx context.Context, tenantID, apptID, link string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{"$set": bson.M{"paymentLink": link, "updatedAt": time.Now()}}
	res, err := r.coll.UpdateOne(ctx, bson.M{"tenantId": tenantID, "id": apptID}, update)
	if err != nil {
		return fmt.Errorf("failed to set payment link on appointment %s: %w", apptID, err)
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
