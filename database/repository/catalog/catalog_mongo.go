package catalogRepo

import (
	"context"
	"fmt"
	"time"

	"bookline/database"
	"bookline/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoCatalogRepo implements CatalogRepository using MongoDB.
type MongoCatalogRepo struct {
	branches  *mongo.Collection
	services  *mongo.Collection
	resources *mongo.Collection
	hours     *mongo.Collection
	timeOff   *mongo.Collection
	plans     *mongo.Collection
}

// NewMongoCatalogRepo creates a new CatalogRepository backed by MongoDB.
func NewMongoCatalogRepo() CatalogRepository {
	return &MongoCatalogRepo{
		branches:  database.Collection("branches"),
		services:  database.Collection("services"),
		resources: database.Collection("resources"),
		hours:     database.Collection("working_hours"),
		timeOff:   database.Collection("time_off"),
		plans:     database.Collection("platform_plans"),
	}
}

func newContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, 5*time.Second)
}

func (r *MongoCatalogRepo) ListBranches(ctx context.Context, tenantID string) ([]models.Branch, error) {
	ctx, cancel := newContext(ctx)
	defer cancel()

	cursor, err := r.branches.Find(ctx, bson.M{"tenantId": tenantID, "active": true},
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list branches for tenant %s: %w", tenantID, err)
	}
	defer cursor.Close(ctx)

	var branches []models.Branch
	if err := cursor.All(ctx, &branches); err != nil {
		return nil, fmt.Errorf("failed to decode branches: %w", err)
	}
	return branches, nil
}

func (r *MongoCatalogRepo) ListServices(ctx context.Context, tenantID, branchID string) ([]models.Service, error) {
	ctx, cancel := newContext(ctx)
	defer cancel()

	filter := bson.M{"tenantId": tenantID, "active": true}
	if branchID != "" {
		filter["$or"] = []bson.M{{"branchId": branchID}, {"branchId": ""}, {"branchId": bson.M{"$exists": false}}}
	}
	cursor, err := r.services.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list services for tenant %s: %w", tenantID, err)
	}
	defer cursor.Close(ctx)

	var services []models.Service
	if err := cursor.All(ctx, &services); err != nil {
		return nil, fmt.Errorf("failed to decode services: %w", err)
	}
	return services, nil
}

func (r *MongoCatalogRepo) GetService(ctx context.Context, tenantID, serviceID string) (*models.Service, error) {
	ctx, cancel := newContext(ctx)
	defer cancel()

	var svc models.Service
	err := r.services.FindOne(ctx, bson.M{"tenantId": tenantID, "id": serviceID}).Decode(&svc)
	if err == mongo.ErrNoDocuments {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch service %s: %w", serviceID, err)
	}
	return &svc, nil
}

func (r *MongoCatalogRepo) ListResources(ctx context.Context, tenantID, branchID string) ([]models.Resource, error) {
	ctx, cancel := newContext(ctx)
	defer cancel()

	filter := bson.M{"tenantId": tenantID, "active": true}
	if branchID != "" {
		filter["branchId"] = branchID
	}
	cursor, err := r.resources.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list resources for tenant %s: %w", tenantID, err)
	}
	defer cursor.Close(ctx)

	var resources []models.Resource
	if err := cursor.All(ctx, &resources); err != nil {
		return nil, fmt.Errorf("failed to decode resources: %w", err)
	}
	return resources, nil
}

func (r *MongoCatalogRepo) GetResource(ctx context.Context, tenantID, resourceID string) (*models.Resource, error) {
	ctx, cancel := newContext(ctx)
	defer cancel()

	var res models.Resource
	err := r.resources.FindOne(ctx, bson.M{"tenantId": tenantID, "id": resourceID}).Decode(&res)
	if err == mongo.ErrNoDocuments {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch resource %s: %w", resourceID, err)
	}
	return &res, nil
}

func (r *MongoCatalogRepo) WorkingHoursFor(ctx context.Context, tenantID, resourceID string) ([]models.WorkingHours, error) {
	ctx, cancel := newContext(ctx)
	defer cancel()

	cursor, err := r.hours.Find(ctx, bson.M{"tenantId": tenantID, "resourceId": resourceID})
	if err != nil {
		return nil, fmt.Errorf("failed to list working hours for resource %s: %w", resourceID, err)
	}
	defer cursor.Close(ctx)

	var hours []models.WorkingHours
	if err := cursor.All(ctx, &hours); err != nil {
		return nil, fmt.Errorf("failed to decode working hours: %w", err)
	}
	return hours, nil
}

func (r *MongoCatalogRepo) TimeOffOverlapping(ctx context.Context, tenantID, resourceID string, from, to time.Time) ([]models.TimeOff, error) {
	ctx, cancel := newContext(ctx)
	defer cancel()

	filter := bson.M{
		"tenantId":   tenantID,
		"resourceId": resourceID,
		"start":      bson.M{"$lt": to},
		"end":        bson.M{"$gt": from},
	}
	cursor, err := r.timeOff.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list time off for resource %s: %w", resourceID, err)
	}
	defer cursor.Close(ctx)

	var blocks []models.TimeOff
	if err := cursor.All(ctx, &blocks); err != nil {
		return nil, fmt.Errorf("failed to decode time off: %w", err)
	}
	return blocks, nil
}

func (r *MongoCatalogRepo) ListPlans(ctx context.Context) ([]models.PlatformPlan, error) {
	ctx, cancel := newContext(ctx)
	defer cancel()

	cursor, err := r.plans.Find(ctx, bson.M{"active": true}, options.Find().SetSort(bson.D{{Key: "price", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list platform plans: %w", err)
	}
	defer cursor.Close(ctx)

	var plans []models.PlatformPlan
	if err := cursor.All(ctx, &plans); err != nil {
		return nil, fmt.Errorf("failed to decode platform plans: %w", err)
	}
	return plans, nil
}

func (r *MongoCatalogRepo) GetPlan(ctx context.Context, planID string) (*models.PlatformPlan, error) {
	ctx, cancel := newContext(ctx)
	defer cancel()

	var plan models.PlatformPlan
	err := r.plans.FindOne(ctx, bson.M{"id": planID}).Decode(&plan)
	if err == mongo.ErrNoDocuments {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch platform plan %s: %w", planID, err)
	}
	return &plan, nil
}
