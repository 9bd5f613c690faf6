package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/example/flowershop/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// legacyBankMethods are the labels whose old documents may lack expiresAt.
var legacyBankMethods = []models.PaymentMethod{models.PaymentBanking, models.PaymentStripe}

// OrderStore persists orders in MongoDB. Every lifecycle write is conditional
// on the status the caller observed, so concurrent writers cannot overwrite
// each other's transitions.
type OrderStore struct {
	coll     *mongo.Collection
	timezone string
}

func NewOrderStore(coll *mongo.Collection, timezone string) *OrderStore {
	return &OrderStore{coll: coll, timezone: timezone}
}

func (s *OrderStore) Insert(ctx context.Context, o *models.Order) error {
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	_, err := s.coll.InsertOne(ctx, o)
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		if strings.Contains(err.Error(), activePayableIndex) {
			return ErrActiveOrderExists
		}
		return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
	}
	return fmt.Errorf("insert order: %w", err)
}

func (s *OrderStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	var o models.Order
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&o)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	return &o, nil
}

func (s *OrderStore) FindByCustomer(ctx context.Context, customerID string) ([]*models.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return s.find(ctx, bson.M{"customerId": customerID}, opts)
}

// FindBlocking returns the customer's pending unpaid payable order, or nil.
func (s *OrderStore) FindBlocking(ctx context.Context, customerID string) (*models.Order, error) {
	filter := bson.M{
		"customerId":    customerID,
		"orderStatus":   models.OrderPending,
		"paymentStatus": models.PaymentUnpaid,
		"paymentMethod": bson.M{"$in": models.PayableMethods},
	}
	var o models.Order
	err := s.coll.FindOne(ctx, filter).Decode(&o)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find blocking order: %w", err)
	}
	return &o, nil
}

// BackfillExpiry sets expiresAt = createdAt + window on legacy bank-transfer
// orders that were stored before the field existed. customerID "" means all.
func (s *OrderStore) BackfillExpiry(ctx context.Context, customerID string, window time.Duration) (int64, error) {
	filter := bson.M{
		"orderStatus":   models.OrderPending,
		"paymentStatus": models.PaymentUnpaid,
		"paymentMethod": bson.M{"$in": legacyBankMethods},
		"expiresAt":     bson.M{"$exists": false},
	}
	if customerID != "" {
		filter["customerId"] = customerID
	}
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "expiresAt", Value: bson.D{{Key: "$add", Value: bson.A{"$createdAt", window.Milliseconds()}}}},
		}}},
	}

	res, err := s.coll.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("backfill expiry: %w", err)
	}
	return res.ModifiedCount, nil
}

// FindExpired returns pending unpaid orders whose payment window has lapsed.
// Legacy bank-transfer orders still missing expiresAt are judged on createdAt.
func (s *OrderStore) FindExpired(ctx context.Context, customerID string, now time.Time, window time.Duration) ([]*models.Order, error) {
	filter := bson.M{
		"orderStatus":   models.OrderPending,
		"paymentStatus": models.PaymentUnpaid,
		"$or": bson.A{
			bson.M{"expiresAt": bson.M{"$lte": now}},
			bson.M{
				"expiresAt":     bson.M{"$exists": false},
				"paymentMethod": bson.M{"$in": legacyBankMethods},
				"createdAt":     bson.M{"$lte": now.Add(-window)},
			},
		},
	}
	if customerID != "" {
		filter["customerId"] = customerID
	}
	return s.find(ctx, filter)
}

// ExpireOrders moves the given orders to CANCELLED/EXPIRED if they are still
// PENDING/UNPAID and appends entry to their history.
func (s *OrderStore) ExpireOrders(ctx context.Context, ids []primitive.ObjectID, entry models.HistoryEntry) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	filter := bson.M{
		"_id":           bson.M{"$in": ids},
		"orderStatus":   models.OrderPending,
		"paymentStatus": models.PaymentUnpaid,
	}
	update := bson.M{
		"$set": bson.M{
			"orderStatus":   models.OrderCancelled,
			"paymentStatus": models.PaymentExpired,
			"updatedAt":     entry.CreatedAt,
		},
		"$push": bson.M{"history": entry},
	}

	res, err := s.coll.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("expire orders: %w", err)
	}
	return res.ModifiedCount, nil
}

// UpdateStatus applies upd only if the order is still in upd.From. A miss is
// reported as ErrNotFound.
func (s *OrderStore) UpdateStatus(ctx context.Context, id primitive.ObjectID, upd models.StatusUpdate) (*models.Order, error) {
	set := bson.M{
		"orderStatus": upd.To,
		"updatedAt":   upd.Entry.CreatedAt,
	}
	if upd.SetPaid {
		set["paymentStatus"] = models.PaymentPaid
	}
	update := bson.M{
		"$set":  set,
		"$push": bson.M{"history": upd.Entry},
	}
	return s.findOneAndUpdate(ctx, bson.M{"_id": id, "orderStatus": upd.From}, update)
}

// MarkPaid flips an UNPAID, non-cancelled order to PAID.
func (s *OrderStore) MarkPaid(ctx context.Context, id primitive.ObjectID, entry models.HistoryEntry) (*models.Order, error) {
	filter := bson.M{
		"_id":           id,
		"paymentStatus": models.PaymentUnpaid,
		"orderStatus":   bson.M{"$ne": models.OrderCancelled},
	}
	update := bson.M{
		"$set": bson.M{
			"paymentStatus": models.PaymentPaid,
			"updatedAt":     entry.CreatedAt,
		},
		"$push": bson.M{"history": entry},
	}
	return s.findOneAndUpdate(ctx, filter, update)
}

func (s *OrderStore) List(ctx context.Context, f models.OrderFilter) ([]*models.Order, int64, error) {
	filter := bson.M{}
	if f.CustomerID != "" {
		filter["customerId"] = f.CustomerID
	}
	if f.OrderStatus != "" {
		filter["orderStatus"] = f.OrderStatus
	}
	if f.PaymentStatus != "" {
		filter["paymentStatus"] = f.PaymentStatus
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(q), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"orderCode": re},
			bson.M{"customerName": re},
			bson.M{"customerEmail": re},
			bson.M{"customerPhone": re},
		}
	}

	total, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip((f.Page - 1) * f.Limit).
		SetLimit(f.Limit)
	orders, err := s.find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (s *OrderStore) CountByStatus(ctx context.Context) (map[models.OrderStatus]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$orderStatus"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cursor, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate status counts: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status models.OrderStatus `bson:"_id"`
		Count  int64              `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode status counts: %w", err)
	}

	counts := make(map[models.OrderStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

// DailyRevenue sums totalAmount of paid or completed orders per local day.
func (s *OrderStore) DailyRevenue(ctx context.Context, since time.Time) ([]models.RevenuePoint, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "createdAt", Value: bson.D{{Key: "$gte", Value: since}}},
			{Key: "$or", Value: bson.A{
				bson.D{{Key: "paymentStatus", Value: models.PaymentPaid}},
				bson.D{{Key: "orderStatus", Value: models.OrderCompleted}},
			}},
		}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "$dateToString", Value: bson.D{
				{Key: "format", Value: "%Y-%m-%d"},
				{Key: "date", Value: "$createdAt"},
				{Key: "timezone", Value: s.timezone},
			}}}},
			{Key: "revenue", Value: bson.D{{Key: "$sum", Value: "$totalAmount"}}},
			{Key: "orders", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
	cursor, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate revenue: %w", err)
	}
	defer cursor.Close(ctx)

	var points []models.RevenuePoint
	if err := cursor.All(ctx, &points); err != nil {
		return nil, fmt.Errorf("decode revenue: %w", err)
	}
	return points, nil
}

func (s *OrderStore) find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]*models.Order, error) {
	cursor, err := s.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("find orders: %w", err)
	}
	defer cursor.Close(ctx)

	orders := []*models.Order{}
	if err = cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	return orders, nil
}

func (s *OrderStore) findOneAndUpdate(ctx context.Context, filter, update interface{}) (*models.Order, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var o models.Order
	err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&o)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}
	return &o, nil
}
