package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/oklog/ulid/v2"

	"docsend/internal/dispatch"
	"docsend/internal/model"
	"docsend/internal/repository"
	"docsend/internal/storage"
)

var (
	ErrCustomerInactive = errors.New("customer is inactive")
	ErrNotRetryable     = errors.New("only failed deliveries can be retried")
)

// maxPayloadSize bounds how much of a stored document is loaded into memory
// for an outbound push.
const maxPayloadSize = 64 << 20 // 64 MiB

// DocumentSender pushes one document payload to one endpoint. Implemented by
// dispatch.Sender; it must be safe for concurrent use since one instance is
// shared by all worker goroutines.
type DocumentSender interface {
	Send(ctx context.Context, r dispatch.Request) (dispatch.Result, error)
}

// JobPublisher enqueues a delivery job for asynchronous processing.
// Implemented by queue.Publisher.
type JobPublisher interface {
	Publish(ctx context.Context, deliveryID string) (string, error)
}

// DeliveryListQuery holds pagination plus optional filters for listing deliveries.
type DeliveryListQuery struct {
	Limit      int
	Offset     int
	Status     model.DeliveryStatus
	CustomerID string
}

// DeliveryListResult is the service-level DTO for paginated deliveries.
type DeliveryListResult struct {
	Items []model.Delivery `json:"data"`
	Total int              `json:"total"`
}

// DeliveryService defines the use cases for dispatching documents to customers.
type DeliveryService interface {
	// Create validates the document and customer, records a queued delivery,
	// and enqueues a job for it.
	Create(ctx context.Context, documentID, customerID string) (*model.Delivery, error)

	// Get returns a single delivery by its ID.
	Get(ctx context.Context, id string) (*model.Delivery, error)

	// List returns deliveries matching the query and a total count.
	List(ctx context.Context, q DeliveryListQuery) (*DeliveryListResult, error)

	// Retry requeues a failed delivery and enqueues a fresh job.
	Retry(ctx context.Context, id string) (*model.Delivery, error)

	// Process executes one delivery job end to end: load state, push the
	// document through the shared sender, persist the outcome. It satisfies
	// queue.Processor. A non-nil error means the job should be redelivered;
	// permanent failures are persisted and consume the job.
	Process(ctx context.Context, deliveryID string) error

	// Abandon marks a delivery failed when its job exhausted the queue's
	// receive budget. Deliveries already in a terminal state are left alone.
	Abandon(ctx context.Context, deliveryID, reason string) error
}

type deliveryService struct {
	deliveries repository.DeliveryRepository
	customers  repository.CustomerRepository
	documents  repository.DocumentRepository
	store      storage.Storage
	sender     DocumentSender
	publisher  JobPublisher
}

// NewDeliveryService constructs a new DeliveryService. All collaborators are
// fixed here; the service carries no per-call state and can be shared.
func NewDeliveryService(
	deliveries repository.DeliveryRepository,
	customers repository.CustomerRepository,
	documents repository.DocumentRepository,
	store storage.Storage,
	sender DocumentSender,
	publisher JobPublisher,
) DeliveryService {
	return &deliveryService{
		deliveries: deliveries,
		customers:  customers,
		documents:  documents,
		store:      store,
		sender:     sender,
		publisher:  publisher,
	}
}

func (s *deliveryService) Create(ctx context.Context, documentID, customerID string) (*model.Delivery, error) {
	if documentID == "" || customerID == "" {
		return nil, ErrIDRequired
	}

	if _, err := s.documents.FindByID(ctx, documentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	customer, err := s.customers.FindByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !customer.Active {
		return nil, ErrCustomerInactive
	}

	now := time.Now().UTC()
	d := &model.Delivery{
		ID:         ulid.Make().String(),
		DocumentID: documentID,
		CustomerID: customerID,
		Status:     model.DeliveryStatusQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	stored, err := s.deliveries.Create(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("db save failed: %w", err)
	}

	if _, err := s.publisher.Publish(ctx, stored.ID); err != nil {
		// Rollback parallel to upload: the accepted row must not stay queued
		// with no job behind it.
		if failErr := s.deliveries.MarkFailed(ctx, stored.ID, 0, 0, "enqueue failed: "+err.Error()); failErr != nil {
			return nil, fmt.Errorf("enqueue failed: %v; mark failed: %v", err, failErr)
		}
		return nil, fmt.Errorf("enqueue failed: %w", err)
	}
	return stored, nil
}

func (s *deliveryService) Get(ctx context.Context, id string) (*model.Delivery, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	d, err := s.deliveries.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

func (s *deliveryService) List(ctx context.Context, q DeliveryListQuery) (*DeliveryListResult, error) {
	if q.Limit <= 0 {
		q.Limit = 10
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.Status != "" && !model.IsValidDeliveryStatus(q.Status) {
		return nil, fmt.Errorf("invalid status %q", q.Status)
	}

	res, err := s.deliveries.List(ctx, repository.DeliveryQuery{
		Limit:      q.Limit,
		Offset:     q.Offset,
		Status:     q.Status,
		CustomerID: q.CustomerID,
	})
	if err != nil {
		return nil, err
	}
	return &DeliveryListResult{Items: res.Items, Total: res.Total}, nil
}

func (s *deliveryService) Retry(ctx context.Context, id string) (*model.Delivery, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	d, err := s.deliveries.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if d.Status != model.DeliveryStatusFailed {
		return nil, ErrNotRetryable
	}

	if err := s.deliveries.Requeue(ctx, id); err != nil {
		return nil, err
	}
	if _, err := s.publisher.Publish(ctx, id); err != nil {
		if failErr := s.deliveries.MarkFailed(ctx, id, d.Attempts, 0, "enqueue failed: "+err.Error()); failErr != nil {
			return nil, fmt.Errorf("enqueue failed: %v; mark failed: %v", err, failErr)
		}
		return nil, fmt.Errorf("enqueue failed: %w", err)
	}
	return s.deliveries.FindByID(ctx, id)
}

// Process is invoked by queue workers. Missing or inactive prerequisites are
// recorded as failed outcomes and consume the job (return nil); transient
// infrastructure errors propagate so the job stays pending for reclaim.
func (s *deliveryService) Process(ctx context.Context, deliveryID string) error {
	d, err := s.deliveries.FindByID(ctx, deliveryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// row gone, nothing to retry against
			return nil
		}
		return fmt.Errorf("load delivery: %w", err)
	}
	if d.Status == model.DeliveryStatusDelivered {
		// duplicate or reclaimed job after success
		return nil
	}

	customer, err := s.customers.FindByID(ctx, d.CustomerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.deliveries.MarkFailed(ctx, d.ID, d.Attempts, 0, "customer not found")
		}
		return fmt.Errorf("load customer: %w", err)
	}
	if !customer.Active {
		return s.deliveries.MarkFailed(ctx, d.ID, d.Attempts, 0, "customer deactivated")
	}

	doc, err := s.documents.FindByID(ctx, d.DocumentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.deliveries.MarkFailed(ctx, d.ID, d.Attempts, 0, "document deleted")
		}
		return fmt.Errorf("load document: %w", err)
	}

	body, info, err := s.store.Get(ctx, doc.StoragePath)
	if err != nil {
		return fmt.Errorf("fetch object: %w", err)
	}
	defer body.Close()
	payload, err := io.ReadAll(io.LimitReader(body, maxPayloadSize))
	if err != nil {
		return fmt.Errorf("read object: %w", err)
	}
	if info.Size > maxPayloadSize {
		return s.deliveries.MarkFailed(ctx, d.ID, d.Attempts, 0, "document exceeds payload limit")
	}

	res, err := s.sender.Send(ctx, dispatch.Request{
		DeliveryID:    d.ID,
		DocumentID:    doc.ID,
		CustomerID:    customer.ID,
		Endpoint:      customer.EndpointURL,
		SigningSecret: customer.SigningSecret,
		Filename:      doc.Filename,
		ContentType:   doc.ContentType,
		Body:          payload,
	})
	attempts := d.Attempts + res.Attempts
	if err != nil {
		// the sender already spent its retry budget; record the final outcome
		return s.deliveries.MarkFailed(ctx, d.ID, attempts, res.StatusCode, err.Error())
	}
	return s.deliveries.MarkDelivered(ctx, d.ID, attempts, res.StatusCode, time.Now().UTC())
}

// Abandon is invoked by queue workers when a job leaves the stream for the
// dead-letter queue. The delivery row must not stay queued forever.
func (s *deliveryService) Abandon(ctx context.Context, deliveryID, reason string) error {
	d, err := s.deliveries.FindByID(ctx, deliveryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("load delivery: %w", err)
	}
	if d.Status != model.DeliveryStatusQueued {
		return nil
	}
	return s.deliveries.MarkFailed(ctx, d.ID, d.Attempts, 0, "abandoned: "+reason)
}
