package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"docsend/internal/dispatch"
	"docsend/internal/model"
	"docsend/internal/repository"
)

var (
	ErrNameRequired    = errors.New("name is required")
	ErrEndpointInvalid = errors.New("endpoint url is invalid")
)

// CustomerListResult is the service-level DTO for paginated customers.
type CustomerListResult struct {
	Items []model.Customer `json:"data"`
	Total int              `json:"total"`
}

// CustomerService defines the use cases for delivery customers.
type CustomerService interface {
	// Register creates a customer with a freshly generated signing secret.
	// The secret is returned once on the created customer; store it on the
	// receiving side to verify pushed documents.
	Register(ctx context.Context, name, endpointURL string) (*model.Customer, error)

	// Get returns a single customer by its ID.
	Get(ctx context.Context, id string) (*model.Customer, error)

	// List returns customers using limit/offset and a total count.
	List(ctx context.Context, limit, offset int) (*CustomerListResult, error)

	// Deactivate marks a customer inactive; subsequent dispatches to it fail fast.
	Deactivate(ctx context.Context, id string) error
}

type customerService struct {
	repo repository.CustomerRepository
}

// NewCustomerService constructs a new CustomerService.
func NewCustomerService(repo repository.CustomerRepository) CustomerService {
	return &customerService{repo: repo}
}

func (s *customerService) Register(ctx context.Context, name, endpointURL string) (*model.Customer, error) {
	if name == "" {
		return nil, ErrNameRequired
	}
	if err := validateEndpointURL(endpointURL); err != nil {
		return nil, err
	}

	secret, err := dispatch.GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("generate signing secret: %w", err)
	}

	c := &model.Customer{
		ID:            uuid.New().String(),
		Name:          name,
		EndpointURL:   endpointURL,
		SigningSecret: secret,
		Active:        true,
		CreatedAt:     time.Now().UTC(),
	}
	stored, err := s.repo.Create(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("db save failed: %w", err)
	}
	return stored, nil
}

func (s *customerService) Get(ctx context.Context, id string) (*model.Customer, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (s *customerService) List(ctx context.Context, limit, offset int) (*CustomerListResult, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.repo.List(ctx, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &CustomerListResult{Items: res.Items, Total: res.Total}, nil
}

func (s *customerService) Deactivate(ctx context.Context, id string) error {
	if id == "" {
		return ErrIDRequired
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// validateEndpointURL requires an absolute http(s) URL with a host.
func validateEndpointURL(raw string) error {
	if raw == "" {
		return ErrEndpointInvalid
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ErrEndpointInvalid
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrEndpointInvalid
	}
	return nil
}
