package handler

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"docsend/internal/model"
	"docsend/internal/service"
)

// Services bundles the use-case dependencies of the HTTP surface.
type Services struct {
	Documents  service.DocumentService
	Customers  service.CustomerService
	Deliveries service.DeliveryService
}

// registerCustomerRequest is the body of POST /customers.
type registerCustomerRequest struct {
	Name        string `json:"name"`
	EndpointURL string `json:"endpoint_url"`
}

// createDeliveryRequest is the body of POST /deliveries.
type createDeliveryRequest struct {
	DocumentID string `json:"document_id"`
	CustomerID string `json:"customer_id"`
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Handlers stay free of business logic: parse, delegate, translate errors.
func RegisterRoutes(app *fiber.App, db *sql.DB, rdb redis.UniversalClient, svcs Services, gatherer prometheus.Gatherer) {
	// Health endpoint: checks DB and Redis connectivity
	app.Get("/health", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	})

	// Simple liveness probe
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	registerDocumentRoutes(app, svcs.Documents)
	registerCustomerRoutes(app, svcs.Customers)
	registerDeliveryRoutes(app, svcs.Deliveries)
}

func registerDocumentRoutes(app *fiber.App, docSvc service.DocumentService) {
	// List documents with limit & offset
	app.Get("/documents", func(c *fiber.Ctx) error {
		limit, offset, ok, err := parsePaging(c)
		if !ok {
			return err
		}
		res, err := docSvc.List(c.UserContext(), limit, offset)
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(res)
	})

	// Upload document (multipart/form-data, field name: file)
	app.Post("/documents", func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}

		doc, err := docSvc.Upload(c.UserContext(), f, fh.Filename, ct, fh.Size)
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.Status(fiber.StatusCreated).JSON(doc)
	})

	app.Get("/documents/:id", func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		doc, err := docSvc.Get(c.UserContext(), id)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "document not found")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(doc)
	})

	app.Delete("/documents/:id", func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if err := docSvc.Delete(c.UserContext(), id); err != nil {
			switch {
			case errors.Is(err, service.ErrNotFound):
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "document not found")
			case errors.Is(err, service.ErrDocumentInUse):
				return writeError(c, fiber.StatusConflict, "DOCUMENT_IN_USE", "document has deliveries and cannot be deleted")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

func registerCustomerRoutes(app *fiber.App, custSvc service.CustomerService) {
	app.Post("/customers", func(c *fiber.Ctx) error {
		var req registerCustomerRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}
		customer, err := custSvc.Register(c.UserContext(), req.Name, req.EndpointURL)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrNameRequired):
				return writeError(c, fiber.StatusBadRequest, "NAME_REQUIRED", "name is required")
			case errors.Is(err, service.ErrEndpointInvalid):
				return writeError(c, fiber.StatusBadRequest, "INVALID_ENDPOINT", "endpoint url must be absolute http(s)")
			default:
				return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}
		}
		// The signing secret is included here exactly once, for the caller to store.
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"customer":       customer,
			"signing_secret": customer.SigningSecret,
		})
	})

	app.Get("/customers", func(c *fiber.Ctx) error {
		limit, offset, ok, err := parsePaging(c)
		if !ok {
			return err
		}
		res, err := custSvc.List(c.UserContext(), limit, offset)
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(res)
	})

	app.Get("/customers/:id", func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		customer, err := custSvc.Get(c.UserContext(), id)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "customer not found")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(customer)
	})

	// Deactivation rather than deletion: delivery history keeps its reference.
	app.Delete("/customers/:id", func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if err := custSvc.Deactivate(c.UserContext(), id); err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "customer not found")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

func registerDeliveryRoutes(app *fiber.App, delSvc service.DeliveryService) {
	app.Post("/deliveries", func(c *fiber.Ctx) error {
		var req createDeliveryRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}
		d, err := delSvc.Create(c.UserContext(), req.DocumentID, req.CustomerID)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrIDRequired):
				return writeError(c, fiber.StatusBadRequest, "ID_REQUIRED", "document_id and customer_id are required")
			case errors.Is(err, service.ErrNotFound):
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "document or customer not found")
			case errors.Is(err, service.ErrCustomerInactive):
				return writeError(c, fiber.StatusUnprocessableEntity, "CUSTOMER_INACTIVE", "customer is deactivated")
			default:
				return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}
		}
		return c.Status(fiber.StatusAccepted).JSON(d)
	})

	app.Get("/deliveries", func(c *fiber.Ctx) error {
		limit, offset, ok, err := parsePaging(c)
		if !ok {
			return err
		}
		status := model.DeliveryStatus(c.Query("status"))
		if status != "" && !model.IsValidDeliveryStatus(status) {
			return writeError(c, fiber.StatusBadRequest, "INVALID_STATUS", "invalid status filter")
		}
		res, err := delSvc.List(c.UserContext(), service.DeliveryListQuery{
			Limit:      limit,
			Offset:     offset,
			Status:     status,
			CustomerID: c.Query("customer_id"),
		})
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(res)
	})

	app.Get("/deliveries/:id", func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := ulid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		d, err := delSvc.Get(c.UserContext(), id)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "delivery not found")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(d)
	})

	app.Post("/deliveries/:id/retry", func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := ulid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		d, err := delSvc.Retry(c.UserContext(), id)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrNotFound):
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "delivery not found")
			case errors.Is(err, service.ErrNotRetryable):
				return writeError(c, fiber.StatusConflict, "NOT_RETRYABLE", "only failed deliveries can be retried")
			default:
				return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}
		}
		return c.Status(fiber.StatusAccepted).JSON(d)
	})
}

// parsePaging reads limit/offset query params. On invalid input it writes the
// error response itself and returns ok=false.
func parsePaging(c *fiber.Ctx) (limit, offset int, ok bool, err error) {
	limit, convErr := strconv.Atoi(c.Query("limit", "10"))
	if convErr != nil {
		return 0, 0, false, writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
	}
	offset, convErr = strconv.Atoi(c.Query("offset", "0"))
	if convErr != nil {
		return 0, 0, false, writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
	}
	return limit, offset, true, nil
}
