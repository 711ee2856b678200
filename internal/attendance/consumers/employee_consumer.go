package consumers

import (
	"context"

	"github.com/dealerflow/dealerflow-backend/internal/attendance/repository"
	"github.com/dealerflow/dealerflow-backend/pkg/logger"
	"github.com/dealerflow/dealerflow-backend/pkg/messaging"
)

// EmployeeEventConsumer keeps the local employee cache in sync with the
// dealer directory service. The cache is display data only; attendance never
// blocks on it.
type EmployeeEventConsumer struct {
	consumer  *messaging.Consumer
	cacheRepo *repository.EmployeeCacheRepository
	logger    *logger.Logger
}

// NewEmployeeEventConsumer creates a new employee event consumer
func NewEmployeeEventConsumer(
	rmq *messaging.RabbitMQ,
	cacheRepo *repository.EmployeeCacheRepository,
	log *logger.Logger,
) (*EmployeeEventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, "attendance-service.employee-events", log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeDealerEvents, "dealer.employee.*"); err != nil {
		return nil, err
	}

	c := &EmployeeEventConsumer{
		consumer:  consumer,
		cacheRepo: cacheRepo,
		logger:    log,
	}

	consumer.RegisterHandler(messaging.EventEmployeeCreated, c.handleEmployeeCreated)
	consumer.RegisterHandler(messaging.EventEmployeeUpdated, c.handleEmployeeUpdated)
	consumer.RegisterHandler(messaging.EventEmployeeDeleted, c.handleEmployeeDeleted)

	return c, nil
}

// Start starts consuming messages
func (c *EmployeeEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

func (c *EmployeeEventConsumer) handleEmployeeCreated(ctx context.Context, event *messaging.Event) error {
	var data messaging.EmployeeCreatedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("employee_id", data.EmployeeID).
		Str("name", data.Name).
		Msg("received employee created event")

	cached := &repository.CachedEmployee{
		EmployeeID: data.EmployeeID,
		Name:       data.Name,
	}
	if data.DealershipID != "" {
		cached.DealershipID = &data.DealershipID
	}

	return c.cacheRepo.Upsert(ctx, cached)
}

func (c *EmployeeEventConsumer) handleEmployeeUpdated(ctx context.Context, event *messaging.Event) error {
	var data messaging.EmployeeUpdatedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("employee_id", data.EmployeeID).
		Msg("received employee updated event")

	existing, err := c.cacheRepo.Get(ctx, data.EmployeeID)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil // not cached yet, a later created event will seed it
	}

	if name, ok := data.Fields["name"].(string); ok && name != "" {
		return c.cacheRepo.UpdateName(ctx, data.EmployeeID, name)
	}

	return nil
}

func (c *EmployeeEventConsumer) handleEmployeeDeleted(ctx context.Context, event *messaging.Event) error {
	var data messaging.EmployeeDeletedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("employee_id", data.EmployeeID).
		Msg("received employee deleted event")

	return c.cacheRepo.Delete(ctx, data.EmployeeID)
}
