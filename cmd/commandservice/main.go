// Command commandservice boots the write side: Event Store, Event Bus,
// the catch-up projections backing command-time read-model prechecks, the
// command dispatcher with every handler registered, and then the saga
// coordinator, in that order. The coordinator comes last because it is
// built on the dispatcher and ResumeAll may redispatch pending commands
// through it. It blocks until SIGINT/SIGTERM and tears everything down in
// reverse order.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fenrir-shard/ledgerfolio/internal/command"
	"github.com/fenrir-shard/ledgerfolio/internal/config"
	"github.com/fenrir-shard/ledgerfolio/internal/domain/category"
	"github.com/fenrir-shard/ledgerfolio/internal/domain/order"
	"github.com/fenrir-shard/ledgerfolio/internal/domain/product"
	"github.com/fenrir-shard/ledgerfolio/internal/platform"
	"github.com/fenrir-shard/ledgerfolio/internal/readmodel"
	internalsaga "github.com/fenrir-shard/ledgerfolio/internal/saga"
	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs"
	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs/projection"
	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs/resilience"
	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs/saga"
)

func main() {
	os.Exit(run())
}

func run() int {
	logger := platform.NewLogger()
	log := platform.ComponentLogger(logger, "commandservice")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Error("invalid configuration")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, storeClosers, err := platform.NewEventStore(ctx, cfg.EventStore)
	if err != nil {
		log.WithError(err).Error("failed to open event store")
		return 2
	}
	defer storeClosers.Shutdown(context.Background())

	bus := cqrs.NewInMemoryEventBus()
	if err := bus.Start(ctx); err != nil {
		log.WithError(err).Error("failed to start event bus")
		return 2
	}
	defer bus.Stop(context.Background())

	breakers := resilience.NewCircuitBreakerManager(platform.NewResilienceConfig(cfg.CircuitBreaker["default"]))

	products := readmodel.NewProductStore(cqrs.NewInMemoryReadStore())
	categories := readmodel.NewCategoryStore(cqrs.NewInMemoryReadStore())
	orders := readmodel.NewOrderStore(cqrs.NewInMemoryReadStore())

	checkpoints := projection.NewInMemoryCheckpointStore()
	batchSize := cfg.Projections["default"].BatchSize
	runner := projection.NewRunner(store, checkpoints, batchSize, 500*time.Millisecond, log)

	projCtx, cancelProjections := context.WithCancel(ctx)
	defer cancelProjections()
	for _, p := range []projection.Projection{
		readmodel.NewProductProjection(products),
		readmodel.NewCategoryProjection(categories),
		readmodel.NewOrderProjection(orders),
	} {
		go func(p projection.Projection) {
			if err := runner.Run(projCtx, p); err != nil {
				log.WithError(err).WithField("projection", p.Name()).Error("projection loop stopped")
			}
		}(p)
	}

	engine := command.NewEngine(store, bus, breakers, cfg.CommandBus.MaxRetries, cfg.EventStore.SnapshotFrequency, log)
	dispatcher := cqrs.NewInMemoryCommandDispatcher()
	if err := registerCommandHandlers(dispatcher, engine, categories, products); err != nil {
		log.WithError(err).Error("failed to register command handlers")
		return 2
	}

	sagaCoordinator := saga.NewCoordinator(store, dispatcher, breakers)
	if err := sagaCoordinator.Register(internalsaga.NewOrderFulfillmentDefinition(cfg.Saga.DefaultTimeout)); err != nil {
		log.WithError(err).Error("failed to register order fulfillment saga")
		return 2
	}
	if err := sagaCoordinator.ResumeAll(ctx); err != nil {
		log.WithError(err).Error("failed to resume in-flight sagas")
		return 2
	}
	go sagaCoordinator.RunTimeoutSweeper(ctx, 5*time.Second)

	log.Info("commandservice started")
	<-ctx.Done()

	log.Info("commandservice shutting down")
	return 0
}

// registerCommandHandlers wires every aggregate's command types to its
// handler on dispatcher, in the order product, category, order.
func registerCommandHandlers(dispatcher *cqrs.InMemoryCommandDispatcher, engine *command.Engine, categories *readmodel.CategoryStore, products *readmodel.ProductStore) error {
	productHandler := command.NewProductHandler(engine)
	for _, ct := range []string{product.CommandCreate, product.CommandUpdate, product.CommandChangePrice, product.CommandDelete} {
		if err := dispatcher.RegisterHandler(ct, productHandler); err != nil {
			return err
		}
	}

	categoryHandler := command.NewCategoryHandler(engine, categories, products)
	for _, ct := range []string{category.CommandCreate, category.CommandUpdate, category.CommandMove, category.CommandDelete} {
		if err := dispatcher.RegisterHandler(ct, categoryHandler); err != nil {
			return err
		}
	}

	orderHandler := command.NewOrderHandler(engine, products)
	for _, ct := range []string{
		order.CommandCreate, order.CommandReserveInventory, order.CommandReleaseInventory,
		order.CommandProcessPayment, order.CommandArrangeShipping, order.CommandDeliver,
		order.CommandConfirm, order.CommandCancel, order.CommandReturn, order.CommandRefund,
	} {
		if err := dispatcher.RegisterHandler(ct, orderHandler); err != nil {
			return err
		}
	}
	return nil
}
