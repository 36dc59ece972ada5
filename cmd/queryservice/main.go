// Command queryservice boots the read side: its own Event Store handle,
// the same three catch-up projections as commandservice feeding its own
// in-memory read models, and the query dispatcher sitting on top of them.
// It blocks until SIGINT/SIGTERM and tears everything down in reverse order.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fenrir-shard/ledgerfolio/internal/config"
	"github.com/fenrir-shard/ledgerfolio/internal/platform"
	"github.com/fenrir-shard/ledgerfolio/internal/query"
	"github.com/fenrir-shard/ledgerfolio/internal/readmodel"
	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs"
	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs/projection"
)

func main() {
	os.Exit(run())
}

func run() int {
	logger := platform.NewLogger()
	log := platform.ComponentLogger(logger, "queryservice")

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

	products := readmodel.NewProductStore(cqrs.NewInMemoryReadStore())
	categories := readmodel.NewCategoryStore(cqrs.NewInMemoryReadStore())
	orders := readmodel.NewOrderStore(cqrs.NewInMemoryReadStore())

	checkpoints := projection.NewInMemoryCheckpointStore()
	batchSize := cfg.Projections["default"].BatchSize
	runner := projection.NewRunner(store, checkpoints, batchSize, 500*time.Millisecond, log)

	for _, p := range []projection.Projection{
		readmodel.NewProductProjection(products),
		readmodel.NewCategoryProjection(categories),
		readmodel.NewOrderProjection(orders),
	} {
		go func(p projection.Projection) {
			if err := runner.Run(ctx, p); err != nil {
				log.WithError(err).WithField("projection", p.Name()).Error("projection loop stopped")
			}
		}(p)
	}

	dispatcher := cqrs.NewInMemoryQueryDispatcher()
	if err := registerQueryHandlers(dispatcher, products, categories, orders); err != nil {
		log.WithError(err).Error("failed to register query handlers")
		return 2
	}

	log.Info("queryservice started")
	<-ctx.Done()

	log.Info("queryservice shutting down")
	return 0
}

// registerQueryHandlers wires every read model's query types to its
// handler on dispatcher, in the order product, category, order.
func registerQueryHandlers(dispatcher *cqrs.InMemoryQueryDispatcher, products *readmodel.ProductStore, categories *readmodel.CategoryStore, orders *readmodel.OrderStore) error {
	productHandler := query.NewProductHandler(products)
	for _, qt := range []string{query.GetProductQueryType, query.ListProductsQueryType} {
		if err := dispatcher.RegisterHandler(qt, productHandler); err != nil {
			return err
		}
	}

	categoryHandler := query.NewCategoryHandler(categories, products)
	for _, qt := range []string{query.GetCategoryQueryType, query.ListCategoriesQueryType, query.CategoryTreeQueryType} {
		if err := dispatcher.RegisterHandler(qt, categoryHandler); err != nil {
			return err
		}
	}

	orderHandler := query.NewOrderHandler(orders)
	for _, qt := range []string{query.GetOrderQueryType, query.ListOrdersByUserQueryType, query.OrderStatsQueryType} {
		if err := dispatcher.RegisterHandler(qt, orderHandler); err != nil {
			return err
		}
	}
	return nil
}
