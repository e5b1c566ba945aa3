package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/wms-platform/stockcount-service/internal/config"
	"github.com/wms-platform/stockcount-service/internal/domain"
	mongoRepo "github.com/wms-platform/stockcount-service/internal/infrastructure/mongodb"
	"github.com/wms-platform/stockcount-service/pkg/logging"
	"github.com/wms-platform/stockcount-service/pkg/mongodb"
)

// Maintenance tool: ensures indexes and re-derives the reconciliation state
// of every item in inventories that are still counting.

var (
	dryRun    = flag.Bool("dry-run", true, "Dry run mode (no item writes)")
	inventory = flag.String("inventory", "", "Restrict to one inventory code")
	pageSize  = flag.Int("page-size", 100, "Inventories read per page")
)

type inventoryStore interface {
	List(ctx context.Context, filter domain.InventoryFilter) ([]*domain.Inventory, error)
	FindByCode(ctx context.Context, code string) (*domain.Inventory, error)
}

type itemStore interface {
	FindByInventory(ctx context.Context, inventoryID string, filter domain.ItemFilter) ([]*domain.InventoryItem, error)
	Save(ctx context.Context, item *domain.InventoryItem) error
}

func main() {
	flag.Parse()

	logger := logging.New(logging.DefaultConfig("stockcount-migrate"))
	logger.Info("Starting stock-count maintenance", "dryRun", *dryRun, "inventory", *inventory)

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Error("Invalid configuration")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	client, err := mongodb.NewClient(ctx, cfg.MongoDBClientConfig())
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		os.Exit(1)
	}
	defer client.Close(context.Background())

	if err := mongoRepo.EnsureIndexes(ctx, client); err != nil {
		logger.WithError(err).Error("Failed to ensure indexes")
		os.Exit(1)
	}
	logger.Info("Indexes ensured", "database", cfg.MongoDB.Database)

	db := client.Database()
	r := &recomputer{
		inventories: mongoRepo.NewInventoryRepository(db, nil),
		items:       mongoRepo.NewItemRepository(db, nil),
		logger:      logger,
		dryRun:      *dryRun,
		pageSize:    *pageSize,
	}

	changed, err := r.run(ctx, *inventory)
	if err != nil {
		logger.WithError(err).Error("Maintenance failed")
		os.Exit(1)
	}
	logger.Info("Maintenance completed", "itemsChanged", changed, "dryRun", *dryRun)
}

type recomputer struct {
	inventories inventoryStore
	items       itemStore
	logger      *logging.Logger
	dryRun      bool
	pageSize    int
}

// run recomputes one inventory by code, or every non-terminal inventory when
// code is empty. It returns the number of items whose state changed.
func (r *recomputer) run(ctx context.Context, code string) (int, error) {
	if code != "" {
		inv, err := r.inventories.FindByCode(ctx, code)
		if err != nil {
			return 0, err
		}
		return r.recomputeInventory(ctx, inv)
	}

	total := 0
	for offset := 0; ; offset += r.pageSize {
		page, err := r.inventories.List(ctx, domain.InventoryFilter{Limit: r.pageSize, Offset: offset})
		if err != nil {
			return total, err
		}
		for _, inv := range page {
			n, err := r.recomputeInventory(ctx, inv)
			if err != nil {
				return total, err
			}
			total += n
		}
		if len(page) < r.pageSize {
			return total, nil
		}
	}
}

func (r *recomputer) recomputeInventory(ctx context.Context, inv *domain.Inventory) (int, error) {
	// closed quantities are frozen
	if inv.Status.IsTerminal() {
		return 0, nil
	}

	items, err := r.items.FindByInventory(ctx, inv.ID, domain.ItemFilter{})
	if err != nil {
		return 0, err
	}

	changed := 0
	for _, item := range items {
		before := snapshotOf(item)
		item.Recompute()
		if snapshotOf(item) == before {
			continue
		}
		changed++
		r.logger.Info("Item reconciliation changed",
			"inventoryCode", inv.Code,
			"itemId", item.ID,
			"from", before.classification,
			"to", item.Classification.String(),
		)
		if r.dryRun {
			continue
		}
		item.UpdatedAt = time.Now().UTC()
		if err := r.items.Save(ctx, item); err != nil {
			return changed, err
		}
	}
	return changed, nil
}

type itemSnapshot struct {
	classification string
	status         string
	final          int
	settled        bool
	divergence     int
}

func snapshotOf(item *domain.InventoryItem) itemSnapshot {
	s := itemSnapshot{
		classification: item.Classification.String(),
		status:         item.Status.String(),
	}
	if item.FinalQuantity != nil {
		s.settled = true
		s.final = *item.FinalQuantity
	}
	if item.Divergence != nil {
		s.divergence = *item.Divergence
	}
	return s
}
