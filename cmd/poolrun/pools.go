package main

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/blockpool/internal/config"
	"github.com/vkngwrapper/blockpool/internal/script"
	"github.com/vkngwrapper/blockpool/memutils"
	"github.com/vkngwrapper/blockpool/memutils/storage"
	"github.com/vkngwrapper/blockpool/pool"
	"golang.org/x/exp/slog"
)

// layoutPool is the part of *pool.Pool that poolrun needs, independent of the element type
type layoutPool interface {
	script.Heap
	script.DetailedMapPrinter

	Capacity() int
	DetailedStatistics() memutils.DetailedStatistics
	Close() error
}

func newPool(cfg *config.Config, logger *slog.Logger) (layoutPool, error) {
	switch cfg.Pool.Element {
	case "float64":
		return openPool[float64](cfg, logger)
	case "float32":
		return openPool[float32](cfg, logger)
	case "int64":
		return openPool[int64](cfg, logger)
	case "int32":
		return openPool[int32](cfg, logger)
	case "uint8":
		return openPool[uint8](cfg, logger)
	}

	return nil, errors.Wrapf(memutils.ErrInvalidConfiguration, "unknown element type %q", cfg.Pool.Element)
}

func openPool[T any](cfg *config.Config, logger *slog.Logger) (layoutPool, error) {
	var store storage.Storage
	if cfg.Pool.BackingFile != "" {
		mapped, err := storage.OpenMapped(cfg.Pool.BackingFile, cfg.Pool.Capacity)
		if err != nil {
			return nil, err
		}
		store = mapped
	} else {
		heap, err := storage.NewHeap(cfg.Pool.Capacity)
		if err != nil {
			return nil, err
		}
		store = heap
	}

	var flags pool.CreateFlags
	if cfg.Pool.ValidateMutations {
		flags |= pool.CreateValidateMutations
	}

	p, err := pool.New[T](store, pool.CreateOptions{
		Flags:  flags,
		Logger: logger,
	})
	if err != nil {
		return nil, errors.CombineErrors(err, store.Close())
	}

	return p, nil
}
