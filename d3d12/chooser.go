package d3d12

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gogpu/gpuinterop"
	"github.com/gogpu/gpuinterop/dxgi"
)

// Suitability scores an adapter. Zero rejects it; higher scores rank
// better.
type Suitability func(AdapterInfo) int

// AnyAdapter accepts every adapter with the same score.
func AnyAdapter(AdapterInfo) int { return 1 }

// PreferDedicatedMemory scores adapters by dedicated video memory in MiB.
func PreferDedicatedMemory(a AdapterInfo) int {
	return int(a.Desc.DedicatedVideoMem>>20) + 1
}

type rankedAdapter struct {
	info  AdapterInfo
	score int
}

// RankAdapters returns the adapters accepted by suit, best first. Software
// adapters always rank below hardware ones; ties keep enumeration order.
func RankAdapters(drv Driver, suit Suitability) ([]AdapterInfo, error) {
	all, err := drv.Adapters()
	if err != nil {
		return nil, fmt.Errorf("d3d12: enumerate adapters: %w", err)
	}
	ranked := make([]rankedAdapter, 0, len(all))
	for _, a := range all {
		if s := suit(a); s > 0 {
			ranked = append(ranked, rankedAdapter{info: a, score: s})
		}
	}
	slices.SortStableFunc(ranked, func(x, y rankedAdapter) int {
		if xs, ys := x.info.Desc.IsSoftware(), y.info.Desc.IsSoftware(); xs != ys {
			if xs {
				return 1
			}
			return -1
		}
		return y.score - x.score
	})
	out := make([]AdapterInfo, len(ranked))
	for i, r := range ranked {
		out[i] = r.info
	}
	return out, nil
}

// ChooseAdapter returns the best adapter accepted by suit.
func ChooseAdapter(drv Driver, suit Suitability) (AdapterInfo, error) {
	ranked, err := RankAdapters(drv, suit)
	if err != nil {
		return AdapterInfo{}, err
	}
	if len(ranked) == 0 {
		return AdapterInfo{}, gpuinterop.ErrNoMatchingAdapter
	}
	return ranked[0], nil
}

// FindAdapter returns the adapter with the given LUID.
func FindAdapter(drv Driver, luid dxgi.LUID) (AdapterInfo, error) {
	all, err := drv.Adapters()
	if err != nil {
		return AdapterInfo{}, fmt.Errorf("d3d12: enumerate adapters: %w", err)
	}
	for _, a := range all {
		if a.Desc.LUID == luid {
			return a, nil
		}
	}
	return AdapterInfo{}, fmt.Errorf("d3d12: LUID %s: %w", luid, gpuinterop.ErrNoMatchingAdapter)
}

// CreateMatchingDevice creates a device on the adapter with the given LUID
// at the highest of levels it supports.
func CreateMatchingDevice(drv Driver, luid dxgi.LUID, levels []FeatureLevel, opts ...DeviceOption) (*Device, error) {
	adapter, err := FindAdapter(drv, luid)
	if err != nil {
		return nil, err
	}
	sorted := slices.Clone(levels)
	slices.SortFunc(sorted, func(a, b FeatureLevel) int { return int(b) - int(a) })
	sorted = slices.Compact(sorted)

	for _, level := range sorted {
		dev, err := NewDevice(drv, adapter, level, opts...)
		if err == nil {
			return dev, nil
		}
		if !errors.Is(err, gpuinterop.ErrUnsupportedFeatureLevel) {
			return nil, err
		}
		gpuinterop.Logger().Debug("d3d12: feature level unsupported",
			"adapter", adapter.Desc.Name, "level", level)
	}
	return nil, fmt.Errorf("d3d12: adapter %q supports none of %v: %w",
		adapter.Desc.Name, sorted, gpuinterop.ErrUnsupportedFeatureLevel)
}
