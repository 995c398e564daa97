package compute

import (
	"fmt"
	"strings"

	"github.com/gogpu/gpuinterop"
	"github.com/gogpu/gpuinterop/dxgi"
)

// AdapterIdentity is what the host API knows about its adapter.
type AdapterIdentity struct {
	LUID dxgi.LUID

	// UUID is optional; set it when the host side can report one.
	UUID *[16]byte

	Name string
}

// MatchDevice finds the compute device of b that is the same physical GPU
// as id. It tries, in order:
//
//  1. LUID equality;
//  2. UUID equality, when id carries a UUID;
//  3. for backends with unreliable LUIDs, the only device if there is
//     exactly one;
//  4. for backends with unreliable LUIDs, a unique device with the same
//     name.
//
// Level Zero devices whose driver lacks LevelZeroLUIDExtension are skipped.
// Several devices sharing the adapter name count as no match.
func MatchDevice(b Backend, id AdapterIdentity) (DeviceInfo, error) {
	all, err := b.Devices()
	if err != nil {
		return DeviceInfo{}, fmt.Errorf("compute: %s: enumerate devices: %w", b.API(), err)
	}
	log := gpuinterop.Logger()

	candidates := make([]DeviceInfo, 0, len(all))
	for _, d := range all {
		if b.API() == APILevelZero && !d.HasExtension(LevelZeroLUIDExtension) {
			log.Warn("compute: skipping Level Zero driver without LUID extension",
				"device", d.Name, "driver", d.Driver)
			continue
		}
		candidates = append(candidates, d)
	}

	for _, d := range candidates {
		if d.HasLUID && d.LUID == id.LUID {
			return d, nil
		}
	}
	if id.UUID != nil {
		for _, d := range candidates {
			if d.HasUUID && d.UUID == *id.UUID {
				return d, nil
			}
		}
	}

	if b.UnreliableLUID() {
		if len(candidates) == 1 {
			log.Debug("compute: single-device fallback", "api", b.API(), "device", candidates[0].Name)
			return candidates[0], nil
		}
		var named []DeviceInfo
		for _, d := range candidates {
			if sameName(d.Name, id.Name) {
				named = append(named, d)
			}
		}
		switch len(named) {
		case 1:
			log.Debug("compute: name fallback", "api", b.API(), "device", named[0].Name)
			return named[0], nil
		case 0:
		default:
			log.Warn("compute: adapter name is ambiguous", "api", b.API(), "name", id.Name, "devices", len(named))
		}
	}
	return DeviceInfo{}, fmt.Errorf("compute: %s: LUID %s: %w", b.API(), id.LUID, gpuinterop.ErrNoMatchingDevice)
}

func sameName(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}
