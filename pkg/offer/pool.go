package offer

import (
	"github.com/cuemby/flotilla/pkg/types"
)

// poolEntry tracks the unconsumed remainder of one offer resource.
type poolEntry struct {
	res       types.Resource
	remaining float64
	ports     []types.PortRange
}

// resourcePool provides allocation over one offer's resources, preferring
// resources already reserved for the framework's role over unreserved ones.
type resourcePool struct {
	reserved   []*poolEntry
	unreserved []*poolEntry
	volumes    []types.Resource
}

func newResourcePool(o *types.Offer, role string) *resourcePool {
	pool := &resourcePool{}
	for _, res := range o.Resources {
		if res.Reserved() && res.Role == role {
			if res.Name == "disk" && res.Volume != nil {
				pool.volumes = append(pool.volumes, res)
				continue
			}
			pool.reserved = append(pool.reserved, newPoolEntry(res))
			continue
		}
		if !res.Reserved() {
			pool.unreserved = append(pool.unreserved, newPoolEntry(res))
		}
		// Resources reserved for other roles are not usable.
	}
	return pool
}

func newPoolEntry(res types.Resource) *poolEntry {
	return &poolEntry{
		res:       res,
		remaining: res.Scalar,
		ports:     append([]types.PortRange(nil), res.Ranges...),
	}
}

// consumeScalar takes amount of the named scalar resource, reserved
// entries first. It returns the resource slices consumed, carrying the
// source entries' role and reservation, or ok=false if the pool cannot
// cover the amount.
func (p *resourcePool) consumeScalar(name string, amount float64) ([]types.Resource, bool) {
	if amount <= 0 {
		return nil, true
	}
	var consumed []types.Resource
	take := func(entries []*poolEntry) {
		for _, e := range entries {
			if amount <= 0 {
				return
			}
			if e.res.Name != name || e.remaining <= 0 {
				continue
			}
			portion := e.remaining
			if portion > amount {
				portion = amount
			}
			e.remaining -= portion
			amount -= portion
			slice := e.res
			slice.Scalar = portion
			slice.Ranges = nil
			consumed = append(consumed, slice)
		}
	}
	take(p.reserved)
	take(p.unreserved)
	if amount > 0 {
		return nil, false
	}
	return consumed, true
}

// consumePorts takes n individual ports, reserved entries first.
func (p *resourcePool) consumePorts(n int) ([]types.Resource, bool) {
	var consumed []types.Resource
	take := func(entries []*poolEntry) {
		for _, e := range entries {
			if n <= 0 {
				return
			}
			if e.res.Name != "ports" {
				continue
			}
			var picked []types.PortRange
			for i := range e.ports {
				for n > 0 && e.ports[i].Begin <= e.ports[i].End {
					port := e.ports[i].Begin
					e.ports[i].Begin++
					picked = append(picked, types.PortRange{Begin: port, End: port})
					n--
				}
			}
			if len(picked) > 0 {
				slice := e.res
				slice.Scalar = 0
				slice.Ranges = picked
				consumed = append(consumed, slice)
			}
		}
	}
	take(p.reserved)
	take(p.unreserved)
	if n > 0 {
		return nil, false
	}
	return consumed, true
}

// consumeUnreservedDisk takes amount of unreserved disk, reporting whether
// the pool could cover it. Used when a fresh reservation will be made.
func (p *resourcePool) consumeUnreservedDisk(amount float64) bool {
	for _, e := range p.unreserved {
		if amount <= 0 {
			break
		}
		if e.res.Name != "disk" || e.remaining <= 0 {
			continue
		}
		portion := e.remaining
		if portion > amount {
			portion = amount
		}
		e.remaining -= portion
		amount -= portion
	}
	return amount <= 0
}

// takeVolume claims the existing volume mounted at the given path, if any.
func (p *resourcePool) takeVolume(containerPath string) (types.Resource, bool) {
	for i, vol := range p.volumes {
		if vol.Volume.ContainerPath == containerPath {
			p.volumes = append(p.volumes[:i], p.volumes[i+1:]...)
			return vol, true
		}
	}
	return types.Resource{}, false
}

// takeVolumes claims every volume mounted at one of the given paths.
func (p *resourcePool) takeVolumes(paths map[string]bool) []types.Resource {
	var taken []types.Resource
	var kept []types.Resource
	for _, vol := range p.volumes {
		if paths[vol.Volume.ContainerPath] {
			taken = append(taken, vol)
		} else {
			kept = append(kept, vol)
		}
	}
	p.volumes = kept
	return taken
}
