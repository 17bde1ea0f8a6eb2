package worker

import (
	"math"
	"time"
)

// discoveryOperations handles finding new peers from the seed nodes. Runs
// back off exponentially while discovery keeps failing and reset on the
// first success.
func (w *Worker) discoveryOperations() {
	w.evHandler("worker: discoveryOperations: G started")
	defer w.evHandler("worker: discoveryOperations: G completed")

	timer := time.NewTimer(discoveryStartDelay)
	defer timer.Stop()

	var failures int

	schedule := func(ok bool) {
		if ok {
			failures = 0
		} else {
			failures++
		}
		timer.Reset(discoveryInterval(failures))
	}

	for {
		select {
		case <-timer.C:
			if w.isShutdown() {
				return
			}
			schedule(w.runDiscoveryOperation())
		case <-w.discovery:
			if !w.isShutdown() {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				schedule(w.runDiscoveryOperation())
			}
		case <-w.shut:
			w.evHandler("worker: discoveryOperations: received shut signal")
			return
		}
	}
}

// discoveryInterval applies the exponential backoff with a hard cap.
func discoveryInterval(failures int) time.Duration {
	interval := float64(discoveryBaseInterval) * math.Pow(1.5, float64(failures))
	if interval > float64(discoveryMaxInterval) {
		return discoveryMaxInterval
	}

	return time.Duration(interval)
}

// runDiscoveryOperation walks the seed nodes, announces this node,
// harvests second-degree peers, prunes what should not be in the set and
// finishes with one sync. The return reports whether any seed responded,
// and is true when no seeds are configured. When no seeds are configured
// or none responds, the run returns early without the prune and the sync.
func (w *Worker) runDiscoveryOperation() bool {
	w.evHandler("worker: runDiscoveryOperation: started")
	defer w.evHandler("worker: runDiscoveryOperation: completed")

	seeds := w.state.RetrieveSeeds()
	if len(seeds) == 0 {
		w.evHandler("worker: runDiscoveryOperation: no seeds configured")
		return true
	}

	// Phase 1: probe every seed.
	var healthySeeds []string
	for _, seed := range seeds {
		if _, err := w.state.NetPeerStats(seed); err != nil {
			w.evHandler("worker: runDiscoveryOperation: seed[%s]: ERROR: %s", seed, err)
			continue
		}
		healthySeeds = append(healthySeeds, seed)
	}

	if len(healthySeeds) == 0 {
		w.evHandler("worker: runDiscoveryOperation: no healthy seeds")
		return false
	}

	// Phase 2: announce ourselves to each healthy seed and harvest the
	// peers they know about. Every candidate gets a quick probe before
	// it is adopted.
	for _, seed := range healthySeeds {
		if err := w.state.AddKnownPeer(seed); err == nil {
			w.evHandler("worker: runDiscoveryOperation: adopted seed[%s]", seed)
		}

		if err := w.state.NetRegisterSelf(seed); err != nil {
			w.evHandler("worker: runDiscoveryOperation: register: seed[%s]: ERROR: %s", seed, err)
		}

		harvested, err := w.state.NetPeerList(seed)
		if err != nil {
			w.evHandler("worker: runDiscoveryOperation: peer list: seed[%s]: ERROR: %s", seed, err)
			continue
		}

		for _, candidate := range harvested {
			if candidate.URL == w.state.RetrieveHost() {
				continue
			}

			stats, err := w.state.NetPeerStats(candidate.URL)
			if err != nil {
				w.evHandler("worker: runDiscoveryOperation: candidate[%s]: unreachable", candidate.URL)
				continue
			}

			if err := w.state.AddKnownPeer(candidate.URL); err != nil {
				continue
			}

			w.state.MarkPeerHealthy(candidate.URL, uint64(stats.TotalBlocks), stats.Difficulty)
			w.evHandler("worker: runDiscoveryOperation: adopted peer[%s]", candidate.URL)
		}
	}

	// Phase 3: drop entries that never belonged in the set.
	for _, removed := range w.state.PruneInvalidPeers() {
		w.evHandler("worker: runDiscoveryOperation: pruned peer[%s]", removed)
	}

	// Phase 4: one sync against the refreshed peer set.
	result := w.state.Sync()
	w.evHandler("worker: runDiscoveryOperation: sync: updated[%t] reason[%s]", result.Updated, result.Reason)

	return true
}
