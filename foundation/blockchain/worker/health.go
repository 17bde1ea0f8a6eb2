package worker

import "time"

// healthOperations monitors the health of the known peers on an
// independent cadence.
func (w *Worker) healthOperations() {
	w.evHandler("worker: healthOperations: G started")
	defer w.evHandler("worker: healthOperations: G completed")

	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !w.isShutdown() {
				w.runHealthOperation()
			}
		case <-w.shut:
			w.evHandler("worker: healthOperations: received shut signal")
			return
		}
	}
}

// runHealthOperation probes every known peer, marks the outcome and lets
// the peer set evict after repeated failures.
func (w *Worker) runHealthOperation() {
	w.evHandler("worker: runHealthOperation: started")
	defer w.evHandler("worker: runHealthOperation: completed")

	// Restored peer lists can carry entries that should never be probed.
	for _, removed := range w.state.PruneInvalidPeers() {
		w.evHandler("worker: runHealthOperation: pruned peer[%s]", removed)
	}

	for _, pr := range w.state.RetrieveKnownPeers() {
		stats, err := w.state.NetPeerStats(pr.URL)
		if err != nil {
			if evicted := w.state.MarkPeerUnhealthy(pr.URL); evicted {
				w.evHandler("worker: runHealthOperation: evicted peer[%s]", pr.URL)
			} else {
				w.evHandler("worker: runHealthOperation: unhealthy peer[%s]", pr.URL)
			}
			continue
		}

		w.state.MarkPeerHealthy(pr.URL, uint64(stats.TotalBlocks), stats.Difficulty)
	}
}
