package worker

import "time"

// syncOperations performs the periodic full chain sync against the
// known peers.
func (w *Worker) syncOperations() {
	w.evHandler("worker: syncOperations: G started")
	defer w.evHandler("worker: syncOperations: G completed")

	ticker := time.NewTicker(syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !w.isShutdown() {
				result := w.state.Sync()
				w.evHandler("worker: syncOperations: updated[%t] reason[%s]", result.Updated, result.Reason)
			}
		case <-w.shut:
			w.evHandler("worker: syncOperations: received shut signal")
			return
		}
	}
}
