package opt

import "sync"

// maxRecordedRuns caps the in-memory fallback; the oldest run is evicted first.
const maxRecordedRuns = 256

type key struct {
	RunID string
	Algo  string
}

var (
	mu    sync.Mutex
	store = map[key]Metrics{}
	order []string // run ids, oldest first
)

func RecordMetrics(runID, algo string, m Metrics) {
	mu.Lock()
	defer mu.Unlock()
	if !hasRun(runID) {
		order = append(order, runID)
		for len(order) > maxRecordedRuns {
			dropRun(order[0])
			order = order[1:]
		}
	}
	store[key{RunID: runID, Algo: algo}] = m
}

func GetMetrics(runID string) map[string]Metrics {
	mu.Lock()
	defer mu.Unlock()
	out := map[string]Metrics{}
	for k, v := range store {
		if k.RunID == runID {
			out[k.Algo] = v
		}
	}
	return out
}

// ForgetMetrics drops everything recorded for runID.
func ForgetMetrics(runID string) {
	mu.Lock()
	defer mu.Unlock()
	dropRun(runID)
	for i, id := range order {
		if id == runID {
			order = append(order[:i], order[i+1:]...)
			break
		}
	}
}

func hasRun(runID string) bool {
	for _, id := range order {
		if id == runID {
			return true
		}
	}
	return false
}

func dropRun(runID string) {
	for k := range store {
		if k.RunID == runID {
			delete(store, k)
		}
	}
}
