// Package dispatch implements C3: a pool of single-threaded JS isolates
// that execute ad-tech-authored generateBid/scoreAd/reportWin/reportResult
// code under wrapper injection, with request batching, per-request
// timeouts, and best-effort cooperative cancellation (spec.md §4.3).
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/google/uuid"

	"github.com/golang/glog"
)

// DispatchRequest is one unit of work handed to the pool: the entry
// function name the wrapper exposes (e.g. "generateBidEntryFunction")
// plus its JSON-shaped arguments.
type DispatchRequest struct {
	ID            string
	EntryFunction string
	Args          []interface{}
	TimeoutMS     int
}

// DispatchResult is the outcome of one DispatchRequest.
type DispatchResult struct {
	ID      string
	Value   interface{}
	Logs    []string
	Err     error
	TimedOut bool
}

// ErrDispatchTimeout is reported on DispatchResult.Err when a request's
// entry function did not finish before its per-request deadline.
var ErrDispatchTimeout = fmt.Errorf("dispatch: timed out")

// Config controls pool sizing and the optional WASM helper feature flag.
type Config struct {
	NumWorkers       int
	QueueLen         int
	EnableWASMHelper bool
	WASMHelperBlob   []byte
}

type snapshot struct {
	version int64
	program *goja.Program
}

// Pool is the process-wide code dispatcher singleton. Workers are
// single-threaded goja isolates; LoadSync swaps the installed code
// snapshot without pausing in-flight batches, which keep running against
// whichever snapshot they captured at dispatch time (spec.md §4.3: "Concurrent
// dispatches continue to see the previously installed version until their
// batch completes").
type Pool struct {
	cfg     Config
	jobs    chan job
	wg      sync.WaitGroup
	mu      sync.RWMutex
	current *snapshot
	closed  chan struct{}
	workers []*worker
}

type job struct {
	req      DispatchRequest
	snapshot *snapshot
	resultCh chan<- DispatchResult
}

// Init starts the worker goroutines and returns the ready pool.
func Init(cfg Config) (*Pool, error) {
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 4
	}
	if cfg.QueueLen <= 0 {
		cfg.QueueLen = 64
	}

	p := &Pool{
		cfg:    cfg,
		jobs:   make(chan job, cfg.QueueLen),
		closed: make(chan struct{}),
	}

	for i := 0; i < cfg.NumWorkers; i++ {
		w := newWorker(i, cfg)
		p.workers = append(p.workers, w)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			w.run(p.jobs)
		}()
	}

	return p, nil
}

// LoadSync atomically installs an immutable snapshot of the wrapper+ad-tech
// code under an integer version tag.
func (p *Pool) LoadSync(version int64, blob string) error {
	prog, err := goja.Compile(fmt.Sprintf("adtech-v%d.js", version), blob, true)
	if err != nil {
		return fmt.Errorf("dispatch: compile snapshot v%d: %w", version, err)
	}

	p.mu.Lock()
	p.current = &snapshot{version: version, program: prog}
	p.mu.Unlock()

	glog.Infof("dispatch: installed code snapshot v%d", version)
	return nil
}

// BatchExecute dispatches every request to a free worker and blocks until
// all have finished or timed out, returning results in request order.
func (p *Pool) BatchExecute(ctx context.Context, requests []DispatchRequest) []DispatchResult {
	p.mu.RLock()
	snap := p.current
	p.mu.RUnlock()

	if snap == nil {
		results := make([]DispatchResult, len(requests))
		for i, req := range requests {
			results[i] = DispatchResult{ID: req.ID, Err: fmt.Errorf("dispatch: no code snapshot installed")}
		}
		return results
	}

	resultCh := make(chan DispatchResult, len(requests))
	for _, req := range requests {
		if req.ID == "" {
			req.ID = uuid.NewString()
		}
		select {
		case p.jobs <- job{req: req, snapshot: snap, resultCh: resultCh}:
		case <-ctx.Done():
			resultCh <- DispatchResult{ID: req.ID, Err: ctx.Err()}
		case <-p.closed:
			resultCh <- DispatchResult{ID: req.ID, Err: fmt.Errorf("dispatch: pool stopped")}
		}
	}

	byID := make(map[string]DispatchResult, len(requests))
	for i := 0; i < len(requests); i++ {
		r := <-resultCh
		byID[r.ID] = r
	}

	out := make([]DispatchResult, len(requests))
	for i, req := range requests {
		out[i] = byID[req.ID]
	}
	return out
}

// Stop drains in-flight work and shuts down every worker goroutine.
func (p *Pool) Stop() {
	close(p.closed)
	close(p.jobs)
	p.wg.Wait()

	for _, w := range p.workers {
		if w.wasm != nil {
			w.wasm.close()
		}
	}
}

func resolveTimeout(ms int) time.Duration {
	if ms <= 0 {
		return 250 * time.Millisecond
	}
	return time.Duration(ms) * time.Millisecond
}
