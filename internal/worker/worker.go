// Package worker runs expensive portfolio recalculations on a background
// goroutine. Callers communicate by message passing only: each dispatch
// returns a single-resolution handle keyed by a request id, and the worker
// never shares mutable state with its callers.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"portfolio-engine/internal/domain"
)

// Kind identifies a recalculation job type.
type Kind string

const (
	// KindAll rebuilds the full daily history from the entire ledger.
	KindAll Kind = "calculateAll"
	// KindIntraday computes one current portfolio value sample.
	KindIntraday Kind = "calculateIntraday"
)

// Errors returned by the worker.
var (
	ErrClosed      = errors.New("worker closed")
	ErrUnknownKind = errors.New("unknown job kind")
)

// Request carries the input snapshot for one recalculation job. Slices must
// be snapshots owned by the request; the worker reads them concurrently
// with the caller's other work.
type Request struct {
	ID           string // assigned on dispatch when empty
	Kind         Kind
	Transactions []*domain.Transaction
	Definitions  []*domain.AssetDefinition
	Positions    []*domain.Position
	Now          time.Time
}

// Response is the worker's answer to one request.
type Response struct {
	ID       string
	Kind     Kind
	History  []*domain.HistoryPoint
	Intraday *domain.IntradayPoint
	Err      error
}

// Handle is a single-resolution future for one dispatched request.
type Handle struct {
	id   string
	once sync.Once
	ch   chan Response
}

// NewHandle creates an unresolved handle for the given request id.
func NewHandle(id string) *Handle {
	return &Handle{id: id, ch: make(chan Response, 1)}
}

// ID returns the request id the handle is keyed by.
func (h *Handle) ID() string {
	return h.id
}

// Resolve delivers the response. Only the first call has any effect.
func (h *Handle) Resolve(resp Response) {
	h.once.Do(func() {
		h.ch <- resp
		close(h.ch)
	})
}

// Await blocks until the response is delivered or ctx is done.
func (h *Handle) Await(ctx context.Context) (Response, error) {
	select {
	case resp, ok := <-h.ch:
		if !ok {
			return Response{}, fmt.Errorf("handle %s already consumed", h.id)
		}
		return resp, nil
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

// pending pairs a request with its handle inside the worker queue.
type pending struct {
	req    Request
	handle *Handle
}

// Worker processes recalculation jobs sequentially on one goroutine.
// Sequential processing is what guarantees in-order delivery per key.
type Worker struct {
	queue  chan pending
	done   chan struct{}
	wg     sync.WaitGroup
	logger *log.Logger

	closeOnce sync.Once
}

// New creates and starts a worker. A nil logger disables logging.
func New(logger *log.Logger) *Worker {
	w := &Worker{
		queue:  make(chan pending, 16),
		done:   make(chan struct{}),
		logger: logger,
	}
	w.wg.Add(1)
	go w.loop()
	return w
}

// Dispatch queues a job and returns its handle. Blocks only while the
// queue is full; the returned handle resolves asynchronously.
func (w *Worker) Dispatch(ctx context.Context, req Request) (*Handle, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Now.IsZero() {
		req.Now = time.Now()
	}

	h := NewHandle(req.ID)

	select {
	case <-w.done:
		return nil, ErrClosed
	default:
	}

	select {
	case w.queue <- pending{req: req, handle: h}:
		return h, nil
	case <-w.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the worker. Queued jobs resolve with ErrClosed.
func (w *Worker) Close() {
	w.closeOnce.Do(func() {
		close(w.done)
	})
	w.wg.Wait()
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case p := <-w.queue:
			p.handle.Resolve(w.process(p.req))
		case <-w.done:
			// Drain the queue so no caller awaits forever.
			for {
				select {
				case p := <-w.queue:
					p.handle.Resolve(Response{ID: p.req.ID, Kind: p.req.Kind, Err: ErrClosed})
				default:
					return
				}
			}
		}
	}
}

// process executes one job.
func (w *Worker) process(req Request) Response {
	start := time.Now()
	resp := Response{ID: req.ID, Kind: req.Kind}

	switch req.Kind {
	case KindAll:
		resp.History = BuildDailyHistory(req.Transactions, req.Definitions, req.Now)
		resp.Intraday = CurrentSample(req.Positions, req.Now)
	case KindIntraday:
		resp.Intraday = CurrentSample(req.Positions, req.Now)
	default:
		resp.Err = fmt.Errorf("%w: %q", ErrUnknownKind, req.Kind)
	}

	w.logf("job %s (%s) finished in %s", req.ID, req.Kind, time.Since(start))
	return resp
}

func (w *Worker) logf(format string, args ...any) {
	if w.logger != nil {
		w.logger.Printf(format, args...)
	}
}
