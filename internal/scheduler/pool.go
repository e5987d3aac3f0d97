// Package scheduler runs per-symbol fetch tasks on a bounded worker pool
// with randomized pacing and a shared cooldown gate.
package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"equitysync/internal/model"
)

// Task processes one symbol and reports its outcome.
type Task func(ctx context.Context, sym model.SymbolRecord) model.TaskResult

// Options tunes pool concurrency and pacing.
type Options struct {
	// Workers is the number of concurrent fetchers. Values below 1 run a
	// single worker.
	Workers int
	// MinDelay and MaxDelay bound the random pre-task jitter each worker
	// sleeps, keeping request timing irregular.
	MinDelay time.Duration
	MaxDelay time.Duration
	// CooldownEvery triggers a shared pause after that many successful
	// fetches across all workers. Zero disables cooldowns.
	CooldownEvery int
	// Cooldown is the length of the shared pause.
	Cooldown time.Duration
}

// Pool dispatches symbols to workers and streams results back unordered.
type Pool struct {
	opts   Options
	logger *zap.Logger
}

func NewPool(opts Options, logger *zap.Logger) *Pool {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.MaxDelay < opts.MinDelay {
		opts.MaxDelay = opts.MinDelay
	}
	return &Pool{opts: opts, logger: logger}
}

// Run fans the symbols out over the pool and returns a channel carrying
// exactly one result per symbol. The channel closes once every worker has
// drained. Cancelling ctx marks the remaining symbols as errors rather than
// dropping them, so the aggregate stays complete.
func (p *Pool) Run(ctx context.Context, symbols []model.SymbolRecord, task Task) <-chan model.TaskResult {
	tasks := make(chan model.SymbolRecord)
	results := make(chan model.TaskResult, p.opts.Workers)

	gate := &cooldownGate{
		every:  p.opts.CooldownEvery,
		pause:  p.opts.Cooldown,
		logger: p.logger,
	}

	var wg sync.WaitGroup
	for i := 0; i < p.opts.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.worker(ctx, id, tasks, results, task, gate)
		}(i)
	}

	go func() {
		defer close(tasks)
		for _, sym := range symbols {
			select {
			case tasks <- sym:
			case <-ctx.Done():
				// Report the undistributed remainder so callers still see
				// one result per symbol.
				for _, rest := range symbols[indexOf(symbols, sym):] {
					results <- model.TaskResult{
						Symbol: rest.Symbol,
						Status: model.TaskError,
						Detail: ctx.Err().Error(),
					}
				}
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

func (p *Pool) worker(ctx context.Context, id int, tasks <-chan model.SymbolRecord, results chan<- model.TaskResult, task Task, gate *cooldownGate) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)))

	for sym := range tasks {
		gate.wait()

		if delay := p.jitter(rng); delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
			}
		}

		result := p.safeRun(ctx, task, sym)
		if result.Status == model.TaskSuccess {
			gate.recordSuccess()
		}
		results <- result
	}
}

// safeRun converts a panicking task into an error result so one bad symbol
// cannot take down the pool.
func (p *Pool) safeRun(ctx context.Context, task Task, sym model.SymbolRecord) (result model.TaskResult) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Task panicked",
				zap.String("symbol", sym.Symbol),
				zap.Any("panic", r))
			result = model.TaskResult{
				Symbol: sym.Symbol,
				Status: model.TaskError,
				Detail: fmt.Sprintf("task panic: %v", r),
			}
		}
	}()
	return task(ctx, sym)
}

func (p *Pool) jitter(rng *rand.Rand) time.Duration {
	if p.opts.MaxDelay <= 0 {
		return 0
	}
	span := p.opts.MaxDelay - p.opts.MinDelay
	if span <= 0 {
		return p.opts.MinDelay
	}
	return p.opts.MinDelay + time.Duration(rng.Int63n(int64(span)))
}

func indexOf(symbols []model.SymbolRecord, sym model.SymbolRecord) int {
	for i := range symbols {
		if symbols[i].Symbol == sym.Symbol {
			return i
		}
	}
	return len(symbols)
}

// cooldownGate pauses all workers after every N successes. Workers hold the
// read side before starting a task; the worker that crosses the threshold
// takes the write side and sleeps, blocking the rest.
type cooldownGate struct {
	every     int
	pause     time.Duration
	logger    *zap.Logger
	successes atomic.Int64
	mu        sync.RWMutex
}

func (g *cooldownGate) wait() {
	if g.every <= 0 {
		return
	}
	g.mu.RLock()
	g.mu.RUnlock()
}

func (g *cooldownGate) recordSuccess() {
	if g.every <= 0 {
		return
	}
	n := g.successes.Add(1)
	if n%int64(g.every) != 0 {
		return
	}
	g.mu.Lock()
	g.logger.Info("Cooldown pause",
		zap.Int64("successes", n),
		zap.Duration("pause", g.pause))
	time.Sleep(g.pause)
	g.mu.Unlock()
}
