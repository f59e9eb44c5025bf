// Package ingest generates and stores AI explanations for the whole dataset
// in the background, resuming where an interrupted run stopped.
package ingest

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/japaniel/thirukkural/pkg/ai"
	"github.com/japaniel/thirukkural/pkg/db"
	"github.com/japaniel/thirukkural/pkg/kural"
)

// DefaultRun names the progress checkpoint row.
const DefaultRun = "explanations"

// Explainer is the part of ai.Explainer the Warmer needs.
type Explainer interface {
	Explain(ctx context.Context, k kural.Kural) (ai.Explanation, error)
}

// Stats summarises a warm-up run.
type Stats struct {
	Total     int
	Stored    int
	Skipped   int
	Malformed int
	Failed    int
}

// Warmer fills the explanations table.
type Warmer struct {
	DB        *sql.DB
	Explainer Explainer
	Run       string
	Workers   int
	BatchSize int
	Logger    *zap.Logger
	// OnProgress is called with the number of kurals handled so far.
	OnProgress func(done, total int)
	// PoolFactory lets tests replace the worker pool.
	PoolFactory func(workers, queue int) Pool
}

func NewWarmer(conn *sql.DB, e Explainer, logger *zap.Logger) *Warmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Warmer{
		DB:        conn,
		Explainer: e,
		Run:       DefaultRun,
		Workers:   4,
		BatchSize: 10,
		Logger:    logger,
	}
}

type result struct {
	index int
	kural kural.Kural
	exp   ai.Explanation
	err   error
}

// Reset clears the checkpoint so the next run starts from the first kural.
func (w *Warmer) Reset() error {
	return db.UpdateProgress(w.DB, w.Run, 0)
}

// Warm explains every kural that has neither a stored explanation nor a
// number at or below the checkpoint. Work runs concurrently; results are
// committed in input order so the checkpoint only ever covers a contiguous
// prefix. Malformed replies are skipped, a missing API key aborts the run.
func (w *Warmer) Warm(ctx context.Context, kurals []kural.Kural) (Stats, error) {
	stats := Stats{Total: len(kurals)}

	last, err := db.GetProgress(w.DB, w.Run)
	if err != nil {
		return stats, fmt.Errorf("read checkpoint: %w", err)
	}
	done, err := db.ExplainedNumbers(w.DB)
	if err != nil {
		return stats, fmt.Errorf("read stored explanations: %w", err)
	}

	var todo []kural.Kural
	for _, k := range kurals {
		if k.Number <= last || done[k.Number] {
			stats.Skipped++
			continue
		}
		todo = append(todo, k)
	}
	if last > 0 {
		w.Logger.Info("resuming warm-up", zap.Int("checkpoint", last), zap.Int("remaining", len(todo)))
	}
	if len(todo) == 0 {
		return stats, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := w.Workers
	if workers <= 0 {
		workers = 1
	}
	var pool Pool
	if w.PoolFactory != nil {
		pool = w.PoolFactory(workers, workers*2)
	} else {
		pool = NewWorkerPool(workers, workers*2)
	}
	pool.Start(ctx)

	bw := NewBatchWriter(w.DB, w.BatchSize, 200*time.Millisecond)
	bw.OnError = func(err error) {
		w.Logger.Error("batch commit failed", zap.Error(err))
		cancel()
	}

	results := make(chan result, workers*2)
	consumed := make(chan error, 1)
	var mu sync.Mutex // guards stats while the consumer runs

	go func() {
		consumed <- w.consume(ctx, cancel, results, todo, bw, &stats, &mu)
	}()

	var submitErr error
	for i, k := range todo {
		err := pool.SubmitCtx(ctx, func(ctx context.Context) error {
			exp, err := w.Explainer.Explain(ctx, k)
			select {
			case results <- result{index: i, kural: k, exp: exp, err: err}:
			case <-ctx.Done():
			}
			return err
		})
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, ErrPoolClosed) {
				submitErr = fmt.Errorf("submit kural %d: %w", k.Number, err)
			}
			cancel()
			break
		}
	}

	// Workers are gone once Close returns, so nothing sends on results after it.
	pool.Close()
	close(results)

	runErr := <-consumed
	// A commit failure cancels ctx, so it outranks the cancellation it caused.
	if err := bw.Close(); err != nil && (runErr == nil || errors.Is(runErr, context.Canceled)) {
		runErr = err
	}
	if submitErr != nil && (runErr == nil || errors.Is(runErr, context.Canceled)) {
		runErr = submitErr
	}

	mu.Lock()
	defer mu.Unlock()
	w.Logger.Info("warm-up finished",
		zap.Int("stored", stats.Stored),
		zap.Int("skipped", stats.Skipped),
		zap.Int("malformed", stats.Malformed),
		zap.Int("failed", stats.Failed),
		zap.Error(runErr))
	return stats, runErr
}

// consume reorders results and submits them to bw in input order.
func (w *Warmer) consume(ctx context.Context, cancel context.CancelFunc, results <-chan result, todo []kural.Kural, bw *BatchWriter, stats *Stats, mu *sync.Mutex) error {
	pending := make(map[int]result)
	next := 0
	// checkpointing stops at the first transient failure so that kural is retried.
	checkpointing := true

	for res := range results {
		if errors.Is(res.err, ai.ErrMissingAPIKey) {
			cancel()
			return res.err
		}
		pending[res.index] = res

		for {
			r, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++

			var write WriteFunc
			mu.Lock()
			switch {
			case r.err == nil:
				stats.Stored++
				write = w.storeWrite(r, checkpointing)
			case errors.Is(r.err, ai.ErrMalformedResponse):
				stats.Malformed++
				if checkpointing {
					write = w.checkpointWrite(r.kural.Number)
				}
			default:
				stats.Failed++
				checkpointing = false
				w.Logger.Warn("explanation failed", zap.Int("kural", r.kural.Number), zap.Error(r.err))
			}
			handled := stats.Stored + stats.Malformed + stats.Failed
			mu.Unlock()

			if write != nil {
				if err := bw.Submit(write); err != nil {
					cancel()
					return err
				}
			}
			if w.OnProgress != nil {
				w.OnProgress(handled, len(todo))
			}
		}
	}
	if err := ctx.Err(); err != nil && next < len(todo) {
		return err
	}
	return nil
}

func (w *Warmer) storeWrite(r result, checkpoint bool) WriteFunc {
	return func(ctx context.Context, tx *sql.Tx) error {
		payload, err := json.Marshal(r.exp)
		if err != nil {
			return err
		}
		if err := db.SaveExplanation(tx, r.kural.Number, r.exp.Model, string(payload)); err != nil {
			return fmt.Errorf("store kural %d: %w", r.kural.Number, err)
		}
		if checkpoint {
			return db.UpdateProgress(tx, w.Run, r.kural.Number)
		}
		return nil
	}
}

func (w *Warmer) checkpointWrite(number int) WriteFunc {
	return func(ctx context.Context, tx *sql.Tx) error {
		return db.UpdateProgress(tx, w.Run, number)
	}
}
