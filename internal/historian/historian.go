// internal/historian/historian.go is an asynchronous service that pops table action records
// from a Redis queue and persists them to PostgreSQL in batches.
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/dicetable/internal/cache"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Sink persists records. *database.Store implements it.
type Sink interface {
	InsertTableActions(ctx context.Context, records []cache.TableActionRecord) error
	MarkTableAbandoned(ctx context.Context, tableID uuid.UUID) (bool, error)
}

// Options tunes batching and the inactivity sweep. Zero values take defaults.
type Options struct {
	Queue         string
	BatchSize     int
	FlushDelay    time.Duration
	Inactivity    time.Duration
	SweepInterval time.Duration
	PopTimeout    time.Duration
}

// Service drains the action queue and marks tables abandoned when they go quiet.
type Service struct {
	rdb    *redis.Client
	sink   Sink
	opts   Options
	logger *logrus.Logger

	// lastActivity tracks table ID -> time.Time of the last record seen for open tables.
	lastActivity sync.Map

	batchMu sync.Mutex
	batch   []cache.TableActionRecord
}

// New builds a service.
func New(rdb *redis.Client, sink Sink, opts Options, logger *logrus.Logger) *Service {
	if opts.Queue == "" {
		opts.Queue = cache.DefaultQueueName
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if opts.FlushDelay <= 0 {
		opts.FlushDelay = 500 * time.Millisecond
	}
	if opts.Inactivity <= 0 {
		opts.Inactivity = 10 * time.Minute
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Minute
	}
	if opts.PopTimeout <= 0 {
		opts.PopTimeout = 3 * time.Second
	}
	return &Service{
		rdb:    rdb,
		sink:   sink,
		opts:   opts,
		logger: logger,
		batch:  make([]cache.TableActionRecord, 0, opts.BatchSize),
	}
}

// Run starts the two main loops and blocks until ctx is cancelled:
//  1. reading from the Redis queue, accumulating a batch and flushing it to the DB.
//  2. a periodic check for inactive tables.
func (s *Service) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.readLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		s.inactivityLoop(ctx)
	}()

	s.logger.WithField("queue", s.opts.Queue).Info("Historian started")
	wg.Wait()

	// drain what is already buffered
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Flush(flushCtx)
	s.logger.Info("Historian stopped")
}

func (s *Service) readLoop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.FlushDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Flush(ctx)
		default:
			// BLPop with a timeout so that cancellation and the ticker are observed
			res, err := s.rdb.BLPop(ctx, s.opts.PopTimeout, s.opts.Queue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					s.logger.WithError(err).Error("BLPop failed")
					time.Sleep(s.opts.FlushDelay)
				}
				continue
			}
			// res[0] is the queue name and res[1] the payload
			if len(res) < 2 {
				continue
			}
			s.handlePayload(ctx, res[1])
		}
	}
}

func (s *Service) handlePayload(ctx context.Context, payload string) {
	var rec cache.TableActionRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		s.logger.WithError(err).Warn("Invalid action record")
		return
	}
	if rec.TableID != uuid.Nil {
		switch rec.ActionType {
		case "win", "no_winner":
			s.lastActivity.Delete(rec.TableID)
		default:
			s.lastActivity.Store(rec.TableID, time.Now())
		}
	}
	if s.appendToBatch(rec) {
		s.Flush(ctx)
	}
}

// appendToBatch adds a record and reports whether the batch reached its threshold.
func (s *Service) appendToBatch(rec cache.TableActionRecord) bool {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	s.batch = append(s.batch, rec)
	return len(s.batch) >= s.opts.BatchSize
}

// Flush writes the current batch in a single transaction. A failed batch is logged and dropped.
func (s *Service) Flush(ctx context.Context) {
	s.batchMu.Lock()
	if len(s.batch) == 0 {
		s.batchMu.Unlock()
		return
	}
	records := make([]cache.TableActionRecord, len(s.batch))
	copy(records, s.batch)
	s.batch = s.batch[:0]
	s.batchMu.Unlock()

	if err := s.sink.InsertTableActions(ctx, records); err != nil {
		s.logger.WithError(err).WithField("count", len(records)).Error("Failed to flush table actions")
		return
	}
	s.logger.WithField("count", len(records)).Debug("Flushed table actions")
}

func (s *Service) inactivityLoop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.sweep(ctx, now)
		}
	}
}

// sweep marks every table idle for longer than the inactivity window as abandoned.
func (s *Service) sweep(ctx context.Context, now time.Time) {
	s.lastActivity.Range(func(key, val interface{}) bool {
		tableID, ok1 := key.(uuid.UUID)
		last, ok2 := val.(time.Time)
		if !ok1 || !ok2 || now.Sub(last) <= s.opts.Inactivity {
			return true
		}
		marked, err := s.sink.MarkTableAbandoned(ctx, tableID)
		if err != nil {
			s.logger.WithError(err).WithField("table", tableID).Error("Failed to mark table abandoned")
			return true
		}
		s.lastActivity.Delete(tableID)
		if marked {
			s.logger.WithField("table", tableID).Info("Marked table abandoned due to inactivity")
		}
		return true
	})
}
