// Ledger Sync Service
// Keeps the stored leaf ledger in step with the chain between operations
package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// LedgerSyncService periodically pulls new AddLeaf events into the store.
// It never touches a snapshot already handed to an operation.
type LedgerSyncService struct {
	ledger   LedgerSyncer
	interval time.Duration
	timeout  time.Duration
	logger   *logrus.Logger

	stopChan chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

// NewLedgerSyncService creates a sync loop. interval <= 0 falls back to 30s.
func NewLedgerSyncService(ledger LedgerSyncer, interval time.Duration, logger *logrus.Logger) *LedgerSyncService {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LedgerSyncService{
		ledger:   ledger,
		interval: interval,
		timeout:  2 * time.Minute,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start runs an initial sync and then one per interval.
func (s *LedgerSyncService) Start() {
	s.logger.WithField("interval", s.interval.String()).Info("[LedgerSync] starting")
	s.wg.Add(1)
	go s.run()
}

// Stop waits for the loop to exit. Safe to call more than once.
func (s *LedgerSyncService) Stop() {
	s.once.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
	s.logger.Info("[LedgerSync] stopped")
}

func (s *LedgerSyncService) run() {
	defer s.wg.Done()

	s.SyncOnce()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.SyncOnce()
		}
	}
}

// SyncOnce runs one bounded sync. Failures are logged and retried on the next tick.
func (s *LedgerSyncService) SyncOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	snapshot, err := s.ledger.Sync(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("[LedgerSync] sync failed")
		return
	}
	s.logger.WithField("leaves", snapshot.Len()).Debug("[LedgerSync] sync complete")
}
