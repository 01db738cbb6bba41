package services

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"twister-backend/internal/metrics"
)

// WalletReader is the submitting wallet of one network.
type WalletReader interface {
	From() common.Address
	Balance(ctx context.Context) (*big.Int, error)
}

// MonitoringService periodically refreshes database and wallet gauges.
type MonitoringService struct {
	db      *gorm.DB
	wallets map[string]WalletReader
	logger  *logrus.Logger

	dbInterval      time.Duration
	balanceInterval time.Duration
	stopCh          chan struct{}
	wg              sync.WaitGroup
}

// NewMonitoringService db and wallets may be empty; the matching loop is then skipped.
func NewMonitoringService(db *gorm.DB, wallets map[string]WalletReader, logger *logrus.Logger) *MonitoringService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &MonitoringService{
		db:              db,
		wallets:         wallets,
		logger:          logger,
		dbInterval:      10 * time.Second,
		balanceInterval: 60 * time.Second,
		stopCh:          make(chan struct{}),
	}
}

// Start launches the monitoring loops
func (m *MonitoringService) Start() {
	if m.db != nil {
		m.wg.Add(1)
		go m.loop(m.dbInterval, m.updateDatabaseMetrics)
	}
	if len(m.wallets) > 0 {
		m.wg.Add(1)
		go m.loop(m.balanceInterval, m.updateBalances)
	}
	m.logger.Info("[Monitoring] started")
}

// Stop stops the monitoring loops
func (m *MonitoringService) Stop() {
	close(m.stopCh)
	m.wg.Wait()
	m.logger.Info("[Monitoring] stopped")
}

func (m *MonitoringService) loop(interval time.Duration, tick func()) {
	defer m.wg.Done()

	tick()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			tick()
		}
	}
}

func (m *MonitoringService) updateDatabaseMetrics() {
	sqlDB, err := m.db.DB()
	if err != nil {
		metrics.DBConnectionStatus.Set(0)
		return
	}

	stats := sqlDB.Stats()
	metrics.DBConnectionOpen.Set(float64(stats.OpenConnections))
	metrics.DBConnectionInUse.Set(float64(stats.InUse))

	if err := sqlDB.Ping(); err != nil {
		metrics.DBConnectionStatus.Set(0)
	} else {
		metrics.DBConnectionStatus.Set(1)
	}
}

func (m *MonitoringService) updateBalances() {
	for network, wallet := range m.wallets {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		balance, err := wallet.Balance(ctx)
		cancel()
		if err != nil {
			m.logger.WithFields(logrus.Fields{
				"network": network,
				"error":   err.Error(),
			}).Warn("[Monitoring] failed to read wallet balance")
			continue
		}
		value, _ := new(big.Float).SetInt(balance).Float64()
		metrics.WalletBalance.WithLabelValues(network, wallet.From().Hex()).Set(value)
	}
}
