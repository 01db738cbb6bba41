package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"twister-backend/internal/clients"
	"twister-backend/internal/commitment"
	"twister-backend/internal/config"
	"twister-backend/internal/db"
	"twister-backend/internal/ledger"
	"twister-backend/internal/merkle"
	"twister-backend/internal/proofinput"
	"twister-backend/internal/repository"
	"twister-backend/internal/services"
)

// ServiceContainer holds every long-lived component of one network.
type ServiceContainer struct {
	Config      *config.Config
	Logger      *logrus.Logger
	NetworkName string
	Network     *config.NetworkConfig

	// Storage; DB is nil when leaves and operations are kept in memory
	DB         *gorm.DB
	LeafStore  ledger.LeafStore
	Operations repository.OperationRepository

	// Chain
	EthClient *ethclient.Client
	Twister   *clients.TwisterClient

	// Messaging, optional
	NATSClient *clients.NATSClient

	// Accounting core
	Codec        *commitment.Codec
	TreeBuilder  *merkle.Builder
	InputBuilder *proofinput.Builder
	Ledger       *ledger.Ledger
	Prover       services.Prover

	// Services
	Coordinator          *services.WithdrawalCoordinator
	TreeService          *services.TreeService
	WebSocketPushService *services.WebSocketPushService
	LedgerSyncService    *services.LedgerSyncService
	MonitoringService    *services.MonitoringService

	stopOnce sync.Once
}

// Global service container instance
var Container *ServiceContainer
var containerOnce sync.Once

// InitializeContainer builds the process-wide container once.
func InitializeContainer(ctx context.Context, cfg *config.Config, networkName string, logger *logrus.Logger) (*ServiceContainer, error) {
	var initErr error
	containerOnce.Do(func() {
		Container, initErr = NewServiceContainer(ctx, cfg, networkName, logger)
	})
	if initErr != nil {
		return nil, initErr
	}
	if Container == nil {
		return nil, fmt.Errorf("service container failed to initialize earlier")
	}
	return Container, nil
}

// NewServiceContainer wires storage, chain, messaging, the accounting core and the services.
// An empty networkName selects blockchain.default_network.
func NewServiceContainer(ctx context.Context, cfg *config.Config, networkName string, logger *logrus.Logger) (*ServiceContainer, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	network, err := cfg.Network(networkName)
	if err != nil {
		return nil, err
	}
	if networkName == "" {
		networkName = cfg.Blockchain.DefaultNetwork
	}

	c := &ServiceContainer{
		Config:      cfg,
		Logger:      logger,
		NetworkName: networkName,
		Network:     network,
	}

	logger.WithField("network", networkName).Info("[Container] initializing")

	if err := c.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if err := c.initChain(ctx); err != nil {
		c.Stop()
		return nil, fmt.Errorf("failed to initialize chain client: %w", err)
	}
	c.initMessaging()
	if err := c.initCore(); err != nil {
		c.Stop()
		return nil, fmt.Errorf("failed to initialize accounting core: %w", err)
	}
	c.initServices()

	logger.WithFields(logrus.Fields{
		"network":  networkName,
		"contract": c.Twister.Address().Hex(),
		"source":   cfg.Ledger.Source,
		"prover":   cfg.Prover.Mode,
		"database": c.DB != nil,
		"nats":     c.NATSClient != nil,
	}).Info("[Container] initialized")
	return c, nil
}

func (c *ServiceContainer) initStorage() error {
	if c.Config.Database.DSN == "" {
		c.Logger.Warn("[Container] no database configured, leaves and operations are kept in memory")
		c.LeafStore = ledger.NewMemoryStore()
		c.Operations = repository.NewMemoryOperationRepository()
		return nil
	}
	if err := db.InitDB(c.Config.Database); err != nil {
		return err
	}
	c.DB = db.DB
	c.LeafStore = repository.NewLeafRepository(c.DB, c.NetworkName)
	c.Operations = repository.NewOperationRepository(c.DB)
	return nil
}

func (c *ServiceContainer) initChain(ctx context.Context) error {
	client, err := clients.DialNetwork(ctx, c.Network)
	if err != nil {
		return err
	}
	c.EthClient = client

	twister, err := clients.NewTwisterClient(client, c.Network, c.Logger)
	if err != nil {
		return err
	}
	c.Twister = twister
	return nil
}

// initMessaging NATS is optional; a failed connection is logged and skipped.
func (c *ServiceContainer) initMessaging() {
	if c.Config.NATS.URL == "" {
		return
	}
	nc, err := clients.NewNATSClient(c.Config.NATS, c.NetworkName, c.Logger)
	if err != nil {
		c.Logger.WithError(err).Warn("[Container] NATS unavailable, events will not be published")
		return
	}
	c.NATSClient = nc
}

func (c *ServiceContainer) initCore() error {
	c.Codec = commitment.NewCodec(commitment.NewPoseidonHasher())

	treeCfg := merkle.DefaultConfig()
	treeCfg.Depth = c.Config.Tree.Depth
	treeCfg.SortPairs = c.Config.Tree.SortPairs
	tree, err := merkle.NewBuilder(treeCfg, c.Codec.Hasher())
	if err != nil {
		return err
	}
	c.TreeBuilder = tree
	c.InputBuilder = proofinput.NewBuilder(c.Codec, tree)

	var source ledger.EventSource
	switch c.Config.Ledger.Source {
	case "subgraph":
		source = ledger.NewSubgraphSource(c.Config.Subgraph.URL, c.Config.Subgraph.APIKey)
	default:
		source = ledger.NewChainSource(c.EthClient, c.NetworkName, c.Twister.Address(), c.Network.StartBlock).
			WithBlockRange(c.Network.BlockRange).
			WithConfirmations(c.Network.Confirmations)
	}
	opts := []ledger.Option{
		ledger.WithCapacity(treeCfg.Capacity()),
		ledger.WithLogger(c.Logger),
	}
	if c.NATSClient != nil {
		opts = append(opts, ledger.WithPublisher(c.NATSClient))
	}
	c.Ledger = ledger.New(source, c.LeafStore, opts...)

	switch c.Config.Prover.Mode {
	case "local":
		c.Prover = clients.NewLocalProver(c.Config.Prover.Local, nil, c.Logger)
	default:
		remote := c.Config.Prover.Remote
		if remote.BaseURL == "" {
			return fmt.Errorf("prover.remote.baseUrl is required in remote mode")
		}
		c.Prover = clients.NewRemoteProverClient(remote.BaseURL, remote.Encoding, time.Duration(remote.Timeout)*time.Second, c.Logger)
	}
	return nil
}

func (c *ServiceContainer) initServices() {
	c.WebSocketPushService = services.NewWebSocketPushService(c.Logger)

	opts := []services.CoordinatorOption{
		services.WithOperationRepository(c.Operations),
		services.WithBroadcaster(c.WebSocketPushService),
		services.WithNetwork(c.NetworkName),
		services.WithCoordinatorLogger(c.Logger),
	}
	if c.NATSClient != nil {
		opts = append(opts, services.WithEventPublisher(c.NATSClient))
	}
	c.Coordinator = services.NewWithdrawalCoordinator(c.InputBuilder, c.Ledger, c.Prover, c.Twister, opts...)
	c.TreeService = services.NewTreeService(c.Ledger, c.Codec, c.TreeBuilder, c.Twister)

	interval := time.Duration(c.Config.Ledger.SyncInterval) * time.Second
	c.LedgerSyncService = services.NewLedgerSyncService(c.Ledger, interval, c.Logger)

	wallets := map[string]services.WalletReader{}
	if c.Network.PrivateKey != "" {
		wallets[c.NetworkName] = c.Twister
	}
	c.MonitoringService = services.NewMonitoringService(c.DB, wallets, c.Logger)
}

// StartBackground launches the ledger sync loop and monitoring.
func (c *ServiceContainer) StartBackground() {
	c.LedgerSyncService.Start()
	c.MonitoringService.Start()
}

// Stop releases every connection. Background loops must have been started with StartBackground.
func (c *ServiceContainer) Stop() {
	c.stopOnce.Do(func() {
		if c.WebSocketPushService != nil {
			c.WebSocketPushService.Close()
		}
		if c.NATSClient != nil {
			c.NATSClient.Close()
		}
		if c.EthClient != nil {
			c.EthClient.Close()
		}
		if c.DB != nil {
			if err := db.Close(); err != nil {
				c.Logger.WithError(err).Warn("[Container] failed to close database")
			}
		}
		c.Logger.Info("[Container] stopped")
	})
}

// StopBackground stops the loops started by StartBackground.
func (c *ServiceContainer) StopBackground() {
	c.LedgerSyncService.Stop()
	c.MonitoringService.Stop()
}
