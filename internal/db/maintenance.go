package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goran-ethernal/TzIndexor/internal/common"
	"github.com/goran-ethernal/TzIndexor/internal/logger"
	"github.com/goran-ethernal/TzIndexor/pkg/config"
)

// Pruner is a cleanup step run inside every maintenance window, e.g. trimming the block archive.
type Pruner func(ctx context.Context) error

type Maintenance interface {
	// Start begins background maintenance if enabled.
	Start(ctx context.Context) error
	// Stop stops background maintenance and waits for completion.
	Stop() error
	// AcquireOperationLock acquires a shared lock held for the duration of one block pass.
	// Returns an unlock function that must be called when the pass completes.
	AcquireOperationLock() func()
	// RegisterPruner adds a cleanup step to every maintenance run.
	RegisterPruner(name string, p Pruner)
	// GetMetrics returns current maintenance metrics.
	GetMetrics() MaintenanceMetrics
	// RunMaintenance performs database maintenance operations (for manual invocation).
	RunMaintenance(ctx context.Context) error
}

// NoOpMaintenance is used when maintenance is not configured.
type NoOpMaintenance struct{}

func (m *NoOpMaintenance) Start(ctx context.Context) error          { return nil }
func (m *NoOpMaintenance) Stop() error                              { return nil }
func (m *NoOpMaintenance) RunMaintenance(ctx context.Context) error { return nil }
func (m *NoOpMaintenance) AcquireOperationLock() func()             { return func() {} }
func (m *NoOpMaintenance) RegisterPruner(string, Pruner)            {}
func (m *NoOpMaintenance) GetMetrics() MaintenanceMetrics           { return MaintenanceMetrics{} }

type namedPruner struct {
	name string
	run  Pruner
}

// MaintenanceCoordinator serializes database maintenance against block passes.
// Passes take the read side of opLock, maintenance takes the write side,
// so a WAL checkpoint or VACUUM never observes a half-written block.
type MaintenanceCoordinator struct {
	db     *sql.DB
	config config.MaintenanceConfig
	dbPath string
	log    *logger.Logger

	opLock sync.RWMutex

	prunersLock sync.Mutex
	pruners     []namedPruner

	cancel context.CancelFunc
	wg     sync.WaitGroup

	metricsLock         sync.Mutex
	lastMaintenanceTime time.Time
	maintenanceCount    uint64
	lastMaintenanceErr  error
}

// NewMaintenanceCoordinator creates a new maintenance coordinator.
// A nil cfg yields a NoOpMaintenance.
func NewMaintenanceCoordinator(
	dbPath string,
	db *sql.DB,
	cfg *config.MaintenanceConfig,
	log *logger.Logger,
) Maintenance {
	if cfg == nil {
		return &NoOpMaintenance{}
	}

	return newMaintenanceCoordinator(dbPath, db, *cfg, log)
}

func newMaintenanceCoordinator(
	dbPath string,
	db *sql.DB,
	cfg config.MaintenanceConfig,
	log *logger.Logger,
) *MaintenanceCoordinator {
	return &MaintenanceCoordinator{
		db:     db,
		config: cfg,
		dbPath: dbPath,
		log:    log.WithComponent(common.ComponentMaintenance),
	}
}

// RegisterPruner adds a cleanup step run after the WAL checkpoint of every maintenance run.
func (m *MaintenanceCoordinator) RegisterPruner(name string, p Pruner) {
	m.prunersLock.Lock()
	defer m.prunersLock.Unlock()

	m.pruners = append(m.pruners, namedPruner{name: name, run: p})
}

// Start begins background maintenance if enabled.
func (m *MaintenanceCoordinator) Start(ctx context.Context) error {
	if !m.config.Enabled {
		m.log.Info("Background maintenance is disabled")
		return nil
	}

	ctx, m.cancel = context.WithCancel(ctx)

	if m.config.VacuumOnStartup {
		m.log.Info("Running startup maintenance")
		if err := m.RunMaintenance(ctx); err != nil {
			m.log.Warnf("Startup maintenance failed: %v", err)
		}
	}

	m.wg.Add(1)
	go m.maintenanceWorker(ctx, m.config.CheckInterval.Duration)

	m.log.Infof("Background maintenance started - interval: %v, checkpoint mode: %s",
		m.config.CheckInterval.Duration, m.config.WALCheckpointMode)

	return nil
}

// Stop stops background maintenance and waits for completion.
func (m *MaintenanceCoordinator) Stop() error {
	if m.cancel == nil {
		return nil
	}

	m.cancel()
	m.wg.Wait()
	m.log.Info("Background maintenance stopped")

	return nil
}

func (m *MaintenanceCoordinator) maintenanceWorker(ctx context.Context, checkInterval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			m.log.Debug("Running periodic maintenance")
			if err := m.RunMaintenance(ctx); err != nil {
				m.log.Warnf("Periodic maintenance failed: %v", err)
			}
		}
	}
}

// RunMaintenance checkpoints the WAL, runs the registered pruners and vacuums.
// It holds the exclusive lock, so no block pass runs concurrently.
func (m *MaintenanceCoordinator) RunMaintenance(ctx context.Context) error {
	start := time.Now().UTC()
	MaintenanceRunsInc()

	m.opLock.Lock()
	defer m.opLock.Unlock()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	initialDBSize, err := DBTotalSize(m.dbPath)
	if err != nil {
		m.log.Warnf("Failed to get initial DB size: %v", err)
	}

	var errs []error

	if err := m.walCheckpoint(); err != nil {
		errs = append(errs, fmt.Errorf("WAL checkpoint failed: %w", err))
	}

	m.prunersLock.Lock()
	pruners := append([]namedPruner(nil), m.pruners...)
	m.prunersLock.Unlock()

	for _, p := range pruners {
		err := p.run(ctx)
		PrunerRunInc(p.name, err)
		if err != nil {
			errs = append(errs, fmt.Errorf("pruner %s failed: %w", p.name, err))
		}
	}

	if err := m.vacuum(); err != nil {
		errs = append(errs, err)
	}

	finalDBSize, err := DBTotalSize(m.dbPath)
	if err != nil {
		m.log.Warnf("Failed to get final DB size: %v", err)
	}

	maintenanceErr := errors.Join(errs...)
	duration := time.Since(start)

	m.metricsLock.Lock()
	m.lastMaintenanceTime = time.Now().UTC()
	m.maintenanceCount++
	m.lastMaintenanceErr = maintenanceErr
	m.metricsLock.Unlock()

	MaintenanceDurationLog(duration)
	MaintenanceLastRunLog()
	DBSizeLog(finalDBSize)

	if maintenanceErr != nil {
		MaintenanceErrorInc()
		m.log.Warnf("Maintenance completed with errors in %v: %v", duration, maintenanceErr)
		return maintenanceErr
	}

	MaintenanceSuccessInc()
	m.log.Infof("Maintenance completed in %v", duration)

	if initialDBSize > finalDBSize {
		reclaimed := uint64(initialDBSize - finalDBSize)
		MaintenanceSpaceReclaimedLog(reclaimed)
		m.log.Infof("Maintenance reclaimed %d MB", common.BytesToMB(reclaimed))
	}

	return nil
}

func (m *MaintenanceCoordinator) walCheckpoint() error {
	var mode string
	if err := m.db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		return fmt.Errorf("failed to check journal mode: %w", err)
	}

	if !strings.EqualFold(mode, "wal") {
		m.log.Debug("Database not in WAL mode, skipping WAL checkpoint")
		return nil
	}

	checkpointMode := m.config.WALCheckpointMode
	if checkpointMode == "" {
		checkpointMode = "PASSIVE"
	}

	var busy, logFrames, checkpointed int
	query := fmt.Sprintf("PRAGMA wal_checkpoint(%s)", checkpointMode)
	if err := m.db.QueryRow(query).Scan(&busy, &logFrames, &checkpointed); err != nil {
		return fmt.Errorf("failed to execute WAL checkpoint: %w", err)
	}

	WALCheckpointInc(strings.ToLower(checkpointMode))
	m.log.Debugf("WAL checkpoint - mode: %s, busy: %d, log_frames: %d, checkpointed: %d",
		checkpointMode, busy, logFrames, checkpointed)

	if busy > 0 {
		m.log.Warnf("WAL checkpoint left %d busy pages", busy)
	}

	return nil
}

func (m *MaintenanceCoordinator) vacuum() error {
	err := Vacuum(m.db)
	if err != nil && strings.Contains(err.Error(), "database is locked") {
		return fmt.Errorf("cannot vacuum: database is locked (retry later)")
	}

	return err
}

// AcquireOperationLock acquires the shared side of the maintenance lock.
func (m *MaintenanceCoordinator) AcquireOperationLock() func() {
	m.opLock.RLock()
	return m.opLock.RUnlock
}

// GetMetrics returns current maintenance metrics.
func (m *MaintenanceCoordinator) GetMetrics() MaintenanceMetrics {
	m.metricsLock.Lock()
	defer m.metricsLock.Unlock()

	return MaintenanceMetrics{
		LastMaintenanceTime:  m.lastMaintenanceTime,
		MaintenanceCount:     m.maintenanceCount,
		LastMaintenanceError: m.lastMaintenanceErr,
	}
}

// MaintenanceMetrics provides visibility into maintenance operations.
type MaintenanceMetrics struct {
	LastMaintenanceTime  time.Time
	MaintenanceCount     uint64
	LastMaintenanceError error
}
