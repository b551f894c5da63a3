package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sorceryai/conjure/internal/database"
)

// integrityCheckTimeout bounds the PRAGMA integrity_check run; the
// cache databases are small so a minute is generous.
const integrityCheckTimeout = time.Minute

// MaintenanceJob runs nightly database upkeep: an integrity check on
// every database, then a WAL checkpoint to keep the log from growing
// unbounded.
type MaintenanceJob struct {
	databases []*database.DB
	log       zerolog.Logger
}

// NewMaintenanceJob creates a maintenance job over the given databases.
func NewMaintenanceJob(databases []*database.DB, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		databases: databases,
		log:       log.With().Str("job", "db_maintenance").Logger(),
	}
}

// Run executes the maintenance pass. A failed integrity check aborts
// the job; a failed checkpoint is logged and skipped.
func (j *MaintenanceJob) Run() error {
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), integrityCheckTimeout)
	defer cancel()

	for _, db := range j.databases {
		j.log.Debug().Str("database", db.Name()).Msg("Running integrity check")
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("integrity check failed for %s: %w", db.Name(), err)
		}
	}

	for _, db := range j.databases {
		j.log.Debug().Str("database", db.Name()).Msg("Running WAL checkpoint")
		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			j.log.Warn().
				Str("database", db.Name()).
				Err(err).
				Msg("WAL checkpoint failed")
		}
	}

	j.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Int("databases", len(j.databases)).
		Msg("Database maintenance completed")

	return nil
}

// Name returns the job name for the scheduler.
func (j *MaintenanceJob) Name() string {
	return "db_maintenance"
}
