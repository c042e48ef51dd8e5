package store

import (
	"github.com/starford/regnet/internal/models"
	"github.com/starford/regnet/internal/modules"
)

// RunStore defines the persistence operations of the pipeline.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type RunStore interface {
	SaveRun(run *Run) (int64, error)
	ListRuns(limit, offset int) ([]RunRow, int, error)
	GetRun(id int64) (*RunRow, error)
	LatestRun() (*RunRow, error)
	Models(runID int64) (map[string]*models.GeneModel, error)
	GetModel(runID int64, gene string) (*models.GeneModel, error)
	Skips(runID int64) ([]models.Skip, error)
	Enrichment(runID int64) (*modules.Enrichment, error)
	SaveModules(runID int64, th modules.Thresholds, mods []models.Module) (int64, error)
	Modules(runID int64) (*ModuleSet, error)
	Ping() error
	Close() error
}

// Verify *DB satisfies RunStore at compile time.
var _ RunStore = (*DB)(nil)
