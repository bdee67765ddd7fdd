// Package manifest journals pipeline progress to a sqlite database kept
// inside the output directory. The directory tree stays the authoritative
// checkpoint; the manifest records exactly which stages and jobs finished,
// so a partially written stage is distinguishable from a complete one.
//
// Journaling is best-effort: a manifest write failure is logged and never
// fails the pipeline.
package manifest

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Stage statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// StageRun is one stage execution.
type StageRun struct {
	ID         string `gorm:"primaryKey;size:36"`
	Name       string `gorm:"index;size:64;not null"`
	Status     string `gorm:"size:16"`
	Jobs       int
	Failures   int
	Error      string `gorm:"type:text"`
	StartedAt  time.Time
	FinishedAt *time.Time
}

// JobRun is one job outcome within a stage.
type JobRun struct {
	ID         string `gorm:"primaryKey;size:36"`
	StageID    string `gorm:"index;size:36;not null"`
	Name       string `gorm:"size:255"`
	Status     string `gorm:"size:16"`
	Error      string `gorm:"type:text"`
	FinishedAt time.Time
}

// Recorder journals stages and jobs. A nil *Recorder is valid and records
// nothing, so callers never need to branch on whether journaling is enabled.
type Recorder struct {
	db     *gorm.DB
	mu     sync.Mutex
	logger *slog.Logger
}

// Open opens (or creates) the manifest database at path.
func Open(path string) (*Recorder, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	return NewRecorder(db)
}

// NewRecorder wraps an existing database handle and migrates the schema.
func NewRecorder(db *gorm.DB) (*Recorder, error) {
	if err := db.AutoMigrate(&StageRun{}, &JobRun{}); err != nil {
		return nil, err
	}
	return &Recorder{db: db, logger: slog.Default()}, nil
}

// Stage opens a stage record and returns its handle.
func (r *Recorder) Stage(name string) *Stage {
	if r == nil {
		return nil
	}
	st := &Stage{
		rec: r,
		run: StageRun{
			ID:        uuid.New().String(),
			Name:      name,
			Status:    StatusRunning,
			StartedAt: time.Now(),
		},
	}
	r.save(&st.run)
	return st
}

// Stages returns all recorded stage runs, oldest first.
func (r *Recorder) Stages() ([]StageRun, error) {
	if r == nil {
		return nil, nil
	}
	var runs []StageRun
	err := r.db.Order("started_at").Find(&runs).Error
	return runs, err
}

// Jobs returns the job outcomes recorded for one stage, oldest first.
func (r *Recorder) Jobs(stageID string) ([]JobRun, error) {
	if r == nil {
		return nil, nil
	}
	var runs []JobRun
	err := r.db.Where("stage_id = ?", stageID).Order("finished_at").Find(&runs).Error
	return runs, err
}

func (r *Recorder) save(value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.db.Save(value).Error; err != nil {
		r.logger.Warn("manifest write failed", "error", err)
	}
}

func (r *Recorder) create(value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.db.Create(value).Error; err != nil {
		r.logger.Warn("manifest write failed", "error", err)
	}
}

// Stage accumulates job outcomes for one stage run. Its methods are safe
// for concurrent use and safe on a nil receiver.
type Stage struct {
	rec *Recorder
	mu  sync.Mutex
	run StageRun
}

// Job records one finished job.
func (s *Stage) Job(name string, jobErr error) {
	if s == nil {
		return
	}
	jr := JobRun{
		ID:         uuid.New().String(),
		StageID:    s.run.ID,
		Name:       name,
		Status:     StatusCompleted,
		FinishedAt: time.Now(),
	}
	if jobErr != nil {
		jr.Status = StatusFailed
		jr.Error = jobErr.Error()
	}
	s.rec.create(&jr)

	s.mu.Lock()
	s.run.Jobs++
	if jobErr != nil {
		s.run.Failures++
	}
	s.mu.Unlock()
}

// End closes the stage record with its final status.
func (s *Stage) End(stageErr error) {
	if s == nil {
		return
	}
	s.mu.Lock()
	now := time.Now()
	s.run.FinishedAt = &now
	s.run.Status = StatusCompleted
	if stageErr != nil {
		s.run.Status = StatusFailed
		s.run.Error = stageErr.Error()
	}
	run := s.run
	s.mu.Unlock()
	s.rec.save(&run)
}
