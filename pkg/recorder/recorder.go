// Package recorder persists solved crane ticks as takes in SQLite.
package recorder

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/teslashibe/go-technocrane/internal/log"
)

var (
	// ErrNoActiveTake is returned by Record and StopTake outside a take.
	ErrNoActiveTake = errors.New("recorder: no active take")

	// ErrTakeNotFound is returned by Take and Frames for an unknown ID.
	ErrTakeNotFound = errors.New("recorder: take not found")
)

// MemoryPath opens a private in-memory database.
const MemoryPath = "file::memory:"

// Recorder writes frames to the active take.
type Recorder struct {
	db     *gorm.DB
	logger *slog.Logger

	mu     sync.Mutex
	active *Take
}

// Open opens or creates the database at path and migrates the schema.
func Open(path string) (*Recorder, error) {
	if path == "" {
		path = MemoryPath
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open take database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("access sql interface: %w", err)
	}
	// One writer keeps an in-memory database on a single connection.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&Take{}, &Frame{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate take schema: %w", err)
	}

	return &Recorder{
		db:     db,
		logger: log.Component("recorder").With("path", path),
	}, nil
}

// Close stops the active take and closes the database.
func (r *Recorder) Close() error {
	if _, err := r.StopTake(); err != nil && !errors.Is(err, ErrNoActiveTake) {
		r.logger.Warn("failed to stop take on close", "error", err)
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// StartTake begins a new take, stopping any active one first.
func (r *Recorder) StartTake(name, preset string) (Take, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		if err := r.stopLocked(); err != nil {
			return Take{}, err
		}
	}

	take := Take{
		ID:        uuid.NewString(),
		Name:      name,
		Preset:    preset,
		StartedAt: time.Now().UTC(),
	}
	if err := r.db.Create(&take).Error; err != nil {
		return Take{}, fmt.Errorf("create take: %w", err)
	}
	r.active = &take
	r.logger.Info("take started", "take", take.ID, "name", name, "preset", preset)
	return take, nil
}

// Active returns the take being recorded.
func (r *Recorder) Active() (Take, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return Take{}, false
	}
	return *r.active, true
}

// Record appends f to the active take.
func (r *Recorder) Record(f Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active == nil {
		return ErrNoActiveTake
	}
	f.ID = 0
	f.TakeID = r.active.ID
	if err := r.db.Create(&f).Error; err != nil {
		return fmt.Errorf("record frame: %w", err)
	}
	r.active.FrameCount++
	return nil
}

// StopTake closes the active take and returns it.
func (r *Recorder) StopTake() (Take, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active == nil {
		return Take{}, ErrNoActiveTake
	}
	take := *r.active
	if err := r.stopLocked(); err != nil {
		return Take{}, err
	}
	now := time.Now().UTC()
	take.StoppedAt = &now
	return take, nil
}

func (r *Recorder) stopLocked() error {
	now := time.Now().UTC()
	err := r.db.Model(&Take{}).
		Where("id = ?", r.active.ID).
		Updates(map[string]any{"stopped_at": now, "frame_count": r.active.FrameCount}).
		Error
	if err != nil {
		return fmt.Errorf("stop take: %w", err)
	}
	r.logger.Info("take stopped", "take", r.active.ID, "frames", r.active.FrameCount)
	r.active = nil
	return nil
}

// Takes lists every take, newest first.
func (r *Recorder) Takes() ([]Take, error) {
	var takes []Take
	if err := r.db.Order("started_at desc").Find(&takes).Error; err != nil {
		return nil, fmt.Errorf("list takes: %w", err)
	}
	return takes, nil
}

// Take returns one take by ID.
func (r *Recorder) Take(id string) (Take, error) {
	var take Take
	err := r.db.Where("id = ?", id).First(&take).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Take{}, ErrTakeNotFound
	}
	if err != nil {
		return Take{}, fmt.Errorf("get take: %w", err)
	}
	return take, nil
}

// Frames returns the frames of a take in tick order.
func (r *Recorder) Frames(id string) ([]Frame, error) {
	if _, err := r.Take(id); err != nil {
		return nil, err
	}
	var frames []Frame
	if err := r.db.Where("take_id = ?", id).Order("tick asc").Find(&frames).Error; err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}
	return frames, nil
}
