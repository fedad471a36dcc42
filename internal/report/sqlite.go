package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/zsiec/ltcsplit/internal/pipeline"
)

const tableBatchSize = 500

// Run is one stored analysis.
type Run struct {
	ID              string `gorm:"primaryKey;type:varchar(36)"`
	Input           string `gorm:"index:idx_run_input"`
	FrameRate       string
	RateSource      string
	FrameDuration   int64
	VideoFrames     uint64
	AmbiguousFrames uint64
	LTCFrames       int
	CutCount        int
	ElapsedMs       int64
	CreatedAt       time.Time
}

// Cut is one stored timecode discontinuity.
type Cut struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	RunID           string `gorm:"type:varchar(36);index:idx_cut_run"`
	VideoFrameIndex uint64
	PTS             int64
	Sample          int64
	ExpectedFrame   uint64
	FromFrameNumber uint64
	ToFrameNumber   uint64
	DeltaFrames     int64
	DeltaTime       string
}

// TableEntry is one stored timecode event.
type TableEntry struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	RunID       string `gorm:"type:varchar(36);index:idx_entry_run"`
	EndSample   int64
	FrameNumber uint64
}

// Store persists results in a SQLite database.
type Store struct {
	db *gorm.DB
}

// OpenStore opens or creates the database at path and migrates its schema.
func OpenStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path+"?_foreign_keys=on"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	if err := db.AutoMigrate(&Run{}, &Cut{}, &TableEntry{}); err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			sqlDB.Close()
		}
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// SaveResult stores res, its cuts and its timecode table in one transaction.
// Saving the same run ID again replaces the earlier rows.
func (s *Store) SaveResult(res *pipeline.Result) error {
	if res.RunID == "" {
		return errors.New("result has no run id")
	}

	run := Run{
		ID:              res.RunID,
		Input:           res.Input,
		FrameRate:       res.FrameRate.String(),
		RateSource:      string(res.RateSource),
		FrameDuration:   res.FrameDuration,
		VideoFrames:     res.VideoFrames,
		AmbiguousFrames: res.AmbiguousFrames,
		LTCFrames:       res.LTCFrames,
		CutCount:        len(res.Cuts),
		ElapsedMs:       res.Elapsed.Milliseconds(),
	}

	cuts := make([]Cut, 0, len(res.Cuts))
	for _, c := range res.Cuts {
		cuts = append(cuts, Cut{
			RunID:           res.RunID,
			VideoFrameIndex: c.VideoFrameIndex,
			PTS:             c.PTS,
			Sample:          c.Sample,
			ExpectedFrame:   c.ExpectedFrame,
			FromFrameNumber: c.FromFrameNumber,
			ToFrameNumber:   c.ToFrameNumber,
			DeltaFrames:     c.DeltaFrames,
			DeltaTime:       c.DeltaTime,
		})
	}

	var entries []TableEntry
	if res.Table != nil {
		entries = make([]TableEntry, 0, res.Table.Len())
		for _, ev := range res.Table.Events() {
			entries = append(entries, TableEntry{RunID: res.RunID, EndSample: ev.EndSample, FrameNumber: ev.FrameNumber})
		}
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id = ?", res.RunID).Delete(&Cut{}).Error; err != nil {
			return err
		}
		if err := tx.Where("run_id = ?", res.RunID).Delete(&TableEntry{}).Error; err != nil {
			return err
		}
		if err := tx.Save(&run).Error; err != nil {
			return fmt.Errorf("saving run: %w", err)
		}
		if len(cuts) > 0 {
			if err := tx.CreateInBatches(cuts, tableBatchSize).Error; err != nil {
				return fmt.Errorf("saving cuts: %w", err)
			}
		}
		if len(entries) > 0 {
			if err := tx.CreateInBatches(entries, tableBatchSize).Error; err != nil {
				return fmt.Errorf("saving timecode table: %w", err)
			}
		}
		return nil
	})
}

// Runs lists stored runs, newest first.
func (s *Store) Runs() ([]Run, error) {
	var runs []Run
	err := s.db.Order("created_at DESC").Find(&runs).Error
	return runs, err
}

// CutsFor lists the cuts of one run in video frame order.
func (s *Store) CutsFor(runID string) ([]Cut, error) {
	var cuts []Cut
	err := s.db.Where("run_id = ?", runID).Order("video_frame_index").Find(&cuts).Error
	return cuts, err
}

// TableEntries counts the stored timecode events of one run.
func (s *Store) TableEntries(runID string) (int64, error) {
	var n int64
	err := s.db.Model(&TableEntry{}).Where("run_id = ?", runID).Count(&n).Error
	return n, err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
