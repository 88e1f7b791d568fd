// Package store persists the merged reference reflection list and a
// per-crystal refinement audit trail between scaling/post-refinement
// iterations, backed by SQLite through gorm (SPEC_FULL.md's domain-stack
// wiring; the in-memory reflection.List stays authoritative — this is an
// optional checkpoint/audit sink a caller may attach).
package store

import (
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/crystfel-go/crystfel-go/pkg/detector"
	"github.com/crystfel-go/crystfel-go/pkg/reflection"
)

/*****************************************************************************************************************/

// ReferenceRow is one merged-reference reflection, keyed by Miller index.
type ReferenceRow struct {
	ID         uint `gorm:"primaryKey"`
	H, K, L    int  `gorm:"uniqueIndex:idx_hkl"`
	Intensity  float64
	Sigma      float64
	Redundancy int
	UpdatedAt  time.Time
}

/*****************************************************************************************************************/

// RefinementAudit is one row of a crystal's scaling/post-refinement history.
type RefinementAudit struct {
	ID            uint `gorm:"primaryKey"`
	CrystalID     string `gorm:"index"`
	Iteration     int
	G             float64
	B             float64
	ProfileRadius float64
	Flag          string
	CreatedAt     time.Time
}

/*****************************************************************************************************************/

// Store wraps a SQLite-backed gorm.DB scoped to these two tables.
type Store struct {
	db *gorm.DB
}

/*****************************************************************************************************************/

// Open opens (creating if necessary) a SQLite database at path and migrates
// its schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&ReferenceRow{}, &RefinementAudit{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

/*****************************************************************************************************************/

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

/*****************************************************************************************************************/

// SaveMergedReference replaces the stored reference list with ref's current
// contents, in one transaction.
func (s *Store) SaveMergedReference(ref *reflection.List) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&ReferenceRow{}).Error; err != nil {
			return err
		}
		for _, r := range ref.All() {
			row := ReferenceRow{
				H: r.Index.H, K: r.Index.K, L: r.Index.L,
				Intensity:  r.Intensity,
				Sigma:      r.Sigma,
				Redundancy: r.Redundancy,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

/*****************************************************************************************************************/

// LoadMergedReference reads back the stored reference list.
func (s *Store) LoadMergedReference() (*reflection.List, error) {
	var rows []ReferenceRow
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, err
	}

	out := reflection.NewList()
	for _, row := range rows {
		idx, err := reflection.NewMillerIndex(row.H, row.K, row.L)
		if err != nil {
			continue
		}
		r := out.Insert(idx)
		r.Intensity = row.Intensity
		r.Sigma = row.Sigma
		r.Redundancy = row.Redundancy
	}
	return out, nil
}

/*****************************************************************************************************************/

// RecordRefinement appends one audit row capturing c's current scale and
// profile radius, tagged with crystalID and iteration for later analysis of
// a run's convergence history.
func (s *Store) RecordRefinement(crystalID string, iteration int, c *detector.Crystal) error {
	row := RefinementAudit{
		CrystalID:     crystalID,
		Iteration:     iteration,
		G:             c.G,
		B:             c.B,
		ProfileRadius: c.ProfileRadius,
		Flag:          string(c.Flag),
	}
	return s.db.Create(&row).Error
}

/*****************************************************************************************************************/

// RefinementHistory returns every recorded audit row for crystalID, ordered
// by iteration. An unknown crystalID yields an empty, non-nil slice.
func (s *Store) RefinementHistory(crystalID string) ([]RefinementAudit, error) {
	var rows []RefinementAudit
	err := s.db.Where("crystal_id = ?", crystalID).Order("iteration asc").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
