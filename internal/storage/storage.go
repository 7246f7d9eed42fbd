package storage

import (
	"context"
	"errors"
	"time"

	"bookstats/internal/models"
)

var (
	// ErrNoSnapshot is returned by LoadSnapshot when nothing has been saved yet
	ErrNoSnapshot = errors.New("no snapshot")

	// ErrIncompleteSnapshot is returned by LoadSnapshot when the stored rows
	// do not match the record count saved with them
	ErrIncompleteSnapshot = errors.New("incomplete snapshot")
)

// Snapshot is every loaded week consolidated into one table
type Snapshot struct {
	// Fingerprint identifies the source files the snapshot was built from
	Fingerprint string
	CreatedAt   time.Time
	HasCollana  bool
	Records     []models.SalesRecord
}

// Storage defines the interface for the consolidated snapshot store
type Storage interface {
	// SaveSnapshot replaces the stored snapshot
	SaveSnapshot(ctx context.Context, snap *Snapshot) error

	// LoadSnapshot returns the stored snapshot, or ErrNoSnapshot
	LoadSnapshot(ctx context.Context) (*Snapshot, error)

	// Lifecycle
	Initialize(ctx context.Context) error
	Close() error
}

// NewSnapshot flattens a dataset into a snapshot
func NewSnapshot(ds *models.Dataset, fingerprint string) *Snapshot {
	return &Snapshot{
		Fingerprint: fingerprint,
		CreatedAt:   time.Now().UTC(),
		HasCollana:  ds.HasCollana,
		Records:     ds.All(),
	}
}

// Dataset regroups the snapshot records by week
func (s *Snapshot) Dataset() *models.Dataset {
	ds := models.NewDataset()
	ds.HasCollana = s.HasCollana
	byWeek := make(map[int][]models.SalesRecord)
	weeks := make(map[int]models.Week)
	for _, r := range s.Records {
		byWeek[r.Week.Number] = append(byWeek[r.Week.Number], r)
		weeks[r.Week.Number] = r.Week
	}
	for n, recs := range byWeek {
		ds.Add(weeks[n], recs)
	}
	return ds
}
