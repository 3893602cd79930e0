// Package snapshots persists valuation history in a WAL so it survives
// restarts.
package snapshots

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/gowal"
)

const (
	// DefaultDir is where valuation records live unless configured.
	DefaultDir   = "./wal/valuations"
	segmentLimit = 1000
	maxSegments  = 100

	valuationKeyPrefix = "valuation_"
)

// Record is one persisted valuation: whole price plus per-class totals at a
// point in time.
type Record struct {
	ID         string          `json:"id"`
	TakenAt    time.Time       `json:"taken_at"`
	WholePrice decimal.Decimal `json:"whole_price"`
	CashTotal  decimal.Decimal `json:"cash_total"`
	BondTotal  decimal.Decimal `json:"bond_total"`
	ShareTotal decimal.Decimal `json:"share_total"`
	FundTotal  decimal.Decimal `json:"fund_total"`
}

// StoredRecord pairs a record with its WAL index.
type StoredRecord struct {
	Index  uint64
	Record Record
}

// RecordFromSnapshot reduces a snapshot to its journaled form.
func RecordFromSnapshot(s *domain.Snapshot) Record {
	return Record{
		ID:         uuid.NewString(),
		TakenAt:    s.TakenAt,
		WholePrice: s.WholePrice,
		CashTotal:  s.CashTotal,
		BondTotal:  s.Bonds.TotalPrice,
		ShareTotal: s.Shares.TotalPrice,
		FundTotal:  s.Funds.TotalPrice,
	}
}

// WALStore is an append-only journal of valuation records.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes the journal in the given directory.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = DefaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "valuation_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init valuation WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Save appends the record to the journal.
func (s *WALStore) Save(record Record) error {
	if s == nil || s.wal == nil {
		return errors.New("valuation store is not initialized")
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "marshal valuation record")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, valuationKeyPrefix+record.ID, payload)
}

// RecordsAfter returns all valuation records written after the given WAL
// index.
func (s *WALStore) RecordsAfter(index uint64) ([]StoredRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("valuation store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]StoredRecord, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil {
			continue
		}
		if !strings.HasPrefix(key, valuationKeyPrefix) {
			continue
		}

		var record Record
		if err := json.Unmarshal(payload, &record); err != nil {
			return nil, errors.Wrap(err, "decode valuation record")
		}
		records = append(records, StoredRecord{Index: idx, Record: record})
	}

	return records, nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("valuation store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
