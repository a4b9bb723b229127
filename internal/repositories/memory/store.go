// Package memory provides an in-process implementation of the disbursement and
// batch repositories backed by the same sparse record layout as PostgreSQL.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/SscSPs/disbursement_backoffice/internal/apperrors"
	"github.com/SscSPs/disbursement_backoffice/internal/core/domain"
	portsrepo "github.com/SscSPs/disbursement_backoffice/internal/core/ports/repositories"
	"github.com/SscSPs/disbursement_backoffice/internal/models"
	"github.com/SscSPs/disbursement_backoffice/internal/platform/clock"
	"github.com/SscSPs/disbursement_backoffice/internal/utils/mapping"
	"github.com/SscSPs/disbursement_backoffice/internal/utils/pagination"
)

type recordKey struct {
	pk string
	sk string
}

// Store keeps records in a map guarded by a RWMutex.
type Store struct {
	mu      sync.RWMutex
	records map[recordKey]models.Record
	clock   clock.Clock
}

func NewStore(c clock.Clock) *Store {
	if c == nil {
		c = clock.New()
	}
	return &Store{
		records: make(map[recordKey]models.Record),
		clock:   c,
	}
}

var (
	_ portsrepo.DisbursementRepositoryFacade = (*Store)(nil)
	_ portsrepo.BatchRepositoryFacade        = (*Store)(nil)
)

// NewRepositoryProvider exposes the store through the repository ports.
func NewRepositoryProvider(s *Store) portsrepo.RepositoryProvider {
	return portsrepo.RepositoryProvider{DisbursementRepo: s, BatchRepo: s}
}

func (s *Store) AllocateDisbursementNumber(_ context.Context, entityID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allocateLocked(entityID), nil
}

func (s *Store) allocateLocked(entityID string) int64 {
	k := recordKey{pk: entityID, sk: domain.CounterSortKey}
	rec, ok := s.records[k]
	var next int64 = 1
	if ok && rec.Counter != nil {
		next = *rec.Counter + 1
	}
	now := s.clock.Now()
	if !ok {
		rec = models.Record{PK: entityID, SK: domain.CounterSortKey, EntityID: entityID, CreatedAt: now}
	}
	rec.Counter = &next
	rec.UpdatedAt = now
	s.records[k] = rec
	return next
}

func (s *Store) SaveDisbursement(_ context.Context, d *domain.Disbursement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if d.DisbursementNumber == 0 {
		d.DisbursementNumber = s.allocateLocked(d.EntityID)
		if d.CreatedAt.IsZero() {
			d.CreatedAt = now
		}
	}
	if d.State.State == domain.StateProviderUploaded && d.ReleasedDateTime == nil {
		released := now
		d.ReleasedDateTime = &released
	}
	if d.LastUpdatedAt.IsZero() {
		d.LastUpdatedAt = now
	}

	rec, err := mapping.ToDisbursementRecord(*d)
	if err != nil {
		return err
	}
	s.records[recordKey{pk: rec.PK, sk: rec.SK}] = rec
	return nil
}

func (s *Store) FindDisbursement(_ context.Context, entityID string, disbursementNumber int64) (*domain.Disbursement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pk := domain.DisbursementKey(entityID, disbursementNumber)
	for _, t := range domain.DisbursementTypes {
		if rec, ok := s.records[recordKey{pk: pk, sk: string(t)}]; ok {
			d, err := mapping.ToDomainDisbursement(rec)
			if err != nil {
				return nil, err
			}
			return &d, nil
		}
	}
	return nil, apperrors.NewNotFoundError("disbursement %s", pk)
}

func (s *Store) ListDisbursementsByBatch(_ context.Context, batchID string, filter portsrepo.DisbursementFilter, limit int, nextToken *string) ([]domain.Disbursement, *string, error) {
	return s.listDisbursements(func(rec models.Record) bool {
		return rec.BatchID != nil && *rec.BatchID == batchID
	}, filter, limit, nextToken)
}

func (s *Store) ListDisbursementsByEntity(_ context.Context, entityID string, filter portsrepo.DisbursementFilter, limit int, nextToken *string) ([]domain.Disbursement, *string, error) {
	return s.listDisbursements(func(rec models.Record) bool {
		return rec.EntityID == entityID
	}, filter, limit, nextToken)
}

func (s *Store) listDisbursements(inIndex func(models.Record) bool, filter portsrepo.DisbursementFilter, limit int, nextToken *string) ([]domain.Disbursement, *string, error) {
	recs, err := s.scan(func(rec models.Record) bool {
		if _, err := domain.ParseDisbursementType(rec.SK); err != nil {
			return false
		}
		return inIndex(rec)
	}, nextToken)
	if err != nil {
		return nil, nil, err
	}

	var out []domain.Disbursement
	var last models.Record
	for _, rec := range recs {
		d, err := mapping.ToDomainDisbursement(rec)
		if err != nil {
			return nil, nil, err
		}
		if !filter.Matches(d) {
			continue
		}
		if limit > 0 && len(out) == limit {
			token := pagination.EncodeKeyToken(*last.EntitySort, last.PK)
			return out, &token, nil
		}
		out = append(out, d)
		last = rec
	}
	return out, nil, nil
}

func (s *Store) FindBatch(_ context.Context, entityID, batchNumber string, batchType domain.BatchType) (*domain.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pk := domain.BatchKey(entityID, batchNumber)
	rec, ok := s.records[recordKey{pk: pk, sk: string(batchType)}]
	if !ok {
		return nil, apperrors.NewNotFoundError("batch %s/%s", pk, batchType)
	}
	b, err := mapping.ToDomainBatch(rec)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) CreateBatch(_ context.Context, batch domain.Batch) (bool, error) {
	rec, err := mapping.ToBatchRecord(batch)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := recordKey{pk: rec.PK, sk: rec.SK}
	if _, exists := s.records[k]; exists {
		return false, nil
	}
	s.records[k] = rec
	return true, nil
}

func (s *Store) SaveBatch(_ context.Context, batch domain.Batch) error {
	rec, err := mapping.ToBatchRecord(batch)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := recordKey{pk: rec.PK, sk: rec.SK}
	if _, exists := s.records[k]; !exists {
		return apperrors.NewNotFoundError("batch %s/%s", rec.PK, rec.SK)
	}
	s.records[k] = rec
	return nil
}

func (s *Store) ListBatchesByEntity(_ context.Context, entityID string, filter portsrepo.BatchFilter, limit int, nextToken *string) ([]domain.Batch, *string, error) {
	recs, err := s.scan(func(rec models.Record) bool {
		if _, err := domain.ParseBatchType(rec.SK); err != nil {
			return false
		}
		return rec.EntityID == entityID
	}, nextToken)
	if err != nil {
		return nil, nil, err
	}

	var out []domain.Batch
	var last models.Record
	for _, rec := range recs {
		b, err := mapping.ToDomainBatch(rec)
		if err != nil {
			return nil, nil, err
		}
		if !filter.Matches(b) {
			continue
		}
		if limit > 0 && len(out) == limit {
			token := pagination.EncodeKeyToken(*last.EntitySort, last.PK)
			return out, &token, nil
		}
		out = append(out, b)
		last = rec
	}
	return out, nil, nil
}

// scan returns index records in (entity_sort, pk) order, positioned after the token.
func (s *Store) scan(match func(models.Record) bool, nextToken *string) ([]models.Record, error) {
	var afterSort, afterPK string
	if nextToken != nil && *nextToken != "" {
		var err error
		afterSort, afterPK, err = pagination.DecodeKeyToken(*nextToken)
		if err != nil {
			return nil, errors.Join(apperrors.ErrValidation, fmt.Errorf("decode next token: %w", err))
		}
	}

	s.mu.RLock()
	var recs []models.Record
	for _, rec := range s.records {
		if rec.EntitySort == nil || !match(rec) {
			continue
		}
		if afterSort != "" && !after(rec, afterSort, afterPK) {
			continue
		}
		recs = append(recs, rec)
	}
	s.mu.RUnlock()

	sort.Slice(recs, func(i, j int) bool {
		if *recs[i].EntitySort != *recs[j].EntitySort {
			return *recs[i].EntitySort < *recs[j].EntitySort
		}
		return recs[i].PK < recs[j].PK
	})
	return recs, nil
}

func after(rec models.Record, sortKey, pk string) bool {
	if *rec.EntitySort != sortKey {
		return *rec.EntitySort > sortKey
	}
	return rec.PK > pk
}
