package mapping

import (
	"encoding/json"
	"fmt"

	"github.com/SscSPs/disbursement_backoffice/internal/core/domain"
	"github.com/SscSPs/disbursement_backoffice/internal/models"
)

// ToDisbursementRecord converts a domain Disbursement to its storage record.
// The disbursement must already carry its number.
func ToDisbursementRecord(d domain.Disbursement) (models.Record, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return models.Record{}, fmt.Errorf("marshal disbursement %s: %w", d.Key(), err)
	}
	sort := d.EntitySortKey()
	state := string(d.State.State)
	created := d.CreatedAt
	rec := models.Record{
		PK:         d.Key(),
		SK:         string(d.DisbursementType),
		EntityID:   d.EntityID,
		EntitySort: &sort,
		State:      &state,
		RecordDate: &created,
		Data:       data,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.LastUpdatedAt,
	}
	if d.BatchID != "" {
		batchID := d.BatchID
		rec.BatchID = &batchID
	}
	return rec, nil
}

// ToDomainDisbursement converts a storage record back to a Disbursement.
func ToDomainDisbursement(rec models.Record) (domain.Disbursement, error) {
	var d domain.Disbursement
	if err := json.Unmarshal(rec.Data, &d); err != nil {
		return domain.Disbursement{}, fmt.Errorf("unmarshal disbursement %s: %w", rec.PK, err)
	}
	t, err := domain.ParseDisbursementType(rec.SK)
	if err != nil {
		return domain.Disbursement{}, err
	}
	d.DisbursementType = t
	return d, nil
}

// ToBatchRecord converts a domain Batch to its storage record.
func ToBatchRecord(b domain.Batch) (models.Record, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return models.Record{}, fmt.Errorf("marshal batch %s: %w", b.ID(), err)
	}
	sort := b.EntitySortKey()
	state := string(b.State)
	scheduled := b.ScheduledDateTime
	return models.Record{
		PK:         b.ID(),
		SK:         string(b.BatchType),
		EntityID:   b.EntityID,
		EntitySort: &sort,
		State:      &state,
		RecordDate: &scheduled,
		Data:       data,
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.LastUpdatedAt,
	}, nil
}

// ToDomainBatch converts a storage record back to a Batch.
func ToDomainBatch(rec models.Record) (domain.Batch, error) {
	var b domain.Batch
	if err := json.Unmarshal(rec.Data, &b); err != nil {
		return domain.Batch{}, fmt.Errorf("unmarshal batch %s: %w", rec.PK, err)
	}
	t, err := domain.ParseBatchType(rec.SK)
	if err != nil {
		return domain.Batch{}, err
	}
	b.BatchType = t
	return b, nil
}
