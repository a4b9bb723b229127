package models

import "time"

// Record is one row of the sparse single-table store. Which columns are populated
// depends on the record family: batches, disbursements or the number counter.
type Record struct {
	PK         string     `json:"pk"`
	SK         string     `json:"sk"`
	EntityID   string     `json:"entityId"`
	EntitySort *string    `json:"entitySort,omitempty"` // <type>#<number>, entity index sort key
	BatchID    *string    `json:"batchId,omitempty"`    // batch index partition
	State      *string    `json:"state,omitempty"`
	RecordDate *time.Time `json:"recordDate,omitempty"` // creation time for disbursements, release time for batches
	Counter    *int64     `json:"counter,omitempty"`
	Data       []byte     `json:"data"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}
