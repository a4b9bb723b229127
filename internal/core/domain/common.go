package domain

import "time"

// AuditFields holds standard audit information for stored records.
// CreatedBy and LastUpdatedBy carry the acting user's email.
type AuditFields struct {
	CreatedAt     time.Time `json:"createdAt"`
	CreatedBy     string    `json:"createdBy"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
	LastUpdatedBy string    `json:"lastUpdatedBy"`
}

// Touch stamps the last-updated fields.
func (a *AuditFields) Touch(actor string, at time.Time) {
	a.LastUpdatedAt = at
	if actor != "" {
		a.LastUpdatedBy = actor
	}
}
