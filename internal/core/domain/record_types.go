package domain

import "github.com/SscSPs/disbursement_backoffice/internal/apperrors"

// DisbursementType is the record variant of a disbursement and doubles as its storage sort key.
type DisbursementType string

const (
	DisbursementTypeStandard DisbursementType = "Disbursement"
	DisbursementTypeClaim    DisbursementType = "ClaimDisbursement"
	DisbursementTypePrint    DisbursementType = "DisbursementPrint"
)

// DisbursementTypes lists the variants in the order scheduled jobs walk them.
var DisbursementTypes = []DisbursementType{
	DisbursementTypeStandard,
	DisbursementTypeClaim,
	DisbursementTypePrint,
}

// ParseDisbursementType maps a storage or API string onto a DisbursementType.
func ParseDisbursementType(s string) (DisbursementType, error) {
	switch DisbursementType(s) {
	case DisbursementTypeStandard, DisbursementTypeClaim, DisbursementTypePrint:
		return DisbursementType(s), nil
	}
	return "", apperrors.NewValidationError("unknown disbursement type %q", s)
}

// BatchType returns the batch stream a disbursement of this type is released through.
func (t DisbursementType) BatchType() BatchType {
	switch t {
	case DisbursementTypeClaim:
		return BatchTypeClaim
	case DisbursementTypePrint:
		return BatchTypePrint
	default:
		return BatchTypeStandard
	}
}

// BatchType is the record variant of a batch.
type BatchType string

const (
	BatchTypeStandard BatchType = "Batch"
	BatchTypeClaim    BatchType = "ClaimBatch"
	BatchTypePrint    BatchType = "PrintBatch"
)

// BatchTypes lists the batch streams in processing order.
var BatchTypes = []BatchType{BatchTypeStandard, BatchTypeClaim, BatchTypePrint}

func ParseBatchType(s string) (BatchType, error) {
	switch BatchType(s) {
	case BatchTypeStandard, BatchTypeClaim, BatchTypePrint:
		return BatchType(s), nil
	}
	return "", apperrors.NewValidationError("unknown batch type %q", s)
}

// DisbursementType returns the disbursement variant released through this batch stream.
func (t BatchType) DisbursementType() DisbursementType {
	switch t {
	case BatchTypeClaim:
		return DisbursementTypeClaim
	case BatchTypePrint:
		return DisbursementTypePrint
	default:
		return DisbursementTypeStandard
	}
}

// CounterSortKey is the sort key of the per-entity disbursement number counter.
const CounterSortKey = "DisbursementNumber"

// ReferenceType says whether a disbursement pays out against a claim or a policy.
type ReferenceType string

const (
	ReferenceClaim  ReferenceType = "Claim"
	ReferencePolicy ReferenceType = "Policy"
)
