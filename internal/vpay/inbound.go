package vpay

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/SscSPs/disbursement_backoffice/internal/core/domain"
	"github.com/shopspring/decimal"
)

// Provider status values found in the status field of Transaction records.
const (
	StatusLoaded   = "Loaded"
	StatusDistFax  = "DistFax"
	StatusUSPS     = "USPS"
	StatusFedex    = "Fedex"
	StatusUPS      = "UPS"
	StatusEmail    = "Email"
	StatusUnload   = "Unload"
	StatusPurchase = "Purchase"

	ReasonVoided   = "VOID"
	ReasonReissued = "REISSUE"

	transactionTag = "Transaction"
)

// Positions of the rejected-file layout.
const (
	rejIDStart, rejIDEnd               = 0, 20
	rejReasonStart, rejReasonEnd       = 20, 120
	rejTypeStart, rejTypeEnd           = 120, 130
	rejFileStart, rejFileEnd           = 130, 180
	rejTimestampStart, rejTimestampEnd = 180, 206
)

// Positions inside the fixed-width amount block of a Transaction record.
const (
	amountStart, amountEnd         = 0, 12
	statusTimeStart, statusTimeEnd = 12, 38
)

// Field indexes of a pipe-delimited Transaction record.
const (
	fieldTag = iota
	fieldDisbursementID
	fieldPaymentType
	fieldTransactionID
	fieldStatus
	fieldReasonCode
	fieldCheckNumber
	fieldMailTracking
	fieldAmountBlock
	transactionFieldCount
)

// Transaction is one parsed status line from a provider file.
type Transaction struct {
	DisbursementID     string
	DisbursementNumber int64
	State              domain.DisbursementStateName
	ProviderStatus     string
	ReasonCode         string
	PaymentType        string
	TransactionID      string
	CheckNumber        string
	MailTrackingNumber string
	Amount             decimal.Decimal
	StatusDateTime     time.Time
	Rejected           bool
	RejectReason       string
	RejectType         string
	FileName           string
}

// MapProviderStatus maps a provider status and reason code onto a lifecycle state.
func MapProviderStatus(status, reasonCode string) (domain.DisbursementStateName, bool) {
	switch {
	case strings.EqualFold(status, StatusLoaded):
		return domain.StateProviderProcessed, true
	case strings.EqualFold(status, StatusDistFax), strings.EqualFold(status, StatusUSPS),
		strings.EqualFold(status, StatusFedex), strings.EqualFold(status, StatusUPS),
		strings.EqualFold(status, StatusEmail):
		return domain.StateMailed, true
	case strings.EqualFold(status, StatusUnload):
		switch {
		case strings.EqualFold(reasonCode, ReasonVoided):
			return domain.StateProviderVoided, true
		case strings.EqualFold(reasonCode, ReasonReissued):
			return domain.StateProviderReissued, true
		}
	case strings.EqualFold(status, StatusPurchase):
		return domain.StateCleared, true
	}
	return "", false
}

// ParseLine parses one line of a provider file. Lines that carry no actionable
// status, such as headers, trailers and unmapped statuses, yield a nil transaction
// and a nil error. Lines that look like transactions but cannot be read return an error.
func ParseLine(line string, isRejectedFile bool) (*Transaction, error) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return nil, nil
	}
	if isRejectedFile {
		return parseRejectedLine(line)
	}
	return parseTransactionLine(line)
}

func parseRejectedLine(line string) (*Transaction, error) {
	id := substr(line, rejIDStart, rejIDEnd)
	if id == "" {
		return nil, nil
	}
	number, err := parseDisbursementNumber(id)
	if err != nil {
		return nil, err
	}
	tx := &Transaction{
		DisbursementID:     id,
		DisbursementNumber: number,
		State:              domain.StateProviderError,
		Rejected:           true,
		RejectReason:       substr(line, rejReasonStart, rejReasonEnd),
		RejectType:         substr(line, rejTypeStart, rejTypeEnd),
		FileName:           substr(line, rejFileStart, rejFileEnd),
	}
	if ts := substr(line, rejTimestampStart, rejTimestampEnd); ts != "" {
		if t, err := ParseTimestamp(ts); err == nil {
			tx.StatusDateTime = t
		}
	}
	return tx, nil
}

func parseTransactionLine(line string) (*Transaction, error) {
	fields := strings.Split(line, delimiter)
	if strings.TrimSpace(fields[fieldTag]) != transactionTag {
		return nil, nil
	}
	if len(fields) < transactionFieldCount {
		return nil, fmt.Errorf("transaction record has %d fields, want %d", len(fields), transactionFieldCount)
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	state, ok := MapProviderStatus(fields[fieldStatus], fields[fieldReasonCode])
	if !ok {
		return nil, nil
	}
	number, err := parseDisbursementNumber(fields[fieldDisbursementID])
	if err != nil {
		return nil, err
	}

	tx := &Transaction{
		DisbursementID:     fields[fieldDisbursementID],
		DisbursementNumber: number,
		State:              state,
		ProviderStatus:     fields[fieldStatus],
		ReasonCode:         fields[fieldReasonCode],
		PaymentType:        fields[fieldPaymentType],
		TransactionID:      fields[fieldTransactionID],
		CheckNumber:        fields[fieldCheckNumber],
		MailTrackingNumber: fields[fieldMailTracking],
	}

	block := fields[fieldAmountBlock]
	if cents := substr(block, amountStart, amountEnd); cents != "" {
		v, err := strconv.ParseInt(cents, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid amount %q for disbursement %s: %w", cents, tx.DisbursementID, err)
		}
		tx.Amount = decimal.New(v, -2)
	}
	if ts := substr(block, statusTimeStart, statusTimeEnd); ts != "" {
		t, err := ParseTimestamp(ts)
		if err != nil {
			return nil, fmt.Errorf("invalid status time for disbursement %s: %w", tx.DisbursementID, err)
		}
		tx.StatusDateTime = t
	}
	return tx, nil
}

func parseDisbursementNumber(id string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimLeft(id, "0"), 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid disbursement id %q", id)
	}
	return n, nil
}

// FormatAmountBlock renders the fixed-width amount block of a Transaction record.
func FormatAmountBlock(amount decimal.Decimal, statusTime time.Time) string {
	cents := amount.Shift(2).IntPart()
	return fmt.Sprintf("%012d%s", cents, FormatTimestamp(statusTime))
}

// FormatTransactionLine renders a Transaction record in the provider's status file layout.
func FormatTransactionLine(tx Transaction) string {
	return join(transactionTag,
		tx.DisbursementID,
		tx.PaymentType,
		tx.TransactionID,
		tx.ProviderStatus,
		tx.ReasonCode,
		tx.CheckNumber,
		tx.MailTrackingNumber,
		FormatAmountBlock(tx.Amount, tx.StatusDateTime),
	)
}

// IsRejectedFileName reports whether a provider file uses the rejected-file layout.
func IsRejectedFileName(name string) bool {
	return strings.Contains(strings.ToUpper(name), "REJECT")
}
