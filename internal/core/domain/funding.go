package domain

import (
	"sort"

	"github.com/SscSPs/disbursement_backoffice/internal/apperrors"
)

// CostTypeExpenseDefense is the cost type whose funding depends on the catastrophe type.
const CostTypeExpenseDefense = "ExpenseDefenseAndCostContainment"

// ReservePaymentInfo is one ranked funding rule of a product.
type ReservePaymentInfo struct {
	CostType         string   `json:"costType"`
	CatastropheTypes []string `json:"catastropheTypes,omitempty"`
	AccountCode      string   `json:"accountCode"`
	Rank             int      `json:"rank"`
}

// ProductAccounting is the accounting configuration of a product.
type ProductAccounting struct {
	ProductKey             string               `json:"productKey"`
	ReservePaymentInfoList []ReservePaymentInfo `json:"reservePaymentInfoList"`
}

// ProductMain is the general configuration of a product.
type ProductMain struct {
	ProductKey string `json:"productKey"`
	EntityID   string `json:"entityId"`
	Name       string `json:"name"`
	PayerID    string `json:"payerId"`
}

// ResolveFundingAccount picks the funding account for a cost type from the product's ranked rules.
// Expense-defense payments are matched on catastrophe type as well: a rule listing the
// catastrophe type wins over a rule without catastrophe requirements.
func ResolveFundingAccount(costType, catastropheType string, accounting ProductAccounting) (string, error) {
	rules := make([]ReservePaymentInfo, 0, len(accounting.ReservePaymentInfoList))
	for _, r := range accounting.ReservePaymentInfoList {
		if r.CostType == costType {
			rules = append(rules, r)
		}
	}
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Rank < rules[j].Rank })

	if costType != CostTypeExpenseDefense {
		if len(rules) > 0 {
			return rules[0].AccountCode, nil
		}
		return "", apperrors.NewConfigurationError("no funding account for cost type %q in product %q", costType, accounting.ProductKey)
	}

	if catastropheType != "" {
		for _, r := range rules {
			if contains(r.CatastropheTypes, catastropheType) {
				return r.AccountCode, nil
			}
		}
	}
	for _, r := range rules {
		if len(r.CatastropheTypes) == 0 {
			return r.AccountCode, nil
		}
	}
	return "", apperrors.NewConfigurationError("no funding account for cost type %q and catastrophe type %q in product %q",
		costType, catastropheType, accounting.ProductKey)
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
