package domain

import (
	"errors"
	"testing"

	"github.com/SscSPs/disbursement_backoffice/internal/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAccounting() ProductAccounting {
	return ProductAccounting{
		ProductKey: "HO3-TX",
		ReservePaymentInfoList: []ReservePaymentInfo{
			{CostType: "Indemnity", AccountCode: "IND-2", Rank: 2},
			{CostType: "Indemnity", AccountCode: "IND-1", Rank: 1},
			{CostType: CostTypeExpenseDefense, AccountCode: "EDCC-GEN", Rank: 1},
			{CostType: CostTypeExpenseDefense, CatastropheTypes: []string{"Hurricane", "Hail"}, AccountCode: "EDCC-CAT", Rank: 2},
		},
	}
}

func TestResolveFundingAccount_RankedCostTypeMatch(t *testing.T) {
	code, err := ResolveFundingAccount("Indemnity", "", testAccounting())
	require.NoError(t, err)
	assert.Equal(t, "IND-1", code)
}

func TestResolveFundingAccount_ExpenseDefenseUsesCatastrophe(t *testing.T) {
	code, err := ResolveFundingAccount(CostTypeExpenseDefense, "Hail", testAccounting())
	require.NoError(t, err)
	assert.Equal(t, "EDCC-CAT", code)

	code, err = ResolveFundingAccount(CostTypeExpenseDefense, "", testAccounting())
	require.NoError(t, err)
	assert.Equal(t, "EDCC-GEN", code)

	code, err = ResolveFundingAccount(CostTypeExpenseDefense, "Wildfire", testAccounting())
	require.NoError(t, err)
	assert.Equal(t, "EDCC-GEN", code)
}

func TestResolveFundingAccount_NoMatchIsConfigurationError(t *testing.T) {
	_, err := ResolveFundingAccount("Subrogation", "", testAccounting())
	assert.True(t, errors.Is(err, apperrors.ErrConfiguration))

	catOnly := ProductAccounting{ReservePaymentInfoList: []ReservePaymentInfo{
		{CostType: CostTypeExpenseDefense, CatastropheTypes: []string{"Hail"}, AccountCode: "X"},
	}}
	_, err = ResolveFundingAccount(CostTypeExpenseDefense, "", catOnly)
	assert.True(t, errors.Is(err, apperrors.ErrConfiguration))
}
