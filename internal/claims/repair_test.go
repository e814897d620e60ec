package claims

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRepairNumericTotals_Addition(t *testing.T) {
	in := `{"summary":"s","totalRequested": 10.00 + 5.50 + 2.09,"totalApproved": 10.00}`
	out := RepairNumericTotals(in)
	require.Contains(t, out, `"totalRequested": 17.59`)
	require.Contains(t, out, `"totalApproved": 10.00`)
}

func TestRepairNumericTotals_LiteralUntouched(t *testing.T) {
	in := `{"totalRequested": 42.50, "totalApproved": 0}`
	require.Equal(t, in, RepairNumericTotals(in))
}

func TestRepairNumericTotals_OtherFieldsIgnored(t *testing.T) {
	in := `{"price": 1 + 2, "totalApproved": 3.00 + 4.00}`
	out := RepairNumericTotals(in)
	require.Contains(t, out, `"price": 1 + 2`)
	require.Contains(t, out, `"totalApproved": 7.00`)
}

func TestRepairNumericTotals_NonAdditionLeftForParser(t *testing.T) {
	in := `{"totalRequested": 3 * 4,"totalApproved": 1.00}`
	require.Equal(t, in, RepairNumericTotals(in))
}

func TestExtractJSONObject(t *testing.T) {
	obj, ok := ExtractJSONObject("Here is the result: {\"a\":1} thanks")
	require.True(t, ok)
	require.Equal(t, `{"a":1}`, obj)

	_, ok = ExtractJSONObject("no object here")
	require.False(t, ok)
}
