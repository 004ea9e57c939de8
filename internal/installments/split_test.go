package installments

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sadman-arif/consultpay/internal/model"
)

func TestSplit_SumsExactly(t *testing.T) {
	totals := []int64{20000, 10001, 9999, 7, 333333}
	for _, total := range totals {
		for n := model.MinInstallments; n <= model.MaxInstallments; n++ {
			parts, err := Split(total, n)
			require.NoError(t, err, "total=%d n=%d", total, n)
			require.Len(t, parts, n)

			var sum int64
			for _, p := range parts {
				sum += p
			}
			require.Equal(t, total, sum, "total=%d n=%d parts=%v", total, n, parts)
		}
	}
}

func TestSplit_LastPartAbsorbsRemainder(t *testing.T) {
	// 10000 / 3 rounds to 3333; the last part carries the extra cent.
	parts, err := Split(10000, 3)
	require.NoError(t, err)
	require.Equal(t, []int64{3333, 3333, 3334}, parts)
}

func TestSplit_CountOutOfRange(t *testing.T) {
	for _, n := range []int{0, 1, 7, -2} {
		_, err := Split(10000, n)
		require.ErrorIs(t, err, model.ErrInvalidRange, "n=%d", n)
	}
}

func TestSplit_RejectsNonPositiveTotal(t *testing.T) {
	var verr *model.ValidationError
	_, err := Split(0, 3)
	require.ErrorAs(t, err, &verr)
	_, err = Split(-100, 3)
	require.ErrorAs(t, err, &verr)
}

func TestSchedule(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	seq := 0
	newID := func() string {
		seq++
		return "ins-" + string(rune('0'+seq))
	}

	rows := Schedule("plan-1", []int64{5000, 5000, 5001}, now, "pi_first", newID)
	require.Len(t, rows, 3)

	first := rows[0]
	require.Equal(t, model.InstallmentPaid, first.Status)
	require.Equal(t, "pi_first", first.PaymentRef)
	require.NotNil(t, first.PaidAt)
	require.Equal(t, now, first.DueAt)

	for i, r := range rows[1:] {
		require.Equal(t, model.InstallmentPending, r.Status)
		require.Nil(t, r.PaidAt)
		require.Equal(t, now.AddDate(0, i+1, 0), r.DueAt)
	}

	require.True(t, rows[1].Overdue(now.AddDate(0, 1, 1)))
	require.False(t, rows[1].Overdue(now))
}
