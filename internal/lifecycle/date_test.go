package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-28")
	require.NoError(t, err)
	assert.Equal(t, NewDate(2024, time.February, 28), d)
	assert.Equal(t, "2024-02-29", d.AddDays(1).String())
	assert.Equal(t, "2024-03-01", d.AddDays(2).String())

	_, err = ParseDate("28/02/2024")
	assert.Error(t, err)
}

func TestDate_DropsTimeOfDay(t *testing.T) {
	a := NewDate(2024, time.January, 1)

	assert.Equal(t, a, DateOf(time.Date(2024, 1, 1, 23, 59, 0, 0, time.UTC)))
	assert.Less(t, a.String(), NewDate(2024, time.January, 31).String())
}

func TestDate_JSON(t *testing.T) {
	var v struct {
		From Date `json:"from"`
		To   Date `json:"to"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"from":"2024-01-01","to":null}`), &v))
	assert.Equal(t, "2024-01-01", v.From.String())
	assert.True(t, v.To.IsZero())

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"from":"2024-01-01","to":null}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"from":20240101}`), &v))
}

func TestDate_Scan(t *testing.T) {
	want := NewDate(2024, time.March, 5)

	for _, src := range []any{
		time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		"2024-03-05",
		[]byte("2024-03-05"),
		"2024-03-05T00:00:00Z",
	} {
		var d Date
		require.NoError(t, d.Scan(src), "Scan(%v)", src)
		assert.Equal(t, want, d, "Scan(%v)", src)
	}

	var d Date
	require.NoError(t, d.Scan(nil))
	assert.True(t, d.IsZero())
	assert.Error(t, d.Scan(42))

	v, err := Date{}.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestDate_AddDaysProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		d := NewDate(rapid.IntRange(1990, 2100).Draw(t, "year"),
			time.Month(rapid.IntRange(1, 12).Draw(t, "month")),
			rapid.IntRange(1, 28).Draw(t, "day"))
		n := rapid.IntRange(1, 3650).Draw(t, "days")

		later := d.AddDays(n)
		if later.String() <= d.String() {
			t.Fatalf("%s + %d = %s, not after", d, n, later)
		}
		if got := later.AddDays(-n); got != d {
			t.Fatalf("%s + %d - %d = %s", d, n, n, got)
		}

		parsed, err := ParseDate(later.String())
		if err != nil || parsed != later {
			t.Fatalf("round trip of %s gave %s, %v", later, parsed, err)
		}
	})
}
