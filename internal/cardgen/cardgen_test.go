package cardgen

import (
	"testing"
	"time"
)

func TestNumber_SixteenDigits(t *testing.T) {
	t.Parallel()
	n, err := Number()
	if err != nil {
		t.Fatalf("Number: %v", err)
	}
	if len(n) != NumberLen {
		t.Fatalf("len = %d, want %d", len(n), NumberLen)
	}
	for i := 0; i < len(n); i++ {
		if n[i] < '0' || n[i] > '9' {
			t.Fatalf("non-digit at %d: %q", i, n)
		}
	}
}

func TestExpiryDate_LastDayOfMonth(t *testing.T) {
	t.Parallel()
	cases := []struct {
		issued time.Time
		want   time.Time
	}{
		{
			time.Date(2025, time.January, 15, 10, 30, 0, 0, time.UTC),
			time.Date(2028, time.January, 31, 0, 0, 0, 0, time.UTC),
		},
		{
			time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2028, time.February, 29, 0, 0, 0, 0, time.UTC), // leap year
		},
		{
			time.Date(2023, time.November, 30, 23, 59, 59, 0, time.UTC),
			time.Date(2026, time.November, 30, 0, 0, 0, 0, time.UTC),
		},
		{
			// leap-day issue must stay in February, not spill into March
			time.Date(2024, time.February, 29, 12, 0, 0, 0, time.UTC),
			time.Date(2027, time.February, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC),
			time.Date(2028, time.December, 31, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, c := range cases {
		if got := ExpiryDate(c.issued); !got.Equal(c.want) {
			t.Errorf("ExpiryDate(%v) = %v, want %v", c.issued, got, c.want)
		}
	}
}
