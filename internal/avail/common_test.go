package avail

import (
	"testing"
	"time"

	"github.com/example/calhub/internal/model"
)

func busy(start, end time.Time) model.BusyPeriod {
	return model.BusyPeriod{Start: start, End: end}
}

func TestMergeBusy(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	window := model.TimeRange{Start: day.Add(9 * time.Hour), End: day.Add(18 * time.Hour)}

	tests := []struct {
		name string
		in   []model.BusyPeriod
		want []model.BusyPeriod
	}{
		{
			name: "overlapping periods merge",
			in: []model.BusyPeriod{
				busy(day.Add(10*time.Hour), day.Add(11*time.Hour)),
				busy(day.Add(10*time.Hour+30*time.Minute), day.Add(12*time.Hour)),
			},
			want: []model.BusyPeriod{busy(day.Add(10*time.Hour), day.Add(12*time.Hour))},
		},
		{
			name: "touching periods merge, leaving no zero-width gap",
			in: []model.BusyPeriod{
				busy(day.Add(9*time.Hour), day.Add(10*time.Hour)),
				busy(day.Add(10*time.Hour), day.Add(11*time.Hour)),
			},
			want: []model.BusyPeriod{busy(day.Add(9*time.Hour), day.Add(11*time.Hour))},
		},
		{
			name: "out-of-order input is sorted",
			in: []model.BusyPeriod{
				busy(day.Add(14*time.Hour), day.Add(15*time.Hour)),
				busy(day.Add(10*time.Hour), day.Add(11*time.Hour)),
			},
			want: []model.BusyPeriod{
				busy(day.Add(10*time.Hour), day.Add(11*time.Hour)),
				busy(day.Add(14*time.Hour), day.Add(15*time.Hour)),
			},
		},
		{
			name: "periods clipped to the window, outside ones dropped",
			in: []model.BusyPeriod{
				busy(day.Add(8*time.Hour), day.Add(10*time.Hour)),
				busy(day.Add(19*time.Hour), day.Add(20*time.Hour)),
			},
			want: []model.BusyPeriod{busy(day.Add(9*time.Hour), day.Add(10*time.Hour))},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeBusy(tt.in, window)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d periods %v, want %d", len(got), got, len(tt.want))
			}
			for i := range got {
				if !got[i].Start.Equal(tt.want[i].Start) || !got[i].End.Equal(tt.want[i].End) {
					t.Errorf("period %d = %v-%v, want %v-%v", i, got[i].Start, got[i].End, tt.want[i].Start, tt.want[i].End)
				}
			}
		})
	}
}

func TestCommonFree(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	window := model.TimeRange{Start: day.Add(9 * time.Hour), End: day.Add(17 * time.Hour)}

	t.Run("no busy periods yields the whole window", func(t *testing.T) {
		got := CommonFree(nil, window, 30*time.Minute)
		if len(got) != 1 {
			t.Fatalf("got %d slots, want 1", len(got))
		}
		if !got[0].Start.Equal(window.Start) || !got[0].End.Equal(window.End) {
			t.Errorf("slot = %v-%v, want the full window", got[0].Start, got[0].End)
		}
		if got[0].DurationMinutes != 480 {
			t.Errorf("duration = %d, want 480", got[0].DurationMinutes)
		}
	})

	t.Run("fully booked yields nothing", func(t *testing.T) {
		full := []model.BusyPeriod{busy(window.Start, window.End)}
		if got := CommonFree(full, window, 30*time.Minute); len(got) != 0 {
			t.Errorf("got %d slots, want 0", len(got))
		}
	})

	t.Run("pooled busy from two people subtracts jointly", func(t *testing.T) {
		// Person A busy 10:00-12:00, person B busy 11:00-13:00 and
		// 15:00-16:00. Common free: 09:00-10:00, 13:00-15:00, 16:00-17:00.
		pool := []model.BusyPeriod{
			busy(day.Add(10*time.Hour), day.Add(12*time.Hour)),
			busy(day.Add(11*time.Hour), day.Add(13*time.Hour)),
			busy(day.Add(15*time.Hour), day.Add(16*time.Hour)),
		}
		got := CommonFree(pool, window, 30*time.Minute)
		if len(got) != 3 {
			t.Fatalf("got %d slots: %+v", len(got), got)
		}
		wantDurations := []int{60, 120, 60}
		for i, want := range wantDurations {
			if got[i].DurationMinutes != want {
				t.Errorf("slot %d duration = %d, want %d", i, got[i].DurationMinutes, want)
			}
		}
	})

	t.Run("gaps below minimum are suppressed", func(t *testing.T) {
		pool := []model.BusyPeriod{
			busy(day.Add(9*time.Hour+20*time.Minute), day.Add(16*time.Hour+30*time.Minute)),
		}
		// Leaves 09:00-09:20 and 16:30-17:00; only the latter survives a
		// 30-minute minimum.
		got := CommonFree(pool, window, 30*time.Minute)
		if len(got) != 1 {
			t.Fatalf("got %d slots: %+v", len(got), got)
		}
		if got[0].DurationMinutes != 30 {
			t.Errorf("duration = %d, want 30", got[0].DurationMinutes)
		}
	})

	t.Run("back-to-back meetings leave no phantom gap", func(t *testing.T) {
		pool := []model.BusyPeriod{
			busy(day.Add(9*time.Hour), day.Add(12*time.Hour)),
			busy(day.Add(12*time.Hour), day.Add(17*time.Hour)),
		}
		if got := CommonFree(pool, window, time.Minute); len(got) != 0 {
			t.Errorf("got %v, want no slots", got)
		}
	})

	t.Run("non-positive minimum falls back to default", func(t *testing.T) {
		pool := []model.BusyPeriod{
			busy(day.Add(9*time.Hour+10*time.Minute), day.Add(17*time.Hour)),
		}
		// The 10-minute head gap is below the 30-minute default.
		if got := CommonFree(pool, window, 0); len(got) != 0 {
			t.Errorf("got %v, want no slots under the default minimum", got)
		}
	})
}
