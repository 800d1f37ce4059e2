package availability

import (
	"reflect"
	"testing"
	"time"

	"bookline/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func hoursFor(wd int, open, close string) []models.WorkingHours {
	return []models.WorkingHours{{ResourceID: "r1", TenantID: "t1", Weekday: wd, Open: open, Close: close}}
}

// Wednesday 2026-09-02.
var wednesday = day(2026, time.September, 2)

func TestCompute_BufferedAppointmentScenario(t *testing.T) {
	// Working hours 09:00-12:00, appointment 10:00-10:30, duration 30,
	// buffer 10: the occupied window widens to 09:50-10:40.
	appt := models.Appointment{
		Status: models.StatusScheduled,
		Start:  wednesday.Add(10 * time.Hour),
		End:    wednesday.Add(10*time.Hour + 30*time.Minute),
	}
	all, busy := Compute(ComputeInput{
		Date:           wednesday,
		Now:            wednesday.Add(-24 * time.Hour),
		DurationMin:    30,
		GranularityMin: 30,
		BufferMin:      10,
		Hours:          hoursFor(3, "09:00", "12:00"),
		Appointments:   []models.Appointment{appt},
	})

	wantAll := []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30"}
	wantBusy := []string{"09:30", "10:00", "10:30"}
	if !reflect.DeepEqual(all, wantAll) {
		t.Fatalf("all slots = %v, want %v", all, wantAll)
	}
	if !reflect.DeepEqual(busy, wantBusy) {
		t.Fatalf("busy slots = %v, want %v", busy, wantBusy)
	}
}

func TestCompute_BusySubsetOfAll(t *testing.T) {
	appt := models.Appointment{
		Start: wednesday.Add(9 * time.Hour),
		End:   wednesday.Add(11 * time.Hour),
	}
	all, busy := Compute(ComputeInput{
		Date:           wednesday,
		Now:            wednesday.Add(-time.Hour),
		GranularityMin: 30,
		Hours:          hoursFor(3, "09:00", "17:00"),
		Appointments:   []models.Appointment{appt},
	})
	set := make(map[string]bool, len(all))
	for _, s := range all {
		set[s] = true
	}
	for _, b := range busy {
		if !set[b] {
			t.Fatalf("busy slot %s not present in all slots", b)
		}
	}
	if len(busy) == 0 {
		t.Fatal("expected busy slots for a 9-11 appointment")
	}
}

func TestCompute_NoWorkingHours(t *testing.T) {
	all, busy := Compute(ComputeInput{
		Date:           wednesday,
		Now:            wednesday,
		GranularityMin: 30,
		Hours:          hoursFor(5, "09:00", "12:00"), // Friday, not Wednesday
	})
	if len(all) != 0 || len(busy) != 0 {
		t.Fatalf("expected empty result, got all=%v busy=%v", all, busy)
	}
}

func TestCompute_DropsPastSlotsToday(t *testing.T) {
	now := wednesday.Add(10*time.Hour + 5*time.Minute)
	all, _ := Compute(ComputeInput{
		Date:           wednesday,
		Now:            now,
		GranularityMin: 30,
		Hours:          hoursFor(3, "09:00", "12:00"),
	})
	want := []string{"10:30", "11:00", "11:30"}
	if !reflect.DeepEqual(all, want) {
		t.Fatalf("all slots = %v, want %v", all, want)
	}
}

func TestCompute_SlotStartingExactlyNowIsDropped(t *testing.T) {
	now := wednesday.Add(10*time.Hour + 30*time.Minute)
	all, _ := Compute(ComputeInput{
		Date:           wednesday,
		Now:            now,
		GranularityMin: 30,
		Hours:          hoursFor(3, "09:00", "12:00"),
	})
	want := []string{"11:00", "11:30"}
	if !reflect.DeepEqual(all, want) {
		t.Fatalf("all slots = %v, want %v", all, want)
	}
}

func TestCompute_OverrideNarrowerThanDuration(t *testing.T) {
	// A granularity override may place starts closer together than the
	// service duration; the last start must still fit the full duration
	// before close.
	all, _ := Compute(ComputeInput{
		Date:           wednesday,
		Now:            wednesday.Add(-time.Hour),
		DurationMin:    45,
		GranularityMin: 30,
		Hours:          hoursFor(3, "09:00", "11:00"),
	})
	want := []string{"09:00", "09:30", "10:00"}
	if !reflect.DeepEqual(all, want) {
		t.Fatalf("all slots = %v, want %v", all, want)
	}
}

func TestCompute_BothWeekdayConventions(t *testing.T) {
	sunday := day(2026, time.September, 6)
	for _, stored := range []int{0, 7} {
		all, _ := Compute(ComputeInput{
			Date:           sunday,
			Now:            sunday.Add(-time.Hour),
			GranularityMin: 60,
			Hours:          hoursFor(stored, "10:00", "12:00"),
		})
		if len(all) != 2 {
			t.Fatalf("weekday %d: got %v, want two Sunday slots", stored, all)
		}
	}
}

func TestCompute_TimeOffMarksBusy(t *testing.T) {
	off := models.TimeOff{
		Start: wednesday.Add(9 * time.Hour),
		End:   wednesday.Add(10 * time.Hour),
	}
	_, busy := Compute(ComputeInput{
		Date:           wednesday,
		Now:            wednesday.Add(-time.Hour),
		GranularityMin: 30,
		Hours:          hoursFor(3, "09:00", "12:00"),
		TimeOff:        []models.TimeOff{off},
	})
	want := []string{"09:00", "09:30"}
	if !reflect.DeepEqual(busy, want) {
		t.Fatalf("busy = %v, want %v", busy, want)
	}
}

func TestCompute_Idempotent(t *testing.T) {
	in := ComputeInput{
		Date:           wednesday,
		Now:            wednesday.Add(-time.Hour),
		DurationMin:    30,
		GranularityMin: 30,
		BufferMin:      10,
		Hours:          hoursFor(3, "09:00", "12:00"),
		Appointments: []models.Appointment{{
			Start: wednesday.Add(10 * time.Hour),
			End:   wednesday.Add(10*time.Hour + 30*time.Minute),
		}},
	}
	all1, busy1 := Compute(in)
	all2, busy2 := Compute(in)
	if !reflect.DeepEqual(all1, all2) || !reflect.DeepEqual(busy1, busy2) {
		t.Fatalf("computation not idempotent: (%v,%v) vs (%v,%v)", all1, busy1, all2, busy2)
	}
}
