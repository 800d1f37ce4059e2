package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	appointmentRepo "bookline/database/repository/appointment"
	"bookline/models"

	"go.uber.org/zap"
)

type fakeApptRepo struct {
	inserted *models.Appointment
	insertedBuffer time.Duration
	insertErr error
	linkSet   string
}

func (f *fakeApptRepo) InsertIfFree(ctx context.Context, appt *models.Appointment, buffer time.Duration) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = appt
	f.insertedBuffer = buffer
	return nil
}

func (f *fakeApptRepo) ListOccupying(ctx context.Context, tenantID, resourceID string, from, to time.Time) ([]models.Appointment, error) {
	return nil, nil
}

func (f *fakeApptRepo) ListUpcomingByCustomer(ctx context.Context, tenantID, phone string, now time.Time) ([]models.Appointment, error) {
	return nil, nil
}

func (f *fakeApptRepo) GetByID(ctx context.Context, tenantID, apptID string) (*models.Appointment, error) {
	return f.inserted, nil
}

func (f *fakeApptRepo) UpdateStatus(ctx context.Context, tenantID, apptID, status string) error {
	return nil
}

func (f *fakeApptRepo) SetPaymentLink(ctx context.Context, tenantID, apptID, link string) error {
	f.linkSet = link
	return nil
}

type fakeLinker struct {
	link string
	err  error
	gotAmount float64
	gotExpiry time.Time
}

func (f *fakeLinker) CreateCheckoutLink(ctx context.Context, tenantID, refID string, amount float64, title string, expiry time.Time) (string, error) {
	f.gotAmount = amount
	f.gotExpiry = expiry
	return f.link, f.err
}

func baseRequest() BookRequest {
	return BookRequest{
		Tenant:      &models.TenantContext{ID: "t1"},
		Customer:    &models.Customer{TenantID: "t1", Phone: "+5491100000001", Name: "Ana"},
		Resource:    &models.Resource{ID: "r1", TenantID: "t1"},
		Service:     &models.Service{ID: "s1", TenantID: "t1", Name: "Lesson", DurationMin: 60, Price: 1000, Active: true},
		Start:       time.Date(2026, 9, 10, 10, 0, 0, 0, time.UTC),
		HoldMinutes: 30,
	}
}

func TestBook_PercentDepositAndHold(t *testing.T) {
	repo := &fakeApptRepo{}
	linker := &fakeLinker{link: "https://pay.example/123"}
	tr := &DefaultTransactor{
		Repo: repo, Payments: linker, Logger: zap.NewNop(),
		DepositPercent: 20, GranularityMin: 30, BufferMin: 10,
	}

	before := time.Now()
	res, err := tr.Book(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Book returned error: %v", err)
	}
	appt := res.Appointment
	if appt.Deposit != 200 {
		t.Errorf("deposit = %v, want 200 (20%% of 1000)", appt.Deposit)
	}
	if appt.Status != models.StatusPendingDeposit {
		t.Errorf("status = %s, want %s", appt.Status, models.StatusPendingDeposit)
	}
	holdFor := appt.HoldUntil.Sub(before)
	if holdFor < 29*time.Minute || holdFor > 31*time.Minute {
		t.Errorf("hold duration = %v, want ~30m", holdFor)
	}
	if linker.gotAmount != 200 {
		t.Errorf("checkout amount = %v, want 200", linker.gotAmount)
	}
	if !linker.gotExpiry.Equal(appt.HoldUntil) {
		t.Errorf("checkout expiry %v not aligned with hold %v", linker.gotExpiry, appt.HoldUntil)
	}
	if res.PaymentLink != "https://pay.example/123" {
		t.Errorf("payment link = %q", res.PaymentLink)
	}
	if repo.linkSet != res.PaymentLink {
		t.Errorf("payment link not persisted")
	}
	if repo.insertedBuffer != 10*time.Minute {
		t.Errorf("insert buffer = %v, want 10m", repo.insertedBuffer)
	}
}

func TestBook_ExemptCustomerSkipsDeposit(t *testing.T) {
	repo := &fakeApptRepo{}
	linker := &fakeLinker{err: errors.New("should not be called")}
	tr := &DefaultTransactor{
		Repo: repo, Payments: linker, Logger: zap.NewNop(),
		DepositPercent: 20, GranularityMin: 30,
	}

	req := baseRequest()
	req.Customer.DepositExempt = true
	res, err := tr.Book(context.Background(), req)
	if err != nil {
		t.Fatalf("Book returned error: %v", err)
	}
	if res.Appointment.Deposit != 0 {
		t.Errorf("deposit = %v, want 0", res.Appointment.Deposit)
	}
	if res.Appointment.Status != models.StatusScheduled {
		t.Errorf("status = %s, want %s", res.Appointment.Status, models.StatusScheduled)
	}
	if res.PaymentLink != "" || res.PaymentLinkErr != nil {
		t.Errorf("no payment link expected for exempt customer")
	}
}

func TestBook_ConflictIsDistinctFromPaymentFailure(t *testing.T) {
	repo := &fakeApptRepo{insertErr: appointmentRepo.ErrSlotConflict}
	tr := &DefaultTransactor{
		Repo: repo, Payments: &fakeLinker{}, Logger: zap.NewNop(),
		DepositPercent: 20, GranularityMin: 30,
	}

	_, err := tr.Book(context.Background(), baseRequest())
	if !errors.Is(err, ErrSlotConflict) {
		t.Fatalf("err = %v, want ErrSlotConflict", err)
	}
}

func TestBook_PaymentFailureLeavesBookingCommitted(t *testing.T) {
	repo := &fakeApptRepo{}
	linker := &fakeLinker{err: errors.New("provider down")}
	tr := &DefaultTransactor{
		Repo: repo, Payments: linker, Logger: zap.NewNop(),
		DepositPercent: 20, GranularityMin: 30,
	}

	res, err := tr.Book(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Book returned error: %v", err)
	}
	if repo.inserted == nil {
		t.Fatal("appointment was not committed")
	}
	var linkErr *PaymentLinkError
	if !errors.As(res.PaymentLinkErr, &linkErr) {
		t.Fatalf("PaymentLinkErr = %v, want *PaymentLinkError", res.PaymentLinkErr)
	}
}

// lockingApptRepo checks overlap and inserts under one lock, the way the
// real repository does it in one transaction.
type lockingApptRepo struct {
	mu    sync.Mutex
	appts []*models.Appointment
}

func (f *lockingApptRepo) InsertIfFree(ctx context.Context, appt *models.Appointment, buffer time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.appts {
		if a.TenantID == appt.TenantID && a.ResourceID == appt.ResourceID &&
			appt.Start.Before(a.End.Add(buffer)) && a.Start.Add(-buffer).Before(appt.End) {
			return appointmentRepo.ErrSlotConflict
		}
	}
	f.appts = append(f.appts, appt)
	return nil
}

func (f *lockingApptRepo) ListOccupying(ctx context.Context, tenantID, resourceID string, from, to time.Time) ([]models.Appointment, error) {
	return nil, nil
}

func (f *lockingApptRepo) ListUpcomingByCustomer(ctx context.Context, tenantID, phone string, now time.Time) ([]models.Appointment, error) {
	return nil, nil
}

func (f *lockingApptRepo) GetByID(ctx context.Context, tenantID, apptID string) (*models.Appointment, error) {
	return nil, nil
}

func (f *lockingApptRepo) UpdateStatus(ctx context.Context, tenantID, apptID, status string) error {
	return nil
}

func (f *lockingApptRepo) SetPaymentLink(ctx context.Context, tenantID, apptID, link string) error {
	return nil
}

func TestBook_ConcurrentDoubleBookingSingleWinner(t *testing.T) {
	repo := &lockingApptRepo{}
	tr := &DefaultTransactor{
		Repo: repo, Payments: &fakeLinker{link: "https://pay.example/123"}, Logger: zap.NewNop(),
		DepositPercent: 20, GranularityMin: 30, BufferMin: 10,
	}

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tr.Book(context.Background(), baseRequest())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var wins, conflicts int
	for err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrSlotConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || conflicts != 1 {
		t.Fatalf("got %d wins and %d conflicts, want exactly one of each", wins, conflicts)
	}
	if len(repo.appts) != 1 {
		t.Fatalf("%d appointments committed, want 1", len(repo.appts))
	}
}

func TestBook_HoldClamped(t *testing.T) {
	repo := &fakeApptRepo{}
	tr := &DefaultTransactor{Repo: repo, Payments: &fakeLinker{}, Logger: zap.NewNop(), GranularityMin: 30}

	for _, tc := range []struct {
		in   int
		want time.Duration
	}{
		{0, time.Minute},
		{45, 30 * time.Minute},
	} {
		req := baseRequest()
		req.HoldMinutes = tc.in
		before := time.Now()
		res, err := tr.Book(context.Background(), req)
		if err != nil {
			t.Fatalf("Book returned error: %v", err)
		}
		got := res.Appointment.HoldUntil.Sub(before)
		if got < tc.want-time.Minute || got > tc.want+time.Minute {
			t.Errorf("hold(%d) = %v, want ~%v", tc.in, got, tc.want)
		}
	}
}
