package checkup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/clinic/clinic/internal/domain/identity"
)

// -- Mock Repository --

// mockRepo mirrors the optimistic version check of the Postgres repo so
// concurrency behaviour can be exercised without a database.
type mockRepo struct {
	mu       sync.Mutex
	checkups map[int64]*Checkup
	nextID   int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{checkups: make(map[int64]*Checkup), nextID: 1}
}

func (m *mockRepo) Create(_ context.Context, c *Checkup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.nextID
	m.nextID++
	c.CreatedAt = time.Now()
	c.UpdatedAt = time.Now()
	cp := *c
	m.checkups[c.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id int64) (*Checkup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.checkups[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockRepo) Save(_ context.Context, c *Checkup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.checkups[c.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != c.Version {
		return ErrConflict
	}
	c.Version++
	c.UpdatedAt = time.Now()
	cp := *c
	m.checkups[c.ID] = &cp
	return nil
}

func (m *mockRepo) FindAvailable(_ context.Context, doctorID *int64, from, to time.Time) ([]*Checkup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*Checkup
	for _, c := range m.checkups {
		if c.State != StateAvailable {
			continue
		}
		if doctorID != nil && c.DoctorID != *doctorID {
			continue
		}
		if c.StartTime.Before(from) || c.EndTime.After(to) {
			continue
		}
		cp := *c
		result = append(result, &cp)
	}
	return result, nil
}

func (m *mockRepo) HasDoctorOverlap(_ context.Context, doctorID int64, start, end time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.checkups {
		if c.DoctorID == doctorID && c.State != StateCancelled && c.Overlaps(start, end) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepo) HasPatientOverlap(_ context.Context, patientID int64, start, end time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.checkups {
		if c.PatientID != nil && *c.PatientID == patientID &&
			(c.State == StateBooked || c.State == StateCompleted) && c.Overlaps(start, end) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID int64, upcoming bool, now time.Time, limit, offset int) ([]*Checkup, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*Checkup
	for _, c := range m.checkups {
		if c.PatientID == nil || *c.PatientID != patientID {
			continue
		}
		isUpcoming := c.State == StateBooked && !c.StartTime.Before(now)
		if upcoming == isUpcoming {
			cp := *c
			result = append(result, &cp)
		}
	}
	total := len(result)
	if offset >= len(result) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], total, nil
}

func (m *mockRepo) ListElapsedBooked(_ context.Context, now time.Time) ([]*Checkup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*Checkup
	for _, c := range m.checkups {
		if c.State == StateBooked && !c.EndTime.After(now) {
			cp := *c
			result = append(result, &cp)
		}
	}
	return result, nil
}

// -- Mock Collaborators --

type mockUsers struct {
	users map[int64]*identity.User
}

func newMockUsers() *mockUsers {
	return &mockUsers{users: make(map[int64]*identity.User)}
}

func (m *mockUsers) GetUser(_ context.Context, id int64) (*identity.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return u, nil
}

func (m *mockUsers) addDoctor(id int64) {
	m.users[id] = &identity.User{ID: id, Role: identity.RoleDoctor, Status: identity.StatusActive}
}

func (m *mockUsers) addPatient(id int64, status int) {
	m.users[id] = &identity.User{ID: id, Role: identity.RolePatient, Status: status}
}

type cancellationRecord struct {
	patientID, doctorID    int64
	startTime, cancelledAt time.Time
}

type mockRecorder struct {
	mu      sync.Mutex
	records []cancellationRecord
}

func (m *mockRecorder) RecordCancellation(_ context.Context, patientID, doctorID int64, startTime, cancelledAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, cancellationRecord{patientID, doctorID, startTime, cancelledAt})
	return nil
}

func newTestService() (*Service, *mockRepo, *mockUsers, *mockRecorder) {
	repo := newMockRepo()
	users := newMockUsers()
	recorder := &mockRecorder{}
	svc := NewService(repo, users, recorder, nil, time.Hour)
	return svc, repo, users, recorder
}

// -- Tests --

func TestCreateSlot(t *testing.T) {
	svc, _, users, _ := newTestService()
	users.addDoctor(1)

	start := time.Now().Add(24 * time.Hour)
	slot, err := svc.CreateSlot(context.Background(), 1, start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slot.State != StateAvailable {
		t.Errorf("expected state available, got %q", slot.State)
	}
	if !slot.EndTime.Equal(start.Add(time.Hour)) {
		t.Errorf("expected end %v, got %v", start.Add(time.Hour), slot.EndTime)
	}
}

func TestCreateSlot_Overlap(t *testing.T) {
	svc, _, users, _ := newTestService()
	users.addDoctor(1)

	start := time.Now().Add(24 * time.Hour)
	if _, err := svc.CreateSlot(context.Background(), 1, start); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := svc.CreateSlot(context.Background(), 1, start.Add(30*time.Minute))
	if !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}

	// A different doctor may use the same window.
	users.addDoctor(2)
	if _, err := svc.CreateSlot(context.Background(), 2, start); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCreateSlot_PastStart(t *testing.T) {
	svc, _, users, _ := newTestService()
	users.addDoctor(1)

	_, err := svc.CreateSlot(context.Background(), 1, time.Now().Add(-time.Hour))
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestFindAvailable_TimePriority(t *testing.T) {
	svc, _, users, _ := newTestService()
	users.addDoctor(1)
	users.addDoctor(2)

	base := time.Now().Add(24 * time.Hour)
	svc.CreateSlot(context.Background(), 2, base.Add(2*time.Hour))
	svc.CreateSlot(context.Background(), 1, base)
	svc.CreateSlot(context.Background(), 2, base.Add(4*time.Hour))

	slots, err := svc.FindAvailable(context.Background(), AvailabilityQuery{
		From:     base.Add(-time.Hour),
		To:       base.Add(6 * time.Hour),
		Priority: PriorityTime,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(slots))
	}
	for i := 1; i < len(slots); i++ {
		if slots[i].StartTime.Before(slots[i-1].StartTime) {
			t.Error("expected slots ordered by start time")
		}
	}
}

func TestFindAvailable_DoctorPriority(t *testing.T) {
	svc, _, users, _ := newTestService()
	users.addDoctor(1)
	users.addDoctor(2)

	base := time.Now().Add(24 * time.Hour)
	svc.CreateSlot(context.Background(), 2, base)
	svc.CreateSlot(context.Background(), 1, base.Add(2*time.Hour))
	svc.CreateSlot(context.Background(), 2, base.Add(4*time.Hour))
	svc.CreateSlot(context.Background(), 1, base.Add(6*time.Hour))

	slots, err := svc.FindAvailable(context.Background(), AvailabilityQuery{
		From:     base.Add(-time.Hour),
		To:       base.Add(8 * time.Hour),
		Priority: PriorityDoctor,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 4 {
		t.Fatalf("expected 4 slots, got %d", len(slots))
	}
	for i := 1; i < len(slots); i++ {
		prev, cur := slots[i-1], slots[i]
		if cur.DoctorID < prev.DoctorID {
			t.Error("expected slots grouped by doctor id")
		}
		if cur.DoctorID == prev.DoctorID && cur.StartTime.Before(prev.StartTime) {
			t.Error("expected start time order within a doctor group")
		}
	}
}

func TestFindAvailable_DoctorFilter(t *testing.T) {
	svc, _, users, _ := newTestService()
	users.addDoctor(1)
	users.addDoctor(3)

	base := time.Now().Add(24 * time.Hour)
	svc.CreateSlot(context.Background(), 1, base)
	svc.CreateSlot(context.Background(), 3, base.Add(2*time.Hour))

	doctorID := int64(3)
	slots, err := svc.FindAvailable(context.Background(), AvailabilityQuery{
		DoctorID: &doctorID,
		From:     base.Add(-time.Hour),
		To:       base.Add(4 * time.Hour),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 1 || slots[0].DoctorID != 3 {
		t.Errorf("expected only doctor 3 slots, got %+v", slots)
	}
}

func TestFindAvailable_InvertedRange(t *testing.T) {
	svc, _, _, _ := newTestService()

	now := time.Now()
	_, err := svc.FindAvailable(context.Background(), AvailabilityQuery{
		From: now.Add(time.Hour),
		To:   now,
	})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestBook(t *testing.T) {
	svc, _, users, _ := newTestService()
	users.addDoctor(1)
	users.addPatient(2, identity.StatusActive)

	slot, err := svc.CreateSlot(context.Background(), 1, time.Now().Add(24*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	booked, err := svc.Book(context.Background(), slot.ID, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if booked.State != StateBooked {
		t.Errorf("expected state booked, got %q", booked.State)
	}
	if booked.PatientID == nil || *booked.PatientID != 2 {
		t.Error("expected patient 2 to be bound")
	}
}

func TestBook_NotFound(t *testing.T) {
	svc, _, users, _ := newTestService()
	users.addPatient(2, identity.StatusActive)

	_, err := svc.Book(context.Background(), 99, 2)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestBook_AlreadyBooked(t *testing.T) {
	svc, _, users, _ := newTestService()
	users.addDoctor(1)
	users.addPatient(2, identity.StatusActive)
	users.addPatient(3, identity.StatusActive)

	slot, _ := svc.CreateSlot(context.Background(), 1, time.Now().Add(24*time.Hour))
	if _, err := svc.Book(context.Background(), slot.ID, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := svc.Book(context.Background(), slot.ID, 3)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestBook_InactivePatient(t *testing.T) {
	svc, _, users, _ := newTestService()
	users.addDoctor(1)
	users.addPatient(2, identity.StatusBlocked)
	users.addPatient(3, identity.StatusPending)

	slot, _ := svc.CreateSlot(context.Background(), 1, time.Now().Add(24*time.Hour))

	if _, err := svc.Book(context.Background(), slot.ID, 2); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for blocked patient, got %v", err)
	}
	if _, err := svc.Book(context.Background(), slot.ID, 3); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for pending patient, got %v", err)
	}
}

func TestBook_PatientOverlap(t *testing.T) {
	svc, _, users, _ := newTestService()
	users.addDoctor(1)
	users.addDoctor(2)
	users.addPatient(3, identity.StatusActive)

	start := time.Now().Add(24 * time.Hour)
	first, _ := svc.CreateSlot(context.Background(), 1, start)
	second, _ := svc.CreateSlot(context.Background(), 2, start.Add(30*time.Minute))

	if _, err := svc.Book(context.Background(), first.ID, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := svc.Book(context.Background(), second.ID, 3)
	if !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

// Booking exclusivity: many concurrent bookings of one slot, exactly
// one winner.
func TestBook_ConcurrentExclusivity(t *testing.T) {
	svc, _, users, _ := newTestService()
	users.addDoctor(1)

	const callers = 16
	for i := int64(0); i < callers; i++ {
		users.addPatient(100+i, identity.StatusActive)
	}

	slot, err := svc.CreateSlot(context.Background(), 1, time.Now().Add(24*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := int64(0); i < callers; i++ {
		wg.Add(1)
		go func(patientID int64) {
			defer wg.Done()
			_, err := svc.Book(context.Background(), slot.ID, patientID)
			results <- err
		}(100 + i)
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
		} else if !errors.Is(err, ErrConflict) && !errors.Is(err, ErrNotFound) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("expected exactly one successful booking, got %d", wins)
	}
}

func TestCancel_Booked(t *testing.T) {
	svc, _, users, recorder := newTestService()
	users.addDoctor(1)
	users.addPatient(2, identity.StatusActive)

	slot, _ := svc.CreateSlot(context.Background(), 1, time.Now().Add(24*time.Hour))
	if _, err := svc.Book(context.Background(), slot.ID, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cancelled, err := svc.Cancel(context.Background(), slot.ID, 2, identity.RolePatient, "cannot make it")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.State != StateCancelled {
		t.Errorf("expected state cancelled, got %q", cancelled.State)
	}
	if cancelled.CancellationTime == nil {
		t.Error("expected cancellation time to be set")
	}
	if len(recorder.records) != 1 {
		t.Fatalf("expected 1 cancellation record, got %d", len(recorder.records))
	}
	if recorder.records[0].patientID != 2 || recorder.records[0].doctorID != 1 {
		t.Errorf("cancellation attributed to wrong parties: %+v", recorder.records[0])
	}
}

func TestCancel_AvailableSlotNoMisconduct(t *testing.T) {
	svc, _, users, recorder := newTestService()
	users.addDoctor(1)

	slot, _ := svc.CreateSlot(context.Background(), 1, time.Now().Add(24*time.Hour))

	cancelled, err := svc.Cancel(context.Background(), slot.ID, 1, identity.RoleDoctor, "doctor unavailable")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.State != StateCancelled {
		t.Errorf("expected state cancelled, got %q", cancelled.State)
	}
	if len(recorder.records) != 0 {
		t.Errorf("expected no cancellation records, got %d", len(recorder.records))
	}
}

func TestCancel_RequiresReason(t *testing.T) {
	svc, _, users, _ := newTestService()
	users.addDoctor(1)

	slot, _ := svc.CreateSlot(context.Background(), 1, time.Now().Add(24*time.Hour))

	_, err := svc.Cancel(context.Background(), slot.ID, 1, identity.RoleDoctor, "")
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestCancel_TerminalStates(t *testing.T) {
	svc, repo, users, _ := newTestService()
	users.addDoctor(1)

	slot, _ := svc.CreateSlot(context.Background(), 1, time.Now().Add(24*time.Hour))
	if _, err := svc.Cancel(context.Background(), slot.ID, 1, identity.RoleDoctor, "withdrawn"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Cancelled is terminal.
	if _, err := svc.Cancel(context.Background(), slot.ID, 1, identity.RoleDoctor, "again"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for cancelled checkup, got %v", err)
	}

	// Completed is terminal too.
	completed := &Checkup{DoctorID: 1, StartTime: time.Now().Add(48 * time.Hour),
		EndTime: time.Now().Add(49 * time.Hour), State: StateCompleted, Version: 1}
	repo.Create(context.Background(), completed)
	if _, err := svc.Cancel(context.Background(), completed.ID, 1, identity.RoleDoctor, "too late"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for completed checkup, got %v", err)
	}
}

func TestCancel_AfterStart(t *testing.T) {
	svc, repo, users, _ := newTestService()
	users.addDoctor(1)
	users.addPatient(2, identity.StatusActive)

	patientID := int64(2)
	started := &Checkup{DoctorID: 1, PatientID: &patientID,
		StartTime: time.Now().Add(-time.Hour), EndTime: time.Now().Add(time.Hour),
		State: StateBooked, Version: 1}
	repo.Create(context.Background(), started)

	_, err := svc.Cancel(context.Background(), started.ID, 2, identity.RolePatient, "too late")
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

// A patient must not be able to cancel another patient's booking, which
// would otherwise attribute the cancellation to the booking patient.
func TestCancel_OtherPatientRejected(t *testing.T) {
	svc, repo, users, recorder := newTestService()
	users.addDoctor(1)
	users.addPatient(2, identity.StatusActive)
	users.addPatient(3, identity.StatusActive)

	slot, _ := svc.CreateSlot(context.Background(), 1, time.Now().Add(24*time.Hour))
	if _, err := svc.Book(context.Background(), slot.ID, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.Cancel(context.Background(), slot.ID, 3, identity.RolePatient, "not mine"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for foreign patient, got %v", err)
	}
	if len(recorder.records) != 0 {
		t.Errorf("expected no cancellation records, got %d", len(recorder.records))
	}
	got, _ := repo.GetByID(context.Background(), slot.ID)
	if got.State != StateBooked {
		t.Errorf("expected booking untouched, got state %q", got.State)
	}
}

func TestCancel_OtherDoctorRejected(t *testing.T) {
	svc, _, users, _ := newTestService()
	users.addDoctor(1)
	users.addDoctor(4)

	slot, _ := svc.CreateSlot(context.Background(), 1, time.Now().Add(24*time.Hour))

	if _, err := svc.Cancel(context.Background(), slot.ID, 4, identity.RoleDoctor, "not my slot"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for foreign doctor, got %v", err)
	}
}

func TestCancel_AdminAllowed(t *testing.T) {
	svc, _, users, recorder := newTestService()
	users.addDoctor(1)
	users.addPatient(2, identity.StatusActive)

	slot, _ := svc.CreateSlot(context.Background(), 1, time.Now().Add(24*time.Hour))
	if _, err := svc.Book(context.Background(), slot.ID, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cancelled, err := svc.Cancel(context.Background(), slot.ID, 9, identity.RoleAdmin, "clinic closed")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.State != StateCancelled {
		t.Errorf("expected state cancelled, got %q", cancelled.State)
	}
	if len(recorder.records) != 1 {
		t.Errorf("expected the booking patient's cancellation recorded, got %d", len(recorder.records))
	}
}

func TestGetPatientCheckUps(t *testing.T) {
	svc, repo, users, _ := newTestService()
	users.addDoctor(1)
	users.addPatient(2, identity.StatusActive)

	patientID := int64(2)
	upcoming := &Checkup{DoctorID: 1, PatientID: &patientID,
		StartTime: time.Now().Add(24 * time.Hour), EndTime: time.Now().Add(25 * time.Hour),
		State: StateBooked, Version: 1}
	past := &Checkup{DoctorID: 1, PatientID: &patientID,
		StartTime: time.Now().Add(-25 * time.Hour), EndTime: time.Now().Add(-24 * time.Hour),
		State: StateCompleted, Version: 1}
	repo.Create(context.Background(), upcoming)
	repo.Create(context.Background(), past)

	items, total, err := svc.GetPatientCheckUps(context.Background(), 2, "upcoming", 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || items[0].ID != upcoming.ID {
		t.Errorf("expected only the upcoming checkup, got %+v", items)
	}

	items, total, err = svc.GetPatientCheckUps(context.Background(), 2, "history", 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || items[0].ID != past.ID {
		t.Errorf("expected only the past checkup, got %+v", items)
	}

	if _, _, err := svc.GetPatientCheckUps(context.Background(), 2, "bogus", 20, 0); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestCompleteElapsed(t *testing.T) {
	svc, repo, users, _ := newTestService()
	users.addDoctor(1)
	users.addPatient(2, identity.StatusActive)

	patientID := int64(2)
	elapsed := &Checkup{DoctorID: 1, PatientID: &patientID,
		StartTime: time.Now().Add(-2 * time.Hour), EndTime: time.Now().Add(-time.Hour),
		State: StateBooked, Version: 1}
	future := &Checkup{DoctorID: 1, PatientID: &patientID,
		StartTime: time.Now().Add(24 * time.Hour), EndTime: time.Now().Add(25 * time.Hour),
		State: StateBooked, Version: 1}
	repo.Create(context.Background(), elapsed)
	repo.Create(context.Background(), future)

	n, err := svc.CompleteElapsed(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 completion, got %d", n)
	}

	got, _ := repo.GetByID(context.Background(), elapsed.ID)
	if got.State != StateCompleted {
		t.Errorf("expected state completed, got %q", got.State)
	}
	got, _ = repo.GetByID(context.Background(), future.ID)
	if got.State != StateBooked {
		t.Errorf("expected future checkup untouched, got %q", got.State)
	}
}
