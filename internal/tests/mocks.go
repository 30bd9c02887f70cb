package tests

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/maps"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
	"dispatch/internal/service"
)

// ──────────────────────────────────────────────
// MOCK RIDE REPOSITORY
// ──────────────────────────────────────────────

// MockRideRepository is an in-memory implementation of RideRepository. Its
// UpdateIfStatus holds the store lock for the whole read-mutate-write cycle,
// matching the row-lock semantics of the real implementation, so the
// acceptance race behaves the same under test as in production.
type MockRideRepository struct {
	mu    sync.RWMutex
	rides map[string]*domain.Ride

	// Counters for verification
	CreateCallCount int32
	UpdateCallCount int32

	// Error injection
	CreateError error
	UpdateError error
}

// NewMockRideRepository creates a new mock ride repository.
func NewMockRideRepository() *MockRideRepository {
	return &MockRideRepository{
		rides: make(map[string]*domain.Ride),
	}
}

// AddRide seeds a ride into the mock repository.
func (m *MockRideRepository) AddRide(ride *domain.Ride) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides[ride.ID] = copyRide(ride)
}

func (m *MockRideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides[ride.ID] = copyRide(ride)
	return nil
}

func (m *MockRideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ride, ok := m.rides[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyRide(ride), nil
}

func (m *MockRideRepository) FindActiveByRider(ctx context.Context, riderID string) (*domain.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rides {
		if r.RiderID == riderID && !r.Status.IsTerminal() {
			return copyRide(r), nil
		}
	}
	return nil, nil
}

func (m *MockRideRepository) FindPendingByClass(ctx context.Context, class domain.VehicleClass, now time.Time, limit int) ([]*domain.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Ride
	for _, r := range m.rides {
		if len(result) >= limit {
			break
		}
		if r.Status == domain.RideStatusPending && r.VehicleClass == class && !r.ExpiredAt(now) {
			result = append(result, copyRide(r))
		}
	}
	return result, nil
}

func (m *MockRideRepository) FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]*domain.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Ride
	for _, r := range m.rides {
		if len(result) >= limit {
			break
		}
		if r.Status == domain.RideStatusPending && r.ExpiredAt(now) {
			result = append(result, copyRide(r))
		}
	}
	return result, nil
}

func (m *MockRideRepository) UpdateIfStatus(ctx context.Context, id string, expected domain.RideStatus, mutate func(*domain.Ride) error) (*domain.Ride, error) {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateError != nil {
		return nil, m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	ride, ok := m.rides[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if ride.Status != expected {
		return nil, repository.ErrPreconditionFailed
	}

	working := copyRide(ride)
	if err := mutate(working); err != nil {
		return nil, err
	}

	m.rides[id] = working
	return copyRide(working), nil
}

// GetRide returns the stored ride for test assertions.
func (m *MockRideRepository) GetRide(id string) *domain.Ride {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyRide(m.rides[id])
}

func copyRide(r *domain.Ride) *domain.Ride {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Candidates = append([]domain.Candidate(nil), r.Candidates...)
	cp.RejectedDrivers = append([]string(nil), r.RejectedDrivers...)
	return &cp
}

// ──────────────────────────────────────────────
// MOCK DRIVER REPOSITORY
// ──────────────────────────────────────────────

// MockDriverRepository is an in-memory implementation of DriverRepository.
// Assign applies the same online-and-unassigned condition as the SQL version.
type MockDriverRepository struct {
	mu      sync.RWMutex
	drivers map[string]*domain.Driver

	// Counters for verification
	AssignCallCount int32
	CreditCallCount int32

	// Error injection
	AssignError error
	CreditError error
}

// NewMockDriverRepository creates a new mock driver repository.
func NewMockDriverRepository() *MockDriverRepository {
	return &MockDriverRepository{
		drivers: make(map[string]*domain.Driver),
	}
}

// AddDriver seeds a driver into the mock repository.
func (m *MockDriverRepository) AddDriver(driver *domain.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *driver
	m.drivers[driver.ID] = &cp
}

func (m *MockDriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *driver
	m.drivers[driver.ID] = &cp
	return nil
}

func (m *MockDriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	driver, ok := m.drivers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *driver
	return &cp, nil
}

func (m *MockDriverRepository) UpdateStatus(ctx context.Context, id string, status domain.DriverStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	driver, ok := m.drivers[id]
	if !ok {
		return repository.ErrNotFound
	}
	driver.Status = status
	return nil
}

func (m *MockDriverRepository) Assign(ctx context.Context, driverID, rideID string) error {
	atomic.AddInt32(&m.AssignCallCount, 1)
	if m.AssignError != nil {
		return m.AssignError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	driver, ok := m.drivers[driverID]
	if !ok {
		return repository.ErrNotFound
	}
	if driver.Status != domain.DriverStatusOnline || driver.CurrentRideID != "" {
		return repository.ErrPreconditionFailed
	}
	driver.Status = domain.DriverStatusBusy
	driver.CurrentRideID = rideID
	return nil
}

func (m *MockDriverRepository) Release(ctx context.Context, driverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	driver, ok := m.drivers[driverID]
	if !ok {
		return repository.ErrNotFound
	}
	if driver.Status == domain.DriverStatusBusy {
		driver.Status = domain.DriverStatusOnline
		driver.CurrentRideID = ""
	}
	return nil
}

func (m *MockDriverRepository) CreditCompletedRide(ctx context.Context, driverID string, fare float64) error {
	atomic.AddInt32(&m.CreditCallCount, 1)
	if m.CreditError != nil {
		return m.CreditError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	driver, ok := m.drivers[driverID]
	if !ok {
		return repository.ErrNotFound
	}
	driver.Status = domain.DriverStatusOnline
	driver.CurrentRideID = ""
	driver.TotalEarnings += fare
	driver.CompletedRides++
	return nil
}

// GetDriver returns the stored driver for test assertions.
func (m *MockDriverRepository) GetDriver(id string) *domain.Driver {
	m.mu.RLock()
	defer m.mu.RUnlock()
	driver, ok := m.drivers[id]
	if !ok {
		return nil
	}
	cp := *driver
	return &cp
}

// ──────────────────────────────────────────────
// MOCK LOCATION STORE
// ──────────────────────────────────────────────

// MockLocationStore is an in-memory implementation of LocationStoreInterface
// using the great-circle distance instead of Redis geo queries.
type MockLocationStore struct {
	mu        sync.RWMutex
	locations map[string]redis.DriverLocation
}

// NewMockLocationStore creates a new mock location store.
func NewMockLocationStore() *MockLocationStore {
	return &MockLocationStore{
		locations: make(map[string]redis.DriverLocation),
	}
}

func (m *MockLocationStore) UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[driverID] = redis.DriverLocation{DriverID: driverID, Lat: lat, Lng: lng}
	return nil
}

func (m *MockLocationStore) FindNearbyDrivers(ctx context.Context, lat, lng, radiusKm float64) ([]redis.DriverLocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []redis.DriverLocation
	for _, loc := range m.locations {
		d := maps.HaversineKm(lat, lng, loc.Lat, loc.Lng)
		if d <= radiusKm {
			loc.DistanceKm = d
			result = append(result, loc)
		}
	}
	return result, nil
}

func (m *MockLocationStore) GetLocation(ctx context.Context, driverID string) (*redis.DriverLocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	loc, ok := m.locations[driverID]
	if !ok {
		return nil, nil
	}
	return &loc, nil
}

func (m *MockLocationStore) RemoveLocation(ctx context.Context, driverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locations, driverID)
	return nil
}

// HasLocation reports whether a driver is present in the geo index.
func (m *MockLocationStore) HasLocation(driverID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.locations[driverID]
	return ok
}

// ──────────────────────────────────────────────
// MOCK DISPATCHER
// ──────────────────────────────────────────────

// RecordedEvent is one published notification.
type RecordedEvent struct {
	Channel string
	Event   string
	Payload any
}

// MockDispatcher records published events for assertions.
type MockDispatcher struct {
	mu     sync.RWMutex
	events []RecordedEvent

	// Error injection
	PublishError error
}

// NewMockDispatcher creates a new mock dispatcher.
func NewMockDispatcher() *MockDispatcher {
	return &MockDispatcher{}
}

func (m *MockDispatcher) Publish(ctx context.Context, channel, event string, payload any) error {
	if m.PublishError != nil {
		return m.PublishError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, RecordedEvent{Channel: channel, Event: event, Payload: payload})
	return nil
}

// Events returns all recorded events on the given channel.
func (m *MockDispatcher) Events(channel string) []RecordedEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []RecordedEvent
	for _, e := range m.events {
		if e.Channel == channel {
			result = append(result, e)
		}
	}
	return result
}

// CountEvents returns how many times the event was published on the channel.
func (m *MockDispatcher) CountEvents(channel, event string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, e := range m.events {
		if e.Channel == channel && e.Event == event {
			count++
		}
	}
	return count
}

// ──────────────────────────────────────────────
// MOCK DISTANCE ESTIMATOR
// ──────────────────────────────────────────────

// MockDistanceEstimator returns a fixed distance when set, or the
// great-circle distance otherwise.
type MockDistanceEstimator struct {
	FixedKm float64
}

func (m *MockDistanceEstimator) DistanceKm(ctx context.Context, from, to domain.Location) float64 {
	if m.FixedKm > 0 {
		return m.FixedKm
	}
	return maps.HaversineKm(from.Lat, from.Lng, to.Lat, to.Lng)
}

// Interface assertions.
var (
	_ repository.RideRepository    = (*MockRideRepository)(nil)
	_ repository.DriverRepository  = (*MockDriverRepository)(nil)
	_ redis.LocationStoreInterface = (*MockLocationStore)(nil)
	_ service.Dispatcher           = (*MockDispatcher)(nil)
	_ service.DistanceEstimator    = (*MockDistanceEstimator)(nil)
)
