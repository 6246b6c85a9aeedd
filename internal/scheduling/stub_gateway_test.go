package scheduling

import (
	"context"
	"sync"

	"github.com/noah-isme/psy-schedule-api/internal/models"
)

type gatewayStub struct {
	mu           sync.Mutex
	appointments []models.Appointment
	fetchErr     error
	statusErr    error
	notesErr     error
	fetches      []models.CalendarRange
	statusCalls  []StatusChange
	notesCalls   map[int64]string
}

func newGatewayStub(appointments ...models.Appointment) *gatewayStub {
	return &gatewayStub{appointments: appointments, notesCalls: make(map[int64]string)}
}

func (g *gatewayStub) FetchAppointments(ctx context.Context, rng models.CalendarRange) ([]models.Appointment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetches = append(g.fetches, rng)
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	out := make([]models.Appointment, 0, len(g.appointments))
	for _, a := range g.appointments {
		if rng.Contains(a.Date) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (g *gatewayStub) UpdateStatus(ctx context.Context, id int64, status models.AppointmentStatus) (models.Appointment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusCalls = append(g.statusCalls, StatusChange{AppointmentID: id, Target: status})
	if g.statusErr != nil {
		return models.Appointment{}, g.statusErr
	}
	for i := range g.appointments {
		if g.appointments[i].ID == id {
			g.appointments[i].Status = status
			g.appointments[i].StatusDisplay = ""
			return g.appointments[i], nil
		}
	}
	return models.Appointment{}, nil
}

func (g *gatewayStub) UpdateNotes(ctx context.Context, id int64, notes string) (models.Appointment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.notesCalls[id] = notes
	if g.notesErr != nil {
		return models.Appointment{}, g.notesErr
	}
	for i := range g.appointments {
		if g.appointments[i].ID == id {
			g.appointments[i].PsychologistNotes = models.Some(notes)
			return g.appointments[i], nil
		}
	}
	return models.Appointment{}, nil
}

func (g *gatewayStub) fetchCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.fetches)
}

// blockingFetcher releases each fetch only when told to, so tests can reorder responses.
type blockingFetcher struct {
	mu      sync.Mutex
	waiters map[models.Date]chan []models.Appointment
	started chan models.CalendarRange
}

func newBlockingFetcher() *blockingFetcher {
	return &blockingFetcher{
		waiters: make(map[models.Date]chan []models.Appointment),
		started: make(chan models.CalendarRange, 4),
	}
}

func (b *blockingFetcher) channel(start models.Date) chan []models.Appointment {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.waiters[start]
	if !ok {
		ch = make(chan []models.Appointment, 1)
		b.waiters[start] = ch
	}
	return ch
}

func (b *blockingFetcher) FetchAppointments(ctx context.Context, rng models.CalendarRange) ([]models.Appointment, error) {
	ch := b.channel(rng.Start)
	b.started <- rng
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case list := <-ch:
		return list, nil
	}
}
