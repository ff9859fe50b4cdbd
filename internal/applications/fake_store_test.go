package applications

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/applyai/internal/db"
	"github.com/jonathan/applyai/internal/types"
)

type usageKey struct {
	userID uuid.UUID
	period string
}

// fakeStore is an in-memory Store with the same ownership and transaction
// semantics as the PostgreSQL implementation.
type fakeStore struct {
	mu        sync.Mutex
	users     map[uuid.UUID]*db.User
	apps      map[uuid.UUID]*db.Application
	docs      []db.Document
	usage     map[usageKey]int
	createErr error
	applyErr  error
	applied   int
	clock     time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users: make(map[uuid.UUID]*db.User),
		apps:  make(map[uuid.UUID]*db.Application),
		usage: make(map[usageKey]int),
		clock: time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (f *fakeStore) addUser(tier string) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	f.users[id] = &db.User{ID: id, Email: id.String() + "@example.com", Tier: tier}
	return id
}

func (f *fakeStore) tick() time.Time {
	f.clock = f.clock.Add(time.Minute)
	return f.clock
}

func (f *fakeStore) GetUsageCount(_ context.Context, userID uuid.UUID, period time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.usage[usageKey{userID, period.Format("2006-01-02")}], nil
}

func (f *fakeStore) GetUser(_ context.Context, userID uuid.UUID) (*db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[userID]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeStore) CreateApplication(_ context.Context, in *db.NewApplication) (*db.Application, []db.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, nil, f.createErr
	}
	now := f.tick()
	app := &db.Application{
		ID:                  uuid.New(),
		UserID:              in.UserID,
		JobTitle:            in.JobTitle,
		CompanyName:         in.CompanyName,
		JobDescription:      in.JobDescription,
		JobURL:              in.JobURL,
		HiringManagerName:   in.HiringManagerName,
		DocumentsRequested:  in.DocumentsRequested,
		CoverLetterLength:   in.CoverLetterLength,
		CoverLetterMaxWords: in.CoverLetterMaxWords,
		Tone:                in.Tone,
		Status:              types.GenerationPending,
		ApplicationStatus:   types.ApplicationSaved,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	f.apps[app.ID] = app

	var docs []db.Document
	for _, t := range in.DocumentsRequested {
		doc := db.Document{
			ID:            uuid.New(),
			ApplicationID: app.ID,
			UserID:        in.UserID,
			Type:          t,
			Version:       1,
			Status:        types.GenerationPending,
			CreatedAt:     now,
		}
		f.docs = append(f.docs, doc)
		docs = append(docs, doc)
	}
	f.usage[usageKey{in.UserID, in.UsagePeriod.Format("2006-01-02")}] = in.UsageCount

	cp := *app
	return &cp, docs, nil
}

func (f *fakeStore) GetApplication(_ context.Context, userID, applicationID uuid.UUID) (*db.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	app, ok := f.apps[applicationID]
	if !ok || app.UserID != userID {
		return nil, nil
	}
	cp := *app
	return &cp, nil
}

func (f *fakeStore) ListApplications(_ context.Context, userID uuid.UUID, filters db.ApplicationFilters) ([]db.Application, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []db.Application
	for _, app := range f.apps {
		if app.UserID != userID {
			continue
		}
		if filters.ApplicationStatus != "" && app.ApplicationStatus != filters.ApplicationStatus {
			continue
		}
		if filters.Status != "" && app.Status != filters.Status {
			continue
		}
		matched = append(matched, *app)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := len(matched)
	start := min(filters.Offset, total)
	end := min(start+filters.Limit, total)
	return append([]db.Application{}, matched[start:end]...), total, nil
}

func (f *fakeStore) UpdateApplication(_ context.Context, userID, applicationID uuid.UUID, update db.ApplicationUpdate) (*db.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	app, ok := f.apps[applicationID]
	if !ok || app.UserID != userID {
		return nil, nil
	}
	if update.ApplicationStatus != nil {
		app.ApplicationStatus = *update.ApplicationStatus
	}
	if update.Notes != nil {
		app.Notes = *update.Notes
	}
	cp := *app
	return &cp, nil
}

func (f *fakeStore) CountApplications(_ context.Context, userID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, app := range f.apps {
		if app.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) ListDocuments(_ context.Context, userID, applicationID uuid.UUID) ([]db.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []db.Document
	for _, d := range f.docs {
		if d.ApplicationID == applicationID && d.UserID == userID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

func (f *fakeStore) SetEditedContent(_ context.Context, userID, documentID uuid.UUID, content *string) (*db.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.docs {
		if f.docs[i].ID == documentID && f.docs[i].UserID == userID {
			f.docs[i].EditedContent = content
			cp := f.docs[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ApplyGeneration(_ context.Context, w *db.GenerationWrite) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.applyErr != nil {
		return f.applyErr
	}

	// Stage on a copy so a failure leaves nothing behind.
	docs := append([]db.Document(nil), f.docs...)
	for _, d := range w.Documents {
		if d.ID != nil {
			found := false
			for i := range docs {
				if docs[i].ID == *d.ID && docs[i].UserID == w.UserID {
					docs[i].Status = d.Status
					if d.Content != nil {
						docs[i].Content = d.Content
					}
					found = true
				}
			}
			if !found {
				return fmt.Errorf("document not found: %s", *d.ID)
			}
			continue
		}
		for _, existing := range docs {
			if existing.ApplicationID == w.ApplicationID && existing.Type == d.Type && existing.Version == d.Version {
				return errors.New("duplicate key value violates unique constraint")
			}
		}
		docs = append(docs, db.Document{
			ID:            uuid.New(),
			ApplicationID: w.ApplicationID,
			UserID:        w.UserID,
			Type:          d.Type,
			Content:       d.Content,
			Version:       d.Version,
			Status:        d.Status,
			CreatedAt:     f.tick(),
		})
	}

	if w.Status != nil {
		app, ok := f.apps[w.ApplicationID]
		if !ok || app.UserID != w.UserID {
			return fmt.Errorf("application not found: %s", w.ApplicationID)
		}
		app.Status = *w.Status
	}
	f.docs = docs
	f.applied++
	return nil
}

func (f *fakeStore) documentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.docs)
}

func (f *fakeStore) applicationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.apps)
}

type recordingDispatcher struct {
	mu    sync.Mutex
	calls []uuid.UUID
}

func (r *recordingDispatcher) Dispatch(applicationID, _ uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, applicationID)
}

func (r *recordingDispatcher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}
