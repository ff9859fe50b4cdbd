package server

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/applyai/internal/db"
	"github.com/jonathan/applyai/internal/notify"
	"github.com/jonathan/applyai/internal/types"
)

// memoryStore backs every service in server tests. It follows the
// PostgreSQL store's conventions: missing rows are nil, nil and every read is
// scoped to the owning user.
type memoryStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*db.User
	profiles map[uuid.UUID]*db.Profile
	apps     map[uuid.UUID]*db.Application
	docs     []db.Document
	usage    map[string]int
	clock    time.Time
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:    make(map[uuid.UUID]*db.User),
		profiles: make(map[uuid.UUID]*db.Profile),
		apps:     make(map[uuid.UUID]*db.Application),
		usage:    make(map[string]int),
		clock:    time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (m *memoryStore) tick() time.Time {
	m.clock = m.clock.Add(time.Minute)
	return m.clock
}

func usageKey(userID uuid.UUID, period time.Time) string {
	return userID.String() + "/" + period.Format("2006-01-02")
}

// users

func (m *memoryStore) CheckEmailExists(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) CreateUser(_ context.Context, email, passwordHash, fullName string) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return uuid.Nil, db.ErrEmailTaken
		}
	}
	now := m.tick()
	id := uuid.New()
	m.users[id] = &db.User{ID: id, Email: email, PasswordHash: passwordHash, Tier: "free", CreatedAt: now, UpdatedAt: now}
	m.profiles[id] = &db.Profile{
		ID:                 uuid.New(),
		UserID:             id,
		FullName:           fullName,
		PreferredTone:      types.ToneProfessional,
		EmailNotifications: true,
		UpdatedAt:          now,
	}
	return id, nil
}

func (m *memoryStore) GetUser(_ context.Context, userID uuid.UUID) (*db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userID]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *memoryStore) GetUserByEmail(_ context.Context, email string) (*db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memoryStore) UpdatePassword(_ context.Context, userID uuid.UUID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return fmt.Errorf("user not found: %s", userID)
	}
	u.PasswordHash = passwordHash
	return nil
}

func (m *memoryStore) setTier(userID uuid.UUID, tier string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userID].Tier = tier
}

// profiles

func (m *memoryStore) GetProfile(_ context.Context, userID uuid.UUID) (*db.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.profiles[userID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (m *memoryStore) withProfile(userID uuid.UUID, fn func(p *db.Profile)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return fmt.Errorf("%w for user: %s", db.ErrProfileNotFound, userID)
	}
	fn(p)
	p.UpdatedAt = m.tick()
	return nil
}

func (m *memoryStore) SaveIdentity(_ context.Context, userID uuid.UUID, step *types.IdentityStep) error {
	return m.withProfile(userID, func(p *db.Profile) {
		p.FullName, p.Headline, p.Summary = step.FullName, step.Headline, step.Summary
		p.Phone, p.LinkedInURL, p.Location = step.Phone, step.LinkedInURL, step.Location
	})
}

func (m *memoryStore) SaveWorkHistory(_ context.Context, userID uuid.UUID, entries []types.WorkHistoryEntry) error {
	return m.withProfile(userID, func(p *db.Profile) { p.WorkHistory = entries })
}

func (m *memoryStore) SaveEducation(_ context.Context, userID uuid.UUID, education []types.EducationEntry, certs []types.CertificationEntry) error {
	return m.withProfile(userID, func(p *db.Profile) { p.Education, p.Certifications = education, certs })
}

func (m *memoryStore) SaveSkills(_ context.Context, userID uuid.UUID, entries []types.SkillNarrativeEntry) error {
	return m.withProfile(userID, func(p *db.Profile) { p.SkillsExperiences = entries })
}

func (m *memoryStore) SaveCoverLetterTemplate(_ context.Context, userID uuid.UUID, template string) error {
	return m.withProfile(userID, func(p *db.Profile) { p.CoverLetterTemplate = template })
}

func (m *memoryStore) CompleteOnboarding(_ context.Context, userID uuid.UUID, step *types.PreferencesStep) error {
	return m.withProfile(userID, func(p *db.Profile) {
		p.TargetIndustries, p.TargetRoles, p.CultureValues = step.TargetIndustries, step.TargetRoles, step.CultureValues
		p.CareerAspirations, p.HobbiesInterests = step.CareerAspirations, step.HobbiesInterests
		p.PreferredTone = step.PreferredTone
		p.OnboardingComplete = true
	})
}

func (m *memoryStore) SetEmailNotifications(_ context.Context, userID uuid.UUID, enabled bool) error {
	return m.withProfile(userID, func(p *db.Profile) { p.EmailNotifications = enabled })
}

// applications

func (m *memoryStore) GetUsageCount(_ context.Context, userID uuid.UUID, period time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage[usageKey(userID, period)], nil
}

func (m *memoryStore) CreateApplication(_ context.Context, in *db.NewApplication) (*db.Application, []db.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.tick()
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
	m.apps[app.ID] = app

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
		m.docs = append(m.docs, doc)
		docs = append(docs, doc)
	}
	m.usage[usageKey(in.UserID, in.UsagePeriod)] = in.UsageCount

	cp := *app
	return &cp, docs, nil
}

func (m *memoryStore) GetApplication(_ context.Context, userID, applicationID uuid.UUID) (*db.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	app, ok := m.apps[applicationID]
	if !ok || app.UserID != userID {
		return nil, nil
	}
	cp := *app
	return &cp, nil
}

func (m *memoryStore) ListApplications(_ context.Context, userID uuid.UUID, filters db.ApplicationFilters) ([]db.Application, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []db.Application
	for _, app := range m.apps {
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

func (m *memoryStore) UpdateApplication(_ context.Context, userID, applicationID uuid.UUID, update db.ApplicationUpdate) (*db.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	app, ok := m.apps[applicationID]
	if !ok || app.UserID != userID {
		return nil, nil
	}
	if update.ApplicationStatus != nil {
		app.ApplicationStatus = *update.ApplicationStatus
	}
	if update.Notes != nil {
		app.Notes = *update.Notes
	}
	app.UpdatedAt = m.tick()
	cp := *app
	return &cp, nil
}

func (m *memoryStore) CountApplications(_ context.Context, userID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, app := range m.apps {
		if app.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) ListDocuments(_ context.Context, userID, applicationID uuid.UUID) ([]db.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []db.Document
	for _, d := range m.docs {
		if d.ApplicationID == applicationID && d.UserID == userID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

func (m *memoryStore) SetEditedContent(_ context.Context, userID, documentID uuid.UUID, content *string) (*db.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.docs {
		if m.docs[i].ID == documentID && m.docs[i].UserID == userID {
			m.docs[i].EditedContent = content
			cp := m.docs[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memoryStore) ApplyGeneration(_ context.Context, w *db.GenerationWrite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range w.Documents {
		if d.ID != nil {
			for i := range m.docs {
				if m.docs[i].ID == *d.ID {
					m.docs[i].Status = d.Status
					if d.Content != nil {
						m.docs[i].Content = d.Content
					}
				}
			}
			continue
		}
		m.docs = append(m.docs, db.Document{
			ID:            uuid.New(),
			ApplicationID: w.ApplicationID,
			UserID:        w.UserID,
			Type:          d.Type,
			Content:       d.Content,
			Version:       d.Version,
			Status:        d.Status,
			CreatedAt:     m.tick(),
		})
	}
	if w.Status != nil {
		m.apps[w.ApplicationID].Status = *w.Status
	}
	return nil
}

func (m *memoryStore) setStatus(applicationID uuid.UUID, status types.GenerationStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apps[applicationID].Status = status
}

// recordingSender captures notifications instead of sending them.
type recordingSender struct {
	mu   sync.Mutex
	sent []*notify.Message
}

func (r *recordingSender) Send(_ context.Context, msg *notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

// recordingDispatcher captures generation requests.
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
