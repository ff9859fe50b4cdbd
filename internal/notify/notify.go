// Package notify tells users their generated documents are ready.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/jonathan/applyai/internal/db"
	"github.com/jonathan/applyai/internal/types"
	"golang.org/x/sync/errgroup"
)

// DefaultAppURL is used for links when no APP_URL is configured.
const DefaultAppURL = "https://applyai.app"

var (
	// ErrUserNotFound is returned when the recipient does not exist or has no email.
	ErrUserNotFound = errors.New("user not found")
	// ErrDataNotFound is returned when the profile or application is missing.
	ErrDataNotFound = errors.New("data not found")
)

// Outcome is the human-readable result reported back to the engine.
type Outcome string

const (
	OutcomeSent    Outcome = "Email sent"
	OutcomeSkipped Outcome = "Notifications disabled, skipping"
)

// Message is one documents-ready notification.
type Message struct {
	To            string
	UserName      string
	JobTitle      string
	CompanyName   string
	ApplicationID uuid.UUID
	Link          string
	Subject       string
	HTML          string
}

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct{}

// Send logs the message.
func (LogSender) Send(_ context.Context, msg *Message) error {
	log.Printf("[notify] To=%s Subject=%q Link=%s", msg.To, msg.Subject, msg.Link)
	return nil
}

// Store loads the data a notification needs. *db.DB implements it.
type Store interface {
	GetUser(ctx context.Context, userID uuid.UUID) (*db.User, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (*db.Profile, error)
	GetApplication(ctx context.Context, userID, applicationID uuid.UUID) (*db.Application, error)
}

var bodyTemplate = template.Must(template.New("documents-ready").Parse(`<p>Hi {{.UserName}},</p>
<p>Your application documents for <strong>{{.JobTitle}}</strong> at <strong>{{.CompanyName}}</strong> have been generated.</p>
<p><a href="{{.Link}}">View your documents</a></p>
<p>The ApplyAI team</p>
`))

// Service sends documents-ready notifications.
type Service struct {
	store  Store
	sender Sender
	appURL string
}

// NewService creates a notifier. A nil sender logs instead of delivering.
func NewService(store Store, sender Sender, appURL string) *Service {
	if sender == nil {
		sender = LogSender{}
	}
	appURL = strings.TrimRight(strings.TrimSpace(appURL), "/")
	if appURL == "" {
		appURL = DefaultAppURL
	}
	return &Service{store: store, sender: sender, appURL: appURL}
}

// DocumentsReady notifies the owner of an application, unless they opted out.
func (s *Service) DocumentsReady(ctx context.Context, req *types.DocumentsReadyRequest) (Outcome, error) {
	if req == nil || req.UserID == uuid.Nil || req.ApplicationID == uuid.Nil {
		return "", types.Invalid("body", "user_id and application_id are required")
	}

	var (
		user    *db.User
		profile *db.Profile
		app     *db.Application
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		user, err = s.store.GetUser(gctx, req.UserID)
		return err
	})
	g.Go(func() error {
		var err error
		profile, err = s.store.GetProfile(gctx, req.UserID)
		return err
	})
	g.Go(func() error {
		var err error
		app, err = s.store.GetApplication(gctx, req.UserID, req.ApplicationID)
		return err
	})
	if err := g.Wait(); err != nil {
		return "", fmt.Errorf("failed to load notification data: %w", err)
	}

	if user == nil || user.Email == "" {
		return "", ErrUserNotFound
	}
	if profile == nil || app == nil {
		return "", ErrDataNotFound
	}
	if !profile.EmailNotifications {
		return OutcomeSkipped, nil
	}

	msg, err := s.compose(user, profile, app)
	if err != nil {
		return "", err
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		return "", fmt.Errorf("failed to send notification: %w", err)
	}
	return OutcomeSent, nil
}

func (s *Service) compose(user *db.User, profile *db.Profile, app *db.Application) (*Message, error) {
	name := strings.TrimSpace(profile.FullName)
	if name == "" {
		name = "there"
	}
	msg := &Message{
		To:            user.Email,
		UserName:      name,
		JobTitle:      app.JobTitle,
		CompanyName:   app.CompanyName,
		ApplicationID: app.ID,
		Link:          fmt.Sprintf("%s/applications/%s", s.appURL, app.ID),
		Subject:       fmt.Sprintf("Your documents for %s at %s are ready", app.JobTitle, app.CompanyName),
	}

	var buf bytes.Buffer
	if err := bodyTemplate.Execute(&buf, msg); err != nil {
		return nil, fmt.Errorf("failed to render notification: %w", err)
	}
	msg.HTML = buf.String()
	return msg, nil
}
