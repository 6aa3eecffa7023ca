package session

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cucumber/godog"
	"github.com/google/uuid"
)

// TestContext is the slice of the scenario context the session steps need.
type TestContext interface {
	Login(email, password string) error
	LoginDefault() error
	ClearSession()
	DELETE(path string) error
	StatusCode() int
	Body() []byte
}

// RegisterSteps registers login and logout against the public and management
// surfaces.
func RegisterSteps(sc *godog.ScenarioContext, tc TestContext) {
	steps := &sessionSteps{tc: tc}

	sc.Step(`^I am logged in$`, steps.loggedIn)
	sc.Step(`^I log in with the configured account$`, steps.loginConfigured)
	sc.Step(`^I log in with unknown credentials$`, steps.loginUnknown)
	sc.Step(`^I log out$`, steps.logout)
	sc.Step(`^I log out again with the same session$`, steps.logoutAgain)
	sc.Step(`^I have no session$`, steps.noSession)
}

type sessionSteps struct {
	tc TestContext
}

// loggedIn is the background step for management scenarios; unlike
// loginConfigured it fails the scenario outright when the account is
// rejected, because nothing downstream can work without the session.
func (s *sessionSteps) loggedIn(ctx context.Context) error {
	if err := s.tc.LoginDefault(); err != nil {
		return err
	}
	if s.tc.StatusCode() != http.StatusOK {
		return fmt.Errorf(
			"login rejected with %d; check HUSHMCP_E2E_EMAIL/HUSHMCP_E2E_PASSWORD against the server's SESSION_ACCOUNTS (body: %s)",
			s.tc.StatusCode(), s.tc.Body(),
		)
	}
	return nil
}

func (s *sessionSteps) loginConfigured(ctx context.Context) error {
	return s.tc.LoginDefault()
}

// loginUnknown uses a throwaway identifier rather than a wrong password for
// the configured account, so repeated runs never push the real account
// toward its lockout threshold.
func (s *sessionSteps) loginUnknown(ctx context.Context) error {
	email := fmt.Sprintf("nobody-%s@example.com", uuid.NewString()[:8])
	return s.tc.Login(email, "not-the-password")
}

func (s *sessionSteps) logout(ctx context.Context) error {
	return s.tc.DELETE("/api/session")
}

func (s *sessionSteps) logoutAgain(ctx context.Context) error {
	return s.tc.DELETE("/api/session")
}

func (s *sessionSteps) noSession(ctx context.Context) error {
	s.tc.ClearSession()
	return nil
}
