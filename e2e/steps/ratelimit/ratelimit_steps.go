package ratelimit

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cucumber/godog"
	"github.com/google/uuid"
)

// TestContext is the slice of the scenario context the lockout steps need.
type TestContext interface {
	POST(path string, body any) error
	LoginDefault() error
	StatusCode() int
	Body() []byte
	Field(path string) (any, error)
}

// RegisterSteps registers the login lockout flow. Every scenario mints its
// own throwaway identifier: lockout state lives server-side for the whole
// failure window, so reusing a fixed identifier would make runs interfere
// with each other and with the configured account.
func RegisterSteps(sc *godog.ScenarioContext, tc TestContext) {
	steps := &ratelimitSteps{tc: tc}

	sc.Step(`^a throwaway login identifier$`, steps.throwawayIdentifier)
	sc.Step(`^that identifier fails to log in (\d+) times$`, steps.identifierFailsNTimes)
	sc.Step(`^that identifier attempts to log in$`, steps.identifierAttemptsLogin)
	sc.Step(`^the lockout should report (\d+) failures$`, steps.lockoutShouldReportFailures)
	sc.Step(`^the configured account can still log in$`, steps.configuredAccountStillLogsIn)
}

type ratelimitSteps struct {
	tc TestContext

	identifier string
}

func (s *ratelimitSteps) throwawayIdentifier(ctx context.Context) error {
	s.identifier = fmt.Sprintf("e2e-%s@example.com", uuid.NewString()[:8])
	return nil
}

func (s *ratelimitSteps) attemptLogin() error {
	return s.tc.POST("/api/session", map[string]string{
		"email":    s.identifier,
		"password": "not-the-password",
	})
}

func (s *ratelimitSteps) identifierFailsNTimes(ctx context.Context, count int) error {
	for i := range count {
		if err := s.attemptLogin(); err != nil {
			return err
		}
		if s.tc.StatusCode() != http.StatusUnauthorized {
			return fmt.Errorf("attempt %d: expected 401, got %d (body: %s)", i+1, s.tc.StatusCode(), s.tc.Body())
		}
	}
	return nil
}

func (s *ratelimitSteps) identifierAttemptsLogin(ctx context.Context) error {
	return s.attemptLogin()
}

func (s *ratelimitSteps) lockoutShouldReportFailures(ctx context.Context, count int) error {
	value, err := s.tc.Field("failure_count")
	if err != nil {
		return err
	}
	got, ok := value.(float64)
	if !ok {
		return fmt.Errorf("field \"failure_count\" is %T, not a number", value)
	}
	if int(got) != count {
		return fmt.Errorf("expected %d recorded failures, got %v", count, got)
	}
	return nil
}

func (s *ratelimitSteps) configuredAccountStillLogsIn(ctx context.Context) error {
	if err := s.tc.LoginDefault(); err != nil {
		return err
	}
	if s.tc.StatusCode() != http.StatusOK {
		return fmt.Errorf("configured account rejected with %d (body: %s)", s.tc.StatusCode(), s.tc.Body())
	}
	return nil
}
