package common

import (
	"context"
	"fmt"
	"time"

	"github.com/cucumber/godog"
)

// TestContext is the slice of the scenario context the generic steps need.
type TestContext interface {
	StatusCode() int
	Body() []byte
	Field(path string) (any, error)
	HasField(path string) bool
}

// RegisterSteps registers the assertions every feature shares: status codes
// and JSON field checks against the last response.
func RegisterSteps(sc *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	sc.Step(`^the response status should be (\d+)$`, steps.responseStatusShouldBe)
	sc.Step(`^the response error should be "([^"]*)"$`, steps.responseErrorShouldBe)
	sc.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, steps.responseFieldShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, steps.responseShouldContain)
	sc.Step(`^the response should not contain "([^"]*)"$`, steps.responseShouldNotContain)
	sc.Step(`^I wait (\d+) ms$`, steps.waitMillis)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) responseStatusShouldBe(ctx context.Context, status int) error {
	if got := s.tc.StatusCode(); got != status {
		return fmt.Errorf("expected status %d, got %d (body: %s)", status, got, s.tc.Body())
	}
	return nil
}

func (s *commonSteps) responseErrorShouldBe(ctx context.Context, code string) error {
	return s.responseFieldShouldBe(ctx, "error", code)
}

func (s *commonSteps) responseFieldShouldBe(ctx context.Context, path, want string) error {
	value, err := s.tc.Field(path)
	if err != nil {
		return err
	}
	// JSON numbers and booleans compare through their canonical rendering
	// so features can say `should be "5"` or `should be "true"`.
	if got := fmt.Sprintf("%v", value); got != want {
		return fmt.Errorf("field %q: expected %q, got %q", path, want, got)
	}
	return nil
}

func (s *commonSteps) responseShouldContain(ctx context.Context, path string) error {
	if !s.tc.HasField(path) {
		return fmt.Errorf("field %q missing from response %s", path, s.tc.Body())
	}
	return nil
}

func (s *commonSteps) responseShouldNotContain(ctx context.Context, path string) error {
	if s.tc.HasField(path) {
		return fmt.Errorf("field %q unexpectedly present in response %s", path, s.tc.Body())
	}
	return nil
}

func (s *commonSteps) waitMillis(ctx context.Context, millis int) error {
	select {
	case <-time.After(time.Duration(millis) * time.Millisecond):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
