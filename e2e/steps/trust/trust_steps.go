package trust

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cucumber/godog"
)

// TestContext is the slice of the scenario context the trust steps need.
type TestContext interface {
	POST(path string, body any) error
	StatusCode() int
	Body() []byte
	Field(path string) (any, error)
	StringField(path string) (string, error)
	ConsentToken() string
}

// RegisterSteps registers delegation flows: minting a trust link from the
// held consent token, verifying it as the delegate, and revoking it.
func RegisterSteps(sc *godog.ScenarioContext, tc TestContext) {
	steps := &trustSteps{tc: tc}

	sc.Step(`^the agent delegates scope "([^"]*)" to agent "([^"]*)"$`, steps.delegateScope)
	sc.Step(`^the agent delegates scope "([^"]*)" to agent "([^"]*)" with a (\d+) ms ttl$`, steps.delegateScopeWithTTL)
	sc.Step(`^the delegate verifies the link for scope "([^"]*)"$`, steps.verifyLink)
	sc.Step(`^the delegate verifies a tampered copy of the link for scope "([^"]*)"$`, steps.verifyTamperedLink)
	sc.Step(`^the link is revoked$`, steps.revokeLink)

	sc.Step(`^the verification verdict should be (valid|invalid)$`, steps.verificationVerdictShouldBe)
	sc.Step(`^the verification reason should be "([^"]*)"$`, steps.verificationReasonShouldBe)
	sc.Step(`^the link should join "([^"]*)" to "([^"]*)"$`, steps.linkShouldJoinAgents)
}

type trustSteps struct {
	tc TestContext

	link   string
	linkID string
}

func (s *trustSteps) delegate(scope, toAgent string, ttlMs int64) error {
	body := map[string]any{
		"backing_token": s.tc.ConsentToken(),
		"to_agent":      toAgent,
		"scope":         scope,
	}
	if ttlMs > 0 {
		body["ttl_ms"] = ttlMs
	}
	if err := s.tc.POST("/api/trust/create", body); err != nil {
		return err
	}
	if s.tc.StatusCode() != http.StatusCreated {
		// The scenario may be asserting the rejection.
		return nil
	}
	link, err := s.tc.StringField("link")
	if err != nil {
		return err
	}
	linkID, err := s.tc.StringField("link_id")
	if err != nil {
		return err
	}
	s.link = link
	s.linkID = linkID
	return nil
}

func (s *trustSteps) delegateScope(ctx context.Context, scope, toAgent string) error {
	return s.delegate(scope, toAgent, 0)
}

func (s *trustSteps) delegateScopeWithTTL(ctx context.Context, scope, toAgent string, ttlMs int) error {
	return s.delegate(scope, toAgent, int64(ttlMs))
}

func (s *trustSteps) verifyLink(ctx context.Context, scope string) error {
	return s.tc.POST("/api/trust/verify", map[string]any{
		"link":           s.link,
		"expected_scope": scope,
	})
}

func (s *trustSteps) verifyTamperedLink(ctx context.Context, scope string) error {
	if s.link == "" {
		return fmt.Errorf("no trust link held; delegate first")
	}
	last := s.link[len(s.link)-1]
	flipped := byte('A')
	if last == 'A' {
		flipped = 'B'
	}
	return s.tc.POST("/api/trust/verify", map[string]any{
		"link":           s.link[:len(s.link)-1] + string(flipped),
		"expected_scope": scope,
	})
}

func (s *trustSteps) revokeLink(ctx context.Context) error {
	return s.tc.POST("/api/trust/revoke", map[string]any{
		"link": s.link,
	})
}

func (s *trustSteps) verificationVerdictShouldBe(ctx context.Context, verdict string) error {
	value, err := s.tc.Field("valid")
	if err != nil {
		return err
	}
	valid, ok := value.(bool)
	if !ok {
		return fmt.Errorf("field \"valid\" is %T, not a bool", value)
	}
	if want := verdict == "valid"; valid != want {
		return fmt.Errorf("expected verdict %q, got valid=%t (body: %s)", verdict, valid, s.tc.Body())
	}
	return nil
}

func (s *trustSteps) verificationReasonShouldBe(ctx context.Context, reason string) error {
	got, err := s.tc.StringField("reason")
	if err != nil {
		return err
	}
	if got != reason {
		return fmt.Errorf("expected reason %q, got %q", reason, got)
	}
	return nil
}

func (s *trustSteps) linkShouldJoinAgents(ctx context.Context, fromAgent, toAgent string) error {
	gotFrom, err := s.tc.StringField("link.from_agent")
	if err != nil {
		return err
	}
	gotTo, err := s.tc.StringField("link.to_agent")
	if err != nil {
		return err
	}
	if gotFrom != fromAgent || gotTo != toAgent {
		return fmt.Errorf("expected link %s -> %s, got %s -> %s", fromAgent, toAgent, gotFrom, gotTo)
	}
	return nil
}
