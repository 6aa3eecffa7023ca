package consent

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cucumber/godog"
)

// TestContext is the slice of the scenario context the consent steps need.
type TestContext interface {
	POST(path string, body any) error
	GET(path string) error
	StatusCode() int
	Body() []byte
	Field(path string) (any, error)
	StringField(path string) (string, error)
	SetConsentToken(token, tokenID string)
	ConsentToken() string
	ConsentTokenID() string
}

// RegisterSteps registers the grant, validate and revoke flows for consent
// tokens, plus the verdict assertions the trust and vault features reuse.
func RegisterSteps(sc *godog.ScenarioContext, tc TestContext) {
	steps := &consentSteps{tc: tc}

	sc.Step(`^I grant agent "([^"]*)" consent for scope "([^"]*)"$`, steps.grantConsent)
	sc.Step(`^I grant agent "([^"]*)" consent for scope "([^"]*)" with a (\d+) ms ttl$`, steps.grantConsentWithTTL)
	sc.Step(`^the agent validates the token for scope "([^"]*)"$`, steps.validateToken)
	sc.Step(`^the agent validates the token for scope "([^"]*)" on behalf of "([^"]*)"$`, steps.validateTokenForUser)
	sc.Step(`^the agent validates a tampered copy of the token for scope "([^"]*)"$`, steps.validateTamperedToken)
	sc.Step(`^the agent validates the token "([^"]*)" for scope "([^"]*)"$`, steps.validateLiteralToken)
	sc.Step(`^I revoke the consent token$`, steps.revokeConsent)
	sc.Step(`^I list my active consents$`, steps.listActiveConsents)

	sc.Step(`^the validation verdict should be (valid|invalid)$`, steps.validationVerdictShouldBe)
	sc.Step(`^the validation reason should be "([^"]*)"$`, steps.validationReasonShouldBe)
	sc.Step(`^the active consents should include the granted token$`, steps.activeConsentsShouldIncludeToken)
	sc.Step(`^the active consents should not include the revoked token$`, steps.activeConsentsShouldExcludeToken)
}

type consentSteps struct {
	tc TestContext
}

func (s *consentSteps) grant(agentID, scope string, ttlMs int64) error {
	body := map[string]any{
		"agent_id": agentID,
		"scope":    scope,
	}
	if ttlMs > 0 {
		body["ttl_ms"] = ttlMs
	}
	if err := s.tc.POST("/api/consent/grant", body); err != nil {
		return err
	}
	if s.tc.StatusCode() != http.StatusCreated {
		// Leave the response in place; the scenario may be asserting the
		// rejection itself.
		return nil
	}
	token, err := s.tc.StringField("token")
	if err != nil {
		return err
	}
	tokenID, err := s.tc.StringField("token_id")
	if err != nil {
		return err
	}
	s.tc.SetConsentToken(token, tokenID)
	return nil
}

func (s *consentSteps) grantConsent(ctx context.Context, agentID, scope string) error {
	return s.grant(agentID, scope, 0)
}

func (s *consentSteps) grantConsentWithTTL(ctx context.Context, agentID, scope string, ttlMs int) error {
	return s.grant(agentID, scope, int64(ttlMs))
}

func (s *consentSteps) validateToken(ctx context.Context, scope string) error {
	return s.tc.POST("/api/token/validate", map[string]any{
		"token":          s.tc.ConsentToken(),
		"expected_scope": scope,
	})
}

func (s *consentSteps) validateTokenForUser(ctx context.Context, scope, userID string) error {
	return s.tc.POST("/api/token/validate", map[string]any{
		"token":          s.tc.ConsentToken(),
		"expected_scope": scope,
		"expected_user":  userID,
	})
}

// validateTamperedToken flips the last character of the held token before
// presenting it, which breaks the signature without breaking the framing.
func (s *consentSteps) validateTamperedToken(ctx context.Context, scope string) error {
	token := s.tc.ConsentToken()
	if token == "" {
		return fmt.Errorf("no consent token held; grant one first")
	}
	last := token[len(token)-1]
	flipped := byte('A')
	if last == 'A' {
		flipped = 'B'
	}
	return s.tc.POST("/api/token/validate", map[string]any{
		"token":          token[:len(token)-1] + string(flipped),
		"expected_scope": scope,
	})
}

func (s *consentSteps) validateLiteralToken(ctx context.Context, token, scope string) error {
	return s.tc.POST("/api/token/validate", map[string]any{
		"token":          token,
		"expected_scope": scope,
	})
}

func (s *consentSteps) revokeConsent(ctx context.Context) error {
	return s.tc.POST("/api/consent/revoke", map[string]any{
		"token_id": s.tc.ConsentTokenID(),
	})
}

func (s *consentSteps) listActiveConsents(ctx context.Context) error {
	return s.tc.GET("/api/consent/active")
}

func (s *consentSteps) validationVerdictShouldBe(ctx context.Context, verdict string) error {
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

func (s *consentSteps) validationReasonShouldBe(ctx context.Context, reason string) error {
	got, err := s.tc.StringField("reason")
	if err != nil {
		return err
	}
	if got != reason {
		return fmt.Errorf("expected reason %q, got %q", reason, got)
	}
	return nil
}

func (s *consentSteps) activeConsents() ([]any, error) {
	value, err := s.tc.Field("consents")
	if err != nil {
		return nil, err
	}
	list, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("field \"consents\" is %T, not a list", value)
	}
	return list, nil
}

func (s *consentSteps) activeConsentsShouldIncludeToken(ctx context.Context) error {
	list, err := s.activeConsents()
	if err != nil {
		return err
	}
	for _, entry := range list {
		if record, ok := entry.(map[string]any); ok && record["token_id"] == s.tc.ConsentTokenID() {
			return nil
		}
	}
	return fmt.Errorf("token %s not listed in active consents %s", s.tc.ConsentTokenID(), s.tc.Body())
}

func (s *consentSteps) activeConsentsShouldExcludeToken(ctx context.Context) error {
	list, err := s.activeConsents()
	if err != nil {
		return err
	}
	for _, entry := range list {
		if record, ok := entry.(map[string]any); ok && record["token_id"] == s.tc.ConsentTokenID() {
			return fmt.Errorf("revoked token %s still listed in active consents", s.tc.ConsentTokenID())
		}
	}
	return nil
}
