package vault

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/cucumber/godog"
)

// TestContext is the slice of the scenario context the vault steps need.
type TestContext interface {
	POST(path string, body any) error
	GET(path string) error
	DELETE(path string) error
	StatusCode() int
	Body() []byte
	Field(path string) (any, error)
	StringField(path string) (string, error)
	ConsentToken() string
}

// RegisterSteps registers the agent-facing encrypt/decrypt flows and the
// session-guarded data management surface.
func RegisterSteps(sc *godog.ScenarioContext, tc TestContext) {
	steps := &vaultSteps{tc: tc}

	sc.Step(`^the agent stores "([^"]*)" in vault category "([^"]*)" under scope "([^"]*)"$`, steps.storeData)
	sc.Step(`^the agent decrypts the stored record$`, steps.decryptRecord)
	sc.Step(`^the agent decrypts the stored record with the token "([^"]*)"$`, steps.decryptWithLiteralToken)
	sc.Step(`^the agent decrypts the stored record declaring scope "([^"]*)"$`, steps.decryptDeclaringScope)
	sc.Step(`^I list my vault categories$`, steps.listCategories)
	sc.Step(`^I export my data$`, steps.exportData)
	sc.Step(`^I delete my data$`, steps.deleteData)

	sc.Step(`^the decrypted data should read "([^"]*)"$`, steps.decryptedDataShouldRead)
	sc.Step(`^the categories should include "([^"]*)"$`, steps.categoriesShouldInclude)
	sc.Step(`^the export should include the stored record$`, steps.exportShouldIncludeRecord)
	sc.Step(`^the export should hold no records$`, steps.exportShouldBeEmpty)
}

type vaultSteps struct {
	tc TestContext

	recordID string
	category string
	scope    string
}

func (s *vaultSteps) storeData(ctx context.Context, text, category, scope string) error {
	if err := s.tc.POST("/api/vault/encrypt", map[string]any{
		"token":    s.tc.ConsentToken(),
		"scope":    scope,
		"category": category,
		"data":     []byte(text),
	}); err != nil {
		return err
	}
	if s.tc.StatusCode() != http.StatusCreated {
		return nil
	}
	recordID, err := s.tc.StringField("record_id")
	if err != nil {
		return err
	}
	s.recordID = recordID
	s.category = category
	s.scope = scope
	return nil
}

func (s *vaultSteps) decrypt(token, scope string) error {
	return s.tc.POST("/api/vault/decrypt", map[string]any{
		"token":     token,
		"scope":     scope,
		"category":  s.category,
		"record_id": s.recordID,
	})
}

func (s *vaultSteps) decryptRecord(ctx context.Context) error {
	return s.decrypt(s.tc.ConsentToken(), s.scope)
}

func (s *vaultSteps) decryptWithLiteralToken(ctx context.Context, token string) error {
	return s.decrypt(token, s.scope)
}

func (s *vaultSteps) decryptDeclaringScope(ctx context.Context, scope string) error {
	return s.decrypt(s.tc.ConsentToken(), scope)
}

func (s *vaultSteps) listCategories(ctx context.Context) error {
	return s.tc.GET("/api/data/categories")
}

func (s *vaultSteps) exportData(ctx context.Context) error {
	return s.tc.GET("/api/data/export")
}

func (s *vaultSteps) deleteData(ctx context.Context) error {
	return s.tc.DELETE("/api/data")
}

// decryptedDataShouldRead decodes the base64 payload the wire carries for
// raw bytes and compares the plaintext.
func (s *vaultSteps) decryptedDataShouldRead(ctx context.Context, text string) error {
	encoded, err := s.tc.StringField("data")
	if err != nil {
		return err
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("decode data field: %w", err)
	}
	if got := string(data); got != text {
		return fmt.Errorf("expected decrypted data %q, got %q", text, got)
	}
	return nil
}

func (s *vaultSteps) categoriesShouldInclude(ctx context.Context, category string) error {
	value, err := s.tc.Field("categories")
	if err != nil {
		return err
	}
	list, ok := value.([]any)
	if !ok {
		return fmt.Errorf("field \"categories\" is %T, not a list", value)
	}
	for _, entry := range list {
		if record, ok := entry.(map[string]any); ok && record["category"] == category {
			return nil
		}
	}
	return fmt.Errorf("category %q not in %s", category, s.tc.Body())
}

func (s *vaultSteps) exportRecords() ([]any, error) {
	value, err := s.tc.Field("records")
	if err != nil {
		return nil, err
	}
	list, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("field \"records\" is %T, not a list", value)
	}
	return list, nil
}

func (s *vaultSteps) exportShouldIncludeRecord(ctx context.Context) error {
	list, err := s.exportRecords()
	if err != nil {
		return err
	}
	for _, entry := range list {
		if record, ok := entry.(map[string]any); ok && record["record_id"] == s.recordID {
			return nil
		}
	}
	return fmt.Errorf("record %s not in export %s", s.recordID, s.tc.Body())
}

func (s *vaultSteps) exportShouldBeEmpty(ctx context.Context) error {
	list, err := s.exportRecords()
	if err != nil {
		return err
	}
	if len(list) != 0 {
		return fmt.Errorf("expected empty export, got %d records", len(list))
	}
	return nil
}
