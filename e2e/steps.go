package e2e

import (
	"github.com/cucumber/godog"

	"hushmcp/e2e/steps/common"
	"hushmcp/e2e/steps/consent"
	"hushmcp/e2e/steps/ratelimit"
	"hushmcp/e2e/steps/session"
	"hushmcp/e2e/steps/trust"
	"hushmcp/e2e/steps/vault"
)

// RegisterSteps wires every step package against one scenario's TestContext.
func RegisterSteps(sc *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(sc, tc)
	session.RegisterSteps(sc, tc)
	consent.RegisterSteps(sc, tc)
	trust.RegisterSteps(sc, tc)
	vault.RegisterSteps(sc, tc)
	ratelimit.RegisterSteps(sc, tc)
}
