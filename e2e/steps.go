package e2e

import (
	"github.com/cucumber/godog"

	"mediashare/e2e/steps/common"
	"mediashare/e2e/steps/registry"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (background, generic requests, assertions)
	common.RegisterSteps(ctx, tc)

	// Register registry-specific steps
	registry.RegisterSteps(ctx, tc)
}
