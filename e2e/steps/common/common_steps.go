package common

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Reset()
	AuthenticateAs(owner string) error
	ClearAuthentication()
	StatusCode() int
	GetResponseField(field string) (any, error)
}

// RegisterSteps registers background and generic assertion steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^an empty registry$`, steps.emptyRegistry)
	ctx.Step(`^I am authenticated as "([^"]*)"$`, steps.authenticateAs)
	ctx.Step(`^I am not authenticated$`, steps.notAuthenticated)

	ctx.Step(`^the response status should be (\d+)$`, steps.responseStatusShouldBe)
	ctx.Step(`^the error code should be "([^"]*)"$`, steps.errorCodeShouldBe)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) emptyRegistry(ctx context.Context) error {
	s.tc.Reset()
	return nil
}

func (s *commonSteps) authenticateAs(ctx context.Context, owner string) error {
	return s.tc.AuthenticateAs(owner)
}

func (s *commonSteps) notAuthenticated(ctx context.Context) error {
	s.tc.ClearAuthentication()
	return nil
}

func (s *commonSteps) responseStatusShouldBe(ctx context.Context, expected int) error {
	if got := s.tc.StatusCode(); got != expected {
		return fmt.Errorf("expected status %d, got %d", expected, got)
	}
	return nil
}

func (s *commonSteps) errorCodeShouldBe(ctx context.Context, expected string) error {
	got, err := s.tc.GetResponseField("error")
	if err != nil {
		return err
	}
	if got != expected {
		return fmt.Errorf("expected error code %q, got %v", expected, got)
	}
	return nil
}
