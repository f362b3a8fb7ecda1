package registry

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/cucumber/godog"

	"mediashare/internal/registry/handler"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	AuthenticateAs(owner string) error
	POST(path string, body any) error
	GET(path string) error
	StatusCode() int
	DecodeResponse(v any) error
	AuditActions(assetID string) ([]string, error)
}

// RegisterSteps registers asset and transfer step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &registrySteps{tc: tc}

	// Arrangement steps
	ctx.Step(`^"([^"]*)" has registered asset "([^"]*)" titled "([^"]*)"$`, steps.ownerHasRegistered)
	ctx.Step(`^"([^"]*)" has transferred (\d+)% of "([^"]*)" to "([^"]*)"$`, steps.ownerHasTransferred)

	// Actions
	ctx.Step(`^I register asset "([^"]*)" titled "([^"]*)"$`, steps.registerAsset)
	ctx.Step(`^I register asset "([^"]*)" titled "([^"]*)" for "([^"]*)"$`, steps.registerAssetFor)
	ctx.Step(`^I transfer (-?\d+)% of "([^"]*)" to "([^"]*)"$`, steps.transfer)
	ctx.Step(`^I transfer (-?\d+)% of "([^"]*)" to "([^"]*)" claiming asset "([^"]*)"$`, steps.transferClaiming)

	// Assertions
	ctx.Step(`^the partition of "([^"]*)" should be "([^"]*)"$`, steps.partitionShouldBe)
	ctx.Step(`^the response partition should be "([^"]*)"$`, steps.responsePartitionShouldBe)
	ctx.Step(`^"([^"]*)" should hold (\d+)% of "([^"]*)"$`, steps.ownerShouldHold)
	ctx.Step(`^"([^"]*)" should hold nothing$`, steps.ownerShouldHoldNothing)
	ctx.Step(`^the audit trail of "([^"]*)" should be "([^"]*)"$`, steps.auditTrailShouldBe)
}

type registrySteps struct {
	tc TestContext
}

func assetPath(assetID string) string {
	return "/v1/assets/" + url.PathEscape(assetID)
}

func (s *registrySteps) ownerHasRegistered(ctx context.Context, owner, assetID, title string) error {
	if err := s.tc.AuthenticateAs(owner); err != nil {
		return err
	}
	if err := s.registerAsset(ctx, assetID, title); err != nil {
		return err
	}
	return s.expectStatus(http.StatusCreated)
}

func (s *registrySteps) ownerHasTransferred(ctx context.Context, owner string, pct int, assetID, to string) error {
	if err := s.tc.AuthenticateAs(owner); err != nil {
		return err
	}
	if err := s.transfer(ctx, pct, assetID, to); err != nil {
		return err
	}
	return s.expectStatus(http.StatusOK)
}

func (s *registrySteps) registerAsset(ctx context.Context, assetID, title string) error {
	return s.tc.POST("/v1/assets", map[string]any{"asset_id": assetID, "title": title})
}

func (s *registrySteps) registerAssetFor(ctx context.Context, assetID, title, creator string) error {
	return s.tc.POST("/v1/assets", map[string]any{"asset_id": assetID, "title": title, "creator": creator})
}

func (s *registrySteps) transfer(ctx context.Context, pct int, assetID, to string) error {
	return s.tc.POST(assetPath(assetID)+"/transfers", map[string]any{"to": to, "percentage": pct})
}

func (s *registrySteps) transferClaiming(ctx context.Context, pct int, assetID, to, claimed string) error {
	return s.tc.POST(assetPath(assetID)+"/transfers", map[string]any{"asset_id": claimed, "to": to, "percentage": pct})
}

func (s *registrySteps) partitionShouldBe(ctx context.Context, assetID, expected string) error {
	if err := s.tc.GET(assetPath(assetID)); err != nil {
		return err
	}
	if err := s.expectStatus(http.StatusOK); err != nil {
		return err
	}
	return s.responsePartitionShouldBe(ctx, expected)
}

func (s *registrySteps) responsePartitionShouldBe(ctx context.Context, expected string) error {
	var asset handler.AssetResponse
	if err := s.tc.DecodeResponse(&asset); err != nil {
		return err
	}
	want, err := parsePartition(expected)
	if err != nil {
		return err
	}
	if got := formatPartition(asset.Partition); got != formatPartition(want) {
		return fmt.Errorf("expected partition %q, got %q", formatPartition(want), got)
	}
	return nil
}

func (s *registrySteps) ownerShouldHold(ctx context.Context, owner string, pct int, assetID string) error {
	holdings, err := s.holdings(owner)
	if err != nil {
		return err
	}
	for _, h := range holdings.Holdings {
		if h.AssetID == assetID {
			if h.Share != pct {
				return fmt.Errorf("%s holds %d%% of %s, expected %d%%", owner, h.Share, assetID, pct)
			}
			return nil
		}
	}
	return fmt.Errorf("%s holds no stake in %s", owner, assetID)
}

func (s *registrySteps) ownerShouldHoldNothing(ctx context.Context, owner string) error {
	holdings, err := s.holdings(owner)
	if err != nil {
		return err
	}
	if len(holdings.Holdings) != 0 {
		return fmt.Errorf("expected no holdings for %s, got %+v", owner, holdings.Holdings)
	}
	return nil
}

func (s *registrySteps) holdings(owner string) (*handler.HoldingsResponse, error) {
	if err := s.tc.GET("/v1/owners/" + url.PathEscape(owner) + "/holdings"); err != nil {
		return nil, err
	}
	if err := s.expectStatus(http.StatusOK); err != nil {
		return nil, err
	}
	var resp handler.HoldingsResponse
	if err := s.tc.DecodeResponse(&resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *registrySteps) auditTrailShouldBe(ctx context.Context, assetID, expected string) error {
	actions, err := s.tc.AuditActions(assetID)
	if err != nil {
		return err
	}
	if got := strings.Join(actions, ","); got != expected {
		return fmt.Errorf("expected audit trail %q, got %q", expected, got)
	}
	return nil
}

func (s *registrySteps) expectStatus(expected int) error {
	if got := s.tc.StatusCode(); got != expected {
		return fmt.Errorf("expected status %d, got %d", expected, got)
	}
	return nil
}

// parsePartition reads "alice:60,bob:40".
func parsePartition(s string) ([]handler.StakeResponse, error) {
	var out []handler.StakeResponse
	for _, part := range strings.Split(s, ",") {
		owner, share, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return nil, fmt.Errorf("malformed stake %q", part)
		}
		n, err := strconv.Atoi(share)
		if err != nil {
			return nil, fmt.Errorf("malformed share in %q: %w", part, err)
		}
		out = append(out, handler.StakeResponse{Owner: owner, Share: n})
	}
	return out, nil
}

func formatPartition(stakes []handler.StakeResponse) string {
	parts := make([]string, 0, len(stakes))
	for _, st := range stakes {
		parts = append(parts, fmt.Sprintf("%s:%d", st.Owner, st.Share))
	}
	return strings.Join(parts, ",")
}
