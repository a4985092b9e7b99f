package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/allumi/attribution-api/internal/core/domain"
)

type stubService struct {
	conversion domain.Conversion
	exists     bool
	err        error

	gotRequest domain.ConversionRequest
}

func (s *stubService) RecordConversion(_ context.Context, req domain.ConversionRequest) (domain.Conversion, error) {
	s.gotRequest = req
	if s.err != nil {
		return domain.Conversion{}, s.err
	}
	return s.conversion, nil
}

func (s *stubService) LookupConversion(_ context.Context, _, _ string) (domain.Conversion, bool, error) {
	if s.err != nil {
		return domain.Conversion{}, false, s.err
	}
	return s.conversion, s.exists, nil
}

func newTestApp(svc *stubService) *fiber.App {
	app := fiber.New()
	h := NewHTTPHandler(svc)
	app.Post("/api/conversions", h.TrackConversion)
	app.Get("/api/conversions/lookup", h.LookupConversion)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path, body string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return resp.StatusCode, b
}

func TestTrackConversionSuccess(t *testing.T) {
	linkID := "link-launch"
	svc := &stubService{conversion: domain.Conversion{
		ID:               "conv-1",
		SkoolEmail:       "a@x.com",
		MembershipType:   domain.MembershipPaid,
		AttributedLinkID: &linkID,
		AttributionData: map[string]domain.CampaignCredit{
			"launch": {Source: "yt", Medium: "social", Campaign: "launch", ClickedAt: time.Now(), Weight: 1.0},
		},
		ConfidenceScore: 95,
		RevenueTracked:  99,
	}}
	app := newTestApp(svc)

	code, body := postJSON(t, app, "/api/conversions", `{"skool_email":"a@x.com","allumi_id":"tok123","membership_type":"paid","price_paid":99}`)
	if code != 200 {
		t.Fatalf("status = %d, want 200; body=%s", code, body)
	}

	var resp TrackConversionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Success || !resp.Attributed {
		t.Errorf("success=%v attributed=%v, want both true", resp.Success, resp.Attributed)
	}
	if resp.ConfidenceScore != 95 {
		t.Errorf("confidence = %d, want 95", resp.ConfidenceScore)
	}
	if got := resp.Attribution["launch"].Weight; got != 1.0 {
		t.Errorf("launch weight = %g, want 1.0", got)
	}
	if got := resp.RevenueAttributed["launch"]; math.Abs(got-99) > 1e-6 {
		t.Errorf("launch revenue = %g, want 99", got)
	}
	if svc.gotRequest.SkoolEmail != "a@x.com" {
		t.Errorf("service got email %q", svc.gotRequest.SkoolEmail)
	}
	if svc.gotRequest.AllumiID == nil || *svc.gotRequest.AllumiID != "tok123" {
		t.Errorf("service got allumi id %v, want tok123", svc.gotRequest.AllumiID)
	}
}

func TestTrackConversionUnattributedShape(t *testing.T) {
	svc := &stubService{conversion: domain.Conversion{
		ID:             "conv-2",
		SkoolEmail:     "a@x.com",
		MembershipType: domain.MembershipPaid,
		RevenueTracked: 29,
	}}
	app := newTestApp(svc)

	code, body := postJSON(t, app, "/api/conversions", `{"skool_email":"a@x.com"}`)
	if code != 200 {
		t.Fatalf("status = %d, want 200", code)
	}

	var resp TrackConversionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Attributed {
		t.Error("expected attributed=false")
	}
	if resp.ConfidenceScore != 0 {
		t.Errorf("confidence = %d, want 0", resp.ConfidenceScore)
	}
	if len(resp.Attribution) != 0 {
		t.Errorf("attribution = %v, want empty object", resp.Attribution)
	}
	if len(resp.RevenueAttributed) != 0 {
		t.Errorf("revenue_attributed = %v, want empty object", resp.RevenueAttributed)
	}
}

func TestTrackConversionMissingEmail(t *testing.T) {
	svc := &stubService{err: domain.ErrEmailRequired}
	app := newTestApp(svc)

	code, body := postJSON(t, app, "/api/conversions", `{}`)
	if code != 400 {
		t.Fatalf("status = %d, want 400", code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error != "Email is required" {
		t.Errorf("error = %q, want %q", resp.Error, "Email is required")
	}
}

func TestTrackConversionInvalidMembershipType(t *testing.T) {
	app := newTestApp(&stubService{})

	code, _ := postJSON(t, app, "/api/conversions", `{"skool_email":"a@x.com","membership_type":"gold"}`)
	if code != 400 {
		t.Fatalf("status = %d, want 400", code)
	}
}

func TestTrackConversionInternalFailure(t *testing.T) {
	svc := &stubService{err: errors.New("db down")}
	app := newTestApp(svc)

	code, body := postJSON(t, app, "/api/conversions", `{"skool_email":"a@x.com"}`)
	if code != 500 {
		t.Fatalf("status = %d, want 500", code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error != "Failed to record conversion" {
		t.Errorf("error = %q, want %q", resp.Error, "Failed to record conversion")
	}
}

func TestLookupConversionFound(t *testing.T) {
	svc := &stubService{conversion: domain.Conversion{ID: "conv-1", SkoolEmail: "a@x.com"}, exists: true}
	app := newTestApp(svc)

	req := httptest.NewRequest("GET", "/api/conversions/lookup?email=a@x.com", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body LookupConversionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !body.Exists || body.Conversion == nil || body.Conversion.ID != "conv-1" {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestLookupConversionNotFound(t *testing.T) {
	app := newTestApp(&stubService{exists: false})

	req := httptest.NewRequest("GET", "/api/conversions/lookup?email=nobody@x.com", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	var body LookupConversionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Exists || body.Conversion != nil {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestLookupConversionRequiresQueryParam(t *testing.T) {
	app := newTestApp(&stubService{})

	req := httptest.NewRequest("GET", "/api/conversions/lookup", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != 400 {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}
