package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/allumi/attribution-api/internal/core/domain"
	"github.com/allumi/attribution-api/internal/core/ports"
	"github.com/allumi/attribution-api/internal/core/services"
)

type HTTPHandler struct {
	Service ports.AttributionService
}

func NewHTTPHandler(service ports.AttributionService) *HTTPHandler {
	return &HTTPHandler{Service: service}
}

type TrackConversionRequest struct {
	SkoolEmail        string     `json:"skool_email" example:"member@example.com" binding:"required"`
	SkoolName         string     `json:"skool_name,omitempty" example:"Jane Doe"`
	SkoolUsername     string     `json:"skool_username,omitempty" example:"janedoe"`
	JoinedAt          *time.Time `json:"joined_at,omitempty"`
	MembershipType    string     `json:"membership_type,omitempty" example:"paid"`
	PricePaid         float64    `json:"price_paid,omitempty" example:"99"`
	AllumiID          *string    `json:"allumi_id,omitempty" example:"abc123"`
	DeviceFingerprint *string    `json:"device_fingerprint,omitempty"`
}

type TrackConversionResponse struct {
	Success           bool                             `json:"success"`
	ConversionID      string                           `json:"conversion_id"`
	Attributed        bool                             `json:"attributed"`
	ConfidenceScore   int                              `json:"confidence_score"`
	Attribution       map[string]domain.CampaignCredit `json:"attribution"`
	RevenueAttributed map[string]float64               `json:"revenue_attributed"`
}

type LookupConversionResponse struct {
	Exists     bool               `json:"exists"`
	Conversion *domain.Conversion `json:"conversion,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error" example:"Email is required"`
}

func validMembershipType(mt string) bool {
	switch domain.MembershipType(mt) {
	case "", domain.MembershipFree, domain.MembershipPaid:
		return true
	}
	return false
}

// TrackConversion godoc
// @Summary      Record a membership conversion
// @Description  Resolves which touchpoint(s) caused a reported conversion, assigns a confidence score, splits revenue credit across campaigns, and persists the result. Requires authentication.
// @Tags         conversions
// @Accept       json
// @Produce      json
// @Param        request  body      TrackConversionRequest  true  "Conversion data"
// @Success      200      {object}  TrackConversionResponse  "Conversion recorded"
// @Failure      400      {object}  ErrorResponse  "Missing email or invalid input"
// @Failure      401      {object}  ErrorResponse  "Unauthorized"
// @Failure      500      {object}  ErrorResponse  "Internal server error"
// @Router       /api/conversions [post]
func (h *HTTPHandler) TrackConversion(c fiber.Ctx) error {
	var req TrackConversionRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(400).JSON(ErrorResponse{Error: "Invalid input"})
	}

	if !validMembershipType(req.MembershipType) {
		return c.Status(400).JSON(ErrorResponse{Error: "Invalid membership type"})
	}

	conversion, err := h.Service.RecordConversion(c.Context(), domain.ConversionRequest{
		SkoolEmail:        req.SkoolEmail,
		SkoolName:         req.SkoolName,
		SkoolUsername:     req.SkoolUsername,
		JoinedAt:          req.JoinedAt,
		MembershipType:    domain.MembershipType(req.MembershipType),
		PricePaid:         req.PricePaid,
		AllumiID:          req.AllumiID,
		DeviceFingerprint: req.DeviceFingerprint,
	})
	if err != nil {
		if errors.Is(err, domain.ErrEmailRequired) {
			return c.Status(400).JSON(ErrorResponse{Error: "Email is required"})
		}
		return c.Status(500).JSON(ErrorResponse{Error: "Failed to record conversion"})
	}

	attribution := conversion.AttributionData
	if attribution == nil {
		attribution = map[string]domain.CampaignCredit{}
	}

	return c.JSON(TrackConversionResponse{
		Success:           true,
		ConversionID:      conversion.ID,
		Attributed:        conversion.Attributed(),
		ConfidenceScore:   conversion.ConfidenceScore,
		Attribution:       attribution,
		RevenueAttributed: services.SplitRevenue(conversion.AttributionData, conversion.RevenueTracked),
	})
}

// LookupConversion godoc
// @Summary      Look up a recorded conversion
// @Description  Returns the most recent conversion for an email or username. Requires authentication.
// @Tags         conversions
// @Accept       json
// @Produce      json
// @Param        email     query     string  false  "Member email"
// @Param        username  query     string  false  "Member username"
// @Success      200       {object}  LookupConversionResponse
// @Failure      400       {object}  ErrorResponse  "Neither email nor username given"
// @Failure      401       {object}  ErrorResponse  "Unauthorized"
// @Failure      500       {object}  ErrorResponse  "Internal server error"
// @Router       /api/conversions/lookup [get]
func (h *HTTPHandler) LookupConversion(c fiber.Ctx) error {
	email := c.Query("email")
	username := c.Query("username")
	if email == "" && username == "" {
		return c.Status(400).JSON(ErrorResponse{Error: "email or username query parameter is required"})
	}

	conversion, exists, err := h.Service.LookupConversion(c.Context(), email, username)
	if err != nil {
		return c.Status(500).JSON(ErrorResponse{Error: "Failed to look up conversion"})
	}
	if !exists {
		return c.JSON(LookupConversionResponse{Exists: false})
	}
	return c.JSON(LookupConversionResponse{Exists: true, Conversion: &conversion})
}
