package domain

import "testing"

func validResult() MatchResult {
	return MatchResult{
		AttributedLinkID: "link-1",
		Attribution: map[string]CampaignCredit{
			"yt": {Campaign: "yt", Weight: 0.75},
			"ig": {Campaign: "ig", Weight: 0.25},
		},
		Confidence: 80,
	}
}

func TestMatchResultValidateAccepts(t *testing.T) {
	r := validResult()
	if err := r.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestMatchResultValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*MatchResult)
	}{
		{"missing link id", func(r *MatchResult) { r.AttributedLinkID = "" }},
		{"no entries", func(r *MatchResult) { r.Attribution = nil }},
		{"confidence out of range", func(r *MatchResult) { r.Confidence = 101 }},
		{"empty campaign name", func(r *MatchResult) {
			r.Attribution[""] = CampaignCredit{Weight: 0}
		}},
		{"negative weight", func(r *MatchResult) {
			r.Attribution["yt"] = CampaignCredit{Campaign: "yt", Weight: -0.5}
			r.Attribution["ig"] = CampaignCredit{Campaign: "ig", Weight: 1.5}
		}},
		{"weights not normalized", func(r *MatchResult) {
			r.Attribution["yt"] = CampaignCredit{Campaign: "yt", Weight: 0.9}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := validResult()
			tc.mutate(&r)
			if err := r.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
