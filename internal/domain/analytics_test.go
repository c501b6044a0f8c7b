package domain

import (
	"errors"
	"testing"
	"time"
)

func TestNewSnapshotRates(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		counts    map[EventType]int
		wantOpen  float64
		wantClick float64
		wantBnc   float64
		wantUnsub float64
	}{
		{
			name:   "nothing sent",
			counts: map[EventType]int{EventOpened: 3, EventClicked: 1},
		},
		{
			name:     "quarter opened",
			counts:   map[EventType]int{EventSent: 100, EventOpened: 25},
			wantOpen: 25.0,
		},
		{
			name: "all rates",
			counts: map[EventType]int{
				EventSent: 200, EventOpened: 50, EventClicked: 10,
				EventBounced: 4, EventUnsubscribed: 2,
			},
			wantOpen: 25.0, wantClick: 5.0, wantBnc: 2.0, wantUnsub: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSnapshot(7, tt.counts, at)
			if s.CampaignID != 7 || !s.CalculatedAt.Equal(at) {
				t.Errorf("identity fields = %d/%v", s.CampaignID, s.CalculatedAt)
			}
			if s.OpenRate != tt.wantOpen {
				t.Errorf("OpenRate = %v, want %v", s.OpenRate, tt.wantOpen)
			}
			if s.ClickRate != tt.wantClick {
				t.Errorf("ClickRate = %v, want %v", s.ClickRate, tt.wantClick)
			}
			if s.BounceRate != tt.wantBnc {
				t.Errorf("BounceRate = %v, want %v", s.BounceRate, tt.wantBnc)
			}
			if s.UnsubscribeRate != tt.wantUnsub {
				t.Errorf("UnsubscribeRate = %v, want %v", s.UnsubscribeRate, tt.wantUnsub)
			}
		})
	}
}

func TestEventTypeValid(t *testing.T) {
	for _, et := range EventTypes {
		if !et.Valid() {
			t.Errorf("%s should be valid", et)
		}
	}
	if EventType("opened").Valid() {
		t.Error("lower-case type should not be valid")
	}
}

func TestErrorTaxonomy(t *testing.T) {
	cause := errors.New("boom")

	err := error(&InvalidTokenError{Reason: "bad base64", Err: cause})
	if !IsInvalidToken(err) {
		t.Error("IsInvalidToken should match")
	}
	if !errors.Is(err, cause) {
		t.Error("InvalidTokenError should unwrap to its cause")
	}
	if IsInvalidToken(ErrNotFound) {
		t.Error("ErrNotFound is not a token error")
	}

	te := &TransportError{CampaignID: 1, RecipientID: 2, Err: cause}
	if !errors.Is(te, cause) {
		t.Error("TransportError should unwrap to its cause")
	}
	if te.Error() != "transport: campaign 1 recipient 2: boom" {
		t.Errorf("unexpected message %q", te.Error())
	}
}

func TestCampaignHelpers(t *testing.T) {
	c := &Campaign{SenderName: "News", SenderEmail: "news@example.com", Status: CampaignScheduled}
	if !c.CanSend() {
		t.Error("scheduled campaign should be sendable")
	}
	if got := c.From(); got != "News <news@example.com>" {
		t.Errorf("From() = %q", got)
	}
	c.Status = CampaignSending
	if c.CanSend() {
		t.Error("sending campaign should not be sendable")
	}
	c.SenderName = ""
	if got := c.From(); got != "news@example.com" {
		t.Errorf("From() = %q", got)
	}
}
