package models

import "testing"

func TestCampaign_Validate(t *testing.T) {
	tests := []struct {
		name     string
		campaign Campaign
		wantErr  bool
	}{
		{
			name: "valid text campaign",
			campaign: Campaign{
				UserID:        1,
				Template:      "Hi {name}!",
				SelectionMode: SelectionAll,
			},
			wantErr: false,
		},
		{
			name: "valid media-only campaign",
			campaign: Campaign{
				UserID:        1,
				Media:         []MediaAttachment{{URI: "https://cdn.example.com/a.jpg", Kind: MediaKindImage}},
				SelectionMode: SelectionPending,
			},
			wantErr: false,
		},
		{
			name: "empty template and media",
			campaign: Campaign{
				UserID:        1,
				SelectionMode: SelectionAll,
			},
			wantErr: true,
		},
		{
			name: "negative delay",
			campaign: Campaign{
				UserID:        1,
				Template:      "hello",
				SelectionMode: SelectionAll,
				DelaySeconds:  -1,
			},
			wantErr: true,
		},
		{
			name: "selected mode without ids",
			campaign: Campaign{
				UserID:        1,
				Template:      "hello",
				SelectionMode: SelectionSelected,
			},
			wantErr: true,
		},
		{
			name: "selected mode with ids",
			campaign: Campaign{
				UserID:        1,
				Template:      "hello",
				SelectionMode: SelectionSelected,
				ContactIDs:    []int64{3, 1},
			},
			wantErr: false,
		},
		{
			name: "invalid selection mode",
			campaign: Campaign{
				UserID:        1,
				Template:      "hello",
				SelectionMode: "everyone",
			},
			wantErr: true,
		},
		{
			name: "invalid media kind",
			campaign: Campaign{
				UserID:        1,
				Template:      "hello",
				SelectionMode: SelectionAll,
				Media:         []MediaAttachment{{URI: "x", Kind: "gif"}},
			},
			wantErr: true,
		},
		{
			name: "missing user",
			campaign: Campaign{
				Template:      "hello",
				SelectionMode: SelectionAll,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.campaign.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from string
		to   string
		want bool
	}{
		{CampaignStatusPending, CampaignStatusInProgress, true},
		{CampaignStatusPending, CampaignStatusCompleted, true},
		{CampaignStatusInProgress, CampaignStatusCompleted, true},
		{CampaignStatusInProgress, CampaignStatusFailed, true},
		{CampaignStatusInProgress, CampaignStatusCancelled, true},
		{CampaignStatusInProgress, CampaignStatusPending, false},
		{CampaignStatusCompleted, CampaignStatusInProgress, false},
		{CampaignStatusCancelled, CampaignStatusCompleted, false},
		{CampaignStatusFailed, CampaignStatusPending, false},
		{CampaignStatusCompleted, CampaignStatusCompleted, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
