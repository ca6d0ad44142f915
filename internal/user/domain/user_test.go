package domain

import (
	"testing"
	"time"
)

func TestProfile_Validate(t *testing.T) {
	tests := []struct {
		name    string
		p       Profile
		wantErr bool
	}{
		{"valid", Profile{ID: "u1", Email: "coach@example.com"}, false},
		{"missing id", Profile{Email: "coach@example.com"}, true},
		{"missing email", Profile{ID: "u1"}, true},
		{"bad email", Profile{ID: "u1", Email: "coach"}, true},
	}
	for _, tt := range tests {
		if err := tt.p.Validate(); (err != nil) != tt.wantErr {
			t.Errorf("%s: Validate() err = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestDevProfile(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	p := DevProfile(now)
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if p.ID != DevUserID || p.Email != DevUserEmail || !p.CreatedAt.Equal(now) {
		t.Errorf("DevProfile = %+v", p)
	}
}
