package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestSignupRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     SignupRequest
		wantErr bool
	}{
		{
			name: "valid",
			req:  SignupRequest{Username: "SnakeMaster", Password: "password123"},
		},
		{
			name: "minimum lengths",
			req:  SignupRequest{Username: "abc", Password: "xyz"},
		},
		{
			name:    "username too short",
			req:     SignupRequest{Username: "ab", Password: "password123"},
			wantErr: true,
		},
		{
			name:    "username too long",
			req:     SignupRequest{Username: strings.Repeat("a", MaxUsernameLen+1), Password: "password123"},
			wantErr: true,
		},
		{
			name:    "password too short",
			req:     SignupRequest{Username: "SnakeMaster", Password: "ab"},
			wantErr: true,
		},
		{
			name:    "password too long",
			req:     SignupRequest{Username: "SnakeMaster", Password: strings.Repeat("p", MaxPasswordLen+1)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected validation error, got nil")
				}
				if !errors.Is(err, ErrInvalidRequest) {
					t.Errorf("error should wrap ErrInvalidRequest, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
