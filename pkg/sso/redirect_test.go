package sso

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedirectPolicyResolve(t *testing.T) {
	policy := RedirectPolicy{
		DefaultURL:   "/home",
		AllowedHosts: []string{"admin.example.com"},
	}

	tests := []struct {
		name      string
		requested string
		forwarded string
		want      string
		wantErr   bool
	}{
		{
			name:      "empty falls back to default",
			requested: "",
			want:      "/home",
		},
		{
			name:      "relative path",
			requested: "/dashboard",
			want:      "/dashboard",
		},
		{
			name:      "relative path with query",
			requested: "/reports?year=2026",
			want:      "/reports?year=2026",
		},
		{
			name:      "same host absolute",
			requested: "http://app.example.com/settings",
			want:      "http://app.example.com/settings",
		},
		{
			name:      "allow-listed host",
			requested: "https://admin.example.com/panel",
			want:      "https://admin.example.com/panel",
		},
		{
			name:      "nested next parameter unwraps",
			requested: "/login/?next=%2Fdashboard",
			want:      "/dashboard",
		},
		{
			name:      "doubly nested next parameter unwraps",
			requested: "/login/?next=%2Faccounts%2Flogin%2F%3Fnext%3D%252Fdashboard",
			want:      "/dashboard",
		},
		{
			name:      "nested next hiding offsite target",
			requested: "/login/?next=https%3A%2F%2Fevil.example.net%2F",
			wantErr:   true,
		},
		{
			name:      "foreign host",
			requested: "https://evil.example.net/phish",
			wantErr:   true,
		},
		{
			name:      "protocol relative",
			requested: "//evil.example.net/phish",
			wantErr:   true,
		},
		{
			name:      "backslash protocol relative",
			requested: `/\evil.example.net/phish`,
			wantErr:   true,
		},
		{
			name:      "double backslash host",
			requested: `\\evil.example.net/phish`,
			wantErr:   true,
		},
		{
			name:      "backslash slash host",
			requested: `\/evil.example.net/phish`,
			wantErr:   true,
		},
		{
			name:      "backslash hidden in absolute url",
			requested: `https:/\evil.example.net/phish`,
			wantErr:   true,
		},
		{
			name:      "javascript scheme",
			requested: "javascript:alert(1)",
			wantErr:   true,
		},
		{
			name:      "downgrade to http behind tls",
			requested: "http://app.example.com/settings",
			forwarded: "https",
			wantErr:   true,
		},
		{
			name:      "https stays https behind tls",
			requested: "https://app.example.com/settings",
			forwarded: "https",
			want:      "https://app.example.com/settings",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "http://app.example.com/sso/login", nil)
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-Proto", tt.forwarded)
			}

			got, err := policy.Resolve(r, tt.requested)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrUnsafeRedirect)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnwrapNextStopsAtDepthLimit(t *testing.T) {
	// A self-referencing next= must not loop forever.
	target := "/login/?next=%2Flogin%2F%3Fnext%3D%252Flogin%252F"
	got := unwrapNext(target)
	assert.Equal(t, "/login/", got)
}
