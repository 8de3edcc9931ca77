package negotiation

import "testing"

func TestParseUCPAgentHeader(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{
			name:   "valid profile",
			header: `profile="https://platform.example/profile"`,
			want:   "https://platform.example/profile",
		},
		{
			name:   "profile with parameters",
			header: `profile="https://foo.bar/p";version=1`,
			want:   "https://foo.bar/p",
		},
		{
			name:   "profile among other keys",
			header: `agent="shopbot", profile="https://foo.bar/p"`,
			want:   "https://foo.bar/p",
		},
		{
			name:    "empty header",
			header:  "",
			wantErr: true,
		},
		{
			name:    "missing profile key",
			header:  `agent="shopbot"`,
			wantErr: true,
		},
		{
			name:    "profile is not a string",
			header:  `profile=42`,
			wantErr: true,
		},
		{
			name:    "malformed dictionary",
			header:  `profile="unterminated`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseUCPAgentHeader(tt.header)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("profile URL = %q, want %q", got, tt.want)
			}
		})
	}
}
