package pricempire

import "testing"

func TestDopplerPhase(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://cdn.example.com/karambit-doppler-phase2.png", "phase2"},
		{"https://cdn.example.com/Karambit-Doppler-Sapphire.png", "sapphire"},
		{"https://cdn.example.com/m9-doppler-black-pearl.png", "blackpearl"},
		{"https://cdn.example.com/ak47-redline.png", ""},
		// Phase marker without "doppler" anywhere: not a doppler render.
		{"https://cdn.example.com/phase2-something.png", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := DopplerPhase(tc.url); got != tc.want {
			t.Errorf("DopplerPhase(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}

func TestPhaseSource(t *testing.T) {
	if got := PhaseSource("buff163", ""); got != "buff163" {
		t.Errorf("base source = %q", got)
	}
	if got := PhaseSource("buff163", "phase2"); got != "buff163_phase2" {
		t.Errorf("phase source = %q", got)
	}
}
