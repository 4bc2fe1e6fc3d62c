package utils

import "testing"

func TestDetermineLocale(t *testing.T) {
	supported := []string{"en", "hi"}
	cases := []struct {
		name   string
		hint   string
		accept string
		want   string
	}{
		{name: "hint wins", hint: "hi-IN", accept: "en-US,en;q=0.9", want: "hi"},
		{name: "bare hint", hint: "hi", want: "hi"},
		{name: "accept order", accept: "en-US,en;q=0.9,hi;q=0.8", want: "en"},
		{name: "accept prefers higher q", accept: "hi;q=0.9,en;q=0.8", want: "hi"},
		{name: "unsupported falls back", hint: "fr", accept: "fr-FR,es;q=0.9", want: "en"},
		{name: "garbage hint ignored", hint: "not a tag!", want: "en"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DetermineLocale(tc.hint, tc.accept, supported, "en"); got != tc.want {
				t.Fatalf("want %s, got %s", tc.want, got)
			}
		})
	}
}

func TestDetermineLocale_DefaultNotSupported(t *testing.T) {
	if got := DetermineLocale("", "", []string{"hi", "en"}, "fr"); got != "hi" {
		t.Fatalf("want first supported, got %s", got)
	}
}
