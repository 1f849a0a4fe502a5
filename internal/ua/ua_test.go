package ua

import "testing"

func TestParse(t *testing.T) {
	cases := []struct {
		name   string
		raw    string
		device string
		bot    bool
	}{
		{"desktop chrome",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
			"Desktop", false},
		{"iphone safari",
			"Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
			"Mobile", false},
		{"googlebot",
			"Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
			"", true},
		{"empty", "", "Other", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Parse(c.raw)
			if c.device != "" && got.Device != c.device {
				t.Errorf("Device = %q, want %q", got.Device, c.device)
			}
			if got.IsBot != c.bot {
				t.Errorf("IsBot = %v, want %v", got.IsBot, c.bot)
			}
		})
	}
}
