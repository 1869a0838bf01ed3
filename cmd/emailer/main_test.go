package main

import (
	"strings"
	"testing"
)

func TestRun_ReturnsStartupErrors(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("ZILLOW_API_KEY", "")
	if err := run(); err == nil || !strings.Contains(err.Error(), "ZILLOW_API_KEY") {
		t.Errorf("missing key err = %v", err)
	}

	t.Setenv("ZILLOW_API_KEY", "k")
	t.Setenv("EMAILER_PREVIEW_SEARCH", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SENDGRID_API_KEY", "")
	err := run()
	if err == nil {
		t.Fatal("run without database or mail credentials should fail")
	}
	for _, want := range []string{"DATABASE_URL", "SENDGRID_API_KEY"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("err = %v, want mention of %s", err, want)
		}
	}
}
