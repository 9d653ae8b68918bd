package messages

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultCatalogComplete(t *testing.T) {
	c := Default()

	checks := map[string]string{
		"SubmissionWelcome":   c.SubmissionWelcome,
		"SubmissionLocked":    c.SubmissionLocked,
		"OutcomePass":         c.OutcomePass,
		"OutcomeFail":         c.OutcomeFail,
		"RetentionNotice":     c.RetentionNotice,
		"Results":             c.Results,
		"NoActiveChallenge":   c.NoActiveChallenge,
		"DuplicateSubmission": c.DuplicateSubmission,
		"AlreadyGraded":       c.AlreadyGraded,
		"GenericError":        c.GenericError,
	}

	for name, value := range checks {
		if value == "" {
			t.Errorf("default catalog entry %s is empty", name)
		}
	}
}

func TestWelcomeForUsesNameTwice(t *testing.T) {
	c := Default()
	got := c.WelcomeFor("ada")

	if strings.Count(got, "ada") != 2 {
		t.Errorf("expected display name twice in welcome, got: %s", got)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.NoActiveChallenge != Default().NoActiveChallenge {
		t.Error("expected default wording for empty path")
	}
}

func TestLoadOverlaysOnlyPresentKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.yaml")
	content := "no_active_challenge: \"Nothing running right now.\"\n"

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if c.NoActiveChallenge != "Nothing running right now." {
		t.Errorf("expected override, got %q", c.NoActiveChallenge)
	}
	if c.AlreadyGraded != Default().AlreadyGraded {
		t.Error("expected untouched key to keep the default")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
