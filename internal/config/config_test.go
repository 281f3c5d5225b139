package config

import (
	"strings"
	"testing"
)

// setRequired puts a minimal valid environment in place. Individual tests
// override or unset pieces of it.
func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_USERNAME", "bot")
	t.Setenv("SMTP_PASSWORD", "secret")
	t.Setenv("EMAIL_FROM", "bot@example.com")
	t.Setenv("EMAIL_TO", "reader@example.com")
	t.Setenv("DATA_DIR", t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LLMProvider != "anthropic" {
		t.Errorf("LLMProvider = %q, want anthropic", cfg.LLMProvider)
	}
	if cfg.Model != "claude-sonnet-4-5-20250929" {
		t.Errorf("Unexpected default model: %q", cfg.Model)
	}
	if cfg.SummaryMaxTokens != 150 {
		t.Errorf("SummaryMaxTokens = %d, want 150", cfg.SummaryMaxTokens)
	}
	if cfg.FetchLimit != 15 || cfg.DisplayLimit != 15 {
		t.Errorf("Limits = %d/%d, want 15/15", cfg.FetchLimit, cfg.DisplayLimit)
	}
	if cfg.SMTPPort != 587 {
		t.Errorf("SMTPPort = %d, want 587", cfg.SMTPPort)
	}
	want := []string{"cs.AI", "cs.CL", "cs.LG"}
	if len(cfg.Categories) != len(want) {
		t.Fatalf("Categories = %v, want %v", cfg.Categories, want)
	}
	for i := range want {
		if cfg.Categories[i] != want[i] {
			t.Errorf("Categories[%d] = %q, want %q", i, cfg.Categories[i], want[i])
		}
	}
	if !cfg.NotificationsOn {
		t.Error("Notifications should default to enabled")
	}
}

func TestLoadMissingRequiredListsAll(t *testing.T) {
	setRequired(t)
	t.Setenv("SMTP_HOST", "")
	t.Setenv("EMAIL_FROM", "")

	_, err := Load()
	if err == nil {
		t.Fatal("Expected error for missing required variables")
	}
	// Both missing variables show up in the one error.
	if !strings.Contains(err.Error(), "SMTP_HOST") || !strings.Contains(err.Error(), "EMAIL_FROM") {
		t.Errorf("Error should name every missing variable, got: %v", err)
	}
}

func TestLoadProviderSpecificKey(t *testing.T) {
	setRequired(t)
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("LLM_PROVIDER", "openai")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Fatalf("Expected missing OPENAI_API_KEY for openai provider, got: %v", err)
	}

	t.Setenv("OPENAI_API_KEY", "sk-openai")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.OpenAIAPIKey != "sk-openai" {
		t.Errorf("OpenAIAPIKey = %q", cfg.OpenAIAPIKey)
	}
}

func TestLoadSplitsListsAndTrims(t *testing.T) {
	setRequired(t)
	t.Setenv("EMAIL_TO", "a@example.com, b@example.com ,, c@example.com")
	t.Setenv("INTEREST_KEYWORDS", " transformer ,attention,")
	t.Setenv("ARXIV_CATEGORIES", "cs.AI , cs.RO")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.EmailTo) != 3 || cfg.EmailTo[1] != "b@example.com" {
		t.Errorf("EmailTo = %v", cfg.EmailTo)
	}
	if len(cfg.Keywords) != 2 || cfg.Keywords[0] != "transformer" {
		t.Errorf("Keywords = %v", cfg.Keywords)
	}
	if len(cfg.Categories) != 2 || cfg.Categories[1] != "cs.RO" {
		t.Errorf("Categories = %v", cfg.Categories)
	}
}

func TestLoadRejectsInvalidRecipient(t *testing.T) {
	setRequired(t)
	t.Setenv("EMAIL_TO", "not-an-email")

	if _, err := Load(); err == nil {
		t.Fatal("Expected error for invalid recipient address")
	}
}

func TestNotificationRecipientDefaultsToFirstDigestRecipient(t *testing.T) {
	setRequired(t)
	t.Setenv("EMAIL_TO", "first@example.com,second@example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.NotificationEmailTo != "first@example.com" {
		t.Errorf("NotificationEmailTo = %q, want first@example.com", cfg.NotificationEmailTo)
	}

	t.Setenv("NOTIFICATION_EMAIL_TO", "admin@example.com")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.NotificationEmailTo != "admin@example.com" {
		t.Errorf("NotificationEmailTo = %q, want admin@example.com", cfg.NotificationEmailTo)
	}
}

func TestDerivedPaths(t *testing.T) {
	setRequired(t)
	dir := t.TempDir()
	t.Setenv("DATA_DIR", dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !strings.HasPrefix(cfg.DBPath(), dir) || !strings.HasSuffix(cfg.DBPath(), "digest.db") {
		t.Errorf("DBPath = %q", cfg.DBPath())
	}
	if !strings.HasPrefix(cfg.LogDir(), dir) || !strings.HasSuffix(cfg.LogDir(), "logs") {
		t.Errorf("LogDir = %q", cfg.LogDir())
	}
}
