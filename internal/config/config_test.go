package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.UnknownRecipientPolicy != "reject" {
		t.Errorf("UnknownRecipientPolicy = %q, want reject", cfg.UnknownRecipientPolicy)
	}
	if cfg.MailboxLimit != 0 {
		t.Errorf("MailboxLimit = %d, want 0", cfg.MailboxLimit)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "courier.yaml")
	content := "port: \"9000\"\nmailbox_limit: 50\nunknown_recipient_policy: mailbox\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("MAILBOX_LIMIT", "75")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "not-a-number")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != "9000" {
		t.Errorf("Port = %q, want 9000 from file", cfg.Port)
	}
	if cfg.MailboxLimit != 75 {
		t.Errorf("MailboxLimit = %d, want 75 from env", cfg.MailboxLimit)
	}
	if cfg.UnknownRecipientPolicy != "mailbox" {
		t.Errorf("UnknownRecipientPolicy = %q, want mailbox", cfg.UnknownRecipientPolicy)
	}
	if cfg.RateLimitPerMinute != 120 {
		t.Errorf("RateLimitPerMinute = %d, want default 120 on bad env value", cfg.RateLimitPerMinute)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing config file")
	}
}
