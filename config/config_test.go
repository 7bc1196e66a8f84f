package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimal = `
funds:
  - url: https://investmentcentre.moneymanagement.com.au/factsheets/AH/09x2/pimco-global-bond-wholesale
    symbol: ETL0018AU
    name: PIMCO Global Bond
`

func TestLoadFile_Defaults(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, minimal))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Browser.Mode != "headless" {
		t.Fatalf("mode: %q", cfg.Browser.Mode)
	}
	if cfg.Browser.PageLoad != 20 || cfg.Browser.PageLoadTimeout() != 20*time.Second {
		t.Fatalf("page_load: %d", cfg.Browser.PageLoad)
	}
	if cfg.Browser.MaxAttempts != 3 {
		t.Fatalf("max_attempts: %d", cfg.Browser.MaxAttempts)
	}
	if cfg.Browser.DefaultCurrency != "AUD" {
		t.Fatalf("default_currency: %q", cfg.Browser.DefaultCurrency)
	}
	if cfg.Files.OutputCSV != "price_data.csv" {
		t.Fatalf("output_csv: %q", cfg.Files.OutputCSV)
	}
	if cfg.Files.RetentionDays != 0 {
		t.Fatalf("retention_days: %d", cfg.Files.RetentionDays)
	}
	if cfg.Email.Provider != "mock" || cfg.Email.SMTPPort != 587 {
		t.Fatalf("email defaults: %+v", cfg.Email)
	}
	if len(cfg.Browser.ResourceBlocking) == 0 {
		t.Fatal("resource blocking default missing")
	}
}

func TestLoadFile_FullConfig(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, `
funds:
  - url: https://funds.example/a
  - url: https://funds.example/b
    symbol: BBB0002AU
browser:
  mode: headful
  page_load: 30
  max_attempts: 5
  default_currency: NZD
files:
  output_csv: out/prices.csv
  retention_days: 90
  run_history_db: out/history.db
email:
  enabled: true
  provider: smtp
  to: ops@example.com
  subject_prefix: "[fundwatch]"
  from: fundwatch@example.com
  smtp_host: smtp.example.com
  smtp_user: fundwatch
  smtp_password: hunter2
`))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(cfg.Funds) != 2 || cfg.Funds[1].Symbol != "BBB0002AU" {
		t.Fatalf("funds: %+v", cfg.Funds)
	}
	if cfg.Browser.Mode != "headful" || cfg.Browser.MaxAttempts != 5 {
		t.Fatalf("browser: %+v", cfg.Browser)
	}
	if cfg.Files.RetentionDays != 90 {
		t.Fatalf("retention: %d", cfg.Files.RetentionDays)
	}
	if !cfg.Email.Enabled || cfg.Email.SubjectPrefix != "[fundwatch]" {
		t.Fatalf("email: %+v", cfg.Email)
	}
}

func TestLoadFile_ValidationFailures(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"no funds", `files: {output_csv: x.csv}`, "no funds"},
		{"missing url", "funds:\n  - symbol: X\n", "url is required"},
		{"malformed url", "funds:\n  - url: not a url\n", "malformed url"},
		{"bad mode", minimal + "browser:\n  mode: invisible\n", "browser.mode"},
		{"negative retention", minimal + "files:\n  retention_days: -1\n", "retention_days"},
		{"email without recipient", minimal + "email:\n  enabled: true\n", "email.to"},
		{"bad provider", minimal + "email:\n  enabled: true\n  to: a@b.c\n  provider: pigeon\n", "email.provider"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadFile(writeConfig(t, tc.yaml))
			if err == nil {
				t.Fatal("want error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLoadFile_EnvOverridesSecrets(t *testing.T) {
	t.Setenv("FUNDWATCH_SMTP_PASSWORD", "from-env")
	t.Setenv("FUNDWATCH_MAILGUN_API_KEY", "key-from-env")

	cfg, err := LoadFile(writeConfig(t, minimal+`
email:
  smtp_password: from-file
`))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Email.SMTPPassword != "from-env" {
		t.Fatalf("smtp password: %q", cfg.Email.SMTPPassword)
	}
	if cfg.Email.MailgunAPIKey != "key-from-env" {
		t.Fatalf("mailgun key: %q", cfg.Email.MailgunAPIKey)
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("want error")
	}
}
