package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID":    "machikado-dev",
		"API_STORAGE_CONTENT_BUCKET": "machikado-content-dev",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Firestore.ProjectID != "machikado-dev" {
		t.Errorf("expected firestore project to default to firebase project, got %s", cfg.Firestore.ProjectID)
	}
	if cfg.PubSub.ProjectID != "machikado-dev" {
		t.Errorf("expected pubsub project to default to firebase project, got %s", cfg.PubSub.ProjectID)
	}
	if cfg.SMTP.Host != defaultSMTPHost {
		t.Errorf("expected default smtp host, got %s", cfg.SMTP.Host)
	}
	if cfg.SMTP.Port != defaultSMTPPort {
		t.Errorf("expected default smtp port, got %d", cfg.SMTP.Port)
	}
	if cfg.Notify.AdminEmail != defaultAdminEmail {
		t.Errorf("expected default admin email, got %s", cfg.Notify.AdminEmail)
	}
	if cfg.Notify.Locale != "ja" {
		t.Errorf("expected default locale ja, got %s", cfg.Notify.Locale)
	}
	if cfg.Maps.Timeout != defaultMapsTimeout {
		t.Errorf("unexpected maps timeout: %s", cfg.Maps.Timeout)
	}
	if cfg.Security.Environment != "local" {
		t.Errorf("expected default security environment local, got %s", cfg.Security.Environment)
	}
	if cfg.Security.OIDC.JWKSURL != defaultOIDCJWKSURL {
		t.Errorf("expected default jwks url %s, got %s", defaultOIDCJWKSURL, cfg.Security.OIDC.JWKSURL)
	}
	if len(cfg.Security.OIDC.Issuers) != 1 {
		t.Errorf("expected default issuers, got %v", cfg.Security.OIDC.Issuers)
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":             "9090",
		"API_SERVER_READ_TIMEOUT":     "20s",
		"API_FIREBASE_PROJECT_ID":     "machikado-prod",
		"API_FIRESTORE_PROJECT_ID":    "machikado-fire",
		"API_PUBSUB_PROJECT_ID":       "machikado-pub",
		"API_PUBSUB_PUBLISHED_TOPIC":  "content-published",
		"API_STORAGE_CONTENT_BUCKET":  "content-prod",
		"API_SMTP_HOST":               "mail.example.com",
		"API_SMTP_PORT":               "2525",
		"API_SMTP_USERNAME":           "relay@example.com",
		"API_SMTP_PASSWORD":           "secret://smtp/password",
		"API_SMTP_FROM":               "noreply@example.com",
		"API_NOTIFY_ADMIN_EMAIL":      "ops@example.com",
		"API_NOTIFY_LOCALE":           "ja-JP",
		"API_MAPS_TIMEOUT":            "5s",
		"API_MAPS_MAX_REDIRECTS":      "4",
		"API_SECURITY_ENVIRONMENT":    "prod",
		"API_SECURITY_OIDC_AUDIENCES": "prod=https://triggers.example.com,dev=https://dev.example.com",
		"API_SECURITY_OIDC_ISSUERS":   "https://accounts.google.com",
	}

	secrets := map[string]string{
		"secret://smtp/password": "relay-password",
	}

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if v, ok := secrets[ref]; ok {
			return v, nil
		}
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("unexpected port: %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 20*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Firestore.ProjectID != "machikado-fire" {
		t.Errorf("unexpected firestore project: %s", cfg.Firestore.ProjectID)
	}
	if cfg.PubSub.ProjectID != "machikado-pub" {
		t.Errorf("unexpected pubsub project: %s", cfg.PubSub.ProjectID)
	}
	if cfg.SMTP.Port != 2525 {
		t.Errorf("unexpected smtp port: %d", cfg.SMTP.Port)
	}
	if cfg.SMTP.Password != "relay-password" {
		t.Errorf("expected resolved smtp password, got %q", cfg.SMTP.Password)
	}
	if cfg.Maps.MaxRedirects != 4 {
		t.Errorf("unexpected maps redirects: %d", cfg.Maps.MaxRedirects)
	}
	if cfg.Security.OIDC.Audience != "https://triggers.example.com" {
		t.Errorf("expected environment-selected audience, got %s", cfg.Security.OIDC.Audience)
	}
}

func TestLoadSecretResolutionFailure(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID":    "machikado-dev",
		"API_STORAGE_CONTENT_BUCKET": "content-dev",
		"API_SMTP_PASSWORD":          "sm://smtp/password",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected secret resolution error")
	}

	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %T", err)
	}
	if secretErr.Ref != "secret://smtp/password" {
		t.Errorf("expected normalised secret ref, got %s", secretErr.Ref)
	}
}

func TestLoadValidatesRequiredFields(t *testing.T) {
	_, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error")
	}

	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}

	fields := validationErr.Fields()
	want := map[string]bool{"Firebase.ProjectID": false, "Storage.ContentBucket": false}
	for _, field := range fields {
		if _, ok := want[field]; ok {
			want[field] = true
		}
	}
	for field, seen := range want {
		if !seen {
			t.Errorf("expected %s to be reported missing, got %v", field, fields)
		}
	}
}

func TestLoadMissingRequiredSecrets(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID":    "machikado-dev",
		"API_STORAGE_CONTENT_BUCKET": "content-dev",
	}

	_, err := Load(context.Background(),
		WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""),
		WithRequiredSecrets("SMTP.Password"),
	)
	if err == nil {
		t.Fatal("expected missing secrets error")
	}

	var missing *MissingSecretsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingSecretsError, got %T", err)
	}
	if len(missing.RedactedNames()) != 1 {
		t.Errorf("expected one redacted name, got %v", missing.RedactedNames())
	}
}

func TestLoadReadsDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	contents := "API_FIREBASE_PROJECT_ID=machikado-file\n" +
		"export API_STORAGE_CONTENT_BUCKET=\"content-file\"\n" +
		"# comment\n" +
		"API_SMTP_FROM='file@example.com'\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(context.Background(), WithEnvFile(path), WithoutSystemEnv())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Firebase.ProjectID != "machikado-file" {
		t.Errorf("unexpected firebase project: %s", cfg.Firebase.ProjectID)
	}
	if cfg.Storage.ContentBucket != "content-file" {
		t.Errorf("unexpected bucket: %s", cfg.Storage.ContentBucket)
	}
	if cfg.SMTP.From != "file@example.com" {
		t.Errorf("unexpected from address: %s", cfg.SMTP.From)
	}
}
