package migrate

import (
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"
)

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	if err := Validate(); err != nil {
		t.Fatalf("embedded migrations invalid: %v", err)
	}
}

func TestPaymentsMigrationContainsConstraints(t *testing.T) {
	data, err := fs.ReadFile(migrationsFS, Dir+"/20261001090000_create_payments.sql")
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)
	for _, check := range []string{
		"CREATE TABLE IF NOT EXISTS payments",
		"CONSTRAINT payments_reference_key UNIQUE (reference)",
		"CHECK (amount > 0)",
		"CHECK (platform_fee + net_amount = amount)",
		"DROP TABLE IF EXISTS payments",
	} {
		if !strings.Contains(content, check) {
			t.Fatalf("migration missing %q", check)
		}
	}
}

func TestValidateFSRejectsBadFiles(t *testing.T) {
	cases := map[string]fstest.MapFS{
		"bad name": {
			"m/create_payments.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		},
		"missing down": {
			"m/20260101000000_a.sql": {Data: []byte("-- +goose Up\n")},
		},
		"duplicate version": {
			"m/20260101000000_a.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
			"m/20260101000000_b.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		},
	}
	for name, fsys := range cases {
		t.Run(name, func(t *testing.T) {
			if err := ValidateFS(fsys, "m"); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
