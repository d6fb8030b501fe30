// Package testutil provides testing helpers for the handshake services.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wikimesh/ssohub/config"
	"github.com/wikimesh/ssohub/internal/migrate"
)

// TestingTB is the subset of *testing.T and *testing.B the helpers use.
type TestingTB interface {
	Helper()
	Skip(args ...interface{})
	Skipf(format string, args ...interface{})
	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})
	Logf(format string, args ...interface{})
	Cleanup(func())
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func requireInfra() bool {
	return os.Getenv("TEST_REQUIRE_INFRA") == "true" || os.Getenv("TEST_REQUIRE_INFRA") == "1"
}

// SetupTestDB opens the test database, runs migrations, and registers cleanup
// that truncates the directory tables. Skips when the database is absent
// unless TEST_REQUIRE_INFRA is set.
func SetupTestDB(t TestingTB) *sql.DB {
	t.Helper()

	host := getEnvOrDefault("TEST_DB_HOST", "localhost")
	port := getEnvOrDefault("TEST_DB_PORT", "5432")
	dsn := fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable",
		getEnvOrDefault("TEST_DB_USER", "ssohub"),
		getEnvOrDefault("TEST_DB_PASSWORD", "ssohub"),
		net.JoinHostPort(host, port),
		getEnvOrDefault("TEST_DB_NAME", "ssohub_test"),
	)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		skipOrFatal(t, "Test database not available:", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if pingErr := db.PingContext(ctx); pingErr != nil {
		_ = db.Close()
		skipOrFatal(t, "Test database not available:", pingErr)
		return nil
	}

	if migErr := migrate.Run(context.Background(), db); migErr != nil {
		_ = db.Close()
		t.Fatalf("run migrations: %v", migErr)
		return nil
	}

	t.Cleanup(func() {
		if _, trErr := db.Exec("TRUNCATE wiki_attachments, global_users CASCADE"); trErr != nil {
			t.Logf("truncate test tables failed: %v", trErr)
		}
		if cerr := db.Close(); cerr != nil {
			t.Logf("test db close failed: %v", cerr)
		}
	})
	return db
}

// SetupTestRedis connects to the test redis instance and registers cleanup
// that flushes the chosen DB. Skips when redis is absent unless
// TEST_REQUIRE_INFRA is set.
func SetupTestRedis(t TestingTB) redis.UniversalClient {
	t.Helper()

	addr := getEnvOrDefault("TEST_REDIS_ADDR", "localhost:6379")
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 9})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		skipOrFatal(t, "Test redis not available:", err)
		return nil
	}

	t.Cleanup(func() {
		if err := client.FlushDB(context.Background()).Err(); err != nil {
			t.Logf("flush test redis failed: %v", err)
		}
		if err := client.Close(); err != nil {
			t.Logf("test redis close failed: %v", err)
		}
	})
	return client
}

func skipOrFatal(t TestingTB, msg string, err error) {
	t.Helper()
	if requireInfra() {
		t.Fatal(msg, err)
	}
	t.Skip(msg, err)
}

// TestSSOConfig returns a standard domain topology for handshake tests.
func TestSSOConfig() config.SSOConfig {
	cfg := config.SSOConfig{
		SUL2Domain:      "login.sul2.example",
		SUL3Domain:      "login.sul3.example",
		AutologinDomain: "auth.example",
		LoginWikiID:     "loginwiki",
		Wikis: map[string]string{
			"alphawiki": "https://alpha.example",
			"betawiki":  "https://beta.example",
			"loginwiki": "https://login.example",
		},
		TokenTTL:    time.Minute,
		SessionTTL:  24 * time.Hour,
		RememberTTL: 720 * time.Hour,
	}
	cfg.Sanitize()
	return cfg
}
