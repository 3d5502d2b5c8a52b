// cmd/preflight/main.go
package main

import (
	"fmt"
	"os"
	"strings"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	cronSecret := strings.TrimSpace(os.Getenv("CRON_SECRET"))
	publicBase := strings.TrimSpace(os.Getenv("PUBLIC_BASE_URL"))
	db := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	checker := strings.TrimSpace(os.Getenv("CHECKER_BASE_URL"))
	smtpHost := strings.TrimSpace(os.Getenv("SMTP_HOST"))
	smtpUser := strings.TrimSpace(os.Getenv("SMTP_USERNAME"))
	allowed := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS"))

	if cronSecret == "" {
		fail("CRON_SECRET is empty (trigger endpoints would accept unauthenticated calls).")
	}
	ok("CRON_SECRET present")

	if publicBase == "" {
		fail("PUBLIC_BASE_URL is empty (registered cron jobs would call back to nowhere).")
	}
	if !strings.HasPrefix(publicBase, "http://") && !strings.HasPrefix(publicBase, "https://") {
		fail("PUBLIC_BASE_URL must start with http:// or https://")
	}
	ok("PUBLIC_BASE_URL=" + publicBase)

	if db == "" {
		warn("DATABASE_URL empty — API will use in-memory stores; all data is lost on restart.")
	} else {
		ok("DATABASE_URL present")
	}

	if checker == "" {
		warn("CHECKER_BASE_URL empty — default multi-region backend will be used.")
	} else {
		ok("CHECKER_BASE_URL=" + checker)
	}

	if smtpHost == "" {
		warn("SMTP_HOST empty — email notifications are disabled, Slack only.")
	} else {
		if smtpUser == "" {
			warn("SMTP_HOST set but SMTP_USERNAME empty; most relays reject unauthenticated mail.")
		}
		ok("SMTP_HOST=" + smtpHost)
	}

	if allowed == "" {
		warn("ALLOWED_ORIGINS empty — CORS falls back to allow-all.")
	} else {
		ok("ALLOWED_ORIGINS=" + allowed)
	}

	ok("preflight passed")
}
