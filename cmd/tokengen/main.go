// Package main provides a CLI tool for generating test tokens for the
// Custodia API. These tokens use the dev signing key and will NOT work
// against a production deployment.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"custodia/internal/platform/middleware"
)

const (
	// Dev signing key - matches config.go when CUSTODIA_JWT_SIGNING_KEY is not set
	devSigningKey = "dev-secret-key-change-in-production"

	defaultTokenTTL = 8 * time.Hour
)

type tokenOutput struct {
	Token     string            `json:"token"`
	ExpiresIn string            `json:"expires_in"`
	Claims    map[string]any    `json:"claims,omitempty"`
	Usage     map[string]string `json:"usage"`
}

func main() {
	userID := flag.String("user-id", "", "User ID (UUID). Generated if empty.")
	role := flag.String("role", "investigator", "Role claim")
	jurisdiction := flag.String("jurisdiction", "EU", "Jurisdiction claim")
	department := flag.String("department", "", "Department claim (optional)")
	clearance := flag.Int("clearance", 3, "Clearance level claim (0-5)")
	ttl := flag.Duration("ttl", defaultTokenTTL, "Token time-to-live")
	signingKey := flag.String("signing-key", devSigningKey, "HS256 signing key")
	jsonOutput := flag.Bool("json", false, "Output as JSON")
	flag.Usage = printUsage
	flag.Parse()

	uid := *userID
	if uid == "" {
		uid = uuid.New().String()
	} else if _, err := uuid.Parse(uid); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid -user-id: %v\n", err)
		os.Exit(1)
	}

	claims := middleware.Claims{
		UserID:         uid,
		Role:           *role,
		Jurisdiction:   *jurisdiction,
		Department:     *department,
		ClearanceLevel: *clearance,
	}

	validator := middleware.NewHMACValidator(*signingKey)
	token, err := validator.IssueToken(claims, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating token: %v\n", err)
		os.Exit(1)
	}

	if *jsonOutput {
		printJSON(tokenOutput{
			Token:     token,
			ExpiresIn: ttl.String(),
			Claims: map[string]any{
				"user_id":         uid,
				"role":            *role,
				"jurisdiction":    *jurisdiction,
				"department":      *department,
				"clearance_level": *clearance,
			},
			Usage: map[string]string{
				"header": "Authorization: Bearer <token>",
			},
		})
		return
	}

	fmt.Println("API Token (JWT)")
	fmt.Println("===============")
	fmt.Printf("Expires In:   %s\n", *ttl)
	fmt.Printf("User ID:      %s\n", uid)
	fmt.Printf("Role:         %s\n", *role)
	fmt.Printf("Jurisdiction: %s\n", *jurisdiction)
	if *department != "" {
		fmt.Printf("Department:   %s\n", *department)
	}
	fmt.Printf("Clearance:    %d\n", *clearance)
	fmt.Println()
	fmt.Println("Token:")
	fmt.Println(token)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  curl -H \"Authorization: Bearer <token>\" http://localhost:8080/cases")
}

func printUsage() {
	fmt.Println(`tokengen - Generate test tokens for the Custodia API

WARNING: Tokens signed with the dev key will NOT work in production.
         Only use for local development and testing.

Usage:
  tokengen [flags]

Examples:
  # Generate a token with defaults (investigator, EU)
  tokengen

  # Generate a token for a US compliance officer
  tokengen -role compliance_officer -jurisdiction US -clearance 5

  # Output as JSON
  tokengen -json`)
	fmt.Println()
	flag.PrintDefaults()
}

func printJSON(v any) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(v)
}
