package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/garyjia/ope-approval/internal/config"
	"github.com/garyjia/ope-approval/internal/infrastructure/auth"
)

// Prints a signed bearer token for an employee code, for local testing.
func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML configuration file")
	code := flag.String("employee", "", "employee code to put in the token subject")
	ttl := flag.Duration("ttl", 8*time.Hour, "token lifetime")
	flag.Parse()

	if *code == "" {
		fmt.Fprintln(os.Stderr, "usage: issue-token -employee E001 [-ttl 8h]")
		os.Exit(2)
	}

	_ = gotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if cfg.Auth.JWTSecret == "" {
		fmt.Fprintln(os.Stderr, "auth.jwt_secret is not configured")
		os.Exit(1)
	}

	token, err := auth.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer, zap.NewNop()).Issue(*code, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to issue token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
