package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Spok95/bom-tracker/internal/config"
	"github.com/Spok95/bom-tracker/internal/infra/auth"
)

func main() {
	configPath := flag.String("config", "config/example.yaml", "path to config file")
	operator := flag.String("operator", "", "operator name stored in the token")
	ttl := flag.Duration("ttl", 0, "token lifetime (default auth.token_ttl)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if *ttl <= 0 {
		*ttl = cfg.Auth.TokenTTL
	}

	tok, err := auth.GenerateToken(cfg.Auth.JWTSecret, *operator, *ttl, time.Now())
	if err != nil {
		fmt.Fprintln(os.Stderr, "token:", err)
		os.Exit(1)
	}
	fmt.Println(tok)
}
