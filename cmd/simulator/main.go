package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/ai-maga/internal/domain"
	"github.com/seu-repo/ai-maga/internal/service/auth"
)

var (
	serverURL   = flag.String("server", "http://localhost:8080", "API base URL")
	endpoint    = flag.String("endpoint", "execute", "Intent endpoint: detect or execute")
	token       = flag.String("token", "", "Bearer token; minted from -secret when empty")
	secret      = flag.String("secret", os.Getenv("JWT_SECRET"), "JWT secret used to mint a token")
	issuer      = flag.String("issuer", "ai-maga", "JWT issuer")
	userID      = flag.String("user", "simulator", "User id for the minted token")
	role        = flag.String("role", "owner", "Role for the minted token (owner, user, guest)")
	concurrency = flag.Int("c", 4, "Concurrent workers")
	requests    = flag.Int("n", 100, "Total requests")
	timeout     = flag.Duration("timeout", 20*time.Second, "Per-request timeout")
	interactive = flag.Bool("interactive", false, "Read utterances from stdin instead of replaying the built-in set")
	verbose     = flag.Bool("verbose", false, "Enable verbose logging")
)

func main() {
	flag.Parse()

	var logger *zap.Logger
	var err error
	if *verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *endpoint != "detect" && *endpoint != "execute" {
		logger.Fatal("Unknown endpoint", zap.String("endpoint", *endpoint))
	}

	bearer := *token
	if bearer == "" && *secret != "" {
		bearer, err = mintToken(*secret, *issuer, *userID, *role, logger)
		if err != nil {
			logger.Fatal("Failed to mint token", zap.Error(err))
		}
	}

	simulator := NewSimulator(&SimulatorConfig{
		ServerURL:   *serverURL,
		Endpoint:    *endpoint,
		Token:       bearer,
		Concurrency: *concurrency,
		Requests:    *requests,
		Timeout:     *timeout,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *interactive {
		fmt.Println("AI Maga simulator - type an utterance, 'quit' to exit")
		simulator.RunInteractive(ctx, os.Stdin, os.Stdout)
		return
	}

	fmt.Printf("Replaying %d utterances against %s with %d workers\n", *requests, simulator.url(), *concurrency)
	start := time.Now()
	simulator.Run(ctx)
	fmt.Printf("done in %s\n%s", time.Since(start).Round(time.Millisecond), simulator.Stats().Summary())
}

func mintToken(secret, issuer, userID, role string, logger *zap.Logger) (string, error) {
	r, ok := domain.ParseUserRole(role)
	if !ok {
		return "", fmt.Errorf("unknown role %q", role)
	}
	svc, err := auth.NewJWTService(auth.JWTConfig{Secret: secret, Issuer: issuer, TokenTTL: time.Hour}, logger)
	if err != nil {
		return "", err
	}
	return svc.GenerateToken(&domain.User{ID: userID, Name: "simulator", Role: r})
}
