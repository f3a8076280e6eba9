package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/go-pkgz/lgr"
	flags "github.com/umputun/go-flags"

	"github.com/sharebin/sharebin/app/limiter"
	"github.com/sharebin/sharebin/app/server"
	"github.com/sharebin/sharebin/app/sharing"
	"github.com/sharebin/sharebin/app/shortener"
	"github.com/sharebin/sharebin/app/store"
)

var opts struct {
	Listen   string `long:"listen" env:"LISTEN" default:":8080" description:"listen address"`
	Domain   string `long:"domain" env:"DOMAIN" default:"localhost:8080" description:"site domain"`
	Protocol string `long:"protocol" env:"PROTOCOL" default:"http" choice:"http" choice:"https" description:"site protocol"`
	DataDir  string `long:"data" env:"DATA_DIR" default:"./data" description:"root directory for stored data"`

	AuthHash    string        `long:"auth-hash" env:"AUTH_HASH" required:"true" description:"bcrypt hash of the admin password"`
	UploadToken string        `long:"upload-token" env:"UPLOAD_TOKEN" description:"static token for the sharex upload endpoint"`
	SessionTTL  time.Duration `long:"session-ttl" env:"SESSION_TTL" default:"24h" description:"admin session lifetime"`

	MaxUploadSize int64 `long:"max-upload" env:"MAX_UPLOAD" default:"104857600" description:"max upload size in bytes"`

	Limiter struct {
		Window      time.Duration `long:"window" env:"WINDOW" default:"5m" description:"login attempt window"`
		MaxAttempts int           `long:"attempts" env:"ATTEMPTS" default:"5" description:"max login attempts per window"`
		RecordTTL   time.Duration `long:"record-ttl" env:"RECORD_TTL" default:"1h" description:"stale rate record lifetime"`
	} `group:"limiter" namespace:"limiter" env-namespace:"LIMITER"`

	Dbg bool `long:"dbg" env:"DEBUG" description:"debug mode"`
}

var revision = "unknown"

func main() {
	fmt.Printf("sharebin %s\n", revision)
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(2)
	}

	setupLog(opts.Dbg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		log.Fatalf("[ERROR] %v", err)
	}
}

func run(ctx context.Context) error {
	shareEngine, err := store.NewShareFS(opts.DataDir)
	if err != nil {
		return fmt.Errorf("share store: %w", err)
	}
	linkEngine, err := store.NewLinkFS(opts.DataDir)
	if err != nil {
		return fmt.Errorf("link store: %w", err)
	}
	rateEngine, err := store.NewRateFS(opts.DataDir)
	if err != nil {
		return fmt.Errorf("rate store: %w", err)
	}

	srv := server.New(
		sharing.New(shareEngine),
		shortener.New(linkEngine),
		limiter.New(rateEngine, limiter.Params{
			Window:      opts.Limiter.Window,
			MaxAttempts: opts.Limiter.MaxAttempts,
			RecordTTL:   opts.Limiter.RecordTTL,
		}),
		revision,
		server.Config{
			Listen:        opts.Listen,
			Domain:        opts.Domain,
			Protocol:      opts.Protocol,
			AuthHash:      opts.AuthHash,
			UploadToken:   opts.UploadToken,
			SessionTTL:    opts.SessionTTL,
			MaxUploadSize: opts.MaxUploadSize,
		},
	)
	return srv.Run(ctx)
}

func setupLog(dbg bool) {
	if dbg {
		log.Setup(log.Debug, log.CallerFile, log.CallerFunc, log.Msec, log.LevelBraces)
		return
	}
	log.Setup(log.Msec, log.LevelBraces)
}
