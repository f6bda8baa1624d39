package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/target/congregate-api/config"
	redisadapter "github.com/target/congregate-api/internal/adapters/redis"
	"github.com/target/congregate-api/internal/bootstrap"
	"github.com/target/congregate-api/internal/data"
	domainauth "github.com/target/congregate-api/internal/domain/auth"
	"github.com/target/congregate-api/internal/service"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
	Stdin  io.Reader
	Stdout io.Writer
}

const (
	defaultMigrationTimeout = 5 * time.Minute
	// passwordEnv lets scripts pass a password without a terminal.
	passwordEnv = "CONGREGATE_PASSWORD"
)

func main() {
	logger := bootstrap.InitLogger("info")

	if len(os.Args) < 2 {
		if err := printUsage(os.Stdout); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(os.Stderr); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cmdCtx := &commandContext{
		Ctx:    ctx,
		Logger: logger,
		Config: cfg,
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
	}
	runErr := cmd.run(cmdCtx, os.Args[2:])
	stop()
	if runErr != nil {
		if errors.Is(runErr, flag.ErrHelp) {
			os.Exit(2) //nolint:forbidigo // -h prints flag usage and exits like the flag package does
		}
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"migrate": {
			name:        "migrate",
			description: "Apply database migrations for the Postgres user directory",
			run:         runMigrations,
		},
		"create-user": {
			name:        "create-user",
			description: "Create an account in the Postgres user directory",
			run:         runCreateUser,
		},
		"set-user-active": {
			name:        "set-user-active",
			description: "Activate or deactivate an account",
			run:         runSetUserActive,
		},
		"clear-rate-limit": {
			name:        "clear-rate-limit",
			description: "Clear recorded attempts for an identifier in the shared rate-limit store",
			run:         runClearRateLimit,
		},
		"revoke-session": {
			name:        "revoke-session",
			description: "Invalidate a session in the Redis session store",
			run:         runRevokeSession,
		},
		"hash-password": {
			name:        "hash-password",
			description: "Print a bcrypt hash of a password read from stdin",
			run:         runHashPassword,
		},
	}
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: congregate-admin <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(w, "Available commands:\n"); err != nil {
		return err
	}
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := writef(w, "  %-20s %s\n", name, cmds[name].description); err != nil {
			return err
		}
	}
	return nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

func runMigrations(ctx *commandContext, args []string) error {
	fs := newFlagSet("migrate")
	timeout := fs.Duration("timeout", defaultMigrationTimeout, "Maximum time to spend applying migrations")
	if err := fs.Parse(args); err != nil {
		return err
	}

	infra, err := connectInfra(ctx, infraNeeds{db: true})
	if err != nil {
		return err
	}
	defer infra.close(ctx)

	mctx, cancel := context.WithTimeout(ctx.Ctx, *timeout)
	defer cancel()
	return bootstrap.RunMigrations(mctx, infra.db, ctx.Logger)
}

type createUserOptions struct {
	Email    string
	Username string
	Role     string
	MemberID string
}

func parseCreateUserFlags(args []string) (createUserOptions, error) {
	fs := newFlagSet("create-user")
	var opts createUserOptions
	fs.StringVar(&opts.Email, "email", "", "Login email (required)")
	fs.StringVar(&opts.Username, "username", "", "Display username (defaults to the email local part)")
	fs.StringVar(&opts.Role, "role", string(domainauth.RoleMember), "Role: admin, pastor or member")
	fs.StringVar(&opts.MemberID, "member-id", "", "Membership record the account is linked to")
	if err := fs.Parse(args); err != nil {
		return createUserOptions{}, err
	}

	opts.Email = strings.ToLower(strings.TrimSpace(opts.Email))
	local, _, ok := strings.Cut(opts.Email, "@")
	if !ok || local == "" {
		return createUserOptions{}, errors.New("--email must be a valid address")
	}
	if _, ok := domainauth.ParseRole(opts.Role); !ok {
		return createUserOptions{}, fmt.Errorf("--role %q is not one of admin, pastor, member", opts.Role)
	}
	if strings.TrimSpace(opts.Username) == "" {
		opts.Username = local
	}
	return opts, nil
}

func runCreateUser(ctx *commandContext, args []string) error {
	opts, err := parseCreateUserFlags(args)
	if err != nil {
		return err
	}
	hash, err := readPasswordHash(ctx)
	if err != nil {
		return err
	}

	infra, err := connectInfra(ctx, infraNeeds{db: true})
	if err != nil {
		return err
	}
	defer infra.close(ctx)

	role, _ := domainauth.ParseRole(opts.Role)
	user, err := data.NewUserRepo(infra.db).Create(ctx.Ctx, data.CreateUserRequest{
		Username:     opts.Username,
		Email:        opts.Email,
		PasswordHash: hash,
		Role:         role,
		MemberID:     opts.MemberID,
	})
	if err != nil {
		return err
	}
	return writef(ctx.Stdout, "created user %s (%s, %s)\n", user.ID, user.Email, user.Role)
}

func runSetUserActive(ctx *commandContext, args []string) error {
	fs := newFlagSet("set-user-active")
	id := fs.String("id", "", "Account ID (required)")
	active := fs.Bool("active", true, "Whether the account may authenticate")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*id) == "" {
		return errors.New("--id is required")
	}

	infra, err := connectInfra(ctx, infraNeeds{db: true})
	if err != nil {
		return err
	}
	defer infra.close(ctx)

	if err := data.NewUserRepo(infra.db).SetActive(ctx.Ctx, *id, *active); err != nil {
		return err
	}
	// Existing sessions see the change on their next request.
	return writef(ctx.Stdout, "user %s active=%t\n", *id, *active)
}

type clearRateLimitOptions struct {
	Scope      string
	Identifier string
}

func parseClearRateLimitFlags(args []string) (clearRateLimitOptions, error) {
	fs := newFlagSet("clear-rate-limit")
	var opts clearRateLimitOptions
	fs.StringVar(&opts.Scope, "scope", "login", "Limiter scope: login or api")
	fs.StringVar(&opts.Identifier, "identifier", "", "Identifier to clear, e.g. a client IP (required)")
	if err := fs.Parse(args); err != nil {
		return clearRateLimitOptions{}, err
	}
	switch opts.Scope {
	case "login", "api":
	default:
		return clearRateLimitOptions{}, fmt.Errorf("--scope %q is not one of login, api", opts.Scope)
	}
	if strings.TrimSpace(opts.Identifier) == "" {
		return clearRateLimitOptions{}, errors.New("--identifier is required")
	}
	return opts, nil
}

func runClearRateLimit(ctx *commandContext, args []string) error {
	opts, err := parseClearRateLimitFlags(args)
	if err != nil {
		return err
	}
	if ctx.Config.RateLimit.Backend != config.RateLimitBackendShared {
		return errors.New("in-memory rate limits live inside each server process; use DELETE /api/admin/rate-limits/{identifier}")
	}

	infra, err := connectInfra(ctx, infraNeeds{redis: true})
	if err != nil {
		return err
	}
	defer infra.close(ctx)

	limiter, err := service.NewRateLimiter(service.RateLimiterOptions{
		Scope:       opts.Scope,
		Store:       redisadapter.NewRateLimitStore(infra.redis),
		MaxAttempts: 1,
		Window:      time.Minute,
		Logger:      ctx.Logger,
	})
	if err != nil {
		return err
	}
	if err := limiter.Clear(ctx.Ctx, opts.Identifier); err != nil {
		return fmt.Errorf("clear rate limit: %w", err)
	}
	return writef(ctx.Stdout, "cleared %s attempts for %s\n", opts.Scope, opts.Identifier)
}

func runRevokeSession(ctx *commandContext, args []string) error {
	fs := newFlagSet("revoke-session")
	token := fs.String("token", "", "Session token to invalidate (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*token) == "" {
		return errors.New("--token is required")
	}
	if ctx.Config.Session.Backend != config.SessionBackendRedis {
		return errors.New("in-memory sessions live inside each server process; restart it or log the session out")
	}

	infra, err := connectInfra(ctx, infraNeeds{redis: true})
	if err != nil {
		return err
	}
	defer infra.close(ctx)

	store := redisadapter.NewSessionStoreWithPrefix(infra.redis, "session:")
	if err := store.Invalidate(ctx.Ctx, *token); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return writef(ctx.Stdout, "session revoked\n")
}

func runHashPassword(ctx *commandContext, args []string) error {
	fs := newFlagSet("hash-password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	hash, err := readPasswordHash(ctx)
	if err != nil {
		return err
	}
	return writef(ctx.Stdout, "%s\n", hash)
}

// readPasswordHash reads a password from CONGREGATE_PASSWORD or the first line
// of stdin and returns its bcrypt hash.
func readPasswordHash(ctx *commandContext) (string, error) {
	password := os.Getenv(passwordEnv)
	if password == "" {
		line, err := bufio.NewReader(ctx.Stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		return "", fmt.Errorf("password is required on stdin or in %s", passwordEnv)
	}
	if len(password) > 72 {
		return "", errors.New("password must be at most 72 bytes")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
