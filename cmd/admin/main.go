// Command admin performs operator tasks against the auth database:
// provisioning admin accounts, purging stale unverified accounts and
// applying migrations.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"storefront-auth/internal/data/migrations"
	"storefront-auth/internal/data/repository"
	"storefront-auth/internal/dto/request"
	"storefront-auth/internal/usecase"
	"storefront-auth/internal/wire"
	"storefront-auth/pkg/database"
	"storefront-auth/pkg/utils"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/term"
)

const usage = `usage: admin <command> [flags]

commands:
  create-admin      -email <email> -username <name> [-name <display name>]
  purge-unverified  [-older-than 168h]
  migrate
`

type cli struct {
	in           *bufio.Reader
	out          io.Writer
	stdinFd      int
	readPassword func(fd int) ([]byte, error)
}

func main() {
	c := &cli{
		in:           bufio.NewReader(os.Stdin),
		out:          os.Stdout,
		stdinFd:      int(os.Stdin.Fd()),
		readPassword: term.ReadPassword,
	}
	if err := c.run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (c *cli) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(c.out, usage)
		return errors.New("missing command")
	}

	config, err := utils.LoadConfig()
	if err != nil {
		return err
	}

	logger, err := utils.InitLogger(config.App.LogPath, config.App.Name+"-admin", config.App.Debug)
	if err != nil {
		logger = zap.NewNop()
	}
	defer logger.Sync()

	switch args[0] {
	case "migrate":
		return c.migrate(ctx, config)
	case "create-admin":
		return c.withUsers(ctx, config, logger, func(users usecase.UserService) error {
			return c.createAdmin(ctx, users, args[1:])
		})
	case "purge-unverified":
		return c.withUsers(ctx, config, logger, func(users usecase.UserService) error {
			return c.purgeUnverified(ctx, users, args[1:])
		})
	default:
		fmt.Fprint(c.out, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func (c *cli) migrate(ctx context.Context, config *utils.Config) error {
	if config.Database.Driver != "postgres" {
		return fmt.Errorf("migrate requires DB_DRIVER=postgres")
	}
	if err := database.RunMigrations(ctx, config.Database.DSN(), migrations.FS); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "migrations applied")
	return nil
}

func (c *cli) withUsers(ctx context.Context, config *utils.Config, logger *zap.Logger, fn func(usecase.UserService) error) error {
	repo, closeDB, err := wire.OpenRepository(ctx, config, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	return fn(newUserService(repo, logger))
}

func newUserService(repo *repository.Repository, logger *zap.Logger) usecase.UserService {
	infra := usecase.Infra{Clock: clockwork.NewRealClock()}.WithDefaults(logger)
	return usecase.NewUserService(repo.User, infra.Cache, infra.Clock, logger)
}

func (c *cli) createAdmin(ctx context.Context, users usecase.UserService, args []string) error {
	fs := flag.NewFlagSet("create-admin", flag.ContinueOnError)
	fs.SetOutput(c.out)
	email := fs.String("email", "", "admin email address")
	username := fs.String("username", "", "admin username")
	name := fs.String("name", "", "display name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *username == "" {
		return errors.New("-email and -username are required")
	}

	password, err := c.password("Password: ")
	if err != nil {
		return err
	}
	confirm, err := c.password("Repeat password: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return errors.New("passwords do not match")
	}

	user, err := users.CreateAdmin(ctx, &request.RegisterRequest{
		Username: *username,
		Name:     *name,
		Email:    *email,
		Password: password,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "admin %s created (%s)\n", user.Email, user.ID)
	return nil
}

func (c *cli) purgeUnverified(ctx context.Context, users usecase.UserService, args []string) error {
	fs := flag.NewFlagSet("purge-unverified", flag.ContinueOnError)
	fs.SetOutput(c.out)
	olderThan := fs.Duration("older-than", 7*24*time.Hour, "minimum account age")
	if err := fs.Parse(args); err != nil {
		return err
	}

	n, err := users.PurgeUnverified(ctx, *olderThan)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "purged %d unverified accounts older than %s\n", n, *olderThan)
	return nil
}

// password reads without echo from a terminal, or one line from piped stdin.
func (c *cli) password(prompt string) (string, error) {
	fmt.Fprint(c.out, prompt)

	if term.IsTerminal(c.stdinFd) {
		pw, err := c.readPassword(c.stdinFd)
		fmt.Fprintln(c.out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(pw), nil
	}

	line, err := c.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
