// Command torrentbridge sends magnet links and downloaded .torrent files to a
// torrent server on behalf of a logged-in user.
//
// Usage:
//
//	torrentbridge serve [-env FILE]...         run the daemon
//	torrentbridge status                       show the popup view
//	torrentbridge login -user NAME [-password PASS] [-save]
//	torrentbridge logout
//	torrentbridge toggle FEATURE on|off        magnet-links, torrent-files, remove-after-upload
//	torrentbridge magnet [-direct] URI         act as a page click on a magnet link
//	torrentbridge watch [-state]               follow notifications or state changes
//	torrentbridge keygen                       print a new CREDENTIALS_KEY
//
// Client commands talk to the daemon at -addr, TORRENTBRIDGE_ADDR, or
// http://127.0.0.1:8765.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dmitrymomot/torrentbridge/pkg/config"
	"github.com/dmitrymomot/torrentbridge/pkg/logger"
	"github.com/dmitrymomot/torrentbridge/pkg/requestid"
	"github.com/dmitrymomot/torrentbridge/pkg/secrets"
)

var ErrUnknownCommand = errors.New("unknown command")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "torrentbridge:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cmd := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		return runServe(ctx, args, stderr)
	case "keygen":
		key, err := secrets.GenerateKey()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(stdout, key)
		return err
	case "status", "login", "logout", "toggle", "magnet", "watch":
		return runClient(ctx, cmd, args, stdout, stderr)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd)
	}
}

type stringList []string

func (l *stringList) String() string     { return strings.Join(*l, ",") }
func (l *stringList) Set(v string) error { *l = append(*l, v); return nil }

func runServe(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var envFiles stringList
	fs.Var(&envFiles, "env", "load variables from this .env file (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load[Config](envFiles...)
	if err != nil {
		return err
	}

	log := logger.New(
		logger.WithEnvironment(cfg.AppEnv, "torrentbridge"),
		logger.WithLevelName(cfg.LogLevel),
		logger.WithOutput(stderr),
		logger.WithFileOutput(cfg.LogFile, 10, 3),
		logger.WithContextExtractors(requestid.LoggerExtractor()),
	)
	logger.SetAsDefault(log)

	return serve(ctx, cfg, log)
}
