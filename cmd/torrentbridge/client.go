package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/dmitrymomot/torrentbridge/modules/popup"
	"github.com/dmitrymomot/torrentbridge/svc/runtime"
)

const defaultDaemonAddr = "http://127.0.0.1:8765"

var (
	ErrUsage   = errors.New("usage")
	ErrRefused = errors.New("refused")
)

// daemon is a client of the local HTTP API.
type daemon struct {
	base   string
	client *http.Client
}

func (d *daemon) call(ctx context.Context, method, path string, body any) (gjson.Result, error) {
	var r io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return gjson.Result{}, err
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, d.base+path, r)
	if err != nil {
		return gjson.Result{}, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return gjson.Result{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, err
	}
	if msg := gjson.GetBytes(data, "error.message"); msg.Exists() {
		return gjson.Result{}, fmt.Errorf("%s (%d)", msg.String(), resp.StatusCode)
	}
	if resp.StatusCode >= 300 {
		return gjson.Result{}, fmt.Errorf("daemon answered %s", resp.Status)
	}
	return gjson.GetBytes(data, "data"), nil
}

func runClient(ctx context.Context, cmd string, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", envOr("TORRENTBRIDGE_ADDR", defaultDaemonAddr), "daemon base URL")

	var (
		user, password *string
		save, direct   *bool
		stateStream    *bool
	)
	switch cmd {
	case "login":
		user = fs.String("user", "", "username")
		password = fs.String("password", "", "password; empty uses the saved one")
		save = fs.Bool("save", false, "remember the credentials")
	case "magnet":
		direct = fs.Bool("direct", false, "send straight to the background, skipping the page interceptor")
	case "watch":
		stateStream = fs.Bool("state", false, "follow store changes instead of notifications")
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	d := &daemon{base: strings.TrimRight(*addr, "/"), client: &http.Client{}}

	switch cmd {
	case "status":
		return status(ctx, d, stdout)
	case "login":
		return login(ctx, d, stdout, *user, *password, *save)
	case "logout":
		v, err := d.call(ctx, http.MethodPost, "/popup/logout", nil)
		if err != nil {
			return err
		}
		return printView(stdout, v)
	case "toggle":
		return toggle(ctx, d, stdout, fs.Args())
	case "magnet":
		return magnet(ctx, d, stdout, fs.Args(), *direct)
	case "watch":
		path := "/notifications/stream"
		if *stateStream {
			path = "/state/stream"
		}
		return watch(ctx, d, stdout, path)
	}
	return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd)
}

func status(ctx context.Context, d *daemon, stdout io.Writer) error {
	v, err := d.call(ctx, http.MethodGet, "/popup", nil)
	if err != nil {
		return err
	}
	return printView(stdout, v)
}

func login(ctx context.Context, d *daemon, stdout io.Writer, user, password string, save bool) error {
	if user == "" {
		return fmt.Errorf("%w: login -user NAME [-password PASS] [-save]", ErrUsage)
	}
	v, err := d.call(ctx, http.MethodPost, "/popup/login", map[string]any{
		"username": user, "password": password, "save": save,
	})
	if err != nil {
		return err
	}
	return printView(stdout, v)
}

func toggle(ctx context.Context, d *daemon, stdout io.Writer, args []string) error {
	if len(args) != 2 || (args[1] != "on" && args[1] != "off") {
		return fmt.Errorf("%w: toggle %s|%s|%s on|off", ErrUsage,
			popup.FeatureMagnetLinks, popup.FeatureTorrentFiles, popup.FeatureRemoveAfterUpload)
	}
	v, err := d.call(ctx, http.MethodPut, "/popup/features/"+args[0], map[string]bool{"enabled": args[1] == "on"})
	if err != nil {
		return err
	}
	return printView(stdout, v)
}

func magnet(ctx context.Context, d *daemon, stdout io.Writer, args []string, direct bool) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: magnet [-direct] URI", ErrUsage)
	}

	if direct {
		reply, err := runtime.NewHTTPSender(d.base, d.client).
			Send(ctx, runtime.Message{Type: runtime.MagnetLinkClicked, Href: args[0]}).
			AwaitContext(ctx)
		if err != nil {
			return err
		}
		return report(stdout, reply.Success, reply.Message)
	}

	v, err := d.call(ctx, http.MethodPost, "/content/click", map[string]string{"href": args[0]})
	if err != nil {
		return err
	}
	if !v.Get("intercepted").Bool() {
		_, err := fmt.Fprintln(stdout, "Magnet link handling is off; the link was not intercepted.")
		return err
	}
	return report(stdout, v.Get("notice.success").Bool(), v.Get("notice.message").String())
}

func report(stdout io.Writer, success bool, message string) error {
	if _, err := fmt.Fprintln(stdout, message); err != nil {
		return err
	}
	if !success {
		return ErrRefused
	}
	return nil
}

func printView(stdout io.Writer, v gjson.Result) error {
	var b strings.Builder
	if v.Get("loggedIn").Bool() {
		fmt.Fprintf(&b, "Logged in as %s\n", v.Get("username").String())
		fmt.Fprintf(&b, "  %-22s %s\n", popup.FeatureMagnetLinks, onOff(v.Get("magnetLinks").Bool()))
		fmt.Fprintf(&b, "  %-22s %s\n", popup.FeatureTorrentFiles, onOff(v.Get("torrentFiles").Bool()))
		remove := onOff(v.Get("removeAfterUpload").Bool())
		if v.Get("removeAfterUploadDisabled").Bool() {
			remove += " (needs torrent-files)"
		}
		fmt.Fprintf(&b, "  %-22s %s\n", popup.FeatureRemoveAfterUpload, remove)
	} else {
		b.WriteString("Not logged in\n")
		if saved := v.Get("savedUsername").String(); saved != "" {
			fmt.Fprintf(&b, "  saved user: %s (password saved: %t)\n", saved, v.Get("passwordSaved").Bool())
		}
	}
	if msg := v.Get("message").String(); msg != "" {
		b.WriteString(msg + "\n")
	}
	if _, err := io.WriteString(stdout, b.String()); err != nil {
		return err
	}
	if v.Get("isError").Bool() {
		return ErrRefused
	}
	return nil
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

// watch prints each server-sent event as "event: data" until ctx is done.
func watch(ctx context.Context, d *daemon, stdout io.Writer, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.base+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon answered %s", resp.Status)
	}

	var event string
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data := gjson.Parse(strings.TrimPrefix(line, "data: "))
			if err := printEvent(stdout, event, data); err != nil {
				return err
			}
		}
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func printEvent(stdout io.Writer, event string, data gjson.Result) error {
	ts := time.Now().Format(time.TimeOnly)
	var err error
	switch event {
	case "notification":
		_, err = fmt.Fprintf(stdout, "%s [%s] %s: %s\n", ts,
			data.Get("type").String(), data.Get("title").String(), data.Get("message").String())
	case "state":
		keys := make([]string, 0)
		for _, k := range data.Get("keys").Array() {
			keys = append(keys, k.String())
		}
		_, err = fmt.Fprintf(stdout, "%s state changed: %s\n", ts, strings.Join(keys, ", "))
	default:
		_, err = fmt.Fprintf(stdout, "%s %s %s\n", ts, event, data.Raw)
	}
	return err
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
