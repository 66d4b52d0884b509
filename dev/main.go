package main

import (
	"context"
	"errors"
	devenv "feedcloud/dev/env"
	"feedcloud/lib/serviceutil"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-rod/rod/lib/launcher"
)

const localConfig = `{
  debug: true,
  control_url: "9222",
  archive: "dev/.state/archive.db",
  fetch: { dump_dir: "dev/.state/resty" },
  output: { dir: "dev/.state/picture" },
}
`

func create(recreate bool) error {
	_, err := os.Stat("go.mod")
	if os.IsNotExist(err) {
		return fmt.Errorf("the dev environment must be created in the repository root (the same directory as the 'go.mod' file)")
	}

	if recreate {
		err = os.RemoveAll("dev/.state")
		if err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	err = os.MkdirAll("dev/.state", 0777)
	if err != nil {
		return err
	}

	_, err = os.Stat("feedcloud.local.json5")
	if errors.Is(err, os.ErrNotExist) {
		slog.Info("writing local config overrides", "path", "feedcloud.local.json5")
		return os.WriteFile("feedcloud.local.json5", []byte(localConfig), 0644)
	}
	return err
}

// runBrowser starts a visible browser with a persistent profile under the dev
// state so a bilibili login survives restarts. it runs until ctx is done.
func runBrowser(ctx context.Context, port int) error {
	profile, err := devenv.ResolvePath(filepath.Join("<dev_state>", "browser"))
	if err != nil {
		return err
	}

	l := launcher.New().
		Context(ctx).
		Headless(false).
		Leakless(false).
		UserDataDir(profile).
		RemoteDebuggingPort(port)
	controlUrl, err := l.Launch()
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	defer l.Kill()

	err = devenv.WriteDevtoolsUrl(controlUrl)
	if err != nil {
		return err
	}
	slog.Info("dev browser running, press Ctrl+C to stop it", "control_url", controlUrl, "profile", profile)

	<-ctx.Done()
	return nil
}

func main() {
	recreate := flag.Bool("recreate", false, "recreate the dev environment from scratch")
	browser := flag.Bool("browser", false, "start a browser for feedcloud to attach to")
	port := flag.Int("port", 9222, "the remote debugging port of the dev browser")
	flag.Parse()

	err := create(*recreate)
	if err != nil {
		serviceutil.Fatal("failed to create dev environment", err)
	}
	slog.Info("dev environment created sucessfully!")

	if *browser {
		ctx, cancel := serviceutil.SignalContext()
		defer cancel()
		err = runBrowser(ctx, *port)
		if err != nil {
			serviceutil.Fatal("failed to run dev browser", err)
		}
	}
}
