package devenv

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var modName = regexp.MustCompile(`(?m)^module *([\w\-_]+)$`)

const devtoolsFile = "devtools.txt"

func isWorkspaceRoot(currentdir string) bool {
	mod, err := os.ReadFile(filepath.Join(currentdir, "go.mod"))
	if err != nil {
		return false
	}
	matches := modName.FindSubmatch(mod)
	return len(matches) >= 2 && string(matches[1]) == "feedcloud"
}

func GetWorkspaceRoot() (string, error) {
	currentdir, err := filepath.Abs(".")
	if err != nil {
		return "", err
	}
	root, err := filepath.Abs("/")
	if err != nil {
		return "", err
	}

	for currentdir != root {
		if isWorkspaceRoot(currentdir) {
			return currentdir, nil
		}
		currentdir = filepath.Dir(currentdir)
	}
	return "", os.ErrNotExist
}

// ResolvePath replaces a leading "<dev_state>" in path with the dev state
// directory, creating it if needed. other paths are returned as is.
func ResolvePath(path string) (string, error) {
	if !strings.HasPrefix(path, "<dev_state>") {
		return path, nil
	}

	root, err := GetWorkspaceRoot()
	if err != nil {
		return "", err
	}
	err = os.MkdirAll(filepath.Join(root, "dev", ".state"), 0777)
	if err != nil {
		return "", err
	}

	subpath := strings.TrimPrefix(strings.TrimPrefix(path, "<dev_state>"), string(os.PathSeparator))
	return filepath.Join(root, "dev", ".state", subpath), nil
}

// WriteDevtoolsUrl records the control url of the dev browser.
func WriteDevtoolsUrl(url string) error {
	path, err := ResolvePath(filepath.Join("<dev_state>", devtoolsFile))
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(url), 0644)
}

// DevtoolsUrl returns the control url of the browser started by the dev
// environment, the FEEDCLOUD_DEVTOOLS environment variable takes precedence.
func DevtoolsUrl() (string, error) {
	if url := os.Getenv("FEEDCLOUD_DEVTOOLS"); url != "" {
		return url, nil
	}
	path, err := ResolvePath(filepath.Join("<dev_state>", devtoolsFile))
	if err != nil {
		return "", err
	}
	contents, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("no dev browser running, start one with `go run ./dev -browser`: %w", err)
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(contents)), nil
}
