package pipeline

import (
	"context"
	"feedcloud/internal/components/chrono"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileRenderer writes the corpus as plain text for an external word cloud
// renderer to pick up.
type FileRenderer struct {
	Dir string
	// Name overrides the generated file name, the extension is forced to Ext.
	Name string
	Ext  string
	Time chrono.API
}

func (r FileRenderer) path() string {
	ext := r.Ext
	if ext == "" {
		ext = ".txt"
	}
	name := r.Name
	if name == "" {
		name = fmt.Sprintf("user_wordcloud_%s", r.Time.Now().Format("20060102_150405"))
	}
	if !strings.HasSuffix(name, ext) {
		name += ext
	}
	return filepath.Join(r.Dir, name)
}

func (r FileRenderer) Render(ctx context.Context, corpus string) (string, error) {
	err := os.MkdirAll(r.Dir, 0777)
	if err != nil {
		return "", err
	}
	path := r.path()
	err = os.WriteFile(path, []byte(corpus), 0644)
	if err != nil {
		return "", err
	}
	return path, nil
}
