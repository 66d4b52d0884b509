package archive

import (
	"context"
	"feedcloud/internal/reduce"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func openTestArchive(t *testing.T) Archive {
	a, err := Open(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		a.Close()
	})
	return a
}

func TestSaveAndList(t *testing.T) {
	ctx := context.Background()
	a := openTestArchive(t)

	start := time.Date(2025, time.May, 4, 12, 0, 0, 0, time.UTC)
	first := Run{
		StartedAt: start,
		Status:    "no-captures",
		Scrolls:   30,
	}
	second := Run{
		ID:        "fixedid1",
		StartedAt: start.Add(time.Hour),
		Status:    "ok",
		Scrolls:   7,
		Captures:  10,
		URIs:      120,
		Tags:      600,
		Corpus:    "游戏 音乐 游戏",
		Output:    "picture/user_wordcloud_20250504_130000.txt",
		Tokens: []reduce.TokenCount{
			{Token: "游戏", Count: 2},
			{Token: "音乐", Count: 1},
		},
	}

	firstId, err := a.Save(ctx, first)
	require.NoError(t, err)
	require.Len(t, firstId, 8)

	secondId, err := a.Save(ctx, second)
	require.NoError(t, err)
	require.Equal(t, "fixedid1", secondId)

	runs, err := a.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, "fixedid1", runs[0].ID)
	require.Equal(t, firstId, runs[1].ID)

	expected := second
	expected.Tokens = nil
	if diff := cmp.Diff(expected, runs[0]); diff != "" {
		t.Fatal(diff)
	}

	limited, err := a.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)

	tokens, err := a.Tokens(ctx, "fixedid1")
	require.NoError(t, err)
	require.Equal(t, []reduce.TokenCount{
		{Token: "游戏", Count: 2},
		{Token: "音乐", Count: 1},
	}, tokens)

	empty, err := a.Tokens(ctx, firstId)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestSaveDuplicateIdRollsBack(t *testing.T) {
	ctx := context.Background()
	a := openTestArchive(t)

	_, err := a.Save(ctx, Run{ID: "dup", Status: "ok", Tokens: []reduce.TokenCount{{Token: "科技", Count: 1}}})
	require.NoError(t, err)

	_, err = a.Save(ctx, Run{ID: "dup", Status: "ok", Tokens: []reduce.TokenCount{{Token: "音乐", Count: 3}}})
	require.Error(t, err)

	tokens, err := a.Tokens(ctx, "dup")
	require.NoError(t, err)
	require.Equal(t, []reduce.TokenCount{{Token: "科技", Count: 1}}, tokens)
}
