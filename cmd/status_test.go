package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jfmyers9/scrobbledb/internal/daemon"
	"github.com/jfmyers9/scrobbledb/internal/store"
	"github.com/mattn/go-runewidth"
)

func TestPadToWidth(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		want  string
	}{
		{name: "short ascii is padded", text: "rj", width: 5, want: "rj   "},
		{name: "exact fit", text: "hello", width: 5, want: "hello"},
		{name: "long ascii is truncated", text: "verylongusername", width: 8, want: "verylon…"},
		{name: "wide characters count double", text: "坂本龍一", width: 10, want: "坂本龍一  "},
		{name: "wide characters truncated", text: "坂本龍一坂本龍一", width: 6, want: "坂本… "},
		{name: "empty", text: "", width: 3, want: "   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := padToWidth(tt.text, tt.width)
			if got != tt.want {
				t.Errorf("padToWidth(%q, %d) = %q, want %q", tt.text, tt.width, got, tt.want)
			}
			if w := runewidth.StringWidth(got); w != tt.width {
				t.Errorf("display width = %d, want %d", w, tt.width)
			}
		})
	}
}

func TestMergeUsers(t *testing.T) {
	got := mergeUsers([]string{"zoe", "rj"}, []string{"rj", "alice"})
	want := []string{"alice", "rj", "zoe"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("mergeUsers() = %v, want %v", got, want)
	}
}

func TestRenderStatus(t *testing.T) {
	finished := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		renderStatus(&buf, nil)
		if !strings.Contains(buf.String(), "No users") {
			t.Errorf("expected empty message, got %q", buf.String())
		}
	})

	t.Run("rows", func(t *testing.T) {
		var buf bytes.Buffer
		renderStatus(&buf, []statusRow{
			{
				Stats: store.UserStats{User: "rj", Count: 3, Oldest: 1700000000, Newest: 1700003600},
				Run:   &daemon.RunRecord{User: "rj", Finished: finished, Inserted: 2, Duplicates: 1},
			},
			{
				Stats: store.UserStats{User: "alice"},
				Run:   &daemon.RunRecord{User: "alice", Finished: finished, Error: errors.New("upstream down").Error()},
			},
			{
				Stats: store.UserStats{User: "bob"},
			},
		})

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) != 4 {
			t.Fatalf("expected header and 3 rows, got %d lines:\n%s", len(lines), buf.String())
		}
		if !strings.HasPrefix(lines[0], "USER") {
			t.Errorf("expected header first, got %q", lines[0])
		}

		checks := []struct {
			line int
			want []string
		}{
			{1, []string{"rj", "3", "2023-11-14 22:13", "2023-11-14 23:13", "2024-03-01 12:30 +2 (1 dup, 0 failed)"}},
			{2, []string{"alice", "-", "failed: upstream down"}},
			{3, []string{"bob", "never"}},
		}
		for _, c := range checks {
			for _, want := range c.want {
				if !strings.Contains(lines[c.line], want) {
					t.Errorf("line %d = %q, expected to contain %q", c.line, lines[c.line], want)
				}
			}
		}
	})
}
