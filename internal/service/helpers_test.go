package service

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/user/movierec/internal/logging"
)

func init() {
	logging.SetLogger(zerolog.Nop())
}

// writeLines writes a JSONL fixture into a temp dir and returns its path.
func writeLines(t *testing.T, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func metadataLine(id int64, title string) string {
	return `{"id":` + strconv.FormatInt(id, 10) + `,"title":"` + title + `","tagline":null,"overview":"About ` + title + `","genres":["Drama"]}`
}

// vectorLine returns an embedding line whose vector is n copies of v.
func vectorLine(id int64, title string, n int, v string) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = v
	}
	return `{"id":` + strconv.FormatInt(id, 10) + `,"vector":[` + strings.Join(parts, ",") +
		`],"payload":{"title":"` + title + `","posterUrl":null,"vote_average":7.2}}`
}

func strPtr(s string) *string { return &s }
