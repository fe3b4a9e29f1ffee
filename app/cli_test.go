package app

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/htol/shelf/book"
	"github.com/htol/shelf/logger"
)

func TestMain(m *testing.M) {
	logger.SetOutput(io.Discard)
	os.Exit(m.Run())
}

var configEnv = []string{
	"SHELF_CONFIG", "PORT", "BASE_URL", "READ_TIMEOUT", "WRITE_TIMEOUT", "IDLE_TIMEOUT",
	"STORE_PATH", "STORE_DRIVER", "STORE_BACKUPS", "STORE_WATCH", "IMPORT_WORKERS", "LOG_LEVEL",
}

// setupCLITestEnv runs the test in an empty working directory with no
// configuration coming from the environment.
func setupCLITestEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	for _, key := range configEnv {
		t.Setenv(key, "")
	}
	return dir
}

func runCLI(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

// mustRun runs args against lib.json and fails the test on a non-zero exit.
func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, errOut, code := runCLI(t, append([]string{"--store", "lib.json"}, args...)...)
	require.Equal(t, 0, code, "shelf %v: %s", args, errOut)
	return out
}

func TestCLILibraryLifecycle(t *testing.T) {
	setupCLITestEnv(t)

	out := mustRun(t, "add", "--title", "The Hobbit", "--author", "J.R.R. Tolkien", "--year", "1937", "--genre", "Fantasy", "--read")
	assert.Equal(t, "Book 'The Hobbit' added successfully!\n", out)
	mustRun(t, "add", "--title", "Dune", "--author", "Frank Herbert", "--year", "1965", "--genre", "SciFi",
		"--image-url", "https://covers.example.com/dune.jpg")
	mustRun(t, "add", "--title", "Emma", "--author", "Jane Austen", "--year", "1815", "--genre", "Classic")

	out = mustRun(t, "list")
	for _, title := range []string{"The Hobbit", "Dune", "Emma"} {
		assert.Contains(t, out, title)
	}
	assert.Contains(t, out, "#")

	out = mustRun(t, "list", "--genre", "SciFi", "--status", "unread")
	assert.Contains(t, out, "Dune")
	assert.NotContains(t, out, "Hobbit")

	out = mustRun(t, "list", "--genre", "Horror")
	assert.Equal(t, "No books match the filter criteria.\n", out)

	out = mustRun(t, "toggle", "0", "--genre", "SciFi", "--status", "Unread")
	assert.Equal(t, "'Dune' marked as read.\n", out)

	out = mustRun(t, "stats")
	assert.Equal(t, "Total Books: 3\nRead Books: 2\nUnread Books: 1\n", out)

	out = mustRun(t, "search", "HERB")
	assert.Contains(t, out, "Dune")
	assert.NotContains(t, out, "Emma")
	assert.Equal(t, "No books found.\n", mustRun(t, "search", "zzz"))

	assert.Equal(t, "Classic\nFantasy\nSciFi\n", mustRun(t, "genres"))

	out = mustRun(t, "remove", "the hobbit")
	assert.Equal(t, "Book 'the hobbit' removed (1).\n", out)
	out = mustRun(t, "remove", "the hobbit")
	assert.Equal(t, "Book 'the hobbit' not found.\n", out)

	out = mustRun(t, "export", "--format", "json", "--out", "-")
	var exported []book.Book
	require.NoError(t, jsoniter.Unmarshal([]byte(out), &exported))
	require.Len(t, exported, 2)
	assert.Equal(t, "Dune", exported[0].Title)
	assert.True(t, exported[0].Read)

	out = mustRun(t, "export")
	assert.Equal(t, "Library exported to library_export.csv (2 books).\n", out)
	data, err := os.ReadFile("library_export.csv")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "title,author,year,genre,image_url,read\n"))
}

func TestCLIEmptyStats(t *testing.T) {
	setupCLITestEnv(t)
	assert.Equal(t, "No books to display statistics.\n", mustRun(t, "stats"))
}

func TestCLIUsageErrors(t *testing.T) {
	setupCLITestEnv(t)

	tests := [][]string{
		{"bogus"},
		{"remove"},
		{"toggle", "first"},
		{"list", "--status", "maybe"},
		{"list", "--no-such-flag"},
		{"export", "--format", "xml"},
		{"--driver", "mongo", "stats"},
		{"serve", "--port", "70000"},
		{"import", "books", "--workers", "0"},
	}
	for _, args := range tests {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			_, errOut, code := runCLI(t, args...)
			assert.Equal(t, 2, code)
			assert.Contains(t, errOut, "Error:")
			assert.Contains(t, errOut, "Usage:")
		})
	}
}

func TestCLIRuntimeErrors(t *testing.T) {
	setupCLITestEnv(t)

	_, errOut, code := runCLI(t, "--store", "lib.json", "add", "--title", "Untitled")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "invalid book")
	assert.NotContains(t, errOut, "Usage:")

	_, errOut, code = runCLI(t, "--store", "lib.json", "toggle", "3")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "index out of range")

	require.NoError(t, os.WriteFile("broken.json", []byte("not json"), 0o644))
	_, errOut, code = runCLI(t, "--store", "broken.json", "list")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "malformed library store")
}

func TestCLISQLiteDriver(t *testing.T) {
	setupCLITestEnv(t)

	_, errOut, code := runCLI(t, "--driver", "sqlite", "--store", "lib.db",
		"add", "--title", "Dune", "--author", "Frank Herbert", "--year", "1965", "--genre", "SciFi")
	require.Equal(t, 0, code, errOut)

	out, errOut, code := runCLI(t, "--driver", "sqlite", "--store", "lib.db", "list")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Dune")

	_, err := os.Stat("lib.json")
	assert.True(t, os.IsNotExist(err), "json store untouched")
}

func TestCLISQLiteDefaultPath(t *testing.T) {
	setupCLITestEnv(t)

	_, errOut, code := runCLI(t, "--driver", "sqlite",
		"add", "--title", "Dune", "--author", "Frank Herbert", "--year", "1965", "--genre", "SciFi")
	require.Equal(t, 0, code, errOut)

	_, err := os.Stat("library.db")
	assert.NoError(t, err)
	_, err = os.Stat("library.json")
	assert.True(t, os.IsNotExist(err), "sqlite does not reuse the json default")

	require.NoError(t, os.WriteFile("corrupt.db", []byte(strings.Repeat("garbage ", 200)), 0o644))
	_, errOut, code = runCLI(t, "--driver", "sqlite", "--store", "corrupt.db", "list")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "malformed library store")
}

func TestCLIConfigFile(t *testing.T) {
	dir := setupCLITestEnv(t)
	cfgPath := filepath.Join(dir, "shelf.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("[store]\npath = \"from-config.json\"\n"), 0o644))

	_, errOut, code := runCLI(t, "--config", cfgPath,
		"add", "--title", "Dune", "--author", "Frank Herbert", "--year", "1965", "--genre", "SciFi")
	require.Equal(t, 0, code, errOut)
	_, err := os.Stat(filepath.Join(dir, "from-config.json"))
	assert.NoError(t, err)
}

const goodFB2 = `<?xml version="1.0" encoding="utf-8"?>
<FictionBook><description><title-info>
<genre>sf</genre>
<author><first-name>Frank</first-name><last-name>Herbert</last-name></author>
<book-title>Dune</book-title><date>1965</date>
</title-info></description></FictionBook>`

const authorlessFB2 = `<?xml version="1.0" encoding="utf-8"?>
<FictionBook><description><title-info>
<genre>prose</genre><book-title>Nameless</book-title><date>1990</date>
</title-info></description></FictionBook>`

func TestCLIImport(t *testing.T) {
	dir := setupCLITestEnv(t)
	books := filepath.Join(dir, "books")
	require.NoError(t, os.Mkdir(books, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(books, "dune.fb2"), []byte(goodFB2), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(books, "nameless.fb2"), []byte(authorlessFB2), 0o644))

	out := mustRun(t, "import", "books", "--workers", "2")
	assert.Equal(t, "Imported 1 of 2 books from books.\nSkipped: Nameless\n", out)

	out = mustRun(t, "list")
	assert.Contains(t, out, "Frank Herbert")
	assert.Contains(t, out, "1965")

	_, _, code := runCLI(t, "--store", "lib.json", "import", "missing-dir")
	assert.Equal(t, 1, code)
}
