package shell

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/maruel/csvdb/internal/csvdb"
	"github.com/maruel/csvdb/internal/history"
)

const people = "id,name,age\n1,Ann,30\n2,Bob,25\n"

type fakeHistory struct {
	msgs  []string
	files []string
}

func (f *fakeHistory) Commit(_ context.Context, msg string, files ...string) (bool, error) {
	f.msgs = append(f.msgs, msg)
	f.files = append(f.files, files...)
	return true, nil
}

func (f *fakeHistory) Log(context.Context, string, int) ([]*history.Commit, error) {
	var out []*history.Commit
	for _, m := range slices.Backward(f.msgs) {
		hash := strings.Repeat(string(rune('a'+len(out))), 40)
		out = append(out, &history.Commit{Hash: hash, Message: m, Date: time.Unix(0, 0).UTC()})
	}
	return out, nil
}

func setupTable(t *testing.T, content string) *csvdb.Table {
	t.Helper()
	path := filepath.Join(t.TempDir(), "people.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	table, err := csvdb.Open(path, []string{"id", "name", "age"})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return table
}

func run(t *testing.T, table *csvdb.Table, opts Options, input string) string {
	t.Helper()
	var out bytes.Buffer
	if err := New(table, strings.NewReader(input), &out, opts).Run(t.Context()); err != nil {
		t.Fatalf("Run failed: %v\n%s", err, out.String())
	}
	return out.String()
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestShell(t *testing.T) {
	t.Run("add row generates id", func(t *testing.T) {
		table := setupTable(t, people)
		h := &fakeHistory{}
		opts := Options{IDColumn: "id", History: h, NewID: func() string { return "gen" }}
		out := run(t, table, opts, "1\n\nCid\n40\n0\n")
		if !strings.Contains(out, "Generated id gen") {
			t.Errorf("output missing generated id:\n%s", out)
		}
		if got, want := readFile(t, table.Path()), people+"gen,Cid,40\n"; got != want {
			t.Errorf("file = %q, want %q", got, want)
		}
		if !slices.Equal(h.msgs, []string{"Add row"}) || !slices.Equal(h.files, []string{table.Path()}) {
			t.Errorf("history = %q %q", h.msgs, h.files)
		}
	})

	t.Run("add row keeps typed id", func(t *testing.T) {
		table := setupTable(t, people)
		opts := Options{IDColumn: "id", NewID: func() string { t.Error("NewID called"); return "" }}
		run(t, table, opts, "1\n7\nDee\n\n0\n")
		if got, want := readFile(t, table.Path()), people+"7,Dee,\n"; got != want {
			t.Errorf("file = %q, want %q", got, want)
		}
	})

	t.Run("search", func(t *testing.T) {
		table := setupTable(t, people)
		out := run(t, table, Options{}, "2\nname\nBob\n2\nname\nZed\n2\ncolor\nred\n0\n")
		for _, want := range []string{"2   Bob   25", "No row with name = \"Zed\"", "Unknown column \"color\""} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("update value", func(t *testing.T) {
		table := setupTable(t, people)
		h := &fakeHistory{}
		out := run(t, table, Options{IDColumn: "id", History: h}, "3\n\n1\nage\n31\n3\nname\nZed\nage\n1\n0\n")
		if got, want := readFile(t, table.Path()), "id,name,age\n1,Ann,31\n2,Bob,25\n"; got != want {
			t.Errorf("file = %q, want %q", got, want)
		}
		if !strings.Contains(out, "Nothing updated") {
			t.Errorf("output missing no-op report:\n%s", out)
		}
		if !slices.Equal(h.msgs, []string{"Set age where id = 1"}) {
			t.Errorf("history = %q", h.msgs)
		}
	})

	t.Run("delete rows", func(t *testing.T) {
		table := setupTable(t, people)
		h := &fakeHistory{}
		out := run(t, table, Options{History: h}, "4\nname\nBob\n4\nname\nBob\n0\n")
		if !strings.Contains(out, "Deleted 1 row(s)") || !strings.Contains(out, "Deleted 0 row(s)") {
			t.Errorf("output:\n%s", out)
		}
		if got, want := readFile(t, table.Path()), "id,name,age\n1,Ann,30\n"; got != want {
			t.Errorf("file = %q, want %q", got, want)
		}
		if len(h.msgs) != 1 {
			t.Errorf("history = %q, want one commit", h.msgs)
		}
	})

	t.Run("column edits", func(t *testing.T) {
		table := setupTable(t, people)
		h := &fakeHistory{}
		input := strings.Join([]string{
			"5", "city", "Paris",
			"6", "zip", "1", "",
			"8", "name", "first",
			"7", "age",
			"7", "nope",
			"0",
		}, "\n") + "\n"
		out := run(t, table, Options{History: h}, input)
		if got, want := readFile(t, table.Path()), "id,zip,first,city\n1,,Ann,Paris\n2,,Bob,Paris\n"; got != want {
			t.Errorf("file = %q, want %q", got, want)
		}
		if !strings.Contains(out, "Unknown column \"nope\"") {
			t.Errorf("output missing unknown column:\n%s", out)
		}
		want := []string{"Add column city", "Place column zip at 1", "Rename column name to first", "Remove column age"}
		if !slices.Equal(h.msgs, want) {
			t.Errorf("history = %q, want %q", h.msgs, want)
		}
	})

	t.Run("invalid position", func(t *testing.T) {
		table := setupTable(t, people)
		out := run(t, table, Options{}, "6\nzip\nabc\n6\nzip\n9\n\n0\n")
		if strings.Count(out, "Error:") != 2 {
			t.Errorf("want two errors:\n%s", out)
		}
		if got := readFile(t, table.Path()); got != people {
			t.Errorf("file changed: %q", got)
		}
	})

	t.Run("count and sort", func(t *testing.T) {
		table := setupTable(t, people)
		out := run(t, table, Options{}, "9\n10\nage\n\n10\nage\ny\n0\n")
		if !strings.Contains(out, "2 rows\n") {
			t.Errorf("output missing count:\n%s", out)
		}
		asc := strings.Index(out, "2   Bob   25\n1   Ann   30\n")
		desc := strings.Index(out, "1   Ann   30\n2   Bob   25\n")
		if asc < 0 || desc < 0 || asc > desc {
			t.Errorf("sorted output unexpected:\n%s", out)
		}
	})

	t.Run("sort shows the file header", func(t *testing.T) {
		table := setupTable(t, people)
		// Edited by another program while the table is open.
		if err := os.WriteFile(table.Path(), []byte("id,label,age\n1,Ann,30\n2,Bob,25\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		out := run(t, table, Options{}, "10\nage\n\n0\n")
		if !strings.Contains(out, "id  label  age\n2   Bob    25\n1   Ann    30\n") {
			t.Errorf("sorted output unexpected:\n%s", out)
		}
		if strings.Contains(out, "id  name  age") {
			t.Errorf("sorted output uses the in-memory header:\n%s", out)
		}
	})

	t.Run("export", func(t *testing.T) {
		table := setupTable(t, people)
		dst := filepath.Join(t.TempDir(), "out.json")
		out := run(t, table, Options{}, "11\n"+dst+"\n11\n\n0\n")
		if !strings.Contains(out, "Exported 2 rows to "+dst) {
			t.Errorf("output:\n%s", out)
		}
		if !strings.Contains(out, `"Ann"`) {
			t.Errorf("screen export missing row:\n%s", out)
		}
		var rows []*csvdb.Row
		if err := json.Unmarshal([]byte(readFile(t, dst)), &rows); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		if len(rows) != 2 || rows[1].Value("name") != "Bob" || !slices.Equal(rows[0].Names(), []string{"id", "name", "age"}) {
			t.Errorf("exported rows = %v", rows)
		}
	})

	t.Run("history", func(t *testing.T) {
		table := setupTable(t, people)
		if out := run(t, table, Options{}, "12\n0\n"); !strings.Contains(out, "History is disabled") {
			t.Errorf("output:\n%s", out)
		}
		h := &fakeHistory{}
		if out := run(t, table, Options{History: h}, "12\n0\n"); !strings.Contains(out, "No history yet") {
			t.Errorf("output:\n%s", out)
		}
		h.msgs = []string{"first", "second"}
		out := run(t, table, Options{History: h}, "12\n0\n")
		if !strings.Contains(out, "aaaaaaaa 1970-01-01 00:00:00 second\nbbbbbbbb 1970-01-01 00:00:00 first\n") {
			t.Errorf("output:\n%s", out)
		}
	})

	t.Run("errors keep the loop running", func(t *testing.T) {
		table := setupTable(t, people)
		out := run(t, table, Options{}, "99\nfoo\n4\ncolor\nred\n9\nq\n")
		for _, want := range []string{`Invalid choice "99"`, `Invalid choice "foo"`, "Error:", "2 rows\n"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("end of input", func(t *testing.T) {
		table := setupTable(t, people)
		// Input stops in the middle of a command.
		run(t, table, Options{}, "5\ncity\n")
		if got := readFile(t, table.Path()); got != people {
			t.Errorf("file changed: %q", got)
		}
	})

	t.Run("context canceled", func(t *testing.T) {
		table := setupTable(t, people)
		r, w := io.Pipe()
		defer func() { _ = w.Close() }()
		ctx, cancel := context.WithCancel(t.Context())
		done := make(chan error, 1)
		go func() { done <- New(table, r, io.Discard, Options{}).Run(ctx) }()
		cancel()
		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("Run() = %v, want context.Canceled", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("Run did not return after cancel")
		}
	})
}
