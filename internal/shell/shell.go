// Package shell implements the interactive menu used to edit a table.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"unicode"
	"unicode/utf8"

	json "github.com/goccy/go-json"
	"github.com/maruel/csvdb/internal/csvdb"
	"github.com/maruel/csvdb/internal/history"
	"github.com/maruel/ksid"
)

// History records table versions. *history.Repo implements it.
type History interface {
	Commit(ctx context.Context, msg string, files ...string) (bool, error)
	Log(ctx context.Context, file string, n int) ([]*history.Commit, error)
}

// Options configures a Shell.
type Options struct {
	// IDColumn is filled with NewID when left blank while adding a row. It is
	// also the default identifier column for value updates.
	IDColumn string
	// History, when set, receives a commit after each successful change.
	History History
	// NewID generates identifiers. Defaults to ksid.
	NewID func() string
}

// Shell is a menu-driven loop over a table.
type Shell struct {
	table  *csvdb.Table
	editor *csvdb.Editor
	in     io.Reader
	out    io.Writer
	opts   Options
	lines  <-chan string
}

// New returns a Shell reading commands from in and writing to out.
func New(t *csvdb.Table, in io.Reader, out io.Writer, opts Options) *Shell {
	if opts.NewID == nil {
		opts.NewID = func() string { return ksid.NewID().String() }
	}
	return &Shell{
		table:  t,
		editor: csvdb.NewEditor(t),
		in:     in,
		out:    out,
		opts:   opts,
	}
}

type command struct {
	label string
	run   func(s *Shell, ctx context.Context) error
}

var commands = []command{
	{"Add row", (*Shell).addRow},
	{"Search", (*Shell).search},
	{"Update value", (*Shell).updateValue},
	{"Delete rows", (*Shell).deleteRows},
	{"Add column", (*Shell).addColumn},
	{"Add column at position", (*Shell).addColumnAt},
	{"Remove column", (*Shell).removeColumn},
	{"Rename column", (*Shell).renameColumn},
	{"Count rows", (*Shell).count},
	{"Sort", (*Shell).sort},
	{"Export JSON", (*Shell).export},
	{"History", (*Shell).showHistory},
}

// Run shows the menu until the user quits, input ends or ctx is done.
//
// Command failures are reported to the user and do not end the loop.
func (s *Shell) Run(ctx context.Context) error {
	s.lines = readLines(ctx, s.in)
	for {
		s.menu()
		choice, err := s.prompt(ctx, "Choice: ")
		if err != nil {
			return endOfInput(err)
		}
		if choice == "0" || strings.EqualFold(choice, "q") {
			return nil
		}
		n, err := strconv.Atoi(choice)
		if err != nil || n < 1 || n > len(commands) {
			s.printf("Invalid choice %q\n", choice)
			continue
		}
		cmd := commands[n-1]
		if err := cmd.run(s, ctx); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				return endOfInput(err)
			}
			slog.WarnContext(ctx, "Command failed", "command", cmd.label, "err", err)
			s.printf("Error: %v\n", err)
		}
	}
}

func endOfInput(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *Shell) menu() {
	s.printf("\n%s (%d rows)\n", s.table.Path(), s.table.Len())
	for i, c := range commands {
		s.printf("%2d) %s\n", i+1, c.label)
	}
	s.printf(" 0) Quit\n")
}

func (s *Shell) addRow(ctx context.Context) error {
	columns := s.table.Columns()
	values := make([]string, len(columns))
	for i, c := range columns {
		v, err := s.prompt(ctx, capitalize(c)+": ")
		if err != nil {
			return err
		}
		if v == "" && c == s.opts.IDColumn {
			v = s.opts.NewID()
			s.printf("Generated %s %s\n", c, v)
		}
		values[i] = v
	}
	if err := s.table.Append(csvdb.NewRow(columns, values)); err != nil {
		return err
	}
	s.printf("Row added\n")
	s.record(ctx, "Add row")
	return nil
}

func (s *Shell) search(ctx context.Context) error {
	column, err := s.prompt(ctx, "Column: ")
	if err != nil {
		return err
	}
	value, err := s.prompt(ctx, "Value: ")
	if err != nil {
		return err
	}
	row, err := s.table.Search(column, value)
	switch {
	case errors.Is(err, csvdb.ErrUnknownColumn):
		s.printf("Unknown column %q\n", column)
	case errors.Is(err, csvdb.ErrNotFound):
		s.printf("No row with %s = %q\n", column, value)
	case err != nil:
		return err
	default:
		s.printRows(s.table.Columns(), []*csvdb.Row{row})
	}
	return nil
}

func (s *Shell) updateValue(ctx context.Context) error {
	idColumn, err := s.promptDefault(ctx, "Identifier column", s.defaultIDColumn())
	if err != nil {
		return err
	}
	match, err := s.prompt(ctx, "Identifier value: ")
	if err != nil {
		return err
	}
	target, err := s.prompt(ctx, "Column to change: ")
	if err != nil {
		return err
	}
	value, err := s.prompt(ctx, "New value: ")
	if err != nil {
		return err
	}
	ok, err := s.editor.UpdateWhere(match, target, value, idColumn)
	if err != nil {
		return err
	}
	if !ok {
		s.printf("Nothing updated\n")
		return nil
	}
	s.printf("Updated\n")
	s.record(ctx, fmt.Sprintf("Set %s where %s = %s", target, idColumn, match))
	return nil
}

func (s *Shell) deleteRows(ctx context.Context) error {
	column, err := s.prompt(ctx, "Column: ")
	if err != nil {
		return err
	}
	value, err := s.prompt(ctx, "Value: ")
	if err != nil {
		return err
	}
	n, err := s.table.Delete(column, value)
	if err != nil {
		return err
	}
	s.printf("Deleted %d row(s)\n", n)
	if n > 0 {
		s.record(ctx, fmt.Sprintf("Delete rows where %s = %s", column, value))
	}
	return nil
}

func (s *Shell) addColumn(ctx context.Context) error {
	name, err := s.prompt(ctx, "Column name: ")
	if err != nil {
		return err
	}
	value, err := s.prompt(ctx, "Default value: ")
	if err != nil {
		return err
	}
	if err := s.editor.AddColumn(name, value); err != nil {
		return err
	}
	s.printf("Column %q set\n", name)
	s.record(ctx, "Add column "+name)
	return nil
}

func (s *Shell) addColumnAt(ctx context.Context) error {
	name, err := s.prompt(ctx, "Column name: ")
	if err != nil {
		return err
	}
	pos, err := s.prompt(ctx, "Position: ")
	if err != nil {
		return err
	}
	position, err := strconv.Atoi(pos)
	if err != nil {
		return fmt.Errorf("invalid position %q", pos)
	}
	value, err := s.prompt(ctx, "Default value: ")
	if err != nil {
		return err
	}
	if err := s.editor.AddColumnAt(name, position, value); err != nil {
		return err
	}
	s.printf("Column %q at position %d\n", name, position)
	s.record(ctx, fmt.Sprintf("Place column %s at %d", name, position))
	return nil
}

func (s *Shell) removeColumn(ctx context.Context) error {
	name, err := s.prompt(ctx, "Column name: ")
	if err != nil {
		return err
	}
	ok, err := s.editor.RemoveColumn(name)
	if err != nil {
		return err
	}
	if !ok {
		s.printf("Unknown column %q\n", name)
		return nil
	}
	s.printf("Column %q removed\n", name)
	s.record(ctx, "Remove column "+name)
	return nil
}

func (s *Shell) renameColumn(ctx context.Context) error {
	oldName, err := s.prompt(ctx, "Column name: ")
	if err != nil {
		return err
	}
	newName, err := s.prompt(ctx, "New name: ")
	if err != nil {
		return err
	}
	ok, err := s.editor.RenameColumn(oldName, newName)
	if err != nil {
		return err
	}
	if !ok {
		s.printf("Unknown column %q\n", oldName)
		return nil
	}
	s.printf("Column %q renamed to %q\n", oldName, newName)
	s.record(ctx, fmt.Sprintf("Rename column %s to %s", oldName, newName))
	return nil
}

func (s *Shell) count(context.Context) error {
	s.printf("%d rows\n", s.table.Len())
	return nil
}

func (s *Shell) sort(ctx context.Context) error {
	key, err := s.prompt(ctx, "Column: ")
	if err != nil {
		return err
	}
	desc, err := s.prompt(ctx, "Descending? [y/N]: ")
	if err != nil {
		return err
	}
	rows, err := s.table.SortBy(key, strings.EqualFold(desc, "y"))
	if err != nil {
		return err
	}
	// Rows come from the file, whose header may differ from memory.
	columns := s.table.Columns()
	if len(rows) > 0 {
		columns = rows[0].Names()
	}
	s.printRows(columns, rows)
	return nil
}

func (s *Shell) export(ctx context.Context) error {
	dst, err := s.prompt(ctx, "File (empty for screen): ")
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(s.table.Rows(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal rows: %w", err)
	}
	data = append(data, '\n')
	if dst == "" {
		_, err := s.out.Write(data)
		return err
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	s.printf("Exported %d rows to %s\n", s.table.Len(), dst)
	return nil
}

func (s *Shell) showHistory(ctx context.Context) error {
	if s.opts.History == nil {
		s.printf("History is disabled\n")
		return nil
	}
	commits, err := s.opts.History.Log(ctx, s.table.Path(), 10)
	if err != nil {
		return err
	}
	if len(commits) == 0 {
		s.printf("No history yet\n")
		return nil
	}
	for _, c := range commits {
		hash := c.Hash
		if len(hash) > 8 {
			hash = hash[:8]
		}
		s.printf("%s %s %s\n", hash, c.Date.Format("2006-01-02 15:04:05"), c.Message)
	}
	return nil
}

// record commits the table file when history is enabled. Failures are logged.
func (s *Shell) record(ctx context.Context, msg string) {
	if s.opts.History == nil {
		return
	}
	if _, err := s.opts.History.Commit(ctx, msg, s.table.Path()); err != nil {
		slog.WarnContext(ctx, "Failed to record history", "err", err)
	}
}

func (s *Shell) defaultIDColumn() string {
	if s.opts.IDColumn != "" {
		return s.opts.IDColumn
	}
	if cols := s.table.Columns(); len(cols) > 0 {
		return cols[0]
	}
	return ""
}

func (s *Shell) printRows(columns []string, rows []*csvdb.Row) {
	w := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, strings.Join(columns, "\t"))
	for _, r := range rows {
		_, _ = fmt.Fprintln(w, strings.Join(r.Values(columns), "\t"))
	}
	_ = w.Flush()
}

func (s *Shell) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.out, format, args...)
}

// prompt prints label and returns the next input line without surrounding spaces.
func (s *Shell) prompt(ctx context.Context, label string) (string, error) {
	s.printf("%s", label)
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-s.lines:
		if !ok {
			return "", io.EOF
		}
		return strings.TrimSpace(line), nil
	}
}

// promptDefault is prompt with a value used when the answer is empty.
func (s *Shell) promptDefault(ctx context.Context, label, def string) (string, error) {
	v, err := s.prompt(ctx, fmt.Sprintf("%s [%s]: ", label, def))
	if err != nil || v != "" {
		return v, err
	}
	return def, nil
}

// readLines feeds lines from r until EOF or ctx is done.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case ch <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			slog.WarnContext(ctx, "Failed to read input", "err", err)
		}
	}()
	return ch
}

func capitalize(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}
