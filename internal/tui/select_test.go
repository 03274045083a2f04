package tui

import (
	"errors"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lepinkainen/bookhaven/internal/book"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func sampleBooks() []book.Record {
	return []book.Record{
		{Key: "dune", Title: "Dune", Author: "Frank Herbert", PublicationDate: strPtr("1965-08-01"), Category: strPtr("Fiction")},
		{Key: "emma", Title: "Emma", Author: "Jane Austen"},
	}
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func stubProgram(t *testing.T, msgs ...tea.Msg) {
	t.Helper()

	orig := runProgram
	runProgram = func(m tea.Model) (tea.Model, error) {
		for _, msg := range msgs {
			m, _ = m.Update(msg)
		}
		return m, nil
	}
	t.Cleanup(func() { runProgram = orig })
}

func TestModelEnterSelectsHighlightedBook(t *testing.T) {
	m := newModel("dune", []bookItem{{rec: sampleBooks()[0]}, {rec: sampleBooks()[1]}})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.True(t, cmd != nil)
	assert.Equal(t, ActionSelected, m.result.Action)
	assert.Equal(t, "dune", m.result.Selection.Key)
}

func TestModelKeyActions(t *testing.T) {
	tests := []struct {
		name string
		msg  tea.KeyMsg
		want SelectionAction
	}{
		{name: "skip", msg: keyRunes("s"), want: ActionSkipped},
		{name: "escape", msg: tea.KeyMsg{Type: tea.KeyEsc}, want: ActionSkipped},
		{name: "quit", msg: keyRunes("q"), want: ActionStopped},
		{name: "ctrl+c", msg: tea.KeyMsg{Type: tea.KeyCtrlC}, want: ActionStopped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newModel("q", []bookItem{{rec: sampleBooks()[0]}})
			m.Update(tt.msg)
			assert.Equal(t, tt.want, m.result.Action)
			assert.Zero(t, m.result.Selection)
		})
	}
}

func TestSelectBookNavigatesAndSelects(t *testing.T) {
	stubProgram(t, tea.KeyMsg{Type: tea.KeyDown}, tea.KeyMsg{Type: tea.KeyEnter})

	result, err := SelectBook("classics", sampleBooks())
	assert.NoError(t, err)
	assert.Equal(t, ActionSelected, result.Action)
	assert.Equal(t, "emma", result.Selection.Key)
}

func TestSelectBookNoResults(t *testing.T) {
	stubProgram(t)

	result, err := SelectBook("nothing", nil)
	assert.NoError(t, err)
	assert.Equal(t, ActionSkipped, result.Action)
}

func TestSelectBookProgramError(t *testing.T) {
	orig := runProgram
	runProgram = func(tea.Model) (tea.Model, error) { return nil, errors.New("no tty") }
	t.Cleanup(func() { runProgram = orig })

	_, err := SelectBook("dune", sampleBooks())
	assert.Error(t, err)
}

func TestViewShowsQueryAndHelp(t *testing.T) {
	m := newModel("frank herbert", []bookItem{{rec: sampleBooks()[0]}})

	view := m.View()
	assert.Contains(t, view, "Results for: frank herbert")
	assert.Contains(t, view, "Enter select")
}

func TestItemTitleIncludesYear(t *testing.T) {
	books := sampleBooks()
	assert.Equal(t, "DUNE (1965)", bookItem{rec: books[0]}.Title())
	assert.Equal(t, "EMMA (n/a)", bookItem{rec: books[1]}.Title())
	assert.Equal(t, "Dune", bookItem{rec: books[0]}.FilterValue())
}

func TestFormatMetadata(t *testing.T) {
	rec := book.Record{
		PageCount:    intPtr(412),
		LanguageCode: strPtr("en"),
		Publisher:    strPtr("Chilton"),
		ISBN10:       strPtr("0441013597"),
		ISBN13:       strPtr("9780441013593"),
	}
	assert.Equal(t, "412 pages | EN | Chilton | ISBN 9780441013593", formatMetadata(rec, 0))
	assert.Equal(t, "No metadata available", formatMetadata(book.Record{}, 0))

	short := formatMetadata(rec, 12)
	assert.Equal(t, 12, len(short))
	assert.True(t, strings.HasSuffix(short, "..."))
}

func TestTruncateAndClamp(t *testing.T) {
	assert.Equal(t, "a b c", truncate("a   b\n c", 0))
	assert.Equal(t, "abc", truncate("abcdef", 3))
	assert.Equal(t, "ab...", truncate("abcdefgh", 5))

	assert.Equal(t, 72, clamp(72, 0, 40))
	assert.Equal(t, 50, clamp(72, 50, 40))
	assert.Equal(t, 40, clamp(72, 10, 40))
}
