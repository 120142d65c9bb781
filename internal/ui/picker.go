package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type pickItem struct {
	idx   int
	title string
}

func (i pickItem) Title() string       { return i.title }
func (i pickItem) Description() string { return "" }
func (i pickItem) FilterValue() string { return i.title }

// pickerModel is a filterable list. chosen stays -1 until enter is pressed.
type pickerModel struct {
	list      list.Model
	chosen    int
	cancelled bool
}

func newPicker(prompt string, items []string) pickerModel {
	li := make([]list.Item, len(items))
	for i, s := range items {
		li[i] = pickItem{idx: i, title: s}
	}
	d := list.NewDefaultDelegate()
	d.ShowDescription = false
	d.SetSpacing(0)

	l := list.New(li, d, 80, 20)
	l.Title = prompt
	l.Styles.Title = TitleStyle
	l.SetShowStatusBar(false)
	return pickerModel{list: l, chosen: -1}
}

func (m pickerModel) Init() tea.Cmd { return nil }

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height)
		return m, nil
	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			m.cancelled = true
			return m, tea.Quit
		case "enter":
			if it, ok := m.list.SelectedItem().(pickItem); ok {
				m.chosen = it.idx
			}
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m pickerModel) View() string { return m.list.View() }

func pick(prompt string, items []string) (int, error) {
	final, err := tea.NewProgram(newPicker(prompt, items), tea.WithAltScreen(), tea.WithOutput(os.Stderr)).Run()
	if err != nil {
		return -1, fmt.Errorf("running picker: %w", err)
	}
	m := final.(pickerModel)
	if m.cancelled || m.chosen < 0 {
		return -1, ErrCancelled
	}
	return m.chosen, nil
}

type inputModel struct {
	input     textinput.Model
	done      bool
	cancelled bool
}

func newInput(prompt string) inputModel {
	ti := textinput.New()
	ti.Prompt = prompt + " > "
	ti.PromptStyle = TitleStyle
	ti.Focus()
	return inputModel{input: ti}
}

func (m inputModel) Init() tea.Cmd { return textinput.Blink }

func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.Type {
		case tea.KeyEnter:
			m.done = true
			return m, tea.Quit
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancelled = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m inputModel) View() string { return m.input.View() + "\n" }

func ask(prompt string) (string, error) {
	final, err := tea.NewProgram(newInput(prompt), tea.WithOutput(os.Stderr)).Run()
	if err != nil {
		return "", fmt.Errorf("running prompt: %w", err)
	}
	m := final.(inputModel)
	if m.cancelled {
		return "", ErrCancelled
	}
	q := strings.TrimSpace(m.input.Value())
	if q == "" {
		return "", fmt.Errorf("no input provided")
	}
	return q, nil
}
