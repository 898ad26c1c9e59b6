// SPDX-License-Identifier: MPL-2.0

package tui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rtvm/rtvm/internal/toolset"
)

const keyCtrlC = "ctrl+c"

type (
	// ConfirmOptions configures the Confirm component.
	ConfirmOptions struct {
		// Title is the question to display.
		Title string
		// Description provides additional context below the title.
		Description string
		// Affirmative is the text for the affirmative option (default: "Yes").
		Affirmative string
		// Negative is the text for the negative option (default: "No").
		Negative string
		// Default is the preselected answer.
		Default bool
	}

	// Confirmer asks yes/no questions on a terminal. It satisfies
	// toolset.Prompter.
	Confirmer struct {
		Config Config
		// Description is shown under every question.
		Description string
	}

	confirmModel struct {
		opts      ConfirmOptions
		selection bool
		answered  bool
		cancelled bool
		width     int
	}
)

var _ toolset.Prompter = (*Confirmer)(nil)

// NewConfirmer returns a Confirmer for the controlling terminal.
func NewConfirmer() *Confirmer {
	return &Confirmer{Config: DefaultConfig()}
}

// Confirm implements toolset.Prompter. It returns toolset.ErrPromptUnavailable
// when no user can answer. Cancelling with esc or ctrl+c counts as "no".
func (c *Confirmer) Confirm(ctx context.Context, question string) (bool, error) {
	if !c.Config.interactive() {
		return false, toolset.ErrPromptUnavailable
	}
	opts := ConfirmOptions{
		Title:       question,
		Description: c.Description,
		Affirmative: "Yes",
		Negative:    "No",
		Default:     true,
	}
	if c.Config.Accessible {
		return confirmLine(ctx, c.Config, opts)
	}
	return runConfirm(ctx, c.Config, opts)
}

func newConfirmModel(opts ConfirmOptions) *confirmModel {
	if opts.Affirmative == "" {
		opts.Affirmative = "Yes"
	}
	if opts.Negative == "" {
		opts.Negative = "No"
	}
	return &confirmModel{opts: opts, selection: opts.Default}
}

func (m *confirmModel) Init() tea.Cmd { return nil }

func (m *confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case keyCtrlC, "esc":
			m.cancelled = true
			return m, tea.Quit
		case "y", "Y":
			m.selection = true
			m.answered = true
			return m, tea.Quit
		case "n", "N":
			m.selection = false
			m.answered = true
			return m, tea.Quit
		case "left", "h":
			m.selection = true
		case "right", "l":
			m.selection = false
		case "up", "down", "tab", "shift+tab":
			m.selection = !m.selection
		case "enter", " ":
			m.answered = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	}
	return m, nil
}

func (m *confirmModel) View() string {
	if m.answered || m.cancelled {
		return ""
	}

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	descStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	activeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#7C3AED")).Bold(true).Padding(0, 1)
	inactiveStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF")).Padding(0, 1)
	helpStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	yesView := inactiveStyle.Render(m.opts.Affirmative)
	noView := inactiveStyle.Render(m.opts.Negative)
	if m.selection {
		yesView = activeStyle.Render(m.opts.Affirmative)
	} else {
		noView = activeStyle.Render(m.opts.Negative)
	}

	lines := make([]string, 0, 4)
	if m.opts.Title != "" {
		lines = append(lines, titleStyle.Render(m.opts.Title))
	}
	if m.opts.Description != "" {
		lines = append(lines, descStyle.Render(m.opts.Description))
	}
	lines = append(lines,
		yesView+"  "+noView,
		helpStyle.Render("enter submit • y yes • n no • esc cancel"),
	)

	view := strings.Join(lines, "\n") + "\n"
	if m.width > 0 {
		view = lipgloss.NewStyle().MaxWidth(m.width).Render(view)
	}
	return view
}

// result reports the answer. Cancelling is a "no".
func (m *confirmModel) result() bool {
	return m.answered && m.selection
}

func runConfirm(ctx context.Context, cfg Config, opts ConfirmOptions) (bool, error) {
	p := tea.NewProgram(newConfirmModel(opts),
		tea.WithContext(ctx),
		tea.WithInput(cfg.Input),
		tea.WithOutput(cfg.Output),
	)
	final, err := p.Run()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, tea.ErrProgramKilled) {
			return false, ctxErr
		}
		return false, fmt.Errorf("confirm prompt: %w", err)
	}
	m, ok := final.(*confirmModel)
	if !ok {
		return false, nil
	}
	return m.result(), nil
}

// confirmLine is the accessible fallback: one line of text, one line of answer.
func confirmLine(ctx context.Context, cfg Config, opts ConfirmOptions) (bool, error) {
	hint := "[y/N]"
	if opts.Default {
		hint = "[Y/n]"
	}
	if _, err := fmt.Fprintf(cfg.Output, "%s %s ", opts.Title, hint); err != nil {
		return false, err
	}

	answer := make(chan string, 1)
	go func() {
		line, err := bufio.NewReader(cfg.Input).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			line = ""
		}
		answer <- line
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case line := <-answer:
		return parseAnswer(line, opts.Default), nil
	}
}

func parseAnswer(line string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "":
		return def
	case "y", "yes":
		return true
	default:
		return false
	}
}
