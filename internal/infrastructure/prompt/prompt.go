// Package prompt asks for consent before missing packages are downloaded.
package prompt

import (
	"context"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/tridirt/tridirt/internal/core/domain"
	configdomain "github.com/tridirt/tridirt/internal/core/domain/config"
	"github.com/tridirt/tridirt/internal/core/ports"
)

// New picks the prompter for mode. An interactive prompt needs a terminal on
// both ends; without one, prompt mode installs without asking.
func New(mode configdomain.InstallMode, in io.Reader, out io.Writer, interactive bool, logger logrus.FieldLogger) ports.Prompter {
	switch mode {
	case configdomain.InstallModeAuto:
		return AutoPrompter{}
	case configdomain.InstallModeNever:
		return NeverPrompter{}
	}
	if !interactive {
		logger.Debug("no terminal attached, installing without confirmation")
		return AutoPrompter{}
	}
	return NewTeaPrompter(in, out)
}

// AutoPrompter consents to every install
type AutoPrompter struct{}

func (AutoPrompter) Confirm(context.Context, string, []domain.Package) (bool, error) {
	return true, nil
}

// NeverPrompter refuses every install
type NeverPrompter struct{}

func (NeverPrompter) Confirm(context.Context, string, []domain.Package) (bool, error) {
	return false, nil
}

// TeaPrompter shows a yes/no question on the terminal
type TeaPrompter struct {
	in  io.Reader
	out io.Writer
}

// NewTeaPrompter creates an interactive prompter reading keys from in
func NewTeaPrompter(in io.Reader, out io.Writer) *TeaPrompter {
	return &TeaPrompter{in: in, out: out}
}

func (p *TeaPrompter) Confirm(ctx context.Context, installDir string, pkgs []domain.Package) (bool, error) {
	model := newConfirmModel(installDir, pkgs, lipgloss.NewRenderer(p.out))
	program := tea.NewProgram(model,
		tea.WithInput(p.in),
		tea.WithOutput(p.out),
		tea.WithContext(ctx),
	)

	final, err := program.Run()
	if err != nil {
		return false, fmt.Errorf("prompt failed: %w", err)
	}
	return final.(confirmModel).confirmed, nil
}

type confirmModel struct {
	installDir string
	pkgs       []domain.Package

	title  lipgloss.Style
	muted  lipgloss.Style
	answer lipgloss.Style

	answered  bool
	confirmed bool
}

func newConfirmModel(installDir string, pkgs []domain.Package, r *lipgloss.Renderer) confirmModel {
	return confirmModel{
		installDir: installDir,
		pkgs:       pkgs,
		title:      r.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		muted:      r.NewStyle().Foreground(lipgloss.Color("245")),
		answer:     r.NewStyle().Bold(true),
	}
}

func (m confirmModel) Init() tea.Cmd {
	return nil
}

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch strings.ToLower(key.String()) {
	case "y", "enter":
		m.answered, m.confirmed = true, true
		return m, tea.Quit
	case "n", "q", "esc", "ctrl+c", "ctrl+d":
		m.answered, m.confirmed = true, false
		return m, tea.Quit
	}
	return m, nil
}

func (m confirmModel) View() string {
	var b strings.Builder

	b.WriteString(m.title.Render("The following will be downloaded into " + m.installDir + ":"))
	b.WriteString("\n")
	for _, pkg := range m.pkgs {
		b.WriteString("  - " + pkg.DisplayName() + " " + m.muted.Render("("+pkg.URL+")") + "\n")
	}

	b.WriteString("Install now? [Y/n] ")
	if m.answered {
		if m.confirmed {
			b.WriteString(m.answer.Render("yes"))
		} else {
			b.WriteString(m.answer.Render("no"))
		}
		b.WriteString("\n")
	}
	return b.String()
}
