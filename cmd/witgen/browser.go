package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/witbindgen"
	"github.com/wippyai/witbindgen/bindgen"
	"github.com/wippyai/witbindgen/pascal"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	ifaceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type browserState int

const (
	stateList browserState = iota
	stateFile
)

type browserModel struct {
	err      error
	world    string
	files    *bindgen.Files
	funcs    []pascal.FuncInfo
	visible  []int
	filter   textinput.Model
	view     viewport.Model
	selected int
	state    browserState
	ready    bool

	resolve *wit.Resolve
	cfg     witbindgen.Config
}

// generatedMsg carries the result of generation into the model.
type generatedMsg struct {
	err   error
	world string
	files *bindgen.Files
	funcs []pascal.FuncInfo
}

func newBrowserModel(resolve *wit.Resolve, cfg witbindgen.Config) *browserModel {
	ti := textinput.New()
	ti.Placeholder = "filter functions"
	ti.Prompt = "/ "
	ti.Width = 40
	return &browserModel{filter: ti, state: stateList, resolve: resolve, cfg: cfg}
}

func (m *browserModel) Init() tea.Cmd {
	return m.generate
}

func (m *browserModel) generate() tea.Msg {
	world, err := witbindgen.FindWorld(m.resolve, m.cfg.World)
	if err != nil {
		return generatedMsg{err: err}
	}
	g, err := m.cfg.NewGenerator()
	if err != nil {
		return generatedMsg{err: err}
	}
	files := &bindgen.Files{}
	if err := bindgen.Generate(g, m.resolve, world, files); err != nil {
		return generatedMsg{err: err}
	}
	msg := generatedMsg{world: witbindgen.WorldID(world), files: files}
	if lister, ok := g.(interface{ Functions() []pascal.FuncInfo }); ok {
		msg.funcs = lister.Functions()
	}
	return msg
}

func (m *browserModel) applyFilter() {
	q := strings.ToLower(m.filter.Value())
	m.visible = m.visible[:0]
	for i, f := range m.funcs {
		if q == "" || strings.Contains(strings.ToLower(f.Name), q) || strings.Contains(strings.ToLower(f.WitName), q) {
			m.visible = append(m.visible, i)
		}
	}
	if m.selected >= len(m.visible) {
		m.selected = max(len(m.visible)-1, 0)
	}
}

// showDecl opens the implementation include at the selected function.
func (m *browserModel) showDecl() {
	if len(m.visible) == 0 {
		return
	}
	f := m.funcs[m.visible[m.selected]]
	var content string
	for name, data := range m.files.All() {
		if strings.HasSuffix(name, ".inc") && !strings.HasSuffix(name, "h.inc") {
			content = string(data)
		}
	}
	m.view.SetContent(content)
	m.view.GotoTop()
	// Exported functions are only declared in the header, so their
	// adapter is located by the call of the user's implementation.
	target := f.Decl
	if f.Export {
		target = f.Name + "("
	}
	for i, line := range strings.Split(content, "\n") {
		if strings.Contains(line, target) {
			m.view.SetYOffset(i)
			break
		}
	}
	m.state = stateFile
}

func (m *browserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.view = viewport.New(msg.Width, msg.Height-4)
			m.ready = true
		} else {
			m.view.Width = msg.Width
			m.view.Height = msg.Height - 4
		}

	case generatedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.world = msg.world
		m.files = msg.files
		m.funcs = msg.funcs
		m.applyFilter()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "q":
			if !m.filter.Focused() {
				return m, tea.Quit
			}
		case "/":
			if m.state == stateList && !m.filter.Focused() {
				m.filter.Focus()
				return m, nil
			}
		case "esc":
			if m.filter.Focused() {
				m.filter.Blur()
				return m, nil
			}
			m.state = stateList
			return m, nil
		case "up", "k":
			if m.state == stateList && !m.filter.Focused() && m.selected > 0 {
				m.selected--
				return m, nil
			}
		case "down", "j":
			if m.state == stateList && !m.filter.Focused() && m.selected < len(m.visible)-1 {
				m.selected++
				return m, nil
			}
		case "enter":
			if m.filter.Focused() {
				m.filter.Blur()
				return m, nil
			}
			if m.state == stateList {
				m.showDecl()
				return m, nil
			}
		}
	}

	var cmd tea.Cmd
	switch {
	case m.filter.Focused():
		m.filter, cmd = m.filter.Update(msg)
		m.applyFilter()
	case m.state == stateFile:
		m.view, cmd = m.view.Update(msg)
	}
	return m, cmd
}

func (m *browserModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}
	if m.files == nil {
		return "Generating bindings..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("witgen"))
	b.WriteString(" ")
	b.WriteString(m.world)
	b.WriteString("\n\n")

	switch m.state {
	case stateList:
		b.WriteString(m.filter.View())
		b.WriteString("\n\n")
		for i, idx := range m.visible {
			line := "  " + m.formatFunc(m.funcs[idx])
			if i == m.selected {
				line = selectedStyle.Render("> " + m.funcs[idx].Decl)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • / filter • enter open • q quit"))

	case stateFile:
		b.WriteString(m.view.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ scroll • esc back • q quit"))
	}
	return b.String()
}

func (m *browserModel) formatFunc(f pascal.FuncInfo) string {
	dir := "import"
	if f.Export {
		dir = "export"
	}
	iface := f.Interface
	if iface == "" {
		iface = "world"
	}
	return funcStyle.Render(f.Decl) + "  " + ifaceStyle.Render(dir+" "+iface+"#"+f.WitName)
}

func runBrowser(resolve *wit.Resolve, cfg witbindgen.Config) error {
	p := tea.NewProgram(newBrowserModel(resolve, cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
