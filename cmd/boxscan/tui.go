package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"boxscan/internal/label"
	"boxscan/internal/workflow"
)

type screenID int

const (
	screenBox screenID = iota
	screenLabel
)

type stateMsg struct{}

type noticeMsg workflow.Notice

type doneMsg struct {
	op  string
	err error
}

type quitMsg struct{}

type clockMsg time.Time

const maxNotices = 6

type tuiModel struct {
	ctx    context.Context
	a      *app
	events <-chan tea.Msg

	screen   screenID
	width    int
	height   int
	now      time.Time
	notices  []workflow.Notice
	box      workflow.BoxView
	label    workflow.LabelView
	printer  string
	selected int
	field    int
	edit     string
	editing  bool
	confirm  bool
	running  string
}

func runTUI(ctx context.Context, a *app, start string) error {
	events := make(chan tea.Msg, 64)
	push := func(msg tea.Msg) {
		select {
		case events <- msg:
		default:
		}
	}
	a.box.OnChange(func() { push(stateMsg{}) })
	a.label.OnChange(func() { push(stateMsg{}) })
	a.box.OnNotice(func(n workflow.Notice) { push(noticeMsg(n)) })
	a.label.OnNotice(func(n workflow.Notice) { push(noticeMsg(n)) })

	m := tuiModel{
		ctx:    ctx,
		a:      a,
		events: events,
		now:    time.Now(),
	}
	if start == "label" {
		m.screen = screenLabel
	}
	m.refresh()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

func (m tuiModel) Init() tea.Cmd {
	return tea.Batch(waitForEventCmd(m.ctx, m.events), clockTickCmd(), m.runCmd("restore", m.a.box.Restore))
}

func (m *tuiModel) refresh() {
	m.box = m.a.box.View()
	m.label = m.a.label.View()
	if t, err := m.a.printer.Target(); err == nil {
		m.printer = t.Addr()
	} else {
		m.printer = "xato: " + err.Error()
	}
	if m.box.Box != nil && m.selected >= len(m.box.Box.Waybills) {
		m.selected = len(m.box.Box.Waybills) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
	if m.label.Phase != workflow.PhaseForm {
		m.editing = false
		m.edit = ""
	}
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	case stateMsg:
		m.refresh()
		return m, waitForEventCmd(m.ctx, m.events)
	case noticeMsg:
		m.notices = append(m.notices, workflow.Notice(msg))
		if len(m.notices) > maxNotices {
			m.notices = m.notices[len(m.notices)-maxNotices:]
		}
		m.refresh()
		return m, waitForEventCmd(m.ctx, m.events)
	case doneMsg:
		m.running = ""
		if msg.err != nil && msg.op == "restore" {
			m.notices = append(m.notices, workflow.Notice{Level: workflow.LevelError, Text: msg.err.Error(), At: time.Now()})
		}
		m.refresh()
		return m, nil
	case quitMsg:
		return m, tea.Quit
	case clockMsg:
		m.now = time.Time(msg)
		return m, clockTickCmd()
	default:
		return m, nil
	}
}

func (m tuiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "ctrl+c", "ctrl+q":
		return m, tea.Quit
	case "tab":
		if m.screen == screenBox {
			m.a.box.Leave()
			m.screen = screenLabel
		} else {
			m.a.label.Leave()
			m.screen = screenBox
		}
		m.confirm = false
		m.refresh()
		return m, nil
	}

	if m.screen == screenBox {
		return m.handleBoxKey(msg, key)
	}
	return m.handleLabelKey(msg, key)
}

func (m tuiModel) handleBoxKey(msg tea.KeyMsg, key string) (tea.Model, tea.Cmd) {
	if m.confirm {
		m.confirm = false
		if key == "y" || key == "enter" {
			m.running = "finish"
			return m, m.runCmd("finish", m.a.box.Finish)
		}
		return m, nil
	}

	switch m.box.Phase {
	case workflow.PhaseConfirm:
		switch key {
		case "enter", "ctrl+s":
			return m, m.runCmd("start", m.a.box.StartScanning)
		case "ctrl+n", "esc":
			m.a.box.ScanNewBox()
			return m, nil
		}
	case workflow.PhaseTracking:
		switch key {
		case "up":
			if m.selected > 0 {
				m.selected--
			}
			return m, nil
		case "down":
			if m.box.Box != nil && m.selected < len(m.box.Box.Waybills)-1 {
				m.selected++
			}
			return m, nil
		case "ctrl+d", "delete":
			if m.box.Box == nil || len(m.box.Box.Waybills) == 0 {
				return m, nil
			}
			tn := m.box.Box.Waybills[m.selected].TrackingNumber
			m.running = "remove " + tn
			return m, m.runCmd("remove", func() error { return m.a.box.Remove(tn) })
		case "ctrl+f":
			m.confirm = true
			return m, nil
		case "ctrl+r":
			return m, m.runCmd("refresh", func() error { m.a.box.Refresh(); return nil })
		case "ctrl+n":
			m.a.box.ScanNewBox()
			return m, nil
		}
	}

	typeInto(m.a.box.Input(), msg)
	m.refresh()
	return m, nil
}

func (m tuiModel) handleLabelKey(msg tea.KeyMsg, key string) (tea.Model, tea.Cmd) {
	if m.label.Phase == workflow.PhaseSubmitting {
		return m, nil
	}
	if m.label.Phase != workflow.PhaseForm {
		typeInto(m.a.label.Input(), msg)
		m.refresh()
		return m, nil
	}

	fields := label.Fields()
	switch key {
	case "esc":
		m.a.label.Cancel()
		return m, nil
	case "up", "shift+tab":
		m.commitEdit()
		if m.field > 0 {
			m.field--
		}
		return m, nil
	case "down", "enter":
		m.commitEdit()
		if m.field < len(fields)-1 {
			m.field++
		}
		m.refresh()
		return m, nil
	case "ctrl+p", "ctrl+s":
		m.commitEdit()
		m.running = "print"
		return m, m.runCmd("print", func() error {
			_, err := m.a.label.Submit()
			return err
		})
	case "backspace":
		if !m.editing {
			m.editing = true
			m.edit = fieldValue(m.label.Params, fields[m.field])
		}
		if r := []rune(m.edit); len(r) > 0 {
			m.edit = string(r[:len(r)-1])
		}
		return m, nil
	}

	if msg.Type == tea.KeyRunes {
		if !m.editing {
			m.editing = true
			m.edit = ""
		}
		m.edit += string(msg.Runes)
	}
	return m, nil
}

// commitEdit applies the pending field text. A parse error becomes a notice
// and the field keeps its previous value.
func (m *tuiModel) commitEdit() {
	if !m.editing {
		return
	}
	fields := label.Fields()
	if err := m.a.label.SetField(fields[m.field], m.edit); err != nil {
		m.notices = append(m.notices, workflow.Notice{Level: workflow.LevelWarn, Text: err.Error(), At: time.Now()})
	}
	m.editing = false
	m.edit = ""
	m.refresh()
}

func (m tuiModel) runCmd(op string, f func() error) tea.Cmd {
	return func() tea.Msg {
		return doneMsg{op: op, err: f()}
	}
}

func typeInto(buf interface {
	Append(string) bool
	Backspace() bool
}, msg tea.KeyMsg) {
	switch msg.Type {
	case tea.KeyRunes:
		buf.Append(string(msg.Runes))
	case tea.KeySpace:
		buf.Append(" ")
	case tea.KeyBackspace:
		buf.Backspace()
	}
}

func fieldValue(p label.Params, name string) string {
	switch name {
	case "weight":
		return strconv.FormatFloat(p.Weight, 'f', -1, 64)
	case "waybillCount":
		return strconv.Itoa(p.WaybillCount)
	case "length":
		return strconv.FormatFloat(p.Length, 'f', -1, 64)
	case "width":
		return strconv.FormatFloat(p.Width, 'f', -1, 64)
	case "height":
		return strconv.FormatFloat(p.Height, 'f', -1, 64)
	}
	return ""
}

func fieldTitle(name string) string {
	switch name {
	case "weight":
		return "Og'irlik (kg)"
	case "waybillCount":
		return "Yuklar soni"
	case "length":
		return "Uzunlik (sm)"
	case "width":
		return "Eni (sm)"
	case "height":
		return "Balandlik (sm)"
	}
	return name
}

func (m tuiModel) View() string {
	viewWidth, _ := viewSize(m.width, m.height)

	tabs := []string{"Qutilar", "1C yorliq"}
	for i := range tabs {
		if screenID(i) == m.screen {
			tabs[i] = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")).Render("[" + tabs[i] + "]")
		} else {
			tabs[i] = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render(" " + tabs[i] + " ")
		}
	}
	titleLine := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")).Render("BOXSCAN") + "  " + strings.Join(tabs, " ")
	helpLine := lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render(m.helpText())
	header := renderPanel("Dashboard", []string{titleLine, helpLine}, viewWidth, "63", 2)

	var body string
	if m.screen == screenBox {
		body = m.boxPanels(viewWidth)
	} else {
		body = m.labelPanels(viewWidth)
	}

	noticeLines := make([]string, 0, len(m.notices))
	for i := len(m.notices) - 1; i >= 0; i-- {
		n := m.notices[i]
		noticeLines = append(noticeLines, n.At.Format("15:04:05")+" "+renderBadge(badgeKind(n.Level))+" "+n.Text)
	}
	if len(noticeLines) == 0 {
		noticeLines = []string{"(bo'sh)"}
	}
	noticePanel := renderPanel("Xabarlar", noticeLines, viewWidth, "99", 2)

	now := m.now
	if now.IsZero() {
		now = time.Now()
	}
	status := "Printer: " + elideMiddle(m.printer, 40) + "  |  " + now.Format("15:04:05")
	if m.running != "" {
		status += "  |  " + m.running + "..."
	}
	statusLine := lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Render(status)

	layout := strings.Join([]string{header, "", body, "", noticePanel, statusLine}, "\n")
	return lipgloss.NewStyle().Padding(0, 1).Render(layout)
}

func (m tuiModel) helpText() string {
	base := "Tab: ekran  |  Ctrl+Q: chiqish"
	if m.screen == screenBox {
		switch {
		case m.confirm:
			return "Qutini yakunlaysizmi? y: ha  |  boshqa tugma: yo'q"
		case m.box.Phase == workflow.PhaseConfirm:
			return "Enter: skanerlashni boshlash  |  Esc: yangi quti  |  " + base
		case m.box.Phase == workflow.PhaseTracking:
			return "Ctrl+F: yakunlash  |  Ctrl+D: o'chirish  |  Ctrl+R: yangilash  |  Ctrl+N: yangi quti  |  " + base
		}
		return "Quti raqamini skanerlang  |  " + base
	}
	if m.label.Phase == workflow.PhaseForm {
		return "Enter: keyingi maydon  |  Ctrl+P: chop etish  |  Esc: bekor qilish  |  " + base
	}
	return "Quti yoki trek raqamini skanerlang  |  " + base
}

func (m tuiModel) boxPanels(width int) string {
	leftW, rightW := splitWidths(width)

	input := m.box.Input
	if input == "" {
		input = "_"
	}
	state := "Bosqich: " + m.box.Phase.String()
	if m.box.Busy {
		state += "  " + renderBadge("WARN")
	}
	boxLines := []string{
		lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")).Render("> " + input),
		state,
	}
	if m.box.HasOpenBox {
		boxLines = append(boxLines, fmt.Sprintf("Quti: %s (id %d)", m.box.OpenBox.BoxNo, m.box.OpenBox.BoxID))
	}
	if b := m.box.Box; b != nil {
		boxLines = append(boxLines,
			"Holat: "+b.Status,
			fmt.Sprintf("Yuklar: %d", len(b.Waybills)),
		)
	}
	left := renderPanel("Quti", boxLines, leftW, "45", 3)

	rows := []string{}
	if b := m.box.Box; b != nil {
		for i, w := range b.Waybills {
			prefix := "  "
			if i == m.selected && m.box.Phase == workflow.PhaseTracking {
				prefix = "> "
			}
			rows = append(rows, fmt.Sprintf("%s%s  %.3f kg", prefix, w.TrackingNumber, w.Weight))
		}
	}
	if len(rows) == 0 {
		rows = []string{"(bo'sh)"}
	}
	right := renderPanel("Trek raqamlar", rows, rightW, "69", 2)

	return lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right)
}

func (m tuiModel) labelPanels(width int) string {
	leftW, rightW := splitWidths(width)

	input := m.label.Input
	if input == "" {
		input = "_"
	}
	left := renderPanel("Skaner", []string{
		lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")).Render("> " + input),
		"Bosqich: " + m.label.Phase.String(),
		"Turi: " + m.label.Kind.String(),
	}, leftW, "45", 3)

	if m.label.Phase == workflow.PhaseScanCode {
		return lipgloss.JoinHorizontal(lipgloss.Top, left, " ", renderPanel("Yorliq", []string{"(forma yopiq)"}, rightW, "69", 2))
	}

	p := m.label.Params
	rows := []string{"Raqam: " + p.BoxNo}
	for i, name := range label.Fields() {
		val := fieldValue(p, name)
		prefix := "  "
		if i == m.field {
			prefix = "> "
			if m.editing {
				val = m.edit + "_"
			}
		}
		rows = append(rows, fmt.Sprintf("%s%-16s %s", prefix, fieldTitle(name), val))
	}
	rows = append(rows, fmt.Sprintf("  %-16s %s m³", "Hajm", label.FormatVolume(p.Volume)))
	right := renderPanel("Yorliq", rows, rightW, "69", 2)
	return lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right)
}

func waitForEventCmd(ctx context.Context, events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return quitMsg{}
		case msg, ok := <-events:
			if !ok {
				return quitMsg{}
			}
			return msg
		}
	}
}

func clockTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return clockMsg(t)
	})
}

func badgeKind(l workflow.Level) string {
	switch l {
	case workflow.LevelInfo:
		return "OK"
	case workflow.LevelWarn:
		return "WARN"
	default:
		return "ERROR"
	}
}

func viewSize(w, h int) (int, int) {
	if w <= 0 {
		w = 100
	}
	if h <= 0 {
		h = 32
	}

	width := w - 4
	if width > 118 {
		width = 118
	}
	if width < 72 {
		width = 72
	}

	height := h - 2
	if height < 20 {
		height = 20
	}
	return width, height
}

func splitWidths(total int) (int, int) {
	left := int(math.Round(float64(total) * 0.45))
	if left < 34 {
		left = 34
	}
	right := total - left - 1
	if right < 30 {
		right = 30
		left = total - right - 1
	}
	return left, right
}

func renderPanel(title string, lines []string, width int, borderColor string, titleColor int) string {
	if width < 24 {
		width = 24
	}
	inner := width - 4

	normalized := make([]string, 0, len(lines)+2)
	for _, line := range lines {
		normalized = append(normalized, wrapByWidth(line, inner)...)
	}
	if len(normalized) == 0 {
		normalized = []string{""}
	}

	titleStyled := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(strconv.Itoa(titleColor))).Render(title)
	content := titleStyled + "\n" + strings.Join(normalized, "\n")

	style := lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(borderColor))
	return style.Render(content)
}

func renderBadge(kind string) string {
	kind = strings.ToUpper(strings.TrimSpace(kind))
	s := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	switch kind {
	case "OK":
		return s.Foreground(lipgloss.Color("46")).Background(lipgloss.Color("22")).Render("OK")
	case "WARN":
		return s.Foreground(lipgloss.Color("228")).Background(lipgloss.Color("94")).Render("WARN")
	default:
		return s.Foreground(lipgloss.Color("231")).Background(lipgloss.Color("160")).Render("ERROR")
	}
}

// wrapByWidth splits on newlines only; styled lines are left to lipgloss,
// which measures printable width.
func wrapByWidth(text string, width int) []string {
	if width <= 0 || text == "" {
		return []string{""}
	}
	return strings.Split(text, "\n")
}

func truncateText(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

func elideMiddle(text string, max int) string {
	runes := []rune(strings.TrimSpace(text))
	if max <= 0 {
		return ""
	}
	if len(runes) <= max {
		return string(runes)
	}
	if max <= 5 {
		return truncateText(string(runes), max)
	}
	keep := (max - 3) / 2
	return string(runes[:keep]) + "..." + string(runes[len(runes)-keep:])
}
