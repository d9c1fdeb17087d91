package audit

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/jobsync/internal/model"
)

// rowsPerJob is title, subtitle and a blank separator.
const rowsPerJob = 3

const timeLayout = "2006-01-02 15:04"

type viewState int

const (
	viewList viewState = iota
	viewDetail
)

const (
	colorAccent = lipgloss.Color("39")
	colorMuted  = lipgloss.Color("240")
	colorDim    = lipgloss.Color("245")
	colorText   = lipgloss.Color("252")
	colorBright = lipgloss.Color("15")
	colorSelect = lipgloss.Color("24")
	colorAlert  = lipgloss.Color("196")
)

func fg(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

func frame(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(c)
}

var (
	paneHeading  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	statusStyle  = fg(colorText).Background(lipgloss.Color("236")).Padding(0, 1)
	rowTitle     = lipgloss.NewStyle().Bold(true)
	rowSub       = fg(colorDim)
	rowTitleSel  = fg(colorBright).Background(colorSelect).Bold(true)
	rowSubSel    = fg(colorText).Background(colorSelect)
	fieldLabel   = fg(colorAccent).Bold(true).Width(16)
	detailHeader = fg(colorBright).Bold(true).MarginBottom(1)
	alertStyle   = fg(colorAlert)
	dividerStyle = fg(colorMuted)
	hintStyle    = fg(colorDim).Italic(true)
	bodyStyle    = fg(colorText)
)

// pane is one scrollable job list.
type pane struct {
	title  string
	jobs   []model.ClassifiedJob
	cursor int
	vp     viewport.Model
}

func (p *pane) move(delta int) {
	p.cursor = clamp(p.cursor+delta, 0, max(len(p.jobs)-1, 0))
}

// follow scrolls the viewport so the cursor row is on screen.
func (p *pane) follow() {
	top := p.cursor * rowsPerJob
	bottom := top + rowsPerJob - 1
	switch {
	case top < p.vp.YOffset:
		p.vp.SetYOffset(top)
	case bottom >= p.vp.YOffset+p.vp.Height:
		p.vp.SetYOffset(bottom - p.vp.Height + 1)
	}
}

func (p *pane) selected() (model.ClassifiedJob, bool) {
	if len(p.jobs) == 0 {
		return model.ClassifiedJob{}, false
	}
	return p.jobs[p.cursor], true
}

func (p *pane) refresh(active bool) {
	cursor := -1
	if active {
		cursor = p.cursor
	}
	p.vp.SetContent(renderJobs(p.jobs, cursor))
}

type browseModel struct {
	data   Data
	panes  []pane
	active int
	width  int
	height int
	ready  bool

	view     viewState
	detail   model.ClassifiedJob
	detailVP viewport.Model
	showText bool

	opener   func(url string)
	wantQuit bool
}

// newBrowseModel shows all and matched records; the failures pane only
// appears when some scrape failed.
func newBrowseModel(data Data) browseModel {
	panes := []pane{
		{title: "All Jobs", jobs: data.All},
		{title: "Matched Jobs", jobs: data.Matched},
	}
	if len(data.Failures) > 0 {
		panes = append(panes, pane{title: "Scrape Failures", jobs: data.Failures})
	}
	return browseModel{data: data, panes: panes, opener: openURL}
}

func (m browseModel) Init() tea.Cmd { return nil }

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		if m.view == viewDetail {
			m.detailVP.Width, m.detailVP.Height = m.width-4, m.height-4
			m.detailVP.SetContent(m.renderDetail())
		}
		return m, nil
	case tea.KeyMsg:
		if m.view == viewDetail {
			return m.handleDetailKey(msg)
		}
		return m.handleListKey(msg)
	}
	return m, nil
}

func (m browseModel) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.wantQuit = true
		return m, tea.Quit
	case "esc", "b":
		return m, tea.Quit
	case "tab", "right", "l":
		m.focus(m.active + 1)
		return m, nil
	case "shift+tab", "left", "h":
		m.focus(m.active - 1)
		return m, nil
	case "up", "k", "down", "j":
		delta := 1
		if s := msg.String(); s == "up" || s == "k" {
			delta = -1
		}
		p := &m.panes[m.active]
		p.move(delta)
		p.refresh(true)
		p.follow()
		return m, nil
	case "enter":
		j, ok := m.panes[m.active].selected()
		if !ok {
			return m, nil
		}
		m.view = viewDetail
		m.detail = j
		m.showText = false
		m.detailVP = viewport.New(m.width-4, m.height-4)
		m.detailVP.SetContent(m.renderDetail())
		return m, nil
	}

	// pgup/pgdn/home/end scroll the focused pane.
	var cmd tea.Cmd
	m.panes[m.active].vp, cmd = m.panes[m.active].vp.Update(msg)
	return m, cmd
}

func (m browseModel) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.wantQuit = true
		return m, tea.Quit
	case "esc", "backspace":
		m.view = viewList
		return m, nil
	case "o":
		if m.opener != nil {
			m.opener(m.detail.ViewURL())
		}
		return m, nil
	case "r":
		if hasText(m.detail.JobRecord) {
			m.showText = !m.showText
			m.detailVP.SetContent(m.renderDetail())
			m.detailVP.SetYOffset(0)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.detailVP, cmd = m.detailVP.Update(msg)
	return m, cmd
}

// focus moves focus to pane i, wrapping around.
func (m *browseModel) focus(i int) {
	n := len(m.panes)
	m.active = ((i % n) + n) % n
	m.redraw()
}

func (m *browseModel) layout() {
	n := len(m.panes)
	// Each pane has two border columns; panes are one column apart.
	width := max((m.width-3*n+1)/n, 20)
	// Heading, top and bottom border, status bar.
	height := max(m.height-4, 5)

	for i := range m.panes {
		if !m.ready {
			m.panes[i].vp = viewport.New(width, height)
			continue
		}
		m.panes[i].vp.Width = width
		m.panes[i].vp.Height = height
	}
	m.ready = true
	m.redraw()
}

func (m *browseModel) redraw() {
	for i := range m.panes {
		m.panes[i].refresh(i == m.active)
	}
}

func (m browseModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	if m.view == viewDetail {
		return m.viewDetail()
	}
	return m.viewList()
}

func (m browseModel) viewList() string {
	var headings, boxes []string
	for i, p := range m.panes {
		color := colorMuted
		if i == m.active {
			color = colorAccent
		}
		if i > 0 {
			headings = append(headings, " ")
			boxes = append(boxes, " ")
		}
		heading := paneHeading.Foreground(color).Render(fmt.Sprintf(" %s (%d)", p.title, len(p.jobs)))
		headings = append(headings, lipgloss.NewStyle().Width(p.vp.Width+2).Render(heading))
		boxes = append(boxes, frame(color).Width(p.vp.Width).Render(p.vp.View()))
	}

	status := fmt.Sprintf(" %s | %d total | %d matched | %d scrape failures    tab switch  ↑/↓ move  enter detail  esc back  q quit",
		m.data.Info.ID, len(m.data.All), len(m.data.Matched), len(m.data.Failures))

	return lipgloss.JoinHorizontal(lipgloss.Top, headings...) + "\n" +
		lipgloss.JoinHorizontal(lipgloss.Top, boxes...) + "\n" +
		statusStyle.Width(m.width).Render(status)
}

func (m browseModel) viewDetail() string {
	keys := " o open URL  esc back  ↑/↓ scroll  q quit"
	if hasText(m.detail.JobRecord) {
		keys = " o open URL  r description  esc back  ↑/↓ scroll  q quit"
	}
	return detailHeader.Render("Job Details") + "\n" +
		frame(colorAccent).Width(m.width-2).Render(m.detailVP.View()) + "\n" +
		statusStyle.Width(m.width).Render(keys)
}

func (m browseModel) renderDetail() string {
	j := m.detail
	var b strings.Builder

	field := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(fieldLabel.Render(label) + value + "\n")
	}
	stamp := func(label string, t interface{ IsZero() bool }, s string) {
		if !t.IsZero() {
			field(label, s)
		}
	}

	field("Title", j.Title)
	field("Employer", j.Employer)
	field("Location", j.Location)
	field("Job ID", j.ID)
	field("Source", j.Source)
	field("Categories", strings.Join(j.Categories, ", "))

	b.WriteByte('\n')
	field("Published", j.PublicationDate)
	stamp("First Seen", j.FirstSeen, j.FirstSeen.Local().Format(timeLayout))
	stamp("Last Seen", j.LastSeen, j.LastSeen.Local().Format(timeLayout))
	for _, ref := range j.Provenance {
		search := ref.Query
		if ref.Location != "" {
			search += " @ " + ref.Location
		}
		field("Search", search)
	}

	b.WriteByte('\n')
	field("Job URL", j.ViewURL())
	if d := j.Details; d != nil {
		if d.URL != j.ViewURL() {
			field("Scraped URL", d.URL)
		}
		stamp("Scraped At", d.ScrapedAt, d.ScrapedAt.Local().Format(timeLayout))
		if !d.Success {
			reason := "scrape failed: " + d.Warning
			if d.Error != "" {
				reason += " (" + d.Error + ")"
			}
			b.WriteString("\n" + alertStyle.Render("⚠ "+reason) + "\n")
		}
	}
	if j.WasTruncated {
		field("Truncated", fmt.Sprintf("description cut from %d characters", j.OriginalLength))
	}

	if !hasText(j.JobRecord) {
		return b.String()
	}
	width := max(m.width-8, 20)
	b.WriteByte('\n')
	if !m.showText {
		b.WriteString(hintStyle.Render("  press r to read job description") + "\n")
		return b.String()
	}
	rule := "── Job Description " + strings.Repeat("─", max(width-19, 3))
	b.WriteString(dividerStyle.Render(rule) + "\n\n")
	b.WriteString(bodyStyle.Render(wordWrap(j.Details.Text, width)) + "\n")
	return b.String()
}

func hasText(rec model.JobRecord) bool {
	return rec.Details != nil && rec.Details.Text != ""
}

// renderJobs lists jobs as two rows each; cursor < 0 highlights nothing.
func renderJobs(jobs []model.ClassifiedJob, cursor int) string {
	if len(jobs) == 0 {
		return "  (no jobs)"
	}

	rows := make([]string, 0, len(jobs)*rowsPerJob)
	for i, j := range jobs {
		title, sub, marker := rowTitle, rowSub, "  "
		if i == cursor {
			title, sub, marker = rowTitleSel, rowSubSel, "> "
		}

		meta := []string{j.Employer, j.Location}
		if j.PublicationDate != "" {
			meta = append(meta, j.PublicationDate)
		}
		if len(j.Categories) > 0 {
			meta = append(meta, strings.Join(j.Categories, ", "))
		} else if d := j.Details; d != nil && !d.Success {
			meta = append(meta, d.Warning)
		}

		rows = append(rows, marker+title.Render(j.Title), marker+sub.Render(strings.Join(meta, " · ")))
		if i < len(jobs)-1 {
			rows = append(rows, "")
		}
	}
	return strings.Join(rows, "\n")
}

// wordWrap breaks each paragraph of text at width; blank lines survive.
func wordWrap(text string, width int) string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		cur := words[0]
		for _, w := range words[1:] {
			if len(cur)+1+len(w) > width {
				lines = append(lines, cur)
				cur = w
				continue
			}
			cur += " " + w
		}
		lines = append(lines, cur)
	}
	return strings.Join(lines, "\n")
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

// openURL hands url to the platform's opener without waiting.
func openURL(url string) {
	var name string
	var args []string
	switch runtime.GOOS {
	case "darwin":
		name = "open"
	case "linux":
		name = "xdg-open"
	case "windows":
		name, args = "cmd", []string{"/c", "start"}
	default:
		return
	}
	_ = exec.Command(name, append(args, url)...).Start()
}

// RunBrowseTUI shows one session. It reports true when the user quit, false
// when they backed out to the session list.
func RunBrowseTUI(data Data) (bool, error) {
	result, err := tea.NewProgram(newBrowseModel(data), tea.WithAltScreen()).Run()
	if err != nil {
		return false, err
	}
	return result.(browseModel).wantQuit, nil
}
