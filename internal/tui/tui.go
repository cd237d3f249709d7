package tui

import (
	"fmt"
	"log"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/pynezz/heimdall/internal/util"
	"github.com/pynezz/heimdall/pkg/version"
)

type HeaderStruct struct {
	Color   string
	Version string
	Content string
}

var Header = &HeaderStruct{
	Color:   "1",
	Version: version.Version(),
	Content: AsciiArt(),
}

func AsciiArt() string {
	return `
██╗  ██╗███████╗██╗███╗   ███╗██████╗  █████╗ ██╗     ██╗
██║  ██║██╔════╝██║████╗ ████║██╔══██╗██╔══██╗██║     ██║
███████║█████╗  ██║██╔████╔██║██║  ██║███████║██║     ██║
██╔══██║██╔══╝  ██║██║╚██╔╝██║██║  ██║██╔══██║██║     ██║
██║  ██║███████╗██║██║ ╚═╝ ██║██████╔╝██║  ██║███████╗███████╗
╚═╝  ╚═╝╚══════╝╚═╝╚═╝     ╚═╝╚═════╝ ╚═╝  ╚═╝╚══════╝╚══════╝
%s`
}

// Should be used in conjunction with the util package for proper formatting
func (h *HeaderStruct) ColorHeader(color string) string {
	return util.ColorF(color, h.Content, h.Version)
}

func (h *HeaderStruct) PrintHeader() {
	if h.Color != "" {
		fmt.Println(h.ColorHeader(h.Color))
	} else {
		fmt.Println(h.Content, h.Version)
	}
}

// Dashboard shows the watcher activity and the live alert stream side by
// side until any key is pressed.
type Dashboard struct {
	watcher <-chan string
	alerts  <-chan string
}

func NewDashboard(watcher, alerts <-chan string) *Dashboard {
	return &Dashboard{watcher: watcher, alerts: alerts}
}

func (d *Dashboard) Display() {
	Header.PrintHeader()
	if err := ui.Init(); err != nil {
		log.Fatalf("failed to initialize termui: %v", err)
	}
	defer ui.Close()

	watcherPanel := widgets.NewParagraph()
	watcherPanel.Title = "Log Watcher"
	watcherPanel.Text = "Waiting for new log files...\n"
	watcherPanel.SetRect(0, 0, 80, 12)
	watcherPanel.BorderStyle.Fg = ui.ColorYellow

	alertPanel := widgets.NewParagraph()
	alertPanel.Title = "Alerts"
	alertPanel.Text = "No alerts yet.\n"
	alertPanel.SetRect(0, 12, 80, 24)
	alertPanel.BorderStyle.Fg = ui.ColorRed

	ui.Render(watcherPanel, alertPanel)

	go feedPanel(watcherPanel, d.watcher)
	go feedPanel(alertPanel, d.alerts)

	for e := range ui.PollEvents() {
		if e.Type == ui.KeyboardEvent {
			break
		}
	}
}

func feedPanel(p *widgets.Paragraph, data <-chan string) {
	if data == nil {
		return
	}
	for msg := range data {
		p.Text += msg + "\n"
		ui.Render(p)
	}
}
