package output

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

// FormatBytes converts bytes to human-readable format
func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func FormatSpeed(bytes int64, elapsed float64) string {
	if elapsed <= 0 {
		return "0 B/s"
	}
	formatted := FormatBytes(uint64(float64(bytes) / elapsed))
	return formatted[:len(formatted)-1] + "B/s"
}

// ProgressBar renders "•━━━   • 42.0% •" for current out of total. An
// unknown total (<= 0) renders an empty bar.
func ProgressBar(current, total int64, width int) string {
	if width <= 0 {
		width = 30
	}
	percent := 0.0
	if total > 0 {
		percent = float64(min(max(current, 0), total)) / float64(total)
	}
	filled := max(0, min(int(percent*float64(width)), width))
	bar := StyleSymbols["bullet"] + strings.Repeat(StyleSymbols["hline"], filled) + strings.Repeat(" ", width-filled) + StyleSymbols["bullet"]
	return fmt.Sprintf("%s %.1f%% %s", bar, percent*100, StyleSymbols["bullet"])
}

// Progress redraws a single status line on a terminal. Updates are
// throttled; nothing is drawn when Out is not a terminal.
type Progress struct {
	mu       sync.Mutex
	label    string
	start    time.Time
	last     time.Time
	interval time.Duration
	enabled  bool
}

func NewProgress(label string) *Progress {
	f, ok := Out.(*os.File)
	return &Progress{
		label:    label,
		start:    time.Now(),
		interval: 100 * time.Millisecond,
		enabled:  ok && term.IsTerminal(int(f.Fd())),
	}
}

// Update matches the transfer progress hook signature.
func (p *Progress) Update(received, expected int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled || time.Since(p.last) < p.interval {
		return
	}
	p.last = time.Now()
	p.draw(received, expected)
}

func (p *Progress) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.enabled && !p.last.IsZero() {
		fmt.Fprint(Out, "\r\033[K")
	}
}

func (p *Progress) draw(received, expected int64) {
	elapsed := time.Since(p.start).Seconds()
	size := FormatBytes(uint64(max(received, 0)))
	if expected > 0 {
		size += " / " + FormatBytes(uint64(expected))
	}
	line := fmt.Sprintf("%s %s %s %s %s", p.label, ProgressBar(received, expected, barWidth()), size, StyleSymbols["bullet"], FormatSpeed(received, elapsed))
	fmt.Fprint(Out, "\r\033[K"+debugStyle.Render(line))
}

func barWidth() int {
	width, _, err := term.GetSize(int(os.Stderr.Fd()))
	if err != nil || width <= 0 {
		return 30
	}
	return max(10, min(40, width/3))
}
