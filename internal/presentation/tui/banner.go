package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
)

// PrintBanner writes the FlashSol banner and version to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.EnvColorProfile()
	lines := []struct {
		text, color string
	}{
		{"  _____ _           _     ____        _ ", "#fde047"},
		{" |  ___| | __ _ ___| |__ / ___|  ___ | |", "#facc15"},
		{" | |_  | |/ _` / __| '_ \\\\___ \\ / _ \\| |", "#f59e0b"},
		{" |  _| | | (_| \\__ \\ | | |___) | (_) | |", "#f97316"},
		{" |_|   |_|\\__,_|___/_| |_|____/ \\___/|_|", "#ef4444"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	if v := strings.TrimSpace(version); v != "" {
		fmt.Fprintln(w, termenv.String("  v"+v).Faint())
	}
	fmt.Fprintln(w)
}
