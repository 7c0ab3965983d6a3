package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{`            _ _`, "#818cf8"},
	{`   ___ ___ | | | ___   __ _ _   _ _   _`, "#a78bfa"},
	{`  / __/ _ \| | |/ _ \ / _` + "`" + ` | | | | | | |`, "#c084fc"},
	{` | (_| (_) | | | (_) | (_| | |_| | |_| |`, "#e879f9"},
	{`  \___\___/|_|_|\___/ \__, |\__,_|\__, |`, "#f472b6"},
	{`                         |_|      |___/`, "#fb7185"},
}

// PrintBanner writes the colloquy banner and version to w, colored for the
// terminal behind w.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	fmt.Fprintln(w)
	for _, line := range bannerLines {
		fmt.Fprintln(w, out.String(line.text).Foreground(out.Color(line.color)))
	}
	fmt.Fprintln(w, out.String("  v"+version).Faint())
	fmt.Fprintln(w)
}
