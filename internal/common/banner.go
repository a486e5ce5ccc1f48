package common

import (
	"fmt"
	"strings"
)

// PrintBanner displays the application name and version at startup
func PrintBanner(version string) {
	fmt.Println(Banner("Colligo", version))
}

// Banner renders a boxed startup banner for the given name and version
func Banner(name, version string) string {
	label := fmt.Sprintf("%s %s", name, version)
	width := len(label) + 4

	var b strings.Builder
	b.WriteString("+" + strings.Repeat("-", width) + "+\n")
	b.WriteString("|  " + label + "  |\n")
	b.WriteString("+" + strings.Repeat("-", width) + "+")
	return b.String()
}
