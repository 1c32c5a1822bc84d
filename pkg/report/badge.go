package report

import (
	"fmt"

	"certline/pkg/certify"
)

const badgeTemplate = `<svg xmlns="http://www.w3.org/2000/svg" width="220" height="64" role="img" aria-label="%[1]s">
  <title>%[1]s</title>
  <linearGradient id="s" x2="0" y2="100%%">
    <stop offset="0" stop-color="#bbb" stop-opacity=".1"/>
    <stop offset="1" stop-opacity=".1"/>
  </linearGradient>
  <clipPath id="r">
    <rect width="220" height="64" rx="8" fill="#fff"/>
  </clipPath>
  <g clip-path="url(#r)">
    <rect width="110" height="64" fill="#555"/>
    <rect x="110" width="110" height="64" fill="%[2]s"/>
    <rect width="220" height="64" fill="url(#s)"/>
  </g>
  <g fill="#fff" text-anchor="middle" font-family="DejaVu Sans,Verdana,Geneva,sans-serif" font-size="13">
    <text x="55" y="22" fill="#010101" fill-opacity=".3">Certline</text>
    <text x="55" y="21">Certline</text>
    <text x="55" y="38" fill="#010101" fill-opacity=".3">Self-Assessed</text>
    <text x="55" y="37">Self-Assessed</text>
  </g>
  <g fill="#fff" text-anchor="middle" font-family="DejaVu Sans,Verdana,Geneva,sans-serif" font-size="15" font-weight="bold">
    <text x="165" y="37" fill="#010101" fill-opacity=".3">%[3]s</text>
    <text x="165" y="36">%[3]s</text>
  </g>
</svg>`

// SVGBadge generates a minimal self-contained SVG badge for a
// certification level. The level half of the badge is filled with the
// level's published color.
func SVGBadge(level certify.Level) (string, error) {
	def, ok := certify.Definition(level)
	if !ok {
		return "", fmt.Errorf("unknown level %q: choose from bronze, silver, gold, platinum", level)
	}
	return fmt.Sprintf(badgeTemplate, def.DisplayName, def.BadgeColor, capitalize(string(level))), nil
}

// WriteSVGBadge generates the badge and writes it to a file.
func WriteSVGBadge(level certify.Level, path string) error {
	svg, err := SVGBadge(level)
	if err != nil {
		return err
	}
	return writeFile(path, svg)
}
