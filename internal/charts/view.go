// Package charts builds the dashboard's figures: the toggleable 3D scatter
// specs rendered client-side and the server-rendered SVG bar charts.
package charts

import (
	"errors"
	"fmt"
	"strings"
)

// View is the scatter toggle state.
type View string

const (
	// ViewSegments plots raw values on linear axes.
	ViewSegments View = "Segments"
	// ViewDensity plots frequency and revenue on log axes.
	ViewDensity View = "Show Density of Segments"
)

// ErrUnknownView is returned for toggle values outside the two options.
var ErrUnknownView = errors.New("unknown view")

// Views lists the toggle options in display order.
func Views() []View { return []View{ViewSegments, ViewDensity} }

// Key is the short form used in query strings and metric labels.
func (v View) Key() string {
	if v == ViewDensity {
		return "density"
	}
	return "segments"
}

// ParseView accepts a toggle label or its short key. Empty selects ViewSegments.
func ParseView(s string) (View, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return ViewSegments, nil
	case s == string(ViewSegments) || strings.EqualFold(s, "segments"):
		return ViewSegments, nil
	case s == string(ViewDensity) || strings.EqualFold(s, "density"):
		return ViewDensity, nil
	}
	return "", fmt.Errorf("%w %q: want %q or %q", ErrUnknownView, s, ViewSegments, ViewDensity)
}
