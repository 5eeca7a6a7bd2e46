package theme

// Colors and ttk styles for the control window. Apply once after Tk is up;
// calling it again switches between light and dark.

import (
	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

// Scheme is one resolved color scheme.
type Scheme struct {
	Window string
	Panel  string
	Ink    string
	Start  string
	Stop   string
}

var (
	light = Scheme{
		Window: "#eef2f5",
		Panel:  "#fbfcfd",
		Ink:    "#24313d",
		Start:  "#0f766e",
		Stop:   "#b42318",
	}
	dark = Scheme{
		Window: "#111820",
		Panel:  "#1b2630",
		Ink:    "#e4eaef",
		Start:  "#14b8a6",
		Stop:   "#f04438",
	}
)

// Style names passed to Style(...) by the views.
const (
	StylePrimaryButton = "primary.TButton"
	StyleDangerButton  = "danger.TButton"
	StyleStatusLabel   = "status.TLabel"
)

var darkMode bool

func For(isDark bool) Scheme {
	if isDark {
		return dark
	}
	return light
}

// IsDark reports the mode last applied.
func IsDark() bool { return darkMode }

// Apply activates the base theme and configures the named styles.
func Apply(isDark bool) {
	darkMode = isDark
	p := For(isDark)
	base := "azure light"
	if isDark {
		base = "azure dark"
	}
	_ = ActivateTheme(base)
	App.Configure(Background(p.Window))

	for name, bg := range map[string]string{
		StylePrimaryButton: p.Start,
		StyleDangerButton:  p.Stop,
	} {
		StyleConfigure(name, Background(bg), Foreground("white"), Padding("5p 3p"), Borderwidth(1), Relief("raised"))
	}
	StyleConfigure(StyleStatusLabel, Foreground(p.Ink), Background(p.Panel), Padding("5p 2p"), Relief("sunken"))
}
