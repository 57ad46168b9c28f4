package detector

import (
	_ "embed"

	"github.com/xkilldash9x/formpilot/internal/browser"
)

var (
	//go:embed snapshot.js
	snapshotJS string
	//go:embed dom_scan.js
	domScanJS string
	//go:embed focus.js
	focusJS string
	//go:embed tab_reset.js
	tabResetJS string
)

// withSnapshot wraps body in a function of the label radius that has the
// snapshot helpers in scope.
func withSnapshot(body string) string {
	return "(radius) => {\n" + snapshotJS + "\n" + body + "\n}"
}

func domScanScript(radius float64) string {
	return browser.MustScript(withSnapshot(domScanJS), radius)
}

func focusScript(radius float64) string {
	return browser.MustScript(withSnapshot(focusJS), radius)
}

func tabResetScript() string {
	return browser.MustScript("() => {\n" + tabResetJS + "\n}")
}
