// internal/browser/allocator.go
package browser

import (
	"runtime"
	"sort"
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/formpilot/internal/browser/stealth"
	"github.com/xkilldash9x/formpilot/internal/config"
)

// AllocatorFlags returns the command line flags layered on top of chromedp's
// defaults. A false boolean removes a default flag.
func AllocatorFlags(cfg config.BrowserConfig, headless bool) map[string]interface{} {
	flags := map[string]interface{}{
		// chromedp enables this by default and it sets navigator.webdriver.
		"enable-automation":                      false,
		"disable-blink-features":                 "AutomationControlled",
		"disable-background-timer-throttling":    true,
		"disable-backgrounding-occluded-windows": true,
		"disable-renderer-backgrounding":         true,
		"disable-dev-shm-usage":                  true,
		"no-first-run":                           true,
		"headless":                               headless,
		"disable-gpu":                            headless,
		"ignore-certificate-errors":              cfg.IgnoreTLSErrors,
	}

	for _, arg := range cfg.Args {
		parts := strings.SplitN(arg, "=", 2)
		name := strings.TrimPrefix(parts[0], "--")
		if len(parts) == 2 {
			flags[name] = parts[1]
		} else {
			flags[name] = true
		}
	}

	// Containers usually run as root without user namespaces.
	if runtime.GOOS == "linux" {
		flags["no-sandbox"] = true
		flags["disable-setuid-sandbox"] = true
	}
	return flags
}

// AllocatorOptions assembles the exec allocator options for a dedicated
// Chrome process presenting the given persona.
func AllocatorOptions(cfg config.BrowserConfig, persona stealth.Persona, headless bool) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)

	flags := AllocatorFlags(cfg, headless)
	names := make([]string, 0, len(flags))
	for name := range flags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		opts = append(opts, chromedp.Flag(name, flags[name]))
	}

	opts = append(opts,
		chromedp.UserAgent(persona.UserAgent),
		chromedp.WindowSize(int(persona.Screen.Width), int(persona.Screen.Height)),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}
