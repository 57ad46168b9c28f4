// internal/browser/stealth/stealth.go
package stealth

import (
	"context"
	_ "embed"
	"fmt"
	"math/rand"
	"strings"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

//go:embed evasions.js
var evasionsScript string

// Screen is the emulated display size in CSS pixels.
type Screen struct {
	Width  int64 `json:"width"`
	Height int64 `json:"height"`
}

// Persona is the fingerprint a session presents to visited pages. One is
// drawn per session so consecutive sessions do not look identical.
type Persona struct {
	UserAgent  string   `json:"userAgent"`
	Platform   string   `json:"platform"`
	Languages  []string `json:"languages"`
	Locale     string   `json:"locale,omitempty"`
	TimezoneID string   `json:"timezoneId,omitempty"`
	Screen     Screen   `json:"screen"`
}

// DefaultPersona is used when the configured pools are empty.
var DefaultPersona = Persona{
	UserAgent:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	Platform:   "Win32",
	Languages:  []string{"en-US", "en"},
	Locale:     "en-US",
	TimezoneID: "America/New_York",
	Screen:     Screen{Width: 1920, Height: 1080},
}

// NewPersona draws a user agent and a viewport from the configured pools.
func NewPersona(cfg config.BrowserConfig, rng *rand.Rand) Persona {
	p := DefaultPersona
	p.Languages = append([]string(nil), DefaultPersona.Languages...)

	if len(cfg.UserAgents) > 0 {
		p.UserAgent = cfg.UserAgents[rng.Intn(len(cfg.UserAgents))]
	}
	p.Platform = platformFor(p.UserAgent)

	if len(cfg.Viewports) > 0 {
		vp := cfg.Viewports[rng.Intn(len(cfg.Viewports))]
		p.Screen = Screen{Width: vp.Width, Height: vp.Height}
	}
	if len(cfg.Languages) > 0 {
		p.Languages = append([]string(nil), cfg.Languages...)
	}
	if cfg.Locale != "" {
		p.Locale = cfg.Locale
	}
	if cfg.TimezoneID != "" {
		p.TimezoneID = cfg.TimezoneID
	}
	return p
}

// platformFor derives navigator.platform from the user agent so the two
// never disagree.
func platformFor(ua string) string {
	switch {
	case strings.Contains(ua, "Macintosh"):
		return "MacIntel"
	case strings.Contains(ua, "Linux"):
		return "Linux x86_64"
	default:
		return "Win32"
	}
}

// AcceptLanguage formats languages as an Accept-Language header value with
// descending q-values, e.g. "en-US,en;q=0.9".
func AcceptLanguage(languages []string) string {
	if len(languages) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(languages[0])
	for i := 1; i < len(languages); i++ {
		q := 1.0 - float64(i)*0.1
		if q < 0.7 {
			q = 0.7
		}
		fmt.Fprintf(&b, ",%s;q=%.1f", languages[i], q)
	}
	return b.String()
}

// Headers returns the request headers a regular top-level navigation sends.
func (p Persona) Headers() network.Headers {
	h := network.Headers{
		"Sec-Fetch-Dest": "document",
		"Sec-Fetch-Mode": "navigate",
		"Sec-Fetch-Site": "none",
		"Sec-Fetch-User": "?1",
	}
	if al := AcceptLanguage(p.Languages); al != "" {
		h["Accept-Language"] = al
	}
	return h
}

// EvasionScript returns the script registered on every new document.
func EvasionScript(p Persona) (string, error) {
	personaJSON, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("stealth: failed to marshal persona: %w", err)
	}
	return fmt.Sprintf("const FORMPILOT_PERSONA = %s;\n%s", personaJSON, evasionsScript), nil
}

// Apply returns the CDP actions that make the tab present the persona.
// It must run before the first navigation.
func Apply(p Persona, logger *zap.Logger) chromedp.Tasks {
	l := logger.Named("stealth")
	return chromedp.Tasks{
		network.Enable(),
		network.SetExtraHTTPHeaders(p.Headers()),
		emulation.SetUserAgentOverride(p.UserAgent).
			WithPlatform(p.Platform).
			WithAcceptLanguage(AcceptLanguage(p.Languages)),
		setDeviceMetrics(p),
		setEnvironmentOverrides(p),
		chromedp.ActionFunc(func(ctx context.Context) error {
			script, err := EvasionScript(p)
			if err != nil {
				return err
			}
			if _, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx); err != nil {
				return fmt.Errorf("stealth: failed to add script on new document: %w", err)
			}
			return nil
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			l.Debug("Stealth persona applied.",
				zap.String("user_agent", p.UserAgent),
				zap.Int64("width", p.Screen.Width),
				zap.Int64("height", p.Screen.Height),
			)
			return nil
		}),
	}
}

func setDeviceMetrics(p Persona) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if p.Screen.Width <= 0 || p.Screen.Height <= 0 {
			return nil
		}
		err := emulation.SetDeviceMetricsOverride(p.Screen.Width, p.Screen.Height, 1.0, false).
			WithScreenOrientation(&emulation.ScreenOrientation{
				Type:  emulation.OrientationTypeLandscapePrimary,
				Angle: 0,
			}).Do(ctx)
		if err != nil {
			return fmt.Errorf("stealth: failed to set device metrics: %w", err)
		}
		return nil
	})
}

func setEnvironmentOverrides(p Persona) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if p.TimezoneID != "" {
			if err := emulation.SetTimezoneOverride(p.TimezoneID).Do(ctx); err != nil {
				return fmt.Errorf("stealth: failed to set timezone: %w", err)
			}
		}
		locale := p.Locale
		if locale == "" && len(p.Languages) > 0 {
			locale = p.Languages[0]
		}
		if locale != "" {
			if err := emulation.SetLocaleOverride().WithLocale(strings.ReplaceAll(locale, "_", "-")).Do(ctx); err != nil {
				return fmt.Errorf("stealth: failed to set locale: %w", err)
			}
		}
		return nil
	})
}
