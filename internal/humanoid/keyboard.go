// -- internal/humanoid/keyboard.go --
package humanoid

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// keyboardNeighbors maps a key to the keys adjacent to it on a QWERTY layout.
var keyboardNeighbors = map[rune]string{
	'1': "2q", '2': "13wq", '3': "24we", '4': "35er", '5': "46rt", '6': "57ty",
	'7': "68yu", '8': "79ui", '9': "80io", '0': "9op",
	'q': "wa", 'w': "qase", 'e': "wsdr", 'r': "edft", 't': "rfgy",
	'y': "tghu", 'u': "yhji", 'i': "ujko", 'o': "iklp", 'p': "ol",
	'a': "qwsz", 's': "awedxz", 'd': "serfcx", 'f': "drtgvc", 'g': "ftyhbv",
	'h': "gyujnb", 'j': "huikmn", 'k': "jiolm", 'l': "kop",
	'z': "asx", 'x': "zsdc", 'c': "xdfv", 'v': "cfgb", 'b': "vghn", 'n': "bhjm", 'm': "njk",
}

// commonNgrams are typed faster than arbitrary letter pairs.
var commonNgrams = map[string]bool{
	"th": true, "he": true, "in": true, "er": true, "an": true, "re": true,
	"es": true, "on": true, "st": true, "nt": true,
	"the": true, "and": true, "ing": true, "ion": true, "tio": true,
}

// Type sends text to the focused element one character at a time with a
// randomized inter-key delay. Occasional neighbor-key typos are corrected
// immediately, so the final content always equals text.
func (h *Humanoid) Type(ctx context.Context, exec Executor, text string) error {
	runes := []rune(text)
	for i, r := range runes {
		if err := exec.Sleep(ctx, h.KeyDelay(runes, i)); err != nil {
			return err
		}

		if h.cfg.TypoRate > 0 && h.float64() < h.cfg.TypoRate {
			if err := h.typeNeighborTypo(ctx, exec, r); err != nil {
				return fmt.Errorf("humanoid: error during typo simulation: %w", err)
			}
		}

		if err := exec.SendKeys(ctx, string(r)); err != nil {
			return fmt.Errorf("humanoid: failed to send key '%c': %w", r, err)
		}
	}
	return nil
}

// KeyDelay returns the pause before typing runes[index]. Common digrams and
// trigrams shorten the delay; the result is clamped to [MinDelay, MaxDelay].
func (h *Humanoid) KeyDelay(runes []rune, index int) time.Duration {
	mean := float64(h.cfg.MeanDelay)
	stdDev := mean * 0.4

	factor := 1.0
	if index >= 2 && index < len(runes) && commonNgrams[strings.ToLower(string(runes[index-2:index+1]))] {
		factor = 0.55
	} else if index >= 1 && index < len(runes) && commonNgrams[strings.ToLower(string(runes[index-1:index+1]))] {
		factor = 0.7
	}

	delay := time.Duration((h.normFloat64()*stdDev + mean) * factor)
	if delay < h.cfg.MinDelay {
		return h.cfg.MinDelay
	}
	if delay > h.cfg.MaxDelay {
		return h.cfg.MaxDelay
	}
	return delay
}

// typeNeighborTypo types a key adjacent to intended, pauses, and erases it.
func (h *Humanoid) typeNeighborTypo(ctx context.Context, exec Executor, intended rune) error {
	neighbors, ok := keyboardNeighbors[unicode.ToLower(intended)]
	if !ok || len(neighbors) == 0 {
		return nil
	}
	typo := rune(neighbors[h.intn(len(neighbors))])
	if unicode.IsUpper(intended) {
		typo = unicode.ToUpper(typo)
	}

	if err := exec.SendKeys(ctx, string(typo)); err != nil {
		return err
	}
	// Recognition pause is longer than a normal keystroke.
	if err := exec.Sleep(ctx, 2*h.cfg.MaxDelay); err != nil {
		return err
	}
	if err := exec.SendKeys(ctx, string(KeyBackspace)); err != nil {
		return err
	}
	return exec.Sleep(ctx, h.cfg.MinDelay)
}
