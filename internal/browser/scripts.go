// internal/browser/scripts.go
package browser

import (
	_ "embed"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

//go:embed helpers.js
var helpersJS string

// Script builds a self-contained expression that defines the page helpers
// (fpFind, fpRect, fpVisible, fpText, fpCssPath, fpXPath, fpSetValue) and
// calls fn with args encoded as JSON. fn is a JavaScript function literal.
// Async functions are supported; Evaluate awaits the returned promise.
func Script(fn string, args ...interface{}) (string, error) {
	encoded := make([]string, len(args))
	for i, arg := range args {
		b, err := json.Marshal(arg)
		if err != nil {
			return "", fmt.Errorf("browser: failed to encode script argument %d: %w", i, err)
		}
		encoded[i] = string(b)
	}
	return fmt.Sprintf("(() => {\n%s\nreturn (%s)(%s);\n})()", helpersJS, fn, strings.Join(encoded, ", ")), nil
}

// MustScript is Script for arguments that always encode, such as strings,
// numbers and locators.
func MustScript(fn string, args ...interface{}) string {
	s, err := Script(fn, args...)
	if err != nil {
		panic(err)
	}
	return s
}
