package filler

import (
	_ "embed"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/browser"
)

//go:embed upload.js
var uploadJS string

func uploadScript(call string, args ...interface{}) string {
	return browser.MustScript("(...args) => {\n"+uploadJS+"\nreturn "+call+"(...args);\n}", args...)
}

// rectArg is nil for empty bounds so scripts skip proximity checks.
func rectArg(r schemas.Rect) interface{} {
	if r.IsEmpty() {
		return nil
	}
	return r
}

func fileInputScript(locs []schemas.Locator, rect schemas.Rect, radius float64) string {
	if locs == nil {
		locs = []schemas.Locator{}
	}
	return uploadScript("fpFileInputFor", locs, rectArg(rect), radius)
}

func triggersScript(rect schemas.Rect, radius float64) string {
	return uploadScript("fpUploadTriggers", rectArg(rect), radius)
}

func mentionsScript(name string) string {
	return uploadScript("fpMentions", name)
}

func hasUploadedScript(name string, mentionedBefore bool) string {
	return uploadScript("fpHasUploaded", name, mentionedBefore)
}
