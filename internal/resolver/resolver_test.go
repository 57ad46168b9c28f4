package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

func testProfile() *schemas.CandidateProfile {
	return &schemas.CandidateProfile{
		Name:            "Jane Q Doe",
		Email:           "jane@example.com",
		Phone:           "+1 555 0100",
		Location:        "Berlin",
		Title:           "Backend Engineer",
		Skills:          []string{"Go", " ", "PostgreSQL", "Kubernetes", "gRPC", "Chrome DevTools", "Terraform"},
		ExperienceYears: 7,
		Education:       "MSc Computer Science",
		LinkedIn:        "https://linkedin.com/in/janedoe",
		GitHub:          "https://github.com/janedoe",
		Website:         "https://jane.dev",
		Summary:         "Builds reliable systems.",
		ResumeFilePath:  "/tmp/jane.pdf",
	}
}

func TestResolve_CategoryTable(t *testing.T) {
	p := testProfile()
	tests := []struct {
		category schemas.Category
		want     string
	}{
		{schemas.CategoryName, "Jane Q Doe"},
		{schemas.CategoryFirstName, "Jane"},
		{schemas.CategoryLastName, "Q Doe"},
		{schemas.CategoryEmail, "jane@example.com"},
		{schemas.CategoryPhone, "+1 555 0100"},
		{schemas.CategoryAddress, "Berlin"},
		{schemas.CategoryPosition, "Backend Engineer"},
		{schemas.CategorySkills, "Go, PostgreSQL, Kubernetes, gRPC, Chrome DevTools"},
		{schemas.CategoryEducation, "MSc Computer Science"},
		{schemas.CategoryExperience, "7"},
		{schemas.CategoryLinkedIn, "https://linkedin.com/in/janedoe"},
		{schemas.CategoryGitHub, "https://github.com/janedoe"},
		{schemas.CategoryWebsite, "https://jane.dev"},
		{schemas.CategoryURL, "https://jane.dev"},
		{schemas.CategorySummary, "Builds reliable systems."},
		{schemas.CategoryFileUpload, "/tmp/jane.pdf"},
	}
	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			got, ok := Resolve(tt.category, "", p)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_UnmappedCategoriesAreNull(t *testing.T) {
	p := testProfile()
	for _, c := range []schemas.Category{schemas.CategoryCompany, schemas.CategorySalary, schemas.CategoryPassword, schemas.CategoryDate} {
		_, ok := Resolve(c, "anything", p)
		assert.False(t, ok, c)
	}
}

func TestResolve_LabelFallbackForGenericCategories(t *testing.T) {
	p := testProfile()
	tests := []struct {
		category schemas.Category
		label    string
		want     string
	}{
		{schemas.CategoryText, "First name", "Jane"},
		{schemas.CategoryText, "First", "Jane"},
		{schemas.CategoryText, "Given", "Jane"},
		{schemas.CategoryText, "Last", "Q Doe"},
		{schemas.CategoryUnknown, "Family", "Q Doe"},
		{schemas.CategoryText, "Mobile", "+1 555 0100"},
		{schemas.CategoryUnknown, "Your LinkedIn", "https://linkedin.com/in/janedoe"},
		{schemas.CategoryTextarea, "Cover letter", "Builds reliable systems."},
		{schemas.CategorySelect, "Years of experience", "7"},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, ok := Resolve(tt.category, tt.label, p)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := Resolve(schemas.CategoryText, "Favourite colour", p)
	assert.False(t, ok)
	_, ok = Resolve(schemas.CategoryText, "", p)
	assert.False(t, ok)
}

func TestResolve_ResumePathNeedsUploadField(t *testing.T) {
	p := testProfile()
	for _, tt := range []struct {
		category schemas.Category
		label    string
	}{
		{schemas.CategoryTextarea, "Paste your CV"},
		{schemas.CategoryText, "Resume headline"},
		{schemas.CategoryUnknown, "Upload"},
	} {
		got, ok := Resolve(tt.category, tt.label, p)
		assert.False(t, ok, tt.label)
		assert.Empty(t, got, tt.label)
	}

	got, ok := Resolve(schemas.CategoryFileUpload, "Paste your CV", p)
	assert.True(t, ok)
	assert.Equal(t, "/tmp/jane.pdf", got)
}

func TestResolve_EmptyValuesAreNull(t *testing.T) {
	p := &schemas.CandidateProfile{Name: "Cher", Skills: []string{"", "  "}}

	_, ok := Resolve(schemas.CategoryLastName, "", p)
	assert.False(t, ok, "single token name has no last name")
	_, ok = Resolve(schemas.CategoryEmail, "", p)
	assert.False(t, ok)
	_, ok = Resolve(schemas.CategorySkills, "", p)
	assert.False(t, ok)
	_, ok = Resolve(schemas.CategoryExperience, "", p)
	assert.False(t, ok, "zero years is not a value")

	_, ok = Resolve(schemas.CategoryEmail, "", nil)
	assert.False(t, ok)
}
