package classifier

import (
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

func TestClassify_TypeMapping(t *testing.T) {
	tests := []struct {
		raw  RawField
		want schemas.Category
	}{
		{RawField{TagName: "input", InputType: "email", Label: "Phone"}, schemas.CategoryEmail},
		{RawField{TagName: "input", InputType: "tel"}, schemas.CategoryPhone},
		{RawField{TagName: "input", InputType: "file", Label: "Photo"}, schemas.CategoryFileUpload},
		{RawField{TagName: "input", InputType: "password"}, schemas.CategoryPassword},
		{RawField{TagName: "input", InputType: "date"}, schemas.CategoryDate},
		{RawField{TagName: "input", InputType: " URL "}, schemas.CategoryURL},
		{RawField{TagName: "TEXTAREA", Label: "Cover letter"}, schemas.CategoryTextarea},
		{RawField{TagName: "select", Label: "Country"}, schemas.CategorySelect},
	}
	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.raw))
		})
	}
}

func TestClassify_URLInputsNarrowToProfiles(t *testing.T) {
	assert.Equal(t, schemas.CategoryLinkedIn, Classify(RawField{InputType: "url", Label: "LinkedIn profile"}))
	assert.Equal(t, schemas.CategoryGitHub, Classify(RawField{InputType: "url", Name: "github_url"}))
	assert.Equal(t, schemas.CategoryWebsite, Classify(RawField{InputType: "url", Placeholder: "Portfolio"}))
	// Keywords outside the URL families do not override the type.
	assert.Equal(t, schemas.CategoryURL, Classify(RawField{InputType: "url", Label: "Email"}))
}

func TestClassify_Keywords(t *testing.T) {
	tests := []struct {
		name string
		raw  RawField
		want schemas.Category
	}{
		{"first name label", RawField{Label: "First Name"}, schemas.CategoryFirstName},
		{"first name camelCase attribute", RawField{Name: "firstName"}, schemas.CategoryFirstName},
		{"last name", RawField{Label: "Surname"}, schemas.CategoryLastName},
		{"family name", RawField{Placeholder: "Family name"}, schemas.CategoryLastName},
		{"bare first", RawField{Label: "First"}, schemas.CategoryFirstName},
		{"bare last", RawField{Label: "Last"}, schemas.CategoryLastName},
		{"bare family", RawField{Label: "Family"}, schemas.CategoryLastName},
		{"given", RawField{Label: "Given"}, schemas.CategoryFirstName},
		{"family business is a company", RawField{Label: "Family company"}, schemas.CategoryCompany},
		{"first school is education", RawField{Label: "First school attended"}, schemas.CategoryEducation},
		{"full name", RawField{Label: "Full name"}, schemas.CategoryName},
		{"company name is a company", RawField{Label: "Company name"}, schemas.CategoryCompany},
		{"school name is education", RawField{Label: "School name"}, schemas.CategoryEducation},
		{"email label on text input", RawField{InputType: "text", Label: "E-mail"}, schemas.CategoryEmail},
		{"email address is not an address", RawField{Label: "Email address"}, schemas.CategoryEmail},
		{"mobile", RawField{Label: "Mobile number"}, schemas.CategoryPhone},
		{"city", RawField{Label: "City"}, schemas.CategoryAddress},
		{"location class", RawField{Classes: "form-control location-input"}, schemas.CategoryAddress},
		{"resume", RawField{Label: "Upload your resume"}, schemas.CategoryFileUpload},
		{"cv id", RawField{ElementID: "cv"}, schemas.CategoryFileUpload},
		{"linkedin", RawField{Label: "LinkedIn"}, schemas.CategoryLinkedIn},
		{"github", RawField{Label: "GitHub"}, schemas.CategoryGitHub},
		{"portfolio", RawField{Label: "Portfolio website"}, schemas.CategoryWebsite},
		{"job title", RawField{Label: "Current job title"}, schemas.CategoryPosition},
		{"salary", RawField{Label: "Desired salary"}, schemas.CategorySalary},
		{"skills plural", RawField{Label: "Skills"}, schemas.CategorySkills},
		{"technologies", RawField{Label: "Technologies you know"}, schemas.CategorySkills},
		{"degree", RawField{Label: "Highest degree"}, schemas.CategoryEducation},
		{"years of experience", RawField{Label: "Years of experience"}, schemas.CategoryExperience},
		{"cover letter", RawField{Label: "Cover letter"}, schemas.CategorySummary},
		{"about you", RawField{Label: "Tell us about yourself"}, schemas.CategorySummary},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.raw))
		})
	}
}

func TestClassify_ShortKeywordsNeedWholeTokens(t *testing.T) {
	assert.Equal(t, schemas.CategoryText, Classify(RawField{Label: "Username"}), "name must not match inside username")
	assert.Equal(t, schemas.CategoryText, Classify(RawField{Label: "Card CVV"}), "cv must not match cvv")
	assert.Equal(t, schemas.CategoryText, Classify(RawField{Label: "Profile headline"}), "file must not match profile")
}

func TestClassify_DefaultsToText(t *testing.T) {
	assert.Equal(t, schemas.CategoryText, Classify(RawField{}))
	assert.Equal(t, schemas.CategoryText, Classify(RawField{TagName: "input", InputType: "text", Label: "Favourite colour"}))
	assert.Equal(t, schemas.CategoryText, Classify(RawField{InputType: "number", Label: "Quantity"}))
}

func TestClassify_UploadWordsOnTypedInputs(t *testing.T) {
	assert.Equal(t, schemas.CategoryText, Classify(RawField{InputType: "text", Label: "Resume headline"}))
	assert.Equal(t, schemas.CategoryTextarea, Classify(RawField{TagName: "textarea", Label: "Paste your CV"}))
	assert.Equal(t, schemas.CategoryFileUpload, Classify(RawField{InputType: "file", Label: "Resume headline"}))
	assert.Equal(t, schemas.CategoryFileUpload, Classify(RawField{Label: "Drop your CV here"}), "untyped visual detections keep the keyword")
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"first", "name"}, Tokenize("firstName"))
	assert.Equal(t, []string{"html", "input", "2"}, Tokenize("HTMLInput_2"))
	assert.Equal(t, []string{"e", "mail", "address"}, Tokenize("E-mail  address"))
	assert.Equal(t, []string{"user", "email"}, Tokenize("user[email]"))
	assert.Empty(t, Tokenize(" -_ "))
}

func TestMatchKeywords(t *testing.T) {
	c, ok := MatchKeywords("Phone / Mobile")
	assert.True(t, ok)
	assert.Equal(t, schemas.CategoryPhone, c)

	_, ok = MatchKeywords("Favourite colour")
	assert.False(t, ok)
	_, ok = MatchKeywords("")
	assert.False(t, ok)
}

func TestClassifyField(t *testing.T) {
	t.Run("AssignsCategory", func(t *testing.T) {
		in := schemas.DetectedField{
			ID: "f1", Category: schemas.CategoryUnknown, Label: "Email",
			Locators: []schemas.Locator{{Kind: schemas.LocatorID, Value: "email"}},
		}
		out := ClassifyField(in)
		assert.Equal(t, schemas.CategoryEmail, out.Category)
		assert.Equal(t, schemas.CategoryUnknown, in.Category, "input must not be mutated")

		out.Locators[0].Value = "changed"
		assert.Equal(t, "email", in.Locators[0].Value, "locators must not be shared")
	})

	t.Run("KeepsDetectorCategoryWhenMetadataIsSilent", func(t *testing.T) {
		in := schemas.DetectedField{Category: schemas.CategoryPhone, Label: "Contact"}
		assert.Equal(t, schemas.CategoryPhone, ClassifyField(in).Category)
	})

	t.Run("MetadataOverridesDetectorGuess", func(t *testing.T) {
		in := schemas.DetectedField{Category: schemas.CategoryPhone, Label: "Email"}
		assert.Equal(t, schemas.CategoryEmail, ClassifyField(in).Category)
	})
}

// FuzzClassify checks that classification is deterministic and total.
func FuzzClassify(f *testing.F) {
	f.Add([]byte("First Name"))
	f.Add([]byte("\x00\x01email\x02tel"))
	f.Add([]byte("résumé upload"))

	f.Fuzz(func(t *testing.T, data []byte) {
		var raw RawField
		if err := fuzz.NewConsumer(data).GenerateStruct(&raw); err != nil {
			return
		}
		first := Classify(raw)
		assert.NotEmpty(t, first)
		assert.Equal(t, first, Classify(raw), "classification must be deterministic")
	})
}

func TestMatchKeywords_BrandCasing(t *testing.T) {
	for _, text := range []string{"LinkedIn", "linkedIn URL", "linkedin_profile"} {
		c, ok := MatchKeywords(text)
		assert.True(t, ok, text)
		assert.Equal(t, schemas.CategoryLinkedIn, c, text)
	}
	c, _ := MatchKeywords("GitHub")
	assert.Equal(t, schemas.CategoryGitHub, c)
}
