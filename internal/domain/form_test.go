package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func questionsOf(types ...QuestionType) []CreateQuestionRequest {
	out := make([]CreateQuestionRequest, 0, len(types))
	for _, typ := range types {
		out = append(out, CreateQuestionRequest{Title: string(typ), Type: typ})
	}
	return out
}

func TestCreateFormRequest_UniquenessNeedsIdentityQuestion(t *testing.T) {
	tests := []struct {
		name    string
		mode    UniquenessMode
		types   []QuestionType
		wantErr bool
	}{
		{"none without identity questions", UniquenessNone, []QuestionType{QuestionShortText}, false},
		{"empty mode defaults to none", "", []QuestionType{QuestionShortText}, false},
		{"email with email question", UniquenessEmail, []QuestionType{QuestionShortText, QuestionEmail}, false},
		{"email with only phone question", UniquenessEmail, []QuestionType{QuestionPhone}, true},
		{"email without identity questions", UniquenessEmail, []QuestionType{QuestionShortText, QuestionLongText}, true},
		{"phone with phone question", UniquenessPhone, []QuestionType{QuestionPhone}, false},
		{"national id with email question", UniquenessNationalID, []QuestionType{QuestionEmail}, true},
		{"email or phone with phone only", UniquenessEmailOrPhone, []QuestionType{QuestionPhone}, false},
		{"email or phone with national id only", UniquenessEmailOrPhone, []QuestionType{QuestionNationalID}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &CreateFormRequest{Title: "Form", UniquenessMode: tt.mode, Questions: questionsOf(tt.types...)}

			err := req.Validate()

			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, "uniquenessMode", ve.Field)
		})
	}
}

func TestCreateFormRequest_Validate(t *testing.T) {
	desc := "   "
	req := &CreateFormRequest{Title: "  Survey  ", Description: &desc, Questions: questionsOf(QuestionShortText)}

	require.NoError(t, req.Validate())
	assert.Equal(t, "Survey", req.Title)
	assert.Nil(t, req.Description)
	assert.Equal(t, UniquenessNone, req.UniquenessMode)

	req = &CreateFormRequest{Title: "Survey", UniquenessMode: "fingerprint", Questions: questionsOf(QuestionEmail)}
	var ve *ValidationError
	require.ErrorAs(t, req.Validate(), &ve)
	assert.Equal(t, "uniquenessMode", ve.Field)
}
