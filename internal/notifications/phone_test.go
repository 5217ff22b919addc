package notifications

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatPhoneNumber(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"9876543210", "+919876543210"},
		{"+91 98765 43210", "+919876543210"},
		{"919876543210", "+919876543210"},
		{"09876543210", "+919876543210"},
		{"(987) 654-3210", "+919876543210"},
		{"9198765432", "+919198765432"},
		{"", ""},
		{"abc", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatPhoneNumber(tt.in, DefaultCountryCode), tt.in)
	}
}

func TestReasonText(t *testing.T) {
	assert.Equal(t, "ಫೋಟೋ ಗುಣಮಟ್ಟ ಕಳಪೆಯಾಗಿದೆ / Poor photo quality", ReasonText("poor_photo_quality"))
	assert.Equal(t, "something_new", ReasonText("something_new"))
	assert.Equal(t, "Other reason", ReasonTextEnglish("other"))
	assert.Len(t, reasonMessages, 20)
}
