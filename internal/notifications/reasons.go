package notifications

import "strings"

// reasonMessages holds the farmer-facing Kannada / English text per code
var reasonMessages = map[string]string{
	"poor_photo_quality":          "ಫೋಟೋ ಗುಣಮಟ್ಟ ಕಳಪೆಯಾಗಿದೆ / Poor photo quality",
	"face_not_visible":            "ಮುಖ ಸ್ಪಷ್ಟವಾಗಿ ಕಾಣುತ್ತಿಲ್ಲ / Face not visible",
	"incorrect_location":          "ತಪ್ಪು ಸ್ಥಳ / Incorrect location",
	"insufficient_photos":         "ಸಾಕಷ್ಟು ಫೋಟೋಗಳಿಲ್ಲ / Insufficient photos",
	"duplicate_request":           "ನಕಲಿ ವಿನಂತಿ / Duplicate request",
	"crop_mismatch":               "ಬೆಳೆ ಹೊಂದಿಕೆಯಾಗುತ್ತಿಲ್ಲ / Crop mismatch",
	"fake_or_manipulated":         "ನಕಲಿ ಅಥವಾ ಬದಲಾಯಿಸಿದ ಫೋಟೋ / Fake or manipulated",
	"incomplete_information":      "ಅಪೂರ್ಣ ಮಾಹಿತಿ / Incomplete information",
	"suspicious_activity":         "ಸಂಶಯಾಸ್ಪದ ಚಟುವಟಿಕೆ / Suspicious activity",
	"photo_too_dark":              "ಫೋಟೋ ತುಂಬಾ ಗಾಢವಾಗಿದೆ / Photo too dark",
	"photo_not_clear":             "ಫೋಟೋ ಸ್ಪಷ್ಟವಾಗಿಲ್ಲ / Photo not clear",
	"photo_not_focused":           "ಫೋಟೋ ಕೇಂದ್ರೀಕೃತವಾಗಿಲ್ಲ / Photo not focused",
	"partial_crop_visible":        "ಭಾಗಶಃ ಬೆಳೆ ಮಾತ್ರ ಕಾಣುತ್ತಿದೆ / Partial crop visible",
	"camera_angle_incorrect":      "ಕ್ಯಾಮೆರಾ ಕೋನ ತಪ್ಪಾಗಿದೆ / Camera angle incorrect",
	"photo_contains_obstructions": "ಫೋಟೋದಲ್ಲಿ ಅಡೆತಡೆಗಳಿವೆ / Photo contains obstructions",
	"wrong_crop_uploaded":         "ತಪ್ಪು ಬೆಳೆ ಅಪ್ಲೋಡ್ ಮಾಡಲಾಗಿದೆ / Wrong crop uploaded",
	"crop_stage_mismatch":         "ಬೆಳೆಯ ಹಂತ ಹೊಂದಿಕೆಯಾಗುತ್ತಿಲ್ಲ / Crop stage mismatch",
	"crop_area_not_clear":         "ಬೆಳೆ ಪ್ರದೇಶ ಸ್ಪಷ್ಟವಾಗಿಲ್ಲ / Crop area not clear",
	"crop_not_identifiable":       "ಬೆಳೆಯನ್ನು ಗುರುತಿಸಲಾಗುತ್ತಿಲ್ಲ / Crop not identifiable",
	"other":                       "ಇತರ ಕಾರಣ / Other reason",
}

// ReasonText returns the bilingual text, or the code itself when unknown
func ReasonText(code string) string {
	if msg, ok := reasonMessages[code]; ok {
		return msg
	}
	return code
}

// ReasonTextEnglish returns only the English half
func ReasonTextEnglish(code string) string {
	msg := ReasonText(code)
	if i := strings.LastIndex(msg, " / "); i >= 0 {
		return msg[i+3:]
	}
	return msg
}
