package utils

import "fmt"

// SupportedLocales lists the locales with a full message set.
var SupportedLocales = []string{"en", "hi"}

// Bot prompts keyed by message id. Values may carry fmt verbs; use Tf.
var translations = map[string]map[string]string{
	"en": {
		"health.ok":          "ok",
		"start.prompt":       "Please verify your phone number to continue:",
		"start.button":       "📱 Send Phone Number",
		"start.hint":         "Send /start to begin a checklist.",
		"contact.use_button": "❌ Please use the button to send your contact.",
		"contact.not_own":    "❌ Please share your own phone number.",
		"contact.rejected":   "❌ You're not rostered today or not registered in the system.",
		"contact.failed":     "❌ Could not verify your number: %s",
		"slot.prompt":        "⏰ Select time slot:",
		"slot.invalid":       "Please choose one of the listed time slots.",
		"catalog.empty":      "❌ No checklist questions found.",
		"catalog.failed":     "❌ Could not load checklist questions: %s",
		"question.prompt":    "❓ (%d/%d) %s",
		"answer.invalid":     "Please answer using the buttons.",
		"photo.prompt":       "📷 Please upload image for this step.",
		"photo.invalid":      "❌ Please upload a photo.",
		"photo.uploaded":     "✅ Image uploaded.",
		"photo.failed":       "❌ Could not upload image: %s",
		"submit.logging":     "✅ All questions completed. Logging responses...",
		"submit.saved":       "✅ Responses saved. Reference: %s",
		"submit.failed":      "❌ Error saving responses: %s",
		"cancel.done":        "❌ Cancelled.",
		"reset.done":         "🔄 Session reset. Send /start to begin again.",
		"session.expired":    "⌛ Your previous checklist expired. Send /start to begin again.",
	},
	"hi": {
		"health.ok":          "ठीक है",
		"start.prompt":       "जारी रखने के लिए कृपया अपना फ़ोन नंबर सत्यापित करें:",
		"start.button":       "📱 फ़ोन नंबर भेजें",
		"start.hint":         "चेकलिस्ट शुरू करने के लिए /start भेजें।",
		"contact.use_button": "❌ कृपया संपर्क भेजने के लिए बटन का उपयोग करें।",
		"contact.not_own":    "❌ कृपया अपना स्वयं का फ़ोन नंबर साझा करें।",
		"contact.rejected":   "❌ आप आज रोस्टर में नहीं हैं या सिस्टम में पंजीकृत नहीं हैं।",
		"contact.failed":     "❌ आपका नंबर सत्यापित नहीं हो सका: %s",
		"slot.prompt":        "⏰ समय स्लॉट चुनें:",
		"slot.invalid":       "कृपया सूची में से एक समय स्लॉट चुनें।",
		"catalog.empty":      "❌ कोई चेकलिस्ट प्रश्न नहीं मिला।",
		"catalog.failed":     "❌ चेकलिस्ट प्रश्न लोड नहीं हो सके: %s",
		"question.prompt":    "❓ (%d/%d) %s",
		"answer.invalid":     "कृपया बटनों का उपयोग करके उत्तर दें।",
		"photo.prompt":       "📷 कृपया इस चरण के लिए फ़ोटो अपलोड करें।",
		"photo.invalid":      "❌ कृपया एक फ़ोटो अपलोड करें।",
		"photo.uploaded":     "✅ फ़ोटो अपलोड हो गई।",
		"photo.failed":       "❌ फ़ोटो अपलोड नहीं हो सकी: %s",
		"submit.logging":     "✅ सभी प्रश्न पूरे हुए। उत्तर सहेजे जा रहे हैं...",
		"submit.saved":       "✅ उत्तर सहेजे गए। संदर्भ: %s",
		"submit.failed":      "❌ उत्तर सहेजने में त्रुटि: %s",
		"cancel.done":        "❌ रद्द किया गया।",
		"reset.done":         "🔄 सत्र रीसेट हुआ। फिर से शुरू करने के लिए /start भेजें।",
		"session.expired":    "⌛ आपकी पिछली चेकलिस्ट समाप्त हो गई। फिर से शुरू करने के लिए /start भेजें।",
	},
}

// T returns the translated string for key in locale; falls back to English.
func T(locale, key string) string {
	if m, ok := translations[locale]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	if m, ok := translations["en"]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	return key
}

// Tf formats the translated string for key with args.
func Tf(locale, key string, args ...any) string {
	return fmt.Sprintf(T(locale, key), args...)
}
