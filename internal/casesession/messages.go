package casesession

type failure int

const (
	failStartCase failure = iota
	failSubmitMessage
	failFetchVerdict
)

// errorMessages holds the transcript text of each failure per language code
// reported by the judge backend.
var errorMessages = map[string][3]string{
	"my": {
		failStartCase:     "အမှုစတင်ရာတွင် အမှားဖြစ်ပေါ်ခဲ့သည်။ ကျေးဇူးပြု၍ ထပ်မံကြိုးစားပါ။",
		failSubmitMessage: "မက်ဆေ့ချ်ပို့ရန် မအောင်မြင်ပါ။ ကျေးဇူးပြု၍ ထပ်မံကြိုးစားပါ။",
		failFetchVerdict:  "စီရင်ချက်ရယူရာတွင် အမှားဖြစ်ပေါ်ခဲ့သည်။ ကျေးဇူးပြု၍ ထပ်မံကြိုးစားပါ။",
	},
	"ja": {
		failStartCase:     "事件の開始中にエラーが発生しました。もう一度お試しください。",
		failSubmitMessage: "メッセージの送信に失敗しました。もう一度お試しください。",
		failFetchVerdict:  "判決の取得中にエラーが発生しました。もう一度お試しください。",
	},
	"en": {
		failStartCase:     "Error starting case. Please try again.",
		failSubmitMessage: "Error submitting message. Please try again.",
		failFetchVerdict:  "Error fetching verdict. Please try again.",
	},
}

// localized returns the failure text for lang, falling back to English.
func localized(lang string, f failure) string {
	if msgs, ok := errorMessages[lang]; ok {
		return msgs[f]
	}
	return errorMessages["en"][f]
}
