package whisper

// ResolveTask maps the requested language to the engine task and the forced
// source language. The rule depends only on the literal value:
//
//	"" or "auto" -> translate, auto-detect
//	"en"         -> translate, auto-detect
//	anything else -> transcribe with that language forced
func ResolveTask(language string) (Task, string) {
	switch language {
	case "", LanguageAuto, "en":
		return TaskTranslate, ""
	default:
		return TaskTranscribe, language
	}
}
