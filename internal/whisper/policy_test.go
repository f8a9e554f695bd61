package whisper

import "testing"

func TestResolveTask(t *testing.T) {
	tests := []struct {
		language     string
		wantTask     Task
		wantLanguage string
	}{
		{"", TaskTranslate, ""},
		{"auto", TaskTranslate, ""},
		{"en", TaskTranslate, ""},
		{"es", TaskTranscribe, "es"},
		{"fr", TaskTranscribe, "fr"},
		{"zh", TaskTranscribe, "zh"},
	}

	for _, tt := range tests {
		task, forced := ResolveTask(tt.language)
		if task != tt.wantTask {
			t.Errorf("ResolveTask(%q) task = %q, want %q", tt.language, task, tt.wantTask)
		}
		if forced != tt.wantLanguage {
			t.Errorf("ResolveTask(%q) language = %q, want %q", tt.language, forced, tt.wantLanguage)
		}
	}
}

func TestResolveTask_Deterministic(t *testing.T) {
	for i := 0; i < 3; i++ {
		task, forced := ResolveTask("es")
		if task != TaskTranscribe || forced != "es" {
			t.Fatalf("unexpected result on call %d: %q %q", i, task, forced)
		}
	}
}

func TestValidModel(t *testing.T) {
	for _, m := range Models {
		if !ValidModel(m) {
			t.Errorf("ValidModel(%q) = false, want true", m)
		}
	}
	for _, m := range []string{"", "huge", "Small", "large"} {
		if ValidModel(m) {
			t.Errorf("ValidModel(%q) = true, want false", m)
		}
	}
}
