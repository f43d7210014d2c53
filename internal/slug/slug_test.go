package slug

import "testing"

func TestMake(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Hello, World! 2024", "hello-world-2024"},
		{"Go Concurrency Patterns", "go-concurrency-patterns"},
		{"snake_case stays", "snake_case-stays"},
		{"already-hyphenated", "already-hyphenated"},
		{"Привет, Мир", "привет-мир"},
		{"Ёлка", "ёлка"},
		{"two  spaces", "two--spaces"},
		{"tab\there", "tab-here"},
		{"Café au lait", "caf-au-lait"},
		{"!!!", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			if got := Make(tt.title); got != tt.want {
				t.Errorf("Make(%q) = %q, want %q", tt.title, got, tt.want)
			}
		})
	}
}

func TestMake_Idempotent(t *testing.T) {
	titles := []string{
		"Hello, World! 2024",
		"  Leading and trailing  ",
		"Смешанный Title 42",
		"C++ & Rust: a comparison",
		"emoji 🚀 launch",
		"UPPER_lower-Mixed",
	}

	for _, title := range titles {
		once := Make(title)
		twice := Make(once)
		if once != twice {
			t.Errorf("Make is not idempotent for %q: %q then %q", title, once, twice)
		}
	}
}

func TestValid(t *testing.T) {
	if !Valid("hello-world-2024") {
		t.Error("hello-world-2024 should be valid")
	}
	if Valid("Hello-World") {
		t.Error("uppercase slug should not be valid")
	}
	if Valid("") {
		t.Error("empty slug should not be valid")
	}
	if Valid("a/b") {
		t.Error("slug with slash should not be valid")
	}
}
