package editor

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestFileEditor_NotReadyUntilOpen(t *testing.T) {
	e := NewFileEditor(filepath.Join(t.TempDir(), "post.json"))

	select {
	case <-e.Ready():
		t.Fatal("Ready() must not be closed before Open")
	default:
	}

	if err := e.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	select {
	case <-e.Ready():
	default:
		t.Fatal("Ready() should be closed after Open")
	}

	// 2回目のOpenでpanicしないこと
	if err := e.Open(); err != nil {
		t.Fatalf("second Open: %v", err)
	}
}

func TestFileEditor_SaveMissingFileReturnsNil(t *testing.T) {
	e := NewFileEditor(filepath.Join(t.TempDir(), "missing.json"))
	data, err := e.Save(context.Background())
	if err != nil {
		t.Fatalf("Save: unexpected error: %v", err)
	}
	if data != nil {
		t.Errorf("Save = %s, want nil", data)
	}
}

func TestFileEditor_RenderThenSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "post.json")
	e := NewFileEditor(path)
	if err := e.Open(); err != nil {
		t.Fatal(err)
	}

	doc := json.RawMessage(`{"blocks":[{"type":"paragraph","data":{"text":"hello"}}]}`)
	if err := e.Render(context.Background(), doc); err != nil {
		t.Fatalf("Render: %v", err)
	}

	got, err := e.Save(context.Background())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	var want, actual interface{}
	json.Unmarshal(doc, &want)
	json.Unmarshal(got, &actual)
	wantJSON, _ := json.Marshal(want)
	actualJSON, _ := json.Marshal(actual)
	if string(wantJSON) != string(actualJSON) {
		t.Errorf("Save = %s, want %s", actualJSON, wantJSON)
	}
}

func TestFileEditor_SaveInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "post.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	e := NewFileEditor(path)

	if _, err := e.Save(context.Background()); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestFileEditor_Clear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "post.json")
	e := NewFileEditor(path)
	if err := e.Open(); err != nil {
		t.Fatal(err)
	}
	if err := e.Render(context.Background(), FallbackTemplate()); err != nil {
		t.Fatal(err)
	}
	if err := e.Clear(context.Background()); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	got, err := e.Save(context.Background())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	doc, err := ParseDocument(got)
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	if len(doc.Blocks) != 0 {
		t.Errorf("blocks after Clear = %d, want 0", len(doc.Blocks))
	}
}

func TestFallbackTemplate_IsValidDocument(t *testing.T) {
	doc, err := ParseDocument(FallbackTemplate())
	if err != nil {
		t.Fatalf("fallback template should parse: %v", err)
	}
	if len(doc.Blocks) == 0 {
		t.Error("fallback template should contain blocks")
	}

	// 返り値を変更しても共有の内容には影響しない
	tpl := FallbackTemplate()
	tpl[0] = 'X'
	if FallbackTemplate()[0] != '{' {
		t.Error("FallbackTemplate must return a copy")
	}
}
