package utils_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/KaramelBytes/segloom-cli/internal/utils"
)

func TestWriteJSONCreatesParentAndReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "model.json")
	if err := utils.WriteJSON(path, map[string]int{"k": 3}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if err := utils.WriteJSON(path, map[string]int{"k": 4}); err != nil {
		t.Fatalf("WriteJSON overwrite: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]int
	if err := json.Unmarshal(b, &got); err != nil || got["k"] != 4 {
		t.Fatalf("got %s (%v)", b, err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}
