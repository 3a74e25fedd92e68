package export

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadFile_JSONL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "general.jsonl")
	content := `{"channel":"ch1","ts":"1700000000.000100","user":"U_A","text":"hi"}
{"channel":"ch1","ts":"1700000001.000200","user":"U_B","text":"hey","reactions":[{"name":"+1","users":["U_C"]}]}
not json at all
{"channel":"ch1","thread_ts":"1700000000.000100","ts":"1700000002.000300","user":"U_C","text":"thread reply"}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	records, skipped, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if skipped != 1 {
		t.Errorf("skipped = %d, want 1", skipped)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}
	if records[1].Reactions[0].Users[0] != "U_C" {
		t.Errorf("reactions = %v", records[1].Reactions)
	}
	if records[2].Thread != "1700000000.000100" {
		t.Errorf("thread = %q", records[2].Thread)
	}
	if records[0].SourceRef == "" {
		t.Error("source ref not set")
	}
}

func TestReadFile_CSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "export.csv")
	content := `channel,thread,ts,user,text,reactions
ch1,,1700000000.0001,U_A,hi,
ch1,,1700000001.0002,U_B,hey,"[{""name"":""+1"",""users"":[""U_C""]}]"
ch2,1700000000.0001,1700000002.0003,U_C,reply,
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	records, skipped, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if skipped != 0 {
		t.Errorf("skipped = %d, want 0", skipped)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}
	if records[1].Reactions[0].Users[0] != "U_C" {
		t.Errorf("reactions = %v", records[1].Reactions)
	}
	if records[2].Channel != "ch2" || records[2].Thread != "1700000000.0001" {
		t.Errorf("record[2] = %+v", records[2])
	}
}

func TestReadFile_CSVMissingColumn(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.csv")
	if err := os.WriteFile(path, []byte("channel,text\nch1,hi\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, _, err := ReadFile(path); err == nil {
		t.Error("expected error for CSV missing required columns")
	}
}

func TestDiscoverFiles(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"a.jsonl", "b.csv", "c.txt"} {
		if err := os.WriteFile(filepath.Join(sub, name), []byte(""), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	files, err := DiscoverFiles(dir)
	if err != nil {
		t.Fatalf("DiscoverFiles failed: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("files = %v, want the .jsonl and .csv only", files)
	}
}
