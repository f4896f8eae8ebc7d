package migrations

import (
	"testing"
	"testing/fstest"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name    string
		want    int
		wantErr bool
	}{
		{"001_initial.sql", 1, false},
		{"012_drafts.sql", 12, false},
		{"initial.sql", 0, true},
		{"abc_initial.sql", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseVersion(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseVersion(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseVersion(%q) = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestLoad(t *testing.T) {
	fsys := fstest.MapFS{
		"db/010_late.sql":    {Data: []byte("late")},
		"db/002_second.sql":  {Data: []byte("second")},
		"db/001_initial.sql": {Data: []byte("initial")},
		"db/README.md":       {Data: []byte("docs")},
		"db/notes.sql":       {Data: []byte("ignored")},
	}

	tests := []struct {
		after int
		want  []int
	}{
		{0, []int{1, 2, 10}},
		{1, []int{2, 10}},
		{10, nil},
	}
	for _, tt := range tests {
		got, err := Load(fsys, "db", tt.after)
		if err != nil {
			t.Fatalf("Load(after=%d) error = %v", tt.after, err)
		}
		if len(got) != len(tt.want) {
			t.Fatalf("Load(after=%d) = %d migrations, want %d", tt.after, len(got), len(tt.want))
		}
		for i, m := range got {
			if m.Version != tt.want[i] {
				t.Errorf("Load(after=%d)[%d].Version = %d, want %d", tt.after, i, m.Version, tt.want[i])
			}
		}
	}

	if _, err := Load(fsys, "missing", 0); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestEmbeddedSchemas(t *testing.T) {
	for _, d := range []Dialect{SQLite, Postgres} {
		got, err := Load(files, d.Name, 0)
		if err != nil {
			t.Fatalf("Load(%s) error = %v", d.Name, err)
		}
		if len(got) == 0 || got[0].Version != 1 {
			t.Errorf("%s migrations = %+v, want to start at version 1", d.Name, got)
		}
	}
}
