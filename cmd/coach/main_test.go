package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/felixgeelhaar/coach/internal/domain"
	"github.com/felixgeelhaar/coach/internal/engine"
)

// execute runs the CLI against a throwaway COACH_HOME.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&out)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCmd_Commands(t *testing.T) {
	root := newRootCmd()
	want := []string{"question", "session", "submit", "draft", "start", "stop", "status", "logs", "worker", "mcp", "config", "version"}
	for _, name := range want {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if out != "coach dev\n" {
		t.Errorf("version output = %q", out)
	}
}

func TestQuestionAndSessionCommands(t *testing.T) {
	home := t.TempDir()
	t.Setenv("COACH_HOME", home)

	out, err := execute(t, "question", "list")
	if err != nil {
		t.Fatalf("question list error = %v", err)
	}
	if !strings.Contains(out, "parens") {
		t.Errorf("question list output = %q", out)
	}

	starter := filepath.Join(home, "solution.py")
	out, err = execute(t, "session", "new", "parens", "--out", starter)
	if err != nil {
		t.Fatalf("session new error = %v", err)
	}
	id := regexp.MustCompile(`Session: (\S+)`).FindStringSubmatch(out)
	if id == nil {
		t.Fatalf("no session id in %q", out)
	}
	if data, err := os.ReadFile(starter); err != nil || !strings.Contains(string(data), "def isBalanced") {
		t.Errorf("starting code = %q, %v", data, err)
	}

	out, err = execute(t, "session", "show", id[1])
	if err != nil {
		t.Fatalf("session show error = %v", err)
	}
	if !strings.Contains(out, "Status:      active") {
		t.Errorf("session show output = %q", out)
	}

	if _, err := execute(t, "session", "delete", id[1]); err != nil {
		t.Fatalf("session delete error = %v", err)
	}
	if _, err := execute(t, "session", "show", id[1]); err == nil {
		t.Error("expected error showing a deleted session")
	}
}

func TestDraftCommands(t *testing.T) {
	home := t.TempDir()
	t.Setenv("COACH_HOME", home)

	src := filepath.Join(home, "draft.py")
	if err := os.WriteFile(src, []byte("def isBalanced(s):\n    return True\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "draft", "save", "parens", src); err != nil {
		t.Fatalf("draft save error = %v", err)
	}
	out, err := execute(t, "draft", "show", "parens")
	if err != nil {
		t.Fatalf("draft show error = %v", err)
	}
	if !strings.Contains(out, "return True") {
		t.Errorf("draft show output = %q", out)
	}
	if _, err := execute(t, "draft", "clear", "parens"); err != nil {
		t.Fatalf("draft clear error = %v", err)
	}
	if _, err := execute(t, "draft", "show", "parens"); err == nil {
		t.Error("expected error for a cleared draft")
	}
}

func TestPrintOutcome(t *testing.T) {
	tests := []struct {
		name    string
		outcome *engine.Outcome
		want    []string
	}{
		{
			name: "failure",
			outcome: &engine.Outcome{
				Feedback:      domain.NewFeedback(domain.CategoryIncorrectOutputFailure).AppendText("Wrong answer for:").AppendCode("isBalanced(\")(\")"),
				Reinforcement: []string{"Handles simple strings"},
			},
			want: []string{"[incorrect output failure] task 1", "Wrong answer for:\n\n    isBalanced(\")(\")", "✓ Handles simple strings"},
		},
		{
			name: "advanced",
			outcome: &engine.Outcome{
				TaskIndex:        0,
				Feedback:         domain.NewFeedback(domain.CategorySuccessful).AppendText("Nice."),
				Advanced:         true,
				NextInstructions: []string{"Now support brackets."},
			},
			want: []string{"[successful]", "Task complete. Next:", "Now support brackets."},
		},
		{
			name: "completed",
			outcome: &engine.Outcome{
				TaskIndex: 2,
				Feedback:  domain.NewFeedback(domain.CategorySuccessful).AppendText("Done."),
				Completed: true,
			},
			want: []string{"task 3", "All tasks complete."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printOutcome(&buf, tt.outcome)
			for _, w := range tt.want {
				if !strings.Contains(buf.String(), w) {
					t.Errorf("output %q missing %q", buf.String(), w)
				}
			}
		})
	}
}

func TestTailFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coachd.log")
	if err := os.WriteFile(path, []byte("first line\nsecond line\nthird line\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := tailFile(&buf, path, 16); err != nil {
		t.Fatalf("tailFile() error = %v", err)
	}
	if buf.String() != "third line\n" {
		t.Errorf("tailFile() = %q, want only the last complete line", buf.String())
	}
}

func TestReadPID(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.pid")
	bad := filepath.Join(dir, "bad.pid")
	_ = os.WriteFile(good, []byte("4242\n"), 0644)
	_ = os.WriteFile(bad, []byte("nope"), 0644)

	if pid, err := readPID(good); err != nil || pid != 4242 {
		t.Errorf("readPID(good) = %d, %v", pid, err)
	}
	if _, err := readPID(bad); err == nil {
		t.Error("expected error for malformed PID file")
	}
	if _, err := readPID(filepath.Join(dir, "missing.pid")); err == nil {
		t.Error("expected error for missing PID file")
	}
}
