package supervisor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andrewkhoh/farmhand/internal/layout"
	"github.com/andrewkhoh/farmhand/internal/testrun"
)

func testOutcome() Outcome {
	return Outcome{
		Agent:          "inventory",
		Cycles:         3,
		MaxRestarts:    5,
		Result:         testrun.Result{Pass: 17, Fail: 3, Total: 20, PassRate: 85},
		TargetPassRate: 85,
		FilesModified:  []string{"src/App.tsx"},
	}
}

func TestCompletionSentinelRoundTrip(t *testing.T) {
	paths := layout.New(t.TempDir())

	path, err := WriteCompletionSentinel(paths, testOutcome())
	if err != nil {
		t.Fatalf("WriteCompletionSentinel: %v", err)
	}
	if !strings.HasSuffix(path, "inventory-complete.md") {
		t.Errorf("unexpected sentinel path %s", path)
	}

	p, err := ParseCompletionSentinel(paths, "inventory")
	if err != nil {
		t.Fatalf("ParseCompletionSentinel: %v", err)
	}
	if !p.Complete {
		t.Error("expected complete payload")
	}
	if p.PassRate != 85 || p.Cycles != 3 || p.Agent != "inventory" {
		t.Errorf("unexpected payload %+v", p)
	}
	if len(p.FilesModified) != 1 || p.FilesModified[0] != "src/App.tsx" {
		t.Errorf("unexpected files %v", p.FilesModified)
	}
}

func TestBlockerSentinelRoundTrip(t *testing.T) {
	paths := layout.New(t.TempDir())

	o := testOutcome()
	o.Result = testrun.Result{Pass: 10, Fail: 10, Total: 20, PassRate: 50}
	if _, err := WriteBlockerSentinel(paths, o); err != nil {
		t.Fatalf("WriteBlockerSentinel: %v", err)
	}

	p, err := ParseBlockerSentinel(paths, "inventory")
	if err != nil {
		t.Fatalf("ParseBlockerSentinel: %v", err)
	}
	if p.Complete {
		t.Error("expected incomplete payload")
	}
	if p.PassRate != 50 || p.TargetPassRate != 85 {
		t.Errorf("unexpected payload %+v", p)
	}
}

func TestParseSentinelMissingFile(t *testing.T) {
	paths := layout.New(t.TempDir())

	if _, err := ParseCompletionSentinel(paths, "inventory"); !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestParseSentinelWithoutPayloadBlock(t *testing.T) {
	paths := layout.New(t.TempDir())
	path := paths.HandoffFile("inventory")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("manually marked done\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := ParseCompletionSentinel(paths, "inventory"); err == nil {
		t.Error("expected error for sentinel without payload block")
	}
}
