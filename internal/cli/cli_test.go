package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testDSC = `[Defines]
  PLATFORM_NAME = Demo

[LibraryClasses]
  TimerLib|Libs/Timer/Timer.inf

[Components]
  Drivers/Boot/Boot.inf
  Libs/Timer/Timer.inf
`

const testBootINF = `[Defines]
  BASE_NAME = BootDxe
  MODULE_TYPE = DXE_DRIVER

[Sources]
  Boot.c

[LibraryClasses]
  TimerLib
`

const testTimerINF = `[Defines]
  BASE_NAME = TimerLib
  MODULE_TYPE = BASE

[Sources]
  Timer.c
`

const testBootC = `VOID
EFIAPI
BootMain (
  VOID
  )
{
  StartTimer (10);
}
`

const testTimerC = `EFI_STATUS
EFIAPI
StartTimer (
  IN UINTN Interval
  )
{
  return EFI_SUCCESS;
}
`

func testWorkspace(t *testing.T) (root, dsc string) {
	t.Helper()
	root = t.TempDir()
	files := map[string]string{
		"Platform.dsc":          testDSC,
		"Drivers/Boot/Boot.inf": testBootINF,
		"Drivers/Boot/Boot.c":   testBootC,
		"Libs/Timer/Timer.inf":  testTimerINF,
		"Libs/Timer/Timer.c":    testTimerC,
	}
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir for %s: %v", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
	return root, filepath.Join(root, "Platform.dsc")
}

func runCommand(t *testing.T, args ...string) string {
	t.Helper()
	var buf bytes.Buffer
	cmd := NewRootCommand("test")
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("command %v: %v\noutput: %s", args, err, buf.String())
	}
	return buf.String()
}

func TestVersionCommand(t *testing.T) {
	out := runCommand(t, "version")
	if !strings.Contains(out, "edk2nav test") {
		t.Fatalf("unexpected version output: %q", out)
	}
}

func TestModulesCommand(t *testing.T) {
	root, dsc := testWorkspace(t)

	out := runCommand(t, "modules", "--dsc", dsc, "--workspace", root, "--no-cache")
	if !strings.Contains(out, "BootDxe") || !strings.Contains(out, "TimerLib") {
		t.Fatalf("expected both modules, got: %q", out)
	}
	if !strings.Contains(out, "2 modules") {
		t.Fatalf("expected the module count, got: %q", out)
	}

	filtered := runCommand(t, "modules", "--dsc", dsc, "--workspace", root, "--no-cache", "--type", "BASE")
	if strings.Contains(filtered, "BootDxe") || !strings.Contains(filtered, "TimerLib") {
		t.Fatalf("type filter broken: %q", filtered)
	}
}

func TestModulesCommandJSON(t *testing.T) {
	root, dsc := testWorkspace(t)

	out := runCommand(t, "modules", "--dsc", dsc, "--workspace", root, "--no-cache", "--json")
	if !strings.Contains(out, `"name": "BootDxe"`) {
		t.Fatalf("expected JSON module records, got: %q", out)
	}
}

func TestDepsCommand(t *testing.T) {
	root, dsc := testWorkspace(t)

	out := runCommand(t, "deps", "BootDxe", "--dsc", dsc, "--workspace", root, "--no-cache")
	if !strings.Contains(out, "libs/timer/timer.inf") {
		t.Fatalf("expected the resolved timer dependency, got: %q", out)
	}
}

func TestTraceCommand(t *testing.T) {
	root, dsc := testWorkspace(t)

	out := runCommand(t, "trace", "StartTimer", "--dsc", dsc, "--workspace", root, "--no-cache")
	if !strings.Contains(out, "BootMain -> StartTimer") {
		t.Fatalf("expected the driver call site, got: %q", out)
	}
}

func TestMissingDSCFails(t *testing.T) {
	cmd := NewRootCommand("test")
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"modules"})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "--dsc") {
		t.Fatalf("expected a missing --dsc error, got %v", err)
	}
}

func TestCutDefine(t *testing.T) {
	if key, value, ok := cutDefine("SECURE_BOOT=TRUE"); !ok || key != "SECURE_BOOT" || value != "TRUE" {
		t.Fatalf("unexpected parse: %q %q %v", key, value, ok)
	}
	if _, _, ok := cutDefine("NOEQUALS"); ok {
		t.Fatalf("defines without '=' must be rejected")
	}
	if _, _, ok := cutDefine("=VALUE"); ok {
		t.Fatalf("empty keys must be rejected")
	}
}
