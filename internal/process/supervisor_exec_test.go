//go:build !windows

package process

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dshills/scaffoldhost/internal/event"
)

func writeWrapper(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(filepath.Join(dir, "gradlew"), []byte(script), 0o755); err != nil {
		t.Fatalf("write wrapper: %v", err)
	}
	return dir
}

func newExecSupervisor(t *testing.T, rec *event.Recorder, cfg LauncherConfig) *Supervisor {
	t.Helper()
	sup := NewSupervisor(WithSink(rec), WithLauncher(NewExecLauncher(cfg)))
	t.Cleanup(func() {
		sup.Shutdown()
		sup.Wait()
	})
	return sup
}

func stdoutLines(events []event.Event) []string {
	var lines []string
	for _, e := range events {
		if out, ok := e.(event.OutputEvent); ok && out.Stream == event.Stdout {
			lines = append(lines, out.Data)
		}
	}
	return lines
}

func TestSupervisor_ExecStreamsOutput(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping process test in short mode")
	}

	dir := writeWrapper(t, `echo "args:$*"; echo "home:[$JAVA_HOME]"; echo oops >&2; exit 2`)
	rec := event.NewRecorder()
	sup := newExecSupervisor(t, rec, DefaultLauncherConfig())

	pid, err := sup.Spawn(context.Background(), SpawnRequest{
		WorkDir:     dir,
		RuntimeHome: "/opt/jdk",
		Args:        []string{"run", "-x", "test"},
	})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	te, ok := rec.WaitForExit(pid, 10*time.Second)
	if !ok {
		t.Fatal("timed out waiting for exit")
	}
	if te.Exit.CodeString() != "2" || te.Exit.SignalString() != "0" {
		t.Errorf("unexpected exit %+v", te.Exit)
	}

	got := strings.Join(stdoutLines(rec.ForPID(pid)), "|")
	if got != "args:run -x test|home:[/opt/jdk]" {
		t.Errorf("stdout = %q", got)
	}

	var stderr []string
	for _, e := range rec.ForPID(pid) {
		if out, ok := e.(event.OutputEvent); ok && out.Stream == event.Stderr {
			stderr = append(stderr, out.Data)
		}
	}
	if strings.Join(stderr, "|") != "oops" {
		t.Errorf("stderr = %q", stderr)
	}

	if !waitFor(t, 2*time.Second, func() bool { return !sup.Running(pid) }) {
		t.Error("process still registered after exit")
	}
}

func TestSupervisor_ExecInheritsRuntimeHome(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping process test in short mode")
	}

	t.Setenv("JAVA_HOME", "/inherited")
	dir := writeWrapper(t, `echo "home:[$JAVA_HOME]"`)
	rec := event.NewRecorder()
	sup := newExecSupervisor(t, rec, DefaultLauncherConfig())

	pid, err := sup.Spawn(context.Background(), SpawnRequest{WorkDir: dir})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	if _, ok := rec.WaitForExit(pid, 10*time.Second); !ok {
		t.Fatal("timed out waiting for exit")
	}

	if got := strings.Join(stdoutLines(rec.ForPID(pid)), "|"); got != "home:[/inherited]" {
		t.Errorf("stdout = %q", got)
	}
}

func TestSupervisor_ExecKill(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping process test in short mode")
	}

	dir := writeWrapper(t, `exec sleep 30`)
	rec := event.NewRecorder()
	sup := newExecSupervisor(t, rec, DefaultLauncherConfig())

	pid, err := sup.Spawn(context.Background(), SpawnRequest{WorkDir: dir})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	alive, err := Alive(pid)
	if err != nil || !alive {
		t.Fatalf("expected pid %s to be alive: %v", pid, err)
	}

	sup.Kill(pid)

	te, ok := rec.WaitForExit(pid, 5*time.Second)
	if !ok {
		t.Fatal("timed out waiting for exit after kill")
	}
	if !te.Exit.HasSignal || te.Exit.Signal != 9 {
		t.Errorf("expected SIGKILL, got %+v", te.Exit)
	}
	if te.Exit.CodeString() != "0" {
		t.Errorf("signalled exit should encode code as 0, got %q", te.Exit.CodeString())
	}

	alive, err = Alive(pid)
	if err != nil {
		t.Fatalf("Alive failed: %v", err)
	}
	if alive {
		t.Errorf("pid %s still present after termination", pid)
	}
}

func TestSupervisor_ExecKillReachesDescendants(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping process test in short mode")
	}

	// The background sleep holds the output pipes open; the exit only
	// arrives promptly if it is killed along with the wrapper.
	dir := writeWrapper(t, `sleep 30 & wait`)
	rec := event.NewRecorder()
	cfg := DefaultLauncherConfig()
	cfg.WaitDelay = 30 * time.Second
	sup := newExecSupervisor(t, rec, cfg)

	pid, err := sup.Spawn(context.Background(), SpawnRequest{WorkDir: dir})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	if !waitFor(t, 5*time.Second, func() bool {
		children, _ := Children(pid)
		return len(children) > 0
	}) {
		t.Fatal("wrapper never started its child")
	}

	sup.Kill(pid)

	if _, ok := rec.WaitForExit(pid, 5*time.Second); !ok {
		t.Fatal("exit not observed; descendant kept the pipes open")
	}
}

func TestSupervisor_ExecShutdownKillsAll(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping process test in short mode")
	}

	dir := writeWrapper(t, `exec sleep 30`)
	rec := event.NewRecorder()
	sup := newExecSupervisor(t, rec, DefaultLauncherConfig())

	var pids []string
	for i := 0; i < 3; i++ {
		pid, err := sup.Spawn(context.Background(), SpawnRequest{WorkDir: dir})
		if err != nil {
			t.Fatalf("Spawn failed: %v", err)
		}
		pids = append(pids, pid)
	}

	if n := sup.Shutdown(); n != 3 {
		t.Errorf("Shutdown killed %d, want 3", n)
	}

	done := make(chan struct{})
	go func() {
		sup.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("monitors did not finish after shutdown")
	}

	for _, pid := range pids {
		if len(rec.Terminations(pid)) != 1 {
			t.Errorf("pid %s: expected one termination event", pid)
		}
		if alive, _ := Alive(pid); alive {
			t.Errorf("pid %s still present after shutdown", pid)
		}
	}
}

func TestSupervisor_ExecMissingWrapper(t *testing.T) {
	rec := event.NewRecorder()
	sup := newExecSupervisor(t, rec, DefaultLauncherConfig())

	_, err := sup.Spawn(context.Background(), SpawnRequest{WorkDir: t.TempDir()})
	var se *SpawnError
	if !errors.As(err, &se) {
		t.Fatalf("expected *SpawnError, got %T (%v)", err, err)
	}
	if se.Error() == "" {
		t.Error("expected a non-empty error message")
	}
	if sup.Count() != 0 {
		t.Errorf("expected nothing registered, got %d", sup.Count())
	}
	if len(rec.Events()) != 0 {
		t.Errorf("expected no events, got %d", len(rec.Events()))
	}
}

func TestSupervisor_ExecPython(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping process test in short mode")
	}

	rec := event.NewRecorder()
	sup := newExecSupervisor(t, rec, DefaultLauncherConfig())

	pid, err := sup.Spawn(context.Background(), SpawnRequest{
		WorkDir:     t.TempDir(),
		Language:    LanguagePython,
		Interpreter: "sh",
		Args:        []string{"-c", "pwd >/dev/null && echo py"},
	})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	te, ok := rec.WaitForExit(pid, 10*time.Second)
	if !ok {
		t.Fatal("timed out waiting for exit")
	}
	if !te.Exit.Success() {
		t.Errorf("unexpected exit %+v", te.Exit)
	}
	if got := strings.Join(stdoutLines(rec.ForPID(pid)), "|"); got != "py" {
		t.Errorf("stdout = %q", got)
	}
}

func TestSupervisor_ExecNonexistentExecutable(t *testing.T) {
	rec := event.NewRecorder()
	sup := newExecSupervisor(t, rec, DefaultLauncherConfig())

	_, err := sup.Spawn(context.Background(), SpawnRequest{
		WorkDir:     t.TempDir(),
		Language:    LanguagePython,
		Interpreter: "/nonexistent/interpreter",
	})
	var se *SpawnError
	if !errors.As(err, &se) {
		t.Fatalf("expected *SpawnError, got %T (%v)", err, err)
	}
	if se.Error() == "" {
		t.Error("expected a non-empty message")
	}
	if sup.Count() != 0 {
		t.Errorf("expected nothing registered, got %d", sup.Count())
	}
}

func TestSupervisor_ExecKillOneOfTwo(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping process test in short mode")
	}

	dir := writeWrapper(t, `while true; do echo tick; sleep 0.05; done`)
	rec := event.NewRecorder()
	sup := newExecSupervisor(t, rec, DefaultLauncherConfig())

	first, err := sup.Spawn(context.Background(), SpawnRequest{WorkDir: dir})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	second, err := sup.Spawn(context.Background(), SpawnRequest{WorkDir: dir})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct PIDs, got %s twice", first)
	}
	if sup.Count() != 2 {
		t.Fatalf("expected 2 registered, got %d", sup.Count())
	}

	sup.Kill(first)
	if _, ok := rec.WaitForExit(first, 5*time.Second); !ok {
		t.Fatal("first process did not exit")
	}

	if !sup.Running(second) {
		t.Fatal("second process was removed by killing the first")
	}

	before := len(rec.ForPID(second))
	if !waitFor(t, 5*time.Second, func() bool { return len(rec.ForPID(second)) > before+2 }) {
		t.Fatal("second process stopped producing output")
	}
	for _, e := range rec.ForPID(second) {
		if e.ProcessID() != second {
			t.Fatalf("event for %s tagged %s", second, e.ProcessID())
		}
	}
	if len(rec.Terminations(second)) != 0 {
		t.Error("second process reported a termination")
	}
}

func TestSupervisor_ExecConcurrentSpawnsNotCrossTagged(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping process test in short mode")
	}

	dir := writeWrapper(t, `for i in 1 2 3 4 5; do echo "$$"; done`)
	rec := event.NewRecorder()
	sup := newExecSupervisor(t, rec, DefaultLauncherConfig())

	const n = 8
	pids := make(chan string, n)
	for i := 0; i < n; i++ {
		go func() {
			pid, err := sup.Spawn(context.Background(), SpawnRequest{WorkDir: dir})
			if err != nil {
				t.Errorf("Spawn failed: %v", err)
			}
			pids <- pid
		}()
	}

	seen := make(map[string]bool)
	for i := 0; i < n; i++ {
		pid := <-pids
		if pid == "" {
			continue
		}
		if seen[pid] {
			t.Errorf("duplicate pid %s", pid)
		}
		seen[pid] = true
	}

	for pid := range seen {
		if _, ok := rec.WaitForExit(pid, 10*time.Second); !ok {
			t.Fatalf("pid %s did not exit", pid)
		}
		lines := stdoutLines(rec.ForPID(pid))
		if len(lines) != 5 {
			t.Errorf("pid %s: expected 5 lines, got %d", pid, len(lines))
		}
		for _, line := range lines {
			if line != pid {
				t.Errorf("pid %s received output from %s", pid, line)
			}
		}
	}
}
