package bridge

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// Runtime is an installed language runtime.
type Runtime struct {
	// Name is a display name such as "python3".
	Name string
	// Version is the full version string, or "" if unknown.
	Version string
	// Arch is the CPU architecture, or "" if unknown.
	Arch string
	// Path is the Java home directory or the interpreter executable.
	Path string
}

// Runtimes discovers installed runtimes.
type Runtimes interface {
	Javas(ctx context.Context) []Runtime
	Pythons(ctx context.Context) []Runtime
}

// DiscoveryConfig configures runtime discovery.
type DiscoveryConfig struct {
	// JavaVersions lists preferred major versions; matching installs are
	// listed first.
	JavaVersions []string
	// JavaDirs are extra directories whose children are Java homes.
	JavaDirs []string
	// Pythons are interpreter names looked up on PATH.
	Pythons []string
}

// Discovery finds runtimes on the local machine.
type Discovery struct {
	cfg      DiscoveryConfig
	fs       afero.Fs
	getenv   func(string) string
	lookPath func(string) (string, error)
	version  func(ctx context.Context, exe string) string
}

// NewDiscovery creates a Discovery reading the OS filesystem and
// environment.
func NewDiscovery(cfg DiscoveryConfig) *Discovery {
	return &Discovery{
		cfg:      cfg,
		fs:       afero.NewOsFs(),
		getenv:   os.Getenv,
		lookPath: exec.LookPath,
		version:  pythonVersion,
	}
}

// Javas returns the Java installations found through JAVA_HOME, the java
// executable on PATH, and the platform's JVM directories. Preferred
// versions come first; otherwise newer versions come first.
func (d *Discovery) Javas(ctx context.Context) []Runtime {
	seen := make(map[string]bool)
	var out []Runtime

	add := func(home string) {
		if home == "" {
			return
		}
		home = filepath.Clean(home)
		if seen[home] {
			return
		}
		seen[home] = true
		if rt, ok := d.readJavaHome(home); ok {
			out = append(out, rt)
		}
	}

	add(d.getenv("JAVA_HOME"))

	if exe, err := d.lookPath(javaExe()); err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		add(filepath.Dir(filepath.Dir(exe)))
	}

	dirs := append(append([]string(nil), d.cfg.JavaDirs...), jvmDirs()...)
	for _, dir := range dirs {
		entries, err := afero.ReadDir(d.fs, dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			home := filepath.Join(dir, e.Name())
			if runtime.GOOS == "darwin" {
				if ok, _ := afero.DirExists(d.fs, filepath.Join(home, "Contents", "Home")); ok {
					home = filepath.Join(home, "Contents", "Home")
				}
			}
			add(home)
		}
	}

	d.sortJavas(out)
	return out
}

// readJavaHome reads the release file at the root of a Java home.
func (d *Discovery) readJavaHome(home string) (Runtime, bool) {
	data, err := afero.ReadFile(d.fs, filepath.Join(home, "release"))
	if err != nil {
		return Runtime{}, false
	}

	props := parseRelease(data)
	version := props["JAVA_VERSION"]
	if version == "" {
		return Runtime{}, false
	}

	return Runtime{
		Name:    props["IMPLEMENTOR"],
		Version: version,
		Arch:    props["OS_ARCH"],
		Path:    home,
	}, true
}

func (d *Discovery) sortJavas(rts []Runtime) {
	preferred := make(map[string]int, len(d.cfg.JavaVersions))
	for i, v := range d.cfg.JavaVersions {
		preferred[v] = i
	}
	rank := func(rt Runtime) int {
		if i, ok := preferred[javaMajor(rt.Version)]; ok {
			return i
		}
		return len(preferred)
	}

	sort.SliceStable(rts, func(i, j int) bool {
		ri, rj := rank(rts[i]), rank(rts[j])
		if ri != rj {
			return ri < rj
		}
		return compareVersions(rts[i].Version, rts[j].Version) > 0
	})
}

// Pythons returns the configured interpreters found on PATH, skipping
// names that resolve to the same executable.
func (d *Discovery) Pythons(ctx context.Context) []Runtime {
	seen := make(map[string]bool)
	var out []Runtime

	for _, name := range d.cfg.Pythons {
		exe, err := d.lookPath(name)
		if err != nil {
			continue
		}
		key := exe
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			key = resolved
		}
		if seen[key] {
			continue
		}
		seen[key] = true

		out = append(out, Runtime{
			Name:    name,
			Version: d.version(ctx, exe),
			Path:    exe,
		})
	}
	return out
}

// parseRelease parses the KEY="value" lines of a Java release file.
func parseRelease(data []byte) map[string]string {
	props := make(map[string]string)
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok || key == "" {
			continue
		}
		props[key] = strings.Trim(value, `"`)
	}
	return props
}

// javaMajor returns the major version: "1.8.0_392" is 8, "21.0.1" is 21.
func javaMajor(v string) string {
	parts := strings.Split(v, ".")
	if len(parts) > 1 && parts[0] == "1" {
		return parts[1]
	}
	return strings.SplitN(parts[0], "-", 2)[0]
}

// compareVersions compares dotted versions numerically where possible.
func compareVersions(a, b string) int {
	pa := strings.FieldsFunc(a, isVersionSep)
	pb := strings.FieldsFunc(b, isVersionSep)
	for i := 0; i < len(pa) && i < len(pb); i++ {
		if c := compareNumeric(pa[i], pb[i]); c != 0 {
			return c
		}
	}
	return len(pa) - len(pb)
}

func isVersionSep(r rune) bool {
	return r == '.' || r == '_' || r == '-' || r == '+'
}

func compareNumeric(a, b string) int {
	if len(a) != len(b) && isDigits(a) && isDigits(b) {
		return len(a) - len(b)
	}
	return strings.Compare(a, b)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func javaExe() string {
	if runtime.GOOS == "windows" {
		return "java.exe"
	}
	return "java"
}

func jvmDirs() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{"/Library/Java/JavaVirtualMachines"}
	case "windows":
		return []string{
			`C:\Program Files\Java`,
			`C:\Program Files\Eclipse Adoptium`,
			`C:\Program Files\Microsoft`,
		}
	default:
		return []string{"/usr/lib/jvm", "/usr/java", "/opt/java"}
	}
}

// pythonVersion runs "exe --version" and returns the version number.
func pythonVersion(ctx context.Context, exe string) string {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, exe, "--version").CombinedOutput()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(string(out)), "Python"))
}
