package bridge

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/spf13/afero"
)

func newTestDiscovery(t *testing.T, cfg DiscoveryConfig, files map[string]string, env map[string]string, path map[string]string) *Discovery {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, content := range files {
		if err := afero.WriteFile(fs, name, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return &Discovery{
		cfg:    cfg,
		fs:     fs,
		getenv: func(k string) string { return env[k] },
		lookPath: func(name string) (string, error) {
			if p, ok := path[name]; ok {
				return p, nil
			}
			return "", errors.New("not found")
		},
		version: func(_ context.Context, exe string) string {
			if exe == "/usr/bin/python3" {
				return "3.12.1"
			}
			return ""
		},
	}
}

func TestDiscovery_Javas(t *testing.T) {
	d := newTestDiscovery(t,
		DiscoveryConfig{JavaVersions: []string{"17"}, JavaDirs: []string{"/jvms"}},
		map[string]string{
			"/env/jdk/release":   "JAVA_VERSION=\"11.0.21\"\nOS_ARCH=\"x86_64\"\n",
			"/jvms/a/release":    "IMPLEMENTOR=\"Eclipse Adoptium\"\nJAVA_VERSION=\"21.0.2\"\nOS_ARCH=\"aarch64\"\n",
			"/jvms/b/release":    "JAVA_VERSION=\"17.0.9\"\nOS_ARCH=\"x86_64\"\n",
			"/jvms/c/readme.txt": "not a jdk",
		},
		map[string]string{"JAVA_HOME": "/env/jdk"},
		nil,
	)

	javas := d.Javas(context.Background())
	var paths []string
	for _, j := range javas {
		paths = append(paths, j.Path)
	}

	want := []string{"/jvms/b", "/jvms/a", "/env/jdk"}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("Javas paths = %v, want %v", paths, want)
	}
	if javas[1].Name != "Eclipse Adoptium" || javas[1].Arch != "aarch64" {
		t.Errorf("unexpected runtime %+v", javas[1])
	}
}

func TestDiscovery_JavasDeduplicates(t *testing.T) {
	d := newTestDiscovery(t,
		DiscoveryConfig{JavaDirs: []string{"/jvms"}},
		map[string]string{"/jvms/a/release": "JAVA_VERSION=\"21\"\n"},
		map[string]string{"JAVA_HOME": "/jvms/a/"},
		map[string]string{"java": "/jvms/a/bin/java"},
	)

	if n := len(d.Javas(context.Background())); n != 1 {
		t.Errorf("expected 1 runtime, got %d", n)
	}
}

func TestDiscovery_Pythons(t *testing.T) {
	d := newTestDiscovery(t,
		DiscoveryConfig{Pythons: []string{"python3", "python", "pypy"}},
		nil, nil,
		map[string]string{"python3": "/usr/bin/python3", "python": "/opt/py/python"},
	)

	got := d.Pythons(context.Background())
	want := []Runtime{
		{Name: "python3", Version: "3.12.1", Path: "/usr/bin/python3"},
		{Name: "python", Version: "", Path: "/opt/py/python"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Pythons = %+v, want %+v", got, want)
	}
}

func TestJavaMajor(t *testing.T) {
	tests := map[string]string{
		"1.8.0_392": "8",
		"21.0.2":    "21",
		"17":        "17",
		"22-ea":     "22",
	}
	for in, want := range tests {
		if got := javaMajor(in); got != want {
			t.Errorf("javaMajor(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCompareVersions(t *testing.T) {
	if compareVersions("21.0.10", "21.0.9") <= 0 {
		t.Error("21.0.10 should be newer than 21.0.9")
	}
	if compareVersions("11.0.1", "17.0.1") >= 0 {
		t.Error("11 should be older than 17")
	}
	if compareVersions("17.0.1", "17.0.1") != 0 {
		t.Error("equal versions should compare equal")
	}
}
