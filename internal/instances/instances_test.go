package instances

import (
	"os"
	"path/filepath"
	"testing"

	ps "github.com/mitchellh/go-ps"
)

type mockProcess struct {
	pid        int
	executable string
}

func (m *mockProcess) Pid() int           { return m.pid }
func (m *mockProcess) PPid() int          { return 0 }
func (m *mockProcess) Executable() string { return m.executable }

func setupInstancesTest(t *testing.T, pid int, running map[int]string) string {
	t.Helper()
	oldFind, oldPid := findProcessFunc, getpidFunc
	t.Cleanup(func() {
		findProcessFunc = oldFind
		getpidFunc = oldPid
	})
	findProcessFunc = func(p int) (ps.Process, error) {
		exe, ok := running[p]
		if !ok {
			return nil, nil
		}
		return &mockProcess{pid: p, executable: exe}, nil
	}
	getpidFunc = func() int { return pid }
	return t.TempDir()
}

func TestRegisterAndList(t *testing.T) {
	dir := setupInstancesTest(t, 100, map[int]string{100: "estimator"})

	release, info, err := Register(dir, "estimate:7")
	if err != nil {
		t.Fatal(err)
	}
	if info.PID != 100 || info.ID == "" {
		t.Errorf("info = %+v", info)
	}

	list, err := List(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0] != info {
		t.Errorf("List = %+v, want [%+v]", list, info)
	}

	release()
	if list, _ := List(dir); len(list) != 0 {
		t.Errorf("lockfile survived release: %+v", list)
	}
}

func TestListRemovesStale(t *testing.T) {
	dir := setupInstancesTest(t, 1, map[int]string{200: "estimator", 300: "bash"})

	files := map[string]string{
		"200.lock":  "200|a|fast",
		"300.lock":  "300|b|fast",
		"400.lock":  "400|c|fast",
		"bad.lock":  "garbage",
		"notes.txt": "ignored",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0600); err != nil {
			t.Fatal(err)
		}
	}

	list, err := List(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].PID != 200 || list[0].Scope != "fast" {
		t.Errorf("List = %+v", list)
	}
	for _, name := range []string{"300.lock", "400.lock", "bad.lock"} {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Errorf("%s not removed", name)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); err != nil {
		t.Error("unrelated file removed")
	}
}

func TestOthers(t *testing.T) {
	dir := setupInstancesTest(t, 10, map[int]string{10: "estimator", 11: "estimator", 12: "estimator"})
	for name, content := range map[string]string{
		"10.lock": "10|self|estimate:1",
		"11.lock": "11|peer|estimate:1",
		"12.lock": "12|other|estimate:2",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0600); err != nil {
			t.Fatal(err)
		}
	}

	others, err := Others(dir, "estimate:1")
	if err != nil {
		t.Fatal(err)
	}
	if len(others) != 1 || others[0].ID != "peer" {
		t.Errorf("Others = %+v", others)
	}
}

func TestListMissingDir(t *testing.T) {
	list, err := List(filepath.Join(t.TempDir(), "nope"))
	if err != nil || list != nil {
		t.Errorf("List = %v, %v", list, err)
	}
}
