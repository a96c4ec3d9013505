package main

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"hash/crc32"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

const helperEnv = "GO_WANT_MAIN_HELPER"

// TestHelperProcess is a standard sub-process test helper.
// When invoked with GO_WANT_MAIN_HELPER=1 it strips arguments up to and
// including "--", sets os.Args to the rest and calls main().
func TestHelperProcess(t *testing.T) {
	if os.Getenv(helperEnv) != "1" {
		return
	}
	args := os.Args
	sep := -1
	for i, a := range args {
		if a == "--" {
			sep = i
			break
		}
	}
	if sep >= 0 && sep+1 < len(args) {
		os.Args = append([]string{args[0]}, args[sep+1:]...)
	} else {
		os.Args = []string{args[0]}
	}
	main()
	os.Exit(0)
}

// runMainSubprocess runs main() in a child test process with the given flags.
func runMainSubprocess(t *testing.T, workdir string, flags ...string) (stdout string, stderr string, err error) {
	t.Helper()

	cmd := exec.Command(os.Args[0], "-test.run=TestHelperProcess", "--")
	cmd.Env = append(os.Environ(), helperEnv+"=1")
	cmd.Args = append(cmd.Args, flags...)
	if workdir != "" {
		cmd.Dir = workdir
	}

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err = cmd.Run()
	return outBuf.String(), errBuf.String(), err
}

func exitCode(err error) int {
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	if err != nil {
		return -1
	}
	return 0
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func gzipBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(s)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

const sampleCSV = "sku,price,qty\nA1,10,1\nA2,20,2\nA3,30,3\n"

func TestMain_LocalFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	plain := writeFile(t, dir, "prices.csv", []byte(sampleCSV))
	gz := writeFile(t, dir, "prices.csv.gz", gzipBytes(t, sampleCSV))

	tests := []struct {
		name  string
		flags []string
	}{
		{"plain", []string{"-path", plain, "-required", "sku,price"}},
		{"gzip", []string{"-path", gz, "-required", "sku", "-required", "price"}},
		{"fast_local", []string{"-path", plain, "-required", "sku", "-fast-local", "-workers", "2"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			stdout, stderr, err := runMainSubprocess(t, dir, tc.flags...)
			if err != nil {
				t.Fatalf("exit error: %v\nstderr:\n%s", err, stderr)
			}
			want := `rows=3 headers=["sku" "price" "qty"]`
			if !strings.Contains(stdout, want) {
				t.Fatalf("stdout missing %q:\n%s", want, stdout)
			}
			if !strings.Contains(stdout, "elapsed=") || !strings.Contains(stdout, "rows/sec=") {
				t.Fatalf("stdout missing timing line:\n%s", stdout)
			}
			if strings.Contains(stdout, "crc=") {
				t.Fatalf("crc printed without -verify:\n%s", stdout)
			}
		})
	}
}

func TestMain_VerifyPrintsChecksum(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	p := writeFile(t, dir, "v.csv", []byte("a,b\n1,2\n"))

	stdout, stderr, err := runMainSubprocess(t, dir, "-path", p, "-verify")
	if err != nil {
		t.Fatalf("exit error: %v\nstderr:\n%s", err, stderr)
	}
	want := fmt.Sprintf("crc=0x%08x", crc32.ChecksumIEEE([]byte("1\x1f2")))
	if !strings.Contains(stdout, want) {
		t.Fatalf("stdout missing %q:\n%s", want, stdout)
	}
}

func TestMain_MissingHeaderFails(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	p := writeFile(t, dir, "prices.csv", []byte(sampleCSV))

	stdout, stderr, err := runMainSubprocess(t, dir, "-path", p, "-required", "sku,currency")
	if code := exitCode(err); code != 1 {
		t.Fatalf("exit code = %d, want 1 (stderr=%s)", code, stderr)
	}
	if !strings.Contains(stderr, "currency") {
		t.Fatalf("stderr should name the missing header:\n%s", stderr)
	}
	if strings.Contains(stdout, "rows=") {
		t.Fatalf("no result line expected on failure:\n%s", stdout)
	}
}

func TestMain_InvalidConfigExits2(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	p := writeFile(t, dir, "prices.csv", []byte(sampleCSV))

	_, stderr, err := runMainSubprocess(t, dir, "-path", p, "-delimiter", ";;")
	if code := exitCode(err); code != 2 {
		t.Fatalf("exit code = %d, want 2 (stderr=%s)", code, stderr)
	}
	if !strings.Contains(stderr, "parser.options.delimiter") {
		t.Fatalf("stderr should carry the issue path:\n%s", stderr)
	}
}

func TestMain_ValidateOnly(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfg := writeFile(t, dir, "job.json", []byte(`{
  "job": "prices",
  "source": {"kind": "file", "file": {"path": "does-not-matter.csv"}},
  "parser": {"kind": "csv", "options": {"required": ["sku"]}}
}`))

	stdout, stderr, err := runMainSubprocess(t, dir, "-config", cfg, "-validate")
	if err != nil {
		t.Fatalf("exit error: %v\nstderr:\n%s", err, stderr)
	}
	if stdout != "" {
		t.Fatalf("validate should not ingest, stdout=%q", stdout)
	}
	if !strings.Contains(stderr, "configuration is valid") {
		t.Fatalf("stderr=%s", stderr)
	}
}

func TestMain_HTTPSource(t *testing.T) {
	t.Parallel()
	body := gzipBytes(t, sampleCSV)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)

	stdout, stderr, err := runMainSubprocess(t, t.TempDir(), "-url", srv.URL+"/export", "-required", "qty", "-retries", "0")
	if err != nil {
		t.Fatalf("exit error: %v\nstderr:\n%s", err, stderr)
	}
	if !strings.Contains(stdout, "source="+srv.URL+"/export rows=3") {
		t.Fatalf("stdout=%s", stdout)
	}
}

func TestMain_ListFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "a.csv", []byte(sampleCSV))
	writeFile(t, dir, "b.csv.gz", gzipBytes(t, "sku\nX\n"))
	list := writeFile(t, dir, "sources.txt", []byte("# nightly\na.csv\nb.csv.gz utf-8\n"))

	stdout, stderr, err := runMainSubprocess(t, dir, "-list", list, "-required", "sku")
	if err != nil {
		t.Fatalf("exit error: %v\nstderr:\n%s", err, stderr)
	}
	if !strings.Contains(stdout, "source=a.csv rows=3") || !strings.Contains(stdout, "source=b.csv.gz rows=1") {
		t.Fatalf("stdout=%s", stdout)
	}
}

func TestMain_SQLiteLedgerDrift(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	first := writeFile(t, dir, "day1.csv", []byte("sku,price\nA,1\n"))
	second := writeFile(t, dir, "day2.csv", []byte("sku,price,currency\nA,1,EUR\n"))
	dsn := filepath.Join(dir, "runs.db")

	common := []string{"-job", "prices", "-ledger-kind", "sqlite", "-ledger-dsn", dsn}

	_, stderr, err := runMainSubprocess(t, dir, append([]string{"-path", first}, common...)...)
	if err != nil {
		t.Fatalf("first run: %v\nstderr:\n%s", err, stderr)
	}
	if strings.Contains(stderr, "changed") {
		t.Fatalf("first run must not report drift:\n%s", stderr)
	}

	_, stderr, err = runMainSubprocess(t, dir, append([]string{"-path", second}, common...)...)
	if err != nil {
		t.Fatalf("second run: %v\nstderr:\n%s", err, stderr)
	}
	if !strings.Contains(stderr, `header set of job "prices" changed`) {
		t.Fatalf("expected drift warning, stderr:\n%s", stderr)
	}
}
