package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/animeqa/animeqa/internal/exitcode"
	"github.com/animeqa/animeqa/internal/testutil"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// runCLI executes the root command with args in an isolated environment.
func runCLI(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	t.Setenv("ANIMEQA_BACKEND_URL", "")
	t.Setenv("BACKEND_URL", "")
	t.Chdir(t.TempDir())
	resetFlags(rootCmd)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err = rootCmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

// resetFlags restores every flag to its default so earlier runs don't leak.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	var exitErr exitcode.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("err = %v (%T), want ExitError", err, err)
	}
	return exitErr.Code
}

func TestAskBufferedPrintsAnswer(t *testing.T) {
	fb := testutil.NewFakeBackend(t)

	out, _, err := runCLI(t, "ask", "--backend-url", fb.URL, "Who", "is", "Goku?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if out != "Answer to: Who is Goku?\n" {
		t.Fatalf("stdout = %q", out)
	}
	if fb.Hits("/anime") != 1 || fb.Hits("/anime/stream") != 0 {
		t.Fatalf("hits: anime=%d stream=%d", fb.Hits("/anime"), fb.Hits("/anime/stream"))
	}
}

func TestAskChunkedStreamsTokens(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	fb.Chunks = []string{
		"data: {\"type\":\"status\",\"message\":\"Retrieving documents...\"}\n",
		"data: {\"type\":\"token\",\"content\":\"Hi\"}\n",
		"data: {\"type\":\"token\",\"content\":\" there\"}\n",
		"data: {\"type\":\"done\"}\n",
	}

	out, _, err := runCLI(t, "ask", "--backend-url", fb.URL, "--mode", "chunked", "Say hi")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if out != "Hi there\n" {
		t.Fatalf("stdout = %q", out)
	}
	if q := fb.Queries(); len(q) != 1 || q[0] != "Say hi" {
		t.Fatalf("queries = %v", q)
	}
}

func TestAskEventsModeFromConfig(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	fb.Messages = []string{"Naruto", "is", "great", "[END]"}
	t.Setenv("ANIMEQA_MODE", "events")

	out, _, err := runCLI(t, "ask", "--backend-url", fb.URL, "Is Naruto good?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if out != "Naruto is great\n" {
		t.Fatalf("stdout = %q", out)
	}
	if fb.Hits("/anime_stream") != 1 {
		t.Fatalf("event stream hits = %d", fb.Hits("/anime_stream"))
	}
}

func TestAskBackendErrorExitCode(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	fb.AnswerStatus = 500
	fb.AnswerBody = `{"status":"error","message":"System not initialized"}`

	out, _, err := runCLI(t, "ask", "--backend-url", fb.URL, "Who is Vegeta?")
	if code := exitCode(t, err); code != exitcode.Error {
		t.Fatalf("exit code = %d, want %d", code, exitcode.Error)
	}
	if err.Error() != "Backend error (HTTP 500): System not initialized" {
		t.Fatalf("message = %q", err.Error())
	}
	if out != "" {
		t.Fatalf("stdout = %q, want empty", out)
	}
}

func TestAskIncompleteStreamKeepsPartialOutput(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	fb.Chunks = []string{"data: {\"type\":\"token\",\"content\":\"Half an\"}\n"}

	out, _, err := runCLI(t, "ask", "--backend-url", fb.URL, "-m", "chunked", "q")
	if code := exitCode(t, err); code != exitcode.Error {
		t.Fatalf("exit code = %d", code)
	}
	if out != "Half an\n" {
		t.Fatalf("stdout = %q", out)
	}
	testutil.AssertContains(t, err.Error(), "ended unexpectedly")
}

func TestAskValidation(t *testing.T) {
	fb := testutil.NewFakeBackend(t)

	tests := []struct {
		name string
		args []string
	}{
		{"blank question", []string{"ask", "--backend-url", fb.URL, "   "}},
		{"unknown mode", []string{"ask", "--backend-url", fb.URL, "--mode", "carrier-pigeon", "q"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := runCLI(t, tc.args...)
			if code := exitCode(t, err); code != exitcode.Validation {
				t.Fatalf("exit code = %d, want %d", code, exitcode.Validation)
			}
		})
	}
	if n := len(fb.Queries()); n != 0 {
		t.Fatalf("backend received %d questions", n)
	}
}

func TestInitSendsSettings(t *testing.T) {
	fb := testutil.NewFakeBackend(t)

	out, _, err := runCLI(t, "init", "--backend-url", fb.URL, "--data-dir", "/srv/anime", "--k-docs", "5")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	testutil.AssertContainsPlain(t, out, "System initialized successfully")

	body := fb.LastInitialize()
	if body["data_dir"] != "/srv/anime" {
		t.Fatalf("data_dir = %v", body["data_dir"])
	}
	if body["k_docs"] != float64(5) {
		t.Fatalf("k_docs = %v", body["k_docs"])
	}
}

func TestInitRejectsKDocsOutOfRange(t *testing.T) {
	fb := testutil.NewFakeBackend(t)

	_, _, err := runCLI(t, "init", "--backend-url", fb.URL, "--k-docs", "11")
	if code := exitCode(t, err); code != exitcode.Validation {
		t.Fatalf("exit code = %d", code)
	}
	if fb.Hits("/initialize") != 0 {
		t.Fatal("backend called with invalid settings")
	}
}

func TestInitFailureExitCode(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	fb.InitBody = `{"status":"error","message":"data_dir does not exist"}`

	_, _, err := runCLI(t, "init", "--backend-url", fb.URL)
	if code := exitCode(t, err); code != exitcode.Error {
		t.Fatalf("exit code = %d", code)
	}
	if err.Error() != "data_dir does not exist" {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestInitSaveWritesConfig(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("mode: chunked\n"), 0600); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCLI(t, "init", "--config", path, "--backend-url", fb.URL, "--llm-model", "llama3", "--save")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	testutil.AssertContainsPlain(t, out, "Saved settings to "+path)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	saved := string(data)
	for _, want := range []string{"llm_model: llama3", "mode: chunked"} {
		if !strings.Contains(saved, want) {
			t.Fatalf("saved config missing %q:\n%s", want, saved)
		}
	}
}

func TestConfigShowsEffectiveValues(t *testing.T) {
	out, _, err := runCLI(t, "config", "--backend-url", "http://anime.local:8080/")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	testutil.AssertContains(t, out, "backend_url: http://anime.local:8080\n")
	testutil.AssertContains(t, out, "timeout: 1m0s")
}

func TestConfigPathHonoursFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, nil, 0600); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCLI(t, "config", "path", "--config", path)
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	if strings.TrimSpace(out) != path {
		t.Fatalf("path = %q, want %q", out, path)
	}
}

func TestVersionSkipsConfig(t *testing.T) {
	out, _, err := runCLI(t, "version", "--config", "/does/not/exist.yaml")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	testutil.AssertContains(t, out, "animeqa version dev")
}

func TestInitSaveKeepsFileIndirection(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	t.Setenv("ANIMEQA_TEST_PROD_URL", "http://prod.example:5000")
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("backend_url: ${ANIMEQA_TEST_PROD_URL}\n"), 0600); err != nil {
		t.Fatal(err)
	}

	_, _, err := runCLI(t, "init", "--config", path, "--backend-url", fb.URL, "--k-docs", "4", "--save")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if fb.Hits("/initialize") != 1 {
		t.Fatal("one-off --backend-url was not used for the request")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	saved := string(data)
	if !strings.Contains(saved, "${ANIMEQA_TEST_PROD_URL}") {
		t.Fatalf("saved config lost the env reference:\n%s", saved)
	}
	if strings.Contains(saved, fb.URL) || strings.Contains(saved, "prod.example") {
		t.Fatalf("saved config persisted a resolved URL:\n%s", saved)
	}
	testutil.AssertContains(t, saved, "k_docs: 4")
}

func TestBackendURLFlagIsResolved(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	t.Setenv("ANIMEQA_TEST_FLAG_URL", fb.URL)

	out, _, err := runCLI(t, "ask", "--backend-url", "${ANIMEQA_TEST_FLAG_URL}", "Who is Goku?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if out != "Answer to: Who is Goku?\n" {
		t.Fatalf("stdout = %q", out)
	}
}

func TestConfigPathReportsMissingFile(t *testing.T) {
	out, errOut, err := runCLI(t, "config", "path")
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	want := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "animeqa", "config.yaml")
	if strings.TrimSpace(out) != want {
		t.Fatalf("path = %q, want %q", out, want)
	}
	testutil.AssertContains(t, errOut, "does not exist yet")
}
