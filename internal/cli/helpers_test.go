package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const priceHeader = "Item,Acct,Updated,Contract,Vendor,Catalogue,Price\n"

// cliFixture is a workspace with a config file pointing at the test
// table definitions and a private data directory.
type cliFixture struct {
	dir     string
	dataDir string
	config  string
}

func newCLIFixture(t *testing.T, extra string) *cliFixture {
	t.Helper()
	specs, err := filepath.Abs(filepath.Join("testdata", "tables"))
	require.NoError(t, err)

	dir := t.TempDir()
	fx := &cliFixture{
		dir:     dir,
		dataDir: filepath.Join(dir, "data"),
		config:  filepath.Join(dir, "tablesync.yaml"),
	}
	cfg := "specs: " + specs + "\n" +
		"data_dir: " + fx.dataDir + "\n" +
		"log:\n  level: error\n" + extra
	require.NoError(t, os.WriteFile(fx.config, []byte(cfg), 0o644))
	return fx
}

// csv writes an extract with the price header and returns its path.
func (fx *cliFixture) csv(t *testing.T, name string, rows ...string) string {
	t.Helper()
	path := filepath.Join(fx.dir, name)
	body := priceHeader + strings.Join(rows, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// run executes a single command built by newCmd against the fixture config.
func (fx *cliFixture) run(format string, newCmd func(*RootOptions) *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	opts := &RootOptions{Format: format, ConfigPath: fx.config}
	cmd := newCmd(opts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
