package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeCommand runs the command tree with args and captures its output
func executeCommand(args ...string) (string, error) {
	root := newRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(new(bytes.Buffer))
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

// setupEnv points the commands at a temporary sqlite file and a fake
// geocoding service.
func setupEnv(t *testing.T) {
	t.Helper()

	geocodeServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Query().Get("q"), "Nowhere") {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_, _ = w.Write([]byte(`[{"lat":"52.3702","lon":"4.8952"}]`))
	}))
	t.Cleanup(geocodeServer.Close)

	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "properties.db"))
	t.Setenv("GEOCODER_URL", geocodeServer.URL)
	t.Setenv("GEOCODER_RATE_PER_SECOND", "0")
	t.Setenv("GEOCODE_CACHE_ENABLED", "false")
	t.Setenv("LOG_LEVEL", "error")
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "import.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestTemplateCommand(t *testing.T) {
	out, err := executeCommand("template")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "name,price_per_month,location,rooms,bathrooms,"))
	assert.Contains(t, out, "Beautiful Apartment")
}

func TestImportAndExportCommands(t *testing.T) {
	setupEnv(t)

	path := writeCSV(t, "name,price_per_month,location,rooms,bathrooms,square_meters,service_charge,cleaning_fee,commission_charge,url\n"+
		"Canal House,2100,Prinsengracht 263,3,1,90,,,,https://example.com/canal\n"+
		"Studio,800,Damrak 1,1,1,,,,,https://example.com/studio\n")

	out, err := executeCommand("import", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Successfully imported 2 properties")

	out, err = executeCommand("export", "--sort", "price_per_month", "--direction", "desc")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "ID,Name,Price per Month"))
	assert.Contains(t, lines[1], "Canal House")
	assert.Contains(t, lines[2], "Studio")
}

func TestImportCommand_Rejected(t *testing.T) {
	setupEnv(t)

	path := writeCSV(t, "name,price_per_month,location,rooms,bathrooms,square_meters,service_charge,cleaning_fee,commission_charge,url\n"+
		"Good,1000,Damrak 1,1,1,,,,,https://example.com/good\n"+
		"Lost,1000,Nowhere 9,1,1,,,,,https://example.com/lost\n")

	out, err := executeCommand("import", path)
	assert.ErrorIs(t, err, errImportRejected)
	assert.Contains(t, out, "row 2: Failed to geocode location")

	out, err = executeCommand("export")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 1)
}

func TestImportCommand_MissingFile(t *testing.T) {
	setupEnv(t)

	_, err := executeCommand("import", filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestExportCommand_InvalidStatus(t *testing.T) {
	setupEnv(t)

	_, err := executeCommand("export", "--status", "sold")
	assert.Error(t, err)
}
