package printer_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/modkeeper/internal/model"
	"github.com/slok/modkeeper/internal/printer"
)

func itemsFixture() []model.InstalledItem {
	installedAt := time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC)
	return []model.InstalledItem{
		{ID: "01", ModeID: "skyrim", Name: "SkyUI", Version: "5.2", FormatVersion: 1, Path: "/games/skyrim/Data/SkyUI.esp", InstalledAt: installedAt},
		{ID: "02", ModeID: "skyrim", Name: "USLEEP", Version: "4.2", FormatVersion: model.CurrentInstallFormatVersion, Path: "/games/skyrim/Data/USLEEP.esp", InstalledAt: installedAt},
	}
}

func TestTablePrinterPrintItems(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintItems(itemsFixture())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "v1 (outdated)")
	assert.Contains(t, out, "/games/skyrim/Data/USLEEP.esp")
}

func TestJSONPrinterPrintItems(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)

	err := p.PrintItems(itemsFixture())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"name": "SkyUI"`)
	assert.Contains(t, out, `"outdated": true`)
	assert.Contains(t, out, `"installed_at": "2026-01-30T10:00:00Z"`)
}

func TestTablePrinterPrintModes(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintModes([]model.ModeStatus{
		{Mode: model.GameMode{ID: "fallout4", Name: "Fallout 4"}},
		{Mode: model.GameMode{ID: "skyrim", Name: "Skyrim"}, Default: true, InstallPath: "/games/skyrim", Items: 3, DataBytes: 1536},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "fallout4")
	assert.Contains(t, lines[1], "-")
	assert.Contains(t, lines[2], "*")
	assert.Contains(t, lines[2], "1.5 KB")
}

func TestPrintChecks(t *testing.T) {
	results := []model.CheckResult{
		{ID: "install_path_writable", Status: model.CheckStatusOK, Message: "/games/skyrim is writable"},
		{ID: "mods_writable", Status: model.CheckStatusError, Message: "writes are redirected"},
	}

	var table bytes.Buffer
	require.NoError(t, printer.NewTablePrinter(&table).PrintChecks("skyrim", results))
	assert.Contains(t, table.String(), "Checking skyrim...")
	assert.Contains(t, table.String(), "XX mods_writable")

	var js bytes.Buffer
	require.NoError(t, printer.NewJSONPrinter(&js).PrintChecks("skyrim", results))
	assert.Contains(t, js.String(), `"mode": "skyrim"`)
	assert.Contains(t, js.String(), `"status": "error"`)
}

func TestTablePrinterPrintMessage(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintMessage("ok")
	require.NoError(t, err)
	assert.Equal(t, "ok", strings.TrimSpace(buf.String()))
}
