package rules

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NetWarden/internal/model"
)

func TestShouldBlockOrder(t *testing.T) {
	m := NewManager()

	ip, _ := model.ParseIPv4("10.0.0.1")
	m.BlockIP(ip)
	m.BlockPort(443)
	m.BlockApp(model.AppYouTube)
	m.BlockDomain("example.com")

	// IP wins over everything.
	reason, blocked := m.ShouldBlock(ip, 443, model.AppYouTube, "example.com")
	require.True(t, blocked)
	assert.Equal(t, KindIP, reason.Kind)
	assert.Equal(t, "10.0.0.1", reason.Detail)

	// Then port.
	reason, blocked = m.ShouldBlock(0, 443, model.AppYouTube, "example.com")
	require.True(t, blocked)
	assert.Equal(t, KindPort, reason.Kind)

	// Then app.
	reason, blocked = m.ShouldBlock(0, 80, model.AppYouTube, "example.com")
	require.True(t, blocked)
	assert.Equal(t, KindApp, reason.Kind)
	assert.Equal(t, "YouTube", reason.Detail)

	// Then domain.
	reason, blocked = m.ShouldBlock(0, 80, model.AppUnknown, "example.com")
	require.True(t, blocked)
	assert.Equal(t, KindDomain, reason.Kind)

	// No match.
	_, blocked = m.ShouldBlock(0, 80, model.AppUnknown, "other.org")
	assert.False(t, blocked)
}

func TestCheckCounters(t *testing.T) {
	m := NewManager()
	m.BlockPort(22)

	m.ShouldBlock(0, 22, model.AppUnknown, "")
	m.ShouldBlock(0, 80, model.AppUnknown, "")

	stats := m.Stats()
	assert.Equal(t, uint64(2), stats.BlockChecks)
	assert.Equal(t, uint64(1), stats.BlocksTriggered)
}

func TestDomainSubstringMatching(t *testing.T) {
	m := NewManager()
	m.BlockDomain("youtube")

	// Non-strict (default): substring applies.
	_, blocked := m.ShouldBlock(0, 0, model.AppUnknown, "www.youtube.com")
	assert.True(t, blocked)

	// Strict: only the exact set.
	m.SetStrictDomainMatching(true)
	_, blocked = m.ShouldBlock(0, 0, model.AppUnknown, "www.youtube.com")
	assert.False(t, blocked)
	_, blocked = m.ShouldBlock(0, 0, model.AppUnknown, "youtube")
	assert.True(t, blocked)
}

func TestDomainWildcardMatching(t *testing.T) {
	m := NewManager()
	m.BlockDomain("*.example.com")

	_, blocked := m.ShouldBlock(0, 0, model.AppUnknown, "cdn.example.com")
	assert.True(t, blocked)
	_, blocked = m.ShouldBlock(0, 0, model.AppUnknown, "example.com")
	assert.True(t, blocked)
	_, blocked = m.ShouldBlock(0, 0, model.AppUnknown, "notexample.com")
	assert.False(t, blocked)
}

func TestUnblock(t *testing.T) {
	m := NewManager()

	require.NoError(t, m.BlockIPString("1.2.3.4"))
	require.NoError(t, m.UnblockIPString("1.2.3.4"))
	_, blocked := m.ShouldBlock(mustIP(t, "1.2.3.4"), 0, model.AppUnknown, "")
	assert.False(t, blocked)

	m.BlockDomain("example.com")
	m.UnblockDomain("example.com")
	_, blocked = m.ShouldBlock(0, 0, model.AppUnknown, "www.example.com")
	assert.False(t, blocked)
}

func TestBlockAppName(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.BlockAppName("YouTube"))
	assert.True(t, m.IsAppBlocked(model.AppYouTube))
	assert.Error(t, m.BlockAppName("NoSuchApp"))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.BlockIPString("192.168.1.50"))
	require.NoError(t, m.BlockAppName("Netflix"))
	m.BlockDomain("ads.example.com")
	m.BlockPort(8080)

	path := filepath.Join(t.TempDir(), "rules.txt")
	require.NoError(t, m.Save(path))

	m.ClearAll()
	stats := m.Stats()
	require.Zero(t, stats.BlockedIPs+stats.BlockedPorts+stats.BlockedApps+stats.BlockedDomains)

	require.NoError(t, m.Load(path))

	assert.Equal(t, []string{"192.168.1.50"}, m.BlockedIPs())
	assert.Equal(t, []uint16{8080}, m.BlockedPorts())
	assert.Equal(t, []model.AppType{model.AppNetflix}, m.BlockedApps())
	assert.Equal(t, []string{"ads.example.com"}, m.BlockedDomains())
}

func TestLoadSkipsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.txt")
	content := "# comment\n\nIP 10.0.0.1\nBOGUS xyz\nPORT notanumber\nAPP NoSuchApp\nDOMAIN ok.com\n"
	require.NoError(t, writeFile(path, content))

	m := NewManager()
	require.NoError(t, m.Load(path))

	assert.Equal(t, []string{"10.0.0.1"}, m.BlockedIPs())
	assert.Equal(t, []string{"ok.com"}, m.BlockedDomains())
	assert.Empty(t, m.BlockedPorts())
	assert.Empty(t, m.BlockedApps())
}

func mustIP(t *testing.T, s string) uint32 {
	t.Helper()
	ip, ok := model.ParseIPv4(s)
	require.True(t, ok)
	return ip
}
