// Package rules holds the block policy shared by every fast path. The
// four rule classes live in independent thread-safe sets, so the hot read
// path never serializes against unrelated writes; the control surface is
// the only writer.
package rules

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"NetWarden/internal/model"
)

// Kind labels which rule class matched.
type Kind int

const (
	KindIP Kind = iota
	KindPort
	KindApp
	KindDomain
)

var kindNames = [...]string{
	KindIP:     "IP",
	KindPort:   "PORT",
	KindApp:    "APP",
	KindDomain: "DOMAIN",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "IP"
	}
	return kindNames[k]
}

// BlockReason describes the first rule that matched a packet.
type BlockReason struct {
	Kind   Kind
	Detail string
	At     time.Time
}

// Stats is a snapshot of the rule set and its check counters.
type Stats struct {
	BlockedIPs      int
	BlockedPorts    int
	BlockedApps     int
	BlockedDomains  int
	BlockChecks     uint64
	BlocksTriggered uint64
}

// Manager is the process-wide rule store.
type Manager struct {
	ips   mapset.Set[uint32]
	ports mapset.Set[uint16]
	apps  mapset.Set[model.AppType]

	domains   mapset.Set[string]
	patternMu sync.RWMutex
	patterns  []string

	strict atomic.Bool

	checks    atomic.Uint64
	triggered atomic.Uint64
}

// NewManager creates an empty rule set with strict domain matching off,
// so blocked domains also match as substrings/wildcards.
func NewManager() *Manager {
	return &Manager{
		ips:     mapset.NewSet[uint32](),
		ports:   mapset.NewSet[uint16](),
		apps:    mapset.NewSet[model.AppType](),
		domains: mapset.NewSet[string](),
	}
}

// BlockIP adds a source IP by tuple key.
func (m *Manager) BlockIP(ip uint32) { m.ips.Add(ip) }

// BlockIPString parses a dotted quad and blocks it.
func (m *Manager) BlockIPString(s string) error {
	ip, ok := model.ParseIPv4(s)
	if !ok {
		return fmt.Errorf("invalid IP %q", s)
	}
	m.ips.Add(ip)
	return nil
}

// UnblockIP removes a source IP.
func (m *Manager) UnblockIP(ip uint32) { m.ips.Remove(ip) }

// UnblockIPString parses and removes a source IP.
func (m *Manager) UnblockIPString(s string) error {
	ip, ok := model.ParseIPv4(s)
	if !ok {
		return fmt.Errorf("invalid IP %q", s)
	}
	m.ips.Remove(ip)
	return nil
}

// IsIPBlocked checks exact membership.
func (m *Manager) IsIPBlocked(ip uint32) bool { return m.ips.Contains(ip) }

// BlockedIPs lists the blocked addresses in dotted-quad form, sorted.
func (m *Manager) BlockedIPs() []string {
	out := make([]string, 0, m.ips.Cardinality())
	for ip := range m.ips.Iter() {
		out = append(out, model.FormatIPv4(ip))
	}
	sort.Strings(out)
	return out
}

// BlockPort blocks a destination port.
func (m *Manager) BlockPort(port uint16) { m.ports.Add(port) }

// UnblockPort removes a destination port.
func (m *Manager) UnblockPort(port uint16) { m.ports.Remove(port) }

// IsPortBlocked checks exact membership.
func (m *Manager) IsPortBlocked(port uint16) bool { return m.ports.Contains(port) }

// BlockedPorts lists blocked ports, sorted.
func (m *Manager) BlockedPorts() []uint16 {
	out := m.ports.ToSlice()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// BlockApp blocks an application.
func (m *Manager) BlockApp(app model.AppType) { m.apps.Add(app) }

// BlockAppName resolves a case-insensitive application name and blocks it.
func (m *Manager) BlockAppName(name string) error {
	app, ok := model.ParseAppType(name)
	if !ok {
		return fmt.Errorf("unknown application %q", name)
	}
	m.apps.Add(app)
	return nil
}

// UnblockApp removes an application.
func (m *Manager) UnblockApp(app model.AppType) { m.apps.Remove(app) }

// IsAppBlocked checks exact membership.
func (m *Manager) IsAppBlocked(app model.AppType) bool { return m.apps.Contains(app) }

// BlockedApps lists blocked applications in enum order.
func (m *Manager) BlockedApps() []model.AppType {
	out := m.apps.ToSlice()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// BlockDomain blocks a domain. The name joins the exact set and, for
// non-strict matching, the pattern list.
func (m *Manager) BlockDomain(domain string) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return
	}
	m.domains.Add(domain)

	m.patternMu.Lock()
	defer m.patternMu.Unlock()
	for _, p := range m.patterns {
		if p == domain {
			return
		}
	}
	m.patterns = append(m.patterns, domain)
}

// UnblockDomain removes a domain from both the exact set and the pattern
// list.
func (m *Manager) UnblockDomain(domain string) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	m.domains.Remove(domain)

	m.patternMu.Lock()
	defer m.patternMu.Unlock()
	for i, p := range m.patterns {
		if p == domain {
			m.patterns = append(m.patterns[:i], m.patterns[i+1:]...)
			return
		}
	}
}

// IsDomainBlocked applies exact membership plus, when strict matching is
// off, the pattern list.
func (m *Manager) IsDomainBlocked(domain string) bool {
	domain = strings.ToLower(domain)
	if m.domains.Contains(domain) {
		return true
	}
	if m.strict.Load() {
		return false
	}

	m.patternMu.RLock()
	defer m.patternMu.RUnlock()
	for _, p := range m.patterns {
		if domainMatchesPattern(domain, p) {
			return true
		}
	}
	return false
}

// BlockedDomains lists blocked domain names, sorted.
func (m *Manager) BlockedDomains() []string {
	out := m.domains.ToSlice()
	sort.Strings(out)
	return out
}

// SetStrictDomainMatching toggles pattern matching off (true) or on
// (false).
func (m *Manager) SetStrictDomainMatching(strict bool) { m.strict.Store(strict) }

// StrictDomainMatching reports the current mode.
func (m *Manager) StrictDomainMatching() bool { return m.strict.Load() }

// ShouldBlock is the hot read path. Rule classes are consulted in a fixed
// order (ip, port, app, domain) and the first match wins.
func (m *Manager) ShouldBlock(srcIP uint32, dstPort uint16, app model.AppType, domain string) (BlockReason, bool) {
	m.checks.Add(1)

	if m.ips.Contains(srcIP) {
		return m.hit(KindIP, model.FormatIPv4(srcIP))
	}
	if m.ports.Contains(dstPort) {
		return m.hit(KindPort, fmt.Sprintf("%d", dstPort))
	}
	if app != model.AppUnknown && m.apps.Contains(app) {
		return m.hit(KindApp, app.String())
	}
	if domain != "" && m.IsDomainBlocked(domain) {
		return m.hit(KindDomain, domain)
	}
	return BlockReason{}, false
}

func (m *Manager) hit(kind Kind, detail string) (BlockReason, bool) {
	m.triggered.Add(1)
	return BlockReason{Kind: kind, Detail: detail, At: time.Now()}, true
}

// ClearAll empties every rule class.
func (m *Manager) ClearAll() {
	m.ips.Clear()
	m.ports.Clear()
	m.apps.Clear()
	m.domains.Clear()

	m.patternMu.Lock()
	m.patterns = nil
	m.patternMu.Unlock()
}

// Stats snapshots set sizes and check counters.
func (m *Manager) Stats() Stats {
	return Stats{
		BlockedIPs:      m.ips.Cardinality(),
		BlockedPorts:    m.ports.Cardinality(),
		BlockedApps:     m.apps.Cardinality(),
		BlockedDomains:  m.domains.Cardinality(),
		BlockChecks:     m.checks.Load(),
		BlocksTriggered: m.triggered.Load(),
	}
}

// domainMatchesPattern: "*." patterns match any subdomain of the suffix
// (and the bare name itself); everything else is a substring match.
func domainMatchesPattern(domain, pattern string) bool {
	if strings.HasPrefix(pattern, "*.") {
		return strings.HasSuffix(domain, pattern[1:]) || domain == pattern[2:]
	}
	return strings.Contains(domain, pattern)
}
