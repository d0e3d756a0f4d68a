// ABOUTME: Tests for mDNS discovery
// ABOUTME: Covers service types, TXT records and entry filtering
package discovery

import (
	"net"
	"testing"

	"github.com/hashicorp/mdns"
)

func TestServiceType(t *testing.T) {
	player := NewManager(Config{ServiceName: "Test Player", Port: 8928, Index: 3})
	defer player.Stop()
	if got := player.ServiceType(); got != PlayerService {
		t.Errorf("expected %s, got %s", PlayerService, got)
	}

	server := NewManager(Config{ServiceName: "Test Server", Port: 8927, ServerMode: true})
	defer server.Stop()
	if got := server.ServiceType(); got != ServerService {
		t.Errorf("expected %s, got %s", ServerService, got)
	}
}

func TestTXTRecords(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   []string
	}{
		{"server", Config{ServerMode: true, Index: 2}, []string{"path=/nu"}},
		{"placed player", Config{Index: 2}, []string{"path=/nu", "index=2"}},
		{"unassigned player", Config{Index: -1}, []string{"path=/nu"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewManager(tt.config).txt()
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("record %d: expected %q, got %q", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestServerFromEntry(t *testing.T) {
	tests := []struct {
		name  string
		entry *mdns.ServiceEntry
		addr  string
		ok    bool
	}{
		{"nil", nil, "", false},
		{"ipv4", &mdns.ServiceEntry{Name: "a", AddrV4: net.ParseIP("192.168.1.5"), Port: 8927}, "192.168.1.5:8927", true},
		{"ipv6", &mdns.ServiceEntry{Name: "b", AddrV6: net.ParseIP("fe80::1"), Port: 8927}, "[fe80::1]:8927", true},
		{"no address", &mdns.ServiceEntry{Name: "c", Port: 8927}, "", false},
		{"no port", &mdns.ServiceEntry{Name: "d", AddrV4: net.ParseIP("10.0.0.1")}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, ok := serverFromEntry(tt.entry)
			if ok != tt.ok {
				t.Fatalf("expected ok=%v, got %v", tt.ok, ok)
			}
			if ok && info.Addr() != tt.addr {
				t.Errorf("expected %s, got %s", tt.addr, info.Addr())
			}
		})
	}
}
