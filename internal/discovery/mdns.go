// ABOUTME: mDNS service discovery for Nu nodes
// ABOUTME: The server advertises itself; players browse for it and may advertise their index
package discovery

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"

	"github.com/hashicorp/mdns"

	"github.com/Resonate-Protocol/nu-go/pkg/protocol"
)

// Service types
const (
	PlayerService = "_nu._tcp"
	ServerService = "_nu-server._tcp"
)

// browseTimeout is the length of one query round in seconds
const browseTimeout = 3

// Config holds discovery configuration
type Config struct {
	ServiceName string
	Port        int
	ServerMode  bool // advertise as _nu-server._tcp instead of _nu._tcp
	Index       int  // player index published in the TXT record, -1 = unassigned
}

// Manager handles mDNS operations
type Manager struct {
	config  Config
	ctx     context.Context
	cancel  context.CancelFunc
	servers chan *ServerInfo
}

// ServerInfo describes a discovered server
type ServerInfo struct {
	Name string
	Host string
	Port int
}

// Addr returns host:port for dialing
func (s *ServerInfo) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
		servers: make(chan *ServerInfo, 10),
	}
}

// ServiceType is the type this manager advertises
func (m *Manager) ServiceType() string {
	if m.config.ServerMode {
		return ServerService
	}
	return PlayerService
}

func (m *Manager) txt() []string {
	txt := []string{"path=" + protocol.Path}
	if !m.config.ServerMode && m.config.Index >= 0 {
		txt = append(txt, fmt.Sprintf("index=%d", m.config.Index))
	}
	return txt
}

// Advertise publishes this node via mDNS until Stop
func (m *Manager) Advertise() error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		m.ServiceType(),
		"",
		"",
		m.config.Port,
		ips,
		m.txt(),
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	log.Printf("Advertising mDNS service: %s on port %d (type: %s)", m.config.ServiceName, m.config.Port, m.ServiceType())

	go func() {
		<-m.ctx.Done()
		server.Shutdown()
	}()

	return nil
}

// Browse searches for Nu servers in the background
func (m *Manager) Browse() {
	go m.browseLoop()
}

func (m *Manager) browseLoop() {
	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		entries := make(chan *mdns.ServiceEntry, 10)

		go func() {
			for entry := range entries {
				server, ok := serverFromEntry(entry)
				if !ok {
					continue
				}

				log.Printf("Discovered server: %s at %s", server.Name, server.Addr())

				select {
				case m.servers <- server:
				case <-m.ctx.Done():
					return
				}
			}
		}()

		params := &mdns.QueryParam{
			Service: ServerService,
			Domain:  "local",
			Timeout: browseTimeout,
			Entries: entries,
		}

		if err := mdns.Query(params); err != nil {
			log.Printf("mDNS query failed: %v", err)
		}
		close(entries)
	}
}

// serverFromEntry keeps entries with a usable address, preferring IPv4
func serverFromEntry(entry *mdns.ServiceEntry) (*ServerInfo, bool) {
	if entry == nil || entry.Port == 0 {
		return nil, false
	}

	var host string
	switch {
	case entry.AddrV4 != nil:
		host = entry.AddrV4.String()
	case entry.AddrV6 != nil:
		host = entry.AddrV6.String()
	default:
		return nil, false
	}

	return &ServerInfo{Name: entry.Name, Host: host, Port: entry.Port}, true
}

// Servers returns the channel of discovered servers
func (m *Manager) Servers() <-chan *ServerInfo {
	return m.servers
}

// Stop stops the discovery manager
func (m *Manager) Stop() {
	m.cancel()
}

// getLocalIPs returns local IP addresses
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
