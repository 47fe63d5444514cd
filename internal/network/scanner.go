// internal/network/scanner.go
package network

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"pos-print-bridge/internal/config"
	"pos-print-bridge/internal/model"
)

// maxScanHosts bounds the subnet size a scan will walk
const maxScanHosts = 1024

// Scanner looks for hosts listening on the raw printing port
type Scanner struct {
	logger  *zap.Logger
	subnet  string
	port    int
	timeout time.Duration
	workers int
}

// NewScanner creates a new subnet scanner
func NewScanner(cfg *config.NetworkConfig, logger *zap.Logger) *Scanner {
	s := &Scanner{
		logger:  logger.With(zap.String("scanner", "tcp")),
		subnet:  cfg.ScanSubnet,
		port:    cfg.Port,
		timeout: cfg.ScanTimeout,
		workers: cfg.ScanWorkers,
	}
	if s.port == 0 {
		s.port = 9100
	}
	if s.timeout <= 0 {
		s.timeout = 300 * time.Millisecond
	}
	if s.workers <= 0 {
		s.workers = 64
	}
	return s
}

// Scan probes every host of the subnet and returns those accepting connections
func (s *Scanner) Scan(ctx context.Context) ([]model.NetworkPrinter, error) {
	subnet := s.subnet
	if subnet == "" {
		local, err := LocalSubnet()
		if err != nil {
			return nil, err
		}
		subnet = local
	}

	hosts, err := HostsInSubnet(subnet)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Starting TCP network scan",
		zap.String("subnet", subnet),
		zap.Int("port", s.port),
		zap.Int("hosts", len(hosts)),
	)

	jobs := make(chan string)
	var (
		mu    sync.Mutex
		found []model.NetworkPrinter
		wg    sync.WaitGroup
	)

	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for host := range jobs {
				if s.probe(ctx, host) {
					mu.Lock()
					found = append(found, model.NetworkPrinter{Host: host, Port: s.port})
					mu.Unlock()
				}
			}
		}()
	}

feed:
	for _, host := range hosts {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- host:
		}
	}
	close(jobs)
	wg.Wait()

	sort.Slice(found, func(i, j int) bool {
		return bytes.Compare(net.ParseIP(found[i].Host).To4(), net.ParseIP(found[j].Host).To4()) < 0
	})

	s.logger.Info("TCP scan completed", zap.Int("devices_found", len(found)))
	return found, ctx.Err()
}

func (s *Scanner) probe(ctx context.Context, host string) bool {
	dialer := net.Dialer{Timeout: s.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(s.port)))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// LocalSubnet returns the /24 of the first non-loopback IPv4 interface address
func LocalSubnet() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", fmt.Errorf("failed to list interface addresses: %w", err)
	}

	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			return fmt.Sprintf("%d.%d.%d.0/24", ip4[0], ip4[1], ip4[2]), nil
		}
	}
	return "", fmt.Errorf("no IPv4 network interface found")
}

// HostsInSubnet lists the usable host addresses of an IPv4 CIDR
func HostsInSubnet(cidr string) ([]string, error) {
	ip, ipNet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, fmt.Errorf("invalid subnet %q: %w", cidr, err)
	}
	if ip.To4() == nil {
		return nil, fmt.Errorf("subnet %q is not IPv4", cidr)
	}

	ones, bits := ipNet.Mask.Size()
	size := 1 << uint(bits-ones)
	if size > maxScanHosts {
		return nil, fmt.Errorf("subnet %q is too large to scan", cidr)
	}

	base := ipNet.IP.To4()
	start := uint32(base[0])<<24 | uint32(base[1])<<16 | uint32(base[2])<<8 | uint32(base[3])

	first, last := 0, size-1
	if size > 2 {
		// skip network and broadcast addresses
		first, last = 1, size-2
	}

	hosts := make([]string, 0, last-first+1)
	for i := first; i <= last; i++ {
		n := start + uint32(i)
		hosts = append(hosts, net.IPv4(byte(n>>24), byte(n>>16), byte(n>>8), byte(n)).String())
	}
	return hosts, nil
}
