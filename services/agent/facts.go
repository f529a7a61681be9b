package agent

import (
	"net"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// gatherFacts collects the hardware and platform facts sent on check-in. All
// values are informational; collection failures degrade to missing keys.
func gatherFacts() map[string]any {
	facts := map[string]any{
		"os":       runtime.GOOS,
		"arch":     runtime.GOARCH,
		"num_cpu":  runtime.NumCPU(),
		"agent_ts": time.Now().UTC().Format(time.RFC3339),
	}
	if hostname, err := os.Hostname(); err == nil {
		facts["hostname"] = hostname
	}
	if ifaces, err := net.Interfaces(); err == nil {
		if mac, ok := pickMAC(ifaces); ok {
			facts["mac"] = mac
		}
	}
	if mb, ok := memTotalMB(); ok {
		facts["ram_mb"] = mb
	}
	return facts
}

// pickMAC returns the hardware address of the first interface that is up,
// not a loopback, and actually carries one.
func pickMAC(ifaces []net.Interface) (string, bool) {
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if len(iface.HardwareAddr) == 0 {
			continue
		}
		return iface.HardwareAddr.String(), true
	}
	return "", false
}

// memTotalMB reports total physical memory where the kernel exposes
// /proc/meminfo; elsewhere the fact is omitted.
func memTotalMB() (uint64, bool) {
	data, err := os.ReadFile("/proc/meminfo")
	if err != nil {
		return 0, false
	}
	kb, ok := parseMemTotalKB(data)
	if !ok {
		return 0, false
	}
	return kb / 1024, true
}

func parseMemTotalKB(data []byte) (uint64, bool) {
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "MemTotal:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, false
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0, false
		}
		return kb, true
	}
	return 0, false
}

// localIP finds the machine's outbound address by dialing a UDP socket; no
// packet is sent. Returns empty when the machine has no route.
func localIP() string {
	conn, err := net.Dial("udp", "192.0.2.1:9")
	if err != nil {
		return ""
	}
	defer conn.Close()

	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return ""
}
