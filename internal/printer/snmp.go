package printer

import (
	"fmt"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
)

const (
	oidSysDescr        = "1.3.6.1.2.1.1.1.0"
	oidSysName         = "1.3.6.1.2.1.1.5.0"
	oidHrDeviceStatus  = "1.3.6.1.2.1.25.3.2.1.5.1"
	oidHrPrinterStatus = "1.3.6.1.2.1.25.3.5.1.1.1"
)

// SNMPStatus is the host-resources view of a network printer.
type SNMPStatus struct {
	Description   string
	Name          string
	DeviceStatus  string
	PrinterStatus string
}

// SNMPClient is the subset of gosnmp used here.
type SNMPClient interface {
	Connect() error
	Get(oids []string) (*gosnmp.SnmpPacket, error)
}

// NewSNMPClient builds an SNMPv2c client. Tests replace it.
var NewSNMPClient = func(host, community string, timeout time.Duration) (SNMPClient, func(), error) {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if strings.TrimSpace(community) == "" {
		community = "public"
	}
	g := &gosnmp.GoSNMP{
		Target:    strings.TrimSpace(host),
		Port:      161,
		Version:   gosnmp.Version2c,
		Community: community,
		Timeout:   timeout,
		Retries:   1,
	}
	closeFn := func() {
		if g.Conn != nil {
			_ = g.Conn.Close()
		}
	}
	return g, closeFn, nil
}

// QuerySNMP reads description and status objects from the printer.
func QuerySNMP(host, community string, timeout time.Duration) (SNMPStatus, error) {
	client, closeFn, err := NewSNMPClient(host, community, timeout)
	if err != nil {
		return SNMPStatus{}, err
	}
	defer closeFn()

	if err := client.Connect(); err != nil {
		return SNMPStatus{}, fmt.Errorf("snmp connect %s: %w", host, err)
	}
	pkt, err := client.Get([]string{oidSysDescr, oidSysName, oidHrDeviceStatus, oidHrPrinterStatus})
	if err != nil {
		return SNMPStatus{}, fmt.Errorf("snmp get %s: %w", host, err)
	}

	var st SNMPStatus
	for _, v := range pkt.Variables {
		switch strings.TrimPrefix(v.Name, ".") {
		case oidSysDescr:
			st.Description = pduString(v)
		case oidSysName:
			st.Name = pduString(v)
		case oidHrDeviceStatus:
			st.DeviceStatus = deviceStatusText(pduInt(v))
		case oidHrPrinterStatus:
			st.PrinterStatus = printerStatusText(pduInt(v))
		}
	}
	return st, nil
}

func pduString(v gosnmp.SnmpPDU) string {
	switch val := v.Value.(type) {
	case []byte:
		return strings.TrimSpace(string(val))
	case string:
		return strings.TrimSpace(val)
	default:
		return ""
	}
}

func pduInt(v gosnmp.SnmpPDU) int {
	if v.Value == nil {
		return 0
	}
	return int(gosnmp.ToBigInt(v.Value).Int64())
}

// hrPrinterStatus values from RFC 2790.
func printerStatusText(code int) string {
	switch code {
	case 1:
		return "other"
	case 2:
		return "unknown"
	case 3:
		return "idle"
	case 4:
		return "printing"
	case 5:
		return "warmup"
	default:
		return "-"
	}
}

// hrDeviceStatus values from RFC 2790.
func deviceStatusText(code int) string {
	switch code {
	case 1:
		return "unknown"
	case 2:
		return "running"
	case 3:
		return "warning"
	case 4:
		return "testing"
	case 5:
		return "down"
	default:
		return "-"
	}
}
