package capture

import (
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial/enumerator"
)

var cpuInfoPath = "/proc/cpuinfo"

var piProductHints = []string{"raspberry pi", "bcm2835", "bcm2711", "rp2040"}

// IsRaspberryPi reports whether the process runs on a Raspberry Pi or has one attached over
// USB serial.
func IsRaspberryPi() bool {
	if data, err := os.ReadFile(cpuInfoPath); err == nil {
		if strings.Contains(strings.ToLower(string(data)), "raspberry pi") {
			return true
		}
	}

	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		log.Debug().Err(err).Msg("serial port enumeration failed")
		return false
	}
	return hasPiPort(ports)
}

func hasPiPort(ports []*enumerator.PortDetails) bool {
	for _, p := range ports {
		if p == nil || !p.IsUSB {
			continue
		}
		product := strings.ToLower(p.Product)
		for _, hint := range piProductHints {
			if strings.Contains(product, hint) {
				return true
			}
		}
	}
	return false
}
