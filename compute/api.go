package compute

import (
	"fmt"
	"strings"
)

// API tags a compute API.
type API uint8

// Compute APIs.
const (
	APINone API = iota
	APISYCL
	APILevelZero
	APICUDA
	APIHIP

	// APIHost is the host-memory reference backend. It is probed after
	// every hardware API.
	APIHost
)

// apiPriority is the probe order: SYCL > Level Zero > CUDA > HIP.
var apiPriority = []API{APISYCL, APILevelZero, APICUDA, APIHIP}

// Priority returns the probe order of every API.
func Priority() []API {
	return append([]API(nil), apiPriority...)
}

func (a API) String() string {
	switch a {
	case APISYCL:
		return "sycl"
	case APILevelZero:
		return "level_zero"
	case APICUDA:
		return "cuda"
	case APIHIP:
		return "hip"
	case APIHost:
		return "host"
	default:
		return fmt.Sprintf("API(%d)", uint8(a))
	}
}

// ParseAPI parses an API name as written in configuration files.
// Matching is case-insensitive and accepts "levelzero" and "ze".
func ParseAPI(name string) (API, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sycl":
		return APISYCL, true
	case "level_zero", "levelzero", "ze":
		return APILevelZero, true
	case "cuda":
		return APICUDA, true
	case "hip":
		return APIHIP, true
	case "host", "software":
		return APIHost, true
	default:
		return APINone, false
	}
}
