package session

import (
	"fmt"
	"regexp"
	"runtime"
	"strconv"
)

// Master is a parsed compute endpoint descriptor.
type Master struct {
	// Parallelism is the number of partitions processed concurrently.
	Parallelism int
	// MaxFailures is accepted for compatibility with local[N,F] descriptors;
	// tasks are never retried.
	MaxFailures int
}

var localMaster = regexp.MustCompile(`^local\[(\*|[0-9]+)(?:,\s*([0-9]+))?\]$`)

// ParseMaster parses local, local[N], local[*], local[N,F] and local[*,F].
// Cluster endpoints are not supported by the in-process engine.
func ParseMaster(master string) (Master, error) {
	if master == "local" {
		return Master{Parallelism: 1, MaxFailures: 1}, nil
	}
	m := localMaster.FindStringSubmatch(master)
	if m == nil {
		return Master{}, fmt.Errorf("unsupported master URL '%s': expected local, local[N] or local[*]", master)
	}
	ret := Master{MaxFailures: 1}
	if m[1] == "*" {
		ret.Parallelism = runtime.NumCPU()
	} else {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			return Master{}, fmt.Errorf("invalid number of threads in master URL '%s'", master)
		}
		ret.Parallelism = n
	}
	if m[2] != "" {
		f, err := strconv.Atoi(m[2])
		if err != nil || f <= 0 {
			return Master{}, fmt.Errorf("invalid number of failures in master URL '%s'", master)
		}
		ret.MaxFailures = f
	}
	return ret, nil
}
