/*
Package workers provides utilities for determining worker pool sizes in
containerized environments.

While Go 1.19+ automatically sets GOMAXPROCS based on container CPU
limits, runtime.NumCPU() still returns the host machine's CPU count.
Sizing pools from NumCPU on a limited pod leads to context switching
overhead and CPU throttling, so this package derives counts from
GOMAXPROCS instead.

	// For CPU-intensive tasks (hashing large files)
	numWorkers := workers.ForCPU(8)

	// For I/O-bound tasks (stat calls, network posts)
	numWorkers := workers.ForIO(16)

	// For mixed workloads (read file, hash, record result)
	numWorkers := workers.ForMixed(12)

For fine-grained control use Count directly:

	numWorkers := workers.Count(3.0, 24)

All functions respect the AGENT_WORKERS environment variable, letting
operators override the automatic calculation:

	env:
	- name: AGENT_WORKERS
	  value: "4"

All functions are safe for concurrent use.
*/
package workers
