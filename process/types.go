package process

// ProcessID represents a unique identifier for a process
type ProcessID int

// ProcessInfo describes a process matched by a finder
type ProcessInfo struct {
	PID     ProcessID // Process ID
	Name    string    // Executable name as reported by the OS
	Cmdline []string  // Command line arguments, empty when unavailable
}
