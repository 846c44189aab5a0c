//go:build linux

package process_linux

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"procsig/process"

	ps "github.com/mitchellh/go-ps"
	"golang.org/x/sys/unix"
)

// StatParseError reports a /proc/<pid>/stat file whose pid field does not parse
type StatParseError struct {
	Path  string
	Field string
}

func (e *StatParseError) Error() string {
	return fmt.Sprintf("invalid pid field %q in %s", e.Field, e.Path)
}

// LinuxProcessFinder implements the process.ProcessFinder interface
type LinuxProcessFinder struct {
	procRoot string
	list     func() ([]ps.Process, error)
	selfPID  int
	opts     process.Options
}

var _ process.ProcessFinder = (*LinuxProcessFinder)(nil)

// NewProcessFinder creates a new LinuxProcessFinder. Processes are listed with
// go-ps under the default /proc, and from the numeric entries of the proc root
// when WithProcRoot points elsewhere.
func NewProcessFinder(opts ...process.Option) *LinuxProcessFinder {
	o := process.NewOptions(opts...)

	list := ps.Processes
	if filepath.Clean(o.ProcRoot) != process.DefaultProcRoot {
		root := o.ProcRoot
		list = func() ([]ps.Process, error) {
			return listProcRoot(root)
		}
	}

	return &LinuxProcessFinder{
		procRoot: o.ProcRoot,
		list:     list,
		selfPID:  os.Getpid(),
		opts:     o,
	}
}

// FindProcessByName returns the process whose first command line token contains
// name. Processes that exit or deny access while being inspected are skipped; a
// matching process whose stat does not parse fails the lookup with a
// *StatParseError. When several processes match, the lowest PID wins. The
// calling process is never matched.
func (f *LinuxProcessFinder) FindProcessByName(name string) (*process.ProcessInfo, error) {
	if name == "" {
		return nil, errors.New("empty name")
	}

	procs, err := f.list()
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	var best *process.ProcessInfo
	for _, p := range procs {
		if p.Pid() == f.selfPID {
			continue // skip ourselves
		}

		info, err := f.matchCandidate(p, name)
		if err != nil {
			if !isVanished(err) {
				return nil, fmt.Errorf("pid %d: %w", p.Pid(), err)
			}
			f.opts.Debugln("Skipping pid", p.Pid(), err)
			continue
		}
		if info == nil {
			continue
		}

		// pick the lowest PID for determinism
		if best == nil || info.PID < best.PID {
			best = info
		}
	}

	if best == nil {
		return nil, fmt.Errorf("%w: no process with name '%s'", process.ErrProcessNotFound, name)
	}

	return best, nil
}

// isVanished reports errors from a process that exited or is not ours to inspect
func isVanished(err error) bool {
	return errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, unix.ESRCH)
}

// matchCandidate returns nil, nil when the candidate does not match
func (f *LinuxProcessFinder) matchCandidate(p ps.Process, name string) (*process.ProcessInfo, error) {
	procPath := filepath.Join(f.procRoot, strconv.Itoa(p.Pid()))

	cmdline, err := readCmdline(filepath.Join(procPath, "cmdline"))
	if err != nil {
		return nil, err
	}
	if len(cmdline) == 0 {
		return nil, nil // kernel thread or zombie
	}

	if !strings.Contains(firstToken(cmdline), name) {
		return nil, nil
	}

	pid, err := readStatPID(filepath.Join(procPath, "stat"))
	if err != nil {
		return nil, err
	}

	return &process.ProcessInfo{
		PID:     pid,
		Name:    p.Executable(),
		Cmdline: cmdline,
	}, nil
}

// readCmdline splits /proc/<pid>/cmdline on NUL bytes
func readCmdline(path string) ([]string, error) {
	cmdlineBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read process cmdline: %w", err)
	}

	// Remove the trailing NULL byte
	cmdlineBytes = bytes.TrimRight(cmdlineBytes, "\x00")
	if len(cmdlineBytes) == 0 {
		return nil, nil
	}

	var cmdline []string
	for _, arg := range bytes.Split(cmdlineBytes, []byte{0}) {
		cmdline = append(cmdline, string(arg))
	}
	return cmdline, nil
}

// firstToken is the program as invoked. Processes that rewrite their argv
// often join arguments with spaces, so the first argument is cut at a space.
func firstToken(cmdline []string) string {
	if len(cmdline) == 0 {
		return ""
	}
	token, _, _ := strings.Cut(cmdline[0], " ")
	return token
}

// readStatPID parses the first field of /proc/<pid>/stat
func readStatPID(path string) (process.ProcessID, error) {
	stat, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read process stat: %w", err)
	}

	fields := strings.Fields(string(stat))
	if len(fields) == 0 {
		return 0, &StatParseError{Path: path}
	}

	pid, err := strconv.Atoi(fields[0])
	if err != nil || pid <= 0 {
		return 0, &StatParseError{Path: path, Field: fields[0]}
	}

	return process.ProcessID(pid), nil
}

// procEntry is a process listed from a proc root directory
type procEntry struct {
	pid  int
	ppid int
	comm string
}

func (p procEntry) Pid() int           { return p.pid }
func (p procEntry) PPid() int          { return p.ppid }
func (p procEntry) Executable() string { return p.comm }

// listProcRoot lists the numeric entries of root, reading name and parent pid
// from each stat file. Entries whose stat is gone or unreadable are left out.
func listProcRoot(root string) ([]ps.Process, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var procs []ps.Process
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(entry.Name())
		if err != nil || pid <= 0 {
			continue
		}

		stat, err := os.ReadFile(filepath.Join(root, entry.Name(), "stat"))
		if err != nil {
			continue
		}

		// comm may contain spaces and parentheses
		start := bytes.IndexByte(stat, '(')
		end := bytes.LastIndexByte(stat, ')')
		if start < 0 || end < start {
			continue
		}

		p := procEntry{pid: pid, comm: string(stat[start+1 : end])}
		if rest := strings.Fields(string(stat[end+1:])); len(rest) > 1 {
			p.ppid, _ = strconv.Atoi(rest[1])
		}
		procs = append(procs, p)
	}

	return procs, nil
}
