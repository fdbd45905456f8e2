// Package plugin runs an external command as a graph processor,
// handing it a multiplexed stdio session instead of raw pipes so a
// future wire protocol can open independent input/output streams over
// one process without juggling file descriptors per stream. Grounded on
// original_source/src/plugin.rs's PluginCommand/PluginCommandProcessor;
// that file's own process_input/process_output are unimplemented
// (todo!()), so this port keeps the same boundary: process lifecycle
// (spawn, multiplexed session, kill+wait on teardown) is real, the
// actual sample framing over the session is left for the wire protocol
// this plugin kind is meant to negotiate with, same as the original.
package plugin

import (
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/xtaci/smux"

	"github.com/sorapipe/compositor/internal/compositorerr"
	"github.com/sorapipe/compositor/internal/media"
	"github.com/sorapipe/compositor/internal/stats"
	"github.com/sorapipe/compositor/internal/stream"
	"github.com/sorapipe/compositor/internal/util"
)

// Command describes an external transform to run as a graph node.
type Command struct {
	Path           string
	Args           []string
	InputStreamIDs []media.StreamId
}

// Start spawns the command and opens a smux session over its stdio.
func (c Command) Start() (*Processor, error) {
	cmd := exec.Command(c.Path, c.Args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, compositorerr.Wrap(compositorerr.IoFailure, "plugin_command", fmt.Errorf("stdin pipe: %w", err))
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, compositorerr.Wrap(compositorerr.IoFailure, "plugin_command", fmt.Errorf("stdout pipe: %w", err))
	}
	// stderr isn't part of the multiplexed session; it's diagnostic
	// output from the external transform, logged with a per-command
	// prefix so it's distinguishable in a run that wires several.
	cmd.Stderr = util.NewPrefixLogWriter(fmt.Sprintf("[plugin:%s]", filepath.Base(c.Path)))
	if err := cmd.Start(); err != nil {
		return nil, compositorerr.Wrap(compositorerr.IoFailure, "plugin_command", fmt.Errorf("start plugin command: %w", err))
	}

	session, err := smux.Client(pipeConn{stdout, stdin}, smux.DefaultConfig())
	if err != nil {
		_ = cmd.Process.Kill()
		return nil, compositorerr.Wrap(compositorerr.IoFailure, "plugin_command", fmt.Errorf("open multiplexed session: %w", err))
	}

	return &Processor{
		cmd:            cmd,
		session:        session,
		inputStreamIDs: c.InputStreamIDs,
		stats:          stats.New("plugin_command"),
	}, nil
}

// pipeConn adapts a Cmd's separate stdout/stdin pipes to the single
// net.Conn-shaped io.ReadWriteCloser smux requires.
type pipeConn struct {
	r interface{ Read([]byte) (int, error) }
	w interface {
		Write([]byte) (int, error)
		Close() error
	}
}

func (p pipeConn) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p pipeConn) Write(b []byte) (int, error) { return p.w.Write(b) }
func (p pipeConn) Close() error                { return p.w.Close() }

// Processor runs an external command as a graph node over a multiplexed
// stdio session.
type Processor struct {
	cmd            *exec.Cmd
	session        *smux.Session
	inputStreamIDs []media.StreamId
	stats          *stats.ProcessorStats
}

// Stats exposes the plugin's observability counters.
func (p *Processor) Stats() *stats.ProcessorStats { return p.stats }

// Spec implements stream.Processor.
func (p *Processor) Spec() media.ProcessorSpec {
	return media.ProcessorSpec{
		Name:           "plugin_command",
		InputStreamIDs: p.inputStreamIDs,
	}
}

// ProcessInput implements stream.Processor. Framing samples onto the
// plugin's multiplexed session is left to the wire protocol this plugin
// kind negotiates with a given external command; no such protocol is
// specified yet (see original_source/src/plugin.rs, where the same
// method is unimplemented).
func (p *Processor) ProcessInput(media.StreamId, media.MediaSample, bool) {
	panic("plugin: ProcessInput is not implemented (no wire protocol specified for external transforms yet)")
}

// ProcessOutput implements stream.Processor. See ProcessInput.
func (p *Processor) ProcessOutput() stream.Outcome {
	panic("plugin: ProcessOutput is not implemented (no wire protocol specified for external transforms yet)")
}

// Close kills the plugin process and releases its session, mirroring
// the original's Drop impl (kill, then wait, both best-effort).
func (p *Processor) Close() error {
	_ = p.session.Close()
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	return p.cmd.Wait()
}
