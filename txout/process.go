package txout

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"

	"github.com/quan-to/slog"
	"github.com/racerxdl/qo100-dedrift/metrics"
)

// toolProcess feeds samples to a vendor CLI tool over its stdin.
type toolProcess struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	log   slog.Instance
	logs  chan struct{}
}

func startToolProcess(binary string, args []string, scope string) (*toolProcess, error) {
	cmd := exec.Command(binary, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	p := &toolProcess{
		cmd:   cmd,
		stdin: stdin,
		log:   slog.Scope(scope),
		logs:  make(chan struct{}),
	}
	p.log.Debug("Starting %s %v", binary, args)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", binary, err)
	}
	go p.forwardLogs(stderr)
	return p, nil
}

func (p *toolProcess) forwardLogs(r io.Reader) {
	defer close(p.logs)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		p.log.Debug("%s", scanner.Text())
	}
}

func (p *toolProcess) write(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := p.stdin.Write(payload)
	metrics.BytesOut.Add(float64(n))
	return err
}

func (p *toolProcess) close() error {
	_ = p.stdin.Close()
	<-p.logs
	return p.cmd.Wait()
}

// formatHz renders a frequency or rate as an integer argument for the vendor tools.
func formatHz(v float64) string {
	return strconv.FormatFloat(v, 'f', 0, 64)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
