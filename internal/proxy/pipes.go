package proxy

import (
	"fmt"
	"os"
)

// pipes holds both ends of the three anonymous pipes given to the child.
// The child ends are closed in the parent once the child has started, so
// the parent's reads see end of stream when the child exits.
type pipes struct {
	childStdin, stdin   *os.File
	stdout, childStdout *os.File
	stderr, childStderr *os.File
}

func newPipes() (*pipes, error) {
	var pp pipes
	var err error
	if pp.childStdin, pp.stdin, err = os.Pipe(); err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	if pp.stdout, pp.childStdout, err = os.Pipe(); err != nil {
		pp.closeAll()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if pp.stderr, pp.childStderr, err = os.Pipe(); err != nil {
		pp.closeAll()
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	return &pp, nil
}

func (pp *pipes) closeChildEnds() {
	closeFiles(pp.childStdin, pp.childStdout, pp.childStderr)
}

func (pp *pipes) closeParentEnds() {
	closeFiles(pp.stdin, pp.stdout, pp.stderr)
}

func (pp *pipes) closeAll() {
	pp.closeChildEnds()
	pp.closeParentEnds()
}

func closeFiles(files ...*os.File) {
	for _, f := range files {
		if f != nil {
			_ = f.Close()
		}
	}
}
