package bytecode

import (
	"bufio"
	"io"
	"math/rand"
	"os"
	"os/exec"
	"time"
)

// LineSource supplies lines for PROMPT. ReadLine returns the raw line
// including any trailing line terminator; io.EOF after the final line
// signals exhausted input.
type LineSource interface {
	ReadLine() (string, error)
}

// CommandRunner executes a shell command for the `$` extension and
// returns its combined standard output.
type CommandRunner interface {
	Run(command string) (string, error)
}

// FileReader loads a file's contents for the XREAD extension.
type FileReader interface {
	ReadFile(path string) (string, error)
}

// Environment bundles everything a VM touches outside its own stack:
// output, input, command execution, file access, and the random source.
// Tests substitute mock collaborators for any of these.
type Environment struct {
	Output io.Writer
	Input  LineSource
	System CommandRunner
	Files  FileReader
	Rand   *rand.Rand
}

// NewEnvironment builds an environment writing to out and reading lines
// from in, with the OS-backed command runner and file reader and a
// time-seeded random source.
func NewEnvironment(out io.Writer, in io.Reader) *Environment {
	return &Environment{
		Output: out,
		Input:  NewLineReader(in),
		System: osRunner{},
		Files:  osFiles{},
		Rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// LineReader adapts an io.Reader into a LineSource.
type LineReader struct {
	r *bufio.Reader
}

// NewLineReader wraps r for line-at-a-time reads.
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{r: bufio.NewReader(r)}
}

// ReadLine reads up to and including the next newline. A final
// unterminated line is returned with a nil error; the next call
// returns io.EOF.
func (l *LineReader) ReadLine() (string, error) {
	line, err := l.r.ReadString('\n')
	if err == io.EOF && line != "" {
		return line, nil
	}
	return line, err
}

type osRunner struct{}

func (osRunner) Run(command string) (string, error) {
	out, err := exec.Command("/bin/sh", "-c", command).Output()
	return string(out), err
}

type osFiles struct{}

func (osFiles) ReadFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	return string(b), err
}
