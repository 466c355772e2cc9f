package console

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Stdio консоль поверх стандартных потоков. Приглашение выводится только
// в интерактивном терминале, чтобы команды можно было подать через pipe.
type Stdio struct {
	reader      *bufio.Reader
	out         io.Writer
	mu          sync.Mutex
	interactive bool
}

func NewStdio() IO {
	return &Stdio{
		reader:      bufio.NewReader(os.Stdin),
		out:         os.Stdout,
		interactive: term.IsTerminal(int(os.Stdin.Fd())),
	}
}

func (s *Stdio) Println(a ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprintln(s.out, a...)
}

func (s *Stdio) Printf(format string, a ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprintf(s.out, format, a...)
}

func (s *Stdio) ReadInput(prompt string) (string, error) {
	if s.interactive {
		s.Printf("%s", prompt)
	}
	input, err := s.reader.ReadString('\n')
	if err != nil && (err != io.EOF || input == "") {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
