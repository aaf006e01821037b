package stdio

import (
	"fmt"
	"os"
	"os/exec"
)

// Spawn starts a command and returns a transport over its standard input and output.  The command's standard error is
// shared with this process unless cmd.Stderr is already set.  Closing the transport closes the command's standard
// input and waits for it to exit.
func Spawn(cmd *exec.Cmd, framed bool) (*Stream, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	err = cmd.Start()
	if err != nil {
		return nil, fmt.Errorf(`%w while starting %v`, err, cmd.Path)
	}
	wait := closerFunc(func() error {
		err := cmd.Wait()
		if _, ok := err.(*exec.ExitError); ok {
			return fmt.Errorf(`%v %w`, cmd.Path, err)
		}
		return err
	})
	if framed {
		return Frames(stdout, stdin, stdin, wait), nil
	}
	return Lines(stdout, stdin, stdin, wait), nil
}

type closerFunc func() error

func (fn closerFunc) Close() error { return fn() }
