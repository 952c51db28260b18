package ipc

import (
	"bufio"
	"fmt"
	"io"

	"github.com/bytedance/sonic"
)

// maxFrameBytes bounds one newline-delimited JSON message.
const maxFrameBytes = 64 << 10

func writeFrame(w io.Writer, v any) error {
	payload, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(append(payload, '\n'))
	return err
}

// readFrame decodes the next line from r into v. what names the message in
// errors ("request" or "response").
func readFrame(r io.Reader, what string, v any) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxFrameBytes)
	if !scanner.Scan() {
		err := scanner.Err()
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return fmt.Errorf("read %s: %w", what, err)
	}
	if err := sonic.Unmarshal(scanner.Bytes(), v); err != nil {
		return fmt.Errorf("decode %s: %w", what, err)
	}
	return nil
}
