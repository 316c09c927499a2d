package executor

import "bytes"

// maxCapturedOutput caps each of stdout and stderr for one process.
const maxCapturedOutput = 64 << 10

const truncationNotice = "\n[output truncated at 64 KiB]"

// limitedBuffer keeps the first limit bytes written to it and reports every
// write as complete so the child is never blocked on a full pipe.
type limitedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func newLimitedBuffer() *limitedBuffer {
	return &limitedBuffer{limit: maxCapturedOutput}
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.buf.Len(); len(p) > room {
		b.truncated = true
		if room > 0 {
			b.buf.Write(p[:room])
		}
		return len(p), nil
	}
	return b.buf.Write(p)
}

// String returns the captured output, marked when it was cut off.
func (b *limitedBuffer) String() string {
	if b.truncated {
		return b.buf.String() + truncationNotice
	}
	return b.buf.String()
}

// joinOutput combines stdout and stderr for diagnostics, skipping empty parts.
func joinOutput(stdout, stderr string) string {
	switch {
	case stdout == "":
		return stderr
	case stderr == "":
		return stdout
	}
	if stdout[len(stdout)-1] != '\n' {
		stdout += "\n"
	}
	return stdout + stderr
}
