package api_test

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-select/api"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want api.ErrorClass
	}{
		{nil, api.ClassNone},
		{io.EOF, api.ClassEndOfStream},
		{fmt.Errorf("read: %w", io.EOF), api.ClassEndOfStream},
		{api.ErrAlreadyClosed, api.ClassAlreadyClosed},
		{net.ErrClosed, api.ClassAlreadyClosed},
		{os.ErrClosed, api.ClassAlreadyClosed},
		{syscall.EBADF, api.ClassAlreadyClosed},
		{syscall.ECONNRESET, api.ClassResetOrBrokenPipe},
		{&os.SyscallError{Syscall: "write", Err: syscall.EPIPE}, api.ClassResetOrBrokenPipe},
		{syscall.EAGAIN, api.ClassTransient},
		{syscall.EINTR, api.ClassTransient},
		{errors.New("boom"), api.ClassOther},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, api.Classify(c.err), "error %v", c.err)
	}
}

func TestErrorUnwrap(t *testing.T) {
	err := api.NewError(api.ErrCodeConstruction, "socket", api.ErrMissingHandle).WithContext("key", "conn")
	require.ErrorIs(t, err, api.ErrMissingHandle)
	assert.Contains(t, err.Error(), "missing required handle")
	assert.Contains(t, err.Error(), "conn")
}

func TestEventKindString(t *testing.T) {
	assert.Equal(t, "none", api.EventKind(0).String())
	assert.Equal(t, "readable|error", (api.Readable | api.Error).String())
	assert.True(t, api.AllEvents.Has(api.Writable))
	assert.False(t, api.Readable.Has(api.Readable|api.Writable))
}
