//go:build !linux

package agentcli

import (
	"context"
	"errors"
	"io"
)

func Main(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	return errors.New("mtouch-agent requires linux (hidraw, uinput and uhid)")
}
