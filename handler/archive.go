package handler

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/emersion/go-maildir"
	"github.com/roadrunner-server/errors"
	"go.uber.org/zap"

	"github.com/roadrunner-plugins/inbound/dispatch"
	"github.com/roadrunner-plugins/inbound/email"
)

// Archive keeps a copy of every inbound message in a maildir. It never claims
// a message.
type Archive struct {
	dir maildir.Dir
	log *zap.Logger
}

// NewArchive opens the maildir at path, creating it if needed.
func NewArchive(path string, log *zap.Logger) (*Archive, error) {
	const op = errors.Op("inbound_archive_open")

	if log == nil {
		log = zap.NewNop()
	}

	dir := maildir.Dir(path)
	if _, err := os.Stat(filepath.Join(path, "cur")); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0o700); err != nil {
			return nil, errors.E(op, err)
		}
		if err := dir.Init(); err != nil {
			return nil, errors.E(op, err)
		}
	}

	return &Archive{dir: dir, log: log}, nil
}

// Dir returns the maildir messages are written to.
func (a *Archive) Dir() maildir.Dir {
	return a.dir
}

// Handle implements dispatch.Handler.
func (a *Archive) Handle(_ context.Context, msg *email.Message) (dispatch.Outcome, error) {
	const op = errors.Op("inbound_archive_write")

	delivery, err := maildir.NewDelivery(string(a.dir))
	if err != nil {
		return dispatch.Failed, errors.E(op, err)
	}

	if _, err := io.Copy(delivery, bytes.NewReader(msg.Raw)); err != nil {
		_ = delivery.Abort()
		return dispatch.Failed, errors.E(op, err)
	}

	if err := delivery.Close(); err != nil {
		return dispatch.Failed, errors.E(op, err)
	}

	a.log.Debug("message archived", zap.String("uuid", msg.UUID), zap.String("dir", string(a.dir)))
	return dispatch.Ignored, nil
}
