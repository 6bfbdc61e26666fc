package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/emersion/go-mbox"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roadrunner-plugins/inbound"
	"github.com/roadrunner-plugins/inbound/addressing"
	"github.com/roadrunner-plugins/inbound/dispatch"
	"github.com/roadrunner-plugins/inbound/handler"
)

// deliveryLine is printed for every processed message.
type deliveryLine struct {
	UUID    string  `json:"uuid"`
	Subject string  `json:"subject"`
	IDs     []int64 `json:"ids"`
	Plain   bool    `json:"plain"`
	Text    string  `json:"text"`
}

func newDispatchCmd(opts *options) *cobra.Command {
	var mboxPath string

	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Dispatch a message from stdin, or every message of an mbox archive",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, signer, err := setup(opts)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			p, err := newPipeline(cfg, signer, log, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			if mboxPath != "" {
				return dispatchMbox(cmd.Context(), p, mboxPath, log)
			}

			raw, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			if !p.Dispatch(cmd.Context(), raw) {
				return errors.New("message not handled")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&mboxPath, "mbox", "", "replay every message of this mbox archive")
	return cmd
}

func newPipeline(cfg *inbound.Config, signer *addressing.Signer, log *zap.Logger, out io.Writer) (*dispatch.Pipeline, error) {
	p := dispatch.New(log)

	if cfg.Archive != nil {
		archive, err := handler.NewArchive(cfg.Archive.Dir, log)
		if err != nil {
			return nil, err
		}
		p.Register("archive", archive)
	}

	enc := json.NewEncoder(out)
	sink := handler.SinkFunc(func(_ context.Context, d handler.Delivery) error {
		return enc.Encode(deliveryLine{
			UUID:    d.Message.UUID,
			Subject: d.Message.Subject(),
			IDs:     d.IDs,
			Plain:   d.Plain,
			Text:    d.Text,
		})
	})
	resolver := addressing.NewResolver(signer, log)
	p.Register("stdout", handler.NewRecord(resolver, cfg.Namespace, cfg.Base(), sink, log))

	return p, nil
}

func dispatchMbox(ctx context.Context, p *dispatch.Pipeline, path string, log *zap.Logger) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open mbox: %w", err)
	}
	defer file.Close()

	reader := mbox.NewReader(file)

	var total, handled int
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msgReader, err := reader.NextMessage()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read mbox message %d: %w", total, err)
		}

		var buf bytes.Buffer
		if _, err := buf.ReadFrom(msgReader); err != nil {
			return fmt.Errorf("read mbox message %d: %w", total, err)
		}

		total++
		if p.Dispatch(ctx, buf.Bytes()) {
			handled++
		}
	}

	log.Info("mbox replayed",
		zap.String("mbox", path),
		zap.Int("messages", total),
		zap.Int("handled", handled),
	)
	return nil
}
