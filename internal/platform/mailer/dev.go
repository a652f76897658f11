package mailer

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/yousefihsm/natours/pkg/logger"
)

// DevSender prints messages instead of delivering them.
type DevSender struct {
	out io.Writer
}

func NewDevSender(out io.Writer) *DevSender {
	if out == nil {
		out = os.Stdout
	}
	return &DevSender{out: out}
}

func (d *DevSender) Send(ctx context.Context, msg Message) (string, error) {
	id := uuid.NewString()
	logger.InfoContext(ctx, "[DEV MAIL] "+msg.Subject,
		"to", msg.ToEmail,
		"name", msg.ToName,
		"message_id", id,
	)

	fmt.Fprintf(d.out, "\n"+
		"-----------------------------------------------------------------\n"+
		"EMAIL (DEV MODE)\n"+
		"-----------------------------------------------------------------\n"+
		"To: %s (%s)\n"+
		"Subject: %s\n"+
		"\n"+
		"%s\n"+
		"-----------------------------------------------------------------\n\n",
		msg.ToEmail, msg.ToName, msg.Subject, msg.Text)

	return id, nil
}
