package service

import (
	"context"
)

// Feed asks the control loop for a manual single-shot dispense and waits for
// it to be accepted or rejected.
func (c *Controller) Feed(ctx context.Context) error {
	_, err := c.request(ctx, Command{Kind: CommandFeed})
	return err
}

// SetSchedule replaces the schedule with raw.
func (c *Controller) SetSchedule(ctx context.Context, raw []byte) error {
	_, err := c.request(ctx, Command{Kind: CommandSetSchedule, Payload: raw})
	return err
}

// Schedule returns the exact persisted schedule document.
func (c *Controller) Schedule(ctx context.Context) ([]byte, error) {
	return c.request(ctx, Command{Kind: CommandGetSchedule})
}

func (c *Controller) request(ctx context.Context, cmd Command) ([]byte, error) {
	reply := make(chan CommandResult, 1)
	cmd.Reply = reply
	cmd.Done = ctx.Done()
	if err := c.Submit(cmd); err != nil {
		return nil, err
	}
	select {
	case res := <-reply:
		return res.Document, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
