package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/google/subcommands"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/panaderia/internal/app"
	"github.com/odyssey-erp/panaderia/jobs"
)

type warmupCmd struct {
	reason string
}

func (*warmupCmd) Name() string     { return "warmup" }
func (*warmupCmd) Synopsis() string { return "enqueue a report cache warmup" }
func (*warmupCmd) Usage() string {
	return `panctl warmup [-r <reason>]

  Queues the reports warmup task for the worker.
`
}

func (c *warmupCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.reason, "r", "manual", "reason recorded in the worker log")
}

func (c *warmupCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := app.LoadConfig()
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	client, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	defer client.Close()

	info, err := client.EnqueueReportsWarmup(ctx, c.reason)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		fmt.Println("a warmup is already queued")
		return subcommands.ExitSuccess
	}
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	fmt.Printf("enqueued %s on %s\n", info.ID, info.Queue)
	return subcommands.ExitSuccess
}

type queueCmd struct{}

func (*queueCmd) Name() string     { return "queue" }
func (*queueCmd) Synopsis() string { return "show background queue statistics" }
func (*queueCmd) Usage() string {
	return `panctl queue

  Prints pending, active, scheduled, retry and failed counts.
`
}

func (*queueCmd) SetFlags(*flag.FlagSet) {}

func (*queueCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := app.LoadConfig()
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	defer inspector.Close()

	info, err := inspector.GetQueueInfo(jobs.QueueDefault)
	if errors.Is(err, asynq.ErrQueueNotFound) {
		fmt.Printf("queue %s is empty\n", jobs.QueueDefault)
		return subcommands.ExitSuccess
	}
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d failed=%d\n",
		info.Queue, info.Pending, info.Active, info.Scheduled, info.Retry, info.Failed)
	return subcommands.ExitSuccess
}
