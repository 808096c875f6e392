// Command cadummy is a small demo exercising the scheduler and ca
// packages together against ca.InProcessServer, the in-process stand-in
// for a real EPICS Channel Access library. It seeds one PV, spawns a
// task that monitors it while putting and getting values on the same PV,
// and prints what happens, without requiring a real EPICS
// installation anywhere (spec §6's native library boundary is satisfied
// by the in-process server instead).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joeycumines/go-cothread/ca"
	"github.com/joeycumines/go-cothread/scheduler"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "cadummy:", err)
		os.Exit(1)
	}
}

func run() error {
	sched, err := scheduler.New(scheduler.WithLogger(scheduler.NewDefaultLogger(os.Stderr, slog.LevelWarn)))
	if err != nil {
		return err
	}
	defer sched.Close()

	server := ca.NewInProcessServer()
	if err := server.SeedPV("DEMO:VOLTAGE", ca.FieldDouble, []float64{0}); err != nil {
		return err
	}

	client, err := ca.NewClient(sched, ca.WithNativeCA(server), ca.WithDefaultTimeout(2*time.Second))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	scheduler.Spawn(sched, "cadummy-main", true, func() error {
		defer sched.Shutdown()

		sub, err := client.Monitor("DEMO:VOLTAGE", ca.FieldDouble, ca.FormatTime, 1, false, func(v ca.Value) {
			fmt.Printf("monitor update: %v\n", v.Data)
		})
		if err != nil {
			return err
		}
		defer sub.Close()

		for i := 1; i <= 3; i++ {
			if err := client.Put(ctx, "DEMO:VOLTAGE", ca.FieldDouble, 1, []float64{float64(i)}); err != nil {
				return err
			}
			v, err := client.Get(ctx, "DEMO:VOLTAGE", ca.FieldDouble, ca.FormatNative, 1)
			if err != nil {
				return err
			}
			fmt.Printf("get after put %d: %v\n", i, v.Data)
			sched.Yield()
		}
		return client.Close()
	})

	return sched.Run(ctx)
}
