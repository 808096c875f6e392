package ca

import (
	"context"
	"testing"
	"time"

	"github.com/joeycumines/go-cothread/scheduler"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*scheduler.Scheduler, *Client, *InProcessServer) {
	t.Helper()
	sched, err := scheduler.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sched.Close() })

	server := NewInProcessServer()
	client, err := NewClient(sched, WithNativeCA(server), WithDefaultTimeout(time.Second))
	require.NoError(t, err)
	return sched, client, server
}

func runScheduler(t *testing.T, sched *scheduler.Scheduler, timeout time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	require.NoError(t, sched.Run(ctx))
}

func TestGetPutRoundTrip(t *testing.T) {
	sched, client, server := newTestClient(t)
	require.NoError(t, server.SeedPV("TEST:PV", FieldDouble, []float64{0}))

	var got Value
	task := scheduler.Spawn(sched, "getput", true, func() error {
		defer sched.Shutdown()
		ctx := context.Background()
		if err := client.Put(ctx, "TEST:PV", FieldDouble, 1, []float64{3.5}); err != nil {
			return err
		}
		v, err := client.Get(ctx, "TEST:PV", FieldDouble, FormatNative, 1)
		if err != nil {
			return err
		}
		got = v
		return nil
	})

	runScheduler(t, sched, 2*time.Second)
	require.NoError(t, task.Wait(context.Background()))
	require.Equal(t, []float64{3.5}, got.Data)
}

func TestMonitorCoalescesUpdates(t *testing.T) {
	sched, client, server := newTestClient(t)
	require.NoError(t, server.SeedPV("TEST:MON", FieldLong, []int32{0}))

	var updates []int32
	task := scheduler.Spawn(sched, "monitor", true, func() error {
		ctx := context.Background()
		sub, err := client.Monitor("TEST:MON", FieldLong, FormatNative, 1, false, func(v Value) {
			data := v.Data.([]int32)
			updates = append(updates, data[0])
			if data[0] == 3 {
				sched.Shutdown()
			}
		})
		if err != nil {
			return err
		}
		defer sub.Close()

		for i := int32(1); i <= 3; i++ {
			if err := client.Put(ctx, "TEST:MON", FieldLong, 1, []int32{i}); err != nil {
				return err
			}
			sched.Yield()
		}
		return nil
	})

	runScheduler(t, sched, 2*time.Second)
	require.NoError(t, task.Wait(context.Background()))
	require.NotEmpty(t, updates)
	require.Equal(t, int32(3), updates[len(updates)-1])
}

func TestMonitorAllUpdatesAlwaysReportsCountOne(t *testing.T) {
	sched, client, server := newTestClient(t)
	require.NoError(t, server.SeedPV("TEST:ALL", FieldLong, []int32{0}))

	var counts []int
	task := scheduler.Spawn(sched, "monitor-all", true, func() error {
		ctx := context.Background()
		sub, err := client.Monitor("TEST:ALL", FieldLong, FormatNative, 1, true, func(v Value) {
			counts = append(counts, v.UpdateCount)
			if len(counts) == 2 {
				sched.Shutdown()
			}
		})
		if err != nil {
			return err
		}
		defer sub.Close()

		for i := int32(1); i <= 2; i++ {
			if err := client.Put(ctx, "TEST:ALL", FieldLong, 1, []int32{i}); err != nil {
				return err
			}
			sched.Yield()
		}
		return nil
	})

	runScheduler(t, sched, 2*time.Second)
	require.NoError(t, task.Wait(context.Background()))
	require.NotEmpty(t, counts)
	for _, c := range counts {
		require.Equal(t, 1, c)
	}
}

func TestMonitorNotifyDisconnectSurfacesSyntheticValue(t *testing.T) {
	sched, client, server := newTestClient(t)
	require.NoError(t, server.SeedPV("TEST:DISC", FieldLong, []int32{0}))

	sawDisconnect := make(chan struct{}, 1)
	delivered := scheduler.NewEvent(sched)
	task := scheduler.Spawn(sched, "monitor-disc", true, func() error {
		sub, err := client.Monitor("TEST:DISC", FieldLong, FormatNative, 1, true, func(v Value) {
			if v.Disconnected {
				select {
				case sawDisconnect <- struct{}{}:
				default:
				}
				delivered.Signal()
				sched.Shutdown()
			}
		}, WithNotifyDisconnect())
		if err != nil {
			return err
		}
		defer sub.Close()

		ch, err := client.Connect(context.Background(), "TEST:DISC")
		if err != nil {
			return err
		}
		if ch.State() != StateConnected {
			return &CAError{Func: "Connect", Status: StatusInternal}
		}
		server.Disconnect("TEST:DISC")
		// Keep the subscription open until the disconnect has reached it.
		return delivered.Wait(context.Background())
	})

	runScheduler(t, sched, 2*time.Second)
	require.NoError(t, task.Wait(context.Background()))
	select {
	case <-sawDisconnect:
	default:
		t.Fatal("expected a disconnected value to be delivered")
	}
}

func TestConnectTimeoutOnUnknownChannel(t *testing.T) {
	sched, client, server := newTestClient(t)
	server.connectDelay = 50 * time.Millisecond

	task := scheduler.Spawn(sched, "connect", false, func() error {
		defer sched.Shutdown()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Millisecond)
		defer cancel()
		_, err := client.Connect(ctx, "TEST:NEVER")
		return err
	})

	runScheduler(t, sched, time.Second)
	err := task.Wait(context.Background())
	require.Error(t, err)
}

func TestGetAllReturnsPerPVResults(t *testing.T) {
	sched, client, server := newTestClient(t)
	require.NoError(t, server.SeedPV("TEST:A", FieldDouble, []float64{1}))
	require.NoError(t, server.SeedPV("TEST:B", FieldDouble, []float64{2}))

	var results []Result[Value]
	task := scheduler.Spawn(sched, "getall", true, func() error {
		defer sched.Shutdown()
		results = client.GetAll(context.Background(), []string{"TEST:A", "TEST:B"}, FieldDouble, FormatNative, 1)
		return nil
	})

	runScheduler(t, sched, 2*time.Second)
	require.NoError(t, task.Wait(context.Background()))
	require.Len(t, results, 2)
	require.True(t, results[0].OK)
	require.True(t, results[1].OK)
	require.Equal(t, []float64{1}, results[0].Value.Data)
	require.Equal(t, []float64{2}, results[1].Value.Data)
}
