package acre_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/pkg/acre"
)

type BenchUser struct {
	ID    string
	Name  string
	Email string
	Age   int
}

func newBenchEngine(b *testing.B) *acre.Engine {
	b.Helper()
	cfg := acre.TestConfig()
	cfg.Cache.Capacity = 1000
	e, err := acre.New(cfg, acre.WithSampler(fakeSampler{}))
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = e.Close() })
	return e
}

func BenchmarkEngine_GetOrLoad(b *testing.B) {
	e := newBenchEngine(b)
	ctx := context.Background()
	load := func(context.Context) (any, error) {
		return BenchUser{ID: "456", Name: "Bob", Email: "bob@example.com", Age: 25}, nil
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var result BenchUser
		_, _ = e.GetOrLoad(ctx, "user", i%100, &result, load) // Reuse keys to test cache hits
	}
}

func BenchmarkEngine_PutValue(b *testing.B) {
	e := newBenchEngine(b)
	user := BenchUser{ID: "123", Name: "Alice", Email: "alice@example.com", Age: 30}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := fmt.Sprintf("user:%d", i)
		_ = e.Cache().PutValue(key, user, 0)
	}
}

func BenchmarkEngine_Execute(b *testing.B) {
	e := newBenchEngine(b)
	ctx := context.Background()
	op := func(context.Context, ...any) (any, error) { return "ok", nil }

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Execute(ctx, "bench", nil, op)
	}
}

func BenchmarkEngine_ExecuteDegraded(b *testing.B) {
	e := newBenchEngine(b)
	ctx := context.Background()
	errDown := errors.New("down")
	op := func(context.Context, ...any) (any, error) { return nil, errDown }
	chain := []acre.Strategy{acre.StrategyGracefulDegradation}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Execute(ctx, "bench", chain, op)
	}
}

func BenchmarkEngine_Snapshot(b *testing.B) {
	e := newBenchEngine(b)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = e.Snapshot()
	}
}

func BenchmarkEngine_Parallel(b *testing.B) {
	e := newBenchEngine(b)
	ctx := context.Background()
	load := func(context.Context) (any, error) { return BenchUser{ID: "1"}, nil }

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			var result BenchUser
			_, _ = e.GetOrLoad(ctx, "user", i%50, &result, load)
			i++
		}
	})
}
