package cache

import (
	"bytes"
	"fmt"
	"testing"
)

func BenchmarkAdaptiveCache_Put(b *testing.B) {
	for _, policy := range []Policy{PolicyLRU, PolicyAdaptive} {
		b.Run(policy.String(), func(b *testing.B) {
			c, err := New(1000, policy)
			if err != nil {
				b.Fatal(err)
			}
			defer c.Close()

			value := []byte("test-value-with-some-data")

			b.ResetTimer()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = c.Put(fmt.Sprintf("key:%d", i), value, 0)
			}
		})
	}
}

func BenchmarkAdaptiveCache_Get(b *testing.B) {
	c, err := New(1000, PolicyLRU)
	if err != nil {
		b.Fatal(err)
	}
	defer c.Close()

	value := []byte("test-value-with-some-data")
	for i := 0; i < 1000; i++ {
		_ = c.Put(fmt.Sprintf("key:%d", i), value, 0)
	}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		c.Get(fmt.Sprintf("key:%d", i%1000))
	}
}

func BenchmarkAdaptiveCache_GetCompressed(b *testing.B) {
	c, err := New(100, PolicyLRU)
	if err != nil {
		b.Fatal(err)
	}
	defer c.Close()

	_ = c.Put("large", bytes.Repeat([]byte("row,"), 4096), 0)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		c.Get("large")
	}
}
