package colorhist

import (
	"errors"
	"math/rand"
	"testing"
)

// generatePixels returns n RGB keys drawn from a few color groups, which is
// closer to real images than uniform noise.
func generatePixels(n int) []Key[uint8] {
	rng := rand.New(rand.NewSource(42))
	bases := [][3]int{{20, 30, 40}, {200, 180, 90}, {90, 160, 220}, {224, 224, 224}}
	keys := make([]Key[uint8], n)
	for i := range keys {
		b := bases[rng.Intn(len(bases))]
		keys[i] = MustKey(
			uint8(b[0]+rng.Intn(32)),
			uint8(b[1]+rng.Intn(16)),
			uint8(b[2]+rng.Intn(16)),
		)
	}
	return keys
}

func buildHistogram(b *testing.B, keys []Key[uint8]) *Histogram[uint8] {
	b.Helper()
	h, err := New[uint8](3)
	if err != nil {
		b.Fatal(err)
	}
	for _, k := range keys {
		h.Add(1, k)
	}
	return h
}

// --- Accumulation ---

func benchAdd(b *testing.B, n int) {
	b.Helper()
	keys := generatePixels(n)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buildHistogram(b, keys)
	}
}

func BenchmarkAdd_10k(b *testing.B)  { benchAdd(b, 10_000) }
func BenchmarkAdd_100k(b *testing.B) { benchAdd(b, 100_000) }
func BenchmarkAdd_1M(b *testing.B)   { benchAdd(b, 1_000_000) }

// --- Sort + Rebuild ---

func benchSortRebuild(b *testing.B, n int) {
	b.Helper()
	keys := generatePixels(n)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		h := buildHistogram(b, keys)
		b.StartTimer()
		h.Sort()
		h.RebuildTree()
	}
}

func BenchmarkSortRebuild_100k(b *testing.B) { benchSortRebuild(b, 100_000) }
func BenchmarkSortRebuild_1M(b *testing.B)   { benchSortRebuild(b, 1_000_000) }

// --- Clustering ---

func benchIterate(b *testing.B, n, k int) {
	b.Helper()
	h := buildHistogram(b, generatePixels(n))
	h.Sort()
	cfg := DefaultConfig()
	cfg.K = k
	centers, err := InitCenters[uint8](h, cfg)
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Iterate[uint8](h, centers, cfg)
	}
}

func BenchmarkIterate_100k_K4(b *testing.B) { benchIterate(b, 100_000, 4) }
func BenchmarkIterate_100k_K9(b *testing.B) { benchIterate(b, 100_000, 9) }

func BenchmarkCluster_100k(b *testing.B) {
	h := buildHistogram(b, generatePixels(100_000))
	h.Sort()
	cfg := DefaultConfig()
	cfg.K = 4
	cfg.Seeding = SeedingFarthest
	cfg.MaxIterations = 50
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Cluster[uint8](h, cfg); err != nil && !errors.Is(err, ErrNotConverged) {
			b.Fatal(err)
		}
	}
}
