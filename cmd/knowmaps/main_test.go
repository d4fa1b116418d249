package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/knowmaps/internal/config"
	"github.com/kailas-cloud/knowmaps/internal/domain/intent"
	"github.com/kailas-cloud/knowmaps/internal/domain/item"
	"github.com/kailas-cloud/knowmaps/internal/repository/embcache"
	embeddinguc "github.com/kailas-cloud/knowmaps/internal/usecase/embedding"
	"github.com/kailas-cloud/knowmaps/internal/version"
)

func TestVersionCmd(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out.String(), version.Version) {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestSearchFlags_Intent(t *testing.T) {
	f := searchFlags{user: "u1", lat: 38.7, lng: -9.1, near: "Lisbon", kind: "PLACE", radius: 800}
	in, err := f.intent("pastel de nata")
	if err != nil {
		t.Fatalf("intent: %v", err)
	}
	if in.Request.Kind != intent.KindPlaceLookup || in.Request.Radius != 800 {
		t.Errorf("unexpected request %+v", in.Request)
	}
	if in.Context.Destination.Name != "Lisbon" || in.Context.Destination.Coordinate.Lat != 38.7 {
		t.Errorf("unexpected destination %+v", in.Context.Destination)
	}

	f.kind = "teleport"
	if _, err := f.intent("x"); err == nil {
		t.Error("expected unknown kind error")
	}

	f.kind, f.user = "", " "
	if _, err := f.intent("x"); err == nil {
		t.Error("expected missing user error")
	}
}

func TestSummarize(t *testing.T) {
	s := summarize(map[string][]float32{
		embcache.TextKeyPrefix + "coffee": make([]float32, 4),
		embcache.TextKeyPrefix + "tea":    make([]float32, 4),
		embeddinguc.ItemKey("p1"):         make([]float32, 8),
	})
	if s.total != 3 || s.text != 2 || s.items != 1 {
		t.Errorf("unexpected counts %+v", s)
	}
	if got := s.dimensions(); got != "4 (2), 8 (1)" {
		t.Errorf("dimensions = %q", got)
	}
	if got := summarize(nil).dimensions(); got != "-" {
		t.Errorf("empty dimensions = %q", got)
	}
}

func TestBuildEmbedder_ItemsCachedOnce(t *testing.T) {
	ctx := context.Background()
	cache := embcache.Open(ctx, embcache.NewFileStore(filepath.Join(t.TempDir(), "cache.json")), zap.NewNop())
	t.Cleanup(func() { _ = cache.Close(ctx) })

	emb := buildEmbedder(config.EmbeddingConfig{Provider: "hashing", Dimensions: 16}, cache, zap.NewNop())
	if emb.health != nil {
		t.Error("hashing provider has no remote health check")
	}

	items := embeddinguc.NewItemBuilder(emb.raw, cache, 16, nil, zap.NewNop())
	m := item.Metadata{ID: "p1", Title: "Blue Bottle", Categories: []string{"Coffee Shop"}}
	if v := items.Embed(ctx, m); len(v) != 16 {
		t.Fatalf("item vector len = %d", len(v))
	}
	if cache.Len() != 1 {
		t.Fatalf("cache entries = %d, want only the item key", cache.Len())
	}
	if _, ok := cache.Get(embeddinguc.ItemKey("p1")); !ok {
		t.Error("item key not cached")
	}

	if _, err := emb.text.Embed(ctx, "Category preference: Coffee Shop"); err != nil {
		t.Fatalf("text embed: %v", err)
	}
	if cache.Len() != 2 {
		t.Errorf("cache entries = %d, want item and text keys", cache.Len())
	}
}
